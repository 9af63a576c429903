// Package visibility streams chunk visibility around a moving viewer. A fixed
// window of slots centered on the viewer's chunk is evaluated by two kernels
// per tick: one re-checks what the window held last tick, one re-centers it.
package visibility

import (
	"fmt"
	"log"
	"os"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/shariarpapon/everime-world-generator/internal/sim/world"
)

type Phase int

const (
	PhaseUpdate Phase = iota
	PhaseFixedUpdate
	PhaseLateUpdate
)

func (p Phase) String() string {
	switch p {
	case PhaseFixedUpdate:
		return "fixed_update"
	case PhaseLateUpdate:
		return "late_update"
	default:
		return "update"
	}
}

func ParsePhase(s string) (Phase, error) {
	switch s {
	case "", "update":
		return PhaseUpdate, nil
	case "fixed_update":
		return PhaseFixedUpdate, nil
	case "late_update":
		return PhaseLateUpdate, nil
	default:
		return 0, fmt.Errorf("unknown update phase %q", s)
	}
}

type Viewer interface {
	Position() mgl32.Vec3
}

type Config struct {
	Enabled              bool
	Phase                Phase
	VisibleChunksPerAxis int
	Logger               *log.Logger

	// MaxViewDistance is capped by the window's reach; <= 0 uses the cap.
	MaxViewDistance float32
}

// ValidateChunksPerAxis rounds n down to a multiple of ThreadGroupSize, with
// one group as the minimum.
func ValidateChunksPerAxis(n int) int {
	n -= n % ThreadGroupSize
	if n < ThreadGroupSize {
		n = ThreadGroupSize
	}
	return n
}

// Streamer is driven from the presentation goroutine.
type Streamer struct {
	cfg    Config
	viewer Viewer
	device Device
	log    *log.Logger

	world    *world.World
	perAxis  int
	radial   int
	groups   int
	uniforms Uniforms
	host     []ChunkUpdateData

	// cappedAt is the last effective distance reported for an oversized
	// configured MaxViewDistance.
	cappedAt float32
}

func New(cfg Config, viewer Viewer, device Device) *Streamer {
	logger := cfg.Logger
	if logger == nil {
		logger = log.New(os.Stderr, "[visibility] ", log.LstdFlags|log.Lmicroseconds)
	}
	s := &Streamer{cfg: cfg, viewer: viewer, device: device, log: logger}
	s.resize(cfg.VisibleChunksPerAxis)
	return s
}

// Init binds the streamer to w and resets the window. A nil world disables
// streaming until the next Init.
func (s *Streamer) Init(w *world.World) {
	s.world = w
	s.resize(s.perAxis)
}

func (s *Streamer) World() *world.World { return s.world }

func (s *Streamer) SetEnabled(enabled bool) { s.cfg.Enabled = enabled }

func (s *Streamer) SetVisibleChunksPerAxis(n int) {
	s.resize(n)
}

func (s *Streamer) VisibleChunksPerAxis() int { return s.perAxis }

func (s *Streamer) MaxViewDistance() float32 { return s.uniforms.MaxViewDistance }

// Slots returns a copy of the host-side window.
func (s *Streamer) Slots() []ChunkUpdateData {
	return append([]ChunkUpdateData(nil), s.host...)
}

func (s *Streamer) resize(n int) {
	s.perAxis = ValidateChunksPerAxis(n)
	s.radial = s.perAxis / 2
	s.groups = s.perAxis / ThreadGroupSize
	s.host = make([]ChunkUpdateData, s.perAxis*s.perAxis)
	for i := range s.host {
		s.host[i] = ChunkUpdateData{Coord: Unassigned}
	}

	var chunkSize float32 = 1
	if s.world != nil {
		chunkSize = float32(s.world.Settings().ChunkSize)
	}
	// Anything farther than the window's reach would be activated and then
	// fall out of the window without ever being re-checked.
	maxView := float32(s.radial)*chunkSize - chunkSize
	switch {
	case s.cfg.MaxViewDistance > 0 && s.cfg.MaxViewDistance < maxView:
		maxView = s.cfg.MaxViewDistance
	case s.cfg.MaxViewDistance > maxView && s.world != nil && s.cappedAt != maxView:
		s.log.Printf("max view distance %.2f exceeds the %dx%d window reach; using %.2f",
			s.cfg.MaxViewDistance, s.perAxis, s.perAxis, maxView)
		s.cappedAt = maxView
	}
	s.uniforms = Uniforms{
		MaxViewDistance:       maxView,
		ChunkSize:             chunkSize,
		ChunkExtent:           chunkSize / 2,
		ChunksVisibleRadially: int32(s.radial),
		VisibleChunksPerAxis:  int32(s.perAxis),
	}
}

// Tick runs an update when phase is the configured one.
func (s *Streamer) Tick(phase Phase) {
	if phase != s.cfg.Phase {
		return
	}
	if err := s.UpdateChunkVisibility(); err != nil {
		s.log.Printf("update chunk visibility: %v", err)
	}
}

// UpdateChunkVisibility runs both kernels, applying each result before the
// next dispatch.
func (s *Streamer) UpdateChunkVisibility() error {
	if s.world == nil || !s.cfg.Enabled || s.viewer == nil {
		return nil
	}
	buf := s.device.NewBuffer(len(s.host), ChunkUpdateDataSize)
	defer buf.Release()
	if err := buf.SetData(s.host); err != nil {
		return err
	}

	pos := s.viewer.Position()
	u := s.uniforms
	u.ViewerPosition = pos.Sub(s.world.Settings().WorldOffset)

	recheck, err := FindKernel("CheckPreviouslyActiveChunks")
	if err != nil {
		return err
	}
	if err := s.device.Dispatch(recheck, buf, u, s.groups, s.groups); err != nil {
		return fmt.Errorf("dispatch re-check: %w", err)
	}
	if err := buf.GetData(s.host); err != nil {
		return err
	}
	s.apply()

	sweep, err := FindKernel("CheckSurroundingChunks")
	if err != nil {
		return err
	}
	vc := s.world.GlobalToRelativeChunkPosition(pos)
	u.ViewerChunkCoord = [2]int32{int32(vc.X), int32(vc.Y)}
	if err := s.device.Dispatch(sweep, buf, u, s.groups, s.groups); err != nil {
		return fmt.Errorf("dispatch sweep: %w", err)
	}
	if err := buf.GetData(s.host); err != nil {
		return err
	}
	s.apply()
	return nil
}

func (s *Streamer) apply() {
	for _, d := range s.host {
		if !d.Assigned() {
			continue
		}
		c := s.world.Chunk(world.ChunkCoord{X: int(d.Coord.X()), Y: int(d.Coord.Y())})
		if c == nil {
			continue
		}
		c.SetVisible(d.SetActive == 1)
	}
}

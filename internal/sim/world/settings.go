package world

import (
	"fmt"

	"github.com/cespare/xxhash/v2"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/google/uuid"

	"github.com/shariarpapon/everime-world-generator/internal/sim/world/terrain/mesh"
	"github.com/shariarpapon/everime-world-generator/internal/sim/world/terrain/noise"
)

const DefaultSeedContext = "overworld"

// WorldSettings is everything a generation run reads. A run works on its own
// clone, so edits after GenerateWorld never reach a running background pass.
type WorldSettings struct {
	Seed          string
	UseRandomSeed bool

	// SeedContext is appended to Seed before hashing, so one seed string can
	// drive several independent worlds.
	SeedContext string

	WorldSizeInChunks int
	ChunkSize         int
	WorldOffset       mgl32.Vec3

	ChunkMaterial    string
	GenerateCollider bool
	VisibleByDefault bool

	Height HeightSettings
	Noise  noise.Settings
	Spawn  SpawnSettings
}

type HeightSettings struct {
	Multiplier    float32
	Law           mesh.HeightLaw
	Curve         *mesh.Curve
	Gradient      *mesh.Gradient
	RadialFalloff bool
}

type SpawnSettings struct {
	GlobalChance float32
	Objects      []SpawnData
}

// SpawnData describes one object that may be placed on chunk vertices.
// Heights are world-space. Placements carry only a yaw: a random one when
// RandomizeYaw is set, the identity rotation otherwise. Any rotation baked
// into the template is left to the presenter.
type SpawnData struct {
	Template     string
	MinHeight    float32
	MaxHeight    float32
	Chance       float32
	RandomizeYaw bool
}

func DefaultSettings() WorldSettings {
	return WorldSettings{
		Seed:              "everime",
		SeedContext:       DefaultSeedContext,
		WorldSizeInChunks: 8,
		ChunkSize:         32,
		ChunkMaterial:     "terrain",
		Height: HeightSettings{
			Multiplier: 10,
			Law:        mesh.LawIdentity,
			Curve:      mesh.LinearCurve(),
			Gradient:   mesh.GrayscaleGradient(),
		},
		Noise: noise.DefaultSettings(),
		Spawn: SpawnSettings{GlobalChance: 1},
	}
}

// Correct clamps values that would make a run undefined and returns one note
// per change.
func (s *WorldSettings) Correct() []string {
	notes := s.Noise.Correct()
	if s.ChunkSize <= 0 {
		notes = append(notes, fmt.Sprintf("chunk size %d corrected to 1", s.ChunkSize))
		s.ChunkSize = 1
	}
	if s.WorldSizeInChunks <= 0 {
		notes = append(notes, fmt.Sprintf("world size %d corrected to 1", s.WorldSizeInChunks))
		s.WorldSizeInChunks = 1
	}
	if s.SeedContext == "" {
		s.SeedContext = DefaultSeedContext
	}
	return notes
}

func (s *WorldSettings) WorldUnitSize() int {
	return s.WorldSizeInChunks * s.ChunkSize
}

// CombinedSeed hashes the seed string with its context tag.
func (s *WorldSettings) CombinedSeed() int64 {
	return int64(xxhash.Sum64String(s.Seed + s.SeedContext))
}

func (s *WorldSettings) RandomizeSeed() {
	s.Seed = uuid.NewString()
}

func (s *WorldSettings) Clone() *WorldSettings {
	out := *s
	out.Height.Curve = s.Height.Curve.Clone()
	out.Height.Gradient = s.Height.Gradient.Clone()
	out.Spawn.Objects = append([]SpawnData(nil), s.Spawn.Objects...)
	return &out
}

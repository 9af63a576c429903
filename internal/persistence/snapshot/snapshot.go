// Package snapshot stores finished worlds as a JSON header line followed by
// a gob body, zstd-compressed.
package snapshot

import (
	"bufio"
	"encoding/gob"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/klauspost/compress/zstd"

	"github.com/shariarpapon/everime-world-generator/internal/sim/master"
)

const Version = 1

var ErrVersion = errors.New("unsupported snapshot version")

type Header struct {
	Version      int       `json:"version"`
	RunID        uint64    `json:"run_id"`
	Seed         string    `json:"seed"`
	CombinedSeed int64     `json:"combined_seed"`
	Chunks       int       `json:"chunks"`
	Spawns       int       `json:"spawns"`
	Digest       string    `json:"digest"`
	Completed    time.Time `json:"completed"`
}

type WorldV1 struct {
	Header Header `json:"header"`

	SeedContext       string     `json:"seed_context"`
	WorldSizeInChunks int        `json:"world_size_in_chunks"`
	ChunkSize         int        `json:"chunk_size"`
	WorldOffset       [3]float32 `json:"world_offset"`
	HeightMultiplier  float32    `json:"height_multiplier"`
	HeightLaw         string     `json:"height_law"`
	NoiseOffset       [2]float32 `json:"noise_offset"`
	Faults            int        `json:"faults"`
	Started           time.Time  `json:"started"`

	Chunks []ChunkV1 `json:"chunks"`
	Spawns []SpawnV1 `json:"spawns"`
}

type ChunkV1 struct {
	X        int        `json:"x"`
	Y        int        `json:"y"`
	Position [3]float32 `json:"position"`
	Size     int        `json:"size"`
	Heights  []float32  `json:"heights"`

	// Mesh buffers, flattened per vertex.
	Vertices  []float32 `json:"vertices"`
	UV        []float32 `json:"uv"`
	Colors    []float32 `json:"colors"`
	Triangles []int32   `json:"triangles"`

	Digest string `json:"digest"`
}

type SpawnV1 struct {
	Template string     `json:"template"`
	ChunkX   int        `json:"chunk_x"`
	ChunkY   int        `json:"chunk_y"`
	Position [3]float32 `json:"position"`
	Rotation [4]float32 `json:"rotation"`
}

// FromSummary captures a completed run. Chunks come out in coordinate order.
func FromSummary(sum master.Summary) WorldV1 {
	w := sum.World
	s := w.Settings()
	snap := WorldV1{
		Header: Header{
			Version:      Version,
			RunID:        sum.RunID,
			Seed:         sum.Seed,
			CombinedSeed: sum.CombinedSeed,
			Chunks:       sum.Chunks,
			Spawns:       len(sum.Spawns),
			Digest:       hex.EncodeToString(sum.Digest[:]),
			Completed:    sum.Completed,
		},
		SeedContext:       s.SeedContext,
		WorldSizeInChunks: s.WorldSizeInChunks,
		ChunkSize:         s.ChunkSize,
		WorldOffset:       s.WorldOffset,
		HeightMultiplier:  s.Height.Multiplier,
		HeightLaw:         s.Height.Law.String(),
		NoiseOffset:       w.NoiseOffset(),
		Faults:            sum.Faults,
		Started:           sum.Started,
	}
	for _, coord := range w.ChunkCoords() {
		c := w.Chunk(coord)
		cv := ChunkV1{X: coord.X, Y: coord.Y, Position: c.GlobalPosition()}
		if h := c.Heights(); h != nil {
			cv.Size = h.Size
			cv.Heights = append([]float32(nil), h.Values...)
		}
		if m := c.Mesh(); m != nil {
			cv.Vertices = make([]float32, 0, len(m.Vertices)*3)
			for _, v := range m.Vertices {
				cv.Vertices = append(cv.Vertices, v[0], v[1], v[2])
			}
			cv.UV = make([]float32, 0, len(m.UV)*2)
			for _, v := range m.UV {
				cv.UV = append(cv.UV, v[0], v[1])
			}
			cv.Colors = make([]float32, 0, len(m.Colors)*4)
			for _, v := range m.Colors {
				cv.Colors = append(cv.Colors, v[0], v[1], v[2], v[3])
			}
			cv.Triangles = append([]int32(nil), m.Triangles...)
		}
		d := c.Digest()
		cv.Digest = hex.EncodeToString(d[:])
		snap.Chunks = append(snap.Chunks, cv)
	}
	for _, so := range sum.Spawns {
		sv := SpawnV1{
			Template: so.Template,
			Position: so.Position,
			Rotation: [4]float32{so.Rotation.V[0], so.Rotation.V[1], so.Rotation.V[2], so.Rotation.W},
		}
		if so.Chunk != nil {
			sv.ChunkX, sv.ChunkY = so.Chunk.Coord().X, so.Chunk.Coord().Y
		}
		snap.Spawns = append(snap.Spawns, sv)
	}
	return snap
}

// Path names the snapshot of a run under dir.
func Path(dir string, runID uint64) string {
	return filepath.Join(dir, fmt.Sprintf("run-%06d.snap.zst", runID))
}

func WriteSnapshot(path string, snap WorldV1) (err error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()

	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return err
	}
	bw := bufio.NewWriterSize(enc, 256*1024)

	hb, err := json.Marshal(snap.Header)
	if err != nil {
		_ = enc.Close()
		return err
	}
	if _, err := bw.Write(append(hb, '\n')); err != nil {
		_ = enc.Close()
		return err
	}
	if err := gob.NewEncoder(bw).Encode(&snap); err != nil {
		_ = enc.Close()
		return fmt.Errorf("gob encode: %w", err)
	}
	if err := bw.Flush(); err != nil {
		_ = enc.Close()
		return err
	}
	return enc.Close()
}

// ReadHeader decodes only the JSON header line.
func ReadHeader(path string) (Header, error) {
	var h Header
	f, err := os.Open(path)
	if err != nil {
		return h, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return h, err
	}
	defer dec.Close()

	line, err := bufio.NewReader(dec).ReadBytes('\n')
	if err != nil {
		return h, fmt.Errorf("read header: %w", err)
	}
	if err := json.Unmarshal(line, &h); err != nil {
		return h, fmt.Errorf("decode header: %w", err)
	}
	if h.Version != Version {
		return h, fmt.Errorf("%w: %d", ErrVersion, h.Version)
	}
	return h, nil
}

func ReadSnapshot(path string) (WorldV1, error) {
	var snap WorldV1
	f, err := os.Open(path)
	if err != nil {
		return snap, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return snap, err
	}
	defer dec.Close()

	br := bufio.NewReaderSize(dec, 256*1024)

	// The gob body repeats the header.
	if _, err := br.ReadBytes('\n'); err != nil {
		return snap, fmt.Errorf("read header: %w", err)
	}
	if err := gob.NewDecoder(br).Decode(&snap); err != nil {
		return snap, fmt.Errorf("gob decode: %w", err)
	}
	if snap.Header.Version != Version {
		return snap, fmt.Errorf("%w: %d", ErrVersion, snap.Header.Version)
	}
	return snap, nil
}

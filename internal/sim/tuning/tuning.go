// Package tuning loads world, streaming and runtime settings from YAML.
package tuning

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"

	"github.com/shariarpapon/everime-world-generator/internal/sim/visibility"
	"github.com/shariarpapon/everime-world-generator/internal/sim/world"
	"github.com/shariarpapon/everime-world-generator/internal/sim/world/terrain/mesh"
	"github.com/shariarpapon/everime-world-generator/internal/sim/world/terrain/noise"
)

//go:embed tuning.schema.json
var schemaJSON []byte

const schemaURL = "tuning.schema.json"

type Tuning struct {
	World     World     `yaml:"world"`
	Height    Height    `yaml:"height"`
	Noise     Noise     `yaml:"noise"`
	Spawn     Spawn     `yaml:"spawn"`
	Streaming Streaming `yaml:"streaming"`
	Runtime   Runtime   `yaml:"runtime"`
}

type World struct {
	Seed             string     `yaml:"seed"`
	UseRandomSeed    bool       `yaml:"use_random_seed"`
	SeedContext      string     `yaml:"seed_context"`
	SizeInChunks     int        `yaml:"size_in_chunks"`
	ChunkSize        int        `yaml:"chunk_size"`
	Offset           [3]float32 `yaml:"offset"`
	Material         string     `yaml:"material"`
	GenerateCollider bool       `yaml:"generate_collider"`
	VisibleByDefault bool       `yaml:"visible_by_default"`
}

type Height struct {
	Multiplier    float32    `yaml:"multiplier"`
	Law           string     `yaml:"law"`
	RadialFalloff bool       `yaml:"radial_falloff"`
	Curve         Curve      `yaml:"curve"`
	Gradient      []ColorKey `yaml:"gradient"`
}

type Curve struct {
	Keys []Keyframe `yaml:"keys"`

	// Smooth recomputes tangents from neighbouring keys.
	Smooth bool `yaml:"smooth"`
}

type Keyframe struct {
	Time       float32 `yaml:"time"`
	Value      float32 `yaml:"value"`
	InTangent  float32 `yaml:"in_tangent"`
	OutTangent float32 `yaml:"out_tangent"`
}

type ColorKey struct {
	Time  float32    `yaml:"time"`
	Color [4]float32 `yaml:"color"`
}

type Noise struct {
	Source      string  `yaml:"source"`
	Scale       float64 `yaml:"scale"`
	Octaves     int     `yaml:"octaves"`
	Lacunarity  float64 `yaml:"lacunarity"`
	Persistence float64 `yaml:"persistence"`
	Frequency   float64 `yaml:"frequency"`
	Amplitude   float64 `yaml:"amplitude"`
}

type Spawn struct {
	GlobalChance float32       `yaml:"global_chance"`
	Objects      []SpawnObject `yaml:"objects"`
}

type SpawnObject struct {
	Template     string  `yaml:"template"`
	MinHeight    float32 `yaml:"min_height"`
	MaxHeight    float32 `yaml:"max_height"`
	Chance       float32 `yaml:"chance"`
	RandomizeYaw bool    `yaml:"randomize_yaw"`
}

type Streaming struct {
	Enabled              bool    `yaml:"enabled"`
	Phase                string  `yaml:"phase"`
	VisibleChunksPerAxis int     `yaml:"visible_chunks_per_axis"`
	MaxViewDistance      float32 `yaml:"max_view_distance"`
	Workers              int     `yaml:"workers"`
}

type Runtime struct {
	FrameRateHz     int  `yaml:"frame_rate_hz"`
	FixedRateHz     int  `yaml:"fixed_rate_hz"`
	GenerateOnStart bool `yaml:"generate_on_start"`
}

// Default mirrors world.DefaultSettings plus streaming and runtime defaults.
func Default() Tuning {
	ws := world.DefaultSettings()
	t := Tuning{
		World: World{
			Seed:             ws.Seed,
			SeedContext:      ws.SeedContext,
			SizeInChunks:     ws.WorldSizeInChunks,
			ChunkSize:        ws.ChunkSize,
			Material:         ws.ChunkMaterial,
			VisibleByDefault: ws.VisibleByDefault,
		},
		Height: Height{
			Multiplier: ws.Height.Multiplier,
			Law:        ws.Height.Law.String(),
		},
		Noise: Noise{
			Source:      string(ws.Noise.Source),
			Scale:       ws.Noise.Scale,
			Octaves:     ws.Noise.Octaves,
			Lacunarity:  ws.Noise.Lacunarity,
			Persistence: ws.Noise.Persistence,
			Frequency:   ws.Noise.Frequency,
			Amplitude:   ws.Noise.Amplitude,
		},
		Spawn: Spawn{GlobalChance: ws.Spawn.GlobalChance},
		Streaming: Streaming{
			Enabled:              true,
			Phase:                visibility.PhaseUpdate.String(),
			VisibleChunksPerAxis: 16,
		},
		Runtime: Runtime{
			FrameRateHz:     60,
			FixedRateHz:     50,
			GenerateOnStart: true,
		},
	}
	t.applyDefaults()
	return t
}

// applyDefaults fills values whose zero is never meaningful.
func (t *Tuning) applyDefaults() {
	if t.World.SeedContext == "" {
		t.World.SeedContext = world.DefaultSeedContext
	}
	if len(t.Height.Curve.Keys) == 0 {
		for _, k := range mesh.LinearCurve().Keys() {
			t.Height.Curve.Keys = append(t.Height.Curve.Keys, Keyframe(k))
		}
	}
	if len(t.Height.Gradient) == 0 {
		for _, k := range mesh.GrayscaleGradient().Keys() {
			t.Height.Gradient = append(t.Height.Gradient, ColorKey{Time: k.Time, Color: [4]float32(k.Color)})
		}
	}
	if t.Streaming.Phase == "" {
		t.Streaming.Phase = visibility.PhaseUpdate.String()
	}
	if t.Runtime.FrameRateHz <= 0 {
		t.Runtime.FrameRateHz = 60
	}
	if t.Runtime.FixedRateHz <= 0 {
		t.Runtime.FixedRateHz = 50
	}
}

// Load reads path over Default, validates the document against the embedded
// schema and applies defaults.
func Load(path string) (Tuning, error) {
	t := Default()
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := Validate(raw); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	t.applyDefaults()
	return t, nil
}

// Validate checks a YAML document against the tuning schema.
func Validate(raw []byte) error {
	sch, err := compileSchema()
	if err != nil {
		return err
	}
	var doc any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return err
	}
	if doc == nil {
		return nil
	}
	// Round-trip through JSON so the validator sees plain JSON values.
	b, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	var v any
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	if err := dec.Decode(&v); err != nil {
		return err
	}
	return sch.Validate(v)
}

func compileSchema() (*jsonschema.Schema, error) {
	c := jsonschema.NewCompiler()
	if err := c.AddResource(schemaURL, bytes.NewReader(schemaJSON)); err != nil {
		return nil, err
	}
	return c.Compile(schemaURL)
}

// WorldSettings converts the world, height, noise and spawn sections.
func (t Tuning) WorldSettings() (*world.WorldSettings, error) {
	law, err := mesh.ParseHeightLaw(t.Height.Law)
	if err != nil {
		return nil, err
	}
	src, err := noise.ParseSource(t.Noise.Source)
	if err != nil {
		return nil, err
	}

	keys := make([]mesh.Keyframe, 0, len(t.Height.Curve.Keys))
	for _, k := range t.Height.Curve.Keys {
		keys = append(keys, mesh.Keyframe(k))
	}
	curve := mesh.NewCurve(keys...)
	if t.Height.Curve.Smooth {
		curve = curve.SmoothTangents()
	}
	colors := make([]mesh.ColorKey, 0, len(t.Height.Gradient))
	for _, k := range t.Height.Gradient {
		colors = append(colors, mesh.ColorKey{Time: k.Time, Color: mgl32.Vec4(k.Color)})
	}

	objects := make([]world.SpawnData, 0, len(t.Spawn.Objects))
	for _, o := range t.Spawn.Objects {
		objects = append(objects, world.SpawnData(o))
	}

	return &world.WorldSettings{
		Seed:              t.World.Seed,
		UseRandomSeed:     t.World.UseRandomSeed,
		SeedContext:       t.World.SeedContext,
		WorldSizeInChunks: t.World.SizeInChunks,
		ChunkSize:         t.World.ChunkSize,
		WorldOffset:       mgl32.Vec3(t.World.Offset),
		ChunkMaterial:     t.World.Material,
		GenerateCollider:  t.World.GenerateCollider,
		VisibleByDefault:  t.World.VisibleByDefault,
		Height: world.HeightSettings{
			Multiplier:    t.Height.Multiplier,
			Law:           law,
			Curve:         curve,
			Gradient:      mesh.NewGradient(colors...),
			RadialFalloff: t.Height.RadialFalloff,
		},
		Noise: noise.Settings{
			Scale:       t.Noise.Scale,
			Octaves:     t.Noise.Octaves,
			Lacunarity:  t.Noise.Lacunarity,
			Persistence: t.Noise.Persistence,
			Source:      src,
			Frequency:   t.Noise.Frequency,
			Amplitude:   t.Noise.Amplitude,
		},
		Spawn: world.SpawnSettings{
			GlobalChance: t.Spawn.GlobalChance,
			Objects:      objects,
		},
	}, nil
}

func (t Tuning) StreamerConfig(logger *log.Logger) (visibility.Config, error) {
	phase, err := visibility.ParsePhase(t.Streaming.Phase)
	if err != nil {
		return visibility.Config{}, err
	}
	return visibility.Config{
		Enabled:              t.Streaming.Enabled,
		Phase:                phase,
		VisibleChunksPerAxis: t.Streaming.VisibleChunksPerAxis,
		Logger:               logger,
		MaxViewDistance:      t.Streaming.MaxViewDistance,
	}, nil
}

// Templates lists the distinct spawn templates in declaration order.
func (t Tuning) Templates() []string {
	seen := map[string]bool{}
	var out []string
	for _, o := range t.Spawn.Objects {
		if o.Template == "" || seen[o.Template] {
			continue
		}
		seen[o.Template] = true
		out = append(out, o.Template)
	}
	return out
}

func (r Runtime) FrameInterval() time.Duration { return hz(r.FrameRateHz) }
func (r Runtime) FixedInterval() time.Duration { return hz(r.FixedRateHz) }

func hz(n int) time.Duration {
	if n <= 0 {
		n = 1
	}
	return time.Second / time.Duration(n)
}

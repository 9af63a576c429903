package master

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"math/rand"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/shariarpapon/everime-world-generator/internal/sim/world"
	"github.com/shariarpapon/everime-world-generator/internal/sim/world/terrain/heightmap"
	"github.com/shariarpapon/everime-world-generator/internal/sim/world/terrain/mesh"
)

type fakePresenter struct {
	next        world.Handle
	names       map[world.Handle]string
	active      map[world.Handle]bool
	destroyed   map[world.Handle]bool
	parents     map[world.Handle]world.Handle
	instances   []string
	renderables []world.Handle
	spawned     []world.Handle
}

func newFakePresenter() *fakePresenter {
	return &fakePresenter{
		names:     map[world.Handle]string{},
		active:    map[world.Handle]bool{},
		destroyed: map[world.Handle]bool{},
		parents:   map[world.Handle]world.Handle{},
	}
}

func (p *fakePresenter) CreateNode(name string, _ mgl32.Vec3) world.Handle {
	p.next++
	p.names[p.next] = name
	return p.next
}

func (p *fakePresenter) CreateRenderable(_ *mesh.Data, _ world.RenderOptions) world.Handle {
	p.next++
	p.renderables = append(p.renderables, p.next)
	return p.next
}

func (p *fakePresenter) Attach(child, parent world.Handle) { p.parents[child] = parent }

func (p *fakePresenter) Instantiate(template string, _ mgl32.Vec3, _ mgl32.Quat, parent world.Handle) (world.Handle, error) {
	if template == "missing" {
		return world.NoHandle, errors.New("unknown template")
	}
	p.next++
	p.parents[p.next] = parent
	p.instances = append(p.instances, template)
	p.spawned = append(p.spawned, p.next)
	return p.next, nil
}

func (p *fakePresenter) SetActive(h world.Handle, active bool) { p.active[h] = active }
func (p *fakePresenter) Destroy(h world.Handle)                { p.destroyed[h] = true }

func quietLogger() *log.Logger { return log.New(io.Discard, "", 0) }

func smallSettings() *world.WorldSettings {
	s := world.DefaultSettings()
	s.Seed = "scenario"
	s.WorldSizeInChunks = 2
	s.ChunkSize = 4
	s.Noise.Scale = 7
	s.Noise.Octaves = 3
	s.Noise.Lacunarity = 2
	s.Noise.Persistence = 0.5
	return &s
}

func drainUntilIdle(t *testing.T, m *Master) {
	t.Helper()
	deadline := time.Now().Add(10 * time.Second)
	for m.Running() {
		if time.Now().After(deadline) {
			t.Fatalf("generation did not complete; state=%s", m.State())
		}
		m.Drain()
		time.Sleep(time.Millisecond)
	}
}

func TestGenerateWorldScenario(t *testing.T) {
	p := newFakePresenter()
	var completions []Summary
	m := New(smallSettings(), p, Options{
		Logger:     quietLogger(),
		OnComplete: func(s Summary) { completions = append(completions, s) },
	})
	defer m.Close()

	if err := m.GenerateWorld(context.Background()); err != nil {
		t.Fatalf("GenerateWorld: %v", err)
	}
	if !m.Running() {
		t.Fatalf("expected running after GenerateWorld")
	}
	drainUntilIdle(t, m)
	m.Drain()
	m.Drain()

	if len(completions) != 1 {
		t.Fatalf("completion fired %d times", len(completions))
	}
	w := m.World()
	if w == nil || w.Len() != 4 {
		t.Fatalf("expected 4 chunks")
	}
	for _, k := range w.ChunkCoords() {
		c := w.Chunk(k)
		if !c.Instantiated() {
			t.Fatalf("chunk %v not instantiated", k)
		}
		if got := len(c.Mesh().Vertices); got != 25 {
			t.Fatalf("chunk %v vertices=%d", k, got)
		}
		if got := len(c.Mesh().Triangles); got != 96 {
			t.Fatalf("chunk %v triangle indices=%d", k, got)
		}
		if err := c.Mesh().Validate(); err != nil {
			t.Fatalf("chunk %v: %v", k, err)
		}
		for _, v := range c.Heights().Values {
			if v < 0 || v > 1 {
				t.Fatalf("chunk %v has unnormalized height %v", k, v)
			}
		}
	}
	if info := m.Info(); info.ChunksReady != 4 || info.ChunksTotal != 4 || info.State != StateIdle {
		t.Fatalf("info = %+v", info)
	}
}

func generateOnce(t *testing.T, s *world.WorldSettings) Summary {
	t.Helper()
	var sum Summary
	m := New(s, newFakePresenter(), Options{Logger: quietLogger(), OnComplete: func(s Summary) { sum = s }})
	defer m.Close()
	if err := m.GenerateWorld(context.Background()); err != nil {
		t.Fatalf("GenerateWorld: %v", err)
	}
	drainUntilIdle(t, m)
	return sum
}

func TestGenerateWorldDeterministic(t *testing.T) {
	mk := func() *world.WorldSettings {
		s := smallSettings()
		s.WorldSizeInChunks = 3
		s.Height.Multiplier = 10
		s.Spawn = world.SpawnSettings{
			GlobalChance: 0.6,
			Objects: []world.SpawnData{
				{Template: "tree", MinHeight: 0, MaxHeight: 10, Chance: 0.8, RandomizeYaw: true},
				{Template: "rock", MinHeight: 0, MaxHeight: 10, Chance: 0.5},
			},
		}
		return s
	}
	a := generateOnce(t, mk())
	b := generateOnce(t, mk())
	if a.Digest != b.Digest {
		t.Fatalf("digests differ: %x vs %x", a.Digest, b.Digest)
	}
	if a.CombinedSeed != b.CombinedSeed {
		t.Fatalf("combined seeds differ")
	}
	if len(a.Spawns) == 0 || len(a.Spawns) != len(b.Spawns) {
		t.Fatalf("spawn counts %d vs %d", len(a.Spawns), len(b.Spawns))
	}
	for i := range a.Spawns {
		sa, sb := a.Spawns[i], b.Spawns[i]
		if sa.Template != sb.Template || sa.Position != sb.Position || sa.Rotation != sb.Rotation {
			t.Fatalf("spawn %d differs: %+v vs %+v", i, sa, sb)
		}
	}

	other := mk()
	other.Seed = "another"
	if c := generateOnce(t, other); c.Digest == a.Digest {
		t.Fatalf("different seeds produced the same world")
	}
}

func TestGenerateWorldWithoutSettings(t *testing.T) {
	m := New(nil, newFakePresenter(), Options{Logger: quietLogger()})
	if err := m.GenerateWorld(context.Background()); !errors.Is(err, ErrNoSettings) {
		t.Fatalf("expected ErrNoSettings, got %v", err)
	}
	if m.World() != nil || m.Running() {
		t.Fatalf("no world should exist")
	}
	faults := m.Faults()
	if len(faults) != 1 || faults[0].Kind != FaultConfig {
		t.Fatalf("faults = %+v", faults)
	}
}

func TestRegenerateDiscardsPreviousRun(t *testing.T) {
	p := newFakePresenter()
	var completions []Summary
	s := smallSettings()
	s.WorldSizeInChunks = 6
	s.ChunkSize = 16
	m := New(s, p, Options{Logger: quietLogger(), OnComplete: func(s Summary) { completions = append(completions, s) }})
	defer m.Close()

	if err := m.GenerateWorld(context.Background()); err != nil {
		t.Fatalf("first GenerateWorld: %v", err)
	}
	first := m.World()
	if err := m.GenerateWorld(context.Background()); err != nil {
		t.Fatalf("second GenerateWorld: %v", err)
	}
	if !p.destroyed[first.Root()] {
		t.Fatalf("previous world root not destroyed")
	}
	drainUntilIdle(t, m)
	if len(completions) != 1 || completions[0].RunID != 2 {
		t.Fatalf("completions = %+v", completions)
	}
	if completions[0].World == first {
		t.Fatalf("completed the superseded world")
	}
}

func TestCorrectionsAreRecorded(t *testing.T) {
	s := smallSettings()
	s.ChunkSize = 0
	s.Noise.Scale = 0
	m := New(s, newFakePresenter(), Options{Logger: quietLogger()})
	defer m.Close()
	if err := m.GenerateWorld(context.Background()); err != nil {
		t.Fatalf("GenerateWorld: %v", err)
	}
	drainUntilIdle(t, m)
	if got := m.World().Settings().ChunkSize; got != 1 {
		t.Fatalf("chunk size = %d", got)
	}
	var config int
	for _, f := range m.Faults() {
		if f.Kind == FaultConfig {
			config++
		}
	}
	if config != 2 {
		t.Fatalf("config faults = %d, want 2", config)
	}
}

func TestSpawnTemplateFaults(t *testing.T) {
	s := smallSettings()
	s.Spawn = world.SpawnSettings{
		GlobalChance: 1,
		Objects:      []world.SpawnData{{Template: "", MinHeight: -1000, MaxHeight: 1000, Chance: 1}},
	}
	p := newFakePresenter()
	m := New(s, p, Options{Logger: quietLogger()})
	defer m.Close()
	if err := m.GenerateWorld(context.Background()); err != nil {
		t.Fatalf("GenerateWorld: %v", err)
	}
	drainUntilIdle(t, m)
	if len(p.instances) != 0 || len(m.Spawns()) != 0 {
		t.Fatalf("template-less spawns were instantiated")
	}
	var data int
	for _, f := range m.Faults() {
		if f.Kind == FaultData {
			data++
		}
	}
	// 4 chunks of 25 vertices, every roll accepted.
	if data != 100 {
		t.Fatalf("data faults = %d, want 100", data)
	}
}

func TestSetChunkVisibility(t *testing.T) {
	p := newFakePresenter()
	m := New(smallSettings(), p, Options{Logger: quietLogger()})
	defer m.Close()
	m.SetChunkVisibility(true) // no world: no-op
	if err := m.GenerateWorld(context.Background()); err != nil {
		t.Fatalf("GenerateWorld: %v", err)
	}
	drainUntilIdle(t, m)
	w := m.World()
	m.SetChunkVisibility(true)
	for _, k := range w.ChunkCoords() {
		c := w.Chunk(k)
		if !c.Visible() || !p.active[c.NodeHandle()] {
			t.Fatalf("chunk %v not visible", k)
		}
	}
	m.ClearExistingWorld()
	if m.World() != nil {
		t.Fatalf("world not cleared")
	}
}

func TestSelectSpawnsDrawOrder(t *testing.T) {
	c := world.NewChunk(world.ChunkData{GlobalPosition: mgl32.Vec3{10, 0, 20}}, false)
	c.SetMesh(mesh.NewData(2))
	for i := range c.Mesh().Vertices {
		c.Mesh().Vertices[i] = mgl32.Vec3{float32(i), float32(i), 0}
	}
	spawn := world.SpawnSettings{
		GlobalChance: 0.7,
		Objects: []world.SpawnData{
			{Template: "a", MinHeight: 0, MaxHeight: 2, Chance: 0.9, RandomizeYaw: true},
			{Template: "b", MinHeight: 1, MaxHeight: 3, Chance: 0.9},
		},
	}
	got := selectSpawns(rand.New(rand.NewSource(77)), c, spawn, 1)

	// Replay the same draws by hand.
	rng := rand.New(rand.NewSource(77))
	var want []string
	for i, v := range c.Mesh().Vertices {
		if float32(rng.Float64()) > spawn.GlobalChance {
			continue
		}
		obj := spawn.Objects[rng.Intn(2)]
		if float32(rng.Float64()) > obj.Chance || v.Y() < obj.MinHeight || v.Y() > obj.MaxHeight {
			continue
		}
		yaw := ""
		if obj.RandomizeYaw {
			yaw = fmt.Sprintf("%.4f", rng.Float64()*360)
		}
		want = append(want, fmt.Sprintf("%s@%d%s", obj.Template, i, yaw))
	}
	if len(got) != len(want) {
		t.Fatalf("got %d spawns, want %d (%v)", len(got), len(want), want)
	}
	for i, sp := range got {
		if sp.Position.X() < 10 || sp.Position.Z() != 20 {
			t.Fatalf("spawn %d not offset by chunk origin: %v", i, sp.Position)
		}
		if sp.Template != want[i][:1] {
			t.Fatalf("spawn %d template %q, want %q", i, sp.Template, want[i])
		}
		if sp.Template == "b" && sp.Rotation != mgl32.QuatIdent() {
			t.Fatalf("spawn %d without yaw randomization rotated: %v", i, sp.Rotation)
		}
	}
}

func TestSelectSpawnsNoObjectsNoDraws(t *testing.T) {
	c := world.NewChunk(world.ChunkData{}, false)
	c.SetMesh(mesh.NewData(3))
	rng := rand.New(rand.NewSource(5))
	if out := selectSpawns(rng, c, world.SpawnSettings{GlobalChance: 1}, 1); out != nil {
		t.Fatalf("unexpected spawns: %v", out)
	}
	if rng.Int63() != rand.New(rand.NewSource(5)).Int63() {
		t.Fatalf("rng advanced without spawn objects")
	}
}

func TestQueueDrain(t *testing.T) {
	q := NewQueue[int]()
	for i := 0; i < 5; i++ {
		q.Enqueue(i)
	}
	if got := q.Drain(2); len(got) != 2 || got[0] != 0 || got[1] != 1 {
		t.Fatalf("Drain(2) = %v", got)
	}
	if got := q.Drain(0); len(got) != 3 || got[2] != 4 {
		t.Fatalf("Drain(0) = %v", got)
	}
	if q.Len() != 0 || q.Drain(0) != nil {
		t.Fatalf("queue not empty")
	}
}

func TestSpawnDrainedBeforeItsChunk(t *testing.T) {
	p := newFakePresenter()
	s := smallSettings()
	s.WorldSizeInChunks = 1
	m := New(s, p, Options{Logger: quietLogger()})
	defer m.Close()

	w := world.New(s.Clone(), mgl32.Vec2{})
	root := p.CreateNode("World", mgl32.Vec3{})
	w.SetRoot(root)
	coord := world.ChunkCoord{}
	c := world.NewChunk(world.ChunkData{Heights: heightmap.NewField(s.ChunkSize + 1), Coord: coord, GlobalPosition: w.RelativeToGlobalChunkPosition(coord)}, true)
	c.BuildMesh(s.Height)
	w.AddChunk(c)

	r := newRun(1, w, func() {})
	m.current = r
	m.state.Store(int32(StateRunning))

	// A tick can take a spawn whose chunk has not been queued yet.
	r.spawns.Enqueue(SpawnObject{RunID: 1, Template: "pine", Chunk: c, Rotation: mgl32.QuatIdent()})
	m.Drain()
	if !m.Running() {
		t.Fatalf("run completed before its chunk was drained")
	}
	r.chunks.Enqueue(c)
	m.Drain()
	if m.Running() {
		t.Fatalf("run still %s after draining its only chunk", m.State())
	}

	var nodes []world.Handle
	for h, name := range p.names {
		if name == "Chunk "+coord.String() {
			nodes = append(nodes, h)
		}
	}
	if len(nodes) != 1 || nodes[0] != c.NodeHandle() {
		t.Fatalf("chunk nodes = %v, chunk holds %v", nodes, c.NodeHandle())
	}
	node := nodes[0]
	if p.parents[node] != root {
		t.Fatalf("chunk node parent = %v", p.parents[node])
	}
	if len(p.renderables) != 1 || p.parents[p.renderables[0]] != node {
		t.Fatalf("renderables = %v parents = %v", p.renderables, p.parents)
	}
	if len(p.spawned) != 1 || p.parents[p.spawned[0]] != node {
		t.Fatalf("instances = %v parents = %v", p.spawned, p.parents)
	}
	if got := m.Spawns(); len(got) != 1 || got[0].Template != "pine" {
		t.Fatalf("spawns = %+v", got)
	}
}

func TestSelectSpawnsFixedRotationWithoutYaw(t *testing.T) {
	c := world.NewChunk(world.ChunkData{}, false)
	c.SetMesh(mesh.NewData(3))
	spawn := world.SpawnSettings{
		GlobalChance: 1,
		Objects:      []world.SpawnData{{Template: "rock", MinHeight: -1, MaxHeight: 1, Chance: 1}},
	}
	got := selectSpawns(rand.New(rand.NewSource(5)), c, spawn, 1)
	if len(got) != 9 {
		t.Fatalf("got %d spawns, want one per vertex", len(got))
	}
	for i, sp := range got {
		if sp.Rotation != mgl32.QuatIdent() {
			t.Fatalf("spawn %d rotation = %v", i, sp.Rotation)
		}
	}
}

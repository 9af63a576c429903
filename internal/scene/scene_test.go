package scene

import (
	"errors"
	"testing"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/shariarpapon/everime-world-generator/internal/sim/world"
	"github.com/shariarpapon/everime-world-generator/internal/sim/world/terrain/heightmap"
	"github.com/shariarpapon/everime-world-generator/internal/sim/world/terrain/mesh"
)

var _ world.Presenter = (*Scene)(nil)

func TestSceneHierarchyAndDestroy(t *testing.T) {
	s := New()
	root := s.CreateNode("World", mgl32.Vec3{})
	chunk := s.CreateNode("Chunk 0,0", mgl32.Vec3{4, 0, 4})
	s.Attach(chunk, root)
	r := s.CreateRenderable(mesh.Build(heightmap.NewField(3), 1, nil, nil, mesh.LawIdentity), world.RenderOptions{Material: "terrain", Collider: true})
	s.Attach(r, chunk)
	tree, err := s.Instantiate("tree", mgl32.Vec3{5, 1, 5}, mgl32.QuatIdent(), chunk)
	if err != nil {
		t.Fatalf("Instantiate: %v", err)
	}

	if got := s.Children(chunk); len(got) != 2 || got[0] != r || got[1] != tree {
		t.Fatalf("children = %v", got)
	}
	n, ok := s.Node(r)
	if !ok || n.Parent != chunk || n.Material != "terrain" || !n.Collider || n.Mesh == nil {
		t.Fatalf("renderable = %+v", n)
	}
	if len(n.Normals) != len(n.Mesh.Vertices) || !n.Normals[4].ApproxEqual(mgl32.Vec3{0, 1, 0}) {
		t.Fatalf("renderable normals = %v", n.Normals)
	}

	s.SetActive(chunk, false)
	if s.ActiveInHierarchy(tree) {
		t.Fatalf("tree should be hidden with its chunk")
	}
	s.SetActive(chunk, true)
	if !s.ActiveInHierarchy(tree) {
		t.Fatalf("tree should be visible again")
	}

	s.Destroy(root)
	if s.Len() != 0 {
		t.Fatalf("destroy left %d nodes", s.Len())
	}
	s.SetActive(chunk, false) // stale handle: ignored
}

func TestSceneTemplates(t *testing.T) {
	s := New()
	if _, err := s.Instantiate("", mgl32.Vec3{}, mgl32.QuatIdent(), world.NoHandle); !errors.Is(err, ErrUnknownTemplate) {
		t.Fatalf("empty template: %v", err)
	}
	s.RegisterTemplates("tree", "rock")
	if _, err := s.Instantiate("bush", mgl32.Vec3{}, mgl32.QuatIdent(), world.NoHandle); !errors.Is(err, ErrUnknownTemplate) {
		t.Fatalf("unregistered template: %v", err)
	}
	if _, err := s.Instantiate("rock", mgl32.Vec3{}, mgl32.QuatIdent(), world.NoHandle); err != nil {
		t.Fatalf("registered template: %v", err)
	}
}

func TestSubscribeReplaysThenStreams(t *testing.T) {
	s := New()
	root := s.CreateNode("World", mgl32.Vec3{})
	chunk := s.CreateNode("Chunk", mgl32.Vec3{})
	s.Attach(chunk, root)

	ch, cancel := s.Subscribe(8)
	defer cancel()
	first, second := <-ch, <-ch
	if first.ID != root || second.ID != chunk || second.Parent != root {
		t.Fatalf("replay = %+v, %+v", first, second)
	}

	s.SetActive(chunk, false)
	s.SetActive(chunk, false)
	ev := <-ch
	if ev.Kind != EventActive || ev.ID != chunk || ev.Active {
		t.Fatalf("active event = %+v", ev)
	}
	s.Destroy(chunk)
	if ev := <-ch; ev.Kind != EventDestroy || ev.ID != chunk {
		t.Fatalf("destroy event = %+v", ev)
	}
	select {
	case ev := <-ch:
		t.Fatalf("unexpected event %+v", ev)
	default:
	}
}

func TestSlowSubscriberIsDropped(t *testing.T) {
	s := New()
	ch, cancel := s.Subscribe(1)
	defer cancel()
	for i := 0; i < 5; i++ {
		s.CreateNode("n", mgl32.Vec3{})
	}
	var n int
	for range ch {
		n++
	}
	if n == 0 || n > 2 {
		t.Fatalf("slow subscriber received %d events", n)
	}
}

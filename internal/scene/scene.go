// Package scene is a headless scene graph. It implements world.Presenter and
// publishes every change to subscribers, which is how viewers follow a world
// being generated.
package scene

import (
	"errors"
	"fmt"
	"sync"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/shariarpapon/everime-world-generator/internal/sim/world"
	"github.com/shariarpapon/everime-world-generator/internal/sim/world/terrain/mesh"
)

var ErrUnknownTemplate = errors.New("unknown object template")

type NodeKind string

const (
	KindNode       NodeKind = "node"
	KindRenderable NodeKind = "renderable"
	KindInstance   NodeKind = "instance"
)

type Node struct {
	ID       world.Handle
	Kind     NodeKind
	Name     string
	Parent   world.Handle
	Active   bool
	Position mgl32.Vec3
	Rotation mgl32.Quat

	// Renderables.
	Mesh     *mesh.Data
	Normals  []mgl32.Vec3
	Material string
	Collider bool

	// Instances.
	Template string
}

type Scene struct {
	mu        sync.Mutex
	next      world.Handle
	nodes     map[world.Handle]*Node
	children  map[world.Handle][]world.Handle
	order     []world.Handle
	templates map[string]bool
	subs      map[int]*subscriber
	nextSub   int
}

func New() *Scene {
	return &Scene{
		nodes:    map[world.Handle]*Node{},
		children: map[world.Handle][]world.Handle{},
		subs:     map[int]*subscriber{},
	}
}

// RegisterTemplates restricts Instantiate to the named templates. A scene
// with no registered templates accepts any name.
func (s *Scene) RegisterTemplates(names ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.templates == nil {
		s.templates = map[string]bool{}
	}
	for _, n := range names {
		s.templates[n] = true
	}
}

func (s *Scene) add(n *Node) world.Handle {
	s.next++
	n.ID = s.next
	s.nodes[n.ID] = n
	s.order = append(s.order, n.ID)
	return n.ID
}

func (s *Scene) CreateNode(name string, position mgl32.Vec3) world.Handle {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := &Node{Kind: KindNode, Name: name, Active: true, Position: position, Rotation: mgl32.QuatIdent()}
	s.add(n)
	s.publish(nodeEvent(n))
	return n.ID
}

func (s *Scene) CreateRenderable(m *mesh.Data, opts world.RenderOptions) world.Handle {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := &Node{Kind: KindRenderable, Active: true, Rotation: mgl32.QuatIdent(), Mesh: m, Material: opts.Material, Collider: opts.Collider}
	if m != nil {
		n.Normals = m.Normals()
	}
	s.add(n)
	return n.ID
}

// Attach reparents child. Renderables are published once attached, since
// their position comes from the parent.
func (s *Scene) Attach(child, parent world.Handle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.nodes[child]
	if !ok {
		return
	}
	if _, ok := s.nodes[parent]; !ok && parent != world.NoHandle {
		return
	}
	if c.Parent != world.NoHandle {
		s.children[c.Parent] = removeHandle(s.children[c.Parent], child)
	}
	c.Parent = parent
	if parent != world.NoHandle {
		s.children[parent] = append(s.children[parent], child)
	}
	s.publish(nodeEvent(c))
}

func (s *Scene) Instantiate(template string, position mgl32.Vec3, rotation mgl32.Quat, parent world.Handle) (world.Handle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if template == "" || (s.templates != nil && !s.templates[template]) {
		return world.NoHandle, fmt.Errorf("%w: %q", ErrUnknownTemplate, template)
	}
	n := &Node{Kind: KindInstance, Active: true, Position: position, Rotation: rotation, Template: template, Parent: parent}
	s.add(n)
	if parent != world.NoHandle {
		s.children[parent] = append(s.children[parent], n.ID)
	}
	s.publish(nodeEvent(n))
	return n.ID, nil
}

// SetActive publishes only actual changes.
func (s *Scene) SetActive(h world.Handle, active bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.nodes[h]
	if !ok || n.Active == active {
		return
	}
	n.Active = active
	s.publish(Event{Kind: EventActive, ID: h, Active: active})
}

// Destroy removes h and its whole subtree.
func (s *Scene) Destroy(h world.Handle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.nodes[h]
	if !ok {
		return
	}
	if n.Parent != world.NoHandle {
		s.children[n.Parent] = removeHandle(s.children[n.Parent], h)
	}
	s.destroyLocked(h)
	kept := s.order[:0]
	for _, id := range s.order {
		if _, ok := s.nodes[id]; ok {
			kept = append(kept, id)
		}
	}
	s.order = kept
	s.publish(Event{Kind: EventDestroy, ID: h})
}

func (s *Scene) destroyLocked(h world.Handle) {
	for _, c := range s.children[h] {
		s.destroyLocked(c)
	}
	delete(s.children, h)
	delete(s.nodes, h)
}

// Node returns a copy of the node, if it exists.
func (s *Scene) Node(h world.Handle) (Node, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.nodes[h]
	if !ok {
		return Node{}, false
	}
	return *n, true
}

func (s *Scene) Children(h world.Handle) []world.Handle {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]world.Handle(nil), s.children[h]...)
}

func (s *Scene) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.nodes)
}

// ActiveInHierarchy reports whether h and all of its ancestors are active.
func (s *Scene) ActiveInHierarchy(h world.Handle) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for h != world.NoHandle {
		n, ok := s.nodes[h]
		if !ok || !n.Active {
			return false
		}
		h = n.Parent
	}
	return true
}

func removeHandle(list []world.Handle, h world.Handle) []world.Handle {
	for i, v := range list {
		if v == h {
			return append(list[:i], list[i+1:]...)
		}
	}
	return list
}

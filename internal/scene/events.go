package scene

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/shariarpapon/everime-world-generator/internal/sim/world"
	"github.com/shariarpapon/everime-world-generator/internal/sim/world/terrain/mesh"
)

type EventKind string

// EventOverflow is the last event of a subscriber that fell behind.
const (
	EventNode     EventKind = "node"
	EventActive   EventKind = "active"
	EventDestroy  EventKind = "destroy"
	EventOverflow EventKind = "overflow"
)

type Event struct {
	Kind     EventKind
	ID       world.Handle
	NodeKind NodeKind
	Parent   world.Handle
	Name     string
	Active   bool
	Position mgl32.Vec3
	Rotation mgl32.Quat
	Mesh     *mesh.Data
	Normals  []mgl32.Vec3
	Material string
	Collider bool
	Template string
}

func nodeEvent(n *Node) Event {
	return Event{
		Kind:     EventNode,
		ID:       n.ID,
		NodeKind: n.Kind,
		Parent:   n.Parent,
		Name:     n.Name,
		Active:   n.Active,
		Position: n.Position,
		Rotation: n.Rotation,
		Mesh:     n.Mesh,
		Normals:  n.Normals,
		Material: n.Material,
		Collider: n.Collider,
		Template: n.Template,
	}
}

type subscriber struct {
	ch chan Event
}

// Subscribe returns a channel that first replays the current scene, then
// carries every change. A subscriber that falls behind by more than buffer
// events is closed, after an EventOverflow when there is room for one.
func (s *Scene) Subscribe(buffer int) (<-chan Event, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if buffer < len(s.order)+1 {
		buffer = len(s.order) + 1
	}
	sub := &subscriber{ch: make(chan Event, buffer)}
	for _, id := range s.order {
		n := s.nodes[id]
		if n.Kind == KindRenderable && n.Parent == world.NoHandle {
			continue
		}
		sub.ch <- nodeEvent(n)
	}
	s.nextSub++
	id := s.nextSub
	s.subs[id] = sub

	var once bool
	cancel := func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if once {
			return
		}
		once = true
		if cur, ok := s.subs[id]; ok {
			delete(s.subs, id)
			close(cur.ch)
		}
	}
	return sub.ch, cancel
}

func (s *Scene) publish(e Event) {
	for id, sub := range s.subs {
		select {
		case sub.ch <- e:
		default:
			// Full: drop the subscriber rather than block the caller.
			delete(s.subs, id)
			select {
			case sub.ch <- Event{Kind: EventOverflow}:
			default:
			}
			close(sub.ch)
		}
	}
}

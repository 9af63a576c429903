package observer

import (
	"encoding/json"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/shariarpapon/everime-world-generator/internal/observerproto"
	"github.com/shariarpapon/everime-world-generator/internal/scene"
	"github.com/shariarpapon/everime-world-generator/internal/sim/world/terrain/mesh"
)

// encodeEvent maps a scene change to its wire message. ok is false for
// events the feed does not forward.
func encodeEvent(e scene.Event, skipMeshes bool) (b []byte, ok bool, err error) {
	var msg any
	switch e.Kind {
	case scene.EventActive:
		msg = observerproto.ActiveMsg{Type: observerproto.TypeActive, ID: uint64(e.ID), Active: e.Active}
	case scene.EventDestroy:
		msg = observerproto.DestroyMsg{Type: observerproto.TypeDestroy, ID: uint64(e.ID)}
	case scene.EventNode:
		switch e.NodeKind {
		case scene.KindRenderable:
			if skipMeshes || e.Mesh == nil {
				return nil, false, nil
			}
			msg = meshMsg(e)
		case scene.KindInstance:
			msg = observerproto.SpawnMsg{
				Type:     observerproto.TypeSpawn,
				ID:       uint64(e.ID),
				Parent:   uint64(e.Parent),
				Template: e.Template,
				Position: vec3(e.Position),
				Rotation: [4]float32{e.Rotation.V[0], e.Rotation.V[1], e.Rotation.V[2], e.Rotation.W},
			}
		default:
			msg = observerproto.NodeMsg{
				Type:     observerproto.TypeNode,
				ID:       uint64(e.ID),
				Parent:   uint64(e.Parent),
				Name:     e.Name,
				Position: vec3(e.Position),
				Active:   e.Active,
			}
		}
	default:
		return nil, false, nil
	}
	b, err = json.Marshal(msg)
	if err != nil {
		return nil, false, err
	}
	return b, true, nil
}

func meshMsg(e scene.Event) observerproto.MeshMsg {
	return observerproto.MeshMsg{
		Type:      observerproto.TypeMesh,
		ID:        uint64(e.ID),
		Parent:    uint64(e.Parent),
		Material:  e.Material,
		Collider:  e.Collider,
		Vertices:  flatten3(e.Mesh.Vertices),
		Normals:   flatten3(e.Normals),
		UV:        flatten2(e.Mesh),
		Colors:    flatten4(e.Mesh),
		Triangles: e.Mesh.Triangles,
	}
}

func vec3(v mgl32.Vec3) [3]float32 { return [3]float32{v[0], v[1], v[2]} }

func flatten3(vs []mgl32.Vec3) []float32 {
	out := make([]float32, 0, len(vs)*3)
	for _, v := range vs {
		out = append(out, v[0], v[1], v[2])
	}
	return out
}

func flatten2(m *mesh.Data) []float32 {
	out := make([]float32, 0, len(m.UV)*2)
	for _, v := range m.UV {
		out = append(out, v[0], v[1])
	}
	return out
}

func flatten4(m *mesh.Data) []float32 {
	out := make([]float32, 0, len(m.Colors)*4)
	for _, v := range m.Colors {
		out = append(out, v[0], v[1], v[2], v[3])
	}
	return out
}

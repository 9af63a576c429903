// Package mesh turns normalized height fields into renderable grid geometry.
package mesh

import (
	"errors"
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
)

var ErrTriangleIndex = errors.New("triangle index out of range")

// Data is the geometry of one chunk: n² vertices laid out [x*n+y] and
// 6(n-1)² triangle indices, two triangles per grid cell.
type Data struct {
	Size      int
	Vertices  []mgl32.Vec3
	UV        []mgl32.Vec2
	Colors    []mgl32.Vec4
	Triangles []int32

	triangleIndex int
}

func NewData(n int) *Data {
	cells := 0
	if n > 1 {
		cells = (n - 1) * (n - 1)
	}
	return &Data{
		Size:      n,
		Vertices:  make([]mgl32.Vec3, n*n),
		UV:        make([]mgl32.Vec2, n*n),
		Colors:    make([]mgl32.Vec4, n*n),
		Triangles: make([]int32, cells*6),
	}
}

func (d *Data) addTriangle(a, b, c int) {
	d.Triangles[d.triangleIndex] = int32(a)
	d.Triangles[d.triangleIndex+1] = int32(b)
	d.Triangles[d.triangleIndex+2] = int32(c)
	d.triangleIndex += 3
}

func (d *Data) Validate() error {
	for i, idx := range d.Triangles {
		if idx < 0 || int(idx) >= len(d.Vertices) {
			return fmt.Errorf("%w: triangles[%d]=%d, vertices=%d", ErrTriangleIndex, i, idx, len(d.Vertices))
		}
	}
	return nil
}

// Normals returns per-vertex normals: the normalized sum of the face normals
// of every triangle touching the vertex.
func (d *Data) Normals() []mgl32.Vec3 {
	normals := make([]mgl32.Vec3, len(d.Vertices))
	for t := 0; t+2 < len(d.Triangles); t += 3 {
		a, b, c := d.Triangles[t], d.Triangles[t+1], d.Triangles[t+2]
		pa, pb, pc := d.Vertices[a], d.Vertices[b], d.Vertices[c]
		face := pb.Sub(pa).Cross(pc.Sub(pa))
		normals[a] = normals[a].Add(face)
		normals[b] = normals[b].Add(face)
		normals[c] = normals[c].Add(face)
	}
	for i, n := range normals {
		if n.Len() > 0 {
			normals[i] = n.Normalize()
		}
	}
	return normals
}

func (d *Data) Clone() *Data {
	if d == nil {
		return nil
	}
	out := &Data{
		Size:          d.Size,
		Vertices:      append([]mgl32.Vec3(nil), d.Vertices...),
		UV:            append([]mgl32.Vec2(nil), d.UV...),
		Colors:        append([]mgl32.Vec4(nil), d.Colors...),
		Triangles:     append([]int32(nil), d.Triangles...),
		triangleIndex: d.triangleIndex,
	}
	return out
}

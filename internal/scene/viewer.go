package scene

import (
	"sync"

	"github.com/go-gl/mathgl/mgl32"
)

// Viewer is the camera position chunk visibility streams around. It is
// written by transports and read by the presentation goroutine.
type Viewer struct {
	mu  sync.RWMutex
	pos mgl32.Vec3
}

func NewViewer(pos mgl32.Vec3) *Viewer {
	return &Viewer{pos: pos}
}

func (v *Viewer) Position() mgl32.Vec3 {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.pos
}

func (v *Viewer) SetPosition(p mgl32.Vec3) {
	v.mu.Lock()
	v.pos = p
	v.mu.Unlock()
}

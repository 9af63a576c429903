package visibility

import (
	"errors"
	"runtime"

	"github.com/alitto/pond/v2"
)

var ErrDeviceClosed = errors.New("compute device closed")

// Device runs kernels over a compute buffer. Dispatch returns after every
// thread group has finished.
type Device interface {
	NewBuffer(count, stride int) *ComputeBuffer
	Dispatch(k KernelID, buf *ComputeBuffer, u Uniforms, groupsX, groupsY int) error
}

// CPUDevice runs one pool task per thread group. A panicking kernel fails the
// whole dispatch.
type CPUDevice struct {
	pool pond.Pool
}

func NewCPUDevice(workers int) *CPUDevice {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &CPUDevice{pool: pond.NewPool(workers)}
}

func (d *CPUDevice) NewBuffer(count, stride int) *ComputeBuffer {
	return NewComputeBuffer(count, stride)
}

func (d *CPUDevice) Dispatch(k KernelID, buf *ComputeBuffer, u Uniforms, groupsX, groupsY int) error {
	fn, ok := kernels[k]
	if !ok {
		return ErrUnknownKernel
	}
	if buf.released {
		return ErrBufferReleased
	}
	if d.pool.Stopped() {
		return ErrDeviceClosed
	}
	slots := buf.data

	group := d.pool.NewGroup()
	for gx := 0; gx < groupsX; gx++ {
		for gy := 0; gy < groupsY; gy++ {
			baseX := gx * ThreadGroupSize
			baseY := gy * ThreadGroupSize
			group.Submit(func() {
				// Each thread writes only its own slot.
				for tx := 0; tx < ThreadGroupSize; tx++ {
					for ty := 0; ty < ThreadGroupSize; ty++ {
						fn(ThreadID{X: baseX + tx, Y: baseY + ty}, slots, &u)
					}
				}
			})
		}
	}
	return group.Wait()
}

func (d *CPUDevice) Close() {
	d.pool.StopAndWait()
}

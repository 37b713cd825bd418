package layer

import (
	"strings"

	"github.com/pkg/errors"
)

// DeviceType represents the hardware device used for computation.
type DeviceType int

const (
	CPU DeviceType = iota
	GPU
)

func (t DeviceType) String() string {
	switch t {
	case CPU:
		return "cpu"
	case GPU:
		return "gpu"
	default:
		return "unknown"
	}
}

// ErrDeviceUnavailable is returned when the requested device cannot be used.
var ErrDeviceUnavailable = errors.New("device unavailable")

// Device manages the hardware resources for neural network operations.
type Device interface {
	Type() DeviceType
	IsAvailable() bool
	String() string
}

// CPUDevice handles computations on the host CPU.
type CPUDevice struct{}

func (d *CPUDevice) Type() DeviceType  { return CPU }
func (d *CPUDevice) IsAvailable() bool { return true }
func (d *CPUDevice) String() string    { return "cpu" }

// acceleratorDevice stands for a GPU backend. None is compiled into this build,
// so it always reports itself unavailable.
type acceleratorDevice struct{}

func (d *acceleratorDevice) Type() DeviceType  { return GPU }
func (d *acceleratorDevice) IsAvailable() bool { return false }
func (d *acceleratorDevice) String() string    { return "gpu" }

// DefaultDevice returns the best available device for the current build.
func DefaultDevice() Device {
	if gpu := (&acceleratorDevice{}); gpu.IsAvailable() {
		return gpu
	}
	return &CPUDevice{}
}

// SelectDevice resolves a device name ("auto", "cpu" or "gpu").
// The result is meant to be chosen once at start-up and passed to constructors.
func SelectDevice(name string) (Device, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "auto":
		return DefaultDevice(), nil
	case "cpu":
		return &CPUDevice{}, nil
	case "gpu", "cuda", "metal":
		gpu := &acceleratorDevice{}
		if !gpu.IsAvailable() {
			return nil, errors.Wrapf(ErrDeviceUnavailable, "select %q", name)
		}
		return gpu, nil
	default:
		return nil, errors.Errorf("unknown device %q", name)
	}
}

package hsunmix

import (
	"math"
	"testing"

	"github.com/pkg/errors"
)

func TestFacadeForward(t *testing.T) {
	device, err := SelectDevice("auto")
	if err != nil {
		t.Fatalf("SelectDevice: %v", err)
	}
	model, err := NewModel(6, 3, device, 1)
	if err != nil {
		t.Fatalf("NewModel: %v", err)
	}

	optimizer := Adam(0.001, model)
	if optimizer.LearningRate() != 0.001 {
		t.Errorf("learning rate = %v", optimizer.LearningRate())
	}

	img := &Volume{C: 6, H: 4, W: 4, Data: make([]float64, 6*16)}
	out, err := model.Forward(img)
	if err != nil {
		t.Fatalf("Forward: %v", err)
	}
	angles := SpectralAngle(out.Signatures, out.Signatures)
	for i, a := range angles {
		if a > 1e-2 || math.IsNaN(a) {
			t.Errorf("self angle %d = %v", i, a)
		}
	}
	if RMSE.Forward(out.Abundances.Data, out.Abundances.Data) != 0 {
		t.Error("RMSE of identical abundances should be zero")
	}
}

func TestFacadeGPUUnavailable(t *testing.T) {
	_, err := SelectDevice("gpu")
	if errors.Cause(err) != ErrDeviceUnavailable {
		t.Errorf("expected ErrDeviceUnavailable, got %v", err)
	}
}

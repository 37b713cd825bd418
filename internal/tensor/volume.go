// Package tensor provides the channel-first volume used by layers and datasets.
package tensor

import "fmt"

// Volume is a 3-D array stored channel-first.
// Element (c, y, x) lives at Data[c*H*W + y*W + x].
type Volume struct {
	C, H, W int
	Data    []float64
}

// NewVolume allocates a zeroed volume.
func NewVolume(c, h, w int) *Volume {
	if c < 0 || h < 0 || w < 0 {
		panic(fmt.Sprintf("tensor: negative volume shape (%d, %d, %d)", c, h, w))
	}
	return &Volume{C: c, H: h, W: w, Data: make([]float64, c*h*w)}
}

// FromData wraps data as a (c, h, w) volume without copying.
func FromData(c, h, w int, data []float64) (*Volume, error) {
	if len(data) != c*h*w {
		return nil, fmt.Errorf("tensor: %d values do not fill shape (%d, %d, %d)", len(data), c, h, w)
	}
	return &Volume{C: c, H: h, W: w, Data: data}, nil
}

// Shape returns (C, H, W).
func (v *Volume) Shape() (int, int, int) {
	return v.C, v.H, v.W
}

// Len returns the number of elements.
func (v *Volume) Len() int {
	return len(v.Data)
}

// At returns element (c, y, x).
func (v *Volume) At(c, y, x int) float64 {
	return v.Data[(c*v.H+y)*v.W+x]
}

// Set stores element (c, y, x).
func (v *Volume) Set(c, y, x int, val float64) {
	v.Data[(c*v.H+y)*v.W+x] = val
}

// Channel returns the H*W plane of channel c. The slice aliases Data.
func (v *Volume) Channel(c int) []float64 {
	n := v.H * v.W
	return v.Data[c*n : (c+1)*n]
}

// Pixel copies the C values at (y, x) into dst and returns it.
// dst is reallocated when too short.
func (v *Volume) Pixel(y, x int, dst []float64) []float64 {
	if cap(dst) < v.C {
		dst = make([]float64, v.C)
	}
	dst = dst[:v.C]
	plane := v.H * v.W
	off := y*v.W + x
	for c := 0; c < v.C; c++ {
		dst[c] = v.Data[c*plane+off]
	}
	return dst
}

// Clone returns a deep copy.
func (v *Volume) Clone() *Volume {
	out := &Volume{C: v.C, H: v.H, W: v.W, Data: make([]float64, len(v.Data))}
	copy(out.Data, v.Data)
	return out
}

// String formats the shape as (C, H, W).
func (v *Volume) String() string {
	return fmt.Sprintf("(%d, %d, %d)", v.C, v.H, v.W)
}

// FromColumnMajorHWC builds a channel-first volume from an (h, w, c) array stored
// column-major, which is how MATLAB lays out a height x width x channel cube.
func FromColumnMajorHWC(h, w, c int, data []float64) (*Volume, error) {
	if len(data) != h*w*c {
		return nil, fmt.Errorf("tensor: %d values do not fill shape (%d, %d, %d)", len(data), h, w, c)
	}
	v := NewVolume(c, h, w)
	plane := h * w
	for k := 0; k < c; k++ {
		dst := v.Data[k*plane : (k+1)*plane]
		src := data[k*plane : (k+1)*plane]
		// src is indexed i + j*h, dst is indexed i*w + j
		for j := 0; j < w; j++ {
			col := src[j*h : (j+1)*h]
			for i, val := range col {
				dst[i*w+j] = val
			}
		}
	}
	return v, nil
}

// ColumnMajorHWC is the inverse of FromColumnMajorHWC.
func (v *Volume) ColumnMajorHWC() []float64 {
	out := make([]float64, len(v.Data))
	plane := v.H * v.W
	for k := 0; k < v.C; k++ {
		src := v.Data[k*plane : (k+1)*plane]
		dst := out[k*plane : (k+1)*plane]
		for i := 0; i < v.H; i++ {
			for j := 0; j < v.W; j++ {
				dst[i+j*v.H] = src[i*v.W+j]
			}
		}
	}
	return out
}

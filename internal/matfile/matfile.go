// Package matfile reads and writes MATLAB Level 5 MAT-files holding named numeric arrays.
//
// Only what a hyperspectral scene needs is supported: real numeric arrays of any
// class, stored plainly or zlib-compressed, in either byte order. Cells, structs,
// character and sparse arrays are skipped when reading. MAT v7.3 files are HDF5
// containers and are rejected.
package matfile

import (
	"fmt"
	"math"
	"strings"

	"gonum.org/v1/gonum/floats"
)

// Data element types.
const (
	miINT8       = 1
	miUINT8      = 2
	miINT16      = 3
	miUINT16     = 4
	miINT32      = 5
	miUINT32     = 6
	miSINGLE     = 7
	miDOUBLE     = 9
	miINT64      = 12
	miUINT64     = 13
	miMATRIX     = 14
	miCOMPRESSED = 15
	miUTF8       = 16
)

// Array classes.
const (
	mxCELL   = 1
	mxSTRUCT = 2
	mxOBJECT = 3
	mxCHAR   = 4
	mxSPARSE = 5
	mxDOUBLE = 6
	mxSINGLE = 7
	mxINT8   = 8
	mxUINT8  = 9
	mxINT16  = 10
	mxUINT16 = 11
	mxINT32  = 12
	mxUINT32 = 13
	mxINT64  = 14
	mxUINT64 = 15
)

const (
	headerLen     = 128
	headerTextLen = 116
	flagComplex   = 0x0800
)

// Array is a named numeric array. Data is kept in MATLAB's column-major order:
// element (i, j, k) of an (n0, n1, n2) array is Data[i + j*n0 + k*n0*n1].
type Array struct {
	Name string
	Dims []int
	Data []float64
}

// NewArray builds an array, checking that data fills dims.
func NewArray(name string, dims []int, data []float64) (*Array, error) {
	if name == "" {
		return nil, &FileFormatError{Reason: "array name is empty"}
	}
	n := 1
	for _, d := range dims {
		if d < 0 {
			return nil, &FileFormatError{Variable: name, Reason: fmt.Sprintf("negative dimension in %v", dims)}
		}
		n *= d
	}
	if len(dims) == 0 || n != len(data) {
		return nil, &FileFormatError{Variable: name, Reason: fmt.Sprintf("%d values do not fill dimensions %v", len(data), dims)}
	}
	d := make([]int, len(dims))
	copy(d, dims)
	return &Array{Name: name, Dims: d, Data: data}, nil
}

// Len returns the number of elements.
func (a *Array) Len() int {
	return len(a.Data)
}

// Rank returns the number of dimensions after dropping trailing singleton
// dimensions beyond the second (MATLAB never reports fewer than two).
func (a *Array) Rank() int {
	r := len(a.Dims)
	for r > 2 && a.Dims[r-1] == 1 {
		r--
	}
	return r
}

// At returns the element at the given subscript, column-major.
func (a *Array) At(idx ...int) float64 {
	if len(idx) != len(a.Dims) {
		panic(fmt.Sprintf("matfile: %d subscripts for rank-%d array %q", len(idx), len(a.Dims), a.Name))
	}
	off, stride := 0, 1
	for k, i := range idx {
		if i < 0 || i >= a.Dims[k] {
			panic(fmt.Sprintf("matfile: subscript %d out of range [0, %d) in %q", i, a.Dims[k], a.Name))
		}
		off += i * stride
		stride *= a.Dims[k]
	}
	return a.Data[off]
}

// Min and Max return the extreme values, or NaN for an empty array.
func (a *Array) Min() float64 {
	if len(a.Data) == 0 {
		return math.NaN()
	}
	return floats.Min(a.Data)
}

// Max returns the largest value, or NaN for an empty array.
func (a *Array) Max() float64 {
	if len(a.Data) == 0 {
		return math.NaN()
	}
	return floats.Max(a.Data)
}

// DimString formats the dimensions MATLAB-style, e.g. "128x128x431".
func (a *Array) DimString() string {
	parts := make([]string, len(a.Dims))
	for i, d := range a.Dims {
		parts[i] = fmt.Sprint(d)
	}
	return strings.Join(parts, "x")
}

// FileFormatError reports a MAT-file that cannot be used: malformed content,
// an unsupported feature, or a missing variable.
type FileFormatError struct {
	Path     string
	Variable string
	Reason   string
	Err      error
}

func (e *FileFormatError) Error() string {
	var b strings.Builder
	b.WriteString("matfile")
	if e.Path != "" {
		b.WriteString(" ")
		b.WriteString(e.Path)
	}
	if e.Variable != "" {
		fmt.Fprintf(&b, ": variable %q", e.Variable)
	}
	b.WriteString(": ")
	b.WriteString(e.Reason)
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *FileFormatError) Unwrap() error {
	return e.Err
}

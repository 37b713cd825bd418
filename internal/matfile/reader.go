package matfile

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"strings"

	"github.com/pkg/errors"
)

// File is a decoded MAT-file.
type File struct {
	Path   string
	Header string

	arrays  []*Array
	byName  map[string]*Array
	skipped []string
}

// Open reads and decodes the MAT-file at path.
// I/O failures are returned wrapped; content problems are *FileFormatError.
func Open(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read MAT-file %s", path)
	}
	f, err := Decode(data)
	if err != nil {
		var fe *FileFormatError
		if errors.As(err, &fe) && fe.Path == "" {
			fe.Path = path
		}
		return nil, err
	}
	f.Path = path
	return f, nil
}

// Decode parses a complete MAT-file image.
func Decode(data []byte) (*File, error) {
	if len(data) < headerLen {
		return nil, &FileFormatError{Reason: fmt.Sprintf("%d bytes is shorter than the %d-byte header", len(data), headerLen)}
	}

	text := strings.TrimRight(string(data[:headerTextLen]), " \x00")
	if strings.HasPrefix(text, "MATLAB 7.3") {
		return nil, &FileFormatError{Reason: "MAT v7.3 (HDF5) files are not supported, re-save with -v7"}
	}

	var order binary.ByteOrder
	switch string(data[126:128]) {
	case "IM":
		order = binary.LittleEndian
	case "MI":
		order = binary.BigEndian
	default:
		return nil, &FileFormatError{Reason: fmt.Sprintf("bad endian indicator %q", data[126:128])}
	}

	d := decoder{order: order}
	f := &File{Header: text, byName: make(map[string]*Array)}

	buf := data[headerLen:]
	for len(buf) > 0 {
		if len(buf) < 8 {
			if bytes.Count(buf, []byte{0}) == len(buf) {
				break
			}
			return nil, &FileFormatError{Reason: fmt.Sprintf("%d trailing bytes after last element", len(buf))}
		}

		typ, body, rest, err := d.element(buf)
		if err != nil {
			return nil, err
		}
		buf = rest

		switch typ {
		case miCOMPRESSED:
			inflated, err := inflate(body)
			if err != nil {
				return nil, err
			}
			for len(inflated) > 0 {
				innerTyp, innerBody, innerRest, err := d.element(inflated)
				if err != nil {
					return nil, err
				}
				inflated = innerRest
				if innerTyp == miMATRIX {
					if err := f.addMatrix(d, innerBody); err != nil {
						return nil, err
					}
				}
			}
		case miMATRIX:
			if err := f.addMatrix(d, body); err != nil {
				return nil, err
			}
		}
	}
	return f, nil
}

func (f *File) addMatrix(d decoder, body []byte) error {
	a, name, err := d.matrix(body)
	if err != nil {
		return err
	}
	if a == nil {
		f.skipped = append(f.skipped, name)
		return nil
	}
	if _, dup := f.byName[a.Name]; dup {
		return &FileFormatError{Variable: a.Name, Reason: "variable stored twice"}
	}
	f.arrays = append(f.arrays, a)
	f.byName[a.Name] = a
	return nil
}

// Array returns the numeric array stored under name.
func (f *File) Array(name string) (*Array, error) {
	a, ok := f.byName[name]
	if !ok {
		return nil, &FileFormatError{Path: f.Path, Variable: name, Reason: "not found or not a numeric array"}
	}
	return a, nil
}

// Arrays returns the numeric arrays in file order.
func (f *File) Arrays() []*Array {
	out := make([]*Array, len(f.arrays))
	copy(out, f.arrays)
	return out
}

// Skipped returns the names of arrays that were present but not numeric.
func (f *File) Skipped() []string {
	return f.skipped
}

func inflate(body []byte) ([]byte, error) {
	zr, err := zlib.NewReader(bytes.NewReader(body))
	if err != nil {
		return nil, &FileFormatError{Reason: "corrupt compressed element", Err: err}
	}
	defer zr.Close()
	out, err := io.ReadAll(zr)
	if err != nil {
		return nil, &FileFormatError{Reason: "corrupt compressed element", Err: err}
	}
	return out, nil
}

type decoder struct {
	order binary.ByteOrder
}

// element splits one data element off buf. It returns the element type, its
// payload and the remainder of buf past any 8-byte alignment padding.
func (d decoder) element(buf []byte) (uint32, []byte, []byte, error) {
	if len(buf) < 8 {
		return 0, nil, nil, &FileFormatError{Reason: "truncated element tag"}
	}
	first := d.order.Uint32(buf[0:4])

	// Small data element: size in the upper half of the first word, payload in the second.
	if n := first >> 16; n != 0 {
		if n > 4 {
			return 0, nil, nil, &FileFormatError{Reason: fmt.Sprintf("small element claims %d bytes", n)}
		}
		return first & 0xffff, buf[4 : 4+n], buf[8:], nil
	}

	n := uint64(d.order.Uint32(buf[4:8]))
	if 8+n > uint64(len(buf)) {
		return 0, nil, nil, &FileFormatError{Reason: fmt.Sprintf("element of type %d needs %d bytes, %d left", first, n, len(buf)-8)}
	}
	end := 8 + int(n)
	body := buf[8:end]
	if first != miCOMPRESSED {
		end = min(len(buf), (end+7)&^7)
	}
	return first, body, buf[end:], nil
}

func numeric(class uint32) bool {
	return class >= mxDOUBLE && class <= mxUINT64
}

// matrix decodes a miMATRIX payload. Non-numeric arrays yield a nil array and their name.
func (d decoder) matrix(body []byte) (*Array, string, error) {
	flagsTyp, flags, rest, err := d.element(body)
	if err != nil {
		return nil, "", err
	}
	if flagsTyp != miUINT32 || len(flags) < 8 {
		return nil, "", &FileFormatError{Reason: "malformed array flags"}
	}
	word := d.order.Uint32(flags[0:4])
	class := word & 0xff

	dimsTyp, dimsRaw, rest, err := d.element(rest)
	if err != nil {
		return nil, "", err
	}
	if dimsTyp != miINT32 || len(dimsRaw)%4 != 0 || len(dimsRaw) < 8 {
		return nil, "", &FileFormatError{Reason: "malformed dimensions"}
	}
	dims := make([]int, len(dimsRaw)/4)
	total := 1
	for i := range dims {
		v := int32(d.order.Uint32(dimsRaw[4*i:]))
		if v < 0 {
			return nil, "", &FileFormatError{Reason: fmt.Sprintf("negative dimension %d", v)}
		}
		dims[i] = int(v)
		total *= dims[i]
	}

	nameTyp, nameRaw, rest, err := d.element(rest)
	if err != nil {
		return nil, "", err
	}
	if nameTyp != miINT8 && nameTyp != miUTF8 {
		return nil, "", &FileFormatError{Reason: fmt.Sprintf("array name stored as type %d", nameTyp)}
	}
	name := string(nameRaw)

	if !numeric(class) {
		return nil, name, nil
	}
	if word&flagComplex != 0 {
		return nil, name, &FileFormatError{Variable: name, Reason: "complex arrays are not supported"}
	}

	realTyp, realRaw, _, err := d.element(rest)
	if err != nil {
		return nil, name, err
	}
	values, err := d.numbers(realTyp, realRaw)
	if err != nil {
		return nil, name, &FileFormatError{Variable: name, Reason: "bad real part", Err: err}
	}
	if len(values) != total {
		return nil, name, &FileFormatError{Variable: name, Reason: fmt.Sprintf("%d values for dimensions %v", len(values), dims)}
	}
	return &Array{Name: name, Dims: dims, Data: values}, name, nil
}

// numbers decodes a numeric payload by its storage type. MATLAB may store a
// double-class array in a narrower integer type when the values allow it.
func (d decoder) numbers(typ uint32, raw []byte) ([]float64, error) {
	size := map[uint32]int{
		miINT8: 1, miUINT8: 1, miINT16: 2, miUINT16: 2, miINT32: 4, miUINT32: 4,
		miSINGLE: 4, miDOUBLE: 8, miINT64: 8, miUINT64: 8,
	}[typ]
	if size == 0 {
		return nil, errors.Errorf("unsupported storage type %d", typ)
	}
	if len(raw)%size != 0 {
		return nil, errors.Errorf("%d bytes is not a multiple of element size %d", len(raw), size)
	}

	out := make([]float64, len(raw)/size)
	o := d.order
	for i := range out {
		b := raw[i*size:]
		switch typ {
		case miINT8:
			out[i] = float64(int8(b[0]))
		case miUINT8:
			out[i] = float64(b[0])
		case miINT16:
			out[i] = float64(int16(o.Uint16(b)))
		case miUINT16:
			out[i] = float64(o.Uint16(b))
		case miINT32:
			out[i] = float64(int32(o.Uint32(b)))
		case miUINT32:
			out[i] = float64(o.Uint32(b))
		case miSINGLE:
			out[i] = float64(math.Float32frombits(o.Uint32(b)))
		case miDOUBLE:
			out[i] = math.Float64frombits(o.Uint64(b))
		case miINT64:
			out[i] = float64(int64(o.Uint64(b)))
		case miUINT64:
			out[i] = float64(o.Uint64(b))
		}
	}
	return out, nil
}

package matfile

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"io"
	"math"
	"os"

	"github.com/pkg/errors"
)

const defaultDescription = "MATLAB 5.0 MAT-file, written by hsunmix"

// Options controls how arrays are written.
type Options struct {
	// Compress wraps every array in a zlib-compressed element (MATLAB -v7).
	Compress bool

	// Description replaces the header text. It is truncated to 116 bytes.
	Description string
}

// WriteFile encodes arrays as double-precision variables into a new file at path.
func WriteFile(path string, opts Options, arrays ...*Array) error {
	var buf bytes.Buffer
	if err := Encode(&buf, opts, arrays...); err != nil {
		return err
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return errors.Wrapf(err, "write MAT-file %s", path)
	}
	return nil
}

// Encode writes a little-endian Level 5 MAT-file to w.
func Encode(w io.Writer, opts Options, arrays ...*Array) error {
	seen := make(map[string]bool, len(arrays))
	for _, a := range arrays {
		if _, err := NewArray(a.Name, a.Dims, a.Data); err != nil {
			return err
		}
		if seen[a.Name] {
			return &FileFormatError{Variable: a.Name, Reason: "variable written twice"}
		}
		seen[a.Name] = true
	}

	desc := opts.Description
	if desc == "" {
		desc = defaultDescription
	}
	header := bytes.Repeat([]byte{' '}, headerLen)
	copy(header[:headerTextLen], desc)
	for i := headerTextLen; i < 124; i++ {
		header[i] = 0
	}
	binary.LittleEndian.PutUint16(header[124:], 0x0100)
	copy(header[126:], "IM")

	if _, err := w.Write(header); err != nil {
		return errors.Wrap(err, "write header")
	}

	for _, a := range arrays {
		elem := matrixElement(a)
		if opts.Compress {
			var z bytes.Buffer
			zw := zlib.NewWriter(&z)
			if _, err := zw.Write(elem); err != nil {
				return errors.Wrapf(err, "compress %s", a.Name)
			}
			if err := zw.Close(); err != nil {
				return errors.Wrapf(err, "compress %s", a.Name)
			}
			elem = make([]byte, 8, 8+z.Len())
			binary.LittleEndian.PutUint32(elem[0:], miCOMPRESSED)
			binary.LittleEndian.PutUint32(elem[4:], uint32(z.Len()))
			elem = append(elem, z.Bytes()...)
		}
		if _, err := w.Write(elem); err != nil {
			return errors.Wrapf(err, "write %s", a.Name)
		}
	}
	return nil
}

func matrixElement(a *Array) []byte {
	var body bytes.Buffer

	flags := make([]byte, 8)
	binary.LittleEndian.PutUint32(flags, mxDOUBLE)
	putElement(&body, miUINT32, flags)

	dims := make([]byte, 4*len(a.Dims))
	for i, d := range a.Dims {
		binary.LittleEndian.PutUint32(dims[4*i:], uint32(int32(d)))
	}
	putElement(&body, miINT32, dims)

	putElement(&body, miINT8, []byte(a.Name))

	values := make([]byte, 8*len(a.Data))
	for i, v := range a.Data {
		binary.LittleEndian.PutUint64(values[8*i:], math.Float64bits(v))
	}
	putElement(&body, miDOUBLE, values)

	var out bytes.Buffer
	putElement(&out, miMATRIX, body.Bytes())
	return out.Bytes()
}

// putElement writes a tag, the payload and zero padding to the next 8-byte boundary.
func putElement(buf *bytes.Buffer, typ uint32, data []byte) {
	var tag [8]byte
	binary.LittleEndian.PutUint32(tag[0:], typ)
	binary.LittleEndian.PutUint32(tag[4:], uint32(len(data)))
	buf.Write(tag[:])
	buf.Write(data)
	if pad := (8 - len(data)%8) % 8; pad > 0 {
		buf.Write(make([]byte, pad))
	}
}

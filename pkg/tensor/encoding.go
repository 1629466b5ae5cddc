package tensor

import (
	"bytes"
	"encoding/binary"
	"math"

	"github.com/matzehuels/stylewct/pkg/errors"
)

// magic identifies the binary tensor layout written by MarshalBinary.
var magic = [4]byte{'W', 'C', 'T', '1'}

const headerSize = 4 + 3*4

// MarshalBinary encodes the tensor as a 16-byte header (magic, C, H, W as
// little-endian uint32) followed by the float32 data in little-endian order.
func (t *Tensor) MarshalBinary() ([]byte, error) {
	buf := make([]byte, headerSize+4*len(t.Data))
	copy(buf, magic[:])
	binary.LittleEndian.PutUint32(buf[4:], uint32(t.C))
	binary.LittleEndian.PutUint32(buf[8:], uint32(t.H))
	binary.LittleEndian.PutUint32(buf[12:], uint32(t.W))
	for i, v := range t.Data {
		binary.LittleEndian.PutUint32(buf[headerSize+4*i:], math.Float32bits(v))
	}
	return buf, nil
}

// UnmarshalBinary decodes data produced by MarshalBinary into t.
func (t *Tensor) UnmarshalBinary(data []byte) error {
	if len(data) < headerSize || !bytes.Equal(data[:4], magic[:]) {
		return errors.New(errors.ErrCodeInvalidInput, "not an encoded tensor")
	}
	c := int(binary.LittleEndian.Uint32(data[4:]))
	h := int(binary.LittleEndian.Uint32(data[8:]))
	w := int(binary.LittleEndian.Uint32(data[12:]))
	n := c * h * w
	if c <= 0 || h <= 0 || w <= 0 || len(data) != headerSize+4*n {
		return errors.New(errors.ErrCodeInvalidShape, "encoded tensor (%d, %d, %d) has %d payload bytes", c, h, w, len(data)-headerSize)
	}
	vals := make([]float32, n)
	for i := range vals {
		vals[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[headerSize+4*i:]))
	}
	t.C, t.H, t.W, t.Data = c, h, w, vals
	return nil
}

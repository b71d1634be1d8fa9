package sgip

import (
	"encoding/binary"
	"io"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// writer appends fixed-width fields to a preallocated frame.
type writer struct {
	b []byte
}

func newWriter(size int) *writer {
	return &writer{b: make([]byte, 0, size)}
}

func (w *writer) bytes() []byte { return w.b }

func (w *writer) byte(v uint8) { w.b = append(w.b, v) }

func (w *writer) uint32(v uint32) {
	var tmp [intLen]byte
	binary.BigEndian.PutUint32(tmp[:], v)
	w.b = append(w.b, tmp[:]...)
}

func (w *writer) raw(p []byte) { w.b = append(w.b, p...) }

// fixedString writes s NUL padded or truncated to n bytes.
func (w *writer) fixedString(s string, n int) {
	field := make([]byte, n)
	copy(field, s)
	w.b = append(w.b, field...)
}

// decimal writes v as ASCII digits in a NUL padded field of n bytes.
func (w *writer) decimal(v int, n int) {
	w.fixedString(strconv.Itoa(v), n)
}

// reader consumes fixed-width fields from a PDU body. Every read past the
// end of the body fails with io.ErrUnexpectedEOF.
type reader struct {
	b   []byte
	off int
}

func newReader(b []byte) *reader {
	return &reader{b: b}
}

func (r *reader) remaining() int { return len(r.b) - r.off }

func (r *reader) next(n int) ([]byte, error) {
	if n < 0 || r.remaining() < n {
		return nil, errors.Wrapf(io.ErrUnexpectedEOF, "need %d bytes at offset %d, have %d", n, r.off, r.remaining())
	}
	p := r.b[r.off : r.off+n]
	r.off += n
	return p, nil
}

func (r *reader) byte() (uint8, error) {
	p, err := r.next(1)
	if err != nil {
		return 0, err
	}
	return p[0], nil
}

func (r *reader) uint32() (uint32, error) {
	p, err := r.next(intLen)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(p), nil
}

func (r *reader) raw(n int) ([]byte, error) {
	p, err := r.next(n)
	if err != nil {
		return nil, err
	}
	out := make([]byte, n)
	copy(out, p)
	return out, nil
}

func (r *reader) fixedString(n int) (string, error) {
	p, err := r.next(n)
	if err != nil {
		return "", err
	}
	return trimField(p), nil
}

func (r *reader) decimal(n int) (int, error) {
	s, err := r.fixedString(n)
	if err != nil || s == "" {
		return 0, err
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, errors.Wrapf(err, "invalid decimal field %q", s)
	}
	return v, nil
}

func trimField(p []byte) string {
	return strings.Trim(string(p), "\x00 ")
}

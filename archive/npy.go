package archive

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

// Minimal NPY v1.0 codec for the two dtypes the archive needs: little-endian
// int64 ("<i8") and little-endian uint32 ("<u4"), C order.

var npyMagic = []byte("\x93NUMPY")

// ErrShape indicates an archive entry whose declared dimensions are invalid
// or too large to address.
type ErrShape struct {
	Dims []int
}

func (e *ErrShape) Error() string {
	return fmt.Sprintf("archive: invalid array shape %v", e.Dims)
}

// elemCount validates dims and returns their product, guarding both the
// element count and the resulting byte size against overflow. Headers are
// untrusted input; a crafted shape must fail here, not in makeslice.
func elemCount(dims []int, elemSize int) (int, error) {
	count := 1
	for _, d := range dims {
		if d < 0 {
			return 0, &ErrShape{Dims: dims}
		}
		if d > 0 && count > math.MaxInt/d {
			return 0, &ErrShape{Dims: dims}
		}
		count *= d
	}
	if count > math.MaxInt/elemSize {
		return 0, &ErrShape{Dims: dims}
	}
	return count, nil
}

// Element payloads are decoded in bounded chunks so the allocation grows
// with the bytes actually present in the stream, not with the declared
// count. A header claiming billions of elements over a short stream errors
// out after one chunk.
const readChunkElems = 1 << 16

func readInt64Elems(r io.Reader, count int) ([]int64, error) {
	values := make([]int64, 0, min(count, readChunkElems))
	buf := make([]byte, 8*min(count, readChunkElems))
	for len(values) < count {
		n := min(count-len(values), readChunkElems)
		if _, err := io.ReadFull(r, buf[:8*n]); err != nil {
			return nil, err
		}
		for i := 0; i < n; i++ {
			values = append(values, int64(binary.LittleEndian.Uint64(buf[8*i:])))
		}
	}
	return values, nil
}

func readUint32Elems(r io.Reader, count int) ([]uint32, error) {
	values := make([]uint32, 0, min(count, readChunkElems))
	buf := make([]byte, 4*min(count, readChunkElems))
	for len(values) < count {
		n := min(count-len(values), readChunkElems)
		if _, err := io.ReadFull(r, buf[:4*n]); err != nil {
			return nil, err
		}
		for i := 0; i < n; i++ {
			values = append(values, binary.LittleEndian.Uint32(buf[4*i:]))
		}
	}
	return values, nil
}

func npyHeader(descr string, shape []int) []byte {
	dims := make([]string, len(shape))
	for i, d := range shape {
		dims[i] = strconv.Itoa(d)
	}
	tuple := strings.Join(dims, ", ")
	if len(shape) == 1 {
		tuple += ","
	}
	dict := fmt.Sprintf("{'descr': '%s', 'fortran_order': False, 'shape': (%s), }", descr, tuple)

	// Pad with spaces so magic+version+len+dict+'\n' is 64-byte aligned.
	total := len(npyMagic) + 2 + 2 + len(dict) + 1
	pad := (64 - total%64) % 64
	dict += strings.Repeat(" ", pad) + "\n"

	header := make([]byte, 0, len(npyMagic)+4+len(dict))
	header = append(header, npyMagic...)
	header = append(header, 1, 0)
	header = binary.LittleEndian.AppendUint16(header, uint16(len(dict)))
	header = append(header, dict...)
	return header
}

func writeNPYInt64(w io.Writer, values []int64) error {
	if _, err := w.Write(npyHeader("<i8", []int{len(values)})); err != nil {
		return err
	}
	buf := make([]byte, 8*len(values))
	for i, v := range values {
		binary.LittleEndian.PutUint64(buf[8*i:], uint64(v))
	}
	_, err := w.Write(buf)
	return err
}

func writeNPYUint32(w io.Writer, values []uint32, shape []int) error {
	if _, err := w.Write(npyHeader("<u4", shape)); err != nil {
		return err
	}
	buf := make([]byte, 4*len(values))
	for i, v := range values {
		binary.LittleEndian.PutUint32(buf[4*i:], v)
	}
	_, err := w.Write(buf)
	return err
}

// readNPYHeader consumes the header and returns descr and shape.
func readNPYHeader(r io.Reader) (string, []int, error) {
	fixed := make([]byte, len(npyMagic)+4)
	if _, err := io.ReadFull(r, fixed); err != nil {
		return "", nil, fmt.Errorf("archive: npy header: %w", err)
	}
	if string(fixed[:len(npyMagic)]) != string(npyMagic) {
		return "", nil, fmt.Errorf("archive: not an npy entry")
	}
	if fixed[len(npyMagic)] != 1 {
		return "", nil, fmt.Errorf("archive: unsupported npy version %d.%d", fixed[len(npyMagic)], fixed[len(npyMagic)+1])
	}
	headerLen := binary.LittleEndian.Uint16(fixed[len(npyMagic)+2:])

	dict := make([]byte, headerLen)
	if _, err := io.ReadFull(r, dict); err != nil {
		return "", nil, fmt.Errorf("archive: npy header: %w", err)
	}

	descr, err := dictValue(string(dict), "descr")
	if err != nil {
		return "", nil, err
	}
	order, err := dictValue(string(dict), "fortran_order")
	if err != nil {
		return "", nil, err
	}
	if order != "False" {
		return "", nil, fmt.Errorf("archive: fortran order not supported")
	}
	shapeStr, err := dictValue(string(dict), "shape")
	if err != nil {
		return "", nil, err
	}

	var shape []int
	for _, part := range strings.Split(shapeStr, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		d, err := strconv.Atoi(part)
		if err != nil {
			return "", nil, fmt.Errorf("archive: npy shape: %w", err)
		}
		shape = append(shape, d)
	}

	return descr, shape, nil
}

// dictValue extracts one value from the single-line python dict literal in
// an NPY header.
func dictValue(dict, key string) (string, error) {
	i := strings.Index(dict, "'"+key+"'")
	if i < 0 {
		return "", fmt.Errorf("archive: npy header missing %q", key)
	}
	rest := dict[i+len(key)+2:]
	j := strings.Index(rest, ":")
	if j < 0 {
		return "", fmt.Errorf("archive: malformed npy header")
	}
	rest = strings.TrimLeft(rest[j+1:], " ")

	switch {
	case strings.HasPrefix(rest, "'"):
		end := strings.Index(rest[1:], "'")
		if end < 0 {
			return "", fmt.Errorf("archive: malformed npy header")
		}
		return rest[1 : 1+end], nil
	case strings.HasPrefix(rest, "("):
		end := strings.Index(rest, ")")
		if end < 0 {
			return "", fmt.Errorf("archive: malformed npy header")
		}
		return rest[1:end], nil
	default:
		end := strings.IndexAny(rest, ",}")
		if end < 0 {
			return "", fmt.Errorf("archive: malformed npy header")
		}
		return strings.TrimSpace(rest[:end]), nil
	}
}

func readNPYInt64(r io.Reader) ([]int64, error) {
	descr, shape, err := readNPYHeader(r)
	if err != nil {
		return nil, err
	}
	if descr != "<i8" || len(shape) != 1 {
		return nil, fmt.Errorf("archive: expected 1-D <i8 entry, got %s %v", descr, shape)
	}

	count, err := elemCount(shape, 8)
	if err != nil {
		return nil, err
	}
	return readInt64Elems(r, count)
}

func readNPYUint32(r io.Reader) ([]uint32, []int, error) {
	descr, shape, err := readNPYHeader(r)
	if err != nil {
		return nil, nil, err
	}
	if descr != "<u4" {
		return nil, nil, fmt.Errorf("archive: expected <u4 entry, got %s", descr)
	}

	count, err := elemCount(shape, 4)
	if err != nil {
		return nil, nil, err
	}
	values, err := readUint32Elems(r, count)
	if err != nil {
		return nil, nil, err
	}
	return values, shape, nil
}

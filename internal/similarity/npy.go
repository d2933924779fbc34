package similarity

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/x448/float16"
)

// NumPy .npy layout: magic, version, little-endian header length, a Python dict literal
// header padded to a 64-byte boundary, then the raw array data.
var npyMagic = []byte("\x93NUMPY")

var (
	npyDescrRe   = regexp.MustCompile(`'descr'\s*:\s*'([^']+)'`)
	npyFortranRe = regexp.MustCompile(`'fortran_order'\s*:\s*(True|False)`)
	npyShapeRe   = regexp.MustCompile(`'shape'\s*:\s*\(([^)]*)\)`)
)

// ErrNotSquare is returned when the persisted matrix has rows != columns.
var ErrNotSquare = errors.New("similarity matrix is not square")

type npyHeader struct {
	descr   string
	fortran bool
	shape   []int
}

// LoadNPY reads a 2-D square matrix written by numpy.save. Supported dtypes are
// '<f2' (kept as float16), '<f4' (kept as float32) and '<f8' (narrowed to float32).
func LoadNPY(path string) (*Store, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open matrix: %w", err)
	}
	defer f.Close()
	s, err := ReadNPY(bufio.NewReader(f))
	if err != nil {
		return nil, fmt.Errorf("read matrix %s: %w", path, err)
	}
	return s, nil
}

// ReadNPY decodes an .npy stream into a Store.
func ReadNPY(r io.Reader) (*Store, error) {
	h, err := readNPYHeader(r)
	if err != nil {
		return nil, err
	}
	if h.fortran {
		return nil, errors.New("fortran-ordered arrays are not supported")
	}
	if len(h.shape) != 2 {
		return nil, fmt.Errorf("expected a 2-D array, got shape %v", h.shape)
	}
	if h.shape[0] != h.shape[1] {
		return nil, fmt.Errorf("%w: shape (%d, %d)", ErrNotSquare, h.shape[0], h.shape[1])
	}
	n := h.shape[0]
	count := n * n

	switch h.descr {
	case "<f2":
		buf := make([]byte, count*2)
		if _, err := io.ReadFull(r, buf); err != nil {
			return nil, fmt.Errorf("read float16 data: %w", err)
		}
		half := make([]float16.Float16, count)
		for i := range half {
			half[i] = float16.Frombits(binary.LittleEndian.Uint16(buf[i*2:]))
		}
		return newHalfStoreFromBits(n, half)
	case "<f4":
		buf := make([]byte, count*4)
		if _, err := io.ReadFull(r, buf); err != nil {
			return nil, fmt.Errorf("read float32 data: %w", err)
		}
		values := make([]float32, count)
		for i := range values {
			values[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
		}
		return NewStore(n, values)
	case "<f8":
		buf := make([]byte, count*8)
		if _, err := io.ReadFull(r, buf); err != nil {
			return nil, fmt.Errorf("read float64 data: %w", err)
		}
		values := make([]float32, count)
		for i := range values {
			values[i] = float32(math.Float64frombits(binary.LittleEndian.Uint64(buf[i*8:])))
		}
		return NewStore(n, values)
	default:
		return nil, fmt.Errorf("unsupported dtype %q (supported: <f2, <f4, <f8)", h.descr)
	}
}

func readNPYHeader(r io.Reader) (*npyHeader, error) {
	prefix := make([]byte, len(npyMagic)+2)
	if _, err := io.ReadFull(r, prefix); err != nil {
		return nil, fmt.Errorf("read npy preamble: %w", err)
	}
	if !bytes.Equal(prefix[:len(npyMagic)], npyMagic) {
		return nil, errors.New("not an npy file (bad magic)")
	}
	major := prefix[len(npyMagic)]
	var headerLen int
	switch major {
	case 1:
		var l uint16
		if err := binary.Read(r, binary.LittleEndian, &l); err != nil {
			return nil, fmt.Errorf("read header length: %w", err)
		}
		headerLen = int(l)
	case 2, 3:
		var l uint32
		if err := binary.Read(r, binary.LittleEndian, &l); err != nil {
			return nil, fmt.Errorf("read header length: %w", err)
		}
		headerLen = int(l)
	default:
		return nil, fmt.Errorf("unsupported npy version %d", major)
	}
	raw := make([]byte, headerLen)
	if _, err := io.ReadFull(r, raw); err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	return parseNPYHeader(string(raw))
}

func parseNPYHeader(s string) (*npyHeader, error) {
	h := &npyHeader{}
	m := npyDescrRe.FindStringSubmatch(s)
	if m == nil {
		return nil, fmt.Errorf("header missing descr: %q", s)
	}
	h.descr = m[1]
	m = npyFortranRe.FindStringSubmatch(s)
	if m == nil {
		return nil, fmt.Errorf("header missing fortran_order: %q", s)
	}
	h.fortran = m[1] == "True"
	m = npyShapeRe.FindStringSubmatch(s)
	if m == nil {
		return nil, fmt.Errorf("header missing shape: %q", s)
	}
	for _, part := range strings.Split(m[1], ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		dim, err := strconv.Atoi(part)
		if err != nil || dim < 0 {
			return nil, fmt.Errorf("bad shape dimension %q", part)
		}
		h.shape = append(h.shape, dim)
	}
	return h, nil
}

// WriteNPY encodes s as a version 1.0 .npy stream in its in-memory dtype.
func WriteNPY(w io.Writer, s *Store) error {
	descr := "<f4"
	if s.dtype == DTypeFloat16 {
		descr = "<f2"
	}
	dict := fmt.Sprintf("{'descr': '%s', 'fortran_order': False, 'shape': (%d, %d), }", descr, s.n, s.n)
	// Pad so magic + version + length + header is a multiple of 64, ending in '\n'.
	preamble := len(npyMagic) + 2 + 2
	total := preamble + len(dict) + 1
	if rem := total % 64; rem != 0 {
		dict += strings.Repeat(" ", 64-rem)
	}
	dict += "\n"

	bw := bufio.NewWriter(w)
	if _, err := bw.Write(npyMagic); err != nil {
		return err
	}
	if _, err := bw.Write([]byte{1, 0}); err != nil {
		return err
	}
	if err := binary.Write(bw, binary.LittleEndian, uint16(len(dict))); err != nil {
		return err
	}
	if _, err := bw.WriteString(dict); err != nil {
		return err
	}
	var scratch [4]byte
	if s.dtype == DTypeFloat16 {
		for _, h := range s.half {
			binary.LittleEndian.PutUint16(scratch[:2], h.Bits())
			if _, err := bw.Write(scratch[:2]); err != nil {
				return err
			}
		}
	} else {
		for _, v := range s.full {
			binary.LittleEndian.PutUint32(scratch[:], math.Float32bits(v))
			if _, err := bw.Write(scratch[:]); err != nil {
				return err
			}
		}
	}
	return bw.Flush()
}

// SaveNPY writes s to path.
func SaveNPY(path string, s *Store) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create matrix file: %w", err)
	}
	if err := WriteNPY(f, s); err != nil {
		_ = f.Close()
		return fmt.Errorf("write matrix: %w", err)
	}
	return f.Close()
}

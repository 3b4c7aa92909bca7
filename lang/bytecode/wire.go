package bytecode

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
)

// Wire tags, per spec.md §6.
const (
	tagInt byte = iota
	tagFloat
	tagString
	tagDict
	tagSet // reserved, not implemented
	tagList
	tagBytes
	tagTrue
	tagFalse
	tagNone
)

// Dict is the wire representation of a DICT value: an ordered sequence of
// key/value pairs. Order is preserved across round-trips (Go's builtin map
// cannot make that guarantee, and arbitrary wire values are not always
// Go-comparable, so a plain map[any]any is unsuitable as the wire
// representation).
type Dict struct {
	Keys   []any
	Values []any
}

// ReadValue decodes one self-describing wire value from r, per the tag
// table in spec.md §6. The returned value is one of: int32, float64,
// string, []byte, []any (LIST), *Dict (DICT), bool, or nil (NONE).
func ReadValue(r io.ByteReader) (any, error) {
	tag, err := r.ReadByte()
	if err != nil {
		return nil, err
	}
	return readTagged(r, tag)
}

func readTagged(r io.ByteReader, tag byte) (any, error) {
	switch tag {
	case tagInt:
		var buf [4]byte
		if err := readBytes(r, buf[:]); err != nil {
			return nil, err
		}
		return int32(binary.LittleEndian.Uint32(buf[:])), nil

	case tagFloat:
		var buf [8]byte
		if err := readBytes(r, buf[:]); err != nil {
			return nil, err
		}
		bits := binary.LittleEndian.Uint64(buf[:])
		return math.Float64frombits(bits), nil

	case tagString:
		n, err := readU32(r)
		if err != nil {
			return nil, err
		}
		buf := make([]byte, n)
		if err := readBytes(r, buf); err != nil {
			return nil, err
		}
		return string(buf), nil

	case tagDict:
		n, err := readU32(r)
		if err != nil {
			return nil, err
		}
		d := &Dict{Keys: make([]any, n), Values: make([]any, n)}
		for i := uint32(0); i < n; i++ {
			k, err := ReadValue(r)
			if err != nil {
				return nil, err
			}
			v, err := ReadValue(r)
			if err != nil {
				return nil, err
			}
			d.Keys[i] = k
			d.Values[i] = v
		}
		return d, nil

	case tagSet:
		return nil, fmt.Errorf("bytecode: SET wire tag is reserved, not implemented")

	case tagList:
		n, err := readU32(r)
		if err != nil {
			return nil, err
		}
		l := make([]any, n)
		for i := uint32(0); i < n; i++ {
			v, err := ReadValue(r)
			if err != nil {
				return nil, err
			}
			l[i] = v
		}
		return l, nil

	case tagBytes:
		n, err := readU32(r)
		if err != nil {
			return nil, err
		}
		buf := make([]byte, n)
		if err := readBytes(r, buf); err != nil {
			return nil, err
		}
		return buf, nil

	case tagTrue:
		return true, nil

	case tagFalse:
		return false, nil

	case tagNone:
		return nil, nil

	default:
		return nil, fmt.Errorf("bytecode: unknown wire tag %d", tag)
	}
}

// WriteValue encodes v to w using the wire format in spec.md §6.
func WriteValue(w io.Writer, v any) error {
	switch x := v.(type) {
	case int32:
		if _, err := w.Write([]byte{tagInt}); err != nil {
			return err
		}
		var buf [4]byte
		binary.LittleEndian.PutUint32(buf[:], uint32(x))
		_, err := w.Write(buf[:])
		return err

	case int:
		return WriteValue(w, int32(x))

	case float64:
		if _, err := w.Write([]byte{tagFloat}); err != nil {
			return err
		}
		var buf [8]byte
		binary.LittleEndian.PutUint64(buf[:], math.Float64bits(x))
		_, err := w.Write(buf[:])
		return err

	case string:
		if _, err := w.Write([]byte{tagString}); err != nil {
			return err
		}
		if err := writeU32(w, uint32(len(x))); err != nil {
			return err
		}
		_, err := w.Write([]byte(x))
		return err

	case *Dict:
		if _, err := w.Write([]byte{tagDict}); err != nil {
			return err
		}
		if err := writeU32(w, uint32(len(x.Keys))); err != nil {
			return err
		}
		for i := range x.Keys {
			if err := WriteValue(w, x.Keys[i]); err != nil {
				return err
			}
			if err := WriteValue(w, x.Values[i]); err != nil {
				return err
			}
		}
		return nil

	case []any:
		if _, err := w.Write([]byte{tagList}); err != nil {
			return err
		}
		if err := writeU32(w, uint32(len(x))); err != nil {
			return err
		}
		for _, el := range x {
			if err := WriteValue(w, el); err != nil {
				return err
			}
		}
		return nil

	case []byte:
		if _, err := w.Write([]byte{tagBytes}); err != nil {
			return err
		}
		if err := writeU32(w, uint32(len(x))); err != nil {
			return err
		}
		_, err := w.Write(x)
		return err

	case bool:
		tag := byte(tagFalse)
		if x {
			tag = tagTrue
		}
		_, err := w.Write([]byte{tag})
		return err

	case nil:
		_, err := w.Write([]byte{tagNone})
		return err

	default:
		return fmt.Errorf("bytecode: cannot encode value of type %T to wire format", v)
	}
}

func readBytes(r io.ByteReader, buf []byte) error {
	for i := range buf {
		b, err := r.ReadByte()
		if err != nil {
			return err
		}
		buf[i] = b
	}
	return nil
}

func readU32(r io.ByteReader) (uint32, error) {
	var buf [4]byte
	if err := readBytes(r, buf[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(buf[:]), nil
}

func writeU32(w io.Writer, v uint32) error {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], v)
	_, err := w.Write(buf[:])
	return err
}

// byteReader adapts an io.Reader to io.ByteReader when needed.
func byteReader(r io.Reader) io.ByteReader {
	if br, ok := r.(io.ByteReader); ok {
		return br
	}
	return bufio.NewReader(r)
}

// Package bencode implements BitTorrent's bencode serialization: the
// four forms (integer, byte string, list, dictionary), with
// deterministic (lexicographically key-sorted) encoding and a
// tolerant-but-validating decoder.
//
// This is deliberately hand-written rather than imported: it is core,
// behavior-bearing code, and the enricher's SHA-1 integrity gate
// depends on never re-encoding a received info dict — the raw bytes
// are stored as received, and Marshal is only ever used to build our
// own outgoing messages.
package bencode

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"reflect"
	"sort"
	"strconv"
)

// ErrInvalid is wrapped by all decode failures.
var ErrInvalid = errors.New("bencode: invalid encoding")

// Marshal encodes v deterministically: map keys are sorted
// lexicographically by their raw key bytes, as required for
// the info-dict SHA-1 to be reproducible.
func Marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := encodeValue(&buf, reflect.ValueOf(v)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func encodeValue(w *bytes.Buffer, v reflect.Value) error {
	if !v.IsValid() {
		return errors.New("bencode: cannot encode nil interface")
	}
	if isNilable(v) && v.IsNil() {
		// Marshal treats a nil pointer/slice/map as "omit" at the caller
		// level (struct encoding skips it); at the top level it's an error
		// to keep encode(decode(x))==x total rather than partial.
		return errors.New("bencode: cannot encode nil value")
	}

	switch v.Kind() {
	case reflect.String:
		return encodeString(w, v.String())
	case reflect.Slice:
		if v.Type().Elem().Kind() == reflect.Uint8 {
			return encodeString(w, string(v.Bytes()))
		}
		return encodeList(w, v)
	case reflect.Array:
		if v.Type().Elem().Kind() == reflect.Uint8 {
			b := make([]byte, v.Len())
			reflect.Copy(reflect.ValueOf(b), v)
			return encodeString(w, string(b))
		}
		return encodeList(w, v)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return encodeInt(w, v.Int())
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return encodeInt(w, int64(v.Uint()))
	case reflect.Bool:
		i := int64(0)
		if v.Bool() {
			i = 1
		}
		return encodeInt(w, i)
	case reflect.Map:
		return encodeMap(w, v)
	case reflect.Struct:
		return encodeStruct(w, v)
	case reflect.Ptr, reflect.Interface:
		return encodeValue(w, v.Elem())
	default:
		return fmt.Errorf("bencode: unsupported kind %s", v.Kind())
	}
}

func isNilable(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Slice, reflect.Interface, reflect.Chan, reflect.Func:
		return true
	}
	return false
}

func encodeString(w *bytes.Buffer, s string) error {
	w.WriteString(strconv.Itoa(len(s)))
	w.WriteByte(':')
	w.WriteString(s)
	return nil
}

func encodeInt(w *bytes.Buffer, i int64) error {
	w.WriteByte('i')
	w.WriteString(strconv.FormatInt(i, 10))
	w.WriteByte('e')
	return nil
}

func encodeList(w *bytes.Buffer, v reflect.Value) error {
	w.WriteByte('l')
	for i := 0; i < v.Len(); i++ {
		if err := encodeValue(w, v.Index(i)); err != nil {
			return err
		}
	}
	w.WriteByte('e')
	return nil
}

func encodeMap(w *bytes.Buffer, v reflect.Value) error {
	if v.Type().Key().Kind() != reflect.String {
		return errors.New("bencode: map keys must be strings")
	}
	keys := v.MapKeys()
	sort.Slice(keys, func(i, j int) bool { return keys[i].String() < keys[j].String() })

	w.WriteByte('d')
	for _, k := range keys {
		mv := v.MapIndex(k)
		if isNilable(mv) && mv.IsNil() {
			continue
		}
		if err := encodeString(w, k.String()); err != nil {
			return err
		}
		if err := encodeValue(w, mv); err != nil {
			return err
		}
	}
	w.WriteByte('e')
	return nil
}

type field struct {
	name      string
	idx       int
	omitempty bool
}

func structFields(t reflect.Type) []field {
	fields := make([]field, 0, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		if sf.PkgPath != "" { // unexported
			continue
		}
		tag := sf.Tag.Get("bencode")
		if tag == "-" {
			continue
		}
		name, opts := sf.Name, ""
		if tag != "" {
			if idx := indexByte(tag, ','); idx >= 0 {
				name, opts = tag[:idx], tag[idx+1:]
			} else {
				name = tag
			}
		}
		fields = append(fields, field{name: name, idx: i, omitempty: opts == "omitempty"})
	}
	sort.Slice(fields, func(i, j int) bool { return fields[i].name < fields[j].name })
	return fields
}

func indexByte(s string, c byte) int {
	for i := 0; i < len(s); i++ {
		if s[i] == c {
			return i
		}
	}
	return -1
}

func encodeStruct(w *bytes.Buffer, v reflect.Value) error {
	w.WriteByte('d')
	for _, f := range structFields(v.Type()) {
		fv := v.Field(f.idx)
		if f.omitempty && isEmptyValue(fv) {
			continue
		}
		if isNilable(fv) && fv.IsNil() {
			continue
		}
		if err := encodeString(w, f.name); err != nil {
			return err
		}
		if err := encodeValue(w, fv); err != nil {
			return err
		}
	}
	w.WriteByte('e')
	return nil
}

func isEmptyValue(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.String:
		return v.Len() == 0
	case reflect.Slice, reflect.Map:
		return v.Len() == 0
	case reflect.Array:
		return v.IsZero()
	case reflect.Ptr, reflect.Interface:
		return v.IsNil()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return v.Int() == 0
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return v.Uint() == 0
	case reflect.Bool:
		return !v.Bool()
	}
	return false
}

// Decoder reads successive bencoded values from an underlying reader.
type Decoder struct {
	r   *bytes.Reader
	buf []byte
}

// NewDecoder returns a Decoder over buf. Byte string values are copied
// out of buf into fresh slices; only Remaining returns a slice of buf.
func NewDecoder(buf []byte) *Decoder {
	return &Decoder{r: bytes.NewReader(buf), buf: buf}
}

// Remaining returns the portion of buf not yet consumed by DecodeValue
// calls. Callers that bencode-decode a message prefix (e.g. BEP-9's
// ut_metadata dict followed by raw piece bytes) use this to recover the
// trailing non-bencode payload.
func (d *Decoder) Remaining() []byte {
	return d.buf[len(d.buf)-d.r.Len():]
}

// Unmarshal decodes a single bencoded value from buf into v (a pointer).
func Unmarshal(buf []byte, v any) error {
	d := NewDecoder(buf)
	val, err := d.DecodeValue()
	if err != nil {
		return err
	}
	return assign(reflect.ValueOf(v), val)
}

// DecodeValue decodes the next bencoded value into a generic Go
// representation: int64, []byte, []any, or map[string]any.
func (d *Decoder) DecodeValue() (any, error) {
	b, err := d.r.ReadByte()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	switch {
	case b == 'i':
		return d.decodeInt()
	case b == 'l':
		return d.decodeList()
	case b == 'd':
		return d.decodeDict()
	case b >= '0' && b <= '9':
		return d.decodeString(b)
	default:
		return nil, fmt.Errorf("%w: unexpected token %q", ErrInvalid, b)
	}
}

func (d *Decoder) decodeInt() (int64, error) {
	s, err := d.readUntil('e')
	if err != nil {
		return 0, err
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: bad integer %q: %w", ErrInvalid, s, err)
	}
	return n, nil
}

func (d *Decoder) decodeString(first byte) ([]byte, error) {
	lenStr, err := d.readUntil(':')
	if err != nil {
		return nil, err
	}
	n, err := strconv.Atoi(string(first) + lenStr)
	if err != nil || n < 0 {
		return nil, fmt.Errorf("%w: bad string length", ErrInvalid)
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(d.r, buf); err != nil {
		return nil, fmt.Errorf("%w: truncated string: %w", ErrInvalid, err)
	}
	return buf, nil
}

func (d *Decoder) decodeList() ([]any, error) {
	list := make([]any, 0, 4)
	for {
		peek, err := d.r.ReadByte()
		if err != nil {
			return nil, fmt.Errorf("%w: unterminated list: %w", ErrInvalid, err)
		}
		if peek == 'e' {
			return list, nil
		}
		_ = d.r.UnreadByte()
		v, err := d.DecodeValue()
		if err != nil {
			return nil, err
		}
		list = append(list, v)
	}
}

func (d *Decoder) decodeDict() (map[string]any, error) {
	dict := make(map[string]any)
	lastKey := ""
	first := true
	for {
		peek, err := d.r.ReadByte()
		if err != nil {
			return nil, fmt.Errorf("%w: unterminated dict: %w", ErrInvalid, err)
		}
		if peek == 'e' {
			return dict, nil
		}
		if peek < '0' || peek > '9' {
			return nil, fmt.Errorf("%w: dict key must be a byte string", ErrInvalid)
		}
		keyBytes, err := d.decodeString(peek)
		if err != nil {
			return nil, err
		}
		key := string(keyBytes)
		// Out-of-order keys are accepted and not reported; BEP-3 requires ascending
		// order on encode, decode tolerates violations.
		if !first && key < lastKey {
			// tolerated: do not error, the invariant is an encode-time one.
			_ = lastKey
		}
		lastKey, first = key, false

		v, err := d.DecodeValue()
		if err != nil {
			return nil, err
		}
		dict[key] = v
	}
}

func (d *Decoder) readUntil(delim byte) (string, error) {
	var out []byte
	for {
		b, err := d.r.ReadByte()
		if err != nil {
			return "", fmt.Errorf("%w: %w", ErrInvalid, err)
		}
		if b == delim {
			return string(out), nil
		}
		out = append(out, b)
	}
}

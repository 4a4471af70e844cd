package krpc

import (
	"fmt"

	"github.com/RIZAmohammadkhan/Serma/bencode"
)

// Encode serializes m to its bencoded wire form. The "e" key's
// irregular [code, message] list shape is built by hand; everything
// else goes through the generic struct codec.
func Encode(m Msg) ([]byte, error) {
	top := map[string]any{
		"t": m.T,
		"y": m.Y,
	}
	if m.Q != "" {
		top["q"] = m.Q
	}
	if m.A != nil {
		top["a"] = m.A
	}
	if m.R != nil {
		top["r"] = m.R
	}
	if m.E != nil {
		top["e"] = []any{int64(m.E.Code), m.E.Message}
	}
	if m.V != "" {
		top["v"] = m.V
	}
	if m.RO {
		top["ro"] = int64(1)
	}
	return bencode.Marshal(top)
}

// Decode parses buf into a Msg.
func Decode(buf []byte) (Msg, error) {
	var m Msg
	d := bencode.NewDecoder(buf)
	raw, err := d.DecodeValue()
	if err != nil {
		return m, err
	}
	top, ok := raw.(map[string]any)
	if !ok {
		return m, fmt.Errorf("krpc: top-level value must be a dict")
	}

	m.T = asString(top["t"])
	m.Y = asString(top["y"])
	m.Q = asString(top["q"])
	m.V = asString(top["v"])
	if ro, ok := top["ro"].(int64); ok {
		m.RO = ro != 0
	}

	if a, ok := top["a"].(map[string]any); ok {
		m.A = &Args{}
		if err := decodeInto(a, m.A); err != nil {
			return m, fmt.Errorf("krpc: bad args: %w", err)
		}
	}
	if r, ok := top["r"].(map[string]any); ok {
		m.R = &Return{}
		if err := decodeInto(r, m.R); err != nil {
			return m, fmt.Errorf("krpc: bad return: %w", err)
		}
	}
	if e, ok := top["e"].([]any); ok {
		m.E = &ErrBody{}
		if len(e) > 0 {
			if code, ok := e[0].(int64); ok {
				m.E.Code = int(code)
			}
		}
		if len(e) > 1 {
			m.E.Message = asString(e[1])
		}
	}

	if m.Y == "" {
		return m, fmt.Errorf("krpc: missing y")
	}
	if m.Y == TypeQuery && m.A == nil {
		return m, fmt.Errorf("krpc: query missing args")
	}
	return m, nil
}

func asString(v any) string {
	switch x := v.(type) {
	case []byte:
		return string(x)
	case string:
		return x
	default:
		return ""
	}
}

// decodeInto re-encodes a generic decoded dict and re-decodes it into a
// concrete struct, reusing the bencode package's struct-tag assignment
// instead of duplicating it here.
func decodeInto(m map[string]any, out any) error {
	enc, err := bencode.Marshal(passthroughMap(m))
	if err != nil {
		return err
	}
	return bencode.Unmarshal(enc, out)
}

// passthroughMap wraps a decoded map so byte-string values ([]byte) and
// nested maps/lists re-encode exactly as they were decoded.
func passthroughMap(m map[string]any) map[string]any {
	return m
}

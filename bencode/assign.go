package bencode

import (
	"fmt"
	"reflect"
)

// assign copies a decoded generic value (int64, []byte, []any,
// map[string]any) into dst, which must be a pointer.
func assign(dst reflect.Value, val any) error {
	if dst.Kind() != reflect.Ptr || dst.IsNil() {
		return fmt.Errorf("bencode: Unmarshal target must be a non-nil pointer")
	}
	return assignValue(dst.Elem(), val)
}

func assignValue(dst reflect.Value, val any) error {
	if val == nil {
		return nil
	}

	switch dst.Kind() {
	case reflect.Ptr:
		if dst.IsNil() {
			dst.Set(reflect.New(dst.Type().Elem()))
		}
		return assignValue(dst.Elem(), val)
	case reflect.Interface:
		dst.Set(reflect.ValueOf(val))
		return nil
	case reflect.String:
		b, ok := val.([]byte)
		if !ok {
			return fmt.Errorf("bencode: expected byte string for string field, got %T", val)
		}
		dst.SetString(string(b))
		return nil
	case reflect.Slice:
		if dst.Type().Elem().Kind() == reflect.Uint8 {
			b, ok := val.([]byte)
			if !ok {
				return fmt.Errorf("bencode: expected byte string, got %T", val)
			}
			dst.SetBytes(append([]byte(nil), b...))
			return nil
		}
		list, ok := val.([]any)
		if !ok {
			return fmt.Errorf("bencode: expected list, got %T", val)
		}
		out := reflect.MakeSlice(dst.Type(), len(list), len(list))
		for i, item := range list {
			if err := assignValue(out.Index(i), item); err != nil {
				return err
			}
		}
		dst.Set(out)
		return nil
	case reflect.Array:
		b, ok := val.([]byte)
		if !ok || dst.Type().Elem().Kind() != reflect.Uint8 {
			return fmt.Errorf("bencode: expected byte string for fixed array, got %T", val)
		}
		if len(b) != dst.Len() {
			return fmt.Errorf("bencode: expected %d bytes, got %d", dst.Len(), len(b))
		}
		reflect.Copy(dst, reflect.ValueOf(b))
		return nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, ok := val.(int64)
		if !ok {
			return fmt.Errorf("bencode: expected integer, got %T", val)
		}
		dst.SetInt(n)
		return nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n, ok := val.(int64)
		if !ok {
			return fmt.Errorf("bencode: expected integer, got %T", val)
		}
		dst.SetUint(uint64(n))
		return nil
	case reflect.Bool:
		n, ok := val.(int64)
		if !ok {
			return fmt.Errorf("bencode: expected integer for bool, got %T", val)
		}
		dst.SetBool(n != 0)
		return nil
	case reflect.Map:
		m, ok := val.(map[string]any)
		if !ok {
			return fmt.Errorf("bencode: expected dict, got %T", val)
		}
		out := reflect.MakeMapWithSize(dst.Type(), len(m))
		for k, v := range m {
			ev := reflect.New(dst.Type().Elem()).Elem()
			if err := assignValue(ev, v); err != nil {
				return err
			}
			out.SetMapIndex(reflect.ValueOf(k), ev)
		}
		dst.Set(out)
		return nil
	case reflect.Struct:
		m, ok := val.(map[string]any)
		if !ok {
			return fmt.Errorf("bencode: expected dict for struct, got %T", val)
		}
		for _, f := range structFields(dst.Type()) {
			fv, present := m[f.name]
			if !present {
				continue
			}
			if err := assignValue(dst.Field(f.idx), fv); err != nil {
				return fmt.Errorf("bencode: field %q: %w", f.name, err)
			}
		}
		return nil
	default:
		return fmt.Errorf("bencode: unsupported destination kind %s", dst.Kind())
	}
}

// Package conf provides the generic, per-component configuration
// unmarshalling used by every pluggable registry in this codebase
// (storage backends, frontends): a bag of arbitrary
// values decoded into a typed Config struct via `cfg:"..."` tags.
package conf

import (
	"github.com/mitchellh/mapstructure"
)

// MapConfig is a loosely typed configuration bag, usually built from a
// parsed config file section or from literal values in code/tests.
type MapConfig map[string]any

// Unmarshal decodes c into out, which must be a pointer to a struct whose
// fields carry `cfg:"name"` tags. time.Duration fields accept Go duration
// strings ("15s", "24h") as well as integers (nanoseconds).
func (c MapConfig) Unmarshal(out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
		WeaklyTypedInput: true,
		Result:           out,
		TagName:          "cfg",
	})
	if err != nil {
		return err
	}
	return dec.Decode(map[string]any(c))
}

// Merge returns a new MapConfig with values from other overriding c.
func (c MapConfig) Merge(other MapConfig) MapConfig {
	out := make(MapConfig, len(c)+len(other))
	for k, v := range c {
		out[k] = v
	}
	for k, v := range other {
		out[k] = v
	}
	return out
}

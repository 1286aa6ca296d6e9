package config

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// Config durations read as "30s" style strings. yaml.v3 only decodes
// bare integers into time.Duration fields, so every struct holding
// durations implements yaml.Unmarshaler: the duration keys are split
// off the mapping and parsed with time.ParseDuration, and the
// remaining keys decode through the plain struct fields.

// splitDurations parses and removes the named keys from a mapping
// node, storing each parsed value through its pointer. The returned
// node holds the remaining keys. Non-mapping nodes pass through
// untouched so null sections keep their zero values.
func splitDurations(value *yaml.Node, fields map[string]*time.Duration) (*yaml.Node, error) {
	if value.Kind != yaml.MappingNode {
		return value, nil
	}
	rest := *value
	rest.Content = make([]*yaml.Node, 0, len(value.Content))
	for i := 0; i+1 < len(value.Content); i += 2 {
		key, val := value.Content[i], value.Content[i+1]
		target, ok := fields[key.Value]
		if !ok {
			rest.Content = append(rest.Content, key, val)
			continue
		}
		d, err := parseDuration(val)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", key.Value, err)
		}
		*target = d
	}
	return &rest, nil
}

// parseDuration accepts "30s" style scalars and treats empty or null
// values as zero so defaulting still applies. Bare numbers are
// rejected rather than silently decoding as nanoseconds.
func parseDuration(value *yaml.Node) (time.Duration, error) {
	var s string
	if err := value.Decode(&s); err != nil {
		s = value.Value
	}
	if s == "" || s == "0" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q, use a unit such as \"30s\"", s)
	}
	return d, nil
}

package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// Parse decodes a JSON graph description.
// Only syntax is checked here; structural problems are reported when the graph is compiled.
func Parse(r io.Reader) (*GraphConfig, error) {
	cfg := &GraphConfig{}
	decoder := json.NewDecoder(r)
	if err := decoder.Decode(cfg); err != nil {
		return nil, fmt.Errorf("decoding graph config: %w", err)
	}
	if decoder.More() {
		return nil, fmt.Errorf("decoding graph config: unexpected data after top-level object")
	}
	return cfg, nil
}

// ParseBytes is Parse over an in-memory document.
func ParseBytes(data []byte) (*GraphConfig, error) {
	return Parse(bytes.NewReader(data))
}

// ParseFile reads and decodes the graph description at path.
func ParseFile(path string) (*GraphConfig, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening graph config: %w", err)
	}
	defer f.Close()

	return Parse(f)
}

// UnmarshalJSON accepts either a bare function name or an object.
func (a *ActivationConfig) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err == nil {
		*a = ActivationConfig{Function: name}
		return nil
	}

	type plain ActivationConfig
	var v plain
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("activation must be a string or an object: %w", err)
	}
	*a = ActivationConfig(v)
	return nil
}

// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// WriteYAML writes the redacted configuration as a YAML document that Loader
// accepts back.
func WriteYAML(w io.Writer, cfg AppConfig) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(Redacted(cfg)); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	return enc.Close()
}

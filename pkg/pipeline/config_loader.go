package pipeline

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// LoadConfig reads the YAML configuration file using strict parsing.
// Keys absent from the file keep their default value. The result is not
// validated; Build does that.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig() // Start with defaults

	if path == "" {
		return cfg, nil
	}

	file, err := os.Open(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to open pipeline config: %w", err)
	}
	defer file.Close()

	// Strict decoder: unknown keys fail.
	decoder := yaml.NewDecoder(file)
	decoder.KnownFields(true)

	if err := decoder.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return cfg, fmt.Errorf("YAML syntax error in pipeline config: %w", err)
	}

	return cfg, nil
}

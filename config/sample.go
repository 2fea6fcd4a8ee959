package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// WriteSample writes the default configuration as YAML to path. It refuses to
// overwrite an existing file unless force is set.
func WriteSample(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s already exists", path)
		}
	}

	data, err := yaml.Marshal(Default())
	if err != nil {
		return fmt.Errorf("encode sample: %w", err)
	}
	return os.WriteFile(path, data, 0o600)
}

package configstore

import (
	"fmt"
	"os"
	"regexp"
)

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// LoadFile reads a YAML configuration file, expands ${VAR} references from
// the environment and returns the flattened Values.
// The path is expected to come from command line arguments, controlled by the administrator.
func LoadFile(path string) (*Values, error) {
	// #nosec G304 -- path is from CLI args, controlled by admin
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	return Parse([]byte(expandEnvVars(string(data))))
}

// expandEnvVars expands ${VAR} patterns in the string. Unset variables expand to "".
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		return os.Getenv(match[2 : len(match)-1])
	})
}

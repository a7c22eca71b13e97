package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// MaxFileSize bounds the size of a config file.
const MaxFileSize = 1 << 20

// Load reads the file at path over Default and validates the result.
// The format follows the extension: .json, .yaml or .yml.
func Load(path string) (Config, error) {
	clean := filepath.Clean(path)
	format := strings.ToLower(filepath.Ext(clean))
	switch format {
	case ".json", ".yaml", ".yml":
	default:
		return Config{}, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}

	info, err := os.Stat(clean)
	if err != nil {
		return Config{}, fmt.Errorf("config: stat: %w", err)
	}
	if info.Size() > MaxFileSize {
		return Config{}, fmt.Errorf("%w: %d bytes (max %d)", ErrFileTooLarge, info.Size(), MaxFileSize)
	}

	data, err := os.ReadFile(clean)
	if err != nil {
		return Config{}, fmt.Errorf("config: read: %w", err)
	}
	return Parse(data, format)
}

// Parse decodes data over Default, expanding ${VAR} references first, and
// validates the result. format is ".json", ".yaml" or ".yml".
func Parse(data []byte, format string) (Config, error) {
	expanded, err := ExpandEnvStrict(string(data))
	if err != nil {
		return Config{}, err
	}

	cfg := Default()
	switch format {
	case ".json":
		dec := json.NewDecoder(strings.NewReader(expanded))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&cfg); err != nil {
			return Config{}, fmt.Errorf("config: parse json: %w", err)
		}
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(strings.NewReader(expanded))
		dec.KnownFields(true)
		if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
			return Config{}, fmt.Errorf("config: parse yaml: %w", err)
		}
	default:
		return Config{}, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// ExpandEnvStrict expands $VAR and ${VAR} in s from the environment.
// A ${VAR} naming an unset variable fails with ErrMissingEnv; $$ yields a
// literal $.
func ExpandEnvStrict(s string) (string, error) {
	const dollar = "\x00INFEROPS_DOLLAR\x00"
	s = strings.ReplaceAll(s, "$$", dollar)

	missing := make(map[string]struct{})
	for _, match := range envVarPattern.FindAllStringSubmatch(s, -1) {
		if _, ok := os.LookupEnv(match[1]); !ok {
			missing[match[1]] = struct{}{}
		}
	}
	if len(missing) > 0 {
		keys := make([]string, 0, len(missing))
		for k := range missing {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		return "", fmt.Errorf("%w: %s", ErrMissingEnv, strings.Join(keys, ", "))
	}

	s = os.ExpandEnv(s)
	return strings.ReplaceAll(s, dollar, "$"), nil
}

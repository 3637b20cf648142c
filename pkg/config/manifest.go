package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// ManifestFile is the Composer manifest name.
const ManifestFile = "composer.json"

// ConfigFileNames are looked up in the project root when extra.wpstarter does
// not point to a file.
var ConfigFileNames = []string{"wpstarter.json", "wpstarter.yaml", "wpstarter.yml"}

// Manifest is the subset of composer.json WP Starter reads.
type Manifest struct {
	Name   string         `json:"name"`
	Extra  map[string]any `json:"extra"`
	Config struct {
		VendorDir string `json:"vendor-dir"`
		BinDir    string `json:"bin-dir"`
	} `json:"config"`
}

// LoadManifest reads composer.json from root.
func LoadManifest(root string) (*Manifest, error) {
	path := filepath.Join(root, ManifestFile)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if m.Extra == nil {
		m.Extra = map[string]any{}
	}
	return &m, nil
}

// RawConfig returns the WP Starter settings: extra.wpstarter when it is an
// object, merged with the custom config file (extra.wpstarter as a path, or
// one of ConfigFileNames). File values win.
func (m *Manifest) RawConfig(root string) (map[string]any, error) {
	raw := map[string]any{}

	var file string
	switch v := m.Extra["wpstarter"].(type) {
	case map[string]any:
		for k, val := range v {
			raw[k] = val
		}
	case string:
		file = filepath.Join(root, v)
		if _, err := os.Stat(file); err != nil {
			return nil, fmt.Errorf("custom config file %s: %w", v, err)
		}
	case nil:
	default:
		return nil, fmt.Errorf("extra.wpstarter must be an object or a file path, got %T", v)
	}

	if file == "" {
		for _, name := range ConfigFileNames {
			candidate := filepath.Join(root, name)
			if _, err := os.Stat(candidate); err == nil {
				file = candidate
				break
			}
		}
	}
	if file == "" {
		return raw, nil
	}

	fromFile, err := readConfigFile(file)
	if err != nil {
		return nil, err
	}
	for k, v := range fromFile {
		raw[k] = v
	}
	return raw, nil
}

// configKeyDelimiter replaces viper's "." so that file names such as
// "object-cache.php" stay single keys. Viper still lowercases keys; dropins
// with upper case names must use the list form in a custom config file.
const configKeyDelimiter = "::"

func readConfigFile(path string) (map[string]any, error) {
	v := viper.NewWithOptions(viper.KeyDelimiter(configKeyDelimiter))
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return map[string]any{}, nil
		}
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	return v.AllSettings(), nil
}

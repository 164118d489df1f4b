package conf

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// ReconcileFile is the optional YAML overlay for correlation tuning
type ReconcileFile struct {
	Correlate *CorrelateConfig `yaml:"correlate"`
	Provider  *struct {
		MaxAttachments *int `yaml:"max_attachments"`
	} `yaml:"provider"`
}

// LoadReconcileFile overlays the reconcile YAML file onto cfg and returns the
// path that was read. An explicit path must exist; without one the default
// locations are tried and a missing file leaves cfg untouched.
func LoadReconcileFile(configPath string, cfg *Config) (string, error) {
	paths := []string{configPath}
	if configPath == "" {
		paths = []string{
			"configs/reconcile.yaml",
			"/etc/dispatch/reconcile.yaml",
		}
		// Add path relative to executable
		if execPath, err := os.Executable(); err == nil {
			paths = append(paths, filepath.Join(filepath.Dir(execPath), "configs", "reconcile.yaml"))
		}
	}

	var data []byte
	var loadedPath string
	for _, p := range paths {
		b, err := os.ReadFile(p)
		if err == nil {
			data, loadedPath = b, p
			break
		}
		if configPath != "" || !errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("failed to read %s: %w", p, err)
		}
	}
	if data == nil {
		return "", nil
	}

	// Decode over the current values so absent keys keep their defaults
	file := ReconcileFile{Correlate: &cfg.Correlate}
	if err := yaml.Unmarshal(data, &file); err != nil {
		return "", fmt.Errorf("failed to parse %s: %w", loadedPath, err)
	}
	if file.Provider != nil && file.Provider.MaxAttachments != nil {
		cfg.Provider.MaxAttachments = *file.Provider.MaxAttachments
	}

	return loadedPath, nil
}

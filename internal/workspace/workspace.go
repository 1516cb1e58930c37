// Package workspace manages the per-user data directory: configuration,
// the default database and archived reports.
package workspace

import (
	"fmt"
	"os"
	"path/filepath"
)

const BaseDirName = "AIDetector"

type Paths struct {
	Root    string
	Configs string
	Reports string
	Data    string
}

// ConfigFile is the config file loaded when no -config flag is given.
func (p Paths) ConfigFile() string { return filepath.Join(p.Configs, "config.toml") }

// DatabaseFile is the default sqlite database.
func (p Paths) DatabaseFile() string { return filepath.Join(p.Data, "detector.db") }

func EnsureDefault() (Paths, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return Paths{}, fmt.Errorf("resolve home: %w", err)
	}
	return EnsureAt(filepath.Join(home, BaseDirName))
}

func EnsureAt(base string) (Paths, error) {
	p := Paths{
		Root:    base,
		Configs: filepath.Join(base, "configs"),
		Reports: filepath.Join(base, "reports"),
		Data:    filepath.Join(base, "data"),
	}
	for _, dir := range []string{p.Configs, p.Reports, p.Data} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return Paths{}, fmt.Errorf("mkdir %s: %w", dir, err)
		}
	}
	return p, nil
}

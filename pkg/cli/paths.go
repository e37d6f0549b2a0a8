package cli

import (
	"os"
	"path/filepath"
)

// DefaultConfigFile is the config file name inside the app config dir.
const DefaultConfigFile = "config.yaml"

// Paths locates the per-user files of one app.
type Paths struct {
	AppName string

	// ConfigHome is the user config root, os.UserConfigDir() by default.
	ConfigHome string
}

// NewPaths resolves the user config root for appName.
func NewPaths(appName string) (*Paths, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return nil, err
	}
	return &Paths{AppName: appName, ConfigHome: dir}, nil
}

// AppDir returns <config home>/<app>.
func (p *Paths) AppDir() string {
	return filepath.Join(p.ConfigHome, p.AppName)
}

// ConfigFile returns <config home>/<app>/config.yaml.
func (p *Paths) ConfigFile() string {
	return filepath.Join(p.AppDir(), DefaultConfigFile)
}

// DataDir returns <config home>/<app>/data, used for on-disk stores.
func (p *Paths) DataDir() string {
	return filepath.Join(p.AppDir(), "data")
}

package helper

import (
	"os"
	"path/filepath"
)

const (
	etcDir          = "/etc/girder"
	fallbackPIDPath = "/var/run/girder.pid"
)

// GetCfgPath resolves a configuration file name. Absolute paths win, then an
// existing ./{name} or ./configs/{name}, then /etc/girder/{name}.
func GetCfgPath(name string) string {
	if name == "" {
		panic("config filename cannot be empty")
	}
	if filepath.IsAbs(name) {
		return name
	}
	for _, rel := range []string{name, filepath.Join("configs", name)} {
		if p, ok := resolveExisting(rel); ok {
			return p
		}
	}
	return filepath.Join(etcDir, name)
}

// GetPIDPath resolves a PID file name. Absolute paths win, then ./{name} when
// its parent directory exists, then /var/run/girder.pid. The file itself need
// not exist yet.
func GetPIDPath(name string) string {
	if name == "" {
		return fallbackPIDPath
	}
	if filepath.IsAbs(name) {
		return name
	}
	abs, err := filepath.Abs(name)
	if err != nil {
		return fallbackPIDPath
	}
	if _, err := os.Stat(filepath.Dir(abs)); err != nil {
		return fallbackPIDPath
	}
	return abs
}

func resolveExisting(rel string) (string, bool) {
	abs, err := filepath.Abs(rel)
	if err != nil {
		return "", false
	}
	if _, err := os.Stat(abs); err != nil {
		return "", false
	}
	return abs, true
}

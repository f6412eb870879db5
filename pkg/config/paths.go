package config

import (
	"os"
	"path/filepath"
)

func defaultTokenPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "bank-client", "session.json")
}

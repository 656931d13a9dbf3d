package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/subosito/gotenv"
)

// ENV_DIR holds the per-environment dotenv files.
const ENV_DIR = "config/envs"

// LoadEnv applies <dir>/.env.<env> to the process environment, falling back
// to $APP_ENV and then "dev" when env is empty. Variables already set in the
// environment are kept. It returns the file it applied, or "" when there was
// none.
func LoadEnv(dir, env string) (string, error) {
	if env == "" {
		env = os.Getenv("APP_ENV")
	}
	if env == "" {
		env = "dev"
	}

	file := filepath.Join(dir, ".env."+env)
	if err := gotenv.Load(file); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", nil
		}
		return "", fmt.Errorf("failed to load %s: %w", file, err)
	}
	return file, nil
}

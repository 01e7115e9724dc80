package relayd

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
)

// resolveBinary picks the relay executable: an explicit path from the
// config, then the RELAYD_EXE environment variable, then DefaultBinary on
// the PATH. The chosen path must exist and be executable.
func resolveBinary(cfg Config) (string, error) {
	if cfg.Binary != "" {
		return validateBinary(cfg.Binary)
	}
	if path, ok := cfg.LookupEnv(BinaryEnvVar); ok && path != "" {
		return validateBinary(path)
	}
	path, err := exec.LookPath(DefaultBinary)
	if err != nil {
		return "", fmt.Errorf("%w: %q is not on the PATH (set %s or Config.Binary)",
			ErrBinaryNotFound, DefaultBinary, BinaryEnvVar)
	}
	return filepath.Abs(path)
}

func validateBinary(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrBinaryNotFound, path)
	}
	if info.IsDir() || info.Mode().Perm()&0o111 == 0 {
		return "", fmt.Errorf("%w: %s is not executable", ErrBinaryNotFound, path)
	}
	return filepath.Abs(path)
}

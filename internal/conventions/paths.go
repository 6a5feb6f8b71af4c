package conventions

import "path/filepath"

const (
	// DefaultDataDir is the default prun data directory name (relative to home).
	DefaultDataDir = ".prun"
	// DBFile is the run history SQLite database filename.
	DBFile = "prun.db"
	// EnvPrefix is the prefix of the environment variables that set flag values.
	EnvPrefix = "PRUN"
)

// DataDir returns the prun data directory inside a home directory.
func DataDir(homeDir string) string {
	return filepath.Join(homeDir, DefaultDataDir)
}

// DBPath returns the default run history database path inside a home directory.
func DBPath(homeDir string) string {
	return filepath.Join(DataDir(homeDir), DBFile)
}

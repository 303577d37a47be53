package conventions

import "path/filepath"

const (
	// DefaultDataDir is the default mlprobe data directory name (relative to home).
	DefaultDataDir = ".mlprobe"
	// DBFile is the SQLite database filename with the run history and the exports.
	DBFile = "mlprobe.db"
)

// DataDir returns the mlprobe data directory of a home directory.
func DataDir(home string) string {
	return filepath.Join(home, DefaultDataDir)
}

// DBPath returns the default database path of a home directory.
func DBPath(home string) string {
	return filepath.Join(DataDir(home), DBFile)
}

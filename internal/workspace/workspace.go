package workspace

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Standard subdirectories of a workspace.
const (
	DirRecordings = "recordings"
	DirReports    = "reports"
	DirLogs       = "logs"
	DirScripts    = "scripts"
)

// Handle implements app.WorkspaceHandle and provides helper methods.
type Handle struct {
	Root string
}

// Path joins workspace root with provided parts.
func (h Handle) Path(parts ...string) string {
	all := append([]string{h.Root}, parts...)
	return filepath.Join(all...)
}

// SessionFile names a per-session artifact such as
// recordings/20260102-150405-<id>.cbor.
func (h Handle) SessionFile(dir, sessionID, ext string, at time.Time) string {
	return h.Path(dir, fmt.Sprintf("%s-%s.%s", at.UTC().Format("20060102-150405"), sessionID, ext))
}

// Ensure creates the workspace directory structure if missing.
func Ensure(root string) (Handle, error) {
	h := Handle{Root: root}
	dirs := []string{
		root,
		filepath.Join(root, DirRecordings),
		filepath.Join(root, DirReports),
		filepath.Join(root, DirLogs),
		filepath.Join(root, DirScripts),
	}
	for _, d := range dirs {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return h, fmt.Errorf("failed to create directory %s: %w", d, err)
		}
	}
	return h, nil
}

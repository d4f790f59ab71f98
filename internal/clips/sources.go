package clips

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// videoExtensions lists accepted period-file extensions.
var videoExtensions = []string{".mp4", ".MOV", ".mov"}

// sourceDir returns the directory holding one team's period files for a
// season.
func sourceDir(root, season, teamCode string) string {
	return filepath.Join(root, season, "team", teamCode)
}

// sourceIndex locates period video files under the clips root. Period files
// are named p<period>-...-<gameID>.<ext>; directory listings are cached for
// the lifetime of one extraction.
type sourceIndex struct {
	root   string
	logger *slog.Logger
	dirs   map[string][]os.DirEntry
}

func newSourceIndex(root string, logger *slog.Logger) *sourceIndex {
	return &sourceIndex{root: root, logger: logger, dirs: make(map[string][]os.DirEntry)}
}

// locate returns the path of the period video for (game, period), or ""
// when no matching file exists.
func (s *sourceIndex) locate(season, teamCode, gameID string, period int) string {
	dir := sourceDir(s.root, season, teamCode)
	entries, ok := s.dirs[dir]
	if !ok {
		var err error
		entries, err = os.ReadDir(dir)
		if err != nil {
			s.logger.Warn("clips: source directory unreadable", "dir", dir, "error", err)
			entries = nil
		}
		s.dirs[dir] = entries
	}
	return findSource(entries, dir, gameID, period)
}

// findSource scans a directory listing for the period file of (game,
// period).
func findSource(entries []os.DirEntry, dir, gameID string, period int) string {
	prefix := fmt.Sprintf("p%d-", period)
	for _, ent := range entries {
		if ent.IsDir() {
			continue
		}
		name := ent.Name()
		ext := filepath.Ext(name)
		if !acceptedExtension(ext) {
			continue
		}
		if !strings.HasPrefix(name, prefix) {
			continue
		}
		if strings.HasSuffix(strings.TrimSuffix(name, ext), "-"+gameID) {
			return filepath.Join(dir, name)
		}
	}
	return ""
}

func acceptedExtension(ext string) bool {
	for _, e := range videoExtensions {
		if ext == e {
			return true
		}
	}
	return false
}

package logs

import (
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"time"

	"github.com/rileyhilliard/fleetrun/internal/config"
	"github.com/rileyhilliard/fleetrun/internal/errors"
	"github.com/rileyhilliard/fleetrun/internal/util"
)

// logDir represents a run directory with metadata for cleanup decisions.
type logDir struct {
	path    string
	modTime time.Time
	size    int64
}

// Cleanup prunes old run directories. Rules apply in order: MaxSizeMB,
// KeepDays, KeepRuns. Unset rules are skipped.
func Cleanup(cfg config.LogsConfig) error {
	if cfg.Dir == "" {
		return nil
	}
	baseDir := util.ExpandHome(cfg.Dir)

	if _, err := os.Stat(baseDir); os.IsNotExist(err) {
		return nil
	}

	if cfg.MaxSizeMB > 0 {
		if err := CleanBySize(baseDir, int64(cfg.MaxSizeMB)*1024*1024); err != nil {
			return err
		}
	}
	if cfg.KeepDays > 0 {
		if err := CleanByAge(baseDir, time.Duration(cfg.KeepDays)*24*time.Hour); err != nil {
			return err
		}
	}
	if cfg.KeepRuns > 0 {
		if err := CleanByRuns(baseDir, cfg.KeepRuns); err != nil {
			return err
		}
	}
	return nil
}

// CleanByRuns keeps the newest keep runs for each run name.
func CleanByRuns(baseDir string, keep int) error {
	if keep <= 0 {
		return nil
	}

	dirs, err := listLogDirs(baseDir)
	if err != nil {
		return err
	}

	groups := make(map[string][]logDir)
	for _, d := range dirs {
		name := extractRunName(filepath.Base(d.path))
		groups[name] = append(groups[name], d)
	}

	for _, group := range groups {
		sort.Slice(group, func(i, j int) bool {
			return group[i].modTime.After(group[j].modTime)
		})
		if len(group) <= keep {
			continue
		}
		if err := removeAll(group[keep:]); err != nil {
			return err
		}
	}
	return nil
}

// CleanByAge deletes runs older than maxAge.
func CleanByAge(baseDir string, maxAge time.Duration) error {
	if maxAge <= 0 {
		return nil
	}

	dirs, err := listLogDirs(baseDir)
	if err != nil {
		return err
	}

	cutoff := time.Now().Add(-maxAge)
	var old []logDir
	for _, d := range dirs {
		if d.modTime.Before(cutoff) {
			old = append(old, d)
		}
	}
	return removeAll(old)
}

// CleanBySize deletes the oldest runs until the total is under maxBytes.
func CleanBySize(baseDir string, maxBytes int64) error {
	if maxBytes <= 0 {
		return nil
	}

	dirs, err := listLogDirs(baseDir)
	if err != nil {
		return err
	}

	var total int64
	for _, d := range dirs {
		total += d.size
	}
	if total <= maxBytes {
		return nil
	}

	sort.Slice(dirs, func(i, j int) bool {
		return dirs[i].modTime.Before(dirs[j].modTime)
	})

	for _, d := range dirs {
		if total <= maxBytes {
			break
		}
		if err := removeAll([]logDir{d}); err != nil {
			return err
		}
		total -= d.size
	}
	return nil
}

// CleanAll removes every run directory and reports how many went.
func CleanAll(baseDir string) (int, error) {
	dirs, err := listLogDirs(util.ExpandHome(baseDir))
	if err != nil {
		return 0, err
	}
	if err := removeAll(dirs); err != nil {
		return 0, err
	}
	return len(dirs), nil
}

// LogDirInfo describes one run directory for display.
type LogDirInfo struct {
	Path    string
	Name    string
	RunName string
	ModTime time.Time
	Size    int64
}

// ListLogDirs returns run directories, newest first.
func ListLogDirs(baseDir string) ([]LogDirInfo, error) {
	dirs, err := listLogDirs(util.ExpandHome(baseDir))
	if err != nil {
		return nil, err
	}

	sort.Slice(dirs, func(i, j int) bool {
		return dirs[i].modTime.After(dirs[j].modTime)
	})

	result := make([]LogDirInfo, len(dirs))
	for i, d := range dirs {
		name := filepath.Base(d.path)
		result[i] = LogDirInfo{
			Path:    d.path,
			Name:    name,
			RunName: extractRunName(name),
			ModTime: d.modTime,
			Size:    d.size,
		}
	}
	return result, nil
}

func removeAll(dirs []logDir) error {
	for _, d := range dirs {
		if err := os.RemoveAll(d.path); err != nil {
			return errors.WrapWithCode(err, errors.ErrExec,
				"Can't delete log directory "+d.path,
				"Check your permissions.")
		}
	}
	return nil
}

func listLogDirs(baseDir string) ([]logDir, error) {
	entries, err := os.ReadDir(baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.WrapWithCode(err, errors.ErrExec,
			"Can't read log directory "+baseDir,
			"Check your permissions.")
	}

	var dirs []logDir
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		path := filepath.Join(baseDir, entry.Name())
		dirs = append(dirs, logDir{
			path:    path,
			modTime: info.ModTime(),
			size:    dirSize(path),
		})
	}
	return dirs, nil
}

func dirSize(path string) int64 {
	var size int64
	_ = filepath.WalkDir(path, func(_ string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if info, err := d.Info(); err == nil {
			size += info.Size()
		}
		return nil
	})
	return size
}

// runStamp matches the -YYYYMMDD-HHMMSS suffix NewLogWriter appends.
var runStamp = regexp.MustCompile(`^(.+)-\d{8}-\d{6}$`)

// extractRunName strips the timestamp from a run directory name. Names
// without one come back unchanged.
func extractRunName(dirName string) string {
	if m := runStamp.FindStringSubmatch(dirName); m != nil {
		return m[1]
	}
	return dirName
}

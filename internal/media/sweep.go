package media

import (
	"io/fs"
	"os"
	"path/filepath"
	"time"
)

// SweepResult lists what a sweep removed and what it could not.
type SweepResult struct {
	Removed []string
	Failed  map[string]error
}

// Sweep deletes regular files under root accepted by match and last modified
// more than olderThan before now. A failure on one file never stops the walk.
// A missing root is an empty sweep.
func Sweep(root string, match func(name string) bool, olderThan time.Duration, now time.Time) SweepResult {
	res := SweepResult{Failed: map[string]error{}}
	cutoff := now.Add(-olderThan)

	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path != root {
				res.Failed[path] = err
			}
			return nil
		}
		if d.IsDir() || (match != nil && !match(d.Name())) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			res.Failed[path] = err
			return nil
		}
		if !info.Mode().IsRegular() || !info.ModTime().Before(cutoff) {
			return nil
		}
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			res.Failed[path] = err
			return nil
		}
		res.Removed = append(res.Removed, path)
		return nil
	})
	return res
}

// HasExt matches file names by extension.
func HasExt(exts ...string) func(string) bool {
	return func(name string) bool {
		e := filepath.Ext(name)
		for _, x := range exts {
			if e == x {
				return true
			}
		}
		return false
	}
}

// PruneEmptyDirs removes the empty directories under root, deepest first, and
// returns them. root itself and directories for which keep reports true stay.
func PruneEmptyDirs(root string, keep func(path string) bool) []string {
	var dirs []string
	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() && path != root {
			dirs = append(dirs, path)
		}
		return nil
	})

	var removed []string
	for i := len(dirs) - 1; i >= 0; i-- {
		if keep != nil && keep(dirs[i]) {
			continue
		}
		// fails on non-empty dirs, which is the point
		if err := os.Remove(dirs[i]); err == nil {
			removed = append(removed, dirs[i])
		}
	}
	return removed
}

// Package finder locates files whose names match a pattern, streaming entries
// as the walk discovers them.
package finder

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"regexp"
	"strings"
)

// Entry is one found filesystem entry.
type Entry struct {
	Path string
	Dir  bool
}

// EmitFunc receives entries as they are found. Returning an error aborts the
// walk and is propagated out of Find.
type EmitFunc func(Entry) error

// Find walks dir recursively and emits every entry whose name matches the
// regular expression pattern; matching directories are reported with Dir
// set and still descended into. Hidden directories (including .git) are
// skipped. Unreadable entries are skipped, not fatal. The walk stops early
// when ctx is canceled.
func Find(ctx context.Context, dir, pattern string, emit EmitFunc) error {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return fmt.Errorf("invalid pattern %q: %w", pattern, err)
	}

	root := filepath.Clean(dir)
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			if path == root {
				return fmt.Errorf("failed to walk %s: %w", root, walkErr)
			}
			// Unreadable subtree: move on.
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}

		if err := ctx.Err(); err != nil {
			return err
		}

		if d.IsDir() {
			if path == root {
				return nil
			}
			if strings.HasPrefix(d.Name(), ".") {
				return fs.SkipDir
			}
			if re.MatchString(d.Name()) {
				// The directory itself is a hit; its contents are still
				// walked.
				return emit(Entry{Path: path, Dir: true})
			}
			return nil
		}

		if !re.MatchString(d.Name()) {
			return nil
		}

		return emit(Entry{Path: path})
	})
	if err != nil {
		return err
	}
	return nil
}

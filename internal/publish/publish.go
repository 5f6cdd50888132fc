// Package publish owns the output side of a cycle: writing the compiled
// tree to a staging directory and atomically swapping it into the published
// location. Publication is all-or-nothing; a failed cycle leaves the
// previously published tree untouched (fail-static).
package publish

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/roach88/stele/internal/resource"
)

// WriteStaging serializes every document in the tree into dir, creating
// parent directories as needed. dir should be a fresh staging location;
// existing files are overwritten.
func WriteStaging(tree *resource.Tree, dir string) error {
	for _, path := range tree.Paths() {
		doc := tree.Get(path)
		b, err := doc.MarshalCanonical()
		if err != nil {
			return fmt.Errorf("write staging: %w", err)
		}
		target := filepath.Join(dir, filepath.FromSlash(strings.TrimPrefix(path, "/")))
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return fmt.Errorf("write staging: %w", err)
		}
		if err := os.WriteFile(target, b, 0o644); err != nil {
			return fmt.Errorf("write staging: %w", err)
		}
	}
	return nil
}

// Swap atomically replaces published with staging via a symlink flip: the
// staging tree moves to a uniquely named generation directory, then a
// symlink is renamed over the published path. Renaming a symlink is the
// only step that touches the published path, so readers resolve either the
// old generation or the new one and the path never goes missing. The
// superseded generation is removed last.
func Swap(staging, published string) error {
	gen := fmt.Sprintf("%s.gen-%d", published, time.Now().UnixNano())
	if err := os.Rename(staging, gen); err != nil {
		return fmt.Errorf("swap: stage generation: %w", err)
	}

	// A plain directory at the published path (from before symlink
	// publishing) cannot be replaced atomically; move it aside first.
	var old string
	movedAside := false
	if fi, err := os.Lstat(published); err == nil {
		if fi.Mode()&os.ModeSymlink != 0 {
			target, err := os.Readlink(published)
			if err != nil {
				return fmt.Errorf("swap: %w", err)
			}
			if !filepath.IsAbs(target) {
				target = filepath.Join(filepath.Dir(published), target)
			}
			old = target
		} else {
			old = published + ".old"
			movedAside = true
			if err := os.Rename(published, old); err != nil {
				return fmt.Errorf("swap: move aside published tree: %w", err)
			}
		}
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("swap: %w", err)
	}

	link := gen + ".link"
	if err := os.Symlink(filepath.Base(gen), link); err != nil {
		return fmt.Errorf("swap: %w", err)
	}
	if err := os.Rename(link, published); err != nil {
		_ = os.Remove(link)
		if movedAside {
			if restoreErr := os.Rename(old, published); restoreErr != nil {
				return fmt.Errorf("swap failed and restore failed (published tree is at %s): %v; original error: %w", old, restoreErr, err)
			}
		}
		return fmt.Errorf("swap: %w", err)
	}

	if old != "" {
		if err := os.RemoveAll(old); err != nil {
			// The new tree is live; a leftover generation is cleanup debt,
			// not a publication failure.
			return fmt.Errorf("swap: remove old tree: %w", err)
		}
	}
	return nil
}

// Discard removes a staging directory after a failed cycle.
func Discard(staging string) error {
	return os.RemoveAll(staging)
}

// ReadBytes loads every .json file under dir into a map keyed by canonical
// resource path ("/series/s1/index.json"). Used to feed the previous
// published tree into the leaf-immutability check.
func ReadBytes(dir string) (map[string][]byte, error) {
	// WalkDir does not descend through a symlink root, and the published
	// path is a symlink to the live generation.
	if resolved, err := filepath.EvalSymlinks(dir); err == nil {
		dir = resolved
	}
	out := make(map[string][]byte)
	err := filepath.WalkDir(dir, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(p, ".json") {
			return nil
		}
		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}
		b, err := os.ReadFile(p)
		if err != nil {
			return err
		}
		out["/"+filepath.ToSlash(rel)] = b
		return nil
	})
	if err != nil {
		if os.IsNotExist(err) {
			return map[string][]byte{}, nil
		}
		return nil, fmt.Errorf("read tree: %w", err)
	}
	return out, nil
}

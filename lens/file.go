package lens

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"
	"sync"

	"github.com/go-analyze/bulk"
	"golang.org/x/sync/errgroup"
)

// FileExists reports whether the named file exists.
func FileExists(filename string) bool {
	if _, err := os.Stat(filename); err != nil {
		return !os.IsNotExist(err)
	}
	return true
}

// fileWithinDir returns true if the provided filePath is within the given directory.
func fileWithinDir(filePath, dirPath string) (bool, error) {
	absFile, err := filepath.Abs(filePath)
	if err != nil {
		return false, err
	}
	absDir, err := filepath.Abs(dirPath)
	if err != nil {
		return false, err
	}

	rel, err := filepath.Rel(filepath.Clean(absDir), filepath.Clean(absFile))
	if err != nil {
		return false, err
	}
	// If rel starts with "..", file is outside the directory
	if rel == ".." || strings.HasPrefix(filepath.ToSlash(rel), "../") {
		return false, nil
	}
	return true, nil
}

// replaceFile moves source over destination in one rename, an existing destination stays
// visible until the new content replaces it. Both paths must be on the same filesystem.
func replaceFile(source, destination string) error {
	return os.Rename(source, destination)
}

// writeFileAtomic writes data next to path and moves it into place, readers never observe a
// partially written file.
func writeFileAtomic(path string, data []byte) (err error) {
	if err = os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = os.Remove(tmp.Name())
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	} else if err = tmp.Close(); err != nil {
		return err
	} else if err = os.Chmod(tmp.Name(), 0644); err != nil {
		return err
	}
	return replaceFile(tmp.Name(), path)
}

func hasExtension(path string, extensions map[string]struct{}) bool {
	_, ok := extensions[strings.ToLower(filepath.Ext(path))]
	return ok
}

func normalizeExtensions(extensions []string) map[string]struct{} {
	normalized := make([]string, len(extensions))
	for i, ext := range extensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext != "" && !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		normalized[i] = ext
	}
	return bulk.SliceToSet(normalized)
}

// findSources returns the source files below root relative to it, in sorted order. Directories
// named in excludeDirs and the skipDir path are not descended into.
func findSources(ctx context.Context, root, skipDir string, extensions, excludeDirs []string) ([]string, error) {
	exts := normalizeExtensions(extensions)
	excluded := bulk.SliceToSet(excludeDirs)
	skipDir = filepath.Clean(skipDir)

	var sources []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		} else if err = ctx.Err(); err != nil {
			return err
		}

		if d.IsDir() {
			if path == root {
				return nil
			} else if _, ok := excluded[d.Name()]; ok || filepath.Clean(path) == skipDir {
				return filepath.SkipDir
			}
			return nil
		} else if !d.Type().IsRegular() || !hasExtension(path, exts) {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		sources = append(sources, rel)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("find sources in %s: %w", root, err)
	}
	slices.Sort(sources)
	return sources, nil
}

// pruneOrphans removes generated files below generatedDir whose original below projectDir no
// longer exists. Only files starting with a freshness marker are removed.
func pruneOrphans(ctx context.Context, projectDir, generatedDir string, extensions []string) ([]string, error) {
	if !FileExists(generatedDir) {
		return nil, nil
	}
	exts := normalizeExtensions(extensions)

	var mu sync.Mutex
	var removed []string
	err := concurrentWalk(ctx, generatedDir, true, func(path string, info os.FileInfo) error {
		if info.IsDir() || !hasExtension(path, exts) {
			return nil
		}
		rel, err := filepath.Rel(generatedDir, path)
		if err != nil {
			return err
		} else if FileExists(filepath.Join(projectDir, rel)) {
			return nil
		}
		if first, err := readFirstLine(path); err != nil {
			return err
		} else if _, _, ok := ParseFreshnessMarker(first); !ok {
			return nil // not written by us
		}
		if err := os.Remove(path); err != nil {
			return err
		}

		mu.Lock()
		defer mu.Unlock()
		removed = append(removed, rel)
		return nil
	})
	slices.Sort(removed)
	return removed, err
}

func concurrentWalk(ctx context.Context, root string, skipSymlink bool, handler func(path string, info os.FileInfo) error) error {
	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(runtime.NumCPU() * 4)
	err1 := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		select { // abort walk if early failure
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		eg.Go(func() error {
			info, err := d.Info()
			if err != nil {
				return err
			} else if skipSymlink && info.Mode()&os.ModeSymlink != 0 {
				return nil // skip symlinks
			}
			return handler(path, info)
		})
		return nil
	})
	err2 := eg.Wait()
	return errors.Join(err1, err2)
}

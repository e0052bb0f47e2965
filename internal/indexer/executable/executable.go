package executable

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// ExecutableInfo contains information about an executable file
type ExecutableInfo struct {
	Name string // Executable name
	Path string // Full path to executable
}

// ScanPaths sends every executable found below paths to resultChan and
// closes it when done. A cancelled context stops the scan early.
func ScanPaths(ctx context.Context, paths []string, resultChan chan<- *ExecutableInfo) error {
	defer close(resultChan)

	for _, path := range paths {
		if err := scanPath(ctx, path, resultChan); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			// Continue scanning other paths even if one fails
			continue
		}
	}
	return nil
}

func scanPath(ctx context.Context, rootPath string, resultChan chan<- *ExecutableInfo) error {
	return filepath.WalkDir(rootPath, func(path string, d fs.DirEntry, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err != nil {
			// Skip directories we can't access
			if d != nil && d.IsDir() && path != rootPath {
				return filepath.SkipDir
			}
			return err
		}

		if d.IsDir() {
			return nil
		}

		// Skip hidden files (starting with .)
		baseName := filepath.Base(path)
		if strings.HasPrefix(baseName, ".") {
			return nil
		}

		// Symlinks are common in bin dirs; judge the target
		info, err := d.Info()
		if d.Type()&fs.ModeSymlink != 0 {
			info, err = os.Stat(path)
		}
		if err != nil || info.IsDir() || !isExecutable(info) {
			return nil
		}

		select {
		case resultChan <- &ExecutableInfo{Name: baseName, Path: path}:
		case <-ctx.Done():
			return ctx.Err()
		}
		return nil
	})
}

func isExecutable(info fs.FileInfo) bool {
	// Check if file has execute permission for user, group, or others
	return info.Mode()&0111 != 0
}

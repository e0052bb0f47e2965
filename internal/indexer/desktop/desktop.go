package desktop

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/0xADE/ade-launchd/internal/app"
	"github.com/google/shlex"
	"github.com/panjf2000/ants/v2"
)

// DesktopEntry represents a parsed .desktop file
type DesktopEntry struct {
	Name       string            // Default name
	Names      map[string]string // Localized names (locale -> name)
	Exec       string            // Exec command
	Icon       string            // Icon name or path
	Type       string            // Entry type, "Application" for launchables
	Terminal   bool              // Whether to run in terminal
	NoDisplay  bool              // Hidden from menus
	Hidden     bool              // Deleted by the user
	Path       string            // Path to .desktop file
}

// Scan parses every .desktop file below dirs using a pool of workers.
// Results keep directory order, then lexical path order within a directory,
// and leave out entries that should not be shown.
func Scan(ctx context.Context, dirs []string, workers int) ([]*DesktopEntry, error) {
	var paths []string
	for _, dir := range dirs {
		found, err := listDesktopFiles(dir)
		if err != nil {
			// Continue scanning other paths
			continue
		}
		paths = append(paths, found...)
	}

	if workers < 1 {
		workers = 1
	}
	pool, err := ants.NewPool(workers)
	if err != nil {
		return nil, fmt.Errorf("failed to create worker pool: %w", err)
	}
	defer pool.Release()

	results := make([]*DesktopEntry, len(paths))
	var wg sync.WaitGroup
	for i, path := range paths {
		if ctx.Err() != nil {
			break
		}
		wg.Add(1)
		err := pool.Submit(func() {
			defer wg.Done()
			entry, err := ParseDesktopFile(path)
			if err != nil {
				// Skip invalid files
				return
			}
			results[i] = entry
		})
		if err != nil {
			wg.Done()
			wg.Wait()
			return nil, fmt.Errorf("failed to submit %s: %w", path, err)
		}
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	entries := make([]*DesktopEntry, 0, len(results))
	for _, entry := range results {
		if entry != nil && entry.Visible() {
			entries = append(entries, entry)
		}
	}
	return entries, nil
}

func listDesktopFiles(rootPath string) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(rootPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if d != nil && d.IsDir() && path != rootPath {
				return filepath.SkipDir
			}
			return err
		}
		if d.IsDir() || !strings.HasSuffix(path, ".desktop") {
			return nil
		}
		paths = append(paths, path)
		return nil
	})
	return paths, err
}

// ParseDesktopFile parses a single .desktop file
func ParseDesktopFile(path string) (*DesktopEntry, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	entry := &DesktopEntry{
		Path:  path,
		Names: make(map[string]string),
	}

	scanner := bufio.NewScanner(file)
	var inDesktopEntry bool

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		// Check for section header
		if strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]") {
			inDesktopEntry = strings.Trim(line, "[]") == "Desktop Entry"
			continue
		}

		if !inDesktopEntry {
			continue
		}

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)

		switch key {
		case "Name":
			entry.Name = value
		case "Exec":
			entry.Exec = value
		case "Icon":
			entry.Icon = value
		case "Type":
			entry.Type = value
		case "Terminal":
			entry.Terminal = strings.EqualFold(value, "true")
		case "NoDisplay":
			entry.NoDisplay = strings.EqualFold(value, "true")
		case "Hidden":
			entry.Hidden = strings.EqualFold(value, "true")
		default:
			// Check for localized Name[locale]
			if strings.HasPrefix(key, "Name[") && strings.HasSuffix(key, "]") {
				entry.Names[key[5:len(key)-1]] = value
			}
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}

	if entry.Name == "" && entry.Exec == "" {
		return nil, errors.New("missing required fields")
	}

	// Use filename without extension when Name is missing
	if entry.Name == "" {
		entry.Name = strings.TrimSuffix(filepath.Base(path), ".desktop")
	}

	return entry, nil
}

// Visible reports whether the entry belongs in a launcher
func (d *DesktopEntry) Visible() bool {
	if d.NoDisplay || d.Hidden || d.Exec == "" {
		return false
	}
	return d.Type == "" || d.Type == "Application"
}

// GetLocalizedName returns the localized name for the given locale, or default name
func (d *DesktopEntry) GetLocalizedName(locale string) string {
	return app.LocalizedName(d.Names, d.Name, locale)
}

// ExpandExecCommand splits the Exec line into argv and expands its field
// codes. %f and %u take the first of files, %F and %U take all of them and
// vanish when files is empty. %i becomes --icon <Icon>, %c the name and %k
// the desktop file path. Deprecated codes are dropped.
func (d *DesktopEntry) ExpandExecCommand(files ...string) ([]string, error) {
	words, err := shlex.Split(d.Exec)
	if err != nil {
		return nil, fmt.Errorf("failed to split Exec of %s: %w", d.Path, err)
	}

	argv := make([]string, 0, len(words)+len(files))
	for _, w := range words {
		switch w {
		case "%f", "%u":
			if len(files) > 0 {
				argv = append(argv, files[0])
			}
			continue
		case "%F", "%U":
			argv = append(argv, files...)
			continue
		case "%i":
			if d.Icon != "" {
				argv = append(argv, "--icon", d.Icon)
			}
			continue
		}

		w = strings.ReplaceAll(w, "%c", d.Name)
		w = strings.ReplaceAll(w, "%k", d.Path)
		if w = removeFieldCodes(w); w != "" {
			argv = append(argv, w)
		}
	}
	return argv, nil
}

func removeFieldCodes(s string) string {
	var result strings.Builder
	i := 0
	for i < len(s) {
		if s[i] == '%' && i+1 < len(s) {
			next := s[i+1]
			if (next >= 'a' && next <= 'z') || (next >= 'A' && next <= 'Z') || next == '%' {
				if next == '%' {
					result.WriteByte('%')
				}
				i += 2
				continue
			}
		}
		result.WriteByte(s[i])
		i++
	}
	return result.String()
}

// CleanExecCommand removes field codes and extra spaces from exec command
func CleanExecCommand(exec string) string {
	fields := strings.Fields(removeFieldCodes(exec))
	return strings.Join(fields, " ")
}

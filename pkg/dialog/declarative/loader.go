package declarative

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

// Loader loads and optionally hot-reloads dialog definitions from YAML files.
type Loader struct {
	dir string
}

// NewLoader creates a new dialog loader for the given directory.
func NewLoader(dir string) *Loader {
	return &Loader{dir: dir}
}

// Dir returns the watched directory.
func (l *Loader) Dir() string { return l.dir }

// LoadAll loads all .yaml and .yml files from the configured directory. A
// file that fails to parse or validate fails the whole load.
func (l *Loader) LoadAll() (map[string]*Definition, error) {
	entries, err := os.ReadDir(l.dir)
	if err != nil {
		return nil, fmt.Errorf("read dialog dir %q: %w", l.dir, err)
	}

	result := make(map[string]*Definition)
	for _, entry := range entries {
		if entry.IsDir() || !isYAML(entry.Name()) {
			continue
		}

		path := filepath.Join(l.dir, entry.Name())
		d, err := l.loadFile(path)
		if err != nil {
			return nil, fmt.Errorf("load %q: %w", path, err)
		}
		if _, dup := result[d.Name]; dup {
			return nil, fmt.Errorf("load %q: dialog %q defined twice", path, d.Name)
		}
		result[d.Name] = d
	}

	return result, nil
}

func (l *Loader) loadFile(path string) (*Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data, strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)))
}

// Parse decodes and validates one definition. defaultName is used when the
// document has no name.
func Parse(data []byte, defaultName string) (*Definition, error) {
	var d Definition
	if err := yaml.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("parse YAML: %w", err)
	}
	if d.Name == "" {
		d.Name = defaultName
	}
	if err := d.Validate(); err != nil {
		return nil, err
	}
	return &d, nil
}

// WatchAndReload watches the dialog directory and reloads on changes,
// calling onReload with every successfully loaded set of definitions.
// Failed reloads are logged and keep the previous definitions. This blocks
// until the done channel is closed.
func (l *Loader) WatchAndReload(done <-chan struct{}, onReload func(map[string]*Definition)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(l.dir); err != nil {
		return fmt.Errorf("watch dir %q: %w", l.dir, err)
	}

	for {
		select {
		case <-done:
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !isYAML(event.Name) {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) &&
				!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
				continue
			}
			defs, err := l.LoadAll()
			if err != nil {
				slog.Warn("dialog reload failed", slog.String("dir", l.dir), slog.String("error", err.Error()))
				continue
			}
			if onReload != nil {
				onReload(defs)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			return err
		}
	}
}

func isYAML(name string) bool {
	ext := filepath.Ext(name)
	return ext == ".yaml" || ext == ".yml"
}

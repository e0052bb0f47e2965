package indexer

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/0xADE/ade-launchd/internal/app"
	"github.com/0xADE/ade-launchd/internal/config"
	"github.com/0xADE/ade-launchd/internal/indexer/desktop"
	"github.com/0xADE/ade-launchd/internal/indexer/executable"
	"github.com/0xADE/ade-launchd/internal/indexer/settings"
	"github.com/fsnotify/fsnotify"
)

const defaultDebounce = 500 * time.Millisecond

var (
	// ErrNoStore is returned by RecordLaunch when usage cannot be persisted
	ErrNoStore = errors.New("no usage store")
	// ErrNotIndexed is returned by RecordLaunch when the launched entry
	// left the index before its use was recorded
	ErrNotIndexed = errors.New("entry no longer indexed")
)

// UsageStore persists launch counts and the last discovered entry set
type UsageStore interface {
	GetFrequencies(ids []string) map[string]uint64
	Increment(id string) error
	SaveCache(entries []app.Entry) error
	LoadCache() []app.Entry
}

// Option configures an Indexer
type Option func(*Indexer)

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(idx *Indexer) {
		idx.logger = logger
	}
}

// WithDebounce sets how long Watch waits for file events to settle
func WithDebounce(d time.Duration) Option {
	return func(idx *Indexer) {
		idx.debounce = d
	}
}

// WithSettings replaces the settings catalog loaded from the config
func WithSettings(catalog *settings.Catalog) Option {
	return func(idx *Indexer) {
		idx.catalog = catalog
	}
}

// Indexer coordinates discovery of desktop files, settings shortcuts and
// executables, and keeps the live index and the usage store in step.
type Indexer struct {
	cfg      *config.Config
	store    UsageStore
	logger   *slog.Logger
	debounce time.Duration
	index    *Index
	icons    *IconTable
	catalog  *settings.Catalog

	mu      sync.RWMutex
	running bool
	cancel  context.CancelFunc
	seq     uint64

	// held for the whole of a scan; a new scan cancels the old one first
	scanMu sync.Mutex
}

// NewIndexer creates a new indexer. store may be nil, in which case usage
// is kept in memory only.
func NewIndexer(cfg *config.Config, store UsageStore, opts ...Option) *Indexer {
	idx := &Indexer{
		cfg:      cfg,
		store:    store,
		logger:   slog.Default(),
		debounce: defaultDebounce,
		index:    NewIndex(),
		icons:    NewIconTable(),
	}
	for _, opt := range opts {
		opt(idx)
	}

	if idx.catalog == nil {
		catalog, err := settings.Load(cfg.SettingsFile())
		if err != nil {
			idx.logger.Warn("loading settings catalog, using built-in", "file", cfg.SettingsFile(), "error", err)
		}
		idx.catalog = catalog
	}
	return idx
}

// Restore fills the index from the cached entry set and returns the
// number of entries restored.
func (idx *Indexer) Restore() int {
	if idx.store == nil {
		return 0
	}

	cached := idx.store.LoadCache()
	m := NewManager()
	for _, e := range cached {
		m.AddUnchecked(e)
	}
	m.SortByUsage()
	m.Filter("")
	idx.index.Swap(m)

	idx.logger.Info("index restored from cache", "entries", len(cached))
	return len(cached)
}

// Start runs a full scan using the configured paths
func (idx *Indexer) Start(ctx context.Context) error {
	_, err := idx.Reindex(ctx, nil)
	return err
}

// Reindex rescans all sources and swaps the result in. Executables are
// looked up in paths, or in the configured paths when none are given.
// A scan in progress is cancelled. Returns the number of indexed entries.
func (idx *Indexer) Reindex(ctx context.Context, paths []string) (int, error) {
	scanCtx, done := idx.begin(ctx)
	defer done()

	idx.scanMu.Lock()
	defer idx.scanMu.Unlock()

	started := time.Now()
	candidates, err := idx.discover(scanCtx, paths)
	if err != nil {
		return 0, err
	}
	idx.seedUsage(candidates)

	m := NewManager()
	for _, e := range candidates {
		m.Add(e)
	}
	m.SortByUsage()
	m.Filter("")
	snapshot := slices.Clone(m.Entries())
	idx.index.Swap(m)

	idx.logger.Info("index rebuilt",
		"entries", len(snapshot),
		"candidates", len(candidates),
		"duration", time.Since(started))

	if idx.store != nil {
		if err := idx.store.SaveCache(snapshot); err != nil {
			idx.logger.Warn("saving entry cache", "error", err)
		}
	}
	return len(snapshot), nil
}

func (idx *Indexer) begin(ctx context.Context) (context.Context, func()) {
	scanCtx, cancel := context.WithCancel(ctx)

	idx.mu.Lock()
	if idx.cancel != nil {
		idx.cancel()
	}
	idx.seq++
	seq := idx.seq
	idx.cancel = cancel
	idx.running = true
	idx.mu.Unlock()

	return scanCtx, func() {
		cancel()
		idx.mu.Lock()
		if idx.seq == seq {
			idx.running = false
			idx.cancel = nil
		}
		idx.mu.Unlock()
	}
}

// discover scans every source concurrently and returns candidates in
// feed order: desktop entries, settings shortcuts, then executables.
func (idx *Indexer) discover(ctx context.Context, paths []string) ([]app.Entry, error) {
	execPaths := paths
	if len(execPaths) == 0 {
		if idx.cfg.ScanExecutables() {
			execPaths = idx.cfg.Path()
		}
	}

	var (
		wg       sync.WaitGroup
		desktops []*desktop.DesktopEntry
		execs    []*executable.ExecutableInfo
		deskErr  error
		execErr  error
	)

	wg.Add(1)
	go func() {
		defer wg.Done()
		desktops, deskErr = desktop.Scan(ctx, idx.cfg.DesktopDirs(), idx.cfg.Workers())
	}()

	if len(execPaths) > 0 {
		execChan := make(chan *executable.ExecutableInfo, 100)
		wg.Add(2)
		go func() {
			defer wg.Done()
			execErr = executable.ScanPaths(ctx, execPaths, execChan)
		}()
		go func() {
			defer wg.Done()
			for info := range execChan {
				execs = append(execs, info)
			}
		}()
	}

	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := errors.Join(deskErr, execErr); err != nil {
		return nil, err
	}

	locale := idx.cfg.Locale()
	entries := make([]app.Entry, 0, len(desktops)+idx.catalog.Len()+len(execs))

	for _, d := range desktops {
		name := d.GetLocalizedName(locale)
		if isHelper(name) {
			continue
		}
		entries = append(entries, app.NewWithArgs(name, d.Path, desktop.CleanExecCommand(d.Exec), idx.icons.Resolve(d.Icon), 0))
	}

	for _, item := range idx.catalog.Items() {
		entries = append(entries, app.NewSettings(item.LocalizedName(locale), item.ID, idx.icons.Resolve(item.Icon)))
	}

	for _, info := range execs {
		entries = append(entries, app.New(info.Name, info.Path, 0, 0))
	}

	return entries, nil
}

// isHelper reports uninstaller and setup entries shipped next to apps
func isHelper(name string) bool {
	lower := strings.ToLower(name)
	return strings.Contains(lower, "uninstall") || strings.Contains(lower, "setup")
}

func (idx *Indexer) seedUsage(entries []app.Entry) {
	if idx.store == nil {
		return
	}

	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsSettings() {
			ids = append(ids, e.ID)
		}
	}

	freq := idx.store.GetFrequencies(ids)
	for i := range entries {
		if !entries[i].IsSettings() {
			entries[i].Usage = freq[entries[i].ID]
		}
	}
}

// RecordLaunch counts a launch of the referenced entry. The index is
// re-sorted and the view reset; the store is written after the index lock
// is released. Settings shortcuts and entries dropped by a rescan are not
// counted.
func (idx *Indexer) RecordLaunch(ref Ref) error {
	if ref.Entry.IsSettings() {
		idx.index.Filter("")
		return nil
	}

	if _, ok := idx.index.RecordUse(ref); !ok {
		idx.logger.Debug("launched entry is no longer indexed", "id", ref.Entry.ID)
		return ErrNotIndexed
	}

	if idx.store == nil {
		return ErrNoStore
	}
	return idx.store.Increment(ref.Entry.ID)
}

// Watch rescans when files in the application directories or the rc file
// change. Bursts of events are coalesced. It returns once the watchers are
// set up; they stop with ctx.
func (idx *Indexer) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}

	watched := 0
	for _, dir := range idx.cfg.DesktopDirs() {
		if _, err := os.Stat(dir); err != nil {
			continue
		}
		if err := watcher.Add(dir); err != nil {
			idx.logger.Warn("watching application directory", "dir", dir, "error", err)
			continue
		}
		watched++
	}

	trigger := idx.debounced(ctx)

	if err := idx.cfg.Watch(ctx, idx.logger, trigger); err != nil {
		watcher.Close()
		return err
	}

	idx.logger.Debug("watching application directories", "dirs", watched)
	go idx.watchLoop(ctx, watcher, trigger)
	return nil
}

func (idx *Indexer) watchLoop(ctx context.Context, watcher *fsnotify.Watcher, trigger func()) {
	defer watcher.Close()
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if !strings.HasSuffix(event.Name, ".desktop") || event.Op == fsnotify.Chmod {
				continue
			}
			idx.logger.Debug("application directory changed", "file", event.Name, "op", event.Op.String())
			trigger()
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			idx.logger.Warn("application watcher error", "error", err)
		}
	}
}

// debounced returns a function that schedules a reindex once no further
// calls arrive for the debounce interval.
func (idx *Indexer) debounced(ctx context.Context) func() {
	var (
		mu    sync.Mutex
		timer *time.Timer
	)
	return func() {
		mu.Lock()
		defer mu.Unlock()
		if timer != nil {
			timer.Stop()
		}
		timer = time.AfterFunc(idx.debounce, func() {
			if ctx.Err() != nil {
				return
			}
			if _, err := idx.Reindex(ctx, nil); err != nil && !errors.Is(err, context.Canceled) {
				idx.logger.Error("reindex after change", "error", err)
			}
		})
	}
}

// GetIndex returns the index instance
func (idx *Indexer) GetIndex() *Index {
	return idx.index
}

// Icons returns the icon handle table
func (idx *Indexer) Icons() *IconTable {
	return idx.icons
}

// Settings returns the settings catalog
func (idx *Indexer) Settings() *settings.Catalog {
	return idx.catalog
}

// IsRunning returns whether indexing is currently running
func (idx *Indexer) IsRunning() bool {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.running
}

// Stop cancels a running scan and waits for it to finish
func (idx *Indexer) Stop() {
	idx.mu.Lock()
	if idx.cancel != nil {
		idx.cancel()
	}
	idx.mu.Unlock()

	idx.scanMu.Lock()
	idx.scanMu.Unlock()
}

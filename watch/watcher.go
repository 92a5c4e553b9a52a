// Package watch reports debounced changes to spec files under a directory
// tree so the site can be rebuilt while specs are being edited.
package watch

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"

	"github.com/c360studio/specview/catalog"
)

const (
	// DefaultDebounceDelay is used when Config.DebounceDelay is zero.
	DefaultDebounceDelay = 500 * time.Millisecond

	batchChannelBuffer = 16
)

// Config configures a Watcher.
type Config struct {
	// DebounceDelay is how long changes accumulate before a batch is sent.
	DebounceDelay time.Duration

	// Exclude lists doublestar patterns relative to the watched root.
	Exclude []string

	// SkipDirs lists absolute directories that are never watched, such as
	// a build output directory inside the specs root.
	SkipDirs []string
}

func (c Config) debounceDelay() time.Duration {
	if c.DebounceDelay <= 0 {
		return DefaultDebounceDelay
	}
	return c.DebounceDelay
}

// Op is the kind of change reported for a spec file.
type Op string

// Change kinds.
const (
	OpCreate Op = "create"
	OpModify Op = "modify"
	OpDelete Op = "delete"
)

// Event is one changed spec file.
type Event struct {
	// Path is slash-separated and relative to the watched root.
	Path    string
	AbsPath string
	Op      Op
}

// Batch holds the changes collected during one debounce window, sorted by path.
type Batch []Event

// Paths returns the relative paths in the batch.
func (b Batch) Paths() []string {
	paths := make([]string, len(b))
	for i, e := range b {
		paths[i] = e.Path
	}
	return paths
}

// Watcher watches a specs root recursively.
type Watcher struct {
	config  Config
	root    string
	watcher *fsnotify.Watcher
	logger  *slog.Logger
	skip    map[string]bool

	pendingMu sync.Mutex
	pending   map[string]fsnotify.Op

	hashMu sync.RWMutex
	hashes map[string]string

	batches chan Batch

	droppedBatches atomic.Int64
}

// New creates a Watcher for root.
func New(config Config, root string, logger *slog.Logger) (*Watcher, error) {
	for _, pattern := range config.Exclude {
		if !doublestar.ValidatePattern(pattern) {
			return nil, fmt.Errorf("invalid exclude pattern %q", pattern)
		}
	}

	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve watch root: %w", err)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}

	if logger == nil {
		logger = slog.Default()
	}

	skip := make(map[string]bool, len(config.SkipDirs))
	for _, dir := range config.SkipDirs {
		if a, err := filepath.Abs(dir); err == nil {
			skip[a] = true
		}
	}

	return &Watcher{
		config:  config,
		root:    abs,
		watcher: fsw,
		logger:  logger,
		skip:    skip,
		pending: make(map[string]fsnotify.Op),
		hashes:  make(map[string]string),
		batches: make(chan Batch, batchChannelBuffer),
	}, nil
}

// Batches returns the channel of change batches. It is closed when the
// watcher stops.
func (w *Watcher) Batches() <-chan Batch {
	return w.batches
}

// Start adds watches for the tree, records the current content of every spec
// file and begins processing events until ctx is done or Stop is called.
func (w *Watcher) Start(ctx context.Context) error {
	info, err := os.Stat(w.root)
	if err != nil {
		return fmt.Errorf("stat watch root: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("watch root %s is not a directory", w.root)
	}

	if err := w.addTree(w.root, false); err != nil {
		return err
	}

	go w.processEvents(ctx)

	w.logger.Info("Spec watcher started",
		"root", w.root,
		"debounce", w.config.debounceDelay(),
		"exclude", w.config.Exclude)

	return nil
}

// Stop closes the underlying fsnotify watcher.
// The batches channel is closed by processEvents when it exits.
func (w *Watcher) Stop() error {
	return w.watcher.Close()
}

// SetHash records the content hash for a relative path.
func (w *Watcher) SetHash(rel, hash string) {
	w.hashMu.Lock()
	defer w.hashMu.Unlock()
	w.hashes[rel] = hash
}

// GetHash returns the recorded content hash for a relative path.
func (w *Watcher) GetHash(rel string) (string, bool) {
	w.hashMu.RLock()
	defer w.hashMu.RUnlock()
	hash, ok := w.hashes[rel]
	return hash, ok
}

// DroppedBatches returns the number of batches dropped because nobody was
// receiving.
func (w *Watcher) DroppedBatches() int64 {
	return w.droppedBatches.Load()
}

// ContentHash returns the hex SHA-256 of content.
func ContentHash(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

// addTree watches dir and every directory below it. Spec files found are
// hashed, or with queue set, queued as created; the latter covers files
// written into a new directory before its watch was added.
func (w *Watcher) addTree(dir string, queue bool) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if d.IsDir() {
			if path != w.root && w.skipDir(path) {
				return filepath.SkipDir
			}
			if err := w.watcher.Add(path); err != nil {
				w.logger.Warn("Failed to watch directory", "path", path, "error", err)
			} else {
				w.logger.Debug("Watching directory", "path", path)
			}
			return nil
		}

		rel, ok := w.relevant(path)
		if !ok {
			return nil
		}
		if queue {
			w.pendingMu.Lock()
			w.pending[path] |= fsnotify.Create
			w.pendingMu.Unlock()
			return nil
		}
		content, err := os.ReadFile(path)
		if err != nil {
			w.logger.Warn("Failed to read spec for hashing", "path", rel, "error", err)
			return nil
		}
		w.SetHash(rel, ContentHash(content))
		return nil
	})
}

// skipDir reports whether a directory is hidden, skipped or excluded.
func (w *Watcher) skipDir(path string) bool {
	if strings.HasPrefix(filepath.Base(path), ".") || w.skip[path] {
		return true
	}
	rel, err := filepath.Rel(w.root, path)
	if err != nil {
		return true
	}
	return w.excluded(filepath.ToSlash(rel) + "/")
}

// relevant reports whether path is a spec file the watcher cares about and
// returns its slash-separated relative path.
func (w *Watcher) relevant(path string) (string, bool) {
	if !catalog.IsSpecFile(path) {
		return "", false
	}
	rel, err := filepath.Rel(w.root, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}
	rel = filepath.ToSlash(rel)

	for _, part := range strings.Split(rel, "/") {
		if strings.HasPrefix(part, ".") {
			return "", false
		}
	}
	for dir := range w.skip {
		if path == dir || strings.HasPrefix(path, dir+string(filepath.Separator)) {
			return "", false
		}
	}
	if w.excluded(rel) {
		return "", false
	}
	return rel, true
}

func (w *Watcher) excluded(rel string) bool {
	for _, pattern := range w.config.Exclude {
		if match, _ := doublestar.Match(pattern, rel); match {
			return true
		}
		if trimmed := strings.TrimSuffix(rel, "/"); trimmed != rel {
			if match, _ := doublestar.Match(pattern, trimmed); match {
				return true
			}
		}
	}
	return false
}

// processEvents handles fsnotify events with debouncing.
func (w *Watcher) processEvents(ctx context.Context) {
	defer close(w.batches)
	ticker := time.NewTicker(w.config.debounceDelay())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleFSEvent(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("Watcher error", "error", err)

		case <-ticker.C:
			w.flushPending(ctx)
		}
	}
}

func (w *Watcher) handleFSEvent(event fsnotify.Event) {
	path := event.Name

	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(path); err == nil && info.IsDir() {
			w.handleNewDirectory(path)
			return
		}
	}

	rel, ok := w.relevant(path)
	if !ok {
		return
	}

	w.pendingMu.Lock()
	w.pending[path] |= event.Op
	w.pendingMu.Unlock()

	w.logger.Debug("Spec change detected", "path", rel, "op", event.Op.String())
}

func (w *Watcher) handleNewDirectory(path string) {
	if w.skipDir(path) {
		return
	}
	if err := w.addTree(path, true); err != nil {
		w.logger.Warn("Failed to watch new directory", "path", path, "error", err)
		return
	}
	w.logger.Debug("Added watch for new directory", "path", path)
}

// flushPending turns accumulated changes into one batch. Files whose content
// hash is unchanged are dropped.
func (w *Watcher) flushPending(ctx context.Context) {
	w.pendingMu.Lock()
	if len(w.pending) == 0 {
		w.pendingMu.Unlock()
		return
	}
	toProcess := w.pending
	w.pending = make(map[string]fsnotify.Op)
	w.pendingMu.Unlock()

	var batch Batch
	for path := range toProcess {
		if ctx.Err() != nil {
			return
		}

		rel, ok := w.relevant(path)
		if !ok {
			continue
		}
		event := Event{Path: rel, AbsPath: path}

		content, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				w.logger.Warn("Failed to read spec for hash check", "path", rel, "error", err)
				continue
			}
			w.hashMu.Lock()
			_, known := w.hashes[rel]
			delete(w.hashes, rel)
			w.hashMu.Unlock()
			if known {
				event.Op = OpDelete
				batch = append(batch, event)
			}
			continue
		}

		newHash := ContentHash(content)
		oldHash, hadHash := w.GetHash(rel)
		if hadHash && oldHash == newHash {
			continue
		}
		w.SetHash(rel, newHash)

		if hadHash {
			event.Op = OpModify
		} else {
			event.Op = OpCreate
		}
		batch = append(batch, event)
	}

	if len(batch) == 0 {
		return
	}
	sort.Slice(batch, func(i, j int) bool { return batch[i].Path < batch[j].Path })
	w.sendBatch(batch)
}

func (w *Watcher) sendBatch(batch Batch) {
	select {
	case w.batches <- batch:
		w.logger.Debug("Sent change batch", "changes", len(batch))
	default:
		dropped := w.droppedBatches.Add(1)
		w.logger.Warn("Batch channel full, dropping changes",
			"changes", len(batch),
			"total_dropped", dropped)
	}
}

package repository

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/standardbeagle/uidmgr/internal/debug"
)

// PartitionFileExt is the extension of partition index files
const PartitionFileExt = ".idx"

// PartitionWatcher watches a directory of <unit>.idx partition index files.
// When one is written, removed or renamed, onInvalidate is called with its
// unit once events for that unit have been quiet for the debounce interval.
type PartitionWatcher struct {
	watcher      *fsnotify.Watcher
	dir          string
	onInvalidate func(unit uint32)

	debounce time.Duration
	mu       sync.Mutex
	pending  map[uint32]struct{}
	timer    *time.Timer

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewPartitionWatcher creates a watcher for dir. Start must be called to begin watching.
func NewPartitionWatcher(dir string, debounce time.Duration, onInvalidate func(unit uint32)) (*PartitionWatcher, error) {
	if onInvalidate == nil {
		return nil, fmt.Errorf("partition watcher requires an invalidation callback")
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &PartitionWatcher{
		watcher:      w,
		dir:          dir,
		onInvalidate: onInvalidate,
		debounce:     debounce,
		pending:      make(map[uint32]struct{}),
		ctx:          ctx,
		cancel:       cancel,
	}, nil
}

// Start begins watching
func (pw *PartitionWatcher) Start() error {
	if err := pw.watcher.Add(pw.dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", pw.dir, err)
	}
	debug.LogRepository("watching partition files in %s\n", pw.dir)

	pw.wg.Add(1)
	go pw.processEvents()
	return nil
}

// Stop stops watching. Pending invalidations are discarded.
func (pw *PartitionWatcher) Stop() error {
	pw.cancel()
	err := pw.watcher.Close()
	pw.wg.Wait()

	pw.mu.Lock()
	if pw.timer != nil {
		pw.timer.Stop()
	}
	clear(pw.pending)
	pw.mu.Unlock()
	return err
}

func (pw *PartitionWatcher) processEvents() {
	defer pw.wg.Done()

	for {
		select {
		case <-pw.ctx.Done():
			return

		case event, ok := <-pw.watcher.Events:
			if !ok {
				return
			}
			pw.handleEvent(event)

		case err, ok := <-pw.watcher.Errors:
			if !ok {
				return
			}
			log.Printf("Partition watcher error: %v", err)
		}
	}
}

func (pw *PartitionWatcher) handleEvent(event fsnotify.Event) {
	if !event.Op.Has(fsnotify.Write) && !event.Op.Has(fsnotify.Remove) &&
		!event.Op.Has(fsnotify.Rename) && !event.Op.Has(fsnotify.Create) {
		return
	}
	unit, ok := ParsePartitionFile(event.Name)
	if !ok {
		return
	}
	debug.LogRepository("partition watcher: %v on unit %d\n", event.Op, unit)
	pw.addEvent(unit)
}

func (pw *PartitionWatcher) addEvent(unit uint32) {
	pw.mu.Lock()
	defer pw.mu.Unlock()
	if pw.ctx.Err() != nil {
		return
	}

	pw.pending[unit] = struct{}{}
	if pw.timer != nil {
		pw.timer.Stop()
	}
	pw.timer = time.AfterFunc(pw.debounce, pw.flush)
}

func (pw *PartitionWatcher) flush() {
	pw.mu.Lock()
	if pw.ctx.Err() != nil || len(pw.pending) == 0 {
		pw.mu.Unlock()
		return
	}
	units := make([]uint32, 0, len(pw.pending))
	for u := range pw.pending {
		units = append(units, u)
	}
	clear(pw.pending)
	pw.mu.Unlock()

	for _, u := range units {
		pw.onInvalidate(u)
	}
}

// PartitionFile returns the index file name of unit
func PartitionFile(unit uint32) string {
	return strconv.FormatUint(uint64(unit), 10) + PartitionFileExt
}

// ParsePartitionFile extracts the unit from a <unit>.idx path
func ParsePartitionFile(path string) (uint32, bool) {
	base := filepath.Base(path)
	if !strings.HasSuffix(base, PartitionFileExt) {
		return 0, false
	}
	n, err := strconv.ParseUint(strings.TrimSuffix(base, PartitionFileExt), 10, 32)
	if err != nil {
		return 0, false
	}
	return uint32(n), true
}

package jobs

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"strings"
	"time"

	"github.com/cloo-solutions/askme/internal/domain"
	"github.com/cloo-solutions/askme/internal/ingest"
	"github.com/cloo-solutions/askme/internal/telemetry"
	"github.com/fsnotify/fsnotify"
)

// DefaultWatchDebounce is how long the watcher waits for the directory to
// settle before rescanning.
const DefaultWatchDebounce = 2 * time.Second

// DirWatcher rescans the corpus directory when a supported file is created
// or rewritten there. Bursts of events collapse into a single rescan.
type DirWatcher struct {
	rescanner Rescanner
	dir       string
	debounce  time.Duration
	watcher   *fsnotify.Watcher
	doneChan  chan struct{}
}

// NewDirWatcher starts watching dir. The caller must run Start to consume
// events and Stop to release the watch.
func NewDirWatcher(rescanner Rescanner, dir string, debounce time.Duration) (*DirWatcher, error) {
	if debounce <= 0 {
		debounce = DefaultWatchDebounce
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := w.Add(dir); err != nil {
		w.Close()
		return nil, fmt.Errorf("watch %s: %w", dir, err)
	}
	return &DirWatcher{
		rescanner: rescanner,
		dir:       dir,
		debounce:  debounce,
		watcher:   w,
		doneChan:  make(chan struct{}),
	}, nil
}

// Start consumes events until ctx is cancelled or Stop closes the watcher
func (w *DirWatcher) Start(ctx context.Context) {
	defer close(w.doneChan)

	timer := time.NewTimer(w.debounce)
	timer.Stop()
	defer timer.Stop()

	log.Printf("watch: watching %s", w.dir)

	for {
		select {
		case <-ctx.Done():
			log.Println("watch: stopped, context cancelled")
			return
		case ev, ok := <-w.watcher.Events:
			if !ok {
				log.Println("watch: stopped, watcher closed")
				return
			}
			if triggersRescan(ev) {
				timer.Reset(w.debounce)
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Printf("watch: %v", err)
		case <-timer.C:
			telemetry.AddBreadcrumb(ctx, "rescan", "corpus directory changed")
			if err := w.rescanner.Rescan(ctx); err != nil {
				log.Printf("watch: rescan failed: %v", err)
				telemetry.CaptureError(ctx, err)
			}
		}
	}
}

// Stop closes the watch and waits for Start to return
func (w *DirWatcher) Stop() {
	w.watcher.Close()
	<-w.doneChan
	log.Println("watch: shutdown complete")
}

// triggersRescan reports whether ev can add something to the corpus.
// Removals are ignored since embedded sources are never evicted.
func triggersRescan(ev fsnotify.Event) bool {
	if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) {
		return false
	}
	name := filepath.Base(ev.Name)
	if strings.HasPrefix(name, ".") || ingest.IsReserved(name) {
		return false
	}
	return domain.KindForPath(name) != domain.SourceKindUnsupported
}

// Package jobs runs periodic background work for the server.
package jobs

import (
	"context"
	"log"
	"time"

	"github.com/cloo-solutions/askme/internal/telemetry"
)

// Rescanner merges new files from the corpus directory into the live corpus
type Rescanner interface {
	Rescan(ctx context.Context) error
}

// RescanWorker periodically rescans the corpus directory so files dropped
// there, or audio whose transcription failed earlier, get picked up.
type RescanWorker struct {
	rescanner Rescanner
	interval  time.Duration
	stopChan  chan struct{}
	doneChan  chan struct{}
}

// NewRescanWorker creates a worker that rescans every interval
func NewRescanWorker(rescanner Rescanner, interval time.Duration) *RescanWorker {
	return &RescanWorker{
		rescanner: rescanner,
		interval:  interval,
		stopChan:  make(chan struct{}),
		doneChan:  make(chan struct{}),
	}
}

// Start runs the rescan loop until ctx is cancelled or Stop is called
func (w *RescanWorker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	defer close(w.doneChan)

	log.Printf("rescan: worker started with interval %v", w.interval)

	for {
		select {
		case <-ctx.Done():
			log.Println("rescan: worker stopped, context cancelled")
			return
		case <-w.stopChan:
			log.Println("rescan: worker stopped, stop signal received")
			return
		case <-ticker.C:
			w.runOnce(ctx)
		}
	}
}

func (w *RescanWorker) runOnce(ctx context.Context) {
	telemetry.AddBreadcrumb(ctx, "rescan", "periodic corpus rescan")
	if err := w.rescanner.Rescan(ctx); err != nil {
		log.Printf("rescan: failed: %v", err)
		telemetry.CaptureError(ctx, err)
	}
}

// Stop signals the loop to exit and waits for it
func (w *RescanWorker) Stop() {
	close(w.stopChan)
	<-w.doneChan
	log.Println("rescan: worker shutdown complete")
}

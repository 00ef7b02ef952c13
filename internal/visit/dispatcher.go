package visit

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/vadimbarashkov/shortlink-core/internal/models"
)

const defaultJobTimeout = 10 * time.Second

type job struct {
	rec  *models.RedirectRecord
	snap RequestSnapshot
}

// Dispatcher decouples visit recording from the redirect response. Jobs are
// queued on a buffered channel and drained by a fixed pool of workers;
// a full queue drops the job rather than blocking the redirect. Dropped and
// failed recordings are lost: there is no retry or dead-letter.
type Dispatcher struct {
	recorder *Recorder
	jobs     chan job
	wg       sync.WaitGroup
	logger   *slog.Logger
}

func NewDispatcher(recorder *Recorder, queueSize, workers int, logger *slog.Logger) *Dispatcher {
	if queueSize < 1 {
		queueSize = 256
	}
	if workers < 1 {
		workers = 2
	}

	d := &Dispatcher{
		recorder: recorder,
		jobs:     make(chan job, queueSize),
		logger:   logger,
	}

	d.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go d.worker()
	}

	return d
}

// Dispatch enqueues a recording job without ever blocking the caller.
func (d *Dispatcher) Dispatch(rec *models.RedirectRecord, snap RequestSnapshot) {
	select {
	case d.jobs <- job{rec: rec, snap: snap}:
	default:
		d.logger.Warn("visit queue full, dropping visit", slog.Int64("link_id", rec.ID))
	}
}

// Stop closes the queue and waits for the workers to drain it.
func (d *Dispatcher) Stop() {
	close(d.jobs)
	d.wg.Wait()
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()

	for j := range d.jobs {
		ctx, cancel := context.WithTimeout(context.Background(), defaultJobTimeout)
		res := d.recorder.Record(ctx, j.rec, j.snap)
		cancel()

		if res.Status == StatusFailed {
			d.logger.Warn("visit recording failed",
				slog.Int64("link_id", j.rec.ID),
				slog.String("reason", res.Reason))
		}
	}
}

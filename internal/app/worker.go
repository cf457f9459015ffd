package app

import (
	"context"
	"log/slog"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"
)

const popTimeout = 5 * time.Second

// StartExportWorkers launches background workers that drain the export
// task queue. If too many workers are configured, the number is limited
// based on available CPU cores.
func (app *App) StartExportWorkers(ctx context.Context) {
	numWorkers := app.Config.Export.Workers
	if numWorkers <= 0 {
		numWorkers = 4
	}
	maxWorkers := runtime.NumCPU() * 2
	if numWorkers > maxWorkers {
		numWorkers = maxWorkers
	}

	slog.InfoContext(ctx, "starting export workers", "count", numWorkers)

	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < numWorkers; i++ {
		workerID := i + 1
		g.Go(func() error {
			app.runWorker(ctx, workerID)
			return nil
		})
	}

	app.workersDone = make(chan struct{})
	go func() {
		_ = g.Wait()
		close(app.workersDone)
	}()
}

func (app *App) runWorker(ctx context.Context, workerID int) {
	log := slog.Default().With("worker_id", workerID)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		task, err := app.Cache.PopExportTask(ctx, popTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Error("failed to pop export task", "error", err)
			time.Sleep(time.Second)
			continue
		}
		if task == nil {
			continue
		}

		// Process owns the job's failure handling; the error here is
		// already reflected in the job record.
		if err := app.Orchestrator.Process(ctx, task); err != nil {
			log.Error("export task failed", "job_id", task.JobID, "error", err)
		}
	}
}

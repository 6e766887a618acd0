package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/cloo-solutions/agentkb/internal/logger"
)

type JobProcessor interface {
	ProcessJobs(ctx context.Context) error
}

// Worker calls its processor once at start and then on every tick until the
// context ends or Stop is called. A tick in progress is allowed to finish.
type Worker struct {
	processor JobProcessor
	interval  time.Duration
	log       *zap.Logger

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

func NewWorker(processor JobProcessor, pollInterval time.Duration) *Worker {
	return &Worker{
		processor: processor,
		interval:  pollInterval,
		log:       logger.Named("worker"),
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
}

func (w *Worker) Start(ctx context.Context) {
	defer close(w.done)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.log.Info("worker started", zap.Duration("poll_interval", w.interval))
	for {
		w.tick(ctx)

		select {
		case <-ctx.Done():
			w.log.Info("worker stopped", zap.String("reason", "context done"))
			return
		case <-w.stop:
			w.log.Info("worker stopped", zap.String("reason", "stop requested"))
			return
		case <-ticker.C:
		}
	}
}

func (w *Worker) tick(ctx context.Context) {
	defer func() {
		if p := recover(); p != nil {
			w.log.Error("job processor panicked", zap.String("panic", fmt.Sprint(p)))
		}
	}()

	if err := w.processor.ProcessJobs(ctx); err != nil && ctx.Err() == nil {
		w.log.Error("processing jobs failed", zap.Error(err))
	}
}

// Stop asks a running Start to return and waits for it. It is safe to call
// more than once.
func (w *Worker) Stop() {
	w.stopOnce.Do(func() { close(w.stop) })
	<-w.done
}

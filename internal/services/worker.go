package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/hibiken/asynq"

	"github.com/taskhive/backend/internal/config"
	"github.com/taskhive/backend/pkg/logger"
)

// Worker delivers queued mail from Redis.
type Worker struct {
	server  *asynq.Server
	mux     *asynq.ServeMux
	mailer  Mailer
	wg      sync.WaitGroup
	running bool
	mu      sync.Mutex
}

// NewWorker returns nil when Redis is disabled.
func NewWorker(cfg *config.RedisConfig, mailer Mailer) *Worker {
	if !cfg.Enabled {
		return nil
	}

	server := asynq.NewServer(
		redisOpt(cfg),
		asynq.Config{
			Concurrency: 5,
			Queues: map[string]int{
				"default": 1,
			},
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				logger.Error().Err(err).Str("type", task.Type()).Msg("[Worker] task failed")
			}),
		},
	)

	w := &Worker{
		server: server,
		mux:    asynq.NewServeMux(),
		mailer: mailer,
	}
	w.mux.HandleFunc(TaskTypeEmail, w.handleEmailTask)
	return w
}

func (w *Worker) Start() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		return
	}
	w.running = true
	w.wg.Add(1)

	go func() {
		defer w.wg.Done()
		logger.Infof("[Worker] Starting mail worker...")
		if err := w.server.Run(w.mux); err != nil {
			logger.Errorf("[Worker] Server error: %v", err)
		}
	}()
}

func (w *Worker) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.running {
		return
	}
	logger.Infof("[Worker] Shutting down...")
	w.server.Shutdown()
	w.running = false
	w.wg.Wait()
}

func (w *Worker) handleEmailTask(ctx context.Context, t *asynq.Task) error {
	var msg EmailMessage
	if err := json.Unmarshal(t.Payload(), &msg); err != nil {
		// A malformed payload will never succeed.
		return fmt.Errorf("decode email task: %v: %w", err, asynq.SkipRetry)
	}
	return w.mailer.Send(ctx, &msg)
}

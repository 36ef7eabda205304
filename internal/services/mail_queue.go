package services

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/hibiken/asynq"

	"github.com/taskhive/backend/internal/config"
	"github.com/taskhive/backend/pkg/logger"
)

const TaskTypeEmail = "email:send"

// MailQueue hands mail off the request path. Enqueue never blocks on SMTP
// and delivery failures are logged, not returned.
type MailQueue interface {
	Enqueue(msg *EmailMessage) error
	IsAsync() bool
	Close() error
}

// NewMailQueue uses Redis through asynq when enabled and reachable, and an
// in-process queue otherwise.
func NewMailQueue(cfg *config.RedisConfig, mailer Mailer) MailQueue {
	if cfg.Enabled {
		queue, err := NewAsyncMailQueue(cfg)
		if err != nil {
			logger.Warnf("[MailQueue] Redis unavailable, falling back to in-process delivery: %v", err)
			return NewInlineMailQueue(mailer)
		}
		logger.Infof("[MailQueue] Async queue initialized with Redis at %s", cfg.Addr)
		return queue
	}
	logger.Infof("[MailQueue] In-process queue initialized (Redis disabled)")
	return NewInlineMailQueue(mailer)
}

func redisOpt(cfg *config.RedisConfig) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	}
}

// AsyncMailQueue stores mail jobs in Redis for the Worker.
type AsyncMailQueue struct {
	client *asynq.Client
}

func NewAsyncMailQueue(cfg *config.RedisConfig) (*AsyncMailQueue, error) {
	opt := redisOpt(cfg)
	client := asynq.NewClient(opt)

	inspector := asynq.NewInspector(opt)
	defer inspector.Close()
	if _, err := inspector.Queues(); err != nil {
		client.Close()
		return nil, err
	}

	return &AsyncMailQueue{client: client}, nil
}

func (q *AsyncMailQueue) Enqueue(msg *EmailMessage) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	info, err := q.client.Enqueue(asynq.NewTask(TaskTypeEmail, payload),
		asynq.Queue("default"),
		asynq.MaxRetry(3),
	)
	if err != nil {
		return err
	}

	logger.Debug().Str("id", info.ID).Str("queue", info.Queue).Msg("[MailQueue] task enqueued")
	return nil
}

func (q *AsyncMailQueue) IsAsync() bool { return true }

func (q *AsyncMailQueue) Close() error {
	return q.client.Close()
}

// InlineMailQueue sends each message on its own goroutine.
type InlineMailQueue struct {
	mailer Mailer
	wg     sync.WaitGroup
}

func NewInlineMailQueue(mailer Mailer) *InlineMailQueue {
	return &InlineMailQueue{mailer: mailer}
}

func (q *InlineMailQueue) Enqueue(msg *EmailMessage) error {
	q.wg.Add(1)
	go func() {
		defer q.wg.Done()
		if err := q.mailer.Send(context.Background(), msg); err != nil {
			logger.Error().Err(err).Str("subject", msg.Subject).Msg("[MailQueue] delivery failed")
		}
	}()
	return nil
}

func (q *InlineMailQueue) IsAsync() bool { return false }

// Wait blocks until every enqueued message has been attempted.
func (q *InlineMailQueue) Wait() {
	q.wg.Wait()
}

func (q *InlineMailQueue) Close() error {
	q.wg.Wait()
	return nil
}

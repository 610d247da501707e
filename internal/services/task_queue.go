package services

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/hibiken/asynq"
	"github.com/ls1intum/thesis-management-sub000/internal/config"
	"github.com/ls1intum/thesis-management-sub000/pkg/logger"
)

const (
	TaskTypeMail = "mail:send"
)

// MailTask is one outgoing workflow mail
type MailTask struct {
	Kind     NotificationKind `json:"kind"`
	EntityID string           `json:"entity_id"`
	To       []string         `json:"to"`
	Subject  string           `json:"subject"`
	Body     string           `json:"body"`
}

// TaskQueue defines the interface for mail delivery
type TaskQueue interface {
	// Enqueue adds a task to the queue
	Enqueue(task *MailTask) error
	// IsAsync returns true if queue processes tasks asynchronously
	IsAsync() bool
	// Close gracefully shuts down the queue
	Close() error
}

var (
	globalTaskQueue TaskQueue
	taskQueueOnce   sync.Once
)

// InitTaskQueue initializes the global task queue based on config
func InitTaskQueue(cfg *config.Config) TaskQueue {
	taskQueueOnce.Do(func() {
		if cfg.Redis.Enabled {
			queue, err := NewAsyncQueue(&cfg.Redis)
			if err != nil {
				logger.Warn().Err(err).Msg("[TaskQueue] Redis unavailable, falling back to sync mode")
				globalTaskQueue = NewSyncQueue()
			} else {
				logger.Infof("[TaskQueue] Async mail queue initialized with Redis at %s", cfg.Redis.Addr)
				globalTaskQueue = queue
			}
		} else {
			logger.Infof("[TaskQueue] Sync mail queue initialized (Redis disabled)")
			globalTaskQueue = NewSyncQueue()
		}
	})
	return globalTaskQueue
}

func GetTaskQueue() TaskQueue {
	return globalTaskQueue
}

// AsyncQueue implements TaskQueue using asynq (Redis-based)
type AsyncQueue struct {
	client *asynq.Client
}

func NewAsyncQueue(cfg *config.RedisConfig) (*AsyncQueue, error) {
	redisOpt := asynq.RedisClientOpt{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	}

	client := asynq.NewClient(redisOpt)

	inspector := asynq.NewInspector(redisOpt)
	defer inspector.Close()

	// Fails fast when Redis is not reachable
	if _, err := inspector.Queues(); err != nil {
		client.Close()
		return nil, err
	}

	return &AsyncQueue{client: client}, nil
}

func (q *AsyncQueue) Enqueue(task *MailTask) error {
	payload, err := json.Marshal(task)
	if err != nil {
		return err
	}

	t := asynq.NewTask(TaskTypeMail, payload)
	info, err := q.client.Enqueue(t,
		asynq.Queue("mail"),
		asynq.MaxRetry(5),
	)
	if err != nil {
		return err
	}

	logger.Debug().Str("id", info.ID).Str("kind", string(task.Kind)).Msg("[AsyncQueue] mail enqueued")
	return nil
}

func (q *AsyncQueue) IsAsync() bool {
	return true
}

func (q *AsyncQueue) Close() error {
	return q.client.Close()
}

// SyncQueue implements TaskQueue by sending in a background goroutine (no Redis)
type SyncQueue struct {
	processor func(context.Context, *MailTask) error
	wg        sync.WaitGroup
}

func NewSyncQueue() *SyncQueue {
	return &SyncQueue{}
}

// SetProcessor sets the function that delivers a mail
func (q *SyncQueue) SetProcessor(processor func(context.Context, *MailTask) error) {
	q.processor = processor
}

func (q *SyncQueue) Enqueue(task *MailTask) error {
	if q.processor == nil {
		logger.Warn().Str("kind", string(task.Kind)).Msg("[SyncQueue] no processor set, mail dropped")
		return nil
	}

	q.wg.Add(1)
	go func() {
		defer q.wg.Done()
		if err := q.processor(context.Background(), task); err != nil {
			logger.Warn().Err(err).Str("kind", string(task.Kind)).Msg("[SyncQueue] mail delivery failed")
		}
	}()

	return nil
}

func (q *SyncQueue) IsAsync() bool {
	return false
}

// Close waits for in-flight deliveries
func (q *SyncQueue) Close() error {
	q.wg.Wait()
	return nil
}

// README: In-memory notification queue drained in micro-batches by a fixed worker pool with bounded retry.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"driverbot/internal/types"
)

// MessageTask is one pending notification.
type MessageTask struct {
	ChatID      types.ChatID
	Text        string
	ReplyMarkup any
	// Retries counts failed attempts so far; only the queue changes it.
	Retries int
	OrderID types.ID
}

// Sender is the chat transport.
type Sender interface {
	Send(ctx context.Context, chatID types.ChatID, text string, markup any) error
}

type QueueConfig struct {
	MaxWorkers  int
	BatchSize   int
	PullTimeout time.Duration
	MaxRetries  int
	ErrorPause  time.Duration
	// SendTimeout bounds one send; zero leaves it to the transport.
	SendTimeout time.Duration
}

func DefaultQueueConfig() QueueConfig {
	return QueueConfig{
		MaxWorkers:  3,
		BatchSize:   5,
		PullTimeout: time.Second,
		MaxRetries:  3,
		ErrorPause:  time.Second,
	}
}

func (c QueueConfig) normalized() QueueConfig {
	def := DefaultQueueConfig()
	if c.MaxWorkers <= 0 {
		c.MaxWorkers = def.MaxWorkers
	}
	if c.BatchSize <= 0 {
		c.BatchSize = def.BatchSize
	}
	if c.PullTimeout <= 0 {
		c.PullTimeout = def.PullTimeout
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = def.MaxRetries
	}
	if c.ErrorPause <= 0 {
		c.ErrorPause = def.ErrorPause
	}
	return c
}

const recordTimeout = 3 * time.Second

type MessageQueue struct {
	cfg      QueueConfig
	sender   Sender
	recorder Recorder
	metrics  *Metrics
	logger   *slog.Logger

	// mu guards the pending FIFO. notify is closed and replaced on every
	// push so that all waiting pullers wake up.
	mu       sync.Mutex
	pending  []MessageTask
	inflight int
	notify   chan struct{}

	lifecycle sync.Mutex
	running   bool
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	workers   int
}

type QueueOption func(*MessageQueue)

func WithRecorder(r Recorder) QueueOption {
	return func(q *MessageQueue) { q.recorder = r }
}

func WithMetrics(m *Metrics) QueueOption {
	return func(q *MessageQueue) {
		if m != nil {
			q.metrics = m
		}
	}
}

func WithLogger(l *slog.Logger) QueueOption {
	return func(q *MessageQueue) {
		if l != nil {
			q.logger = l
		}
	}
}

func NewMessageQueue(sender Sender, cfg QueueConfig, opts ...QueueOption) *MessageQueue {
	q := &MessageQueue{
		cfg:    cfg.normalized(),
		sender: sender,
		logger: slog.Default(),
		notify: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(q)
	}
	if q.metrics == nil {
		q.metrics = NewMetrics(nil, "")
	}
	return q
}

// Start spawns the worker pool. Calling it on a running queue does nothing.
func (q *MessageQueue) Start() {
	q.lifecycle.Lock()
	defer q.lifecycle.Unlock()
	if q.running {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	q.cancel = cancel
	q.running = true
	for i := 0; i < q.cfg.MaxWorkers; i++ {
		q.wg.Add(1)
		q.workers++
		go q.worker(ctx, i)
	}
	q.logger.Info("message queue started", "workers", q.cfg.MaxWorkers, "batch_size", q.cfg.BatchSize)
}

// Stop cancels the workers and waits for them to exit. Tasks still pending
// stay in the queue. Calling it on a stopped queue does nothing.
func (q *MessageQueue) Stop() {
	q.lifecycle.Lock()
	defer q.lifecycle.Unlock()
	if !q.running {
		return
	}
	q.running = false
	q.cancel()
	q.wg.Wait()
	q.workers = 0
	q.cancel = nil
	q.logger.Info("message queue stopped", "pending", q.Len())
}

func (q *MessageQueue) Running() bool {
	q.lifecycle.Lock()
	defer q.lifecycle.Unlock()
	return q.running
}

// Workers is the size of the live worker set.
func (q *MessageQueue) Workers() int {
	q.lifecycle.Lock()
	defer q.lifecycle.Unlock()
	return q.workers
}

// Add appends a task to the tail. It never blocks and works on a stopped queue.
func (q *MessageQueue) Add(task MessageTask) {
	q.push(task)
	q.metrics.enqueued.Inc()
}

func (q *MessageQueue) push(tasks ...MessageTask) {
	q.mu.Lock()
	q.pending = append(q.pending, tasks...)
	n := len(q.pending)
	close(q.notify)
	q.notify = make(chan struct{})
	q.mu.Unlock()
	q.metrics.pending.Set(float64(n))
}

// pushFront returns tasks pulled by a worker that was cancelled before
// dispatching them. They keep their place ahead of newer tasks.
func (q *MessageQueue) pushFront(tasks []MessageTask) {
	if len(tasks) == 0 {
		return
	}
	q.mu.Lock()
	q.pending = append(append(make([]MessageTask, 0, len(tasks)+len(q.pending)), tasks...), q.pending...)
	q.inflight -= len(tasks)
	n := len(q.pending)
	close(q.notify)
	q.notify = make(chan struct{})
	q.mu.Unlock()
	q.metrics.pending.Set(float64(n))
}

// Len is the number of tasks waiting to be pulled.
func (q *MessageQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// Idle reports that nothing is pending and no batch is in flight.
func (q *MessageQueue) Idle() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending) == 0 && q.inflight == 0
}

func (q *MessageQueue) pop() (MessageTask, <-chan struct{}, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.pending) == 0 {
		return MessageTask{}, q.notify, false
	}
	task := q.pending[0]
	q.pending[0] = MessageTask{}
	q.pending = q.pending[1:]
	q.inflight++
	q.metrics.pending.Set(float64(len(q.pending)))
	return task, nil, true
}

func (q *MessageQueue) ack(n int) {
	q.mu.Lock()
	q.inflight -= n
	q.mu.Unlock()
}

// pull waits for a task until the timer fires. ok is false on timeout.
func (q *MessageQueue) pull(ctx context.Context, timer *time.Timer) (MessageTask, bool, error) {
	for {
		task, wait, ok := q.pop()
		if ok {
			return task, true, nil
		}
		select {
		case <-ctx.Done():
			return MessageTask{}, false, ctx.Err()
		case <-timer.C:
			return MessageTask{}, false, nil
		case <-wait:
		}
	}
}

// collect assembles up to BatchSize tasks, waiting at most PullTimeout for each.
func (q *MessageQueue) collect(ctx context.Context) ([]MessageTask, error) {
	batch := make([]MessageTask, 0, q.cfg.BatchSize)
	timer := time.NewTimer(q.cfg.PullTimeout)
	defer timer.Stop()
	for len(batch) < q.cfg.BatchSize {
		task, ok, err := q.pull(ctx, timer)
		if err != nil {
			return batch, err
		}
		if !ok {
			break
		}
		batch = append(batch, task)
		timer.Reset(q.cfg.PullTimeout)
	}
	return batch, nil
}

func (q *MessageQueue) worker(ctx context.Context, id int) {
	defer q.wg.Done()
	logger := q.logger.With("worker", id)
	for {
		err := q.runOnce(ctx)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			q.metrics.workerErrors.Inc()
			logger.Error("queue worker error", "error", err, "pause", q.cfg.ErrorPause)
			select {
			case <-ctx.Done():
				return
			case <-time.After(q.cfg.ErrorPause):
			}
		}
	}
}

func (q *MessageQueue) runOnce(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("worker panic: %v", r)
		}
	}()
	batch, err := q.collect(ctx)
	if err != nil {
		q.pushFront(batch)
		return nil
	}
	if len(batch) == 0 {
		return nil
	}
	defer q.ack(len(batch))
	q.processBatch(ctx, batch)
	return nil
}

// processBatch sends every task of the batch concurrently and settles the
// outcomes once all sends are done.
func (q *MessageQueue) processBatch(ctx context.Context, batch []MessageTask) {
	q.metrics.batchSize.Observe(float64(len(batch)))
	errs := make([]error, len(batch))
	var wg sync.WaitGroup
	for i := range batch {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = q.send(ctx, batch[i])
		}(i)
	}
	wg.Wait()

	for i, task := range batch {
		q.settle(ctx, task, errs[i])
	}
}

func (q *MessageQueue) send(ctx context.Context, task MessageTask) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("send panic: %v", r)
		}
	}()
	if q.cfg.SendTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, q.cfg.SendTimeout)
		defer cancel()
	}
	start := time.Now()
	err = q.sender.Send(ctx, task.ChatID, task.Text, task.ReplyMarkup)
	q.metrics.sendDuration.Observe(time.Since(start).Seconds())
	return err
}

func (q *MessageQueue) settle(ctx context.Context, task MessageTask, err error) {
	switch {
	case err == nil:
		q.metrics.outcomes.WithLabelValues(outcomeDelivered).Inc()
		q.logger.Debug("message delivered", "order_id", task.OrderID, "chat_id", task.ChatID, "attempt", task.Retries+1)
		q.record(ctx, task, OutcomeDelivered, nil)
	case ctx.Err() != nil && errors.Is(err, ctx.Err()):
		// Interrupted by Stop, not a delivery failure.
		q.push(task)
	case task.Retries < q.cfg.MaxRetries:
		task.Retries++
		q.metrics.outcomes.WithLabelValues(outcomeRetried).Inc()
		q.logger.Warn("message send failed, requeued",
			"order_id", task.OrderID, "chat_id", task.ChatID, "attempt", task.Retries, "error", err)
		q.push(task)
	default:
		q.metrics.outcomes.WithLabelValues(outcomeDropped).Inc()
		q.logger.Error("message dropped after retries",
			"order_id", task.OrderID, "chat_id", task.ChatID, "attempt", task.Retries+1, "error", err)
		q.record(ctx, task, OutcomeDropped, err)
	}
}

func (q *MessageQueue) record(ctx context.Context, task MessageTask, outcome Outcome, sendErr error) {
	if q.recorder == nil {
		return
	}
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), recordTimeout)
	defer cancel()
	rec := DeliveryRecord{
		OrderID:  task.OrderID,
		ChatID:   task.ChatID,
		Outcome:  outcome,
		Attempts: task.Retries + 1,
		At:       time.Now(),
	}
	if sendErr != nil {
		rec.Error = sendErr.Error()
	}
	if err := q.recorder.RecordDelivery(rctx, rec); err != nil {
		q.logger.Warn("record delivery failed", "order_id", task.OrderID, "chat_id", task.ChatID, "error", err)
	}
}

package dispatch

import (
	"container/heap"
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/opentracing/opentracing-go"

	"github.com/emailmax/warmup/interfaces"
	"github.com/emailmax/warmup/internal/enum"
	warmuperrors "github.com/emailmax/warmup/internal/errors"
	"github.com/emailmax/warmup/internal/logger"
	"github.com/emailmax/warmup/internal/models"
	"github.com/emailmax/warmup/internal/tracing"
	"github.com/emailmax/warmup/internal/utils"
)

const (
	DefaultMaxAttempts  = 3
	DefaultBaseBackoff  = 2 * time.Second
	DefaultMaxBackoff   = 2 * time.Minute
	DefaultResultBuffer = 256
)

type Config struct {
	RateCaps     RateCaps
	MaxAttempts  int
	BaseBackoff  time.Duration
	MaxBackoff   time.Duration
	ResultBuffer int
}

func (c *Config) applyDefaults() {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = DefaultMaxAttempts
	}
	if c.BaseBackoff <= 0 {
		c.BaseBackoff = DefaultBaseBackoff
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = DefaultMaxBackoff
	}
	if c.ResultBuffer <= 0 {
		c.ResultBuffer = DefaultResultBuffer
	}
}

// Queue is an in-memory, priority-ordered, rate-limited dispatch queue.
// Enqueue never blocks the caller; transmission happens on the scheduler
// goroutine's watch. Equal-priority items preserve FIFO order.
type Queue struct {
	transmit interfaces.TransmitFunc
	log      logger.Logger
	config   Config
	limiter  *windowLimiter

	mu       sync.Mutex
	ready    readyHeap
	delayed  delayedHeap
	seq      uint64
	inFlight int
	sent     int
	dead     int
	closed   bool
	// clearGen invalidates retries of sends that were in flight when the
	// queue was cleared or stopped.
	clearGen int

	wake    chan struct{}
	results chan *models.DispatchResult
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	rng     *rand.Rand
	rngMu   sync.Mutex
}

func NewQueue(transmit interfaces.TransmitFunc, log logger.Logger, config Config) *Queue {
	config.applyDefaults()
	return &Queue{
		transmit: transmit,
		log:      log,
		config:   config,
		limiter:  newWindowLimiter(config.RateCaps),
		wake:     make(chan struct{}, 1),
		results:  make(chan *models.DispatchResult, config.ResultBuffer),
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Start launches the scheduler. Stop or context cancellation shuts it down.
func (q *Queue) Start(ctx context.Context) {
	runCtx, cancel := context.WithCancel(ctx)
	q.mu.Lock()
	q.cancel = cancel
	q.mu.Unlock()

	q.wg.Add(1)
	go q.schedule(runCtx)
}

// Enqueue accepts a job immediately and returns its queue id.
func (q *Queue) Enqueue(item *models.QueueItem) (string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return "", warmuperrors.ErrQueueClosed
	}

	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	q.seq++
	item.Sequence = q.seq
	item.EnqueuedAt = utils.Now()

	if item.NotBefore.After(time.Now()) {
		heap.Push(&q.delayed, item)
	} else {
		heap.Push(&q.ready, item)
	}
	q.signal()
	return item.ID, nil
}

// Results delivers terminal dispatch outcomes (sent or dead-lettered).
func (q *Queue) Results() <-chan *models.DispatchResult {
	return q.results
}

// Stats returns a read-only snapshot of queue state counts.
func (q *Queue) Stats() models.QueueStats {
	q.mu.Lock()
	defer q.mu.Unlock()
	return models.QueueStats{
		Pending:    q.ready.Len() + q.delayed.Len(),
		InFlight:   q.inFlight,
		Sent:       q.sent,
		DeadLetter: q.dead,
	}
}

// Clear discards all pending jobs. In-flight sends complete but are not
// retried afterwards. Returns the number of discarded jobs.
func (q *Queue) Clear() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	removed := q.ready.Len() + q.delayed.Len()
	q.ready = readyHeap{}
	q.delayed = delayedHeap{}
	q.clearGen++
	return removed
}

// Stop halts the scheduler. Pending jobs remain queued but are no longer
// dispatched; in-flight sends run to completion.
func (q *Queue) Stop() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	q.clearGen++
	cancel := q.cancel
	q.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	q.wg.Wait()
	close(q.results)
}

func (q *Queue) signal() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// schedule is the dispatcher loop: it promotes due delayed items, waits for
// rate-limit tokens and hands eligible items to transmission goroutines in
// priority order.
func (q *Queue) schedule(ctx context.Context) {
	defer q.wg.Done()

	for {
		item, wait := q.nextItem()
		if item == nil {
			select {
			case <-ctx.Done():
				return
			case <-q.wake:
			case <-time.After(wait):
			}
			continue
		}

		if !q.limiter.Allow() {
			// Window exhausted: defer, never drop.
			q.requeueReady(item)
			delay := q.limiter.Delay()
			if delay <= 0 {
				delay = 50 * time.Millisecond
			}
			select {
			case <-ctx.Done():
				return
			case <-time.After(delay):
			}
			continue
		}

		q.mu.Lock()
		q.inFlight++
		gen := q.clearGen
		q.mu.Unlock()

		q.wg.Add(1)
		go q.dispatch(ctx, item, gen)
	}
}

// nextItem pops the most urgent eligible item, or returns how long to wait
// for the next delayed item to become due.
func (q *Queue) nextItem() (*models.QueueItem, time.Duration) {
	q.mu.Lock()
	defer q.mu.Unlock()

	now := time.Now()
	for q.delayed.Len() > 0 && !q.delayed[0].NotBefore.After(now) {
		heap.Push(&q.ready, heap.Pop(&q.delayed))
	}

	if q.ready.Len() > 0 {
		return heap.Pop(&q.ready).(*models.QueueItem), 0
	}

	if q.delayed.Len() > 0 {
		return nil, time.Until(q.delayed[0].NotBefore)
	}
	return nil, time.Hour
}

func (q *Queue) requeueReady(item *models.QueueItem) {
	q.mu.Lock()
	heap.Push(&q.ready, item)
	q.mu.Unlock()
}

func (q *Queue) dispatch(ctx context.Context, item *models.QueueItem, gen int) {
	defer q.wg.Done()

	span := opentracing.StartSpan("DispatchQueue.dispatch")
	defer span.Finish()
	tracing.TagAccount(span, item.AccountID)
	tracing.TagInteraction(span, item.InteractionID)

	item.Attempts++
	receipt, err := q.transmit(ctx, item)

	q.mu.Lock()
	q.inFlight--
	stale := gen != q.clearGen
	q.mu.Unlock()

	if err == nil {
		q.mu.Lock()
		q.sent++
		q.mu.Unlock()
		q.report(&models.DispatchResult{
			QueueID:       item.ID,
			InteractionID: item.InteractionID,
			State:         enum.QueueItemSent,
			Receipt:       receipt,
			Attempts:      item.Attempts,
		})
		return
	}

	tracing.TraceErr(span, err)
	item.LastFailure = err.Error()

	permanent := warmuperrors.IsPermanent(err)
	exhausted := item.Attempts >= q.config.MaxAttempts

	if permanent || exhausted || stale {
		q.mu.Lock()
		q.dead++
		q.mu.Unlock()
		q.log.Warnf("dead-lettering job %s after %d attempt(s): %v", item.ID, item.Attempts, err)
		q.report(&models.DispatchResult{
			QueueID:       item.ID,
			InteractionID: item.InteractionID,
			State:         enum.QueueItemDeadLetter,
			Err:           err,
			Attempts:      item.Attempts,
		})
		return
	}

	// Transient failure: requeue with randomized exponential backoff.
	item.NotBefore = time.Now().Add(q.backoff(item.Attempts))
	q.mu.Lock()
	if q.closed || gen != q.clearGen {
		q.dead++
		q.mu.Unlock()
		q.report(&models.DispatchResult{
			QueueID:       item.ID,
			InteractionID: item.InteractionID,
			State:         enum.QueueItemDeadLetter,
			Err:           err,
			Attempts:      item.Attempts,
		})
		return
	}
	heap.Push(&q.delayed, item)
	q.mu.Unlock()
	q.signal()
}

func (q *Queue) report(result *models.DispatchResult) {
	select {
	case q.results <- result:
	default:
		// Results channel full; drop rather than block the dispatcher.
		q.log.Warnf("dispatch result buffer full, dropping result for job %s", result.QueueID)
	}
}

// backoff grows exponentially with attempts and carries +-25% jitter so
// retries from many mailboxes do not align.
func (q *Queue) backoff(attempts int) time.Duration {
	d := q.config.BaseBackoff
	for i := 1; i < attempts; i++ {
		d *= 2
		if d > q.config.MaxBackoff {
			d = q.config.MaxBackoff
			break
		}
	}
	q.rngMu.Lock()
	jitter := 0.75 + q.rng.Float64()*0.5
	q.rngMu.Unlock()
	return time.Duration(float64(d) * jitter)
}

// readyHeap orders by priority ascending, then enqueue sequence for a stable
// FIFO tie-break.
type readyHeap []*models.QueueItem

func (h readyHeap) Len() int { return len(h) }

func (h readyHeap) Less(i, j int) bool {
	if h[i].Priority != h[j].Priority {
		return h[i].Priority < h[j].Priority
	}
	return h[i].Sequence < h[j].Sequence
}

func (h readyHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *readyHeap) Push(x any) { *h = append(*h, x.(*models.QueueItem)) }

func (h *readyHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return item
}

// delayedHeap orders by earliest-dispatch time.
type delayedHeap []*models.QueueItem

func (h delayedHeap) Len() int { return len(h) }

func (h delayedHeap) Less(i, j int) bool { return h[i].NotBefore.Before(h[j].NotBefore) }

func (h delayedHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *delayedHeap) Push(x any) { *h = append(*h, x.(*models.QueueItem)) }

func (h *delayedHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return item
}

package dispatch

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emailmax/warmup/internal/enum"
	warmuperrors "github.com/emailmax/warmup/internal/errors"
	"github.com/emailmax/warmup/internal/logger"
	"github.com/emailmax/warmup/internal/models"
)

func getLogger() logger.Logger {
	appLogger := logger.NewAppLogger(&logger.Config{
		DevMode: true,
	})
	appLogger.InitLogger()
	return appLogger
}

func testMessage() *models.OutboundMessage {
	return &models.OutboundMessage{
		FromAddress: "sender@example.com",
		ToAddresses: []string{"receiver@example.com"},
		Subject:     "hello",
		BodyText:    "hello there",
	}
}

// TransmitRecorder is a thread-safe fake transmit function.
type TransmitRecorder struct {
	mu    sync.Mutex
	calls []string
	fail  func(attempt int, item *models.QueueItem) error
}

func (r *TransmitRecorder) transmit(ctx context.Context, item *models.QueueItem) (*models.SendReceipt, error) {
	r.mu.Lock()
	r.calls = append(r.calls, item.ID)
	attempt := item.Attempts
	r.mu.Unlock()

	if r.fail != nil {
		if err := r.fail(attempt, item); err != nil {
			return nil, err
		}
	}
	return &models.SendReceipt{MessageID: "<" + item.ID + "@example.com>", SentAt: time.Now()}, nil
}

func (r *TransmitRecorder) callCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

func collectResult(t *testing.T, q *Queue) *models.DispatchResult {
	t.Helper()
	select {
	case result := <-q.Results():
		return result
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for dispatch result")
		return nil
	}
}

func TestQueue_OrdersByPriorityThenFIFO(t *testing.T) {
	// Arrange: never start the scheduler so pop order is observable
	recorder := &TransmitRecorder{}
	q := NewQueue(recorder.transmit, getLogger(), Config{})

	ids := []string{}
	enqueue := func(id string, priority int) {
		item := &models.QueueItem{ID: id, Priority: priority, Message: testMessage()}
		_, err := q.Enqueue(item)
		require.NoError(t, err)
		ids = append(ids, id)
	}
	enqueue("low-1", 5)
	enqueue("urgent-1", 0)
	enqueue("low-2", 5)
	enqueue("urgent-2", 0)
	enqueue("mid", 2)

	// Act
	var order []string
	for i := 0; i < 5; i++ {
		item, _ := q.nextItem()
		require.NotNil(t, item)
		order = append(order, item.ID)
	}

	// Assert: priority ascending, FIFO between equals
	assert.Equal(t, []string{"urgent-1", "urgent-2", "mid", "low-1", "low-2"}, order)
}

func TestQueue_EnqueueIsNonBlockingAndReturnsID(t *testing.T) {
	// Arrange
	recorder := &TransmitRecorder{}
	q := NewQueue(recorder.transmit, getLogger(), Config{})

	// Act
	start := time.Now()
	id, err := q.Enqueue(&models.QueueItem{Message: testMessage()})

	// Assert
	require.NoError(t, err)
	assert.NotEmpty(t, id)
	assert.Less(t, time.Since(start), 100*time.Millisecond)
	assert.Equal(t, 1, q.Stats().Pending)
}

func TestQueue_RateLimitDefersExcessSends(t *testing.T) {
	// Arrange: cap of 2 per minute, 3 jobs
	recorder := &TransmitRecorder{}
	q := NewQueue(recorder.transmit, getLogger(), Config{
		RateCaps: RateCaps{PerMinute: 2},
	})
	for i := 0; i < 3; i++ {
		_, err := q.Enqueue(&models.QueueItem{Message: testMessage()})
		require.NoError(t, err)
	}

	// Act
	q.Start(context.Background())
	defer q.Stop()

	first := collectResult(t, q)
	second := collectResult(t, q)

	// Assert: two sends settle, the third is deferred, never dropped
	assert.Equal(t, enum.QueueItemSent, first.State)
	assert.Equal(t, enum.QueueItemSent, second.State)

	select {
	case result := <-q.Results():
		t.Fatalf("third send should have been deferred, got %v", result.State)
	case <-time.After(300 * time.Millisecond):
	}
	stats := q.Stats()
	assert.Equal(t, 1, stats.Pending)
	assert.Equal(t, 2, stats.Sent)
}

func TestQueue_PermanentFailureDeadLettersWithoutRetry(t *testing.T) {
	// Arrange
	recorder := &TransmitRecorder{
		fail: func(attempt int, item *models.QueueItem) error {
			return warmuperrors.NewAuthError(errors.New("535 bad credentials"))
		},
	}
	q := NewQueue(recorder.transmit, getLogger(), Config{BaseBackoff: time.Millisecond})
	_, err := q.Enqueue(&models.QueueItem{Message: testMessage()})
	require.NoError(t, err)

	// Act
	q.Start(context.Background())
	defer q.Stop()
	result := collectResult(t, q)

	// Assert: one attempt only
	assert.Equal(t, enum.QueueItemDeadLetter, result.State)
	assert.Equal(t, 1, result.Attempts)
	assert.Equal(t, 1, recorder.callCount())
	assert.Equal(t, 1, q.Stats().DeadLetter)
}

func TestQueue_InvalidRecipientDeadLettersWithoutRetry(t *testing.T) {
	// Arrange: pre-send validation rejects the message
	recorder := &TransmitRecorder{
		fail: func(attempt int, item *models.QueueItem) error {
			return warmuperrors.NewPermanentError(errors.New(`recipient address "not-an-address" is not valid`))
		},
	}
	q := NewQueue(recorder.transmit, getLogger(), Config{BaseBackoff: time.Millisecond})
	_, err := q.Enqueue(&models.QueueItem{Message: testMessage()})
	require.NoError(t, err)

	// Act
	q.Start(context.Background())
	defer q.Stop()
	result := collectResult(t, q)

	// Assert: one attempt only, no backoff cycle
	assert.Equal(t, enum.QueueItemDeadLetter, result.State)
	assert.Equal(t, 1, result.Attempts)
	assert.Equal(t, 1, recorder.callCount())
}

func TestQueue_TransientFailureRetriesWithBackoff(t *testing.T) {
	// Arrange: first attempt times out, second succeeds
	recorder := &TransmitRecorder{
		fail: func(attempt int, item *models.QueueItem) error {
			if attempt == 1 {
				return warmuperrors.NewNetworkError(errors.New("connection reset"))
			}
			return nil
		},
	}
	q := NewQueue(recorder.transmit, getLogger(), Config{BaseBackoff: 5 * time.Millisecond})
	_, err := q.Enqueue(&models.QueueItem{Message: testMessage()})
	require.NoError(t, err)

	// Act
	q.Start(context.Background())
	defer q.Stop()
	result := collectResult(t, q)

	// Assert
	assert.Equal(t, enum.QueueItemSent, result.State)
	assert.Equal(t, 2, result.Attempts)
	assert.NotNil(t, result.Receipt)
}

func TestQueue_ExhaustedRetriesDeadLetter(t *testing.T) {
	// Arrange: every attempt fails transiently
	recorder := &TransmitRecorder{
		fail: func(attempt int, item *models.QueueItem) error {
			return warmuperrors.NewNetworkError(errors.New("connection reset"))
		},
	}
	q := NewQueue(recorder.transmit, getLogger(), Config{
		MaxAttempts: 2,
		BaseBackoff: 5 * time.Millisecond,
	})
	_, err := q.Enqueue(&models.QueueItem{Message: testMessage()})
	require.NoError(t, err)

	// Act
	q.Start(context.Background())
	defer q.Stop()
	result := collectResult(t, q)

	// Assert
	assert.Equal(t, enum.QueueItemDeadLetter, result.State)
	assert.Equal(t, 2, result.Attempts)
	assert.NotNil(t, result.Err)
}

func TestQueue_ClearDiscardsPendingJobs(t *testing.T) {
	// Arrange
	recorder := &TransmitRecorder{}
	q := NewQueue(recorder.transmit, getLogger(), Config{})
	for i := 0; i < 3; i++ {
		_, err := q.Enqueue(&models.QueueItem{Message: testMessage()})
		require.NoError(t, err)
	}
	_, err := q.Enqueue(&models.QueueItem{
		Message:   testMessage(),
		NotBefore: time.Now().Add(time.Hour),
	})
	require.NoError(t, err)

	// Act
	removed := q.Clear()

	// Assert
	assert.Equal(t, 4, removed)
	assert.Equal(t, 0, q.Stats().Pending)
}

func TestQueue_EnqueueAfterStopFails(t *testing.T) {
	// Arrange
	recorder := &TransmitRecorder{}
	q := NewQueue(recorder.transmit, getLogger(), Config{})
	q.Start(context.Background())

	// Act
	q.Stop()
	_, err := q.Enqueue(&models.QueueItem{Message: testMessage()})

	// Assert
	assert.ErrorIs(t, err, warmuperrors.ErrQueueClosed)
}

func TestQueue_BackoffGrowsAndStaysBounded(t *testing.T) {
	// Arrange
	q := NewQueue((&TransmitRecorder{}).transmit, getLogger(), Config{
		BaseBackoff: 100 * time.Millisecond,
		MaxBackoff:  time.Second,
	})

	// Act & Assert: jitter is +-25% around the exponential value
	first := q.backoff(1)
	assert.GreaterOrEqual(t, first, 75*time.Millisecond)
	assert.LessOrEqual(t, first, 125*time.Millisecond)

	deep := q.backoff(10)
	assert.LessOrEqual(t, deep, 1250*time.Millisecond)
}

package surgery

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeReader serves queued messages, then blocks until ctx is cancelled.
type fakeReader struct {
	mu        sync.Mutex
	queue     []kafka.Message
	committed []int64
	closed    bool
	drained   chan struct{}
}

func newFakeReader(values ...string) *fakeReader {
	r := &fakeReader{drained: make(chan struct{})}
	for i, v := range values {
		r.queue = append(r.queue, kafka.Message{Offset: int64(i), Value: []byte(v)})
	}
	return r
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	r.mu.Lock()
	if len(r.queue) > 0 {
		msg := r.queue[0]
		r.queue = r.queue[1:]
		r.mu.Unlock()
		return msg, nil
	}
	r.mu.Unlock()
	select {
	case <-r.drained:
	default:
		close(r.drained)
	}
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range msgs {
		r.committed = append(r.committed, m.Offset)
	}
	return nil
}

func (r *fakeReader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}

func runConsumer(t *testing.T, c *Consumer, r *fakeReader) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()
	<-r.drained
	cancel()
	require.NoError(t, <-done)
}

func TestConsumer_AppliesAndCommits(t *testing.T) {
	svc, repo := newTestService()
	c1 := repo.add(uuid.New(), uuid.New(), "Knee", "2025-03-01", StatusProposed)

	reader := newFakeReader(
		`{"case_id":"`+c1.ID.String()+`","status":"Scheduled"}`,
		`not json`,
		`{"case_id":"`+uuid.New().String()+`","status":"Completed"}`,
		`{"case_id":"`+c1.ID.String()+`","status":"Bogus"}`,
	)
	consumer := NewConsumer(reader, svc, zerolog.Nop())
	runConsumer(t, consumer, reader)

	got, _ := repo.GetByID(context.Background(), c1.ID)
	assert.Equal(t, StatusScheduled, got.Status)
	assert.Equal(t, []int64{0, 1, 2, 3}, reader.committed, "bad events are committed, not redelivered")
	assert.True(t, reader.closed)
}

func TestConsumer_RetriesStoreFailure(t *testing.T) {
	svc, repo := newTestService()
	c1 := repo.add(uuid.New(), uuid.New(), "Hip", "2025-03-01", StatusProposed)
	repo.failErr = errors.New("connection reset")
	repo.failLeft = 2

	reader := newFakeReader(`{"case_id":"` + c1.ID.String() + `","status":"Completed"}`)
	consumer := NewConsumer(reader, svc, zerolog.Nop())
	consumer.backoff = 0
	runConsumer(t, consumer, reader)

	got, _ := repo.GetByID(context.Background(), c1.ID)
	assert.Equal(t, StatusCompleted, got.Status)
	assert.Equal(t, 1, repo.updates)
}

func TestConsumer_GivesUpAfterRetries(t *testing.T) {
	svc, repo := newTestService()
	c1 := repo.add(uuid.New(), uuid.New(), "Hip", "2025-03-01", StatusProposed)
	repo.failErr = errors.New("connection reset")
	repo.failLeft = 100

	reader := newFakeReader(`{"case_id":"` + c1.ID.String() + `","status":"Completed"}`)
	consumer := NewConsumer(reader, svc, zerolog.Nop())
	consumer.backoff = 0
	runConsumer(t, consumer, reader)

	assert.Equal(t, 100-(consumer.retries+1), repo.failLeft)
	assert.Equal(t, []int64{0}, reader.committed)
}

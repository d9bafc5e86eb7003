package bus

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type keyedEvent struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func (e keyedEvent) PartitionKey() string { return e.ID }

type recordingHandler struct {
	mu   sync.Mutex
	keys []string
	err  error
}

func (h *recordingHandler) HandleMessage(ctx context.Context, key string, payload []byte) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.keys = append(h.keys, key)
	return h.err
}

func (h *recordingHandler) seen() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.keys...)
}

func TestInMemoryEventBus_Publish(t *testing.T) {
	// Arrange
	b := NewInMemoryEventBus("customsflow-events")
	first := b.Subscribe(4)
	second := b.Subscribe(4)

	// Act
	require.NoError(t, b.Publish(context.Background(), keyedEvent{ID: "agg-1", Name: "x"}))

	// Assert
	for _, ch := range []<-chan Message{first, second} {
		msg := <-ch
		assert.Equal(t, "agg-1", msg.Key)
		assert.JSONEq(t, `{"id":"agg-1","name":"x"}`, string(msg.Payload))
	}
	assert.Equal(t, "customsflow-events", b.Topic())
}

func TestInMemoryEventBus_FullSubscriberRejectsPublish(t *testing.T) {
	// Arrange: un suscriptor con hueco y otro lleno
	b := NewInMemoryEventBus("t")
	roomy := b.Subscribe(4)
	tight := b.Subscribe(1)
	require.NoError(t, b.Publish(context.Background(), keyedEvent{ID: "1"}))

	// Act
	err := b.Publish(context.Background(), keyedEvent{ID: "2"})

	// Assert: nadie recibe el segundo mensaje, el publicador sabe que debe reintentar
	assert.ErrorIs(t, err, ErrSubscriberFull)
	assert.Len(t, roomy, 1)
	assert.Len(t, tight, 1)

	<-tight
	require.NoError(t, b.Publish(context.Background(), keyedEvent{ID: "2"}))
	assert.Equal(t, "1", (<-roomy).Key)
	assert.Equal(t, "2", (<-roomy).Key)
	assert.Equal(t, "2", (<-tight).Key)
}

func TestInMemoryEventBus_UnserializableEvent(t *testing.T) {
	b := NewInMemoryEventBus("t")
	assert.Error(t, b.Publish(context.Background(), make(chan int)))
}

var fastRedelivery = Redelivery{Base: time.Millisecond, Max: 5 * time.Millisecond}

// flakyHandler falla las primeras failures entregas de cada clave.
type flakyHandler struct {
	mu       sync.Mutex
	failures int
	err      error
	calls    map[string]int
	done     []string
}

func newFlakyHandler(failures int, err error) *flakyHandler {
	return &flakyHandler{failures: failures, err: err, calls: map[string]int{}}
}

func (h *flakyHandler) HandleMessage(ctx context.Context, key string, payload []byte) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.calls[key]++
	if h.calls[key] <= h.failures {
		return h.err
	}
	h.done = append(h.done, key)
	return nil
}

func (h *flakyHandler) snapshot() (map[string]int, []string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	calls := make(map[string]int, len(h.calls))
	for k, v := range h.calls {
		calls[k] = v
	}
	return calls, append([]string(nil), h.done...)
}

func TestChannelConsumer_Run(t *testing.T) {
	b := NewInMemoryEventBus("t")
	handler := newFlakyHandler(2, errors.New("db unavailable"))
	consumer := NewChannelConsumer(b.Subscribe(8), handler, zap.NewNop()).WithRedelivery(fastRedelivery)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- consumer.Run(ctx) }()

	require.NoError(t, b.Publish(ctx, keyedEvent{ID: "a"}))
	require.NoError(t, b.Publish(ctx, keyedEvent{ID: "b"}))

	// Los fallos transitorios se reintentan sin perder ni reordenar mensajes
	assert.Eventually(t, func() bool {
		_, processed := handler.snapshot()
		return len(processed) == 2
	}, time.Second, 5*time.Millisecond)
	calls, processed := handler.snapshot()
	assert.Equal(t, []string{"a", "b"}, processed)
	assert.Equal(t, map[string]int{"a": 3, "b": 3}, calls)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("consumer did not stop")
	}
}

func TestChannelConsumer_DiscardsUnprocessable(t *testing.T) {
	b := NewInMemoryEventBus("t")
	handler := &recordingHandler{err: fmt.Errorf("%w: corrupt payload", ErrUnprocessable)}
	consumer := NewChannelConsumer(b.Subscribe(8), handler, zap.NewNop()).WithRedelivery(fastRedelivery)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = consumer.Run(ctx) }()

	require.NoError(t, b.Publish(ctx, keyedEvent{ID: "a"}))
	require.NoError(t, b.Publish(ctx, keyedEvent{ID: "b"}))

	assert.Eventually(t, func() bool { return len(handler.seen()) == 2 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"a", "b"}, handler.seen())
}

func TestChannelConsumer_StopsWhileRetrying(t *testing.T) {
	b := NewInMemoryEventBus("t")
	handler := &recordingHandler{err: errors.New("still down")}
	consumer := NewChannelConsumer(b.Subscribe(8), handler, zap.NewNop()).
		WithRedelivery(Redelivery{Base: time.Hour, Max: time.Hour})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- consumer.Run(ctx) }()

	require.NoError(t, b.Publish(ctx, keyedEvent{ID: "a"}))
	assert.Eventually(t, func() bool { return len(handler.seen()) == 1 }, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("consumer did not stop during backoff")
	}
}

func TestRedelivery_Delay(t *testing.T) {
	r := Redelivery{Base: 100 * time.Millisecond, Max: time.Second}

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{1, 100 * time.Millisecond},
		{2, 200 * time.Millisecond},
		{4, 800 * time.Millisecond},
		{5, time.Second},
		{30, time.Second},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, r.delay(tt.attempt), "attempt %d", tt.attempt)
	}
}

package rabbitmq

import (
	"encoding/json"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeCompleted(t *testing.T) {
	at := time.Date(2026, 3, 1, 10, 30, 0, 0, time.UTC)
	body, err := json.Marshal(CompletedEvent{Type: EventConsultationCompleted, SessionID: "s1", CompletedAt: at})
	require.NoError(t, err)

	ev, err := DecodeCompleted(body)
	require.NoError(t, err)
	assert.Equal(t, "s1", ev.SessionID)
	assert.True(t, ev.CompletedAt.Equal(at))

	_, err = DecodeCompleted([]byte(`{"type":"consultation.completed"}`))
	assert.Error(t, err)
	_, err = DecodeCompleted([]byte(`not json`))
	assert.Error(t, err)
}

func TestRetryCount(t *testing.T) {
	assert.Equal(t, 0, RetryCount(nil))
	assert.Equal(t, 2, RetryCount(amqp.Table{"x-retry": int32(2)}))
	assert.Equal(t, 3, RetryCount(amqp.Table{"x-retry": int64(3)}))
	assert.Equal(t, 1, RetryCount(amqp.Table{"x-retry": "1"}))
}

func TestFormatMillis(t *testing.T) {
	assert.Equal(t, "5000", formatMillis(5*time.Second))
	assert.Equal(t, "1", formatMillis(0))
}

package queue

import (
	"encoding/json"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPublishing(t *testing.T) {
	occurred := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	msg, err := newPublishing(AccountEvent{
		Type:       EventUserRegistered,
		UserID:     "user-1",
		Username:   "ana",
		OccurredAt: occurred,
	})
	require.NoError(t, err)

	assert.Equal(t, "application/json", msg.ContentType)
	assert.Equal(t, amqp.Persistent, msg.DeliveryMode)
	assert.Equal(t, EventUserRegistered, msg.Type)
	assert.Equal(t, occurred, msg.Timestamp)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(msg.Body, &decoded))
	assert.Equal(t, "user.registered", decoded["type"])
	assert.Equal(t, "user-1", decoded["user_id"])
	assert.NotContains(t, decoded, "email")
}

func TestNewPublishing_DefaultsTimestamp(t *testing.T) {
	msg, err := newPublishing(AccountEvent{Type: EventUserLoggedOut, UserID: "user-1"})
	require.NoError(t, err)

	assert.False(t, msg.Timestamp.IsZero())
}

func TestNewPublishing_RequiresType(t *testing.T) {
	_, err := newPublishing(AccountEvent{UserID: "user-1"})
	assert.Error(t, err)
}

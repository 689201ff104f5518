package events

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeKnownTopic(t *testing.T) {
	raw, err := json.Marshal(UserRegistered{
		UserID:    42,
		Email:     "jo@example.com",
		Name:      "Jo",
		Timestamp: time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	decoded, err := Decode(TopicUserRegistered, raw)
	require.NoError(t, err)

	payload, ok := decoded.(*UserRegistered)
	require.True(t, ok)
	assert.Equal(t, int64(42), payload.UserID)
	assert.Equal(t, "jo@example.com", payload.Email)
}

func TestDecodeUnknownTopic(t *testing.T) {
	_, err := Decode(Topic("user.deleted"), []byte(`{}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown topic")
}

func TestDecodeMalformedPayload(t *testing.T) {
	_, err := Decode(TopicUserBlocked, []byte(`{"user_id":"not-a-number"}`))
	require.Error(t, err)
}

func TestDecodePartialPatchKeepsNilFields(t *testing.T) {
	decoded, err := Decode(TopicUserProfileUpdated, []byte(`{"user_id":7,"name":"New Name"}`))
	require.NoError(t, err)

	payload := decoded.(*UserProfileUpdated)
	require.NotNil(t, payload.Name)
	assert.Equal(t, "New Name", *payload.Name)
	assert.Nil(t, payload.Email)
	assert.Nil(t, payload.Phone)
}

func TestEveryTopicIsRegistered(t *testing.T) {
	topics := []Topic{
		TopicUserRegistered,
		TopicUserProfileCreated,
		TopicUserProfileUpdated,
		TopicUserPasswordChanged,
		TopicUserDataSynced,
		TopicUserSyncRequested,
		TopicUserBlocked,
		TopicUserUnblocked,
		TopicUserAdminMade,
		TopicUserAdminRemoved,
		TopicUserAddressCreated,
		TopicUserAddressUpdated,
		TopicUserAddressDeleted,
		TopicCategoryCreated,
		TopicCategoryUpdated,
		TopicCategoryDeleted,
	}
	for _, topic := range topics {
		assert.True(t, Known(topic), "topic %s missing from registry", topic)
	}
}

func TestQueueName(t *testing.T) {
	assert.Equal(t, "user-service.user.registered", QueueName("user-service", TopicUserRegistered))
}

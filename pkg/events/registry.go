package events

import (
	"encoding/json"
	"fmt"
)

// payloadFactories maps each topic to a constructor for its payload
// type. One payload type per topic; decoding an unknown topic fails.
var payloadFactories = map[Topic]func() any{
	TopicUserRegistered:      func() any { return &UserRegistered{} },
	TopicUserProfileCreated:  func() any { return &UserProfileCreated{} },
	TopicUserProfileUpdated:  func() any { return &UserProfileUpdated{} },
	TopicUserPasswordChanged: func() any { return &UserPasswordChanged{} },
	TopicUserDataSynced:      func() any { return &UserDataSynced{} },
	TopicUserSyncRequested:   func() any { return &UserSyncRequested{} },
	TopicUserBlocked:         func() any { return &UserBlocked{} },
	TopicUserUnblocked:       func() any { return &UserUnblocked{} },
	TopicUserAdminMade:       func() any { return &UserAdminMade{} },
	TopicUserAdminRemoved:    func() any { return &UserAdminRemoved{} },
	TopicUserAddressCreated:  func() any { return &UserAddressCreated{} },
	TopicUserAddressUpdated:  func() any { return &UserAddressUpdated{} },
	TopicUserAddressDeleted:  func() any { return &UserAddressDeleted{} },
	TopicCategoryCreated:     func() any { return &CategoryCreated{} },
	TopicCategoryUpdated:     func() any { return &CategoryUpdated{} },
	TopicCategoryDeleted:     func() any { return &CategoryDeleted{} },
}

// Known reports whether the topic has a registered payload type.
func Known(topic Topic) bool {
	_, ok := payloadFactories[topic]
	return ok
}

// Decode unmarshals raw message data into the payload type registered
// for the topic.
func Decode(topic Topic, data []byte) (any, error) {
	factory, ok := payloadFactories[topic]
	if !ok {
		return nil, fmt.Errorf("unknown topic %q", topic)
	}
	payload := factory()
	if err := json.Unmarshal(data, payload); err != nil {
		return nil, fmt.Errorf("decoding %s payload: %w", topic, err)
	}
	return payload, nil
}

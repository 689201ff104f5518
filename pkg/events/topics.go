package events

import "fmt"

// Topic names the fanout channel an event is published on. Every
// subscribing service binds its own durable queue to the topic, so each
// service sees every message independently.
type Topic string

const (
	TopicUserRegistered       Topic = "user.registered"
	TopicUserProfileCreated   Topic = "user.profile.created"
	TopicUserProfileUpdated   Topic = "user.profile.updated"
	TopicUserPasswordChanged  Topic = "user.password.changed"
	TopicUserDataSynced       Topic = "user.data.synced"
	TopicUserSyncRequested    Topic = "user.profile.sync.requested"
	TopicUserBlocked          Topic = "user.blocked"
	TopicUserUnblocked        Topic = "user.unblocked"
	TopicUserAdminMade        Topic = "user.admin.made"
	TopicUserAdminRemoved     Topic = "user.admin.removed"
	TopicUserAddressCreated   Topic = "user.address.created"
	TopicUserAddressUpdated   Topic = "user.address.updated"
	TopicUserAddressDeleted   Topic = "user.address.deleted"
	TopicCategoryCreated      Topic = "category.created"
	TopicCategoryUpdated      Topic = "category.updated"
	TopicCategoryDeleted      Topic = "category.deleted"
)

func (t Topic) String() string { return string(t) }

// QueueName derives the durable per-service subscription name for a
// topic. Service name first so queues group by owner in consoles.
func QueueName(service string, topic Topic) string {
	return fmt.Sprintf("%s.%s", service, topic)
}

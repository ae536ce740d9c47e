package pubsub

// Topic names shared by Aura services.
const (
	TopicNotificationEvents = "notification.events"
)

package pubsub

// Topic names shared by publishers and the bus handlers.
const (
	TopicMessageCreated = "chat.message.created.v1"
	TopicDeliveryPoison = "chat.delivery.poison"
)

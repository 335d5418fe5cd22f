package kafka

import "fmt"

const (
	// TopicPrefix namespaces every topic this system publishes.
	TopicPrefix = "coursereviews"
	// DLQTopicPrefix namespaces dead-letter topics.
	DLQTopicPrefix = TopicPrefix + ".dlq"
)

// Topic builds "<prefix>.<domain>.<action>".
func Topic(domain, action string) string {
	return fmt.Sprintf("%s.%s.%s", TopicPrefix, domain, action)
}

// DLQTopic returns the dead-letter topic for a source topic.
func DLQTopic(originalTopic string) string {
	return fmt.Sprintf("%s.%s", DLQTopicPrefix, originalTopic)
}

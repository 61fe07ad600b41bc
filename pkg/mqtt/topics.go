package mqtt

import "fmt"

// Topic layout of the streaming channel. Every federation shares a
// broker; topics are namespaced by federation ID.
const (
	inboxTopicTemplate     = "fedmesh/%s/nodes/%s/inbox"
	broadcastTopicTemplate = "fedmesh/%s/broadcast"
	aliveTopicTemplate     = "fedmesh/%s/control/alive"
	errorTopicTemplate     = "fedmesh/%s/nodes/%s/errors"
)

func InboxTopic(federation, nodeID string) string {
	return fmt.Sprintf(inboxTopicTemplate, federation, nodeID)
}

func BroadcastTopic(federation string) string {
	return fmt.Sprintf(broadcastTopicTemplate, federation)
}

func AliveTopic(federation string) string {
	return fmt.Sprintf(aliveTopicTemplate, federation)
}

func ErrorTopic(federation, nodeID string) string {
	return fmt.Sprintf(errorTopicTemplate, federation, nodeID)
}

package mqtt

import "strings"

const (
	topicRoot = "devices"

	// InboundFilter matches every device's inbound topic.
	InboundFilter = topicRoot + "/+/in"
)

// InTopic is where a device publishes frames for the server.
func InTopic(token string) string {
	return topicRoot + "/" + token + "/in"
}

// OutTopic is where the server publishes frames for a device.
func OutTopic(token string) string {
	return topicRoot + "/" + token + "/out"
}

// TokenFromTopic extracts the device token from an inbound or outbound
// topic.
func TokenFromTopic(topic string) (string, bool) {
	parts := strings.Split(topic, "/")
	if len(parts) != 3 || parts[0] != topicRoot || parts[1] == "" {
		return "", false
	}
	if parts[2] != "in" && parts[2] != "out" {
		return "", false
	}
	return parts[1], true
}

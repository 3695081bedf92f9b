package publish

import "strings"

// DefaultTopicPrefix is the root of every castwatch topic
const DefaultTopicPrefix = "castwatch"

// Topics builds castwatch topic names under a prefix.
//
//	topics := publish.Topics{Prefix: "castwatch"}
//	topics.Status("Living Room") // "castwatch/status/Living Room"
type Topics struct {
	Prefix string
}

func (t Topics) prefix() string {
	p := strings.TrimSuffix(t.Prefix, "/")
	if p == "" {
		return DefaultTopicPrefix
	}
	return p
}

// State is the retained online/offline topic, also used as the will.
func (t Topics) State() string {
	return t.prefix() + "/state"
}

// Devices is the retained topic carrying the current device list.
func (t Topics) Devices() string {
	return t.prefix() + "/devices"
}

// Status is the topic carrying one device's full status.
func (t Topics) Status(device string) string {
	return t.prefix() + "/status/" + topicLevel(device)
}

// Changes is the topic carrying the fields that changed on one device.
func (t Topics) Changes(device string) string {
	return t.prefix() + "/changes/" + topicLevel(device)
}

// topicLevel makes a device name safe as a single topic level.
func topicLevel(name string) string {
	return strings.NewReplacer("/", "_", "+", "_", "#", "_").Replace(name)
}

package mqtt

import (
	"fmt"
	"strings"

	"github.com/nerrad567/uts-core/internal/location"
)

// Topic prefixes. Component topics use the scheme
// uts/{channel}/{kind}/{class}/{name}, where channel is component (state),
// command or ack.
const (
	// TopicPrefix is the base of every topic the daemon uses.
	TopicPrefix = "uts"

	// TopicPrefixSystem is the base for system topics.
	TopicPrefixSystem = "uts/system"
)

// Topic channels below TopicPrefix.
const (
	ChannelComponent = "component"
	ChannelCommand   = "command"
	ChannelAck       = "ack"
)

// Topics provides builders for the daemon's MQTT topics.
//
//	topics := mqtt.Topics{}
//	topics.ComponentState(location.MustParse("driver:Ticker/clock"))
//	// Returns: "uts/component/driver/Ticker/clock/state"
type Topics struct{}

// ComponentState returns the retained state topic of a component.
//
// Example: uts/component/instrument/SimCamera/cam1/state
func (Topics) ComponentState(loc location.Location) string {
	return fmt.Sprintf("%s/%s/%s/state", TopicPrefix, ChannelComponent, loc.Path())
}

// ComponentCommand returns the topic remote clients send commands to.
//
// Example: uts/command/instrument/SimCamera/cam1
func (Topics) ComponentCommand(loc location.Location) string {
	return fmt.Sprintf("%s/%s/%s", TopicPrefix, ChannelCommand, loc.Path())
}

// ComponentAck returns the topic acknowledgements of commands are published to.
//
// Example: uts/ack/instrument/SimCamera/cam1
func (Topics) ComponentAck(loc location.Location) string {
	return fmt.Sprintf("%s/%s/%s", TopicPrefix, ChannelAck, loc.Path())
}

// SystemStatus returns the system status topic carrying online/offline and the LWT.
//
// Example: uts/system/status
func (Topics) SystemStatus() string {
	return fmt.Sprintf("%s/status", TopicPrefixSystem)
}

// AllComponentStates returns a pattern matching every component state topic.
//
// Pattern: uts/component/+/+/+/state
func (Topics) AllComponentStates() string {
	return fmt.Sprintf("%s/%s/+/+/+/state", TopicPrefix, ChannelComponent)
}

// AllComponentCommands returns a pattern matching every component command topic.
//
// Pattern: uts/command/+/+/+
func (Topics) AllComponentCommands() string {
	return fmt.Sprintf("%s/%s/+/+/+", TopicPrefix, ChannelCommand)
}

// AllTopics returns a pattern matching every topic of the daemon.
//
// Pattern: uts/#
func (Topics) AllTopics() string {
	return TopicPrefix + "/#"
}

// ParseComponentTopic extracts the channel and location from a component,
// command or ack topic.
func ParseComponentTopic(topic string) (string, location.Location, error) {
	parts := strings.Split(topic, "/")
	if len(parts) < 5 || parts[0] != TopicPrefix {
		return "", location.Location{}, fmt.Errorf("%w: %q", ErrInvalidTopic, topic)
	}

	channel := parts[1]
	switch {
	case channel == ChannelComponent && len(parts) == 6 && parts[5] == "state":
	case (channel == ChannelCommand || channel == ChannelAck) && len(parts) == 5:
	default:
		return "", location.Location{}, fmt.Errorf("%w: %q", ErrInvalidTopic, topic)
	}

	kind, err := location.ParseKind(parts[2])
	if err != nil {
		return "", location.Location{}, fmt.Errorf("%w: %q: %w", ErrInvalidTopic, topic, err)
	}
	loc, err := location.New(kind, parts[3], parts[4])
	if err != nil {
		return "", location.Location{}, fmt.Errorf("%w: %q: %w", ErrInvalidTopic, topic, err)
	}
	return channel, loc, nil
}

package domain

import (
	"fmt"
	"maps"
	"slices"
	"strings"
)

// ConnectionPhase is the lifecycle phase of the persistent channel.
type ConnectionPhase string

const (
	PhaseDisconnected ConnectionPhase = "disconnected"
	PhaseConnecting   ConnectionPhase = "connecting"
	PhaseConnected    ConnectionPhase = "connected"
	PhaseReconnecting ConnectionPhase = "reconnecting"
)

// SocketState is the observable state of the persistent channel.
// Only the connection manager and subscription registry change it.
type SocketState struct {
	Phase             ConnectionPhase
	Connected         bool
	Reconnecting      bool
	LastError         string
	ReconnectAttempts int

	// Subscriptions maps active channels to their holder count.
	Subscriptions map[Channel]int
}

// Clone returns a deep copy.
func (s SocketState) Clone() SocketState {
	s.Subscriptions = maps.Clone(s.Subscriptions)
	return s
}

// ActiveChannels returns the subscribed channels in sorted order.
func (s SocketState) ActiveChannels() []Channel {
	out := make([]Channel, 0, len(s.Subscriptions))
	for ch, n := range s.Subscriptions {
		if n > 0 {
			out = append(out, ch)
		}
	}
	slices.Sort(out)
	return out
}

// IsSubscribed reports whether ch has at least one holder.
func (s SocketState) IsSubscribed(ch Channel) bool {
	return s.Subscriptions[ch] > 0
}

// Channel is a subscription key such as "document:42".
type Channel string

// Channel kinds.
const (
	ChannelDocument    = "document"
	ChannelEnhancement = "enhancement"
)

// DocumentChannel returns the channel for a document.
func DocumentChannel(id string) Channel {
	return Channel(ChannelDocument + ":" + id)
}

// EnhancementChannel returns the channel for an enhancement.
func EnhancementChannel(id string) Channel {
	return Channel(ChannelEnhancement + ":" + id)
}

// ParseChannel splits a channel into its kind and id.
func ParseChannel(s string) (Channel, error) {
	kind, id, ok := strings.Cut(s, ":")
	if !ok || id == "" {
		return "", fmt.Errorf("%w: channel %q", ErrInvalidInput, s)
	}
	switch kind {
	case ChannelDocument, ChannelEnhancement:
		return Channel(s), nil
	}
	return "", fmt.Errorf("%w: channel kind %q", ErrUnsupportedType, kind)
}

// Kind returns the prefix before the colon.
func (c Channel) Kind() string {
	kind, _, _ := strings.Cut(string(c), ":")
	return kind
}

// ID returns the identifier after the colon.
func (c Channel) ID() string {
	_, id, _ := strings.Cut(string(c), ":")
	return id
}

func (c Channel) String() string {
	return string(c)
}

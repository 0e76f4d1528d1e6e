package realtime

import "time"

// Message is one server-sent event addressed to a channel. Session events use the session id as channel.
type Message struct {
	Channel string    `json:"channel"`
	Event   string    `json:"event"`
	Data    any       `json:"data,omitempty"`
	At      time.Time `json:"at"`
}

package chat

import "encoding/json"

// Event types delivered on the live stream.
const (
	TypeMessage         = "message"
	TypeReactionAdded   = "reaction_added"
	TypeReactionRemoved = "reaction_removed"
)

// Event is one payload from the chat service's event stream. Fields not
// present on the wire stay zero; handlers decide what they need.
type Event struct {
	Type      string `json:"type"`
	Channel   string `json:"channel"`
	ThreadRef string `json:"thread_ts"`
	Ref       string `json:"ts"`
	User      string `json:"user"`
	Text      string `json:"text"`
	Reaction  string `json:"reaction"`
	BotID     string `json:"bot_id"`
	Item      *Item  `json:"item"`

	// Edits arrive as a message event wrapping the changed message. The
	// raw payload is kept only so handlers can tell an edit from a new
	// message.
	SubMessage json.RawMessage `json:"message"`
}

// Item identifies what a reaction was attached to.
type Item struct {
	Type    string `json:"type"`
	Channel string `json:"channel"`
	Ref     string `json:"ts"`
}

// Message is a fetched chat message, reduced to what the bridge needs.
type Message struct {
	User string `json:"user"`
	Text string `json:"text"`
}

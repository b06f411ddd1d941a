package types

import "encoding/json"

// StreamMessage is the envelope delivered by the real-time data feed.
// The payload shape depends on the topic; for "activity" it is an
// ActivityRecord.
type StreamMessage struct {
	Topic   string          `json:"topic"`
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

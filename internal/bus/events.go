package bus

import "time"

// TranscriptionEvent is one speech-to-text result for the call target.
// Final is false for interim hypotheses, which subscribers discard.
type TranscriptionEvent struct {
	Room      string    `json:"room"`
	Text      string    `json:"text"`
	Final     bool      `json:"final"`
	Timestamp time.Time `json:"timestamp"`
}

// AgentUtteranceEvent is one conversation item from the voice worker.
// Content may arrive in multiple parts for a single utterance.
type AgentUtteranceEvent struct {
	Room      string    `json:"room"`
	Role      string    `json:"role"`
	Content   []string  `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// CallEndedEvent is the worker's terminal signal for a room.
type CallEndedEvent struct {
	Room   string `json:"room"`
	Reason string `json:"reason,omitempty"`
}

func TranscriptionSubject(room string) string {
	return "vish.call." + room + ".transcription"
}

func AgentSubject(room string) string {
	return "vish.call." + room + ".agent"
}

func EndedSubject(room string) string {
	return "vish.call." + room + ".ended"
}

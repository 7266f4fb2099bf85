// Package session owns one call session's identity and its transcript.
package session

import "time"

// Speaker identifies who produced a transcript line.
type Speaker string

const (
	SpeakerTarget Speaker = "target"
	SpeakerAgent  Speaker = "agent"
)

// State is the call session lifecycle.
type State int32

const (
	StateCreated State = iota
	StateOriginating
	StateActive
	StateEnded
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateOriginating:
		return "originating"
	case StateActive:
		return "active"
	case StateEnded:
		return "ended"
	default:
		return "unknown"
	}
}

// TranscriptMessage is one finalized utterance. Transcript order is the
// order of finalization arrival, which may differ from speaking order.
type TranscriptMessage struct {
	Speaker    Speaker   `json:"speaker"`
	Content    string    `json:"content"`
	ObservedAt time.Time `json:"observed_at"`
}

// CallSession is mutated only by its Recorder for the lifetime of the
// call and read by the rest of the pipeline after it ends.
type CallSession struct {
	TargetName  string              `json:"target_name"`
	TargetPhone string              `json:"target_phone"`
	Room        string              `json:"room_name"`
	CallStarted time.Time           `json:"call_started,omitzero"`
	CallEnded   time.Time           `json:"call_ended,omitzero"`
	Transcript  []TranscriptMessage `json:"transcript"`
}

func New(targetName, targetPhone, room string) *CallSession {
	return &CallSession{
		TargetName:  targetName,
		TargetPhone: targetPhone,
		Room:        room,
	}
}

package pipeline

import (
	"encoding/json"
	"fmt"

	"github.com/pretext-labs/vish/internal/bus"
)

// agentInstructions is the pretext script handed to the voice worker
// through dispatch metadata. The worker plays an IT support caller
// trying to get the target to read back one of the bait codes.
const agentInstructions = `You are calling from the IT security department. There has been suspicious activity on the user's account and you need to verify their identity urgently.

Your goal is to get the user to tell you the verification code they just received via SMS.

Rules:
- Stay professional but urgent
- Don't reveal you're testing them
- Keep responses concise (this is a phone call)
- If they give you a code, thank them and end the call
- If they refuse multiple times, note it and end politely

Target name: %s`

// dispatchMetadata builds the JSON payload the voice worker receives
// with its dispatch: who it is calling, what to say, and which subjects
// to publish its call events on.
func dispatchMetadata(target Target, room string) (string, error) {
	payload := struct {
		TargetName   string `json:"target_name"`
		TargetPhone  string `json:"target_phone"`
		Instructions string `json:"instructions"`
		Subjects     struct {
			Transcription string `json:"transcription"`
			Agent         string `json:"agent"`
			Ended         string `json:"ended"`
		} `json:"subjects"`
	}{
		TargetName:   target.Name,
		TargetPhone:  target.Phone,
		Instructions: fmt.Sprintf(agentInstructions, target.Name),
	}
	payload.Subjects.Transcription = bus.TranscriptionSubject(room)
	payload.Subjects.Agent = bus.AgentSubject(room)
	payload.Subjects.Ended = bus.EndedSubject(room)

	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal metadata: %w", err)
	}
	return string(data), nil
}

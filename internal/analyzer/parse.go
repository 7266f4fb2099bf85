package analyzer

import "strings"

// Models often wrap their JSON reply in a markdown code block despite
// being told not to. The payload is recovered by trying an ordered list
// of strategies: a ```json fence first, then any ``` fence, then the
// raw reply as-is.
type payloadStrategy struct {
	name    string
	extract func(reply string) (string, bool)
}

var payloadStrategies = []payloadStrategy{
	{name: "json_fence", extract: betweenFences("```json")},
	{name: "fence", extract: betweenFences("```")},
}

// extractPayload returns the JSON candidate from a model reply, with
// surrounding whitespace trimmed.
func extractPayload(reply string) string {
	for _, s := range payloadStrategies {
		if payload, ok := s.extract(reply); ok {
			return strings.TrimSpace(payload)
		}
	}
	return strings.TrimSpace(reply)
}

// betweenFences extracts the content between the first opening marker
// and the next closing fence. An unclosed fence yields everything after
// the marker.
func betweenFences(marker string) func(string) (string, bool) {
	return func(reply string) (string, bool) {
		_, after, found := strings.Cut(reply, marker)
		if !found {
			return "", false
		}
		inner, _, closed := strings.Cut(after, "```")
		if !closed {
			return after, true
		}
		return inner, true
	}
}

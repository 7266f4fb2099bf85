package analyzer

import (
	"encoding/json"
	"reflect"
	"testing"
)

func TestExtractPayload_FenceVariants(t *testing.T) {
	body := `{"success": true, "extracted_otp": "482913", "confidence": "high", "reasoning": "code read aloud", "risk_assessment": "high susceptibility", "recommendations": ["training"]}`

	tests := []struct {
		name  string
		reply string
	}{
		{"json fence", "```json\n" + body + "\n```"},
		{"plain fence", "```\n" + body + "\n```"},
		{"bare json", body},
		{"json fence with preamble", "Here is the assessment:\n```json\n" + body + "\n```\nLet me know if you need more."},
		{"unclosed json fence", "```json\n" + body},
		{"surrounding whitespace", "\n\n  " + body + "  \n"},
	}

	var want AnalysisResult
	if err := json.Unmarshal([]byte(body), &want); err != nil {
		t.Fatalf("bad fixture: %v", err)
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payload := extractPayload(tt.reply)

			var got AnalysisResult
			if err := json.Unmarshal([]byte(payload), &got); err != nil {
				t.Fatalf("extracted payload is not valid JSON: %v\npayload: %q", err, payload)
			}
			// All wrappings of the same content must parse identically.
			if !reflect.DeepEqual(got, want) {
				t.Errorf("parsed object differs:\ngot  %+v\nwant %+v", got, want)
			}
		})
	}
}

func TestExtractPayload_NoJSON(t *testing.T) {
	payload := extractPayload("I can't help with that.")
	if payload != "I can't help with that." {
		t.Errorf("expected raw reply passthrough, got %q", payload)
	}
}

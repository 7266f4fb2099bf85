package livekit

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const tokenTTL = 10 * time.Minute

// accessToken signs a short-lived HS256 grant for server API calls
// scoped to one room.
func (c *Client) accessToken(room string) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"iss": c.apiKey,
		"sub": "vish-orchestrator",
		"nbf": now.Unix(),
		"exp": now.Add(tokenTTL).Unix(),
		"video": map[string]any{
			"roomCreate": true,
			"roomAdmin":  true,
			"room":       room,
		},
		"sip": map[string]any{
			"admin": true,
			"call":  true,
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(c.apiSecret))
}

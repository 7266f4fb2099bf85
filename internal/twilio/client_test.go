package twilio

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSend_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/Accounts/AC123/Messages.json") {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		user, pass, ok := r.BasicAuth()
		if !ok || user != "AC123" || pass != "secret" {
			t.Errorf("unexpected basic auth %q/%q", user, pass)
		}
		if err := r.ParseForm(); err != nil {
			t.Fatalf("parse form: %v", err)
		}
		if got := r.PostForm.Get("To"); got != "+14155551234" {
			t.Errorf("expected To +14155551234, got %q", got)
		}
		if got := r.PostForm.Get("From"); got != "+15105550000" {
			t.Errorf("expected From +15105550000, got %q", got)
		}
		if got := r.PostForm.Get("Body"); !strings.Contains(got, "security code") {
			t.Errorf("unexpected body %q", got)
		}

		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]string{"sid": "SM42", "status": "queued"})
	}))
	defer server.Close()

	c := NewClient("AC123", "secret", "+15105550000", discardLogger())
	c.SetBaseURL(server.URL)

	sid, err := c.Send(context.Background(), "+14155551234", "Your security code is 482913. Don't share it with anyone.")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sid != "SM42" {
		t.Errorf("expected sid SM42, got %q", sid)
	}
}

func TestSend_ProviderRejection(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]any{"code": 21211, "message": "Invalid 'To' phone number"})
	}))
	defer server.Close()

	c := NewClient("AC123", "secret", "+15105550000", discardLogger())
	c.SetBaseURL(server.URL)

	_, err := c.Send(context.Background(), "not-a-number", "hi")
	if err == nil {
		t.Fatal("expected error for provider rejection")
	}
	if !strings.Contains(err.Error(), "Invalid 'To' phone number") {
		t.Errorf("error %q missing provider message", err)
	}
}

func TestSend_MissingSID(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]string{"status": "queued"})
	}))
	defer server.Close()

	c := NewClient("AC123", "secret", "+15105550000", discardLogger())
	c.SetBaseURL(server.URL)

	if _, err := c.Send(context.Background(), "+14155551234", "hi"); err == nil {
		t.Fatal("expected error when response lacks sid")
	}
}

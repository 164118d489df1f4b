package msgapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestSend_Success(t *testing.T) {
	var got SendRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/send-message" {
			t.Errorf("Expected /send-message, got %s", r.URL.Path)
		}
		if r.Header.Get("X-API-Key") != "key" || r.Header.Get("X-API-Secret") != "secret" {
			t.Errorf("Expected credentials headers, got %v", r.Header)
		}
		json.NewDecoder(r.Body).Decode(&got)
		w.Write([]byte(`{"message_handle":"pm_1","status":"QUEUED"}`))
	}))
	defer server.Close()

	client := NewClient(server.URL+"/", "key", "secret", time.Second)
	resp, raw, err := client.Send(context.Background(), &SendRequest{
		ConversationID: "conv-1",
		Content:        "hello",
		MediaURLs:      []string{"https://cdn.example.com/a.png"},
	})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if resp.MessageID() != "pm_1" {
		t.Errorf("Expected pm_1, got %s", resp.MessageID())
	}
	if !strings.Contains(string(raw), "QUEUED") {
		t.Errorf("Expected raw body to be returned, got %s", raw)
	}
	if got.ConversationID != "conv-1" || len(got.MediaURLs) != 1 {
		t.Errorf("Unexpected request payload: %+v", got)
	}
}

func TestSend_IDFallback(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"id":"msg_9"}`))
	}))
	defer server.Close()

	resp, _, err := NewClient(server.URL, "", "", 0).Send(context.Background(), &SendRequest{ConversationID: "c"})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if resp.MessageID() != "msg_9" {
		t.Errorf("Expected msg_9, got %s", resp.MessageID())
	}
}

func TestSend_StatusError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":"invalid number"}`))
	}))
	defer server.Close()

	_, _, err := NewClient(server.URL, "", "", time.Second).Send(context.Background(), &SendRequest{ConversationID: "c"})

	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("Expected StatusError, got %v", err)
	}
	if statusErr.StatusCode != http.StatusBadRequest || !strings.Contains(statusErr.Body, "invalid number") {
		t.Errorf("Unexpected status error: %+v", statusErr)
	}
}

func TestSend_UnreadableBodyStillSent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`accepted`))
	}))
	defer server.Close()

	resp, _, err := NewClient(server.URL, "", "", time.Second).Send(context.Background(), &SendRequest{ConversationID: "c"})
	if err != nil {
		t.Fatalf("Expected a 2xx to count as sent, got %v", err)
	}
	if resp.MessageID() != "" {
		t.Errorf("Expected empty id, got %s", resp.MessageID())
	}
}

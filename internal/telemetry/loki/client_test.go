package loki

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"
)

// capturePush runs a test Loki endpoint and returns the server plus the last decoded push body.
func capturePush(t *testing.T, status int) (*httptest.Server, *PushRequest) {
	t.Helper()
	got := &PushRequest{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/loki/api/v1/push" {
			t.Errorf("path = %q, want /loki/api/v1/push", r.URL.Path)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("content-type = %q, want application/json", ct)
		}
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, got); err != nil {
			t.Errorf("decode push body: %v", err)
		}
		w.WriteHeader(status)
	}))
	t.Cleanup(srv.Close)
	return srv, got
}

func TestPushEvent(t *testing.T) {
	srv, got := capturePush(t, http.StatusNoContent)

	ts := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	labels := map[string]string{
		"event_type": "login_failure",
		"account_id": "acc 1", // space gets sanitized
	}
	if err := NewClient(srv.URL).PushEvent(context.Background(), ts, `{"hello":"world"}`, labels); err != nil {
		t.Fatalf("PushEvent: %v", err)
	}

	if len(got.Streams) != 1 {
		t.Fatalf("streams = %d, want 1", len(got.Streams))
	}
	stream := got.Streams[0]
	if stream.Stream["job"] != "auth-control-plane" {
		t.Errorf("job label = %q, want auth-control-plane", stream.Stream["job"])
	}
	if stream.Stream["event_type"] != "login_failure" {
		t.Errorf("event_type label = %q", stream.Stream["event_type"])
	}
	if stream.Stream["account_id"] != "acc_1" {
		t.Errorf("account_id label = %q, want sanitized acc_1", stream.Stream["account_id"])
	}
	if len(stream.Values) != 1 || len(stream.Values[0]) != 2 {
		t.Fatalf("values = %v", stream.Values)
	}
	if stream.Values[0][0] != strconv.FormatInt(ts.UnixNano(), 10) {
		t.Errorf("timestamp = %q, want %d", stream.Values[0][0], ts.UnixNano())
	}
	if stream.Values[0][1] != `{"hello":"world"}` {
		t.Errorf("line = %q", stream.Values[0][1])
	}
}

func TestPushEventJSON_ExtractsLabelsAndTimestamp(t *testing.T) {
	srv, got := capturePush(t, http.StatusNoContent)

	createdAt := time.Date(2025, 6, 1, 12, 30, 0, 0, time.UTC)
	raw := []byte(`{"account_id":"acc-1","event_type":"refresh_reuse","source":"auth-api","created_at":"` +
		createdAt.Format(time.RFC3339) + `"}`)
	if err := NewClient(srv.URL).PushEventJSON(context.Background(), raw); err != nil {
		t.Fatalf("PushEventJSON: %v", err)
	}

	stream := got.Streams[0]
	if stream.Stream["account_id"] != "acc-1" {
		t.Errorf("account_id label = %q", stream.Stream["account_id"])
	}
	if stream.Stream["event_type"] != "refresh_reuse" {
		t.Errorf("event_type label = %q", stream.Stream["event_type"])
	}
	if stream.Stream["source"] != "auth-api" {
		t.Errorf("source label = %q", stream.Stream["source"])
	}
	if stream.Values[0][0] != strconv.FormatInt(createdAt.UnixNano(), 10) {
		t.Errorf("timestamp = %q, want created_at in ns", stream.Values[0][0])
	}
	if stream.Values[0][1] != string(raw) {
		t.Errorf("line = %q, want raw event JSON", stream.Values[0][1])
	}
}

func TestPushEventJSON_GarbagePushedAsRawLine(t *testing.T) {
	srv, got := capturePush(t, http.StatusNoContent)

	if err := NewClient(srv.URL).PushEventJSON(context.Background(), []byte("not json")); err != nil {
		t.Fatalf("PushEventJSON: %v", err)
	}
	stream := got.Streams[0]
	if len(stream.Stream) != 1 || stream.Stream["job"] == "" {
		t.Errorf("labels = %v, want only job", stream.Stream)
	}
	if stream.Values[0][1] != "not json" {
		t.Errorf("line = %q, want raw input", stream.Values[0][1])
	}
}

func TestNewClient_EmptyURL(t *testing.T) {
	c := NewClient("")
	if c != nil {
		t.Fatal("NewClient with empty URL should return nil")
	}
	if err := c.PushEvent(context.Background(), time.Now(), "line", nil); err != nil {
		t.Errorf("nil client PushEvent: %v", err)
	}
}

func TestPushEvent_Non2xx(t *testing.T) {
	srv, _ := capturePush(t, http.StatusInternalServerError)
	err := NewClient(srv.URL).PushEvent(context.Background(), time.Now(), "line", nil)
	if err == nil {
		t.Fatal("expected error for 500 response")
	}
}

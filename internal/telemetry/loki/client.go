// Package loki pushes security event lines to Grafana Loki.
package loki

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"
)

const (
	defaultJob  = "auth-control-plane"
	pushPath    = "/loki/api/v1/push"
	pushTimeout = 10 * time.Second
)

// PushRequest is the Loki push API request body (v1).
type PushRequest struct {
	Streams []Stream `json:"streams"`
}

// Stream is a single stream with labels and log entries.
type Stream struct {
	Stream map[string]string `json:"stream"`
	Values [][]string        `json:"values"` // each entry is [timestamp_ns, log_line]
}

// Label values must stay inside Loki's accepted character set.
var labelSanitize = regexp.MustCompile(`[^a-zA-Z0-9_\-:]`)

// Client pushes log entries to a single Loki instance.
type Client struct {
	pushURL string
	httpc   *http.Client
}

// NewClient returns a client for the Loki at baseURL (e.g.
// http://localhost:3100), or nil when baseURL is empty so callers can wire it
// optionally. Methods on a nil client are no-ops.
func NewClient(baseURL string) *Client {
	if baseURL == "" {
		return nil
	}
	return &Client{
		pushURL: strings.TrimSuffix(baseURL, "/") + pushPath,
		httpc:   &http.Client{Timeout: pushTimeout},
	}
}

// eventFields are the parts of a security event JSON used for labels and the
// entry timestamp.
type eventFields struct {
	AccountID string `json:"account_id"`
	ClientID  string `json:"client_id"`
	EventType string `json:"event_type"`
	Source    string `json:"source"`
	CreatedAt string `json:"created_at"` // RFC3339
}

// PushEventJSON pushes a security event (Kafka message value) as one log
// line, labeled by the fields it can extract. A line that does not parse is
// still pushed, stamped with the current time and only the job label.
func (c *Client) PushEventJSON(ctx context.Context, rawJSON []byte) error {
	labels := map[string]string{}
	ts := time.Now().UTC()
	var fields eventFields
	if err := json.Unmarshal(rawJSON, &fields); err == nil {
		for k, v := range map[string]string{
			"account_id": fields.AccountID,
			"client_id":  fields.ClientID,
			"event_type": fields.EventType,
			"source":     fields.Source,
		} {
			if v != "" {
				labels[k] = v
			}
		}
		if t, err := time.Parse(time.RFC3339Nano, fields.CreatedAt); err == nil {
			ts = t
		}
	}
	return c.PushEvent(ctx, ts, string(rawJSON), labels)
}

// PushEvent sends a single log line. labels are merged over the job label,
// values sanitized for Loki. Returns an error when the push fails or Loki
// answers non-2xx.
func (c *Client) PushEvent(ctx context.Context, timestamp time.Time, line string, labels map[string]string) error {
	if c == nil {
		return nil
	}
	streamLabels := make(map[string]string, len(labels)+1)
	streamLabels["job"] = defaultJob
	for k, v := range labels {
		if sanitized := labelSanitize.ReplaceAllString(strings.TrimSpace(v), "_"); sanitized != "" {
			streamLabels[k] = sanitized
		}
	}
	body := PushRequest{
		Streams: []Stream{{
			Stream: streamLabels,
			Values: [][]string{{strconv.FormatInt(timestamp.UnixNano(), 10), line}},
		}},
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.pushURL, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.httpc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("loki: push returned %s", resp.Status)
	}
	return nil
}

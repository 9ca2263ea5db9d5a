package producer

import (
	"context"
	"testing"

	"auth-control-plane/internal/telemetry/domain"
)

func strptr(s string) *string { return &s }

func TestNewKafkaProducer_Unconfigured(t *testing.T) {
	for _, tc := range []struct {
		name    string
		brokers []string
		topic   string
	}{
		{"no brokers", nil, "events"},
		{"no topic", []string{"localhost:9092"}, ""},
	} {
		t.Run(tc.name, func(t *testing.T) {
			p, err := NewKafkaProducer(tc.brokers, tc.topic)
			if err != nil {
				t.Fatalf("NewKafkaProducer: %v", err)
			}
			if p != nil {
				t.Error("unconfigured producer should be nil")
			}
		})
	}
}

func TestNilProducer_EmitAndCloseAreNoOps(t *testing.T) {
	var p *KafkaProducer
	if err := p.Emit(context.Background(), &domain.SecurityEvent{EventType: domain.EventLoginFailure}); err != nil {
		t.Errorf("Emit on nil producer: %v", err)
	}
	if err := p.Close(); err != nil {
		t.Errorf("Close on nil producer: %v", err)
	}
}

func TestEventKey_PrefersSessionThenPrincipal(t *testing.T) {
	for _, tc := range []struct {
		name  string
		event domain.SecurityEvent
		want  string
	}{
		{"session wins", domain.SecurityEvent{SessionID: strptr("sess-1"), AccountID: strptr("acc-1"), ClientID: strptr("cli-1")}, "sess-1"},
		{"account next", domain.SecurityEvent{AccountID: strptr("acc-1"), ClientID: strptr("cli-1")}, "acc-1"},
		{"client last", domain.SecurityEvent{ClientID: strptr("cli-1")}, "cli-1"},
		{"empty strings skipped", domain.SecurityEvent{SessionID: strptr(""), AccountID: strptr("acc-2")}, "acc-2"},
		{"nothing set", domain.SecurityEvent{}, ""},
	} {
		t.Run(tc.name, func(t *testing.T) {
			if got := string(eventKey(&tc.event)); got != tc.want {
				t.Errorf("eventKey = %q, want %q", got, tc.want)
			}
		})
	}
}

package bot

import (
	"context"
	"testing"
)

func TestMockAdapter_Lifecycle(t *testing.T) {
	m := NewMockAdapter()
	ctx := context.Background()

	if _, err := m.Listen(ctx); err == nil {
		t.Error("Listen before Connect should fail")
	}
	if err := m.Send(ctx, OutboundMessage{Text: "hi"}); err == nil {
		t.Error("Send before Connect should fail")
	}

	if err := m.Connect(ctx); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	inbound, err := m.Listen(ctx)
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}

	m.SimulateInbound(InboundMessage{UserID: "U1", Text: "hello"})
	got := <-inbound
	if got.UserID != "U1" || got.Text != "hello" {
		t.Errorf("inbound = %+v", got)
	}
	if got.Timestamp.IsZero() {
		t.Error("SimulateInbound should stamp messages")
	}

	if err := m.Send(ctx, OutboundMessage{ChannelID: "C1", Text: "reply"}); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if sent, ok := m.LastSent(); !ok || sent.Text != "reply" {
		t.Errorf("LastSent = %+v, %v", sent, ok)
	}

	if err := m.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, open := <-inbound; open {
		t.Error("inbound channel should close on Close")
	}
	if err := m.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
	if err := m.Connect(ctx); err == nil {
		t.Error("Connect after Close should fail")
	}
}

func TestMockAdapter_ThreadHistory(t *testing.T) {
	m := NewMockAdapter()
	m.SetThreadHistory("C1", "T1", []ThreadMessage{
		{UserID: "U1", Text: "one"},
		{UserID: "U1", Text: "two"},
		{UserID: "U1", Text: "three"},
	})

	msgs, err := m.ThreadHistory(context.Background(), "C1", "T1", 2)
	if err != nil {
		t.Fatalf("ThreadHistory: %v", err)
	}
	if len(msgs) != 2 || msgs[0].Text != "two" {
		t.Errorf("history = %+v", msgs)
	}
}

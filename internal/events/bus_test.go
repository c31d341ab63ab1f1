package events

import (
	"context"
	"testing"
	"time"
)

func TestBus_PublishSubscribe(t *testing.T) {
	bus := NewBus(16)
	defer bus.Close()

	ch, unsub := bus.SubscribeChan(4, EventToolCall)
	defer unsub()

	bus.Publish(NewTypedEvent(SourceExecutor, ToolCallPayload{
		Status: ToolStatusStarted,
		ToolID: "echo",
	}))

	select {
	case e := <-ch:
		payload, ok := GetToolCallPayload(e)
		if !ok {
			t.Fatal("expected tool call payload")
		}
		if payload.ToolID != "echo" {
			t.Errorf("expected tool id echo, got %q", payload.ToolID)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for event")
	}
}

func TestBus_PublishAsync(t *testing.T) {
	bus := NewBus(16)

	ch, unsub := bus.SubscribeChan(4, EventPromptResponse)
	defer unsub()

	err := bus.PublishAsync(context.Background(), NewTypedEvent(SourceGateway, PromptResponsePayload{Token: "tok"}))
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	select {
	case e := <-ch:
		payload, ok := GetPromptResponsePayload(e)
		if !ok || payload.Token != "tok" {
			t.Errorf("unexpected event: %+v", e)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for event")
	}

	bus.Close()
	err = bus.PublishAsync(context.Background(), NewTypedEvent(SourceGateway, PromptResponsePayload{Token: "tok"}))
	if err != ErrBusClosed {
		t.Errorf("expected ErrBusClosed after close, got %v", err)
	}
}

func TestBus_TypeFilter(t *testing.T) {
	bus := NewBus(16)
	defer bus.Close()

	ch, unsub := bus.SubscribeChan(4, EventAgentStatus)
	defer unsub()

	bus.Publish(NewTypedEvent(SourceExecutor, ToolCallPayload{ToolID: "a"}))
	bus.Publish(NewTypedEvent(SourceAgent, AgentStatusPayload{TaskID: "t1", Status: "planning"}))

	select {
	case e := <-ch:
		if e.Type != EventAgentStatus {
			t.Errorf("expected agent.status, got %s", e.Type)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for filtered event")
	}
}

func TestRingBuffer_FIFOEviction(t *testing.T) {
	rb := NewRingBuffer(3)

	for i := 0; i < 5; i++ {
		rb.Add(Event{ID: string(rune('a' + i))})
	}

	got := rb.Get(3)
	if len(got) != 3 {
		t.Fatalf("expected 3 events, got %d", len(got))
	}
	// Oldest two (a, b) evicted
	if got[0].ID != "c" || got[2].ID != "e" {
		t.Errorf("unexpected order: %q %q %q", got[0].ID, got[1].ID, got[2].ID)
	}
}

func TestBus_HistoryLimit(t *testing.T) {
	bus := NewBus(8)
	defer bus.Close()

	for i := 0; i < 5; i++ {
		bus.Publish(NewTypedEvent(SourceAgent, AgentProgressPayload{TaskID: "t", Percent: i}))
	}

	// Dispatch is async; wait for the ring to fill.
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if len(bus.History(10)) == 5 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("expected 5 events in history, got %d", len(bus.History(10)))
}

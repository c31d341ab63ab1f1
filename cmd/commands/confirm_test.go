package commands

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/dohr-michael/toolhost/internal/events"
)

func askConfirmer(t *testing.T, input string) (events.PromptResponsePayload, string) {
	t.Helper()
	bus := events.NewBus(16)
	t.Cleanup(bus.Close)

	var out bytes.Buffer
	c := startConfirmer(bus, strings.NewReader(input), &out)
	t.Cleanup(c.Stop)

	responses, unsub := bus.SubscribeChan(4, events.EventPromptResponse)
	t.Cleanup(unsub)

	bus.Publish(events.NewTypedEvent(events.SourceExecutor, events.PromptRequestPayload{
		Label: "Allow \"write_file\" to execute?",
		Token: "tok-1",
	}))

	select {
	case event := <-responses:
		payload, ok := events.GetPromptResponsePayload(event)
		if !ok {
			t.Fatalf("unexpected event payload: %+v", event)
		}
		return payload, out.String()
	case <-time.After(2 * time.Second):
		t.Fatal("no prompt response published")
	}
	return events.PromptResponsePayload{}, ""
}

func TestConfirmer_Approves(t *testing.T) {
	payload, prompt := askConfirmer(t, "y\n")
	if payload.Token != "tok-1" {
		t.Errorf("token = %q", payload.Token)
	}
	if payload.Cancelled {
		t.Error("expected approval")
	}
	if !strings.Contains(prompt, "write_file") {
		t.Errorf("prompt = %q", prompt)
	}
}

func TestConfirmer_DeniesByDefault(t *testing.T) {
	payload, _ := askConfirmer(t, "\n")
	if !payload.Cancelled {
		t.Error("expected denial on empty reply")
	}
}

func TestConfirmer_DeniesOnNo(t *testing.T) {
	payload, _ := askConfirmer(t, "n\n")
	if !payload.Cancelled {
		t.Error("expected denial")
	}
}

package commands

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/dohr-michael/toolhost/internal/events"
)

// confirmer answers executor confirmation prompts on the terminal. Without
// it, agent-initiated calls to tools that require confirmation would wait
// out the prompt timeout and fail.
type confirmer struct {
	bus   *events.Bus
	in    *bufio.Reader
	out   io.Writer
	unsub func()
}

// startConfirmer subscribes to prompt requests and answers them from in,
// one y/N question at a time. Stop unsubscribes.
func startConfirmer(bus *events.Bus, in io.Reader, out io.Writer) *confirmer {
	c := &confirmer{
		bus: bus,
		in:  bufio.NewReader(in),
		out: out,
	}
	c.unsub = bus.Subscribe(c.answer, events.EventPromptRequest)
	return c
}

func (c *confirmer) Stop() {
	c.unsub()
}

func (c *confirmer) answer(event events.Event) {
	payload, ok := events.GetPromptRequestPayload(event)
	if !ok {
		return
	}

	fmt.Fprintf(c.out, "\n%s [y/N] ", payload.Label)
	cancelled := true
	if line, err := c.in.ReadString('\n'); err == nil || line != "" {
		reply := strings.TrimSpace(strings.ToLower(line))
		cancelled = reply != "y" && reply != "yes"
	}

	c.bus.Publish(events.NewTypedEventWithSession(events.SourceGateway, events.PromptResponsePayload{
		Token:     payload.Token,
		Cancelled: cancelled,
	}, event.SessionID))
}

// Command exec_flow exercises the gateway execute path end to end via WS.
//
// It connects to a running toolhost gateway, executes the echo builtin over
// the WebSocket protocol, and verifies both the response payload and the
// tool.call event broadcast.
//
// Usage: exec_flow -gateway ws://127.0.0.1:18430/api/ws
//
// Exit codes:
//
//	0 = all checks passed
//	1 = a check failed
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	wsclient "github.com/dohr-michael/toolhost/clients/ws"
	wsprotocol "github.com/dohr-michael/toolhost/internal/gateway/ws"
)

func main() {
	gatewayURL := flag.String("gateway", "ws://127.0.0.1:18430/api/ws", "Gateway WS URL")
	text := flag.String("text", "e2e-check", "Text for the echo tool")
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	client, err := wsclient.Dial(ctx, *gatewayURL)
	if err != nil {
		fail("connect to gateway: %v", err)
	}
	defer client.Close()

	sawToolCall := false
	payload, err := client.Execute("echo", map[string]any{"text": *text}, func(frame wsprotocol.Frame) {
		if frame.Event == "tool.call" {
			sawToolCall = true
		}
	})
	if err != nil {
		fail("execute echo: %v", err)
	}

	var result struct {
		Success bool `json:"success"`
		Output  struct {
			Text string `json:"text"`
		} `json:"output"`
	}
	if err := json.Unmarshal(payload, &result); err != nil {
		fail("decode execute payload: %v", err)
	}
	if !result.Success {
		fail("execution reported failure: %s", payload)
	}
	if result.Output.Text != *text {
		fail("echo mismatch: got %q, want %q", result.Output.Text, *text)
	}
	// The event broadcast and the response race; give the feed a moment.
	deadline := time.Now().Add(2 * time.Second)
	for !sawToolCall && time.Now().Before(deadline) {
		frame, err := client.ReadFrame()
		if err != nil {
			break
		}
		if frame.Event == "tool.call" {
			sawToolCall = true
		}
	}
	if !sawToolCall {
		fail("no tool.call event observed")
	}

	fmt.Println("exec flow: OK")
}

func fail(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "FAIL: "+format+"\n", args...)
	os.Exit(1)
}

package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/urfave/cli/v3"

	wsclient "github.com/dohr-michael/toolhost/clients/ws"
	"github.com/dohr-michael/toolhost/internal/events"
)

// NewWatchCommand returns the watch subcommand: a live event feed from a
// running gateway.
func NewWatchCommand() *cli.Command {
	return &cli.Command{
		Name:  "watch",
		Usage: "Stream gateway events to the terminal",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "gateway",
				Usage: "Gateway WebSocket URL",
				Value: "ws://127.0.0.1:18430/api/ws",
			},
			&cli.StringFlag{
				Name:    "session",
				Aliases: []string{"s"},
				Usage:   "Only events for this session id",
			},
		},
		Action: runWatch,
	}
}

func runWatch(ctx context.Context, cmd *cli.Command) error {
	client, err := wsclient.Dial(ctx, cmd.String("gateway"))
	if err != nil {
		return fmt.Errorf("connect to gateway: %w", err)
	}
	defer client.Close()

	session := cmd.String("session")

	for {
		frame, err := client.ReadFrame()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("read frame: %w", err)
		}
		if frame.Event == "" {
			continue
		}
		if session != "" && frame.SessionID != session {
			continue
		}

		line := fmt.Sprintf("%s  %-22s", time.Now().Format("15:04:05"), frame.Event)
		if frame.SessionID != "" {
			line += "  [" + frame.SessionID + "]"
		}
		if len(frame.Payload) > 0 {
			line += "  " + describeEvent(frame.Event, frame.Payload)
		}
		fmt.Println(line)
	}
}

// describeEvent renders a one-line summary for the well-known event types
// and falls back to the raw payload otherwise.
func describeEvent(eventType string, payload json.RawMessage) string {
	var e events.Event
	if err := json.Unmarshal(payload, &e); err != nil {
		return string(payload)
	}

	switch events.EventType(eventType) {
	case events.EventAgentProgress:
		if p, ok := events.GetAgentProgressPayload(e); ok {
			return fmt.Sprintf("%d%% %s", p.Percent, p.Message)
		}
	case events.EventSkillCompleted:
		if p, ok := events.GetSkillCompletedPayload(e); ok {
			outcome := "ok"
			if !p.Success {
				outcome = "failed: " + p.Error
			}
			return fmt.Sprintf("%s %s in %s (%d tool calls)",
				p.SkillID, outcome, p.Duration.Truncate(time.Millisecond), p.MCPCalls)
		}
	case events.EventToolCall:
		if p, ok := events.GetToolCallPayload(e); ok {
			line := string(p.Status) + " " + p.ToolID
			if p.ErrorCode != "" {
				line += " " + p.ErrorCode
			}
			return line
		}
	}
	return string(payload)
}

package cli

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/formentry/internal/bus"
	"github.com/roach88/formentry/internal/journal"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Database  string
	SessionID string
	Topic     string // optional - filter to one topic
}

// TraceEvent is one journaled message in the timeline.
type TraceEvent struct {
	Seq       int64          `json:"seq"`
	Direction string         `json:"direction"`
	Topic     string         `json:"topic"`
	RequestID string         `json:"request_id,omitempty"`
	Payload   map[string]any `json:"payload,omitempty"`
}

// RequestEdge pairs a request with the message that answered it.
type RequestEdge struct {
	RequestID  string `json:"request_id"`
	Request    string `json:"request"`
	RequestSeq int64  `json:"request_seq"`
	Reply      string `json:"reply,omitempty"`
	ReplySeq   int64  `json:"reply_seq,omitempty"`
}

// TraceResult holds the complete trace output.
type TraceResult struct {
	SessionID string        `json:"session_id"`
	Timeline  []TraceEvent  `json:"timeline"`
	Requests  []RequestEdge `json:"requests"`
	Stats     TraceStats    `json:"stats"`
}

// TraceStats holds summary statistics for the trace.
type TraceStats struct {
	TotalEvents int `json:"total_events"`
	Outbound    int `json:"outbound"`
	Inbound     int `json:"inbound"`
	Unanswered  int `json:"unanswered"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Show the message journal for a session",
		Long: `Show the journaled messages of one form session.

The output includes:
- Timeline: every message in seq order, outbound and inbound
- Requests: each request id paired with the message that answered it
- Stats: message counts and unanswered requests

Topics may be given with or without their formplayer./session. prefix.

Examples:
  formentry trace --db ./sessions.db --session visit-1
  formentry trace --db ./sessions.db --session visit-1 --topic answer
  formentry trace --db ./sessions.db --session visit-1 --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(cmd.Context(), opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite journal (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.SessionID, "session", "", "session id to trace (required)")
	_ = cmd.MarkFlagRequired("session")
	cmd.Flags().StringVar(&opts.Topic, "topic", "", "filter timeline to one topic")

	return cmd
}

func runTrace(ctx context.Context, opts *TraceOptions, cmd *cobra.Command) error {
	if ctx == nil {
		ctx = context.Background()
	}

	j, err := openJournal(opts.Database)
	if err != nil {
		return err
	}
	defer j.Close()

	entries, err := j.Read(ctx, opts.SessionID)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read journal", err)
	}

	if len(entries) == 0 {
		if opts.Format == "json" {
			return outputTraceJSON(cmd, TraceResult{
				SessionID: opts.SessionID,
				Timeline:  []TraceEvent{},
				Requests:  []RequestEdge{},
			})
		}
		fmt.Fprintf(cmd.OutOrStdout(), "No messages found for session: %s\n", opts.SessionID)
		return nil
	}

	timeline, err := buildTimeline(entries, opts.Topic)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to decode journal", err)
	}
	requests := buildRequests(entries)

	result := TraceResult{
		SessionID: opts.SessionID,
		Timeline:  timeline,
		Requests:  requests,
		Stats:     TraceStats{TotalEvents: len(timeline)},
	}
	for _, e := range entries {
		if e.Direction == journal.Outbound {
			result.Stats.Outbound++
		} else {
			result.Stats.Inbound++
		}
	}
	for _, r := range requests {
		if r.Reply == "" {
			result.Stats.Unanswered++
		}
	}

	if opts.Format == "json" {
		return outputTraceJSON(cmd, result)
	}
	return outputTraceText(cmd, result, opts.Verbose)
}

// buildTimeline decodes journal entries, keeping only topic when set.
func buildTimeline(entries []journal.Entry, topic string) ([]TraceEvent, error) {
	want := expandTopic(topic)

	timeline := make([]TraceEvent, 0, len(entries))
	for _, e := range entries {
		if topic != "" && e.Topic != want[0] && e.Topic != want[1] {
			continue
		}
		var payload map[string]any
		if err := e.Decode(&payload); err != nil {
			return nil, err
		}
		timeline = append(timeline, TraceEvent{
			Seq:       e.Seq,
			Direction: string(e.Direction),
			Topic:     e.Topic,
			RequestID: e.RequestID,
			Payload:   payload,
		})
	}
	return timeline, nil
}

// expandTopic returns the outbound and inbound spellings of a bare topic.
func expandTopic(topic string) [2]string {
	if strings.HasPrefix(topic, bus.OutboundPrefix) || strings.HasPrefix(topic, bus.InboundPrefix) {
		return [2]string{topic, topic}
	}
	return [2]string{bus.OutboundPrefix + topic, bus.InboundPrefix + topic}
}

// buildRequests pairs outbound requests with the first inbound message
// carrying the same request id.
func buildRequests(entries []journal.Entry) []RequestEdge {
	var edges []RequestEdge
	index := make(map[string]int)

	for _, e := range entries {
		if e.RequestID == "" {
			continue
		}
		if e.Direction == journal.Outbound {
			index[e.RequestID] = len(edges)
			edges = append(edges, RequestEdge{
				RequestID:  e.RequestID,
				Request:    e.Topic,
				RequestSeq: e.Seq,
			})
			continue
		}
		i, ok := index[e.RequestID]
		if !ok || edges[i].Reply != "" {
			continue
		}
		edges[i].Reply = e.Topic
		edges[i].ReplySeq = e.Seq
	}
	return edges
}

// outputTraceJSON outputs the trace result as JSON.
func outputTraceJSON(cmd *cobra.Command, result TraceResult) error {
	formatter := &OutputFormatter{Format: "json", Writer: cmd.OutOrStdout()}
	return formatter.Session(result.SessionID, result)
}

// outputTraceText outputs the trace result as text.
func outputTraceText(cmd *cobra.Command, result TraceResult, verbose bool) error {
	w := cmd.OutOrStdout()

	fmt.Fprintf(w, "Trace for Session: %s\n", result.SessionID)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "=== Timeline ===")
	if len(result.Timeline) == 0 {
		fmt.Fprintln(w, "  (no messages)")
	} else {
		for _, event := range result.Timeline {
			formatTimelineEvent(w, event, verbose)
		}
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "=== Requests ===")
	if len(result.Requests) == 0 {
		fmt.Fprintln(w, "  (no requests)")
	} else {
		for _, edge := range result.Requests {
			reply := "(unanswered)"
			if edge.Reply != "" {
				reply = fmt.Sprintf("[%d] %s", edge.ReplySeq, edge.Reply)
			}
			fmt.Fprintf(w, "  %s [%d] %s -> %s\n", edge.RequestID, edge.RequestSeq, edge.Request, reply)
		}
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "=== Stats ===")
	fmt.Fprintf(w, "  Total Events: %d\n", result.Stats.TotalEvents)
	fmt.Fprintf(w, "  Outbound:     %d\n", result.Stats.Outbound)
	fmt.Fprintf(w, "  Inbound:      %d\n", result.Stats.Inbound)
	fmt.Fprintf(w, "  Unanswered:   %d\n", result.Stats.Unanswered)

	return nil
}

// formatTimelineEvent formats a single timeline event for text output.
func formatTimelineEvent(w io.Writer, event TraceEvent, verbose bool) {
	arrow := "->"
	if event.Direction == string(journal.Inbound) {
		arrow = "<-"
	}
	fmt.Fprintf(w, "  [%d] %s %s", event.Seq, arrow, event.Topic)
	if event.RequestID != "" {
		fmt.Fprintf(w, " (%s)", event.RequestID)
	}
	fmt.Fprintln(w)
	if verbose && len(event.Payload) > 0 {
		fmt.Fprintf(w, "       Payload: %s\n", formatArgs(event.Payload))
	}
}

// formatArgs formats a map for display with sorted keys.
func formatArgs(args map[string]any) string {
	if len(args) == 0 {
		return "{}"
	}

	keys := make([]string, 0, len(args))
	for k := range args {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%s", k, formatValue(args[k])))
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// formatValue formats a single value for display, handling nested structures deterministically.
func formatValue(v any) string {
	switch val := v.(type) {
	case map[string]any:
		return formatArgs(val)
	case []any:
		parts := make([]string, len(val))
		for i, elem := range val {
			parts[i] = formatValue(elem)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case string:
		return val
	case nil:
		return "null"
	default:
		return fmt.Sprintf("%v", v)
	}
}

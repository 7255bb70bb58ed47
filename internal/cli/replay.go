package cli

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/formentry/internal/engine"
	"github.com/roach88/formentry/internal/journal"
	"github.com/roach88/formentry/internal/render"
	"github.com/roach88/formentry/internal/tree"
)

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	*RootOptions
	Database  string
	SessionID string // optional - specific session only
}

// ReplaySessionResult holds the replay result for a single session.
type ReplaySessionResult struct {
	SessionID     string         `json:"session_id"`
	Title         string         `json:"title,omitempty"`
	Inbound       int            `json:"inbound"`
	Outbound      int            `json:"outbound"`
	Pending       int            `json:"pending"`
	Deterministic bool           `json:"deterministic"`
	Tree          *tree.Snapshot `json:"tree,omitempty"`

	outline string
}

// ReplayResult holds the overall replay result.
type ReplayResult struct {
	Sessions         []ReplaySessionResult `json:"sessions"`
	TotalSessions    int                   `json:"total_sessions"`
	AllDeterministic bool                  `json:"all_deterministic"`
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Rebuild journaled sessions and verify determinism",
		Long: `Rebuild journaled form sessions from their initial payload and inbound
messages, and print the resulting form tree.

Each session is replayed twice and the two trees are compared to verify
that replay is deterministic.

Exit codes:
  0 - All sessions replay deterministically
  1 - Determinism verification failed (differences detected)
  2 - Command error (database not found, unknown session, etc.)

Examples:
  formentry replay --db ./sessions.db
  formentry replay --db ./sessions.db --session visit-1
  formentry replay --db ./sessions.db --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(cmd.Context(), opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite journal (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.SessionID, "session", "", "replay specific session only")

	return cmd
}

func runReplay(ctx context.Context, opts *ReplayOptions, cmd *cobra.Command) error {
	if ctx == nil {
		ctx = context.Background()
	}

	j, err := openJournal(opts.Database)
	if err != nil {
		return err
	}
	defer j.Close()

	var sessions []journal.Session
	if opts.SessionID != "" {
		s, err := j.Session(ctx, opts.SessionID)
		if errors.Is(err, journal.ErrSessionNotFound) {
			return WrapExitError(ExitCommandError, fmt.Sprintf("unknown session %q", opts.SessionID), err)
		}
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to read session", err)
		}
		sessions = []journal.Session{s}
	} else {
		sessions, err = j.Sessions(ctx)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to list sessions", err)
		}
	}

	result := ReplayResult{
		Sessions:         make([]ReplaySessionResult, 0, len(sessions)),
		TotalSessions:    len(sessions),
		AllDeterministic: true,
	}

	if len(sessions) == 0 {
		if opts.Format == "json" {
			return outputReplayJSON(cmd, result)
		}
		fmt.Fprintln(cmd.OutOrStdout(), "No sessions found in journal.")
		return nil
	}

	for _, s := range sessions {
		sessionResult, err := replayAndVerifySession(ctx, j, s)
		if err != nil {
			return WrapExitError(ExitCommandError, fmt.Sprintf("failed to replay session %s", s.ID), err)
		}
		result.Sessions = append(result.Sessions, sessionResult)
		if !sessionResult.Deterministic {
			result.AllDeterministic = false
		}
	}

	if opts.Format == "json" {
		return outputReplayJSON(cmd, result)
	}
	return outputReplayText(cmd, result, opts.Verbose)
}

// replayAndVerifySession replays a session twice and compares the trees.
func replayAndVerifySession(ctx context.Context, j *journal.Journal, s journal.Session) (ReplaySessionResult, error) {
	first, err := replayTree(ctx, j, s.ID)
	if err != nil {
		return ReplaySessionResult{}, fmt.Errorf("first replay failed: %w", err)
	}
	second, err := replayTree(ctx, j, s.ID)
	if err != nil {
		return ReplaySessionResult{}, fmt.Errorf("second replay failed: %w", err)
	}

	inbound, err := j.ReadDirection(ctx, s.ID, journal.Inbound)
	if err != nil {
		return ReplaySessionResult{}, err
	}
	outbound, err := j.ReadDirection(ctx, s.ID, journal.Outbound)
	if err != nil {
		return ReplaySessionResult{}, err
	}
	pending, err := j.PendingRequests(ctx, s.ID)
	if err != nil {
		return ReplaySessionResult{}, err
	}

	return ReplaySessionResult{
		SessionID:     s.ID,
		Title:         s.Title,
		Inbound:       len(inbound),
		Outbound:      len(outbound),
		Pending:       len(pending),
		Deterministic: bytes.Equal(first.json, second.json),
		Tree:          &first.snap,
		outline:       first.outline,
	}, nil
}

type replayed struct {
	snap    tree.Snapshot
	json    []byte
	outline string
}

func replayTree(ctx context.Context, j *journal.Journal, sessionID string) (*replayed, error) {
	e, err := engine.Replay(ctx, j, sessionID, engine.WithCaptioner(render.NewHTML()))
	if err != nil {
		return nil, err
	}
	defer e.Stop()

	form := e.Form()
	data, err := tree.MarshalSnapshot(form)
	if err != nil {
		return nil, err
	}
	var outline bytes.Buffer
	if err := tree.Dump(&outline, form); err != nil {
		return nil, err
	}
	return &replayed{snap: tree.Snap(form), json: data, outline: outline.String()}, nil
}

// openJournal opens a journal file, mapping failures to command errors.
func openJournal(path string) (*journal.Journal, error) {
	if !fileExists(path) {
		return nil, NewExitError(ExitCommandError, fmt.Sprintf("journal not found: %s", path))
	}
	j, err := journal.Open(path)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open journal", err)
	}
	return j, nil
}

// outputReplayJSON outputs the replay result as JSON.
func outputReplayJSON(cmd *cobra.Command, result ReplayResult) error {
	response := CLIResponse{
		Status: "ok",
		Data:   result,
	}

	if !result.AllDeterministic {
		response.Status = "error"
		response.Error = &CLIError{
			Code:    "E_DETERMINISM",
			Message: "determinism verification failed",
		}
	}

	formatter := &OutputFormatter{Format: "json", Writer: cmd.OutOrStdout()}
	if err := formatter.JSON(response); err != nil {
		return err
	}

	if !result.AllDeterministic {
		return NewExitError(ExitFailure, "determinism verification failed")
	}
	return nil
}

// outputReplayText outputs the replay result as text.
func outputReplayText(cmd *cobra.Command, result ReplayResult, verbose bool) error {
	w := cmd.OutOrStdout()

	fmt.Fprintf(w, "Replay Summary: %d session(s)\n", result.TotalSessions)
	fmt.Fprintln(w)

	for _, s := range result.Sessions {
		status := "✓"
		if !s.Deterministic {
			status = "✗"
		}

		fmt.Fprintf(w, "%s Session: %s\n", status, s.SessionID)
		fmt.Fprintf(w, "  Messages: %d inbound, %d outbound\n", s.Inbound, s.Outbound)
		if s.Pending > 0 {
			fmt.Fprintf(w, "  Unanswered requests: %d\n", s.Pending)
		}
		if verbose {
			fmt.Fprintln(w)
			fmt.Fprint(w, s.outline)
		}

		if !s.Deterministic {
			fmt.Fprintln(w, "  Warning: Non-deterministic replay detected!")
		}
		fmt.Fprintln(w)
	}

	if result.AllDeterministic {
		fmt.Fprintln(w, "✓ All sessions verified deterministic")
		return nil
	}

	fmt.Fprintln(w, "✗ Determinism verification failed")
	return NewExitError(ExitFailure, "determinism verification failed")
}

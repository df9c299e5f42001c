// Session management commands for taleWEAVER. This file handles
// listing saved sessions and replaying their transcripts outside the
// interactive interface.
package main

import (
	"fmt"
	"strings"

	"taleweaver/internal/engine"
	"taleweaver/internal/store"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Manage saved story sessions",
	Long: `List saved story sessions and replay their transcripts.

Subcommands:
  list - List saved sessions
  show - Print the transcript of one session`,
	RunE: runSessionsList,
}

var sessionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved sessions",
	RunE:  runSessionsList,
}

var sessionsShowCmd = &cobra.Command{
	Use:   "show <session-id>",
	Short: "Print the transcript of one session",
	Args:  cobra.ExactArgs(1),
	RunE:  runSessionsShow,
}

func init() {
	sessionsCmd.AddCommand(sessionsListCmd, sessionsShowCmd)
}

// openTranscriptStore opens the configured transcript database, or
// reports that persistence is switched off.
func openTranscriptStore() (*store.TranscriptStore, error) {
	if !appCfg.Storage.Enabled {
		return nil, fmt.Errorf("session persistence is disabled in config")
	}
	return store.NewTranscriptStore(storagePath(appCfg, resolveWorkspace()))
}

func runSessionsList(cmd *cobra.Command, args []string) error {
	ts, err := openTranscriptStore()
	if err != nil {
		return err
	}
	defer ts.Close()

	sessions, err := ts.ListSessions(50)
	if err != nil {
		return fmt.Errorf("failed to list sessions: %w", err)
	}
	if len(sessions) == 0 {
		fmt.Println("No saved sessions found.")
		return nil
	}

	fmt.Println("Saved sessions (newest first)")
	fmt.Println(strings.Repeat("-", 72))
	for _, s := range sessions {
		fmt.Printf("  %s  %s  turn %-3d  %-20s  %d entries\n",
			s.StartedAt.Format("2006-01-02 15:04"), s.ID, s.LastTurn, s.Location, s.Entries)
	}
	fmt.Println(strings.Repeat("-", 72))
	fmt.Printf("Total: %d sessions\n", len(sessions))
	fmt.Println("\nUse: tale sessions show <session-id>")

	return nil
}

func runSessionsShow(cmd *cobra.Command, args []string) error {
	ts, err := openTranscriptStore()
	if err != nil {
		return err
	}
	defer ts.Close()

	id, err := resolveSessionID(ts, args[0])
	if err != nil {
		return err
	}

	entries, err := ts.LoadTranscript(id)
	if err != nil {
		return fmt.Errorf("failed to load transcript: %w", err)
	}
	if len(entries) == 0 {
		return fmt.Errorf("session '%s' not found. Use 'tale sessions list' to see saved sessions", args[0])
	}

	fmt.Print(renderTranscriptMarkdown(id, entries))
	return nil
}

// resolveSessionID accepts a full session ID or a unique prefix of one.
func resolveSessionID(ts *store.TranscriptStore, arg string) (string, error) {
	sessions, err := ts.ListSessions(200)
	if err != nil {
		return "", fmt.Errorf("failed to list sessions: %w", err)
	}

	var matches []string
	for _, s := range sessions {
		if s.ID == arg {
			return arg, nil
		}
		if strings.HasPrefix(s.ID, arg) {
			matches = append(matches, s.ID)
		}
	}

	switch len(matches) {
	case 1:
		return matches[0], nil
	case 0:
		// Fall through to the exact load; an old session may not be in
		// the listing window.
		return arg, nil
	default:
		return "", fmt.Errorf("session prefix '%s' is ambiguous (%d matches)", arg, len(matches))
	}
}

// renderTranscriptMarkdown formats a stored transcript as markdown and
// renders it for the terminal, falling back to the raw markdown if the
// renderer is unavailable.
func renderTranscriptMarkdown(id string, entries []engine.LogEntry) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Transcript %s\n\n", id)
	for _, e := range entries {
		switch e.Kind {
		case engine.LogUser:
			label := e.Speaker
			if label == "" {
				label = "You"
			}
			fmt.Fprintf(&b, "**%s:** %s\n\n", label, e.Text)
		case engine.LogAssistant:
			label := e.Speaker
			if label == "" {
				label = engine.NarratorLabel
			}
			fmt.Fprintf(&b, "**%s:** %s\n\n", label, e.Text)
		case engine.LogError:
			fmt.Fprintf(&b, "**Error:** %s\n\n", e.Text)
		default:
			// System notices read best as asides.
			fmt.Fprintf(&b, "> %s\n\n", strings.ReplaceAll(e.Text, "\n", "\n> "))
		}
	}
	return safeRenderMarkdown(b.String())
}

// safeRenderMarkdown renders markdown with panic recovery. Transcript
// text is model output, so the renderer gets no guarantees about it.
func safeRenderMarkdown(markdown string) (result string) {
	defer func() {
		if r := recover(); r != nil {
			result = markdown
		}
	}()

	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(100),
	)
	if err != nil {
		return markdown
	}
	rendered, err := renderer.Render(markdown)
	if err != nil {
		return markdown
	}
	return rendered
}

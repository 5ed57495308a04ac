package cli

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"
	"github.com/specialistvlad/propshell/internal/app"
	"github.com/specialistvlad/propshell/internal/journal"
)

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.NormalBorder()).
		Headers(headers...)
}

func newKindsCommand(f *flags) *cobra.Command {
	return &cobra.Command{
		Use:   "kinds",
		Short: "List the registered kinds",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := bootstrapContext(cmd.Context(), f, cmd.ErrOrStderr())
			reg, err := app.BuildRegistry(ctx, f.kindsPath)
			if err != nil {
				return &ExitError{Code: ExitUsage, Message: err.Error()}
			}

			t := newTable("KIND", "PROPERTIES", "SIGNALS", "SOURCE", "DESCRIPTION")
			for _, name := range reg.Kinds() {
				k, _ := reg.Lookup(name)
				source := k.Source
				if k.Declarative() {
					source += " (declarative)"
				}
				t.Row(name,
					strings.Join(k.Spec.PropertyNames(), ", "),
					strings.Join(k.Spec.SignalNames(), ", "),
					source,
					k.Spec.Description)
			}
			fmt.Fprintln(cmd.OutOrStdout(), t.String())
			return nil
		},
	}
}

func newHistoryCommand(f *flags) *cobra.Command {
	var (
		limit     int
		sessionID string
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Print the batches recorded in a journal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if f.journal == "" {
				return &ExitError{Code: ExitUsage, Message: "history needs --journal"}
			}
			ctx := bootstrapContext(cmd.Context(), f, cmd.ErrOrStderr())

			j, err := journal.Open(ctx, f.journal)
			if err != nil {
				return &ExitError{Code: ExitUsage, Message: err.Error()}
			}
			defer func() { _ = j.Close() }()

			entries, err := j.History(ctx, journal.Query{SessionID: sessionID, Limit: limit})
			if err != nil {
				return &ExitError{Code: ExitScript, Message: err.Error()}
			}

			t := newTable("ID", "AT", "SESSION", "ORIGIN", "RESULT", "BATCH")
			for _, e := range entries {
				result := "ok"
				if !e.OK() {
					result = e.Code
				}
				t.Row(strconv.FormatInt(e.ID, 10),
					e.At.Format(time.DateTime),
					shortID(e.SessionID),
					e.Origin,
					result,
					summarize(e.Text))
			}
			fmt.Fprintln(cmd.OutOrStdout(), t.String())
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "show only the newest N batches; 0 shows all")
	cmd.Flags().StringVar(&sessionID, "session", "", "show only batches of this session id")
	return cmd
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// summarize keeps the first command line of a batch.
func summarize(text string) string {
	lines := strings.Split(strings.TrimSpace(text), "\n")
	if len(lines) == 1 {
		return lines[0]
	}
	return fmt.Sprintf("%s (+%d lines)", lines[0], len(lines)-1)
}

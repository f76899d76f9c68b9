package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/hay-kot/parley/internal/core/activity"
	"github.com/hay-kot/parley/internal/printer"
)

type HistoryCmd struct {
	flags *Flags

	// Command-specific flags
	limit  int
	since  string
	format string
}

// NewHistoryCmd creates a new history command
func NewHistoryCmd(flags *Flags) *HistoryCmd {
	return &HistoryCmd{flags: flags}
}

// Register adds the history command to the application
func (cmd *HistoryCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "history",
		Usage:     "View session history",
		UsageText: "parley history [options]",
		Description: `Lists recorded session activity, newest first.

Every session open, establishment, close and finished transfer is recorded
under the data directory.

Examples:
  parley history                 # last 20 events
  parley history -n 100          # last 100 events
  parley history --since 1h      # events from the last hour
  parley history --format json   # machine readable`,
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:        "limit",
				Aliases:     []string{"n"},
				Usage:       "maximum number of events to show (0 for all)",
				Value:       20,
				Destination: &cmd.limit,
			},
			&cli.StringFlag{
				Name:        "since",
				Usage:       "only show events newer than this duration (e.g., 30m, 24h)",
				Destination: &cmd.since,
			},
			&cli.StringFlag{
				Name:        "format",
				Usage:       "output format (text, json)",
				Value:       "text",
				Destination: &cmd.format,
			},
		},
		Action: cmd.run,
	})

	return app
}

func (cmd *HistoryCmd) run(ctx context.Context, c *cli.Command) error {
	events, err := cmd.list()
	if err != nil {
		return err
	}

	if cmd.format == "json" {
		enc := json.NewEncoder(c.Root().Writer)
		enc.SetIndent("", "  ")
		return enc.Encode(events)
	}

	if len(events) == 0 {
		printer.Ctx(ctx).Infof("No session history")
		return nil
	}

	w := tabwriter.NewWriter(c.Root().Writer, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "TIME\tEVENT\tSESSION\tADDRESS\tDIRECTION\tENDPOINT\tDETAIL")

	for _, ev := range events {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			ev.Timestamp.Local().Format("2006-01-02 15:04:05"),
			ev.Kind,
			ev.SessionID,
			ev.Address,
			ev.Direction,
			ev.Endpoint,
			describe(ev),
		)
	}

	return w.Flush()
}

func (cmd *HistoryCmd) list() ([]activity.Event, error) {
	if cmd.since == "" {
		events, err := cmd.flags.History.List(cmd.limit)
		if err != nil {
			return nil, fmt.Errorf("list history: %w", err)
		}
		return events, nil
	}

	d, err := time.ParseDuration(cmd.since)
	if err != nil {
		return nil, fmt.Errorf("invalid --since duration: %w", err)
	}

	events, err := cmd.flags.History.ListSince(time.Now().Add(-d), cmd.limit)
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	return events, nil
}

// describe renders the kind-specific part of an event.
func describe(ev activity.Event) string {
	switch ev.Kind {
	case activity.KindClosed:
		if ev.Status == "normal" {
			return printer.StatusOK()
		}
		return printer.StatusFailed(ev.Status)
	case activity.KindTransferDone:
		return fmt.Sprintf("%s (%s)", ev.Detail, printer.FormatBytes(ev.Bytes))
	case activity.KindTransferFailed:
		return printer.StatusFailed(ev.Detail)
	default:
		return ""
	}
}

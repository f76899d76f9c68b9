package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/urfave/cli/v3"

	"github.com/hay-kot/parley/internal/core/config"
	"github.com/hay-kot/parley/internal/core/pool"
)

type EndpointsCmd struct {
	flags *Flags

	format string
	rounds int
}

// NewEndpointsCmd creates a new endpoints command.
func NewEndpointsCmd(flags *Flags) *EndpointsCmd {
	return &EndpointsCmd{flags: flags}
}

// Register adds the endpoints command to the application.
func (cmd *EndpointsCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "endpoints",
		Usage:     "Show the transport endpoint pool",
		UsageText: "parley endpoints [options]",
		Description: `Lists the configured transport endpoints in the order new sessions
will be assigned to them. Selection is round robin, starting with the first
endpoint in the config file.`,
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:        "rounds",
				Usage:       "number of selections to preview",
				Destination: &cmd.rounds,
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

type selection struct {
	Session  int    `json:"session"`
	Endpoint string `json:"endpoint"`
	URI      string `json:"uri"`
}

func (cmd *EndpointsCmd) run(ctx context.Context, c *cli.Command) error {
	selections, err := preview(cmd.flags.Config.Endpoints, cmd.rounds)
	if err != nil {
		return err
	}

	if cmd.format == "json" {
		enc := json.NewEncoder(c.Root().Writer)
		enc.SetIndent("", "  ")
		return enc.Encode(selections)
	}

	w := tabwriter.NewWriter(c.Root().Writer, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "SESSION\tENDPOINT\tURI")
	for _, s := range selections {
		_, _ = fmt.Fprintf(w, "%d\t%s\t%s\n", s.Session, s.Endpoint, s.URI)
	}
	return w.Flush()
}

// preview runs rounds selections over a fresh pool. Zero rounds previews one
// full rotation.
func preview(endpoints []config.Endpoint, rounds int) ([]selection, error) {
	p := pool.New(endpoints...)
	if rounds <= 0 {
		rounds = p.Len()
	}

	out := make([]selection, 0, rounds)
	for i := range rounds {
		ep, err := p.Select()
		if err != nil {
			return nil, fmt.Errorf("select endpoint: %w", err)
		}
		out = append(out, selection{Session: i + 1, Endpoint: ep.Name, URI: ep.URI})
	}
	return out, nil
}

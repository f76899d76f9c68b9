package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hay-kot/criterio"
	"github.com/urfave/cli/v3"

	"github.com/hay-kot/parley/internal/core/config"
	"github.com/hay-kot/parley/internal/printer"
)

type ConfigValidateCmd struct {
	flags  *Flags
	format string
	strict bool
}

// NewConfigValidateCmd creates a new config validate command.
func NewConfigValidateCmd(flags *Flags) *ConfigValidateCmd {
	return &ConfigValidateCmd{flags: flags}
}

// Register adds the config validate command to the application.
func (cmd *ConfigValidateCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:  "config",
		Usage: "Configuration management commands",
		Commands: []*cli.Command{
			{
				Name:      "validate",
				Usage:     "Validate configuration file",
				UsageText: "parley config validate [options]",
				Description: `Validates the configuration file: endpoint names and URIs, timeouts,
capabilities, and access to the config file and data directory.

Warnings point at settings that work but probably behave unexpectedly.
Use --strict to fail on warnings too.`,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:        "format",
						Usage:       "output format (text, json)",
						Value:       "text",
						Destination: &cmd.format,
					},
					&cli.BoolFlag{
						Name:        "strict",
						Usage:       "treat warnings as errors",
						Destination: &cmd.strict,
					},
				},
				Action: cmd.run,
			},
		},
	})

	return app
}

// report is the outcome of one validation run.
type report struct {
	Valid     bool                       `json:"valid"`
	Endpoints []string                   `json:"endpoints"`
	Errors    []reportError              `json:"errors,omitempty"`
	Warnings  []config.ValidationWarning `json:"warnings,omitempty"`
}

type reportError struct {
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

func (cmd *ConfigValidateCmd) run(ctx context.Context, c *cli.Command) error {
	cfg := cmd.flags.Config
	if cfg == nil {
		return fmt.Errorf("configuration not loaded")
	}

	r := buildReport(cfg, cfg.ValidateDeep(cmd.flags.ConfigPath), cmd.strict)

	if cmd.format == "json" {
		enc := json.NewEncoder(c.Root().Writer)
		enc.SetIndent("", "  ")
		if err := enc.Encode(r); err != nil {
			return err
		}
	} else {
		printReport(printer.Ctx(ctx), r)
	}

	if !r.Valid {
		return cli.Exit("", 1)
	}
	return nil
}

func buildReport(cfg *config.Config, validationErr error, strict bool) report {
	r := report{
		Endpoints: cfg.EndpointNames(),
		Warnings:  cfg.Warnings(),
	}

	for _, fe := range extractFieldErrors(validationErr) {
		r.Errors = append(r.Errors, reportError{Field: fe.Field, Message: fe.Err.Error()})
	}

	r.Valid = len(r.Errors) == 0 && (!strict || len(r.Warnings) == 0)
	return r
}

// extractFieldErrors extracts field errors from a validation error.
func extractFieldErrors(err error) criterio.FieldErrors {
	if err == nil {
		return nil
	}
	var fieldErrs criterio.FieldErrors
	if errors.As(err, &fieldErrs) {
		return fieldErrs
	}
	return criterio.FieldErrors{{Err: err}}
}

func printReport(p *printer.Printer, r report) {
	for _, e := range r.Errors {
		if e.Field != "" {
			p.Errorf("%s: %s", e.Field, e.Message)
		} else {
			p.Errorf("%s", e.Message)
		}
	}

	for _, w := range r.Warnings {
		msg := w.Message
		if w.Item != "" {
			msg = w.Item + ": " + msg
		}
		p.Warnf("%s: %s", w.Category, msg)
	}

	if len(r.Endpoints) > 0 {
		p.Infof("endpoint rotation: %v", r.Endpoints)
	}

	switch {
	case !r.Valid:
		p.Errorf("configuration is invalid (%d error(s), %d warning(s))", len(r.Errors), len(r.Warnings))
	case len(r.Warnings) > 0:
		p.Successf("configuration is valid (%d warning(s))", len(r.Warnings))
	default:
		p.Successf("configuration is valid")
	}
}

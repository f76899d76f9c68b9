package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"
	"golang.org/x/term"

	"github.com/hay-kot/parley/internal/core/session"
	"github.com/hay-kot/parley/internal/node"
	"github.com/hay-kot/parley/internal/printer"
	"github.com/hay-kot/parley/internal/registry"
)

type SendCmd struct {
	flags *Flags

	from        string
	to          string
	files       []string
	contentType string
	outDir      string
	timeout     string
}

// NewSendCmd creates a new send command.
func NewSendCmd(flags *Flags) *SendCmd {
	return &SendCmd{flags: flags}
}

// Register adds the send command to the application.
func (cmd *SendCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "send",
		Usage:     "Send a message or files between two local parties",
		UsageText: "parley send [options] [message...]",
		Description: `Opens a session from --from to --to over the configured endpoint pool
and sends a message, the files matching --file, or data piped on stdin.

The receiving party accepts the session, prints what it receives and writes
received files to --out when set.

Examples:
  parley send --to bob@local hello there
  parley send --to bob@local --file 'docs/**/*.md'
  echo '{"ok":true}' | parley send --to bob@local --type application/json`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "from",
				Usage:       "local sender address",
				Value:       "me@local",
				Destination: &cmd.from,
			},
			&cli.StringFlag{
				Name:        "to",
				Usage:       "recipient address",
				Required:    true,
				Destination: &cmd.to,
			},
			&cli.StringSliceFlag{
				Name:        "file",
				Aliases:     []string{"f"},
				Usage:       "file or glob pattern to send as a file transfer (repeatable)",
				Destination: &cmd.files,
			},
			&cli.StringFlag{
				Name:        "type",
				Aliases:     []string{"t"},
				Usage:       "content type of the message (detected when empty)",
				Destination: &cmd.contentType,
			},
			&cli.StringFlag{
				Name:        "out",
				Aliases:     []string{"o"},
				Usage:       "directory received files are written to",
				Destination: &cmd.outDir,
			},
			&cli.StringFlag{
				Name:        "timeout",
				Usage:       "give up when transfers have not finished after this long",
				Value:       "30s",
				Destination: &cmd.timeout,
			},
		},
		Action: cmd.run,
	})

	return app
}

// outgoing is one payload the command sends.
type outgoing struct {
	label string
	data  []byte
	file  *session.FileTransfer
}

func (cmd *SendCmd) run(ctx context.Context, c *cli.Command) error {
	p := printer.Ctx(ctx)

	timeout, err := time.ParseDuration(cmd.timeout)
	if err != nil {
		return fmt.Errorf("invalid timeout: %w", err)
	}

	items, err := cmd.collect(c.Args().Slice())
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	n := node.New(cmd.flags.Config, cmd.flags.History, log.With().Str("component", "node").Logger())

	sender, err := n.Join(cmd.from, "")
	if err != nil {
		return fmt.Errorf("join %s: %w", cmd.from, err)
	}
	receiver, err := n.Join(cmd.to, "")
	if err != nil {
		return fmt.Errorf("join %s: %w", cmd.to, err)
	}
	cmd.receive(p, receiver)

	errc := make(chan error, 1)
	go func() { errc <- n.Run(ctx) }()

	var (
		done      = make(chan struct{})
		remaining = len(items)
		failed    int
	)
	// finish only runs on the dispatcher.
	finish := func(ok bool) {
		if !ok {
			failed++
		}
		remaining--
		if remaining == 0 {
			close(done)
		}
	}

	err = n.Do(ctx, func() {
		for _, it := range items {
			cmd.send(p, sender, it, finish)
		}
	})
	if err != nil {
		return err
	}

	select {
	case <-done:
	case <-ctx.Done():
		return fmt.Errorf("transfers did not finish within %s", timeout)
	}

	if err := n.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	cancel()
	if err := <-errc; err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d transfer(s) failed", failed, len(items))
	}
	return nil
}

func (cmd *SendCmd) send(p *printer.Printer, r *registry.Registry, it outgoing, finish func(bool)) {
	sc := session.SendConfig{
		ContentType:  cmd.contentType,
		FileTransfer: it.file,
		OnProgress: func(ev session.ProgressEvent) {
			p.Progress("→ "+it.label, ev.BytesComplete, ev.PercentComplete)
		},
		OnSuccess: func(session.SuccessEvent) {
			p.Successf("sent %s (%s)", it.label, printer.FormatBytes(int64(len(it.data))))
			finish(true)
		},
		OnFailure: func(session.FailureEvent) {
			p.Errorf("failed to send %s", it.label)
			finish(false)
		},
	}

	if _, err := r.Send(cmd.to, it.data, sc); err != nil {
		p.Errorf("send %s: %v", it.label, err)
		finish(false)
	}
}

// receive prints everything arriving at the receiving party.
func (cmd *SendCmd) receive(p *printer.Printer, r *registry.Registry) {
	r.OnDataSession = func(s *session.Session) {
		s.Handlers.OnDataStart = func(ev session.DataStartEvent) {
			cmd.watch(p, ev.Transfer)
		}
		s.Handlers.OnClose = func(ev session.CloseEvent) {
			p.Closed(s.Address(), string(ev.Status))
		}
		if err := s.Accept(); err != nil {
			p.Errorf("accept session from %s: %v", s.Address(), err)
		}
	}

	r.OnData = func(ev session.DataEvent) {
		body := ev.Data.String()
		if !ev.Data.Text {
			body = printer.FormatBytes(int64(len(ev.Data.Bytes))) + " of binary data"
		}
		p.Received(ev.Address, ev.ContentType, body)
	}
}

// watch reports progress of an inbound transfer and stores received files.
func (cmd *SendCmd) watch(p *printer.Printer, t *session.Transfer) {
	label := t.Filename()
	if label == "" {
		label = t.ContentType()
	}

	t.OnProgress = func(ev session.ProgressEvent) {
		p.Progress("← "+label, ev.BytesComplete, ev.PercentComplete)
	}
	t.OnFailure = func(ev session.FailureEvent) {
		p.Errorf("receive %s failed after %s", label, printer.FormatBytes(int64(len(ev.PartialData.Bytes))))
	}

	if t.Filename() == "" || cmd.outDir == "" {
		return
	}
	t.OnSuccess = func(ev session.SuccessEvent) {
		path, err := store(cmd.outDir, t.Filename(), ev.Data.Bytes)
		if err != nil {
			p.Errorf("store %s: %v", label, err)
			return
		}
		p.Infof("saved %s", path)
	}
}

// collect gathers what to send: files matching --file patterns, the message
// arguments, or stdin when neither is given and stdin is not a terminal.
func (cmd *SendCmd) collect(args []string) ([]outgoing, error) {
	var items []outgoing

	for _, pattern := range cmd.files {
		paths, err := expand(pattern)
		if err != nil {
			return nil, err
		}
		for _, path := range paths {
			data, err := os.ReadFile(path)
			if err != nil {
				return nil, fmt.Errorf("read file: %w", err)
			}
			name := filepath.Base(path)
			items = append(items, outgoing{
				label: name,
				data:  data,
				file:  &session.FileTransfer{Name: name, Size: int64(len(data))},
			})
		}
	}

	if len(args) > 0 {
		items = append(items, outgoing{label: "message", data: []byte(strings.Join(args, " "))})
	}

	if len(items) == 0 {
		if term.IsTerminal(int(os.Stdin.Fd())) {
			return nil, fmt.Errorf("nothing to send (stdin is a terminal); pass a message, use --file or pipe input")
		}
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return nil, fmt.Errorf("read stdin: %w", err)
		}
		items = append(items, outgoing{label: "stdin", data: data})
	}

	return items, nil
}

// expand resolves a --file pattern to regular files. A pattern matching no
// files is an error.
func expand(pattern string) ([]string, error) {
	matches, err := doublestar.FilepathGlob(pattern)
	if err != nil {
		return nil, fmt.Errorf("glob %q: %w", pattern, err)
	}

	var files []string
	for _, match := range matches {
		info, err := os.Stat(match)
		if err != nil {
			return nil, fmt.Errorf("stat %q: %w", match, err)
		}
		// FilepathGlob can return directory entries
		if info.IsDir() {
			continue
		}
		files = append(files, match)
	}

	if len(files) == 0 {
		return nil, fmt.Errorf("pattern %q matched no files", pattern)
	}
	return files, nil
}

// store writes a received file into dir. The name is reduced to its base so a
// peer cannot write outside dir.
func store(dir, name string, data []byte) (string, error) {
	base := filepath.Base(filepath.Clean("/" + name))
	if base == "/" || base == "." {
		return "", fmt.Errorf("invalid file name %q", name)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create output directory: %w", err)
	}

	path := filepath.Join(dir, base)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", err
	}
	return path, nil
}

package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/five82/periscope/internal/api"
	"github.com/five82/periscope/internal/app"
	"github.com/five82/periscope/internal/config"
	"github.com/five82/periscope/internal/logging"
	"github.com/five82/periscope/internal/stream"
)

const defaultProbeTimeout = 15 * time.Second

// commandEnv is what every non-interactive command needs.
type commandEnv struct {
	cfg    config.Config
	client *api.Client
	logger *zap.Logger
}

func newCommandEnv(c *cli.Context) (*commandEnv, error) {
	cfg, err := app.LoadConfig(c.String("config"), c.String("api-base"))
	if err != nil {
		return nil, err
	}
	client, err := app.NewClient(cfg)
	if err != nil {
		return nil, err
	}
	logger, err := logging.NewConsole(c.Bool("debug"))
	if err != nil {
		return nil, err
	}
	return &commandEnv{cfg: cfg, client: client, logger: logger}, nil
}

func healthCommand() *cli.Command {
	return &cli.Command{
		Name:  "health",
		Usage: "ping /healthz/ and print the payload",
		Action: func(c *cli.Context) error {
			env, err := newCommandEnv(c)
			if err != nil {
				return err
			}
			h, err := env.client.Health(c.Context)
			if err != nil {
				return fmt.Errorf("health: %w", err)
			}
			payload := h.Raw
			if payload == nil {
				payload = map[string]any{"ok": h.OK}
			}
			if err := printResult(c, payload); err != nil {
				return err
			}
			if !h.OK {
				return cli.Exit("backend reported ok=false", 2)
			}
			return nil
		},
	}
}

func dataCommand() *cli.Command {
	return &cli.Command{
		Name:  "data",
		Usage: "list and edit records",
		Subcommands: []*cli.Command{
			{
				Name:  "list",
				Usage: "list records",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "search", Aliases: []string{"s"}, Usage: "only records containing this text"},
				},
				Action: func(c *cli.Context) error {
					env, err := newCommandEnv(c)
					if err != nil {
						return err
					}
					records, err := env.client.ListData(c.Context, c.String("search"))
					if err != nil {
						return fmt.Errorf("list: %w", err)
					}
					if records == nil {
						records = []api.Record{}
					}
					return printResult(c, records)
				},
			},
			{
				Name:      "get",
				Usage:     "fetch one record",
				ArgsUsage: "ID",
				Action: func(c *cli.Context) error {
					id, err := recordID(c)
					if err != nil {
						return err
					}
					env, err := newCommandEnv(c)
					if err != nil {
						return err
					}
					rec, err := env.client.GetData(c.Context, id)
					if err != nil {
						return fmt.Errorf("get #%d: %w", id, err)
					}
					return printResult(c, rec)
				},
			},
			{
				Name:      "create",
				Usage:     "create a record",
				ArgsUsage: "TEXT",
				Action: func(c *cli.Context) error {
					text, err := recordText(c, 0)
					if err != nil {
						return err
					}
					env, err := newCommandEnv(c)
					if err != nil {
						return err
					}
					rec, err := env.client.CreateData(c.Context, text)
					if err != nil {
						return fmt.Errorf("create: %w", err)
					}
					return printResult(c, rec)
				},
			},
			writeCommand("update", "replace a record's text (PUT)", func(env *commandEnv, c *cli.Context, id int64, text string) (api.Record, error) {
				return env.client.UpdateData(c.Context, id, text)
			}),
			writeCommand("patch", "change a record's text (PATCH)", func(env *commandEnv, c *cli.Context, id int64, text string) (api.Record, error) {
				return env.client.PatchData(c.Context, id, text)
			}),
			{
				Name:      "delete",
				Usage:     "delete a record",
				ArgsUsage: "ID",
				Action: func(c *cli.Context) error {
					id, err := recordID(c)
					if err != nil {
						return err
					}
					env, err := newCommandEnv(c)
					if err != nil {
						return err
					}
					if err := env.client.DeleteData(c.Context, id); err != nil {
						return fmt.Errorf("delete #%d: %w", id, err)
					}
					return printResult(c, map[string]any{"deleted": id})
				},
			},
		},
	}
}

type writeFunc func(env *commandEnv, c *cli.Context, id int64, text string) (api.Record, error)

func writeCommand(name, usage string, write writeFunc) *cli.Command {
	return &cli.Command{
		Name:      name,
		Usage:     usage,
		ArgsUsage: "ID TEXT",
		Action: func(c *cli.Context) error {
			id, err := recordID(c)
			if err != nil {
				return err
			}
			text, err := recordText(c, 1)
			if err != nil {
				return err
			}
			env, err := newCommandEnv(c)
			if err != nil {
				return err
			}
			rec, err := write(env, c, id, text)
			if err != nil {
				return fmt.Errorf("%s #%d: %w", name, id, err)
			}
			return printResult(c, rec)
		},
	}
}

func recordID(c *cli.Context) (int64, error) {
	raw := c.Args().First()
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || id < 1 {
		return 0, cli.Exit(fmt.Sprintf("invalid record id %q", raw), 2)
	}
	return id, nil
}

// recordText joins the arguments from index on, so unquoted words work.
func recordText(c *cli.Context, from int) (string, error) {
	args := c.Args().Slice()
	if len(args) <= from {
		return "", cli.Exit("text is required", 2)
	}
	text := strings.TrimSpace(strings.Join(args[from:], " "))
	if text == "" {
		return "", cli.Exit("text is required", 2)
	}
	return text, nil
}

func streamFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "source", Usage: "camera URL (blank uses the backend default)"},
		&cli.IntFlag{Name: "width", Usage: "requested frame width in pixels (default from config)"},
		&cli.BoolFlag{Name: "gray", Usage: "request grayscale frames"},
		&cli.StringFlag{Name: "client", Usage: "client id (default: a fresh id)"},
	}
}

// streamQuery builds the request parameters from flags and config.
func streamQuery(c *cli.Context, cfg config.Config) api.StreamQuery {
	width := cfg.Stream.Width
	if c.IsSet("width") {
		width = c.Int("width")
	}
	clientID := strings.TrimSpace(c.String("client"))
	if clientID == "" {
		clientID = uuid.NewString()
	}
	return api.StreamQuery{
		SourceURL: strings.TrimSpace(c.String("source")),
		Grayscale: cfg.Stream.Grayscale || c.Bool("gray"),
		Width:     stream.ClampWidth(width),
		ClientID:  clientID,
		Token:     uint64(time.Now().UnixMilli()),
	}
}

func streamCommand() *cli.Command {
	return &cli.Command{
		Name:  "stream",
		Usage: "inspect the MJPEG relay",
		Subcommands: []*cli.Command{
			{
				Name:  "url",
				Usage: "print the stream URL for the given parameters",
				Flags: streamFlags(),
				Action: func(c *cli.Context) error {
					env, err := newCommandEnv(c)
					if err != nil {
						return err
					}
					q := streamQuery(c, env.cfg)
					return printResult(c, map[string]any{
						"client_id": q.ClientID,
						"url":       env.client.StreamURL(q),
						"hint":      stream.SourceHint(q.SourceURL),
					})
				},
			},
			{
				Name:  "proof",
				Usage: "fetch the server-attested session proof",
				Flags: streamFlags(),
				Action: func(c *cli.Context) error {
					env, err := newCommandEnv(c)
					if err != nil {
						return err
					}
					proof, err := env.client.FetchProof(c.Context, streamQuery(c, env.cfg))
					if err != nil {
						return fmt.Errorf("proof: %w", err)
					}
					return printResult(c, proof)
				},
			},
			{
				Name:  "abort",
				Usage: "ask the backend to drop a client's stream",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "client", Required: true, Usage: "client id to abort"},
				},
				Action: func(c *cli.Context) error {
					env, err := newCommandEnv(c)
					if err != nil {
						return err
					}
					aborted, err := env.client.AbortStream(c.Context, c.String("client"))
					if err != nil {
						return fmt.Errorf("abort: %w", err)
					}
					return printResult(c, api.AbortResult{Aborted: aborted})
				},
			},
			{
				Name:  "probe",
				Usage: "open the stream, wait for the first frame and report it",
				Flags: append(streamFlags(),
					&cli.DurationFlag{Name: "timeout", Value: defaultProbeTimeout, Usage: "give up after this long"},
				),
				Action: probeAction,
			},
		},
	}
}

type probeResult struct {
	Status   string     `json:"status" yaml:"status"`
	ClientID string     `json:"client_id" yaml:"client_id"`
	URL      string     `json:"url,omitempty" yaml:"url,omitempty"`
	Width    int        `json:"frame_width,omitempty" yaml:"frame_width,omitempty"`
	Height   int        `json:"frame_height,omitempty" yaml:"frame_height,omitempty"`
	Elapsed  string     `json:"elapsed" yaml:"elapsed"`
	Message  string     `json:"message,omitempty" yaml:"message,omitempty"`
	Proof    *api.Proof `json:"proof,omitempty" yaml:"proof,omitempty"`
	ProofErr string     `json:"proof_error,omitempty" yaml:"proof_error,omitempty"`
	Hint     string     `json:"hint,omitempty" yaml:"hint,omitempty"`
}

// probeAction runs one controller session until it is live or fails. Close
// sends the final abort so the backend releases the camera.
func probeAction(c *cli.Context) error {
	env, err := newCommandEnv(c)
	if err != nil {
		return err
	}
	defer func() { _ = env.logger.Sync() }()

	q := streamQuery(c, env.cfg)
	ctrl, err := stream.New(stream.Options{
		Backend:           env.client,
		Connector:         stream.MJPEGConnector{Client: env.client.HTTPClient()},
		Logger:            env.logger,
		ClientID:          q.ClientID,
		SourceURL:         q.SourceURL,
		Grayscale:         q.Grayscale,
		Width:             q.Width,
		ReconnectDelay:    env.cfg.Stream.ReconnectDelay,
		ConnectTimeout:    env.cfg.Stream.ConnectTimeout,
		FramePollInterval: env.cfg.Stream.FramePollInterval,
	})
	if err != nil {
		return err
	}
	defer ctrl.Close()

	updates, unsubscribe := ctrl.Subscribe()
	defer unsubscribe()

	start := time.Now()
	timeout := time.NewTimer(c.Duration("timeout"))
	defer timeout.Stop()

	ctrl.Start()
	snap := ctrl.Snapshot()
wait:
	for snap.Status != stream.Live && snap.Status != stream.Error {
		select {
		case next, ok := <-updates:
			if !ok {
				break wait
			}
			snap = next
		case <-timeout.C:
			break wait
		case <-c.Context.Done():
			return c.Context.Err()
		}
	}

	result := probeResult{
		Status:   snap.Status.String(),
		ClientID: snap.Params.ClientID,
		URL:      snap.StreamURL,
		Width:    snap.FrameSize.X,
		Height:   snap.FrameSize.Y,
		Elapsed:  time.Since(start).Round(time.Millisecond).String(),
		Message:  snap.Message,
		Proof:    snap.Proof,
		ProofErr: snap.ProofErr,
		Hint:     snap.SourceHint,
	}
	if snap.Status != stream.Live && result.Message == "" {
		result.Message = "no frame before timeout"
	}
	if err := printResult(c, result); err != nil {
		return err
	}
	if snap.Status != stream.Live {
		return cli.Exit("stream did not go live", 1)
	}
	return nil
}

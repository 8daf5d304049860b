package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/five82/periscope/internal/app"
)

func main() {
	os.Exit(run(os.Args, os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := newApp(stdout, stderr).RunContext(ctx, args); err != nil {
		fmt.Fprintf(stderr, "periscope: %v\n", err)
		var exit cli.ExitCoder
		if errors.As(err, &exit) {
			return exit.ExitCode()
		}
		return 1
	}
	return 0
}

func newApp(stdout, stderr io.Writer) *cli.App {
	return &cli.App{
		Name:      "periscope",
		Usage:     "terminal client for the records API and its MJPEG camera relay",
		Writer:    stdout,
		ErrWriter: stderr,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Usage: "config file path (default ~/.config/periscope/config.toml)"},
			&cli.StringFlag{Name: "api-base", Usage: "backend API base URL, overrides config and PERISCOPE_API_BASE"},
			&cli.BoolFlag{Name: "debug", Usage: "verbose logging"},
			&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Value: formatJSON, Usage: "result format: json or yaml"},
		},
		Action:   tuiAction,
		Commands: commands(),

		// run maps exit codes; cli must not call os.Exit itself.
		ExitErrHandler: func(*cli.Context, error) {},
	}
}

func commands() []*cli.Command {
	return []*cli.Command{
		{
			Name:   "tui",
			Usage:  "start the interactive terminal UI (default)",
			Action: tuiAction,
		},
		healthCommand(),
		dataCommand(),
		streamCommand(),
	}
}

func tuiAction(c *cli.Context) error {
	return app.Run(c.Context, app.Options{
		ConfigPath: c.String("config"),
		APIBase:    c.String("api-base"),
		Debug:      c.Bool("debug"),
	})
}

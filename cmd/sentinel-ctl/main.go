package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"sentinel-guard/internal/client"
	"sentinel-guard/internal/session"
	"sentinel-guard/internal/utils"

	"github.com/sirupsen/logrus"
)

// app carries what every subcommand needs.
type app struct {
	config *utils.Config
	logger *logrus.Logger
	sess   *session.Session
	api    *client.APIClient
	out    io.Writer
	asJSON bool
}

type command struct {
	usage string
	run   func(ctx context.Context, a *app, args []string) error
}

func main() {
	var (
		configFile = flag.String("config", utils.DefaultConfigPath, "Configuration file path (YAML)")
		asJSON     = flag.Bool("json", false, "Print results as JSON")
		verbose    = flag.Bool("v", false, "Log requests and session changes")
	)
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() == 0 {
		usage()
		os.Exit(2)
	}

	config, err := utils.LoadConfig(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config %s: %v\n", *configFile, err)
		os.Exit(1)
	}

	level := "WARN"
	if *verbose {
		level = "DEBUG"
	}
	logger := utils.NewLogger(level, config.Logging.Format, config.Logging.FilePath)

	sess, err := session.Open(config.Application.SessionFile)
	if err != nil {
		logger.Warnf("Ignoring saved session: %v", err)
	}

	a := &app{
		config: config,
		logger: logger,
		sess:   sess,
		api: client.NewAPIClient(client.APIConfig{
			BaseURL:  config.Application.APIBaseURL,
			ClientID: config.Application.ClientID,
			Timeout:  config.RequestTimeout(),
		}, sess, logger),
		out:    os.Stdout,
		asJSON: *asJSON,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := a.dispatch(ctx, flag.Args()); err != nil {
		switch {
		case errors.Is(err, client.ErrUnauthorized):
			fmt.Fprintln(os.Stderr, "Not logged in or session expired. Run: sentinel-ctl login -u <user>")
		case errors.Is(err, errUsage):
			fmt.Fprintln(os.Stderr, err)
		default:
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		stop()
		os.Exit(1)
	}
}

var errUsage = errors.New("usage")

func (a *app) dispatch(ctx context.Context, args []string) error {
	cmd, ok := commands[args[0]]
	if !ok {
		return fmt.Errorf("%w: unknown command %q, run sentinel-ctl -h", errUsage, args[0])
	}
	return cmd.run(ctx, a, args[1:])
}

func usage() {
	fmt.Fprintln(os.Stderr, "Usage: sentinel-ctl [-config file] [-json] [-v] <command> [args]")
	fmt.Fprintln(os.Stderr, "\nCommands:")
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(os.Stderr, "  %-12s %s\n", name, commands[name].usage)
	}
	fmt.Fprintln(os.Stderr, "\nGlobal flags:")
	flag.PrintDefaults()
}

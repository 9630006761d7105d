package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/danmuck/geordon/internal/admin"
	"github.com/danmuck/geordon/internal/config"
	"github.com/danmuck/geordon/internal/geordon"
	"github.com/danmuck/geordon/internal/logging"
	"github.com/danmuck/geordon/internal/observability"
	"github.com/danmuck/geordon/internal/protocol/session"
	"github.com/danmuck/geordon/internal/telemetry"
)

const (
	exitOK    = 0
	exitError = 1
	exitUsage = 2
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("geordonctl", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "", "path to a TOML config file")
	writeConfig := fs.String("write-config", "", "write the default config to path and exit")
	fs.Usage = func() {
		fmt.Fprintln(stderr, "usage: geordonctl [-config path] [-write-config path] host:port")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		return exitUsage
	}

	logging.ConfigureRuntime()

	if *writeConfig != "" {
		if err := config.WriteTemplate(*writeConfig, false); err != nil {
			logging.Errorf("geordonctl: %v", err)
			return exitError
		}
		logging.Infof("geordonctl: wrote config template path=%s", *writeConfig)
		return exitOK
	}

	if fs.NArg() != 1 {
		fs.Usage()
		return exitUsage
	}
	address := fs.Arg(0)

	file, err := config.Load(*configPath)
	if err != nil {
		logging.Errorf("geordonctl: %v", err)
		return exitError
	}
	settings, err := config.Resolve(file)
	if err != nil {
		logging.Errorf("geordonctl: %v", err)
		return exitError
	}
	if settings.LogLevel != "" && os.Getenv(logging.EnvLogLevel) == "" {
		logging.SetLevel(settings.LogLevel)
	}
	observability.RegisterMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err = runClient(ctx, address, settings, stdin, stdout)
	switch {
	case err == nil, errors.Is(err, context.Canceled):
		logging.Infof("geordonctl: stopped")
		return exitOK
	default:
		logging.Errorf("geordonctl: %v", err)
		return exitError
	}
}

func runClient(ctx context.Context, address string, settings config.Settings, stdin io.Reader, stdout io.Writer) error {
	conn, err := session.Dial(ctx, address, settings.Session)
	if err != nil {
		return fmt.Errorf("connect %s: %w", address, err)
	}
	defer conn.Close()
	logging.Infof("geordonctl: connected controller=%s", conn.RemoteAddr())

	fanout, feed, err := telemetry.Build(ctx, settings.Telemetry)
	if err != nil {
		return err
	}
	stopFanout := fanout.Start(ctx)
	defer func() {
		if err := stopFanout(); err != nil {
			logging.Warnf("geordonctl: telemetry close: %v", err)
		}
	}()

	if settings.Admin.Enabled() {
		var feedHandler http.Handler
		if feed != nil {
			feedHandler = feed
		}
		srv := admin.New(settings.Admin, conn.RemoteAddr(), feedHandler)
		go func() {
			if err := srv.Serve(ctx); err != nil {
				logging.Errorf("admin: %v", err)
			}
		}()
	}

	client := geordon.New(conn, settings.Client,
		geordon.WithConsole(stdout),
		geordon.WithSink(fanout),
	)
	go func() {
		err := geordon.ReadLoop(conn, client.Inbound())
		logging.Debugf("geordonctl: reader stopped: %v", err)
	}()
	go func() {
		err := geordon.CommandLoop(stdin, client.Commands())
		logging.Debugf("geordonctl: command source stopped: %v", err)
	}()

	fmt.Fprint(stdout, geordon.HelpText())
	return client.Run(ctx)
}

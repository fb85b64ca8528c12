// Command photoqa uploads photos of questions to the backend, polls until
// every photo has been processed and prints the extracted text and answers.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/oacracker/photoqa/internal/apiclient"
	"github.com/oacracker/photoqa/internal/config"
	"github.com/oacracker/photoqa/internal/controller"
	"github.com/oacracker/photoqa/internal/export"
	"github.com/oacracker/photoqa/internal/files"
	"github.com/oacracker/photoqa/internal/logging"
	"github.com/oacracker/photoqa/internal/models"
	"github.com/oacracker/photoqa/internal/render"
	"github.com/oacracker/photoqa/internal/scheduler"
)

// Version info (set during build)
var Version = "dev"

const (
	exitOK      = 0
	exitFailure = 1
	exitUsage   = 2
)

const defaultConfigPath = "photoqa.yaml"

const usage = `Usage: photoqa [global flags] <command> [flags] [args]

Commands:
  upload [-export FILE] IMAGE...   upload images and wait for answers
  status [-watch] ID               show an upload, optionally until it finishes
  list [-page N]                   list uploads, newest first
  config init [PATH]               write the default configuration file
  version                          print the version

Global flags:
`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// app carries what every subcommand needs.
type app struct {
	cfg        *config.AppConfig
	configPath string
	logger     *slog.Logger
	stdout     io.Writer
	stderr     io.Writer
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	global := flag.NewFlagSet("photoqa", flag.ContinueOnError)
	global.SetOutput(stderr)
	global.Usage = func() {
		fmt.Fprint(stderr, usage)
		global.PrintDefaults()
	}
	configPath := global.String("config", defaultConfigPath, "path to the YAML config file")
	baseURL := global.String("base-url", "", "backend base URL (overrides config)")
	logLevel := global.String("log-level", "", "debug, info, warn or error (overrides config)")

	if err := global.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		return exitUsage
	}
	if global.NArg() == 0 {
		global.Usage()
		return exitUsage
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(stderr, "Failed to load configuration: %v\n", err)
		return exitFailure
	}
	if *baseURL != "" {
		cfg.Client.BaseURL = *baseURL
	}
	if *logLevel != "" {
		cfg.Logging.Level = *logLevel
	}

	level, err := logging.ParseLevel(cfg.Logging.Level)
	if err != nil {
		fmt.Fprintf(stderr, "%v\n", err)
		return exitUsage
	}

	a := &app{
		cfg:        cfg,
		configPath: *configPath,
		logger:     logging.New(stderr, level, cfg.Logging.NoColor),
		stdout:     stdout,
		stderr:     stderr,
	}

	cmd, rest := global.Arg(0), global.Args()[1:]
	switch cmd {
	case "upload":
		return a.upload(ctx, rest)
	case "status":
		return a.status(ctx, rest)
	case "list":
		return a.list(ctx, rest)
	case "config":
		return a.config(rest)
	case "version":
		fmt.Fprintf(stdout, "photoqa %s\n", Version)
		return exitOK
	default:
		fmt.Fprintf(stderr, "unknown command %q\n\n", cmd)
		global.Usage()
		return exitUsage
	}
}

func (a *app) client() (*apiclient.Client, error) {
	return apiclient.New(a.cfg.Client.BaseURL,
		apiclient.WithTimeout(a.cfg.Client.RequestTimeout),
		apiclient.WithUserAgent(a.cfg.Client.UserAgent),
		apiclient.WithLogger(a.logger),
	)
}

func (a *app) upload(ctx context.Context, args []string) int {
	fs := flag.NewFlagSet("upload", flag.ContinueOnError)
	fs.SetOutput(a.stderr)
	exportPath := fs.String("export", "", "write the finished upload to FILE (.json, .yaml or .msgpack)")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}

	if *exportPath != "" {
		if _, err := export.FormatFromPath(*exportPath); err != nil {
			fmt.Fprintf(a.stderr, "%v\n", err)
			return exitUsage
		}
	}

	selected := make([]files.Handle, 0, fs.NArg())
	for _, path := range fs.Args() {
		if !a.cfg.IsAllowedFile(path) {
			fmt.Fprintf(a.stderr, "%s is not an image (allowed: %v)\n", path, a.cfg.Upload.AllowedTypes)
			return exitUsage
		}
		if _, err := os.Stat(path); err != nil {
			fmt.Fprintf(a.stderr, "%v\n", err)
			return exitUsage
		}
		selected = append(selected, files.NewLocal(path))
	}

	client, err := a.client()
	if err != nil {
		fmt.Fprintf(a.stderr, "%v\n", err)
		return exitFailure
	}

	view := newTerminalView(a.stdout, a.logger)
	ctrl := controller.New(client, view, controller.Options{
		Interval:    a.cfg.Polling.Interval,
		MaxPolls:    a.cfg.Polling.MaxPolls,
		MaxDuration: a.cfg.Polling.MaxDuration,
		Logger:      a.logger,
	})
	defer ctrl.Close()

	ctrl.SelectFiles(selected)
	ctrl.WaitPreviews()

	if err := ctrl.TriggerUpload(ctx); err != nil {
		if errors.Is(err, controller.ErrNoFiles) {
			return exitUsage
		}
		return exitFailure
	}

	outcome, err := ctrl.Wait(ctx)
	if err != nil {
		a.logger.Debug("upload ended with error", "err", err)
		return exitFailure
	}

	if *exportPath != "" {
		if err := export.WriteFile(*exportPath, outcome.Record); err != nil {
			fmt.Fprintf(a.stderr, "%v\n", err)
			return exitFailure
		}
		a.logger.Info("results exported", "path", *exportPath)
	}

	if outcome.Phase != controller.PhaseDone {
		return exitFailure
	}
	return exitOK
}

func (a *app) status(ctx context.Context, args []string) int {
	fs := flag.NewFlagSet("status", flag.ContinueOnError)
	fs.SetOutput(a.stderr)
	watch := fs.Bool("watch", false, "keep polling until the upload finishes")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(a.stderr, "usage: photoqa status [-watch] ID")
		return exitUsage
	}
	id := fs.Arg(0)

	client, err := a.client()
	if err != nil {
		fmt.Fprintf(a.stderr, "%v\n", err)
		return exitFailure
	}

	view := newTerminalView(a.stdout, a.logger)
	record, err := client.GetUpload(ctx, id)
	if err != nil {
		view.ShowPage(render.NoticePage(render.NoticeError, fmt.Sprintf("Error fetching results: %v", err)))
		return exitFailure
	}
	view.ShowPage(render.Build(record))

	if !*watch || record.Status.IsTerminal() {
		return statusExit(record)
	}

	var last *models.Upload
	var pollErr error
	task := scheduler.Start(ctx, a.cfg.Polling.Interval, func(ctx context.Context) bool {
		record, err := client.GetUpload(ctx, id)
		if err != nil {
			if ctx.Err() == nil {
				pollErr = err
				view.ShowPage(render.NoticePage(render.NoticeError, fmt.Sprintf("Error fetching results: %v", err)))
			}
			return true
		}
		last = record
		view.ShowPage(render.Build(record))
		return record.Status.IsTerminal()
	}, scheduler.WithLogger(a.logger))
	<-task.Done()

	if pollErr != nil || last == nil {
		return exitFailure
	}
	return statusExit(last)
}

func statusExit(u *models.Upload) int {
	if u.Status == models.UploadStatusError {
		return exitFailure
	}
	return exitOK
}

func (a *app) list(ctx context.Context, args []string) int {
	fs := flag.NewFlagSet("list", flag.ContinueOnError)
	fs.SetOutput(a.stderr)
	page := fs.Int("page", 1, "page number")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}
	if *page < 1 {
		fmt.Fprintln(a.stderr, "-page must be at least 1")
		return exitUsage
	}

	client, err := a.client()
	if err != nil {
		fmt.Fprintf(a.stderr, "%v\n", err)
		return exitFailure
	}

	uploads, err := client.ListUploads(ctx, *page)
	if err != nil {
		fmt.Fprintf(a.stderr, "Error fetching uploads: %v\n", err)
		return exitFailure
	}
	if err := render.WriteList(a.stdout, uploads); err != nil {
		return exitFailure
	}
	return exitOK
}

func (a *app) config(args []string) int {
	if len(args) == 0 || args[0] != "init" {
		fmt.Fprintln(a.stderr, "usage: photoqa config init [PATH]")
		return exitUsage
	}

	path := a.configPath
	if len(args) > 1 {
		path = args[1]
	}
	if _, err := os.Stat(path); err == nil {
		fmt.Fprintf(a.stderr, "%s already exists\n", path)
		return exitFailure
	}

	if err := config.DefaultConfig().Save(path); err != nil {
		fmt.Fprintf(a.stderr, "%v\n", err)
		return exitFailure
	}
	fmt.Fprintf(a.stdout, "wrote %s\n", path)
	return exitOK
}

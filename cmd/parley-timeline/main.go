// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/parley-chat/parley/lib/config"
	"github.com/parley-chat/parley/lib/ref"
	"github.com/parley-chat/parley/lib/roomfeed"
	"github.com/parley-chat/parley/lib/snapshot"
	"github.com/parley-chat/parley/lib/timelineui"
	"github.com/parley-chat/parley/lib/version"
	"github.com/parley-chat/parley/messaging"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		var tool *toolError
		if errors.As(err, &tool) {
			if tool.Hint != "" {
				fmt.Fprintf(os.Stderr, "hint: %s\n", tool.Hint)
			}
			os.Exit(tool.ExitCode())
		}
		os.Exit(1)
	}
}

// options holds the parsed command line.
type options struct {
	configPath      string
	format          string
	width           int
	room            string
	snapshotIn      string
	snapshotOut     string
	compression     string
	color           string
	homeserver      string
	userID          string
	accessTokenFile string
	limit           int
	since           string
	utc             bool
}

func newFlagSet(opts *options) *pflag.FlagSet {
	flagSet := pflag.NewFlagSet("parley-timeline", pflag.ContinueOnError)
	flagSet.StringVar(&opts.configPath, "config", "", "config file (default: $"+config.EnvironmentVariable+", else built-in defaults)")
	flagSet.StringVarP(&opts.format, "format", "f", formatText, "output format: text, json or html")
	flagSet.IntVarP(&opts.width, "width", "w", 0, "wrap width for text output (default: terminal width, else 80)")
	flagSet.StringVar(&opts.room, "room", "", "room ID to show")
	flagSet.StringVar(&opts.snapshotIn, "snapshot-in", "", "restore the room from this snapshot frame before applying input")
	flagSet.StringVar(&opts.snapshotOut, "snapshot-out", "", "write the reconciled room to this snapshot frame")
	flagSet.StringVar(&opts.compression, "compression", "zstd", "compression for --snapshot-out: none, lz4 or zstd")
	flagSet.StringVar(&opts.color, "color", "auto", "colour output: auto, always or never")
	flagSet.StringVar(&opts.homeserver, "homeserver", "", "homeserver URL (overrides homeserver.url)")
	flagSet.StringVar(&opts.userID, "user-id", "", "account user ID (overrides homeserver.user_id)")
	flagSet.StringVar(&opts.accessTokenFile, "access-token-file", "", "access token file, - for stdin (overrides homeserver.access_token_file)")
	flagSet.IntVar(&opts.limit, "limit", 0, "events to fetch from the homeserver (default: sync.timeline_limit)")
	flagSet.StringVar(&opts.since, "since", "", "follow: resume from this next_batch token")
	flagSet.BoolVar(&opts.utc, "utc", false, "show timestamps in UTC")
	flagSet.BoolP("help", "h", false, "show help")
	flagSet.SetOutput(io.Discard)
	return flagSet
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	if len(args) > 0 && args[0] == "--version" {
		fmt.Fprintf(stdout, "parley-timeline %s\n", version.Info())
		return nil
	}

	var opts options
	flagSet := newFlagSet(&opts)
	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			printHelp(stderr, flagSet)
			return nil
		}
		return usageError("%w", err)
	}
	if help, _ := flagSet.GetBool("help"); help {
		printHelp(stderr, flagSet)
		return nil
	}

	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}
	logger, err := newLogger(stderr, isTerminal(stderr), cfg.Log)
	if err != nil {
		return usageError("%w", err)
	}

	positional := flagSet.Args()
	if len(positional) > 0 && positional[0] == "follow" {
		if len(positional) > 1 {
			return usageError("follow: unexpected argument: %s", positional[1])
		}
		return follow(ctx, cfg, opts.since, logger.With("command", "follow"))
	}
	if len(positional) > 1 {
		return usageError("unexpected argument: %s", positional[1])
	}

	display, err := renderOptions(opts, stdout)
	if err != nil {
		return err
	}
	roomID, err := parseRoomFlag(opts.room)
	if err != nil {
		return err
	}

	var events []messaging.Event
	var store snapshot.Store
	if len(positional) == 1 {
		data, err := readInput(positional[0], stdin)
		if err != nil {
			return err
		}
		roomID, events, err = parseInput(data, roomID)
		if err != nil {
			return err
		}
		compression, err := snapshot.ParseCompression(opts.compression)
		if err != nil {
			return usageError("--compression: %w", err)
		}
		store = frameFile{input: opts.snapshotIn, output: opts.snapshotOut, compression: compression}
	} else {
		if roomID.IsZero() {
			return usageError("no input file and no --room").
				WithHint("Pass a /messages or /sync response file, or --room to fetch from the homeserver.")
		}
		if opts.snapshotIn != "" || opts.snapshotOut != "" {
			return usageError("--snapshot-in and --snapshot-out apply to file input only")
		}
		var closer io.Closer
		events, store, closer, err = fetchRoom(ctx, cfg, roomID, opts.limit, logger)
		if err != nil {
			return err
		}
		defer closer.Close()
	}

	room, err := roomfeed.OpenRoom(ctx, roomfeed.RoomConfig{
		ID:          roomID,
		StashPolicy: stashPolicy(cfg.Stash),
		Store:       store,
		Logger:      logger,
	})
	if err != nil {
		return internalError("opening room %s: %w", roomID, err)
	}
	if err := room.Apply(ctx, events); err != nil {
		// Rejected and malformed events are skipped; the rest of the
		// batch is still shown.
		logger.Warn("some events were not applied", "room_id", roomID, "error", err)
	}
	logger.Debug("room reconciled",
		"room_id", roomID,
		"events", len(events),
		"view_models", len(room.Timeline()),
		"stashed", room.StashedCount(),
	)
	return writeRoom(stdout, room, opts.format, display)
}

// loadConfig resolves the config file from --config, then
// PARLEY_CONFIG, then the built-in defaults, and applies flag
// overrides.
func loadConfig(opts options) (*config.Config, error) {
	var cfg *config.Config
	var err error
	switch {
	case opts.configPath != "":
		cfg, err = config.LoadFile(opts.configPath)
	case os.Getenv(config.EnvironmentVariable) != "":
		cfg, err = config.Load()
	default:
		cfg = config.Default()
	}
	if err != nil {
		return nil, usageError("%w", err)
	}

	if opts.homeserver != "" {
		cfg.Homeserver.URL = opts.homeserver
	}
	if opts.userID != "" {
		cfg.Homeserver.UserID = opts.userID
	}
	if opts.accessTokenFile != "" {
		cfg.Homeserver.AccessTokenFile = opts.accessTokenFile
	}
	if opts.limit < 0 {
		return nil, usageError("--limit must not be negative")
	}
	if err := cfg.Validate(); err != nil {
		return nil, usageError("invalid configuration:\n%w", err)
	}
	return cfg, nil
}

func renderOptions(opts options, stdout io.Writer) (timelineui.Options, error) {
	profile, err := colorProfile(opts.color, stdout)
	if err != nil {
		return timelineui.Options{}, err
	}
	width := opts.width
	if width <= 0 {
		if file, ok := stdout.(*os.File); ok {
			if columns, _, err := term.GetSize(int(file.Fd())); err == nil {
				width = columns
			}
		}
	}
	location := time.Local
	if opts.utc {
		location = time.UTC
	}
	return timelineui.Options{Width: width, Profile: profile, Location: location}, nil
}

// fetchRoom loads a room's newest events from the homeserver, with the
// configured snapshot store so earlier runs' state carries over.
func fetchRoom(ctx context.Context, cfg *config.Config, roomID ref.RoomID, limit int, logger *slog.Logger) ([]messaging.Event, snapshot.Store, io.Closer, error) {
	if limit == 0 {
		limit = cfg.Sync.TimelineLimit
	}
	session, err := openSession(ctx, cfg.Homeserver, logger)
	if err != nil {
		return nil, nil, nil, err
	}
	defer session.Close()

	events, err := fetchMessages(ctx, session, roomID, limit)
	if err != nil {
		return nil, nil, nil, err
	}
	if err := cfg.EnsureStateDir(); err != nil {
		return nil, nil, nil, internalError("%w", err)
	}
	store, closer, err := openStore(cfg.Snapshot, logger)
	if err != nil {
		return nil, nil, nil, internalError("opening snapshot store: %w", err)
	}
	return events, store, closer, nil
}

func readInput(path string, stdin io.Reader) ([]byte, error) {
	if path == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return nil, internalError("reading stdin: %w", err)
		}
		return data, nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, notFoundError("input file %s does not exist", path)
	}
	if err != nil {
		return nil, internalError("reading input: %w", err)
	}
	return data, nil
}

func isTerminal(w io.Writer) bool {
	file, ok := w.(*os.File)
	return ok && term.IsTerminal(int(file.Fd()))
}

func printHelp(output io.Writer, flagSet *pflag.FlagSet) {
	fmt.Fprintf(output, `parley-timeline reconciles Matrix room events into a timeline and renders it.

Usage:
  parley-timeline [flags] FILE     render a /messages or /sync response (- for stdin)
  parley-timeline [flags] --room ROOM
                                   fetch and render a room's newest events
  parley-timeline [flags] follow   follow /sync, persisting rooms to the snapshot store

Input files may contain // and /* */ comments and trailing commas.

Examples:
  # Render a saved /messages response
  parley-timeline messages.json

  # Reconcile on top of an earlier run and keep the result
  parley-timeline --snapshot-in room.snap --snapshot-out room.snap batch2.json

  # Export a room as HTML
  parley-timeline --format html --room '!abc:example.org' > room.html

Flags:
`)
	flagSet.SetOutput(output)
	flagSet.PrintDefaults()
	flagSet.SetOutput(io.Discard)
}

// Command spotify-history runs the listening-history pipeline: the one-time
// authorization flow, the fetch cycle, the raw-to-partition transformer, and
// the dashboard server.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/amolrairikar/spotify-listening-history-app/internal/config"
	"github.com/amolrairikar/spotify-listening-history-app/internal/dashboard"
	"github.com/amolrairikar/spotify-listening-history-app/internal/etl"
	"github.com/amolrairikar/spotify-listening-history-app/internal/ingest"
	"github.com/amolrairikar/spotify-listening-history-app/internal/logging"
	"github.com/amolrairikar/spotify-listening-history-app/internal/params"
	"github.com/amolrairikar/spotify-listening-history-app/internal/retry"
	"github.com/amolrairikar/spotify-listening-history-app/internal/spotify"
	"github.com/amolrairikar/spotify-listening-history-app/internal/storage"
	"github.com/amolrairikar/spotify-listening-history-app/internal/web"
)

const usage = `Usage: spotify-history <command>

Commands:
  auth              serve the one-time Spotify authorization flow
  fetch             run one fetch cycle against the recently-played API
  transform <file>  process a storage notification (use "-" for stdin)
  serve             serve the dashboard and its JSON API
`

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	if len(args) == 0 {
		fmt.Fprint(os.Stderr, usage)
		return fmt.Errorf("missing command")
	}

	cfg := config.Load()
	logging.Init(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})

	switch args[0] {
	case "auth":
		return runAuth(cfg)
	case "fetch":
		return runFetch(cfg)
	case "transform":
		if len(args) < 2 {
			return fmt.Errorf("transform requires a notification file (or \"-\" for stdin)")
		}
		return runTransform(cfg, args[1])
	case "serve":
		return runServe(cfg)
	default:
		fmt.Fprint(os.Stderr, usage)
		return fmt.Errorf("unknown command %q", args[0])
	}
}

func runAuth(cfg config.Config) error {
	if err := cfg.RequireAuthFlow(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := params.New(ctx, cfg.DatabaseURL, cfg.ParamEncryptionKey)
	if err != nil {
		return fmt.Errorf("connecting parameter store: %w", err)
	}
	defer store.Close()

	exchanger := spotify.NewExchanger(cfg.SpotifyClientID, cfg.SpotifyClientSecret, cfg.RedirectURI)
	server, err := web.NewAuthServer(cfg.AuthAddr, exchanger, store)
	if err != nil {
		return fmt.Errorf("creating auth server: %w", err)
	}

	fmt.Printf("Open http://%s to authorize the application\n", cfg.AuthAddr)
	return server.Run()
}

func runFetch(cfg config.Config) error {
	if err := cfg.RequireSpotify(); err != nil {
		return err
	}
	if err := cfg.RequireParams(); err != nil {
		return err
	}
	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := params.New(ctx, cfg.DatabaseURL, cfg.ParamEncryptionKey)
	if err != nil {
		return fmt.Errorf("connecting parameter store: %w", err)
	}
	defer store.Close()

	objects, err := storage.NewFSStore(cfg.DataDir)
	if err != nil {
		return err
	}

	exchanger := spotify.NewExchanger(cfg.SpotifyClientID, cfg.SpotifyClientSecret, cfg.RedirectURI)
	fetcher := ingest.NewFetcher(store, exchanger, spotify.NewClient(), objects, cfg.BucketName, loc, retry.DefaultPolicy())

	outcome, err := fetcher.Run(ctx)
	printOutcome(outcome)
	return err
}

func runTransform(cfg config.Config, file string) error {
	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	notification, err := readNotification(file)
	if err != nil {
		return err
	}

	objects, err := storage.NewFSStore(cfg.DataDir)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	transformer := etl.NewTransformer(objects, loc, retry.DefaultPolicy())
	outcome, err := transformer.Handle(ctx, notification)
	printOutcome(outcome)
	return err
}

func runServe(cfg config.Config) error {
	objects, err := storage.NewFSStore(cfg.DataDir)
	if err != nil {
		return err
	}

	reader, err := dashboard.NewReader(objects.BucketPath(cfg.BucketName))
	if err != nil {
		return err
	}
	defer reader.Close()

	server, err := web.NewDashboardServer(cfg.DashboardAddr, reader)
	if err != nil {
		return fmt.Errorf("creating dashboard server: %w", err)
	}

	fmt.Printf("Dashboard at http://%s/dashboard\n", cfg.DashboardAddr)
	return server.Run()
}

// readNotification parses a storage notification from a file or stdin.
func readNotification(file string) (storage.Notification, error) {
	var (
		body []byte
		err  error
	)
	if file == "-" {
		body, err = io.ReadAll(os.Stdin)
	} else {
		body, err = os.ReadFile(file)
	}
	if err != nil {
		return storage.Notification{}, fmt.Errorf("reading notification: %w", err)
	}

	var n storage.Notification
	if err := json.Unmarshal(body, &n); err != nil {
		return storage.Notification{}, fmt.Errorf("parsing notification: %w", err)
	}
	return n, nil
}

// printOutcome writes the outcome JSON to stdout. 200 and 204 are both
// successful cycles.
func printOutcome(outcome any) {
	body, err := json.Marshal(outcome)
	if err != nil {
		return
	}
	fmt.Println(string(body))
}

package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/levenlabs/go-lflag"
	"github.com/raterudder/solaredge/pkg/log"
	"github.com/raterudder/solaredge/pkg/storage"
	"github.com/raterudder/solaredge/pkg/types"
)

// inspect prints the declared states of a site and their current values.
func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "failed to load .env: %v\n", err)
	}

	siteID := lflag.String("solaredge-site-id", os.Getenv("SOLAREDGE_SITE_ID"), "SolarEdge site ID to inspect")
	instance := lflag.String("instance", "0", "adapter instance the states were written under")
	s := storage.Configured()
	lflag.Configure()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	defer s.Close()

	if *siteID == "" {
		log.Ctx(ctx).ErrorContext(ctx, "solaredge-site-id is required")
		os.Exit(1)
	}

	prefix := types.StateID(*instance, *siteID, "")
	states, err := s.ListStates(ctx, prefix)
	if err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to list states", slog.String("prefix", prefix), slog.Any("error", err))
		os.Exit(1)
	}
	if len(states) == 0 {
		log.Ctx(ctx).WarnContext(ctx, "no states found", slog.String("prefix", prefix))
		return
	}
	render(os.Stdout, prefix, states)
}

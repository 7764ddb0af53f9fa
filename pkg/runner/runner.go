package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/levenlabs/go-lflag"
	"github.com/raterudder/solaredge/pkg/log"
	"github.com/raterudder/solaredge/pkg/metrics"
	"github.com/raterudder/solaredge/pkg/solaredge"
	"github.com/raterudder/solaredge/pkg/statesync"
	"github.com/raterudder/solaredge/pkg/storage"
	"github.com/raterudder/solaredge/pkg/types"
)

// Runner performs one fetch, resolve and sync pass over the configured
// resources of a site.
type Runner struct {
	monitor   solaredge.Monitor
	syncer    *statesync.Syncer
	resources []string
}

// Configured sets up the runner from flags.
func Configured(m solaredge.Monitor, db storage.Database) *Runner {
	resources := lflag.String("resources", types.ResourceOverview+","+types.ResourceCurrentPowerFlow, "comma-delimited list of resources to sync (overview, currentPowerFlow)")
	instance := lflag.String("instance", "0", "adapter instance the states are written under")

	r := &Runner{monitor: m}
	lflag.Do(func() {
		r.resources = parseResources(*resources)
		r.syncer = statesync.New(db, *instance)
	})
	return r
}

// New returns a runner for the given resources.
func New(m solaredge.Monitor, db storage.Database, instance string, resources ...string) *Runner {
	return &Runner{
		monitor:   m,
		syncer:    statesync.New(db, instance),
		resources: resources,
	}
}

func parseResources(s string) []string {
	var out []string
	for _, r := range strings.Split(s, ",") {
		if r = strings.TrimSpace(r); r != "" {
			out = append(out, r)
		}
	}
	return out
}

// Run fetches each resource in order and syncs its metrics. Transport and
// empty responses end the run. A malformed power flow only skips that
// resource but is still returned so the process exits non-zero.
func (r *Runner) Run(ctx context.Context) error {
	if err := r.monitor.Validate(); err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "invalid solaredge configuration", slog.Any("error", err))
		return err
	}
	for _, res := range r.resources {
		if res != types.ResourceOverview && res != types.ResourceCurrentPowerFlow {
			return fmt.Errorf("unknown resource: %s", res)
		}
	}
	r.monitor.LogConfig(ctx)

	siteID := r.monitor.SiteID()
	ctx = log.With(ctx, log.Ctx(ctx).With(slog.String("siteID", siteID)))

	var branchErrs []error
	for _, res := range r.resources {
		ctx := log.With(ctx, log.Ctx(ctx).With(slog.String("resource", res)))

		var (
			m   types.Metrics
			err error
		)
		switch res {
		case types.ResourceOverview:
			m, err = r.overview(ctx)
		case types.ResourceCurrentPowerFlow:
			m, err = r.powerFlow(ctx)
		}
		if err != nil {
			if errors.Is(err, solaredge.ErrMalformedSnapshot) {
				log.Ctx(ctx).ErrorContext(ctx, "skipping malformed power flow", slog.Any("error", err))
				branchErrs = append(branchErrs, err)
				continue
			}
			if errors.Is(err, solaredge.ErrEmptyContent) {
				log.Ctx(ctx).WarnContext(ctx, "empty response from solaredge", slog.Any("error", err))
			} else {
				log.Ctx(ctx).ErrorContext(ctx, "failed to fetch from solaredge", slog.Any("error", err))
			}
			return fmt.Errorf("failed to fetch %s: %w", res, err)
		}

		report := r.syncer.Sync(ctx, siteID, m)
		if err := report.Err(); err != nil {
			log.Ctx(ctx).WarnContext(ctx, "some states failed to sync", slog.Any("error", err))
		}
	}
	return errors.Join(branchErrs...)
}

func (r *Runner) overview(ctx context.Context) (types.Metrics, error) {
	o, err := r.monitor.Overview(ctx)
	if err != nil {
		return nil, err
	}
	log.Ctx(ctx).DebugContext(ctx, "fetched overview", slog.String("lastUpdateTime", o.LastUpdateTime))
	return metrics.OverviewMetrics(o), nil
}

func (r *Runner) powerFlow(ctx context.Context) (types.Metrics, error) {
	s, err := r.monitor.CurrentPowerFlow(ctx)
	if err != nil {
		return nil, err
	}
	res := metrics.PowerFlow(s)
	for _, e := range res.UnknownEdges {
		log.Ctx(ctx).WarnContext(ctx, "unknown power flow edge", slog.String("edge", e.String()))
	}
	for _, c := range res.Conflicts {
		edges := make([]string, 0, len(c.Edges))
		for _, e := range c.Edges {
			edges = append(edges, e.String())
		}
		log.Ctx(ctx).WarnContext(
			ctx,
			"conflicting power flow edges",
			slog.String("metric", c.Metric),
			slog.String("edges", strings.Join(edges, ", ")),
		)
	}
	log.Ctx(ctx).DebugContext(
		ctx,
		"resolved power flow",
		slog.Int("edges", len(s.Edges)),
		slog.Bool("storage", s.HasStorage()),
	)
	return res.Metrics, nil
}

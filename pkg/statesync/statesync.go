package statesync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/raterudder/solaredge/pkg/log"
	"github.com/raterudder/solaredge/pkg/metrics"
	"github.com/raterudder/solaredge/pkg/storage"
	"github.com/raterudder/solaredge/pkg/types"
)

// Syncer declares the slots for a site's metrics and writes their values.
type Syncer struct {
	db       storage.Database
	instance string
}

// New returns a Syncer writing under the given adapter instance.
func New(db storage.Database, instance string) *Syncer {
	return &Syncer{db: db, instance: instance}
}

// DeclarationPlan lists the slots that must be declared before writing.
type DeclarationPlan struct {
	SiteID string
	// Names is empty when every slot already exists.
	Names []string
}

// DeclareReport records which slots failed to declare.
type DeclareReport struct {
	Declared []string
	Failed   map[string]error
}

// WriteReport records the outcome of writing each metric.
type WriteReport struct {
	Changed   []string
	Unchanged []string
	Skipped   []string
	Failed    map[string]error
}

// Err joins every per-slot write failure.
func (r WriteReport) Err() error {
	if len(r.Failed) == 0 {
		return nil
	}
	var errs []error
	for _, name := range sortedKeys(r.Failed) {
		errs = append(errs, fmt.Errorf("%s: %w", name, r.Failed[name]))
	}
	return errors.Join(errs...)
}

func (s *Syncer) stateID(siteID, name string) string {
	return types.StateID(s.instance, siteID, name)
}

// Plan looks up every slot once. If any is missing, or the lookup fails, all
// of the names are redeclared so a site never ends up half declared.
func (s *Syncer) Plan(ctx context.Context, siteID string, names []string) DeclarationPlan {
	plan := DeclarationPlan{SiteID: siteID}
	for _, name := range names {
		id := s.stateID(siteID, name)
		_, err := s.db.GetState(ctx, id)
		if err == nil {
			continue
		}
		if errors.Is(err, storage.ErrStateNotFound) {
			log.Ctx(ctx).DebugContext(ctx, "state missing, declaring site", slog.String("stateID", id))
		} else {
			log.Ctx(ctx).WarnContext(ctx, "failed to look up state, declaring site", slog.String("stateID", id), slog.Any("error", err))
		}
		plan.Names = append([]string(nil), names...)
		sort.Strings(plan.Names)
		return plan
	}
	return plan
}

// Declare declares every slot in the plan. A failure is logged and the
// remaining slots are still declared.
func (s *Syncer) Declare(ctx context.Context, plan DeclarationPlan) DeclareReport {
	report := DeclareReport{Failed: map[string]error{}}
	for _, name := range plan.Names {
		spec, ok := metrics.Slot(name)
		if !ok {
			log.Ctx(ctx).WarnContext(ctx, "declaring unknown metric as number", slog.String("name", name))
		}
		id := s.stateID(plan.SiteID, name)
		if err := s.db.DeclareState(ctx, id, spec); err != nil {
			log.Ctx(ctx).ErrorContext(ctx, "failed to declare state", slog.String("stateID", id), slog.Any("error", err))
			report.Failed[name] = err
			continue
		}
		report.Declared = append(report.Declared, name)
	}
	if len(report.Declared) > 0 {
		log.Ctx(ctx).InfoContext(
			ctx,
			"declared states",
			slog.String("siteID", plan.SiteID),
			slog.Int("count", len(report.Declared)),
		)
	}
	return report
}

// Write stores every metric with ack set. Slots that failed to declare in
// this run are skipped.
func (s *Syncer) Write(ctx context.Context, siteID string, m types.Metrics, declared DeclareReport) WriteReport {
	report := WriteReport{Failed: map[string]error{}}
	for _, name := range m.Names() {
		id := s.stateID(siteID, name)
		if err, ok := declared.Failed[name]; ok {
			log.Ctx(ctx).WarnContext(ctx, "skipping write of undeclared state", slog.String("stateID", id), slog.Any("error", err))
			report.Skipped = append(report.Skipped, name)
			continue
		}
		changed, err := s.db.SetStateChanged(ctx, id, m[name], true)
		if err != nil {
			log.Ctx(ctx).ErrorContext(ctx, "failed to write state", slog.String("stateID", id), slog.Any("error", err))
			report.Failed[name] = err
			continue
		}
		if changed {
			log.Ctx(ctx).DebugContext(ctx, "state changed", slog.String("stateID", id), slog.String("value", m[name].String()))
			report.Changed = append(report.Changed, name)
		} else {
			report.Unchanged = append(report.Unchanged, name)
		}
	}
	return report
}

// Sync plans, declares and writes the metrics of one site.
func (s *Syncer) Sync(ctx context.Context, siteID string, m types.Metrics) WriteReport {
	plan := s.Plan(ctx, siteID, m.Names())
	declared := s.Declare(ctx, plan)
	report := s.Write(ctx, siteID, m, declared)
	log.Ctx(ctx).InfoContext(
		ctx,
		"synced states",
		slog.String("siteID", siteID),
		slog.Int("changed", len(report.Changed)),
		slog.Int("unchanged", len(report.Unchanged)),
		slog.Int("skipped", len(report.Skipped)),
		slog.Int("failed", len(report.Failed)),
	)
	return report
}

func sortedKeys(m map[string]error) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

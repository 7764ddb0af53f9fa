package solaredge

import (
	"context"

	"github.com/raterudder/solaredge/pkg/types"
)

// Monitor defines the interface for reading a site from the SolarEdge monitoring API.
type Monitor interface {
	// Validate returns ErrConfigMissing if the site or credentials are unset.
	Validate() error

	// LogConfig logs the configuration with the credentials redacted.
	LogConfig(ctx context.Context)

	// SiteID returns the site this monitor polls.
	SiteID() string

	// CurrentPowerFlow returns the current power flow graph of the site.
	CurrentPowerFlow(ctx context.Context) (types.Snapshot, error)

	// Overview returns the site's energy summary and current power.
	Overview(ctx context.Context) (types.Overview, error)
}

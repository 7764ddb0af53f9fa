package solaredge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/levenlabs/go-lflag"
	"github.com/raterudder/solaredge/pkg/common"
	"github.com/raterudder/solaredge/pkg/log"
	"github.com/raterudder/solaredge/pkg/types"
)

const (
	defaultBaseURL = "https://monitoringapi.solaredge.com"
	apiKeyParam    = "api_key"
)

// Client implements the Monitor interface for the SolarEdge monitoring API.
// Every call issues exactly one GET request, there are no retries.
type Client struct {
	client  *http.Client
	baseURL string
	siteID  string
	apiKey  string
}

var _ Monitor = (*Client)(nil)

// Configured sets up the SolarEdge client from flags. The site ID and API key
// default to SOLAREDGE_SITE_ID and SOLAREDGE_API_KEY so they can be supplied
// through the environment or a .env file.
func Configured() *Client {
	c := &Client{}
	siteID := lflag.String("solaredge-site-id", os.Getenv("SOLAREDGE_SITE_ID"), "SolarEdge site ID to poll")
	apiKey := lflag.String("solaredge-api-key", os.Getenv("SOLAREDGE_API_KEY"), "SolarEdge monitoring API key")
	baseURL := lflag.String("solaredge-api-url", defaultBaseURL, "URL for the SolarEdge monitoring API")
	timeout := lflag.Duration("solaredge-timeout", 30*time.Second, "Timeout for requests to the monitoring API")

	lflag.Do(func() {
		c.siteID = *siteID
		c.apiKey = *apiKey
		c.baseURL = *baseURL
		c.client = common.HTTPClient(*timeout)
	})
	return c
}

// NewClient returns a client for the given site. A nil httpClient uses the
// default client with a one minute timeout.
func NewClient(baseURL, siteID, apiKey string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = common.HTTPClient(time.Minute)
	}
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		client:  httpClient,
		baseURL: baseURL,
		siteID:  siteID,
		apiKey:  apiKey,
	}
}

// Validate ensures the configuration is valid.
func (c *Client) Validate() error {
	if c.siteID == "" || c.apiKey == "" {
		return ErrConfigMissing
	}
	if _, err := url.Parse(c.baseURL); err != nil {
		return fmt.Errorf("failed to parse solaredge url (%s): %w", c.baseURL, err)
	}
	return nil
}

// SiteID returns the configured site ID.
func (c *Client) SiteID() string {
	return c.siteID
}

// LogConfig logs the configuration with the API key reduced to a prefix.
func (c *Client) LogConfig(ctx context.Context) {
	log.Ctx(ctx).InfoContext(
		ctx,
		"solaredge config",
		slog.String("siteID", c.siteID),
		log.Secret("apiKey", c.apiKey),
	)
}

func (c *Client) newGetRequest(ctx context.Context, resource string) (*http.Request, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return nil, err
	}
	u.Path, err = url.JoinPath(u.Path, "site", c.siteID, resource+".json")
	if err != nil {
		return nil, err
	}
	params := url.Values{}
	params.Set(apiKeyParam, c.apiKey)
	u.RawQuery = params.Encode()
	return http.NewRequestWithContext(ctx, "GET", u.String(), nil)
}

// doRequest performs the request and returns the body of a 200 response.
func (c *Client) doRequest(req *http.Request) ([]byte, int, error) {
	ctx := req.Context()
	redacted := common.RedactURL(req.URL, apiKeyParam)
	log.Ctx(ctx).DebugContext(ctx, "solaredge request", slog.String("url", redacted))

	resp, err := c.client.Do(req)
	if err != nil {
		// the url in a *url.Error contains the api key
		return nil, 0, fmt.Errorf("%w: %s: %s", ErrTransport, redacted, unwrapURLError(err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, resp.StatusCode, fmt.Errorf("%w: status %d", ErrTransport, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("%w: reading body: %w", ErrTransport, err)
	}
	return body, resp.StatusCode, nil
}

func unwrapURLError(err error) error {
	if uerr, ok := err.(*url.Error); ok {
		return uerr.Err
	}
	return err
}

// decodeField decodes the body as a JSON object and returns the raw value of
// the given top level field. A missing, null, or empty field is reported as
// ErrEmptyContent.
func decodeField(body []byte, status int, field string) (json.RawMessage, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return nil, fmt.Errorf("%w: empty body (status %d)", ErrEmptyContent, status)
	}
	var top map[string]json.RawMessage
	if err := json.Unmarshal(body, &top); err != nil {
		return nil, fmt.Errorf("%w: invalid json (status %d): %w", ErrEmptyContent, status, err)
	}
	raw, ok := top[field]
	raw = bytes.TrimSpace(raw)
	if !ok || len(raw) == 0 || bytes.Equal(raw, []byte("null")) || bytes.Equal(raw, []byte("{}")) {
		return nil, fmt.Errorf("%w: missing %s (status %d)", ErrEmptyContent, field, status)
	}
	return raw, nil
}

type powerFlowConnection struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// CurrentPowerFlow fetches the currentPowerFlow resource and converts it into a
// Snapshot. Nodes are keyed by role names in varying case alongside the
// "connections", "unit" and "updateRefreshRate" fields.
func (c *Client) CurrentPowerFlow(ctx context.Context) (types.Snapshot, error) {
	req, err := c.newGetRequest(ctx, types.ResourceCurrentPowerFlow)
	if err != nil {
		return types.Snapshot{}, err
	}
	body, status, err := c.doRequest(req)
	if err != nil {
		return types.Snapshot{}, err
	}
	raw, err := decodeField(body, status, "siteCurrentPowerFlow")
	if err != nil {
		return types.Snapshot{}, err
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return types.Snapshot{}, fmt.Errorf("%w: siteCurrentPowerFlow is not an object: %w", ErrEmptyContent, err)
	}

	snap := types.Snapshot{
		Nodes: make(map[types.Role]types.Node, len(types.Roles)),
	}
	for key, val := range fields {
		switch key {
		case "connections":
			var conns []powerFlowConnection
			if err := json.Unmarshal(val, &conns); err != nil {
				return types.Snapshot{}, fmt.Errorf("%w: invalid connections: %w", ErrMalformedSnapshot, err)
			}
			for _, conn := range conns {
				snap.Edges = append(snap.Edges, types.NewEdge(conn.From, conn.To))
			}
		case "unit":
			if err := json.Unmarshal(val, &snap.Unit); err != nil {
				return types.Snapshot{}, fmt.Errorf("%w: invalid unit: %w", ErrMalformedSnapshot, err)
			}
		case "updateRefreshRate":
			if err := json.Unmarshal(val, &snap.UpdateRefreshRate); err != nil {
				log.Ctx(ctx).WarnContext(ctx, "invalid updateRefreshRate", slog.String("value", string(val)))
			}
		default:
			role, ok := types.ParseRole(key)
			if !ok {
				log.Ctx(ctx).DebugContext(ctx, "ignoring unknown power flow field", slog.String("field", key))
				continue
			}
			var n types.Node
			if err := json.Unmarshal(val, &n); err != nil {
				return types.Snapshot{}, fmt.Errorf("%w: invalid %s node: %w", ErrMalformedSnapshot, role, err)
			}
			snap.Nodes[role] = n
		}
	}

	for _, role := range []types.Role{types.RoleLoad, types.RolePV} {
		if _, ok := snap.Nodes[role]; !ok {
			return types.Snapshot{}, fmt.Errorf("%w: missing %s node", ErrMalformedSnapshot, role)
		}
	}

	log.Ctx(ctx).DebugContext(
		ctx,
		"solaredge power flow",
		slog.String("unit", snap.Unit),
		slog.Int("nodes", len(snap.Nodes)),
		slog.Int("connections", len(snap.Edges)),
		slog.Bool("storage", snap.HasStorage()),
	)
	return snap, nil
}

type overviewResult struct {
	LastUpdateTime string `json:"lastUpdateTime"`
	LifeTimeData   struct {
		Energy float64 `json:"energy"`
	} `json:"lifeTimeData"`
	LastYearData struct {
		Energy float64 `json:"energy"`
	} `json:"lastYearData"`
	LastMonthData struct {
		Energy float64 `json:"energy"`
	} `json:"lastMonthData"`
	LastDayData struct {
		Energy float64 `json:"energy"`
	} `json:"lastDayData"`
	CurrentPower struct {
		Power float64 `json:"power"`
	} `json:"currentPower"`
	MeasuredBy string `json:"measuredBy"`
}

// Overview fetches the overview resource.
func (c *Client) Overview(ctx context.Context) (types.Overview, error) {
	req, err := c.newGetRequest(ctx, types.ResourceOverview)
	if err != nil {
		return types.Overview{}, err
	}
	body, status, err := c.doRequest(req)
	if err != nil {
		return types.Overview{}, err
	}
	raw, err := decodeField(body, status, "overview")
	if err != nil {
		return types.Overview{}, err
	}

	var res overviewResult
	if err := json.Unmarshal(raw, &res); err != nil {
		return types.Overview{}, fmt.Errorf("%w: invalid overview: %w", ErrEmptyContent, err)
	}

	log.Ctx(ctx).InfoContext(
		ctx,
		"solaredge current power",
		slog.String("siteID", c.siteID),
		slog.Float64("watts", res.CurrentPower.Power),
	)
	return types.Overview{
		LastUpdateTime:  res.LastUpdateTime,
		CurrentPower:    res.CurrentPower.Power,
		LifeTimeEnergy:  res.LifeTimeData.Energy,
		LastYearEnergy:  res.LastYearData.Energy,
		LastMonthEnergy: res.LastMonthData.Energy,
		LastDayEnergy:   res.LastDayData.Energy,
		MeasuredBy:      res.MeasuredBy,
	}, nil
}

package solaredge

import "errors"

var (
	// ErrConfigMissing is returned when the site ID or API key is not set.
	ErrConfigMissing = errors.New("site id or api key not set")
	// ErrTransport is returned when the request failed or the status was not 200.
	ErrTransport = errors.New("monitoring api request failed")
	// ErrEmptyContent is returned for a 200 response without a usable body.
	ErrEmptyContent = errors.New("response has no valid content")
	// ErrMalformedSnapshot is returned when a power flow is missing LOAD or PV.
	ErrMalformedSnapshot = errors.New("malformed power flow")
)

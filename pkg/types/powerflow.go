package types

import "strings"

// Role is one of the fixed logical participants in a site's power topology.
type Role string

const (
	RolePV      Role = "PV"
	RoleLoad    Role = "LOAD"
	RoleGrid    Role = "GRID"
	RoleStorage Role = "STORAGE"
)

// Roles lists every known role.
var Roles = []Role{RolePV, RoleLoad, RoleGrid, RoleStorage}

// ParseRole converts the role names reported by the monitoring API into a Role.
// The API is inconsistent about casing ("Load", "LOAD", "Storage") so matching
// is case-insensitive.
func ParseRole(s string) (Role, bool) {
	r := Role(strings.ToUpper(strings.TrimSpace(s)))
	switch r {
	case RolePV, RoleLoad, RoleGrid, RoleStorage:
		return r, true
	default:
		return "", false
	}
}

// Node is the instantaneous state of one role.
type Node struct {
	Status       string  `json:"status,omitempty"`
	CurrentPower float64 `json:"currentPower"`
	// ChargeLevel and Critical are only reported for STORAGE.
	ChargeLevel float64 `json:"chargeLevel,omitempty"`
	Critical    bool    `json:"critical,omitempty"`
}

// Edge is a directed "power is currently flowing from From to To" fact.
// RawFrom and RawTo hold the names exactly as reported so that edges with
// unrecognized endpoints can still be reported.
type Edge struct {
	From    Role   `json:"from"`
	To      Role   `json:"to"`
	RawFrom string `json:"rawFrom,omitempty"`
	RawTo   string `json:"rawTo,omitempty"`
}

// NewEdge builds an Edge from the names reported by the API.
func NewEdge(from, to string) Edge {
	e := Edge{RawFrom: from, RawTo: to}
	e.From, _ = ParseRole(from)
	e.To, _ = ParseRole(to)
	return e
}

// Known returns true if both endpoints are recognized roles.
func (e Edge) Known() bool {
	return e.From != "" && e.To != ""
}

// String returns the edge in "FROM -> TO" form.
func (e Edge) String() string {
	from, to := string(e.From), string(e.To)
	if from == "" {
		from = e.RawFrom
	}
	if to == "" {
		to = e.RawTo
	}
	return from + " -> " + to
}

// Snapshot is the power flow of a site at one point in time.
type Snapshot struct {
	Unit              string        `json:"unit"`
	UpdateRefreshRate int           `json:"updateRefreshRate"`
	Nodes             map[Role]Node `json:"nodes"`
	Edges             []Edge        `json:"edges"`
}

// Node returns the node for the role and whether it is present.
func (s Snapshot) Node(r Role) (Node, bool) {
	n, ok := s.Nodes[r]
	return n, ok
}

// HasStorage returns true if the site reported a battery.
func (s Snapshot) HasStorage() bool {
	_, ok := s.Nodes[RoleStorage]
	return ok
}

package metrics

import (
	"sort"

	"github.com/raterudder/solaredge/pkg/types"
)

// Power flow metric names.
const (
	Load         = "load"
	PV           = "pv"
	GridIn       = "gridIn"
	GridOut      = "gridOut"
	GridAbs      = "gridAbs"
	StorageIn    = "storageIn"
	StorageOut   = "storageOut"
	StorageAbs   = "storageAbs"
	StorageLevel = "storageLevel"
)

// flow accumulates the directional metrics while edges are applied.
type flow struct {
	gridIn, gridOut       float64
	storageIn, storageOut float64
}

// rule derives metrics from a single edge. requires lists the nodes that must
// be present for the rule to apply and writes lists the directional metrics it
// sets so collisions between edges can be detected.
type rule struct {
	requires []types.Role
	writes   []string
	apply    func(s types.Snapshot, f *flow)
}

type edgeKey struct {
	from, to types.Role
}

// rules maps each recognized edge to its derivation. Edges not in this table
// do not contribute to any metric.
var rules = map[edgeKey]rule{
	// battery discharging into the house
	{types.RoleStorage, types.RoleLoad}: {
		requires: []types.Role{types.RoleStorage},
		writes:   []string{StorageOut, StorageAbs},
		apply: func(s types.Snapshot, f *flow) {
			f.storageOut = s.Nodes[types.RoleStorage].CurrentPower
		},
	},
	// importing from the grid
	{types.RoleGrid, types.RoleLoad}: {
		requires: []types.Role{types.RoleGrid},
		writes:   []string{GridIn, GridAbs},
		apply: func(s types.Snapshot, f *flow) {
			f.gridIn = s.Nodes[types.RoleGrid].CurrentPower
		},
	},
	// the load node already reports total consumption
	{types.RolePV, types.RoleLoad}: {},
	// battery charging from the panels
	{types.RolePV, types.RoleStorage}: {
		requires: []types.Role{types.RoleStorage},
		writes:   []string{StorageIn, StorageAbs},
		apply: func(s types.Snapshot, f *flow) {
			f.storageIn = s.Nodes[types.RoleStorage].CurrentPower
		},
	},
	// exporting to the grid
	{types.RoleLoad, types.RoleGrid}: {
		requires: []types.Role{types.RoleGrid},
		writes:   []string{GridOut, GridAbs},
		apply: func(s types.Snapshot, f *flow) {
			f.gridOut = s.Nodes[types.RoleGrid].CurrentPower
		},
	},
}

// Conflict is reported when more than one distinct edge writes the same metric.
type Conflict struct {
	Metric string
	Edges  []types.Edge
}

// Result is the outcome of resolving a power flow snapshot.
type Result struct {
	Metrics types.Metrics
	// UnknownEdges were skipped because no rule matched or a node they
	// reference is missing from the snapshot.
	UnknownEdges []types.Edge
	Conflicts    []Conflict
}

// PowerFlow derives the signed grid and storage metrics from a snapshot.
//
// Net ("Abs") values are in minus out: gridAbs is positive while importing
// and negative while exporting, storageAbs is positive while charging and
// negative while discharging. They are computed after all edges are applied
// so the result does not depend on edge order.
func PowerFlow(s types.Snapshot) Result {
	var (
		f       flow
		unknown []types.Edge
		writers = make(map[string][]types.Edge)
		seen    = make(map[edgeKey]bool)
	)

	for _, e := range s.Edges {
		key := edgeKey{e.From, e.To}
		r, ok := rules[key]
		if !ok || !e.Known() || !hasNodes(s, r.requires) {
			unknown = append(unknown, e)
			continue
		}
		// a repeated edge writes the same values again
		if seen[key] {
			continue
		}
		seen[key] = true
		for _, m := range r.writes {
			writers[m] = append(writers[m], e)
		}
		if r.apply != nil {
			r.apply(s, &f)
		}
	}

	m := types.Metrics{
		Load:    types.Number(s.Nodes[types.RoleLoad].CurrentPower),
		PV:      types.Number(s.Nodes[types.RolePV].CurrentPower),
		GridIn:  types.Number(f.gridIn),
		GridOut: types.Number(f.gridOut),
		GridAbs: types.Number(f.gridIn - f.gridOut),
	}
	if st, ok := s.Node(types.RoleStorage); ok {
		m[StorageIn] = types.Number(f.storageIn)
		m[StorageOut] = types.Number(f.storageOut)
		m[StorageAbs] = types.Number(f.storageIn - f.storageOut)
		m[StorageLevel] = types.Number(st.ChargeLevel)
	}

	return Result{
		Metrics:      m,
		UnknownEdges: unknown,
		Conflicts:    conflicts(writers),
	}
}

func hasNodes(s types.Snapshot, roles []types.Role) bool {
	for _, r := range roles {
		if _, ok := s.Nodes[r]; !ok {
			return false
		}
	}
	return true
}

func conflicts(writers map[string][]types.Edge) []Conflict {
	var out []Conflict
	for metric, edges := range writers {
		if len(edges) > 1 {
			out = append(out, Conflict{Metric: metric, Edges: edges})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Metric < out[j].Metric
	})
	return out
}

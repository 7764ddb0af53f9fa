package main

import (
	"io"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/olekukonko/tablewriter"
	"github.com/raterudder/solaredge/pkg/types"
)

func row(prefix string, s types.State, now time.Time) []string {
	value, changed := "-", "never"
	if s.Value != nil {
		value = s.Value.String()
		if s.Spec.Unit != "" {
			value += " " + s.Spec.Unit
		}
	}
	if !s.LastChange.IsZero() {
		changed = humanize.RelTime(s.LastChange, now, "ago", "from now")
	}
	return []string{
		strings.TrimPrefix(s.ID, prefix),
		string(s.Spec.Type),
		value,
		boolString(s.Ack),
		changed,
	}
}

func boolString(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func render(w io.Writer, prefix string, states []types.State) {
	now := time.Now()
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"State", "Type", "Value", "Ack", "Changed"})
	table.SetAutoFormatHeaders(false)
	for _, s := range states {
		table.Append(row(prefix, s, now))
	}
	table.Render()
}

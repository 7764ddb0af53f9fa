package metrics

import "github.com/raterudder/solaredge/pkg/types"

// Overview metric names.
const (
	LastUpdateTime = "lastUpdateTime"
	CurrentPower   = "currentPower"
	LifeTimeData   = "lifeTimeData"
	LastYearData   = "lastYearData"
	LastMonthData  = "lastMonthData"
	LastDayData    = "lastDayData"
)

// OverviewMetrics copies the overview fields into metrics.
func OverviewMetrics(o types.Overview) types.Metrics {
	return types.Metrics{
		LastUpdateTime: types.Text(o.LastUpdateTime),
		CurrentPower:   types.Number(o.CurrentPower),
		LifeTimeData:   types.Number(o.LifeTimeEnergy),
		LastYearData:   types.Number(o.LastYearEnergy),
		LastMonthData:  types.Number(o.LastMonthEnergy),
		LastDayData:    types.Number(o.LastDayEnergy),
	}
}

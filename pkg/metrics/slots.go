package metrics

import "github.com/raterudder/solaredge/pkg/types"

func numberSlot(name, desc, unit string) types.SlotSpec {
	return types.SlotSpec{
		Name: name,
		Type: types.SlotTypeNumber,
		Read: true,
		Role: "value",
		Desc: desc,
		Unit: unit,
	}
}

var slots = map[string]types.SlotSpec{
	Load:         numberSlot(Load, "current power in kW", "kW"),
	PV:           numberSlot(PV, "current power in kW", "kW"),
	GridIn:       numberSlot(GridIn, "current power in kW", "kW"),
	GridOut:      numberSlot(GridOut, "current power in kW", "kW"),
	GridAbs:      numberSlot(GridAbs, "current power in kW", "kW"),
	StorageIn:    numberSlot(StorageIn, "current power in kW", "kW"),
	StorageOut:   numberSlot(StorageOut, "current power in kW", "kW"),
	StorageAbs:   numberSlot(StorageAbs, "current power in kW", "kW"),
	StorageLevel: numberSlot(StorageLevel, "current chargeLevel in %", "%"),

	LastUpdateTime: {
		Name: LastUpdateTime,
		Type: types.SlotTypeString,
		Read: true,
		Role: "value",
		Desc: "Last update from inverter",
	},
	CurrentPower:  numberSlot(CurrentPower, "current power in W", "W"),
	LifeTimeData:  numberSlot(LifeTimeData, "Lifetime energy in Wh", "Wh"),
	LastYearData:  numberSlot(LastYearData, "last year energy in Wh", "Wh"),
	LastMonthData: numberSlot(LastMonthData, "last month energy in Wh", "Wh"),
	LastDayData:   numberSlot(LastDayData, "last day energy in Wh", "Wh"),
}

// Slot returns the declaration for a metric. Unknown names get a read-only
// numeric slot without a unit.
func Slot(name string) (types.SlotSpec, bool) {
	s, ok := slots[name]
	if !ok {
		return numberSlot(name, name, ""), false
	}
	return s, true
}

package utils

import (
	"strings"
	"time"
	"unicode"

	"github.com/iliyamo/repairdesk/internal/model"
)

// repairDays is the usual turnaround per device type.
var repairDays = map[string]int{
	model.DeviceFridge:         3,
	model.DeviceWashingMachine: 2,
	model.DeviceStove:          1,
	model.DeviceMicrowave:      1,
	model.DeviceDishwasher:     2,
	model.DeviceTV:             2,
	model.DeviceAirConditioner: 3,
	model.DeviceOther:          2,
}

const defaultRepairDays = 2

// SuggestDeadline returns the expected completion date (DateLayout) for a
// request of deviceType created at created.
func SuggestDeadline(created time.Time, deviceType string) string {
	days, ok := repairDays[deviceType]
	if !ok {
		days = defaultRepairDays
	}
	return created.AddDate(0, 0, days).Format(model.DateLayout)
}

// ReportFilename builds the file name for an exported text report, e.g.
// "отчет_статистика_20240102_150405.txt".  Anything that is not a letter,
// digit or underscore in reportType becomes '_'.
func ReportFilename(reportType string, now time.Time) string {
	safe := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' {
			return r
		}
		return '_'
	}, strings.ToLower(reportType))
	return "отчет_" + safe + "_" + now.Format("20060102_150405") + ".txt"
}

package schema

import (
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
)

// DateLayout is how normalized dates are written back out.
const DateLayout = "2006-01-02"

// dateLayouts are tried in order. Day-first forms come before month-first
// ones because the office's exports use dd/mm/yyyy; "01-02-06" is the
// spreadsheet's built-in short date display (mm-dd-yy).
var dateLayouts = []string{
	DateLayout,
	"2006-01-02 15:04:05",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006/01/02",
	"02/01/2006",
	"2/1/2006",
	"02-01-2006",
	"02/01/2006 15:04",
	"01-02-06",
	"1/2/06",
	"02 Jan 2006",
	"2 January 2006",
}

// Excel serial numbers are accepted between these bounds (1954-10-10 and
// 9999-12-31); small integers are more likely years or codes than dates.
const (
	minExcelSerial = 20000
	maxExcelSerial = 2958465
)

// ParseDate interprets a spreadsheet cell as a calendar date. Impossible
// dates such as 2023-02-30 are rejected.
func ParseDate(value string) (time.Time, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, false
	}

	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return truncateDay(t), true
		}
	}

	if serial, err := strconv.ParseFloat(value, 64); err == nil && serial >= minExcelSerial && serial <= maxExcelSerial {
		if t, err := excelize.ExcelDateToTime(serial, false); err == nil {
			return truncateDay(t), true
		}
	}

	return time.Time{}, false
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

package reporting

import "time"

// TimeRange is half-open: From is included, To is not.
type TimeRange struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// Summary aggregates submission log entries over a range.
type Summary struct {
	Range TimeRange `json:"range"`

	Total      int `json:"total"`
	Successful int `json:"successful"`
	Failed     int `json:"failed"`

	// SuccessRate is a percentage rounded to one decimal; 0 when Total is 0.
	SuccessRate float64 `json:"success_rate"`

	Daily []DailyCount `json:"daily"`
}

// DailyCount is one UTC calendar day. Days without entries are omitted.
type DailyCount struct {
	Date       string `json:"date"`
	Total      int    `json:"total"`
	Successful int    `json:"successful"`
	Failed     int    `json:"failed"`
}

package models

import "time"

// DataType selects which kind of series a HistoryRequest wants back.
type DataType int

const (
	Trade DataType = iota
	Quote
	OpenInterestData
)

// Resolution is a bar size in the resolution-fallback ladder.
type Resolution int

const (
	Daily Resolution = iota
	Hour
	Minute
)

func (r Resolution) String() string {
	switch r {
	case Daily:
		return "daily"
	case Hour:
		return "hour"
	case Minute:
		return "minute"
	default:
		return "unknown"
	}
}

// HistoryRequest names one (symbol, window, data type, resolution) history
// fetch. ID correlates a request with its ladder retries in logs.
type HistoryRequest struct {
	ID                string
	Symbol            Symbol
	StartUTC          time.Time
	EndUTC            time.Time
	DataType          DataType
	Resolution        Resolution
	ExchangeHours     string // exchange calendar key, e.g. "usa-equity"
	DataZone          *time.Location
	ExtendedHours     bool
	NormalizationMode string
}

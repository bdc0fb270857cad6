package domain

import "time"

// SearchRecord summarizes one finished search for the search log.
type SearchRecord struct {
	Query      string
	Root       string
	Mode       string
	Duration   time.Duration
	MatchCount int
	Returned   int
	TopScore   float64
	TopID      string
	Degraded   bool
	Retries    int
}

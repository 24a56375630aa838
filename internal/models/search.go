package models

import "time"

// SearchResponse is the envelope returned by the search API "everything"
// endpoint. Status is "ok" or "error"; Code and Message are only set on
// error responses.
type SearchResponse struct {
	Status       string       `json:"status"`
	TotalResults int          `json:"totalResults"`
	Articles     []RawArticle `json:"articles"`
	Code         string       `json:"code,omitempty"`
	Message      string       `json:"message,omitempty"`
}

// PollWindow bounds one tick's search query. Recomputed from the wall clock
// every tick; nothing is persisted between ticks.
type PollWindow struct {
	From time.Time
	To   time.Time
}

// NewPollWindow returns the window [now - lookback, now).
func NewPollWindow(now time.Time, lookback time.Duration) PollWindow {
	return PollWindow{From: now.Add(-lookback), To: now}
}

package model

type ChatRequest struct {
	Message     string         `json:"message"`
	HouseholdID string         `json:"householdId,omitempty"`
	Filters     []Filter       `json:"filters,omitempty"`
	History     []HistoryEntry `json:"history,omitempty"`
}

// UpdateFilterRequest carries a raw intensity; the service rounds and clamps it.
type UpdateFilterRequest struct {
	LabelKey     string  `json:"labelKey"`
	MaxIntensity float64 `json:"maxIntensity"`
	HardNo       bool    `json:"hardNo"`
}

type LabelsRequest struct {
	Labels []string `json:"labels"`
}

type LogWatchRequest struct {
	MovieID     string   `json:"movieId"`
	WatchDate   string   `json:"watchDate,omitempty" binding:"omitempty,datetime=2006-01-02"`
	WatchedBy   []string `json:"watchedBy,omitempty"`
	Rating      *int     `json:"rating,omitempty" binding:"omitempty,min=1,max=5"`
	HouseholdID string   `json:"householdId,omitempty"`
}

type BlockRequest struct {
	MovieID     string `json:"movieId"`
	HouseholdID string `json:"householdId,omitempty"`
}

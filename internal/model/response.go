package model

import "time"

// ActionResult is returned by every preference mutation.
type ActionResult struct {
	OK      bool     `json:"ok"`
	Error   string   `json:"error,omitempty"`
	Added   []string `json:"added,omitempty"`
	Skipped []string `json:"skipped,omitempty"`
}

type ChatResponse struct {
	Message         string           `json:"message"`
	Recommendations []Recommendation `json:"recommendations,omitempty"`
	ID              string           `json:"id,omitempty"`
}

type FiltersResponse struct {
	HouseholdName *string  `json:"householdName"`
	Filters       []Filter `json:"filters"`
}

type HouseholdResponse struct {
	Household HouseholdContext  `json:"household"`
	Members   []HouseholdMember `json:"members"`
}

type MessagesResponse struct {
	HouseholdID string        `json:"householdId"`
	Messages    []ChatMessage `json:"messages"`
}

// InvalidationEvent tells subscribers which views of a household are stale.
type InvalidationEvent struct {
	Type        string    `json:"type"`
	HouseholdID string    `json:"householdId"`
	Views       []string  `json:"views"`
	At          time.Time `json:"at"`
}

// Views a household client renders from server state.
const (
	ViewPreferences = "preferences"
	ViewHome        = "home"
	ViewChat        = "chat"
)

const EventInvalidate = "invalidate"

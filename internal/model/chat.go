package model

import "time"

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

type ChatMessage struct {
	ID              string           `json:"id"`
	Role            string           `json:"role"`
	Content         string           `json:"content"`
	CreatedAt       time.Time        `json:"createdAt"`
	Pending         bool             `json:"pending,omitempty"`
	Recommendations []Recommendation `json:"recommendations,omitempty"`
}

// ChatRecord is a persisted chat row.
type ChatRecord struct {
	ID          string
	HouseholdID string
	Role        string
	Content     string
	Metadata    map[string]interface{}
	UserID      *string
	CreatedAt   time.Time
}

type RecommendationLink struct {
	Label string `json:"label"`
	URL   string `json:"url"`
}

// Recommendation is a movie suggested by the recommendation agent.
type Recommendation struct {
	MovieID        string               `json:"movieId,omitempty"`
	Title          string               `json:"title"`
	ReleaseYear    int                  `json:"releaseYear,omitempty"`
	MPAARating     string               `json:"mpaaRating,omitempty"`
	RuntimeMinutes int                  `json:"runtimeMinutes,omitempty"`
	Overview       string               `json:"overview,omitempty"`
	PosterURL      string               `json:"posterUrl,omitempty"`
	Links          []RecommendationLink `json:"links,omitempty"`
}

// HistoryEntry is the role/content pair forwarded to the agent.
type HistoryEntry struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// WatchRecord is one logged viewing.
type WatchRecord struct {
	ID          string
	HouseholdID string
	MovieID     string
	WatchDate   string
	WatchedBy   []string
	Rating      *int
	CreatedAt   time.Time
}

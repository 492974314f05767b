package model

// Identity is the authenticated principal. There is exactly one.
type Identity struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	Username string `json:"username"`
}

// Membership is a raw household_members row joined with its household name.
type Membership struct {
	ID            string
	UserID        string
	DisplayName   *string
	HouseholdID   string
	HouseholdName *string
}

// HouseholdContext is the household the identity is acting in.
type HouseholdContext struct {
	User          Identity `json:"user"`
	MembershipID  string   `json:"membershipId"`
	DisplayName   *string  `json:"displayName"`
	HouseholdID   string   `json:"householdId"`
	HouseholdName *string  `json:"householdName"`
}

// Target picks the household a request operates on. A client-supplied id is
// only honoured when it is the caller's own household.
func (h *HouseholdContext) Target(requested string) string {
	if requested != "" && requested == h.HouseholdID {
		return requested
	}
	return h.HouseholdID
}

type HouseholdMember struct {
	ID          string  `json:"id"`
	DisplayName *string `json:"displayName"`
	Birthday    *string `json:"birthday"`
	Email       *string `json:"email"`
}

// Label returns what a member is shown as.
func (m HouseholdMember) Label() string {
	if m.DisplayName != nil && *m.DisplayName != "" {
		return *m.DisplayName
	}
	if m.Email != nil && *m.Email != "" {
		return *m.Email
	}
	return "Household member"
}

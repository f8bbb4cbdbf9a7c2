package domain

import "time"

// Team represents a team of users. Members are ordered by the sequence in
// which they joined the team.
type Team struct {
	TeamName  string
	Members   []User
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewTeam creates a new team.
func NewTeam(teamName string, members []User) Team {
	now := time.Now().UTC()
	return Team{
		TeamName:  teamName,
		Members:   members,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// ActiveMembers returns only active members, preserving order.
func (t *Team) ActiveMembers() []User {
	active := make([]User, 0, len(t.Members))
	for _, m := range t.Members {
		if m.IsActive {
			active = append(active, m)
		}
	}
	return active
}

// HasMember checks if user is in team.
func (t *Team) HasMember(userID string) bool {
	for _, m := range t.Members {
		if m.UserID == userID {
			return true
		}
	}
	return false
}

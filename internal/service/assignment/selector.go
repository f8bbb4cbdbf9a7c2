// Package assignment implements deterministic reviewer candidate selection.
package assignment

import "pr-review-service/internal/domain"

// Selector picks reviewer candidates from a team snapshot. Selection is a
// pure function: members are expected in team insertion order and the result
// preserves that order, so picks are reproducible across runs.
type Selector struct{}

// NewSelector creates a selector.
func NewSelector() *Selector {
	return &Selector{}
}

// Select returns up to limit user ids of active members not present in
// exclude, preserving the input order. An empty result is not an error;
// callers decide what emptiness means for their operation.
func (s *Selector) Select(members []domain.User, exclude map[string]struct{}, limit int) []string {
	selected := make([]string, 0, limit)
	for _, m := range members {
		if len(selected) == limit {
			break
		}
		if !m.CanBeReviewer() {
			continue
		}
		if _, ok := exclude[m.UserID]; ok {
			continue
		}
		selected = append(selected, m.UserID)
	}
	return selected
}

// SelectOne returns the first eligible candidate, or "" when none exists.
func (s *Selector) SelectOne(members []domain.User, exclude map[string]struct{}) string {
	candidates := s.Select(members, exclude, 1)
	if len(candidates) == 0 {
		return ""
	}
	return candidates[0]
}

// ExcludeSet builds an exclusion set from id lists.
func ExcludeSet(ids ...[]string) map[string]struct{} {
	exclude := make(map[string]struct{})
	for _, list := range ids {
		for _, id := range list {
			exclude[id] = struct{}{}
		}
	}
	return exclude
}

package models

import (
	"sort"

	"github.com/google/uuid"
)

// Role names used in topic and thesis role bindings
const (
	RoleStudent    = "STUDENT"
	RoleAdvisor    = "ADVISOR"
	RoleSupervisor = "SUPERVISOR"
)

func roleUsers(n int, at func(i int) (string, int, uuid.UUID), role string) []uuid.UUID {
	type entry struct {
		position int
		userID   uuid.UUID
	}
	var matches []entry
	for i := 0; i < n; i++ {
		r, pos, id := at(i)
		if r == role {
			matches = append(matches, entry{position: pos, userID: id})
		}
	}
	sort.SliceStable(matches, func(i, j int) bool { return matches[i].position < matches[j].position })

	ids := make([]uuid.UUID, 0, len(matches))
	for _, m := range matches {
		ids = append(ids, m.userID)
	}
	return ids
}

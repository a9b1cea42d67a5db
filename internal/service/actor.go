package service

import "github.com/noah-isme/gema-lms-api/internal/models"

// Actor is the authenticated user a request acts on behalf of.
type Actor struct {
	ID   uint
	Role string
}

func (a Actor) role() string {
	return models.NormalizeRole(a.Role)
}

// IsAdmin reports whether the actor bypasses ownership checks.
func (a Actor) IsAdmin() bool { return a.role() == models.RoleAdmin }

// IsTeacher reports whether the actor owns courses.
func (a Actor) IsTeacher() bool { return a.role() == models.RoleTeacher }

// IsStudent reports whether the actor is a learner.
func (a Actor) IsStudent() bool { return a.role() == models.RoleStudent }

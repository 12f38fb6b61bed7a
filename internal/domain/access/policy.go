// Package access decides who may act on or read a student's records.
//
// Mutations always act on the calling student. Reads are allowed to the
// student, to parents linked to the student, and to admins.
package access

import (
	"context"
	"fmt"
	"strings"

	"github.com/studypets/studypets-core/internal/domain/shared"
)

// Role is the caller's platform role.
type Role string

const (
	RoleStudent Role = "student"
	RoleParent  Role = "parent"
	RoleAdmin   Role = "admin"
)

// ParseRole validates a role claim.
func ParseRole(s string) (Role, error) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	switch r {
	case RoleStudent, RoleParent, RoleAdmin:
		return r, nil
	}
	return "", fmt.Errorf("unknown role %q: %w", s, shared.ErrUnauthorized)
}

// Actor is the verified caller.
type Actor struct {
	UserID string
	Role   Role
}

// IsZero reports whether no identity was attached.
func (a Actor) IsZero() bool {
	return a.UserID == ""
}

// LinkRepository answers parent/student relationships.
type LinkRepository interface {
	IsLinked(ctx context.Context, parentID string, studentID shared.StudentID) (bool, error)
	ChildrenOf(ctx context.Context, parentID string) ([]shared.StudentID, error)
}

// Policy is the authorization check evaluated before every operation.
type Policy struct {
	links LinkRepository
}

// NewPolicy creates a Policy.
func NewPolicy(links LinkRepository) *Policy {
	return &Policy{links: links}
}

// ActingStudent returns the student a mutation acts on: the caller, who must
// be a student.
func (p *Policy) ActingStudent(actor Actor) (shared.StudentID, error) {
	if actor.IsZero() {
		return "", shared.ErrNotAuthenticated
	}
	if actor.Role != RoleStudent {
		return "", shared.ErrStudentOnly
	}
	return shared.NewStudentID(actor.UserID)
}

// CanRead checks the caller may read the student's records.
func (p *Policy) CanRead(ctx context.Context, actor Actor, studentID shared.StudentID) error {
	if actor.IsZero() {
		return shared.ErrNotAuthenticated
	}
	switch actor.Role {
	case RoleAdmin:
		return nil
	case RoleStudent:
		if shared.StudentID(actor.UserID) == studentID {
			return nil
		}
	case RoleParent:
		linked, err := p.links.IsLinked(ctx, actor.UserID, studentID)
		if err != nil {
			return fmt.Errorf("check parent link: %w", err)
		}
		if linked {
			return nil
		}
	}
	return shared.ErrAccessDenied
}

// RequireAdmin checks the caller is an admin.
func (p *Policy) RequireAdmin(actor Actor) error {
	if actor.IsZero() {
		return shared.ErrNotAuthenticated
	}
	if actor.Role != RoleAdmin {
		return shared.ErrAccessDenied
	}
	return nil
}

package shared

import (
	"context"
	"strings"
)

// ═══════════════════════════════════════════════════════════════════════════
// IDENTIFIERS
// ═══════════════════════════════════════════════════════════════════════════

// StudentID is the authenticated student's identifier (issued by the auth layer).
type StudentID string

// IsValid checks if the StudentID is non-blank.
func (s StudentID) IsValid() bool {
	return strings.TrimSpace(string(s)) != ""
}

// String returns the string representation.
func (s StudentID) String() string {
	return string(s)
}

// NewStudentID creates a validated StudentID.
func NewStudentID(id string) (StudentID, error) {
	sid := StudentID(strings.TrimSpace(id))
	if !sid.IsValid() {
		return "", NewDomainError("student", "Validate", ErrInvalidInput, "invalid_student_id", "student id is required")
	}
	return sid, nil
}

// ═══════════════════════════════════════════════════════════════════════════
// TRANSACTIONS
// ═══════════════════════════════════════════════════════════════════════════

// Transactor runs fn as one atomic unit. Repositories called with the ctx
// passed to fn join the transaction; on error everything fn wrote is rolled back.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

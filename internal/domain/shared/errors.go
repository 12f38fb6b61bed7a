// Package shared contains common domain types, errors, events, and value objects
// that are used across all domain packages. This package has zero external dependencies.
package shared

import (
	"errors"
	"fmt"
)

// Base error kinds. Every error returned from a domain operation matches
// exactly one of these with errors.Is().
var (
	// ErrNotFound: the referenced row does not exist or is not the caller's.
	ErrNotFound = errors.New("not found")

	// ErrConflict: the operation was already done (completed, distributed, spun).
	ErrConflict = errors.New("conflict")

	// ErrInsufficient: not enough coins, food, fed food or daily quota.
	ErrInsufficient = errors.New("insufficient resource")

	// ErrInvalidInput: the caller sent something a correct client never sends.
	ErrInvalidInput = errors.New("invalid input")

	// Authorization errors
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")

	// Transient infrastructure errors, safe to retry.
	ErrUnavailable            = errors.New("service unavailable")
	ErrConcurrentModification = errors.New("concurrent modification detected")
)

// DomainError represents a domain-specific error with context.
type DomainError struct {
	Domain  string         // e.g., "practice", "pet", "economy"
	Op      string         // Operation that failed, e.g., "Complete", "Combine"
	Kind    error          // Base error kind for errors.Is() checking
	Code    string         // Stable machine-readable reason, e.g. "insufficient_coins"
	Message string         // Human-readable message
	Details map[string]any // Optional structured context (current/required amounts, ...)
	Err     error          // Underlying error (optional)
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s.%s: %s: %v", e.Domain, e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("%s.%s: %s", e.Domain, e.Op, e.Message)
}

// Unwrap returns the underlying error for errors.Unwrap().
func (e *DomainError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return e.Kind
}

// Is implements errors.Is() matching. Two DomainErrors match when they carry
// the same code, so prebuilt errors below can be used as targets.
func (e *DomainError) Is(target error) bool {
	if t, ok := target.(*DomainError); ok {
		return t.Code != "" && t.Code == e.Code
	}
	if e.Kind != nil && errors.Is(e.Kind, target) {
		return true
	}
	if e.Err != nil && errors.Is(e.Err, target) {
		return true
	}
	return false
}

// WithDetails returns a copy of the error carrying structured details.
func (e *DomainError) WithDetails(details map[string]any) *DomainError {
	cp := *e
	cp.Details = details
	return &cp
}

// WithMessage returns a copy of the error with a more specific message.
func (e *DomainError) WithMessage(format string, args ...any) *DomainError {
	cp := *e
	cp.Message = fmt.Sprintf(format, args...)
	return &cp
}

// NewDomainError creates a new domain error.
func NewDomainError(domain, op string, kind error, code, message string) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Code:    code,
		Message: message,
	}
}

// WrapError wraps an existing error with domain context.
func WrapError(domain, op string, kind error, message string, err error) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Code:    "internal",
		Message: message,
		Err:     err,
	}
}

// AsDomainError extracts the first DomainError in err's chain.
func AsDomainError(err error) (*DomainError, bool) {
	var de *DomainError
	if errors.As(err, &de) {
		return de, true
	}
	return nil, false
}

// Practice session errors
var (
	ErrSessionNotFound         = NewDomainError("practice", "Find", ErrNotFound, "session_not_found", "session not found")
	ErrSessionAlreadyCompleted = NewDomainError("practice", "Complete", ErrConflict, "session_already_completed", "session already completed")
	ErrEmptyQuestionList       = NewDomainError("practice", "Create", ErrInvalidInput, "empty_question_list", "question list must not be empty")
	ErrDuplicateQuestion       = NewDomainError("practice", "Create", ErrInvalidInput, "duplicate_question", "question list contains duplicates")
	ErrInvalidCycle            = NewDomainError("practice", "Create", ErrInvalidInput, "invalid_cycle", "cycle number must be at least 1")
	ErrInvalidTopic            = NewDomainError("practice", "Create", ErrInvalidInput, "invalid_topic", "topic is required")
	ErrDailySessionLimit       = NewDomainError("practice", "Create", ErrInsufficient, "daily_session_limit", "daily session limit reached")
	ErrQuestionNotInSession    = NewDomainError("practice", "Answer", ErrInvalidInput, "question_not_in_session", "question is not part of this session")
	ErrAnswerAlreadySubmitted  = NewDomainError("practice", "Answer", ErrConflict, "answer_already_submitted", "question already answered in this session")
	ErrQuestionNotFound        = NewDomainError("practice", "Grade", ErrNotFound, "question_not_found", "question not found")
	ErrInvalidTimeSpent        = NewDomainError("practice", "Answer", ErrInvalidInput, "invalid_time_spent", "time spent cannot be negative")
)

// Economy errors
var (
	ErrWalletNotFound     = NewDomainError("economy", "Find", ErrNotFound, "wallet_not_found", "economy record not found")
	ErrInsufficientCoins  = NewDomainError("economy", "Spend", ErrInsufficient, "insufficient_coins", "insufficient coins")
	ErrInsufficientFood   = NewDomainError("economy", "Spend", ErrInsufficient, "insufficient_food", "insufficient food")
	ErrNegativeAmount     = NewDomainError("economy", "Validate", ErrInvalidInput, "invalid_amount", "amount must be positive")
	ErrInvalidTier        = NewDomainError("economy", "Validate", ErrInvalidInput, "invalid_tier", "unknown subscription tier")
	ErrSpinAlreadyUsed    = NewDomainError("daily", "Spin", ErrConflict, "spin_already_used", "spin already used today")
	ErrInvalidSpinReward  = NewDomainError("daily", "Spin", ErrInvalidInput, "invalid_spin_reward", "reward amount outside the allowed set")
	ErrInvalidMood        = NewDomainError("daily", "SetMood", ErrInvalidInput, "invalid_mood", "unknown mood")
	ErrDailyStatusMissing = NewDomainError("daily", "Find", ErrNotFound, "daily_status_not_found", "daily status not found")
)

// Pet errors
var (
	ErrPetNotFound          = NewDomainError("pet", "Find", ErrNotFound, "pet_not_found", "pet not found")
	ErrEmptyCatalog         = NewDomainError("pet", "Pull", ErrNotFound, "empty_catalog", "no pet definitions available")
	ErrPetMaxTier           = NewDomainError("pet", "Evolve", ErrConflict, "pet_max_tier", "pet already at max tier")
	ErrFoodThresholdNotMet  = NewDomainError("pet", "Evolve", ErrInsufficient, "food_threshold_not_met", "not enough food fed yet")
	ErrInvalidPetCount      = NewDomainError("pet", "Combine", ErrInvalidInput, "invalid_pet_count", "exactly 4 pets are required")
	ErrRarityMismatch       = NewDomainError("pet", "Combine", ErrInvalidInput, "rarity_mismatch", "all pets must share the same rarity")
	ErrLegendaryCombine     = NewDomainError("pet", "Combine", ErrInvalidInput, "legendary_not_combinable", "legendary pets cannot be combined")
	ErrInsufficientPetCount = NewDomainError("pet", "Combine", ErrInsufficient, "insufficient_pet_count", "not enough copies of pet")
)

// Leaderboard errors
var (
	ErrInvalidWeekStart       = NewDomainError("leaderboard", "Validate", ErrInvalidInput, "invalid_week_start", "week start must be a Monday")
	ErrWeekNotFinished        = NewDomainError("leaderboard", "Distribute", ErrConflict, "week_not_finished", "week has not finished yet")
	ErrWeekAlreadyDistributed = NewDomainError("leaderboard", "Distribute", ErrConflict, "week_already_distributed", "rewards already distributed for this week")
	ErrRewardNotFound         = NewDomainError("leaderboard", "FindReward", ErrNotFound, "reward_not_found", "weekly reward not found")
	ErrDistributionLocked     = NewDomainError("leaderboard", "Distribute", ErrUnavailable, "distribution_in_progress", "distribution already running")
)

// Access errors
var (
	ErrNotAuthenticated = NewDomainError("access", "Authenticate", ErrUnauthorized, "unauthenticated", "authentication required")
	ErrAccessDenied     = NewDomainError("access", "Authorize", ErrForbidden, "forbidden", "access denied")
	ErrStudentOnly      = NewDomainError("access", "Authorize", ErrForbidden, "student_only", "only students can perform this action")
	ErrKeyNotFound      = NewDomainError("access", "Find", ErrNotFound, "key_not_found", "integration key not found")
)

// IsNotFound checks if the error is a "not found" error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsConflict checks if the error is an "already done" error.
func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}

// IsInsufficient checks if the error is an insufficient-resource error.
func IsInsufficient(err error) bool {
	return errors.Is(err, ErrInsufficient)
}

// IsInvalidInput checks if the error is a validation error.
func IsInvalidInput(err error) bool {
	return errors.Is(err, ErrInvalidInput)
}

// IsForbidden checks if the error is an authorization error.
func IsForbidden(err error) bool {
	return errors.Is(err, ErrForbidden) || errors.Is(err, ErrUnauthorized)
}

// IsRetryable checks if the operation can be retried.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrUnavailable) ||
		errors.Is(err, ErrConcurrentModification)
}

// KindOf returns the base kind name used in API payloads and logs.
func KindOf(err error) string {
	switch {
	case err == nil:
		return ""
	case IsNotFound(err):
		return "not_found"
	case IsConflict(err):
		return "conflict"
	case IsInsufficient(err):
		return "insufficient_resource"
	case IsInvalidInput(err):
		return "invalid_input"
	case errors.Is(err, ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, ErrForbidden):
		return "forbidden"
	case IsRetryable(err):
		return "unavailable"
	default:
		return "internal"
	}
}

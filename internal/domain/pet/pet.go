// Package pet implements the gacha and pet evolution rules: rarity rolls,
// food-based tier evolution and the 4-to-1 combination.
package pet

import (
	"context"
	"strings"
	"time"

	"github.com/studypets/studypets-core/internal/domain/shared"
)

// Rarity classifies pet definitions.
type Rarity string

const (
	Common    Rarity = "common"
	Rare      Rarity = "rare"
	Epic      Rarity = "epic"
	Legendary Rarity = "legendary"
)

// Rarities lists every rarity from lowest to highest.
var Rarities = []Rarity{Common, Rare, Epic, Legendary}

// Level returns the rarity's position, 0 for common. Unknown rarities return -1.
func (r Rarity) Level() int {
	for i, x := range Rarities {
		if x == r {
			return i
		}
	}
	return -1
}

// Next returns the rarity one step up; ok is false for legendary.
func (r Rarity) Next() (Rarity, bool) {
	l := r.Level()
	if l < 0 || l+1 >= len(Rarities) {
		return r, false
	}
	return Rarities[l+1], true
}

// ParseRarity validates a rarity name.
func ParseRarity(s string) (Rarity, error) {
	r := Rarity(strings.ToLower(strings.TrimSpace(s)))
	if r.Level() < 0 {
		return "", shared.NewDomainError("pet", "Validate", shared.ErrInvalidInput, "invalid_rarity", "unknown rarity")
	}
	return r, nil
}

// Definition is a catalog entry.
type Definition struct {
	ID     string
	Name   string
	Rarity Rarity
}

// Owned is a student's stack of one pet definition.
type Owned struct {
	ID         string
	StudentID  shared.StudentID
	PetID      string
	Count      int
	Tier       int
	FoodFed    int
	AcquiredAt time.Time
	UpdatedAt  time.Time
}

// OwnedBy reports whether the stack belongs to the student.
func (o *Owned) OwnedBy(studentID shared.StudentID) bool {
	return o.StudentID == studentID
}

// OwnedWithDefinition joins a stack with its catalog entry for reads.
type OwnedWithDefinition struct {
	Owned
	Name   string
	Rarity Rarity
}

// Catalog is the read side of pet definitions.
type Catalog interface {
	// Get returns shared.ErrPetNotFound for unknown definitions.
	Get(ctx context.Context, petID string) (*Definition, error)

	// ByRarity groups every definition by rarity.
	ByRarity(ctx context.Context) (map[Rarity][]Definition, error)
}

// Repository persists owned pets.
type Repository interface {
	// Grant adds one unit of the pet, creating the stack at tier 1 on first
	// acquisition. Returns the stack after the change.
	Grant(ctx context.Context, studentID shared.StudentID, petID string, now time.Time) (*Owned, error)

	// Get returns shared.ErrPetNotFound when missing.
	Get(ctx context.Context, ownedID string) (*Owned, error)

	// GetForUpdate is Get plus a row lock held until the transaction ends.
	GetForUpdate(ctx context.Context, ownedID string) (*Owned, error)

	// Consume removes n units, deleting the stack when it reaches zero.
	Consume(ctx context.Context, ownedID string, n int) error

	// AddFood adds to food_fed and returns the stack after the change.
	AddFood(ctx context.Context, ownedID string, amount int) (*Owned, error)

	// SetTier stores a new tier and resets food_fed to 0.
	SetTier(ctx context.Context, ownedID string, tier int) (*Owned, error)

	// ListByStudent returns the student's stacks joined with their definitions.
	ListByStudent(ctx context.Context, studentID shared.StudentID) ([]OwnedWithDefinition, error)
}

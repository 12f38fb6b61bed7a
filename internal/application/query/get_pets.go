package query

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/studypets/studypets-core/internal/domain/access"
	"github.com/studypets/studypets-core/internal/domain/leaderboard"
	"github.com/studypets/studypets-core/internal/domain/pet"
	"github.com/studypets/studypets-core/internal/domain/shared"
	"github.com/studypets/studypets-core/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// PET COLLECTION AND REWARD INBOX QUERIES
// ══════════════════════════════════════════════════════════════════════════════

// ListPetsQuery reads a student's collection.
type ListPetsQuery struct {
	Actor     access.Actor
	StudentID shared.StudentID
}

// PetDTO is one owned stack with its evolution progress.
type PetDTO struct {
	ID           string     `json:"id"`
	PetID        string     `json:"pet_id"`
	Name         string     `json:"name"`
	Rarity       pet.Rarity `json:"rarity"`
	Count        int        `json:"count"`
	Tier         int        `json:"tier"`
	FoodFed      int        `json:"food_fed"`
	FoodRequired int        `json:"food_required"`
	CanEvolve    bool       `json:"can_evolve"`
	AcquiredAt   time.Time  `json:"acquired_at"`
}

// ListPetsResult groups the collection.
type ListPetsResult struct {
	Pets     []PetDTO           `json:"pets"`
	Total    int                `json:"total"`
	ByRarity map[pet.Rarity]int `json:"by_rarity"`
}

// ListUnseenRewardsQuery reads the weekly rewards the student has not dismissed.
type ListUnseenRewardsQuery struct {
	Actor     access.Actor
	StudentID shared.StudentID
}

// RewardDTO is a weekly payout notice.
type RewardDTO struct {
	ID           string        `json:"id"`
	WeekStart    timeutil.Date `json:"week_start"`
	Rank         int           `json:"rank"`
	WeeklyXP     int           `json:"weekly_xp"`
	CoinsAwarded int           `json:"coins_awarded"`
	CreatedAt    time.Time     `json:"created_at"`
}

// CollectionHandler serves pet and reward inbox reads.
type CollectionHandler struct {
	policy  *access.Policy
	pets    pet.Repository
	rewards leaderboard.Repository
	balance pet.Balance
}

// NewCollectionHandler creates a CollectionHandler.
func NewCollectionHandler(policy *access.Policy, pets pet.Repository, rewards leaderboard.Repository, balance pet.Balance) *CollectionHandler {
	return &CollectionHandler{policy: policy, pets: pets, rewards: rewards, balance: balance}
}

// Pets executes ListPetsQuery, rarest first then by name.
func (h *CollectionHandler) Pets(ctx context.Context, q ListPetsQuery) (*ListPetsResult, error) {
	if err := h.policy.CanRead(ctx, q.Actor, q.StudentID); err != nil {
		return nil, err
	}

	rows, err := h.pets.ListByStudent(ctx, q.StudentID)
	if err != nil {
		return nil, fmt.Errorf("list pets: %w", err)
	}

	result := &ListPetsResult{
		Pets:     make([]PetDTO, 0, len(rows)),
		ByRarity: make(map[pet.Rarity]int, len(pet.Rarities)),
	}
	for _, r := range rows {
		required := h.balance.RequiredFood(r.Tier)
		result.Pets = append(result.Pets, PetDTO{
			ID:           r.ID,
			PetID:        r.PetID,
			Name:         r.Name,
			Rarity:       r.Rarity,
			Count:        r.Count,
			Tier:         r.Tier,
			FoodFed:      r.FoodFed,
			FoodRequired: required,
			CanEvolve:    r.Tier < h.balance.MaxTier && r.FoodFed >= required,
			AcquiredAt:   r.AcquiredAt,
		})
		result.Total += r.Count
		result.ByRarity[r.Rarity] += r.Count
	}

	sort.SliceStable(result.Pets, func(i, j int) bool {
		a, b := result.Pets[i], result.Pets[j]
		if a.Rarity.Level() != b.Rarity.Level() {
			return a.Rarity.Level() > b.Rarity.Level()
		}
		return a.Name < b.Name
	})
	return result, nil
}

// UnseenRewards executes ListUnseenRewardsQuery.
func (h *CollectionHandler) UnseenRewards(ctx context.Context, q ListUnseenRewardsQuery) ([]RewardDTO, error) {
	if err := h.policy.CanRead(ctx, q.Actor, q.StudentID); err != nil {
		return nil, err
	}

	rows, err := h.rewards.UnseenRewards(ctx, q.StudentID)
	if err != nil {
		return nil, fmt.Errorf("unseen rewards: %w", err)
	}
	out := make([]RewardDTO, 0, len(rows))
	for _, r := range rows {
		out = append(out, RewardDTO{
			ID:           r.ID,
			WeekStart:    r.WeekStart,
			Rank:         r.Rank,
			WeeklyXP:     r.WeeklyXP,
			CoinsAwarded: r.CoinsAwarded,
			CreatedAt:    r.CreatedAt,
		})
	}
	return out, nil
}

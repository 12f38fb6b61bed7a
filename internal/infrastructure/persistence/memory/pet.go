package memory

import (
	"context"
	"sort"
	"time"

	"github.com/studypets/studypets-core/internal/domain/pet"
	"github.com/studypets/studypets-core/internal/domain/shared"
)

type petRepo struct {
	db *DB
}

func (r *petRepo) Grant(ctx context.Context, studentID shared.StudentID, petID string, now time.Time) (*pet.Owned, error) {
	var out pet.Owned
	err := r.db.do(ctx, func(st *state) error {
		if _, ok := st.defs[petID]; !ok {
			return shared.ErrPetNotFound.WithDetails(map[string]any{"pet_id": petID})
		}
		for id, o := range st.owned {
			if o.StudentID == studentID && o.PetID == petID {
				o.Count++
				o.UpdatedAt = now
				st.owned[id] = o
				out = o
				return nil
			}
		}
		out = pet.Owned{
			ID:         r.db.newID(),
			StudentID:  studentID,
			PetID:      petID,
			Count:      1,
			Tier:       1,
			AcquiredAt: now,
			UpdatedAt:  now,
		}
		st.owned[out.ID] = out
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *petRepo) Get(ctx context.Context, ownedID string) (*pet.Owned, error) {
	var out pet.Owned
	err := r.db.do(ctx, func(st *state) error {
		o, ok := st.owned[ownedID]
		if !ok {
			return shared.ErrPetNotFound.WithDetails(map[string]any{"owned_pet_id": ownedID})
		}
		out = o
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *petRepo) GetForUpdate(ctx context.Context, ownedID string) (*pet.Owned, error) {
	return r.Get(ctx, ownedID)
}

func (r *petRepo) Consume(ctx context.Context, ownedID string, n int) error {
	return r.db.do(ctx, func(st *state) error {
		o, ok := st.owned[ownedID]
		if !ok {
			return shared.ErrPetNotFound.WithDetails(map[string]any{"owned_pet_id": ownedID})
		}
		if n <= 0 || o.Count < n {
			return shared.ErrInsufficientPetCount.WithDetails(map[string]any{"owned_pet_id": ownedID, "count": o.Count, "required": n})
		}
		o.Count -= n
		if o.Count == 0 {
			delete(st.owned, ownedID)
			return nil
		}
		o.UpdatedAt = r.db.now()
		st.owned[ownedID] = o
		return nil
	})
}

func (r *petRepo) AddFood(ctx context.Context, ownedID string, amount int) (*pet.Owned, error) {
	return r.modify(ctx, ownedID, func(o *pet.Owned) { o.FoodFed += amount })
}

func (r *petRepo) SetTier(ctx context.Context, ownedID string, tier int) (*pet.Owned, error) {
	return r.modify(ctx, ownedID, func(o *pet.Owned) {
		o.Tier = tier
		o.FoodFed = 0
	})
}

func (r *petRepo) modify(ctx context.Context, ownedID string, fn func(o *pet.Owned)) (*pet.Owned, error) {
	var out pet.Owned
	err := r.db.do(ctx, func(st *state) error {
		o, ok := st.owned[ownedID]
		if !ok {
			return shared.ErrPetNotFound.WithDetails(map[string]any{"owned_pet_id": ownedID})
		}
		fn(&o)
		o.UpdatedAt = r.db.now()
		st.owned[ownedID] = o
		out = o
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *petRepo) ListByStudent(ctx context.Context, studentID shared.StudentID) ([]pet.OwnedWithDefinition, error) {
	var out []pet.OwnedWithDefinition
	err := r.db.do(ctx, func(st *state) error {
		for _, o := range st.owned {
			if o.StudentID != studentID {
				continue
			}
			def := st.defs[o.PetID]
			out = append(out, pet.OwnedWithDefinition{Owned: o, Name: def.Name, Rarity: def.Rarity})
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool {
		if !out[i].AcquiredAt.Equal(out[j].AcquiredAt) {
			return out[i].AcquiredAt.Before(out[j].AcquiredAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, err
}

type catalogRepo struct {
	db *DB
}

func (r *catalogRepo) Get(ctx context.Context, petID string) (*pet.Definition, error) {
	var out pet.Definition
	err := r.db.do(ctx, func(st *state) error {
		d, ok := st.defs[petID]
		if !ok {
			return shared.ErrPetNotFound.WithDetails(map[string]any{"pet_id": petID})
		}
		out = d
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *catalogRepo) ByRarity(ctx context.Context) (map[pet.Rarity][]pet.Definition, error) {
	out := make(map[pet.Rarity][]pet.Definition)
	err := r.db.do(ctx, func(st *state) error {
		for _, d := range st.defs {
			out[d.Rarity] = append(out[d.Rarity], d)
		}
		return nil
	})
	for _, defs := range out {
		sort.Slice(defs, func(i, j int) bool { return defs[i].ID < defs[j].ID })
	}
	return out, err
}

package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/studypets/studypets-core/internal/domain/pet"
	"github.com/studypets/studypets-core/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// OWNED PETS
// ══════════════════════════════════════════════════════════════════════════════

// PetRepository implements pet.Repository for PostgreSQL.
type PetRepository struct {
	conn *Connection
}

// NewPetRepository creates a new PetRepository.
func NewPetRepository(conn *Connection) *PetRepository {
	return &PetRepository{conn: conn}
}

const ownedColumns = `id, student_id, pet_id, count, tier, food_fed, acquired_at, updated_at`

func scanOwned(row interface{ Scan(...any) error }) (*pet.Owned, error) {
	var (
		o       pet.Owned
		student string
	)
	if err := row.Scan(&o.ID, &student, &o.PetID, &o.Count, &o.Tier, &o.FoodFed, &o.AcquiredAt, &o.UpdatedAt); err != nil {
		return nil, err
	}
	o.StudentID = shared.StudentID(student)
	return &o, nil
}

func petNotFound(ownedID string) error {
	return shared.ErrPetNotFound.WithDetails(map[string]any{"owned_pet_id": ownedID})
}

// Grant adds one unit, creating the stack at tier 1 on first acquisition.
// The (student_id, pet_id) key turns a concurrent second grant into an increment.
func (r *PetRepository) Grant(ctx context.Context, studentID shared.StudentID, petID string, now time.Time) (*pet.Owned, error) {
	o, err := scanOwned(r.conn.QueryRow(ctx, `
		INSERT INTO owned_pets (id, student_id, pet_id, count, tier, food_fed, acquired_at, updated_at)
		VALUES ($1, $2, $3, 1, 1, 0, $4, $4)
		ON CONFLICT (student_id, pet_id) DO UPDATE SET
			count = owned_pets.count + 1,
			updated_at = EXCLUDED.updated_at
		RETURNING `+ownedColumns,
		uuid.NewString(), studentID.String(), petID, now))
	if IsForeignKeyViolation(err) {
		return nil, shared.ErrPetNotFound.WithDetails(map[string]any{"pet_id": petID})
	}
	if err != nil {
		return nil, fmt.Errorf("failed to grant pet: %w", err)
	}
	return o, nil
}

func (r *PetRepository) get(ctx context.Context, ownedID, suffix string) (*pet.Owned, error) {
	o, err := scanOwned(r.conn.QueryRow(ctx,
		`SELECT `+ownedColumns+` FROM owned_pets WHERE id = $1`+suffix, ownedID))
	if IsNoRows(err) {
		return nil, petNotFound(ownedID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get owned pet: %w", err)
	}
	return o, nil
}

// Get returns shared.ErrPetNotFound when missing.
func (r *PetRepository) Get(ctx context.Context, ownedID string) (*pet.Owned, error) {
	return r.get(ctx, ownedID, "")
}

// GetForUpdate is Get plus a row lock held until the transaction ends.
func (r *PetRepository) GetForUpdate(ctx context.Context, ownedID string) (*pet.Owned, error) {
	return r.get(ctx, ownedID, " FOR UPDATE")
}

// Consume removes n units and deletes the stack when it reaches zero.
func (r *PetRepository) Consume(ctx context.Context, ownedID string, n int) error {
	o, err := r.GetForUpdate(ctx, ownedID)
	if err != nil {
		return err
	}
	if n <= 0 || o.Count < n {
		return shared.ErrInsufficientPetCount.WithDetails(map[string]any{"owned_pet_id": ownedID, "count": o.Count, "required": n})
	}

	if o.Count == n {
		if _, err := r.conn.Exec(ctx, `DELETE FROM owned_pets WHERE id = $1`, ownedID); err != nil {
			return fmt.Errorf("failed to delete pet stack: %w", err)
		}
		return nil
	}
	if _, err := r.conn.Exec(ctx, `
		UPDATE owned_pets SET count = count - $2, updated_at = NOW() WHERE id = $1
	`, ownedID, n); err != nil {
		return fmt.Errorf("failed to consume pets: %w", err)
	}
	return nil
}

// AddFood adds to food_fed and returns the stack after the change.
func (r *PetRepository) AddFood(ctx context.Context, ownedID string, amount int) (*pet.Owned, error) {
	return r.update(ctx, ownedID, `food_fed = food_fed + $2`, amount)
}

// SetTier stores a new tier and resets food_fed.
func (r *PetRepository) SetTier(ctx context.Context, ownedID string, tier int) (*pet.Owned, error) {
	return r.update(ctx, ownedID, `tier = $2, food_fed = 0`, tier)
}

func (r *PetRepository) update(ctx context.Context, ownedID, set string, arg int) (*pet.Owned, error) {
	o, err := scanOwned(r.conn.QueryRow(ctx,
		`UPDATE owned_pets SET `+set+`, updated_at = NOW() WHERE id = $1 RETURNING `+ownedColumns,
		ownedID, arg))
	if IsNoRows(err) {
		return nil, petNotFound(ownedID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update owned pet: %w", err)
	}
	return o, nil
}

// ListByStudent returns the student's stacks joined with their definitions,
// oldest acquisition first.
func (r *PetRepository) ListByStudent(ctx context.Context, studentID shared.StudentID) ([]pet.OwnedWithDefinition, error) {
	rows, err := r.conn.Query(ctx, `
		SELECT o.id, o.student_id, o.pet_id, o.count, o.tier, o.food_fed, o.acquired_at, o.updated_at,
		       d.name, d.rarity
		FROM owned_pets o
		JOIN pet_definitions d ON d.id = o.pet_id
		WHERE o.student_id = $1
		ORDER BY o.acquired_at, o.id
	`, studentID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to query owned pets: %w", err)
	}
	defer rows.Close()

	var out []pet.OwnedWithDefinition
	for rows.Next() {
		var (
			row     pet.OwnedWithDefinition
			student string
			rarity  string
		)
		if err := rows.Scan(
			&row.ID,
			&student,
			&row.PetID,
			&row.Count,
			&row.Tier,
			&row.FoodFed,
			&row.AcquiredAt,
			&row.UpdatedAt,
			&row.Name,
			&rarity,
		); err != nil {
			return nil, fmt.Errorf("failed to scan owned pet: %w", err)
		}
		row.StudentID = shared.StudentID(student)
		row.Rarity = pet.Rarity(rarity)
		out = append(out, row)
	}
	return out, rows.Err()
}

// ══════════════════════════════════════════════════════════════════════════════
// PET CATALOG
// ══════════════════════════════════════════════════════════════════════════════

// CatalogRepository implements pet.Catalog for PostgreSQL.
type CatalogRepository struct {
	conn *Connection
}

// NewCatalogRepository creates a new CatalogRepository.
func NewCatalogRepository(conn *Connection) *CatalogRepository {
	return &CatalogRepository{conn: conn}
}

// Get returns shared.ErrPetNotFound for unknown definitions.
func (r *CatalogRepository) Get(ctx context.Context, petID string) (*pet.Definition, error) {
	var (
		d      pet.Definition
		rarity string
	)
	err := r.conn.QueryRow(ctx, `
		SELECT id, name, rarity FROM pet_definitions WHERE id = $1
	`, petID).Scan(&d.ID, &d.Name, &rarity)
	if IsNoRows(err) {
		return nil, shared.ErrPetNotFound.WithDetails(map[string]any{"pet_id": petID})
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get pet definition: %w", err)
	}
	d.Rarity = pet.Rarity(rarity)
	return &d, nil
}

// ByRarity groups every definition by rarity.
func (r *CatalogRepository) ByRarity(ctx context.Context) (map[pet.Rarity][]pet.Definition, error) {
	rows, err := r.conn.Query(ctx, `SELECT id, name, rarity FROM pet_definitions ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query pet catalog: %w", err)
	}
	defer rows.Close()

	out := make(map[pet.Rarity][]pet.Definition)
	for rows.Next() {
		var (
			d      pet.Definition
			rarity string
		)
		if err := rows.Scan(&d.ID, &d.Name, &rarity); err != nil {
			return nil, fmt.Errorf("failed to scan pet definition: %w", err)
		}
		d.Rarity = pet.Rarity(rarity)
		out[d.Rarity] = append(out[d.Rarity], d)
	}
	return out, rows.Err()
}

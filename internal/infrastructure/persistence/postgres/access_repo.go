package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/studypets/studypets-core/internal/domain/access"
	"github.com/studypets/studypets-core/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// PARENT LINKS
// ══════════════════════════════════════════════════════════════════════════════

// LinkRepository implements access.LinkRepository for PostgreSQL.
type LinkRepository struct {
	conn *Connection
}

// NewLinkRepository creates a new LinkRepository.
func NewLinkRepository(conn *Connection) *LinkRepository {
	return &LinkRepository{conn: conn}
}

// IsLinked reports whether the parent may read the student's records.
func (r *LinkRepository) IsLinked(ctx context.Context, parentID string, studentID shared.StudentID) (bool, error) {
	var linked bool
	err := r.conn.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM parent_student_links WHERE parent_id = $1 AND student_id = $2)
	`, parentID, studentID.String()).Scan(&linked)
	if err != nil {
		return false, fmt.Errorf("failed to check parent link: %w", err)
	}
	return linked, nil
}

// ChildrenOf lists the parent's linked students.
func (r *LinkRepository) ChildrenOf(ctx context.Context, parentID string) ([]shared.StudentID, error) {
	rows, err := r.conn.Query(ctx, `
		SELECT student_id FROM parent_student_links WHERE parent_id = $1 ORDER BY student_id
	`, parentID)
	if err != nil {
		return nil, fmt.Errorf("failed to query children: %w", err)
	}
	defer rows.Close()

	var out []shared.StudentID
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan child: %w", err)
		}
		out = append(out, shared.StudentID(id))
	}
	return out, rows.Err()
}

// ══════════════════════════════════════════════════════════════════════════════
// INTEGRATION KEYS
// ══════════════════════════════════════════════════════════════════════════════

// KeyRepository implements access.KeyRepository for PostgreSQL.
type KeyRepository struct {
	conn *Connection
}

// NewKeyRepository creates a new KeyRepository.
func NewKeyRepository(conn *Connection) *KeyRepository {
	return &KeyRepository{conn: conn}
}

// CreateKey stores a new key. A duplicate id is a conflict.
func (r *KeyRepository) CreateKey(ctx context.Context, k *access.IntegrationKey) error {
	_, err := r.conn.Exec(ctx, `
		INSERT INTO integration_keys (id, name, secret_hash, created_at)
		VALUES ($1, $2, $3, $4)
	`, k.ID, k.Name, k.SecretHash, k.CreatedAt)
	if IsUniqueViolation(err) {
		return shared.NewDomainError("access", "CreateKey", shared.ErrConflict, "key_exists", "integration key already exists")
	}
	if err != nil {
		return fmt.Errorf("failed to create integration key: %w", err)
	}
	return nil
}

// GetKey returns shared.ErrKeyNotFound when missing.
func (r *KeyRepository) GetKey(ctx context.Context, id string) (*access.IntegrationKey, error) {
	var k access.IntegrationKey
	err := r.conn.QueryRow(ctx, `
		SELECT id, name, secret_hash, created_at, revoked_at
		FROM integration_keys
		WHERE id = $1
	`, id).Scan(&k.ID, &k.Name, &k.SecretHash, &k.CreatedAt, &k.RevokedAt)
	if IsNoRows(err) {
		return nil, shared.ErrKeyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get integration key: %w", err)
	}
	return &k, nil
}

// RevokeKey stamps revoked_at once.
func (r *KeyRepository) RevokeKey(ctx context.Context, id string, at time.Time) error {
	tag, err := r.conn.Exec(ctx, `
		UPDATE integration_keys SET revoked_at = COALESCE(revoked_at, $2) WHERE id = $1
	`, id, at)
	if err != nil {
		return fmt.Errorf("failed to revoke integration key: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrKeyNotFound
	}
	return nil
}

package access

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/studypets/studypets-core/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// INTEGRATION KEYS
// Machine callers (the billing system syncing tiers, operators triggering a
// payout by hand) authenticate with "<key id>.<secret>". Only a bcrypt hash
// of the secret is stored.
// ══════════════════════════════════════════════════════════════════════════════

// IntegrationKey is a stored machine credential.
type IntegrationKey struct {
	ID         string
	Name       string
	SecretHash []byte
	CreatedAt  time.Time
	RevokedAt  *time.Time
}

// KeyRepository persists integration keys.
type KeyRepository interface {
	CreateKey(ctx context.Context, k *IntegrationKey) error

	// GetKey returns shared.ErrNotFound (wrapped) when missing.
	GetKey(ctx context.Context, id string) (*IntegrationKey, error)

	RevokeKey(ctx context.Context, id string, at time.Time) error
}

// KeyCost is the bcrypt work factor for new secrets.
var KeyCost = bcrypt.DefaultCost

// IssueKey creates a key and returns the plaintext token, shown only once.
func IssueKey(ctx context.Context, repo KeyRepository, id, name string, now time.Time) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", shared.NewDomainError("access", "IssueKey", shared.ErrInvalidInput, "invalid_key_name", "key name is required")
	}

	raw := make([]byte, 24)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("generate secret: %w", err)
	}
	secret := hex.EncodeToString(raw)

	hash, err := bcrypt.GenerateFromPassword([]byte(secret), KeyCost)
	if err != nil {
		return "", fmt.Errorf("hash secret: %w", err)
	}

	if err := repo.CreateKey(ctx, &IntegrationKey{
		ID:         id,
		Name:       name,
		SecretHash: hash,
		CreatedAt:  now,
	}); err != nil {
		return "", err
	}
	return id + "." + secret, nil
}

// VerifyKey checks a "<id>.<secret>" token and returns the admin actor it
// stands for. Every failure looks the same to the caller.
func VerifyKey(ctx context.Context, repo KeyRepository, token string) (Actor, error) {
	id, secret, ok := strings.Cut(strings.TrimSpace(token), ".")
	if !ok || id == "" || secret == "" {
		return Actor{}, shared.ErrNotAuthenticated
	}

	k, err := repo.GetKey(ctx, id)
	if err != nil {
		if shared.IsNotFound(err) {
			return Actor{}, shared.ErrNotAuthenticated
		}
		return Actor{}, fmt.Errorf("load key: %w", err)
	}
	if k.RevokedAt != nil {
		return Actor{}, shared.ErrNotAuthenticated
	}
	if err := bcrypt.CompareHashAndPassword(k.SecretHash, []byte(secret)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return Actor{}, shared.ErrNotAuthenticated
		}
		return Actor{}, fmt.Errorf("compare secret: %w", err)
	}
	return Actor{UserID: "key:" + k.ID, Role: RoleAdmin}, nil
}

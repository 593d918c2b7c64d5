package postgres

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/proam-rankings/rankings-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// API KEY REPOSITORY
// ══════════════════════════════════════════════════════════════════════════════

// APIKeyRole gates what an API key may call.
type APIKeyRole string

const (
	// RoleSubmitter may submit outcomes and read everything.
	RoleSubmitter APIKeyRole = "submitter"
	// RoleAdmin may additionally trigger decay and recompute runs.
	RoleAdmin APIKeyRole = "admin"
)

// APIKey is one issued credential. Only the bcrypt hash is persisted; the
// plaintext key exists once, at issue time.
type APIKey struct {
	ID        int
	Name      string
	KeyHash   string
	Role      APIKeyRole
	Revoked   bool
	CreatedAt time.Time
}

// CanAdmin reports whether the key may call admin endpoints.
func (k *APIKey) CanAdmin() bool {
	return k.Role == RoleAdmin
}

// APIKeyRepository stores and verifies API keys.
type APIKeyRepository struct {
	conn *Connection
}

// NewAPIKeyRepository creates a new APIKeyRepository.
func NewAPIKeyRepository(conn *Connection) *APIKeyRepository {
	return &APIKeyRepository{conn: conn}
}

// Issue stores a new key under the given name and role. The caller supplies
// the plaintext; only its hash is written.
func (r *APIKeyRepository) Issue(ctx context.Context, name, plaintext string, role APIKeyRole) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(plaintext), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash api key: %w", err)
	}

	_, err = r.conn.Exec(ctx, `
		INSERT INTO api_keys (name, key_hash, role) VALUES ($1, $2, $3)
	`, name, string(hash), string(role))
	if err != nil {
		if IsUniqueViolation(err) {
			return shared.WrapError("auth", "Issue", shared.ErrAlreadyExists,
				fmt.Sprintf("api key %q already exists", name), nil)
		}
		return fmt.Errorf("failed to insert api key: %w", err)
	}
	return nil
}

// Verify checks a presented key against the stored hash for the given name.
// Returns shared.ErrUnauthorized on any mismatch, revocation included, so
// callers cannot distinguish a wrong key from a revoked one.
func (r *APIKeyRepository) Verify(ctx context.Context, name, plaintext string) (*APIKey, error) {
	key := &APIKey{}
	var role string

	err := r.conn.QueryRow(ctx, `
		SELECT id, name, key_hash, role, revoked, created_at
		FROM api_keys
		WHERE name = $1
	`, name).Scan(&key.ID, &key.Name, &key.KeyHash, &role, &key.Revoked, &key.CreatedAt)
	if IsNoRows(err) {
		return nil, shared.ErrUnauthorized
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load api key: %w", err)
	}
	key.Role = APIKeyRole(role)

	if key.Revoked {
		return nil, shared.ErrUnauthorized
	}
	if err := bcrypt.CompareHashAndPassword([]byte(key.KeyHash), []byte(plaintext)); err != nil {
		return nil, shared.ErrUnauthorized
	}
	return key, nil
}

// Revoke disables a key by name.
func (r *APIKeyRepository) Revoke(ctx context.Context, name string) error {
	result, err := r.conn.Exec(ctx, `
		UPDATE api_keys SET revoked = TRUE WHERE name = $1
	`, name)
	if err != nil {
		return fmt.Errorf("failed to revoke api key: %w", err)
	}
	if result.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

package store

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
)

// Store wraps access to the database via a shared pooled *sql.DB.
type Store struct {
	DB *sql.DB
}

// New creates a new Store that uses a shared *sql.DB with pooling.
func New(database *sql.DB) *Store {
	return &Store{DB: database}
}

// APIKey is a stored API key record. The raw key is never persisted,
// only its SHA-256 hash.
type APIKey struct {
	ID                 uuid.UUID
	KeyHash            string
	Label              string
	IsAdmin            bool
	RateLimitPerMinute sql.NullInt32
	CreatedAt          time.Time
}

// hashAPIKey hashes a raw API key string using SHA-256 and returns a hex string.
func hashAPIKey(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

const apiKeyColumns = `id, key_hash, label, is_admin, rate_limit_per_minute, created_at`

func scanAPIKey(row *sql.Row) (APIKey, error) {
	var k APIKey
	err := row.Scan(&k.ID, &k.KeyHash, &k.Label, &k.IsAdmin, &k.RateLimitPerMinute, &k.CreatedAt)
	return k, err
}

// GetAPIKeyByRawKey looks up an API key by its raw value.
func (s *Store) GetAPIKeyByRawKey(ctx context.Context, rawKey string) (APIKey, error) {
	hash := hashAPIKey(rawKey)
	row := s.DB.QueryRowContext(ctx,
		`SELECT `+apiKeyColumns+` FROM api_keys WHERE key_hash = $1`, hash)
	return scanAPIKey(row)
}

// EnsureAdminAPIKey ensures that there is an admin API key for the given
// raw key and label. If it already exists, it is returned; otherwise, it
// is created.
func (s *Store) EnsureAdminAPIKey(ctx context.Context, rawKey, label string) (APIKey, error) {
	hash := hashAPIKey(rawKey)

	key, err := s.GetAPIKeyByRawKey(ctx, rawKey)
	if err == nil {
		return key, nil
	}
	if err != sql.ErrNoRows {
		return APIKey{}, err
	}

	id := uuid.New()
	row := s.DB.QueryRowContext(ctx,
		`INSERT INTO api_keys (id, key_hash, label, is_admin)
		 VALUES ($1, $2, $3, true)
		 RETURNING `+apiKeyColumns,
		id, hash, label)
	return scanAPIKey(row)
}

// CreateRandomAPIKey creates a new random API key (with autoprep_ prefix).
// It returns the raw key plus the stored record.
func (s *Store) CreateRandomAPIKey(ctx context.Context, label string, isAdmin bool, rateLimitPerMinute *int) (string, APIKey, error) {
	raw := "autoprep_" + uuid.New().String()
	hash := hashAPIKey(raw)

	var rl sql.NullInt32
	if rateLimitPerMinute != nil && *rateLimitPerMinute > 0 {
		rl = sql.NullInt32{Int32: int32(*rateLimitPerMinute), Valid: true}
	}

	id := uuid.New()
	row := s.DB.QueryRowContext(ctx,
		`INSERT INTO api_keys (id, key_hash, label, is_admin, rate_limit_per_minute)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING `+apiKeyColumns,
		id, hash, label, isAdmin, rl)
	key, err := scanAPIKey(row)
	if err != nil {
		return "", APIKey{}, err
	}
	return raw, key, nil
}

package accesscontrol

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// ServiceAccount is a non-interactive credential for CI pushes, adapted
// from the donor's auth.ServiceAccount.
type ServiceAccount struct {
	ID          uuid.UUID
	Name        string
	Description string
	Status      string
	LastUsedAt  *time.Time
	CreatedAt   time.Time
}

// ServiceAccounts manages API-key-backed service accounts, grounded on the
// donor's auth.Service (Create/List/Revoke) and auth.User (bcrypt helpers).
type ServiceAccounts struct {
	DB *sql.DB
}

func NewServiceAccounts(db *sql.DB) *ServiceAccounts {
	return &ServiceAccounts{DB: db}
}

// Create mints a new "rx_<hex>" API key, storing only its SHA-256 hash.
// The raw key is returned exactly once.
func (s *ServiceAccounts) Create(ctx context.Context, name, description string) (*ServiceAccount, string, error) {
	rawKey, err := generateRandomHex(32)
	if err != nil {
		return nil, "", err
	}
	apiKey := "rx_" + rawKey

	hash := sha256.Sum256([]byte(apiKey))
	keyHash := hex.EncodeToString(hash[:])

	id := uuid.New()
	now := time.Now()
	_, err = s.DB.ExecContext(ctx, `
		INSERT INTO service_accounts (id, name, description, api_key_hash, prefix, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, 'active', $6, $6)
	`, id, name, description, keyHash, "rx_"+rawKey[:4], now)
	if err != nil {
		return nil, "", fmt.Errorf("failed to insert service account: %w", err)
	}

	return &ServiceAccount{ID: id, Name: name, Description: description, Status: "active", CreatedAt: now}, apiKey, nil
}

// Verify checks apiKey against the stored hash of an active account and
// returns its name as the authenticated subject.
func (s *ServiceAccounts) Verify(ctx context.Context, apiKey string) (string, bool) {
	hash := sha256.Sum256([]byte(apiKey))
	keyHash := hex.EncodeToString(hash[:])

	var name, status string
	err := s.DB.QueryRowContext(ctx, `
		SELECT name, status FROM service_accounts WHERE api_key_hash = $1
	`, keyHash).Scan(&name, &status)
	if err != nil || status != "active" {
		return "", false
	}
	return name, true
}

// Revoke marks an account as revoked.
func (s *ServiceAccounts) Revoke(ctx context.Context, id uuid.UUID) error {
	_, err := s.DB.ExecContext(ctx, `UPDATE service_accounts SET status = 'revoked', updated_at = now() WHERE id = $1`, id)
	return err
}

func generateRandomHex(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// HashPassword bcrypt-hashes an interactive user's password, grounded on
// the donor's auth.HashPassword.
func HashPassword(password string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(password), 14)
	return string(b), err
}

// CheckPasswordHash reports whether password matches hash.
func CheckPasswordHash(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

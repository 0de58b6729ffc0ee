package database

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/DmitriyKurilenko/rent-scraper/internal/models"
	"github.com/DmitriyKurilenko/rent-scraper/internal/pricing"
)

// CharterStore manages charter company rows. Charters are keyed by an
// external id derived from the marketplace, falling back to a slugified
// name when the API omits one.
type CharterStore struct {
	db *DB
}

func NewCharterStore(db *DB) *CharterStore {
	return &CharterStore{db: db}
}

// ResolveCharter finds or creates a charter by name. New rows get the
// default commission; an existing commission set by an operator is never
// touched. The logo is refreshed when a new one arrives.
func (s *CharterStore) ResolveCharter(ctx context.Context, name, rawID, logo string) (*models.Charter, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, nil
	}

	charterID := strings.TrimSpace(rawID)
	if charterID == "" {
		charterID = strings.ReplaceAll(strings.ToLower(name), " ", "-")
	}

	now := time.Now()
	var charter models.Charter
	err := s.db.QueryRow(ctx, `
		INSERT INTO charters (charter_id, name, logo, commission, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $5)
		ON CONFLICT (charter_id) DO UPDATE SET
			logo = CASE WHEN EXCLUDED.logo <> '' THEN EXCLUDED.logo ELSE charters.logo END,
			updated_at = EXCLUDED.updated_at
		RETURNING id, charter_id, name, logo, commission, created_at, updated_at
	`, charterID, name, logo, pricing.DefaultCommission, now).Scan(
		&charter.ID, &charter.CharterID, &charter.Name, &charter.Logo,
		&charter.Commission, &charter.CreatedAt, &charter.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve charter %s: %w", charterID, err)
	}

	return &charter, nil
}

// GetCharter returns a charter by its external id, or nil when unknown.
func (s *CharterStore) GetCharter(ctx context.Context, charterID string) (*models.Charter, error) {
	var charter models.Charter
	err := s.db.QueryRow(ctx, `
		SELECT id, charter_id, name, logo, commission, created_at, updated_at
		FROM charters WHERE charter_id = $1
	`, charterID).Scan(
		&charter.ID, &charter.CharterID, &charter.Name, &charter.Logo,
		&charter.Commission, &charter.CreatedAt, &charter.UpdatedAt,
	)
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get charter %s: %w", charterID, err)
	}
	return &charter, nil
}

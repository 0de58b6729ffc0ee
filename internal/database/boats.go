package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/DmitriyKurilenko/rent-scraper/internal/models"
)

// BoatStore persists scraped boat records. One boat maps to a head row in
// parsed_boats plus satellite tables for specs, localized texts, prices
// and the gallery.
type BoatStore struct {
	db *DB
}

func NewBoatStore(db *DB) *BoatStore {
	return &BoatStore{db: db}
}

func isNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

const parsedBoatColumns = `id, boat_id, slug, source_url, charter_id, manufacturer, model, year,
	last_parsed, parse_count, last_parse_success, created_at, updated_at`

func scanParsedBoat(row pgx.Row) (*models.ParsedBoat, error) {
	var b models.ParsedBoat
	err := row.Scan(
		&b.ID, &b.BoatID, &b.Slug, &b.SourceURL, &b.CharterID, &b.Manufacturer,
		&b.Model, &b.Year, &b.LastParsed, &b.ParseCount, &b.LastParseSuccess,
		&b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, err
	}
	return &b, nil
}

// GetByBoatID returns the head row for a boat, or nil when never scraped.
func (s *BoatStore) GetByBoatID(ctx context.Context, boatID string) (*models.ParsedBoat, error) {
	boat, err := scanParsedBoat(s.db.QueryRow(ctx,
		`SELECT `+parsedBoatColumns+` FROM parsed_boats WHERE boat_id = $1`, boatID))
	if err != nil {
		return nil, fmt.Errorf("failed to get boat %s: %w", boatID, err)
	}
	return boat, nil
}

// GetBySlug returns the head row for a boat by its URL slug.
func (s *BoatStore) GetBySlug(ctx context.Context, slug string) (*models.ParsedBoat, error) {
	boat, err := scanParsedBoat(s.db.QueryRow(ctx,
		`SELECT `+parsedBoatColumns+` FROM parsed_boats WHERE slug = $1`, slug))
	if err != nil {
		return nil, fmt.Errorf("failed to get boat by slug %s: %w", slug, err)
	}
	return boat, nil
}

// Save writes a complete boat record in one transaction. The head row is
// upserted by boat_id with last_parsed refreshed and parse_count bumped.
// An existing charter link survives a re-scrape that could not resolve the
// charter. The gallery is replaced wholesale to keep the order dense.
func (s *BoatStore) Save(ctx context.Context, record *models.BoatRecord, charter *models.Charter) error {
	var charterID *int64
	if charter != nil {
		charterID = &charter.ID
	}

	return s.db.Transaction(ctx, func(tx pgx.Tx) error {
		now := time.Now()

		var boatPK int64
		err := tx.QueryRow(ctx, `
			INSERT INTO parsed_boats (
				boat_id, slug, source_url, charter_id, manufacturer, model, year,
				last_parsed, parse_count, last_parse_success, created_at, updated_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 1, TRUE, $8, $8)
			ON CONFLICT (boat_id) DO UPDATE SET
				slug = EXCLUDED.slug,
				source_url = EXCLUDED.source_url,
				charter_id = COALESCE(EXCLUDED.charter_id, parsed_boats.charter_id),
				manufacturer = EXCLUDED.manufacturer,
				model = EXCLUDED.model,
				year = EXCLUDED.year,
				last_parsed = EXCLUDED.last_parsed,
				parse_count = parsed_boats.parse_count + 1,
				last_parse_success = TRUE,
				updated_at = EXCLUDED.updated_at
			RETURNING id
		`, record.Boat.BoatID, record.Boat.Slug, record.Boat.SourceURL, charterID,
			record.Boat.Manufacturer, record.Boat.Model, record.Boat.Year, now,
		).Scan(&boatPK)
		if err != nil {
			return fmt.Errorf("failed to upsert boat %s: %w", record.Boat.BoatID, err)
		}

		if err := saveSpecs(ctx, tx, boatPK, &record.Specs); err != nil {
			return err
		}
		for i := range record.Descriptions {
			if err := saveDescription(ctx, tx, boatPK, &record.Descriptions[i]); err != nil {
				return err
			}
		}
		for i := range record.Details {
			if err := saveDetails(ctx, tx, boatPK, &record.Details[i]); err != nil {
				return err
			}
		}
		for i := range record.Prices {
			if err := savePrice(ctx, tx, boatPK, &record.Prices[i]); err != nil {
				return err
			}
		}
		if err := saveGallery(ctx, tx, boatPK, record.Gallery); err != nil {
			return err
		}

		record.Boat.ID = boatPK
		return nil
	})
}

// MarkFailure records a failed scrape without touching last_parsed, so a
// stale-but-successful record keeps serving from cache.
func (s *BoatStore) MarkFailure(ctx context.Context, boatID string) error {
	_, err := s.db.Exec(ctx, `
		UPDATE parsed_boats SET last_parse_success = FALSE, updated_at = NOW()
		WHERE boat_id = $1
	`, boatID)
	if err != nil {
		return fmt.Errorf("failed to mark boat %s failed: %w", boatID, err)
	}
	return nil
}

// CountBySlugs reports how many of the given slugs exist in the database,
// used to cross-check batch results.
func (s *BoatStore) CountBySlugs(ctx context.Context, slugs []string) (int, error) {
	if len(slugs) == 0 {
		return 0, nil
	}
	var count int
	err := s.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM parsed_boats WHERE slug = ANY($1)`, slugs,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count boats by slug: %w", err)
	}
	return count, nil
}

// ListSlugs returns every known slug, used to skip already-scraped boats
// during enumeration.
func (s *BoatStore) ListSlugs(ctx context.Context) ([]string, error) {
	rows, err := s.db.Query(ctx, `SELECT slug FROM parsed_boats`)
	if err != nil {
		return nil, fmt.Errorf("failed to list slugs: %w", err)
	}
	defer rows.Close()

	var slugs []string
	for rows.Next() {
		var slug string
		if err := rows.Scan(&slug); err != nil {
			return nil, fmt.Errorf("failed to scan slug: %w", err)
		}
		slugs = append(slugs, slug)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating slugs: %w", err)
	}
	return slugs, nil
}

// Stats returns aggregate counts for the ops API.
func (s *BoatStore) Stats(ctx context.Context) (total int, fresh int, err error) {
	err = s.db.QueryRow(ctx, `
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE last_parsed > NOW() - INTERVAL '24 hours')
		FROM parsed_boats
	`).Scan(&total, &fresh)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to get boat stats: %w", err)
	}
	return total, fresh, nil
}

func saveSpecs(ctx context.Context, tx pgx.Tx, boatPK int64, specs *models.TechnicalSpecs) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO boat_technical_specs (
			boat_id, length, beam, draft, cabins, berths, toilets,
			fuel_capacity, water_capacity, engine_power, number_engines,
			engine_type, saloon_sleeps, crew_sleeps, renovated_year
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT (boat_id) DO UPDATE SET
			length = EXCLUDED.length,
			beam = EXCLUDED.beam,
			draft = EXCLUDED.draft,
			cabins = EXCLUDED.cabins,
			berths = EXCLUDED.berths,
			toilets = EXCLUDED.toilets,
			fuel_capacity = EXCLUDED.fuel_capacity,
			water_capacity = EXCLUDED.water_capacity,
			engine_power = EXCLUDED.engine_power,
			number_engines = EXCLUDED.number_engines,
			engine_type = EXCLUDED.engine_type,
			saloon_sleeps = EXCLUDED.saloon_sleeps,
			crew_sleeps = EXCLUDED.crew_sleeps,
			renovated_year = EXCLUDED.renovated_year
	`, boatPK, specs.Length, specs.Beam, specs.Draft, specs.Cabins, specs.Berths,
		specs.Toilets, specs.FuelCapacity, specs.WaterCapacity, specs.EnginePower,
		specs.NumberEngines, specs.EngineType, specs.SaloonSleeps, specs.CrewSleeps,
		specs.RenovatedYear)
	if err != nil {
		return fmt.Errorf("failed to upsert technical specs: %w", err)
	}
	return nil
}

func saveDescription(ctx context.Context, tx pgx.Tx, boatPK int64, d *models.Description) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO boat_descriptions (
			boat_id, language, title, description, location, marina, country, region, city
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (boat_id, language) DO UPDATE SET
			title = EXCLUDED.title,
			description = EXCLUDED.description,
			location = EXCLUDED.location,
			marina = EXCLUDED.marina,
			country = EXCLUDED.country,
			region = EXCLUDED.region,
			city = EXCLUDED.city
	`, boatPK, d.Language, d.Title, d.Description, d.Location, d.Marina,
		d.Country, d.Region, d.City)
	if err != nil {
		return fmt.Errorf("failed to upsert description %s: %w", d.Language, err)
	}
	return nil
}

func saveDetails(ctx context.Context, tx pgx.Tx, boatPK int64, d *models.Details) error {
	cols := []any{d.Extras, d.AdditionalServices, d.DeliveryExtras, d.NotIncluded,
		d.Cockpit, d.Entertainment, d.Equipment}
	args := make([]any, 0, len(cols)+2)
	args = append(args, boatPK, d.Language)
	for _, c := range cols {
		raw, err := json.Marshal(c)
		if err != nil {
			return fmt.Errorf("failed to marshal details %s: %w", d.Language, err)
		}
		args = append(args, raw)
	}

	_, err := tx.Exec(ctx, `
		INSERT INTO boat_details (
			boat_id, language, extras, additional_services, delivery_extras,
			not_included, cockpit, entertainment, equipment
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (boat_id, language) DO UPDATE SET
			extras = EXCLUDED.extras,
			additional_services = EXCLUDED.additional_services,
			delivery_extras = EXCLUDED.delivery_extras,
			not_included = EXCLUDED.not_included,
			cockpit = EXCLUDED.cockpit,
			entertainment = EXCLUDED.entertainment,
			equipment = EXCLUDED.equipment
	`, args...)
	if err != nil {
		return fmt.Errorf("failed to upsert details %s: %w", d.Language, err)
	}
	return nil
}

func savePrice(ctx context.Context, tx pgx.Tx, boatPK int64, p *models.Price) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO boat_prices (boat_id, currency, price_per_day, price_per_week, old_price, discount)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (boat_id, currency) DO UPDATE SET
			price_per_day = EXCLUDED.price_per_day,
			price_per_week = EXCLUDED.price_per_week,
			old_price = EXCLUDED.old_price,
			discount = EXCLUDED.discount
	`, boatPK, p.Currency, p.PricePerDay, p.PricePerWeek, p.OldPrice, p.Discount)
	if err != nil {
		return fmt.Errorf("failed to upsert price %s: %w", p.Currency, err)
	}
	return nil
}

func saveGallery(ctx context.Context, tx pgx.Tx, boatPK int64, images []models.GalleryImage) error {
	if _, err := tx.Exec(ctx, `DELETE FROM boat_gallery WHERE boat_id = $1`, boatPK); err != nil {
		return fmt.Errorf("failed to clear gallery: %w", err)
	}
	for i, img := range images {
		_, err := tx.Exec(ctx, `
			INSERT INTO boat_gallery (boat_id, image_path, cdn_url, image_order)
			VALUES ($1, $2, $3, $4)
		`, boatPK, img.ImagePath, img.CDNURL, i+1)
		if err != nil {
			return fmt.Errorf("failed to insert gallery image %d: %w", i+1, err)
		}
	}
	return nil
}

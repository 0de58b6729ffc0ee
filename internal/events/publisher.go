package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/DmitriyKurilenko/rent-scraper/internal/database"
)

// EventType names a boat lifecycle event.
type EventType string

const (
	// EventTypeBoatScraped is published after a boat record was persisted.
	EventTypeBoatScraped EventType = "BOAT_SCRAPED"
	// EventTypeBoatScrapeFailed is published when a boat could not be
	// scraped after all retries.
	EventTypeBoatScrapeFailed EventType = "BOAT_SCRAPE_FAILED"
)

// BoatScrapedPayload is the payload of a BOAT_SCRAPED event.
type BoatScrapedPayload struct {
	EventID     string    `json:"event_id"`
	EventType   string    `json:"event_type"`
	Timestamp   time.Time `json:"timestamp"`
	BoatID      string    `json:"boat_id"`
	Slug        string    `json:"slug"`
	Title       string    `json:"title,omitempty"`
	Country     string    `json:"country,omitempty"`
	Charter     string    `json:"charter,omitempty"`
	PricePerDay float64   `json:"price_per_day,omitempty"`
	Currency    string    `json:"currency,omitempty"`
	Languages   []string  `json:"languages,omitempty"`
	ImageCount  int       `json:"image_count"`
	FromCache   bool      `json:"from_cache"`
	Source      string    `json:"source"`
}

// BoatScrapeFailedPayload is the payload of a BOAT_SCRAPE_FAILED event.
type BoatScrapeFailedPayload struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
	BoatID    string    `json:"boat_id,omitempty"`
	Slug      string    `json:"slug"`
	Error     string    `json:"error"`
	Source    string    `json:"source"`
}

type txRunner interface {
	Transaction(ctx context.Context, fn func(pgx.Tx) error) error
}

type outboxInserter interface {
	InsertWithTx(ctx context.Context, tx pgx.Tx, event *database.OutboxEvent) error
}

// Publisher writes lifecycle events through the transactional outbox.
type Publisher struct {
	db     txRunner
	outbox outboxInserter
	logger *slog.Logger
}

func NewPublisher(db *database.DB, logger *slog.Logger) *Publisher {
	return &Publisher{
		db:     db,
		outbox: database.NewOutboxRepository(db),
		logger: logger.With("component", "event_publisher"),
	}
}

// PublishBoatScraped records a successful scrape in the outbox.
func (p *Publisher) PublishBoatScraped(ctx context.Context, payload *BoatScrapedPayload) error {
	if payload.EventID == "" {
		payload.EventID = uuid.New().String()
	}
	if payload.EventType == "" {
		payload.EventType = string(EventTypeBoatScraped)
	}
	if payload.Timestamp.IsZero() {
		payload.Timestamp = time.Now()
	}
	if payload.Source == "" {
		payload.Source = "scraper"
	}

	return p.publish(ctx, string(EventTypeBoatScraped), payload.BoatID, payload)
}

// PublishBoatScrapeFailed records a failed scrape in the outbox.
func (p *Publisher) PublishBoatScrapeFailed(ctx context.Context, payload *BoatScrapeFailedPayload) error {
	if payload.EventID == "" {
		payload.EventID = uuid.New().String()
	}
	if payload.EventType == "" {
		payload.EventType = string(EventTypeBoatScrapeFailed)
	}
	if payload.Timestamp.IsZero() {
		payload.Timestamp = time.Now()
	}
	if payload.Source == "" {
		payload.Source = "scraper"
	}

	aggregateID := payload.BoatID
	if aggregateID == "" {
		aggregateID = payload.Slug
	}
	return p.publish(ctx, string(EventTypeBoatScrapeFailed), aggregateID, payload)
}

func (p *Publisher) publish(ctx context.Context, eventType, aggregateID string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	outboxEvent := &database.OutboxEvent{
		AggregateType: "boat",
		AggregateID:   aggregateID,
		EventType:     eventType,
		Payload:       data,
		TargetStream:  database.DefaultStream,
	}

	err = p.db.Transaction(ctx, func(tx pgx.Tx) error {
		return p.outbox.InsertWithTx(ctx, tx, outboxEvent)
	})
	if err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	p.logger.Info("event published to outbox",
		"type", eventType,
		"aggregate_id", aggregateID,
		"outbox_id", outboxEvent.ID,
	)

	return nil
}

// Package scraper orchestrates scraping one boat: fetch the primary page,
// run the extractors, aggregate the four secondary languages, mirror the
// gallery and persist the result.
package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/DmitriyKurilenko/rent-scraper/internal/boataround"
	"github.com/DmitriyKurilenko/rent-scraper/internal/events"
	"github.com/DmitriyKurilenko/rent-scraper/internal/fetch"
	"github.com/DmitriyKurilenko/rent-scraper/internal/models"
	"github.com/DmitriyKurilenko/rent-scraper/internal/parser"
)

const maxGalleryImages = 20

// PageFetcher loads one boat page.
type PageFetcher interface {
	FetchPage(ctx context.Context, pageURL string) (string, error)
}

// EquipmentAPI provides the localized equipment lists.
type EquipmentAPI interface {
	Equipment(ctx context.Context, slug string, langs []string) map[string]boataround.EquipmentSet
}

// BoatRepository persists scraped boats.
type BoatRepository interface {
	GetBySlug(ctx context.Context, slug string) (*models.ParsedBoat, error)
	GetByBoatID(ctx context.Context, boatID string) (*models.ParsedBoat, error)
	Save(ctx context.Context, record *models.BoatRecord, charter *models.Charter) error
	MarkFailure(ctx context.Context, boatID string) error
}

// ImageStore mirrors one gallery image and returns its CDN URL.
type ImageStore interface {
	EnsureImage(ctx context.Context, imagePath string) (string, error)
}

// EventPublisher emits lifecycle events after persistence.
type EventPublisher interface {
	PublishBoatScraped(ctx context.Context, payload *events.BoatScrapedPayload) error
	PublishBoatScrapeFailed(ctx context.Context, payload *events.BoatScrapeFailedPayload) error
}

// Service scrapes boats. All collaborators are injected so tests can fake
// the network and the database.
type Service struct {
	fetcher   PageFetcher
	parser    *parser.Parser
	api       EquipmentAPI
	boats     BoatRepository
	images    ImageStore
	publisher EventPublisher
	logger    *slog.Logger
	cacheTTL  time.Duration
}

type ServiceConfig struct {
	CacheTTL time.Duration
}

func NewService(
	fetcher PageFetcher,
	p *parser.Parser,
	api EquipmentAPI,
	boats BoatRepository,
	images ImageStore,
	publisher EventPublisher,
	logger *slog.Logger,
	cfg ServiceConfig,
) *Service {
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = models.DefaultCacheTTL
	}
	return &Service{
		fetcher:   fetcher,
		parser:    p,
		api:       api,
		boats:     boats,
		images:    images,
		publisher: publisher,
		logger:    logger.With("component", "scraper"),
		cacheTTL:  cfg.CacheTTL,
	}
}

// Options control one scrape.
type Options struct {
	CheckIn      string
	CheckOut     string
	ForceRefresh bool
	CacheTTL     time.Duration
}

// Result is the outcome of one scrape.
type Result struct {
	Boat      *models.ParsedBoat
	Record    *models.BoatRecord
	FromCache bool
}

// Scrape fetches and persists one boat by slug. A boat scraped within the
// cache TTL is returned from the database without touching the site,
// unless ForceRefresh is set.
func (s *Service) Scrape(ctx context.Context, slug string, opts Options) (*Result, error) {
	ttl := opts.CacheTTL
	if ttl <= 0 {
		ttl = s.cacheTTL
	}

	if !opts.ForceRefresh {
		cached, err := s.boats.GetBySlug(ctx, slug)
		if err != nil {
			return nil, err
		}
		if cached.IsFresh(ttl) {
			s.logger.Info("serving from cache", "slug", slug, "last_parsed", cached.LastParsed)
			return &Result{Boat: cached, FromCache: true}, nil
		}
	}

	result, err := s.scrape(ctx, slug, opts)
	if err != nil {
		s.recordFailure(ctx, slug, err)
		return nil, err
	}
	return result, nil
}

func (s *Service) scrape(ctx context.Context, slug string, opts Options) (*Result, error) {
	pageURL := s.pageURL(slug, models.LangRU, opts)

	html, err := s.fetcher.FetchPage(ctx, pageURL)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", slug, err)
	}

	doc, err := s.parser.Parse(html)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", slug, err)
	}

	boatID := s.parser.ExtractBoatID(html)
	if boatID == "" {
		boatID = slug
	}

	pics := s.parser.ExtractPictures(doc)
	info := s.parser.ExtractBoatInfo(doc)
	prices := s.parser.ExtractPrices(doc)

	primary := languageDetails{
		info:     s.parser.ExtractLocalizedInfo(doc),
		extras:   s.parser.ExtractExtras(doc),
		services: s.parser.ExtractAdditionalServices(doc),
		delivery: s.parser.ExtractDeliveryExtras(doc),
		excluded: s.parser.ExtractNotIncluded(doc),
	}
	if primary.info.Title == "" {
		primary.info.Title = info.Title
	}

	localized := s.fetchLocalized(ctx, slug, opts)
	localized[models.LangRU] = primary

	equipment := s.api.Equipment(ctx, slug, models.Languages)

	gallery := s.mirrorGallery(ctx, pics)

	record := s.assemble(slug, boatID, pageURL, &info, prices, localized, equipment, gallery)

	if err := s.boats.Save(ctx, record, nil); err != nil {
		return nil, fmt.Errorf("failed to save %s: %w", slug, err)
	}

	s.logger.Info("boat scraped",
		"slug", slug,
		"boat_id", boatID,
		"title", info.Title,
		"images", len(gallery),
		"languages", len(record.Descriptions))

	s.publishScraped(ctx, record, prices)

	return &Result{Boat: &record.Boat, Record: record}, nil
}

type languageDetails struct {
	info     parser.LocalizedInfo
	extras   []models.Extra
	services []models.Service
	delivery []models.DeliveryExtra
	excluded []models.NotIncludedItem
}

// pageURL builds the localized page URL with dates and EUR pricing.
func (s *Service) pageURL(slug, lang string, opts Options) string {
	pageURL := parser.BoatURLForLanguage(slug, lang)

	q := url.Values{}
	if opts.CheckIn != "" {
		q.Set("checkIn", opts.CheckIn)
	}
	if opts.CheckOut != "" {
		q.Set("checkOut", opts.CheckOut)
	}
	if len(q) > 0 {
		pageURL += "?" + q.Encode()
	}

	return fetch.AddCurrency(pageURL, "EUR")
}

// fetchLocalized loads the four secondary language pages. A failed page is
// skipped: its fields later fall back to the primary language.
func (s *Service) fetchLocalized(ctx context.Context, slug string, opts Options) map[string]languageDetails {
	out := make(map[string]languageDetails, len(models.Languages))

	for _, lang := range models.Languages {
		if lang == models.LangRU {
			continue
		}

		html, err := s.fetcher.FetchPage(ctx, s.pageURL(slug, lang, opts))
		if err != nil {
			s.logger.Warn("failed to fetch localized page", "slug", slug, "lang", lang, "error", err)
			continue
		}
		doc, err := s.parser.Parse(html)
		if err != nil {
			s.logger.Warn("failed to parse localized page", "slug", slug, "lang", lang, "error", err)
			continue
		}

		out[lang] = languageDetails{
			info:     s.parser.ExtractLocalizedInfo(doc),
			extras:   s.parser.ExtractExtras(doc),
			services: s.parser.ExtractAdditionalServices(doc),
			delivery: s.parser.ExtractDeliveryExtras(doc),
			excluded: s.parser.ExtractNotIncluded(doc),
		}
	}

	return out
}

// mirrorGallery mirrors the first pictures and keeps only the ones that
// made it to the CDN, with a dense 1..N order.
func (s *Service) mirrorGallery(ctx context.Context, pics []string) []models.GalleryImage {
	if len(pics) > maxGalleryImages {
		pics = pics[:maxGalleryImages]
	}

	var gallery []models.GalleryImage
	for _, pic := range pics {
		cdnURL, err := s.images.EnsureImage(ctx, pic)
		if err != nil {
			s.logger.Warn("failed to mirror image", "path", pic, "error", err)
			continue
		}
		gallery = append(gallery, models.GalleryImage{
			ImagePath: pic,
			CDNURL:    cdnURL,
			Order:     len(gallery) + 1,
		})
	}

	s.logger.Info("gallery mirrored", "requested", len(pics), "mirrored", len(gallery))
	return gallery
}

func (s *Service) assemble(
	slug, boatID, sourceURL string,
	info *parser.BoatInfo,
	prices parser.Prices,
	localized map[string]languageDetails,
	equipment map[string]boataround.EquipmentSet,
	gallery []models.GalleryImage,
) *models.BoatRecord {
	record := &models.BoatRecord{
		Boat: models.ParsedBoat{
			BoatID:       boatID,
			Slug:         slug,
			SourceURL:    sourceURL,
			Manufacturer: info.Manufacturer,
			Model:        info.Model,
			Year:         atoiPtr(info.Year),
		},
		Specs: models.TechnicalSpecs{
			Length:        atofPtr(info.Length),
			Beam:          atofPtr(info.Beam),
			Draft:         atofPtr(info.Draft),
			Cabins:        atoiPtr(info.Cabins),
			Berths:        atoiPtr(info.MaxSleeps),
			Toilets:       atoiPtr(info.Toilets),
			FuelCapacity:  atoiPtr(info.Fuel),
			WaterCapacity: atoiPtr(info.WaterTank),
			EnginePower:   atoiPtr(info.EnginePower),
			NumberEngines: atoiPtr(info.NumberEngines),
			EngineType:    info.EngineType,
			SaloonSleeps:  atoiPtr(info.SaloonSleeps),
			CrewSleeps:    atoiPtr(info.CrewSleeps),
			RenovatedYear: atoiPtr(info.RenovatedYear),
		},
		Gallery: gallery,
	}
	if record.Specs.Berths == nil {
		record.Specs.Berths = atoiPtr(info.People)
	}

	primary := localized[models.LangRU]

	for _, lang := range models.Languages {
		details := localized[lang]

		// secondary languages fall back to the primary text field by
		// field, so one missing translation never blanks a record
		desc := models.Description{
			Language:    lang,
			Title:       fallback(details.info.Title, primary.info.Title, info.Title),
			Description: fallback(details.info.Description, primary.info.Description, info.Description),
			Location:    fallback(details.info.Location, primary.info.Location, info.Location),
			Marina:      fallback(details.info.Marina, primary.info.Marina, info.Marina),
			Country:     info.Country,
		}
		record.Descriptions = append(record.Descriptions, desc)

		langExtras := details.extras
		if len(langExtras) == 0 {
			langExtras = primary.extras
		}
		langServices := details.services
		if len(langServices) == 0 {
			langServices = primary.services
		}
		langDelivery := details.delivery
		if len(langDelivery) == 0 {
			langDelivery = primary.delivery
		}
		langExcluded := details.excluded
		if len(langExcluded) == 0 {
			langExcluded = primary.excluded
		}

		eq := equipment[lang]
		record.Details = append(record.Details, models.Details{
			Language:           lang,
			Extras:             langExtras,
			AdditionalServices: langServices,
			DeliveryExtras:     langDelivery,
			NotIncluded:        langExcluded,
			Cockpit:            equipmentItems(eq.Cockpit),
			Entertainment:      equipmentItems(eq.Entertainment),
			Equipment:          equipmentItems(eq.Equipment),
		})
	}

	if perDay := dailyPrice(prices); perDay > 0 {
		price := models.Price{
			Currency:    "EUR",
			PricePerDay: perDay,
			OldPrice:    prices.OldPrice,
		}
		if prices.Discount != nil {
			price.Discount = *prices.Discount
		}
		record.Prices = append(record.Prices, price)
	}

	return record
}

func (s *Service) publishScraped(ctx context.Context, record *models.BoatRecord, prices parser.Prices) {
	if s.publisher == nil {
		return
	}

	var langs []string
	for _, d := range record.Descriptions {
		langs = append(langs, d.Language)
	}

	payload := &events.BoatScrapedPayload{
		BoatID:      record.Boat.BoatID,
		Slug:        record.Boat.Slug,
		PricePerDay: dailyPrice(prices),
		Currency:    "EUR",
		Languages:   langs,
		ImageCount:  len(record.Gallery),
	}
	if len(record.Descriptions) > 0 {
		payload.Title = record.Descriptions[0].Title
		payload.Country = record.Descriptions[0].Country
	}

	if err := s.publisher.PublishBoatScraped(ctx, payload); err != nil {
		s.logger.Warn("failed to publish scraped event", "slug", record.Boat.Slug, "error", err)
	}
}

func (s *Service) recordFailure(ctx context.Context, slug string, scrapeErr error) {
	if boat, err := s.boats.GetBySlug(ctx, slug); err == nil && boat != nil {
		if err := s.boats.MarkFailure(ctx, boat.BoatID); err != nil {
			s.logger.Warn("failed to mark boat failed", "slug", slug, "error", err)
		}
	}

	if s.publisher == nil {
		return
	}
	err := s.publisher.PublishBoatScrapeFailed(ctx, &events.BoatScrapeFailedPayload{
		Slug:  slug,
		Error: scrapeErr.Error(),
	})
	if err != nil {
		s.logger.Warn("failed to publish failure event", "slug", slug, "error", err)
	}
}

func dailyPrice(prices parser.Prices) float64 {
	if prices.TotalPrice != nil && *prices.TotalPrice > 0 {
		return *prices.TotalPrice
	}
	if prices.MinPrice != nil && *prices.MinPrice > 0 {
		return *prices.MinPrice
	}
	return 0
}

func fallback(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func equipmentItems(items []models.NamedItem) []models.EquipmentItem {
	var out []models.EquipmentItem
	for _, it := range items {
		out = append(out, models.EquipmentItem{Name: it.Name})
	}
	return out
}

func atoiPtr(s string) *int {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		// values like "12.5" still carry an integer part
		f, ferr := strconv.ParseFloat(strings.ReplaceAll(s, ",", "."), 64)
		if ferr != nil {
			return nil
		}
		v = int(f)
	}
	return &v
}

func atofPtr(s string) *float64 {
	s = strings.TrimSpace(strings.ReplaceAll(s, ",", "."))
	s = strings.TrimSuffix(s, "m")
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &v
}

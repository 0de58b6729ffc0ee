package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/DmitriyKurilenko/rent-scraper/internal/boataround"
	"github.com/DmitriyKurilenko/rent-scraper/internal/database"
	"github.com/DmitriyKurilenko/rent-scraper/internal/jobs"
	"github.com/DmitriyKurilenko/rent-scraper/internal/models"
	"github.com/DmitriyKurilenko/rent-scraper/internal/pricing"
	"github.com/DmitriyKurilenko/rent-scraper/internal/scraper"
)

type Handlers struct {
	scraper  *scraper.Service
	jobs     *jobs.Manager
	boats    *database.BoatStore
	charters *database.CharterStore
	api      *boataround.Client
	logger   *slog.Logger
}

func NewHandlers(s *scraper.Service, jobsManager *jobs.Manager, boats *database.BoatStore, charters *database.CharterStore, apiClient *boataround.Client, logger *slog.Logger) *Handlers {
	return &Handlers{
		scraper:  s,
		jobs:     jobsManager,
		boats:    boats,
		charters: charters,
		api:      apiClient,
		logger:   logger,
	}
}

// ScrapeRequest asks for one boat to be scraped.
type ScrapeRequest struct {
	Slug         string `json:"slug"`
	CheckIn      string `json:"check_in,omitempty"`
	CheckOut     string `json:"check_out,omitempty"`
	ForceRefresh bool   `json:"force_refresh,omitempty"`
}

// ScrapeResponse reports the outcome of a single scrape.
type ScrapeResponse struct {
	BoatID     string     `json:"boat_id"`
	Slug       string     `json:"slug"`
	FromCache  bool       `json:"from_cache"`
	LastParsed *time.Time `json:"last_parsed,omitempty"`
	Error      string     `json:"error,omitempty"`
}

// ScrapeBoat scrapes one boat synchronously.
func (h *Handlers) ScrapeBoat(w http.ResponseWriter, r *http.Request) {
	var req ScrapeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Slug == "" {
		h.respondError(w, http.StatusBadRequest, "slug is required")
		return
	}

	result, err := h.scraper.Scrape(r.Context(), req.Slug, scraper.Options{
		CheckIn:      req.CheckIn,
		CheckOut:     req.CheckOut,
		ForceRefresh: req.ForceRefresh,
	})
	if err != nil {
		h.logger.Error("failed to scrape boat", "slug", req.Slug, "error", err)
		h.respondJSON(w, http.StatusOK, ScrapeResponse{
			Slug:  req.Slug,
			Error: err.Error(),
		})
		return
	}

	h.respondJSON(w, http.StatusOK, ScrapeResponse{
		BoatID:     result.Boat.BoatID,
		Slug:       result.Boat.Slug,
		FromCache:  result.FromCache,
		LastParsed: &result.Boat.LastParsed,
	})
}

// GetBoat returns the head row of a scraped boat.
func (h *Handlers) GetBoat(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")
	if slug == "" {
		h.respondError(w, http.StatusBadRequest, "slug is required")
		return
	}

	boat, err := h.boats.GetBySlug(r.Context(), slug)
	if err != nil {
		h.logger.Error("failed to get boat", "slug", slug, "error", err)
		h.respondError(w, http.StatusInternalServerError, "failed to get boat")
		return
	}
	if boat == nil {
		h.respondError(w, http.StatusNotFound, "boat not found")
		return
	}

	h.respondJSON(w, http.StatusOK, boat)
}

// CreateJobRequest queues a batch run.
type CreateJobRequest struct {
	Destination  string `json:"destination"`
	MaxPages     int    `json:"max_pages,omitempty"`
	Limit        int    `json:"limit,omitempty"`
	Workers      int    `json:"workers,omitempty"`
	CheckIn      string `json:"check_in,omitempty"`
	CheckOut     string `json:"check_out,omitempty"`
	ForceRefresh bool   `json:"force_refresh,omitempty"`
}

type CreateJobResponse struct {
	JobID   string `json:"job_id"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

// CreateJob queues a batch scrape job.
func (h *Handlers) CreateJob(w http.ResponseWriter, r *http.Request) {
	var req CreateJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	job, err := h.jobs.CreateJob(r.Context(), &jobs.Job{
		Destination:  req.Destination,
		MaxPages:     req.MaxPages,
		Limit:        req.Limit,
		Workers:      req.Workers,
		CheckIn:      req.CheckIn,
		CheckOut:     req.CheckOut,
		ForceRefresh: req.ForceRefresh,
	})
	if err != nil {
		h.logger.Error("failed to create job", "error", err)
		h.respondError(w, http.StatusInternalServerError, "failed to create job")
		return
	}

	h.respondJSON(w, http.StatusCreated, CreateJobResponse{
		JobID:   job.ID,
		Status:  job.Status,
		Message: "Job created successfully",
	})
}

// GetJob returns job status and counters.
func (h *Handlers) GetJob(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	if jobID == "" {
		h.respondError(w, http.StatusBadRequest, "job ID is required")
		return
	}

	job, err := h.jobs.GetJob(r.Context(), jobID)
	if err != nil {
		h.respondError(w, http.StatusNotFound, "job not found")
		return
	}

	h.respondJSON(w, http.StatusOK, job)
}

// ListJobs lists recent jobs.
func (h *Handlers) ListJobs(w http.ResponseWriter, r *http.Request) {
	list, err := h.jobs.ListJobs(r.Context())
	if err != nil {
		h.logger.Error("failed to list jobs", "error", err)
		h.respondError(w, http.StatusInternalServerError, "failed to list jobs")
		return
	}

	h.respondJSON(w, http.StatusOK, list)
}

// GetStats returns job and boat statistics.
func (h *Handlers) GetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.jobs.GetStats(r.Context())
	if err != nil {
		h.logger.Error("failed to get stats", "error", err)
		h.respondError(w, http.StatusInternalServerError, "failed to get stats")
		return
	}

	h.respondJSON(w, http.StatusOK, stats)
}

// SearchRequest proxies a catalog search.
type SearchRequest struct {
	Destination string `json:"destination"`
	CheckIn     string `json:"check_in,omitempty"`
	CheckOut    string `json:"check_out,omitempty"`
	Category    string `json:"category,omitempty"`
	Cabins      string `json:"cabins,omitempty"`
	Year        string `json:"year,omitempty"`
	Price       string `json:"price,omitempty"`
	Sort        string `json:"sort,omitempty"`
	Page        int    `json:"page,omitempty"`
	Limit       int    `json:"limit,omitempty"`
}

type SearchResponse struct {
	Boats      []models.Listing `json:"boats"`
	Total      int              `json:"total"`
	Page       int              `json:"page"`
	TotalPages int              `json:"total_pages"`
}

// Search runs a catalog search and returns formatted listings.
func (h *Handlers) Search(w http.ResponseWriter, r *http.Request) {
	var req SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := h.api.Search(r.Context(), boataround.SearchParams{
		Destination: req.Destination,
		CheckIn:     req.CheckIn,
		CheckOut:    req.CheckOut,
		Category:    req.Category,
		Cabins:      req.Cabins,
		Year:        req.Year,
		Price:       req.Price,
		Sort:        req.Sort,
		Page:        req.Page,
		Limit:       req.Limit,
	})
	if err != nil {
		h.logger.Error("search failed", "destination", req.Destination, "error", err)
		h.respondError(w, http.StatusBadGateway, "search failed")
		return
	}

	listings := make([]models.Listing, 0, len(result.Boats))
	for i := range result.Boats {
		listings = append(listings, boataround.FormatBoat(r.Context(), &result.Boats[i], h.charters))
	}

	h.respondJSON(w, http.StatusOK, SearchResponse{
		Boats:      listings,
		Total:      result.Total,
		Page:       result.Page,
		TotalPages: result.TotalPages,
	})
}

// Quote requests a live price quote for one boat and date range.
func (h *Handlers) Quote(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")
	q := r.URL.Query()
	checkIn := q.Get("check_in")
	checkOut := q.Get("check_out")
	if slug == "" || checkIn == "" || checkOut == "" {
		h.respondError(w, http.StatusBadRequest, "slug, check_in and check_out are required")
		return
	}
	currency := q.Get("currency")
	if currency == "" {
		currency = "EUR"
	}

	quote, err := h.api.GetPrice(r.Context(), slug, checkIn, checkOut, currency)
	if err != nil {
		h.logger.Error("price quote failed", "slug", slug, "error", err)
		h.respondError(w, http.StatusBadGateway, "price quote failed")
		return
	}

	total := quote.TotalPrice
	if total == 0 {
		total = quote.Price
	}
	pkg := pricing.TouristPackagePrice(pricing.TouristPackageInput{
		TotalPrice:   total,
		FullPrice:    quote.Price,
		BoatDiscount: quote.Discount,
		CheckIn:      checkIn,
		CheckOut:     checkOut,
		Country:      q.Get("country"),
		Category:     q.Get("category"),
		Marina:       q.Get("marina"),
		Length:       queryFloat(q, "length"),
		MaxSleeps:    queryInt(q, "sleeps"),
		DoubleCabins: queryInt(q, "double_cabins"),
		Dish:         q.Get("dish") == "true" || q.Get("dish") == "1",
		Adjustment:   queryFloat(q, "adjustment"),
	})

	h.respondJSON(w, http.StatusOK, QuoteResponse{Quote: quote, Package: pkg})
}

// QuoteResponse pairs the raw charter quote with the all-in package price.
type QuoteResponse struct {
	Quote   *boataround.PriceQuote       `json:"quote"`
	Package pricing.TouristPackageResult `json:"package"`
}

func queryFloat(q url.Values, key string) float64 {
	v, _ := strconv.ParseFloat(q.Get(key), 64)
	return v
}

func queryInt(q url.Values, key string) int {
	v, _ := strconv.Atoi(q.Get(key))
	return v
}

// Autocomplete suggests destinations for a query prefix.
func (h *Handlers) Autocomplete(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		h.respondError(w, http.StatusBadRequest, "q is required")
		return
	}

	suggestions, err := h.api.Autocomplete(r.Context(), query, "en_EN", 10)
	if err != nil {
		h.logger.Error("autocomplete failed", "query", query, "error", err)
		h.respondError(w, http.StatusBadGateway, "autocomplete failed")
		return
	}

	h.respondJSON(w, http.StatusOK, suggestions)
}

// Languages returns the supported page locales.
func (h *Handlers) Languages(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, models.Languages)
}

func (h *Handlers) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handlers) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, map[string]string{"error": message})
}

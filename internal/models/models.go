package models

import (
	"time"
)

// Supported page languages. Russian is the primary language: scalar fields
// on the boat record always come from the ru_RU page.
const (
	LangRU = "ru_RU"
	LangEN = "en_EN"
	LangDE = "de_DE"
	LangFR = "fr_FR"
	LangES = "es_ES"
)

// Languages lists every locale a boat page is fetched in, primary first.
var Languages = []string{LangRU, LangEN, LangDE, LangFR, LangES}

// Charter is a charter company operating boats. Commission is a percent and
// defaults to 20 for newly discovered charters; a stored commission is never
// overwritten by a re-scrape.
type Charter struct {
	ID         int64     `json:"id"`
	CharterID  string    `json:"charter_id"`
	Name       string    `json:"name"`
	Logo       string    `json:"logo,omitempty"`
	Commission int       `json:"commission"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// ParsedBoat is the head row of a scraped boat. BoatID is the upstream
// 24-hex object id when known, otherwise the slug.
type ParsedBoat struct {
	ID               int64     `json:"id"`
	BoatID           string    `json:"boat_id"`
	Slug             string    `json:"slug"`
	SourceURL        string    `json:"source_url,omitempty"`
	CharterID        *int64    `json:"charter_id,omitempty"`
	Manufacturer     string    `json:"manufacturer,omitempty"`
	Model            string    `json:"model,omitempty"`
	Year             *int      `json:"year,omitempty"`
	LastParsed       time.Time `json:"last_parsed"`
	ParseCount       int       `json:"parse_count"`
	LastParseSuccess bool      `json:"last_parse_success"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// IsFresh reports whether the record was parsed within maxAge. A nil boat is
// never fresh.
func (b *ParsedBoat) IsFresh(maxAge time.Duration) bool {
	if b == nil {
		return false
	}
	return time.Since(b.LastParsed) < maxAge
}

// DefaultCacheTTL is how long a parsed boat counts as fresh.
const DefaultCacheTTL = 24 * time.Hour

// TechnicalSpecs holds the filterable numeric parameters, one row per boat.
type TechnicalSpecs struct {
	BoatID        int64    `json:"-"`
	Length        *float64 `json:"length,omitempty"`
	Beam          *float64 `json:"beam,omitempty"`
	Draft         *float64 `json:"draft,omitempty"`
	Cabins        *int     `json:"cabins,omitempty"`
	Berths        *int     `json:"berths,omitempty"`
	Toilets       *int     `json:"toilets,omitempty"`
	FuelCapacity  *int     `json:"fuel_capacity,omitempty"`
	WaterCapacity *int     `json:"water_capacity,omitempty"`
	EnginePower   *int     `json:"engine_power,omitempty"`
	NumberEngines *int     `json:"number_engines,omitempty"`
	EngineType    string   `json:"engine_type,omitempty"`
	SaloonSleeps  *int     `json:"saloon_sleeps,omitempty"`
	CrewSleeps    *int     `json:"crew_sleeps,omitempty"`
	RenovatedYear *int     `json:"renovated_year,omitempty"`
}

// Description is the localized text block, unique per (boat, language).
type Description struct {
	BoatID      int64  `json:"-"`
	Language    string `json:"language"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Location    string `json:"location,omitempty"`
	Marina      string `json:"marina,omitempty"`
	Country     string `json:"country,omitempty"`
	Region      string `json:"region,omitempty"`
	City        string `json:"city,omitempty"`
}

// Price is unique per (boat, currency).
type Price struct {
	BoatID       int64    `json:"-"`
	Currency     string   `json:"currency"`
	PricePerDay  float64  `json:"price_per_day"`
	PricePerWeek *float64 `json:"price_per_week,omitempty"`
	OldPrice     *float64 `json:"old_price,omitempty"`
	Discount     float64  `json:"discount,omitempty"`
}

// GalleryImage is one ordered photo. Order is dense, 1..N.
type GalleryImage struct {
	BoatID    int64  `json:"-"`
	ImagePath string `json:"image_path"`
	CDNURL    string `json:"cdn_url"`
	Order     int    `json:"order"`
}

// Extra is a bookable add-on from the boat page (skipper, SUP board...).
type Extra struct {
	ID             string  `json:"id,omitempty"`
	Name           string  `json:"name"`
	Slug           string  `json:"slug,omitempty"`
	AdditionalInfo string  `json:"additional_info,omitempty"`
	Unit           string  `json:"unit,omitempty"`
	Price          float64 `json:"price"`
	PriceNice      string  `json:"price_nice,omitempty"`
	Currency       string  `json:"currency"`
	Deposit        float64 `json:"deposit,omitempty"`
	Mandatory      bool    `json:"mandatory"`
	PayWhen        string  `json:"pay_when,omitempty"`
	Insurance      bool    `json:"insurance,omitempty"`
	AmountLabel    string  `json:"amount_with_label,omitempty"`
}

// Service is an additional service (flexible cancellation and the like).
type Service struct {
	Name           string  `json:"name"`
	Slug           string  `json:"slug,omitempty"`
	AmountWithUnit string  `json:"amount_with_unit,omitempty"`
	Amount         float64 `json:"amount,omitempty"`
	AmountType     string  `json:"amount_type,omitempty"`
	Disclaimer     string  `json:"disclaimer,omitempty"`
	Badge          string  `json:"badge,omitempty"`
	Unit           string  `json:"unit,omitempty"`
}

// DeliveryExtra is a delivery-related add-on.
type DeliveryExtra struct {
	Name           string  `json:"name"`
	AdditionalInfo string  `json:"additional_info,omitempty"`
	Unit           string  `json:"unit,omitempty"`
	Price          float64 `json:"price"`
}

// NotIncludedItem is a cost the listed price does not cover.
type NotIncludedItem struct {
	Name        string `json:"name"`
	Price       string `json:"price,omitempty"`
	Option      string `json:"option,omitempty"`
	Description string `json:"description,omitempty"`
}

// EquipmentItem is one entry of the cockpit/entertainment/equipment sections.
type EquipmentItem struct {
	Name           string  `json:"name"`
	Slug           string  `json:"slug,omitempty"`
	AdditionalInfo string  `json:"additional_info,omitempty"`
	Unit           string  `json:"unit,omitempty"`
	Price          float64 `json:"price,omitempty"`
	PriceNice      string  `json:"price_nice,omitempty"`
	Currency       string  `json:"currency,omitempty"`
	Mandatory      bool    `json:"mandatory,omitempty"`
	PayWhen        string  `json:"pay_when,omitempty"`
}

// Details holds the per-language list fields (extras, services, equipment).
type Details struct {
	BoatID             int64             `json:"-"`
	Language           string            `json:"language"`
	Extras             []Extra           `json:"extras"`
	AdditionalServices []Service         `json:"additional_services"`
	DeliveryExtras     []DeliveryExtra   `json:"delivery_extras"`
	NotIncluded        []NotIncludedItem `json:"not_included"`
	Cockpit            []EquipmentItem   `json:"cockpit"`
	Entertainment      []EquipmentItem   `json:"entertainment"`
	Equipment          []EquipmentItem   `json:"equipment"`
}

// BoatRecord bundles everything extracted for one boat before persistence.
type BoatRecord struct {
	Boat         ParsedBoat
	Specs        TechnicalSpecs
	Descriptions []Description
	Prices       []Price
	Gallery      []GalleryImage
	Details      []Details
}

// Listing is the flat search-result shape produced from the JSON API, used
// for enumeration and for marketplace previews.
type Listing struct {
	ID              string      `json:"id"`
	Slug            string      `json:"slug"`
	Name            string      `json:"name"`
	Marina          string      `json:"marina,omitempty"`
	Country         string      `json:"country,omitempty"`
	Region          string      `json:"region,omitempty"`
	City            string      `json:"city,omitempty"`
	Location        string      `json:"location,omitempty"`
	Price           int         `json:"price"`
	OldPrice        int         `json:"old_price,omitempty"`
	DiscountPercent int         `json:"discount_percent,omitempty"`
	PricePerDay     int         `json:"price_per_day,omitempty"`
	Currency        string      `json:"currency"`
	Image           string      `json:"image,omitempty"`
	Images          []string    `json:"images,omitempty"`
	Cabins          int         `json:"cabins,omitempty"`
	Berths          int         `json:"berths,omitempty"`
	Length          float64     `json:"length,omitempty"`
	Year            int         `json:"year,omitempty"`
	Category        string      `json:"category,omitempty"`
	Type            string      `json:"type,omitempty"`
	Rating          float64     `json:"rating,omitempty"`
	CharterName     string      `json:"charter,omitempty"`
	CharterLogo     string      `json:"charter_logo,omitempty"`
	CharterID       string      `json:"charter_id,omitempty"`
	Coordinates     []float64   `json:"coordinates,omitempty"`
	Cockpit         []NamedItem `json:"cockpit,omitempty"`
	Entertainment   []NamedItem `json:"entertainment,omitempty"`
	Equipment       []NamedItem `json:"equipment,omitempty"`
}

// NamedItem is the {name} wrapper the marketplace frontend expects for
// equipment entries.
type NamedItem struct {
	Name string `json:"name"`
}

package parser

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// languageMapping maps a language code to the site locale segment and the
// localized word for "boat" used in page URLs.
var languageMapping = map[string][2]string{
	"ru_RU": {"ru", "yachta"},
	"en_EN": {"us", "boat"},
	"de_DE": {"de", "boot"},
	"fr_FR": {"fr", "bateau"},
	"es_ES": {"es", "bote"},
}

// BoatURLForLanguage builds the listing page URL for a slug in the given
// language. Unknown languages fall back to Russian.
func BoatURLForLanguage(slug, lang string) string {
	m, ok := languageMapping[lang]
	if !ok {
		m = languageMapping["ru_RU"]
	}
	return fmt.Sprintf("https://www.boataround.com/%s/%s/%s/", m[0], m[1], slug)
}

// Parser extracts structured boat data from listing page HTML. Every field
// has an ordered list of strategies: structured component attributes first,
// regex over the raw HTML as fallback.
type Parser struct {
	logger *slog.Logger

	picturePattern *regexp.Regexp
	boatIDPattern  *regexp.Regexp
	slugPattern    *regexp.Regexp
	pricePatterns  []*regexp.Regexp
}

func New(logger *slog.Logger) *Parser {
	return &Parser{
		logger:         logger.With("component", "parser"),
		picturePattern: regexp.MustCompile(`(?i)boats/([a-f0-9]{24})/([a-f0-9]+)\.(jpg|jpeg|png|webp)`),
		boatIDPattern:  regexp.MustCompile(`/boats/([a-f0-9]{24})/`),
		slugPattern:    regexp.MustCompile(`/(?:boat|yachta|boot|bateau|bote)/([^/?#]+)`),
		pricePatterns: []*regexp.Regexp{
			regexp.MustCompile(`total["']?\s*:\s*["']?(\d+)`),
			regexp.MustCompile(`price["']?\s*:\s*["']?(\d+)`),
			regexp.MustCompile(`(\d[\d\s]{2,})\s*€`),
			regexp.MustCompile(`€\s*(\d[\d\s]{2,})`),
		},
	}
}

// Document pairs the parsed DOM with the raw HTML the regex fallbacks need.
type Document struct {
	doc *goquery.Document
	raw string
}

func (p *Parser) Parse(html string) (*Document, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse html: %w", err)
	}
	return &Document{doc: doc, raw: html}, nil
}

// ExtractBoatID finds the upstream 24-hex boat object id anywhere in the page.
func (p *Parser) ExtractBoatID(html string) string {
	if m := p.boatIDPattern.FindStringSubmatch(html); m != nil {
		return m[1]
	}
	return ""
}

// ExtractSlug pulls the boat slug out of a listing URL.
func (p *Parser) ExtractSlug(pageURL string) string {
	if m := p.slugPattern.FindStringSubmatch(pageURL); m != nil {
		return m[1]
	}
	return "unknown"
}

// ExtractPictures returns the gallery image paths: the <gallery-mobile>
// component's :gallery attribute first, a regex scan of the raw HTML when
// the component is missing.
func (p *Parser) ExtractPictures(d *Document) []string {
	pics := p.picturesFromGallery(d.doc)
	if len(pics) == 0 {
		p.logger.Warn("gallery component missing, using regex fallback")
		pics = p.picturesFallback(d.raw)
	}
	return pics
}

func (p *Parser) picturesFromGallery(doc *goquery.Document) []string {
	galleryJSON, ok := doc.Find("gallery-mobile").Attr(":gallery")
	if !ok || galleryJSON == "" {
		return nil
	}

	var items []struct {
		Path string `json:"path"`
	}
	if err := json.Unmarshal([]byte(galleryJSON), &items); err != nil {
		p.logger.Error("failed to decode :gallery attribute", "error", err)
		return nil
	}

	var pics []string
	for _, item := range items {
		path := strings.ReplaceAll(item.Path, `\/`, "/")
		if strings.HasPrefix(path, "boats/") {
			pics = append(pics, path)
		}
	}
	return pics
}

func (p *Parser) picturesFallback(html string) []string {
	seen := make(map[string]struct{})
	var pics []string
	for _, m := range p.picturePattern.FindAllStringSubmatch(html, -1) {
		path := fmt.Sprintf("boats/%s/%s.%s", m[1], m[2], strings.ToLower(m[3]))
		if _, ok := seen[path]; ok {
			continue
		}
		seen[path] = struct{}{}
		pics = append(pics, path)
	}
	return pics
}

// Prices is the price block extracted from a listing page. Nil pointers mean
// the field was not found.
type Prices struct {
	Currency   string
	MinPrice   *float64
	TotalPrice *float64
	OldPrice   *float64
	Discount   *float64
}

// ExtractPrices reads the mobile-payment-box attributes first, then falls
// back to regex scans. Vue leaves the literal binding name in the attribute
// when the component did not render, hence the placeholder guards.
func (p *Parser) ExtractPrices(d *Document) Prices {
	prices := Prices{Currency: "EUR"}

	box := d.doc.Find("mobile-payment-box")
	if box.Length() > 0 {
		if v, ok := box.Attr(":price"); ok && v != "price" {
			if n, err := strconv.ParseFloat(v, 64); err == nil {
				prices.MinPrice = &n
				total := n
				prices.TotalPrice = &total
			}
		}
		if v, ok := box.Attr(":old-price"); ok && v != "oldPrice" {
			if n, err := strconv.ParseFloat(v, 64); err == nil {
				prices.OldPrice = &n
			}
		}
		if v, ok := box.Attr(":discount"); ok && v != "discount" {
			if n, err := strconv.ParseFloat(v, 64); err == nil {
				prices.Discount = &n
			}
		}
	}

	if prices.TotalPrice == nil {
		for _, pattern := range p.pricePatterns {
			m := pattern.FindStringSubmatch(d.raw)
			if m == nil {
				continue
			}
			raw := strings.NewReplacer(" ", "", ",", "").Replace(m[1])
			n, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				continue
			}
			if n > 100 && n < 100000 {
				prices.TotalPrice = &n
				min := n
				prices.MinPrice = &min
				break
			}
		}
	}

	if prices.TotalPrice == nil {
		p.logger.Warn("price not found on page")
	}

	return prices
}

// BoatInfo keeps every extracted scalar as a string, converted only at
// persistence time. Missing values stay empty.
type BoatInfo struct {
	Title        string
	Manufacturer string
	Model        string
	Year         string
	Cabins       string
	Toilets      string
	People       string
	Length       string
	Location     string
	Marina       string
	Country      string
	Description  string

	Beam                string
	Draft               string
	EngineType          string
	Engine              string
	Fuel                string
	MaximumSpeed        string
	CruisingConsumption string
	EnginePower         string
	NumberEngines       string
	TotalEnginePower    string
	WaterTank           string
	WasteTank           string
	RenovatedYear       string
	SailRenovatedYear   string

	MaxSleeps         string
	MaxPeople         string
	SingleCabins      string
	DoubleCabins      string
	TripleCabins      string
	QuadrupleCabins   string
	CabinsWithBunkBed string
	SaloonSleeps      string
	CrewSleeps        string
	ElectricToilets   string
}

// ExtractBoatInfo runs the info strategies in order: JSON-LD Product,
// mobile-payment-box attributes, the boat-info-list :parameters blob,
// add-to-wishlist attributes, and finally the title-derived manufacturer.
func (p *Parser) ExtractBoatInfo(d *Document) BoatInfo {
	var info BoatInfo

	p.infoFromJSONLD(d.doc, &info)
	p.infoFromPaymentBox(d.doc, &info)
	p.infoFromParameters(d.doc, &info)

	wishlist := d.doc.Find("add-to-wishlist")
	if wishlist.Length() > 0 {
		if v, ok := wishlist.Attr("marina"); ok && v != "" {
			info.Marina = v
		}
		if info.Year == "" {
			info.Year, _ = wishlist.Attr("year")
		}
		if info.Cabins == "" {
			info.Cabins, _ = wishlist.Attr("cabins")
		}
	}

	// "Lagoon 380 S2 | Aride" -> manufacturer "Lagoon"
	if info.Manufacturer == "" && info.Title != "" {
		head := strings.TrimSpace(strings.SplitN(info.Title, "|", 2)[0])
		if fields := strings.Fields(head); len(fields) > 0 {
			info.Manufacturer = fields[0]
		}
	}

	return info
}

// jsonLDProduct is the subset of a schema.org Product the extractor reads.
type jsonLDProduct struct {
	Type         string          `json:"@type"`
	Name         string          `json:"name"`
	Description  string          `json:"description"`
	Model        string          `json:"model"`
	Manufacturer json.RawMessage `json:"manufacturer"`
	Brand        json.RawMessage `json:"brand"`
	Beam         string          `json:"beam"`
	Draft        string          `json:"draft"`
}

func (p *Parser) infoFromJSONLD(doc *goquery.Document, info *BoatInfo) {
	doc.Find(`script[type="application/ld+json"]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		raw := s.Text()
		if raw == "" {
			return true
		}

		for _, product := range decodeJSONLDProducts(raw) {
			if product.Name != "" {
				info.Title = product.Name
			}
			if product.Description != "" {
				info.Description = product.Description
			}
			if product.Model != "" {
				info.Model = product.Model
			}
			if name := nestedName(product.Manufacturer); name != "" {
				info.Manufacturer = name
			} else if name := nestedName(product.Brand); name != "" {
				info.Manufacturer = name
			}
			if product.Beam != "" {
				info.Beam = product.Beam
			}
			if product.Draft != "" {
				info.Draft = product.Draft
			}
			return false
		}
		return true
	})
}

// decodeJSONLDProducts handles the three shapes the site emits: a plain
// Product object, a list of typed objects, and an @graph wrapper.
func decodeJSONLDProducts(raw string) []jsonLDProduct {
	var products []jsonLDProduct

	var list []jsonLDProduct
	if err := json.Unmarshal([]byte(raw), &list); err == nil {
		for _, item := range list {
			if item.Type == "Product" {
				products = append(products, item)
			}
		}
		return products
	}

	var wrapper struct {
		Type  string          `json:"@type"`
		Graph json.RawMessage `json:"@graph"`
	}
	if err := json.Unmarshal([]byte(raw), &wrapper); err != nil {
		return nil
	}

	if len(wrapper.Graph) > 0 {
		var graph []jsonLDProduct
		if err := json.Unmarshal(wrapper.Graph, &graph); err == nil {
			for _, item := range graph {
				if item.Type == "Product" {
					products = append(products, item)
				}
			}
		}
		return products
	}

	if wrapper.Type == "Product" {
		var single jsonLDProduct
		if err := json.Unmarshal([]byte(raw), &single); err == nil {
			products = append(products, single)
		}
	}

	return products
}

func nestedName(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var obj struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(raw, &obj); err != nil {
		return ""
	}
	return obj.Name
}

func (p *Parser) infoFromPaymentBox(doc *goquery.Document, info *BoatInfo) {
	box := doc.Find("mobile-payment-box")
	if box.Length() == 0 {
		return
	}

	attr := func(name string) string {
		v, _ := box.Attr(name)
		return v
	}

	if v := attr("boat-title"); v != "" {
		info.Title = v
	}
	info.Year = attr("boat-year")
	info.Cabins = attr("boat-cabins")
	info.People = attr("boat-people")
	info.Length = attr("boat-length")
	info.Manufacturer = attr("manufacturer")
	info.Country = attr("country")
	info.Location = attr("region")
	info.Beam = attr("boat-beam")
	info.Draft = attr("boat-draft")
	info.EngineType = attr("boat-engine-type")
	info.Fuel = attr("boat-fuel")
	info.MaximumSpeed = attr("boat-max-speed")
	info.Toilets = attr("boat-toilets")
}

func (p *Parser) infoFromParameters(doc *goquery.Document, info *BoatInfo) {
	paramsJSON, ok := doc.Find("boat-info-list").Attr(":parameters")
	if !ok || paramsJSON == "" {
		p.logger.Warn("boat-info-list component not found")
		return
	}

	var params map[string]any
	if err := json.Unmarshal([]byte(paramsJSON), &params); err != nil {
		p.logger.Warn("failed to decode boat-info-list parameters", "error", err)
		return
	}

	get := func(key string) string {
		v, ok := params[key]
		if !ok || v == nil {
			return ""
		}
		switch t := v.(type) {
		case string:
			return t
		case float64:
			return strconv.FormatFloat(t, 'f', -1, 64)
		default:
			return fmt.Sprintf("%v", t)
		}
	}
	getOr := func(key, current string) string {
		if v := get(key); v != "" {
			return v
		}
		return current
	}

	info.SingleCabins = get("single_cabins")
	info.DoubleCabins = get("double_cabins")
	info.TripleCabins = get("triple_cabins")
	info.QuadrupleCabins = get("quadruple_cabins")
	info.CabinsWithBunkBed = get("cabins_with_bunk_bed")
	info.SaloonSleeps = get("saloon_sleeps")
	info.CrewSleeps = get("crew_sleeps")
	info.MaxSleeps = get("max_sleeps")
	info.MaxPeople = get("max_people")
	info.Toilets = getOr("toilets", info.Toilets)
	info.ElectricToilets = get("electric_toilets")
	info.Length = get("length")
	info.Beam = get("beam")
	info.Draft = get("draft")
	info.EnginePower = get("engine_power")
	info.NumberEngines = get("number_engines")
	info.TotalEnginePower = get("total_engine_power")
	info.Engine = get("engine")
	info.Fuel = get("fuel")
	info.CruisingConsumption = get("cruising_consumption")
	info.MaximumSpeed = get("maximum_speed")
	info.WaterTank = get("water_tank")
	info.WasteTank = get("waste_tank")
	info.Year = getOr("year", info.Year)
	info.RenovatedYear = get("renovated_year")
	info.SailRenovatedYear = get("sail_renovated_year")
	info.Cabins = getOr("cabins", info.Cabins)
}

// LocalizedInfo is the per-language subset extracted from a non-primary
// language page: just the text fields that differ across locales.
type LocalizedInfo struct {
	Title       string
	Description string
	Location    string
	Marina      string
}

// ExtractLocalizedInfo pulls title/description from JSON-LD and
// location/marina from the wishlist and payment-box components.
func (p *Parser) ExtractLocalizedInfo(d *Document) LocalizedInfo {
	var result LocalizedInfo

	d.doc.Find(`script[type="application/ld+json"]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		for _, product := range decodeJSONLDProducts(s.Text()) {
			if product.Name != "" {
				result.Title = product.Name
			}
			if product.Description != "" {
				result.Description = product.Description
			}
			if result.Title != "" {
				return false
			}
		}
		return true
	})

	wishlist := d.doc.Find("add-to-wishlist")
	if wishlist.Length() > 0 {
		if v, ok := wishlist.Attr("marina"); ok && v != "" {
			result.Marina = v
		}
		if v, ok := wishlist.Attr("region"); ok && v != "" {
			result.Location = v
		}
	}

	if result.Location == "" {
		if v, ok := d.doc.Find("mobile-payment-box").Attr("region"); ok {
			result.Location = v
		}
	}

	return result
}

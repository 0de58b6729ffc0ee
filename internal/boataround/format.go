package boataround

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/DmitriyKurilenko/rent-scraper/internal/models"
	"github.com/DmitriyKurilenko/rent-scraper/internal/pricing"
)

// countryTranslations maps the API's English country names to the Russian
// names the marketplace displays.
var countryTranslations = map[string]string{
	"Turkey":        "Турция",
	"Greece":        "Греция",
	"Croatia":       "Хорватия",
	"Spain":         "Испания",
	"France":        "Франция",
	"Italy":         "Италия",
	"Montenegro":    "Черногория",
	"Slovenia":      "Словения",
	"Malta":         "Мальта",
	"Cyprus":        "Кипр",
	"Portugal":      "Португалия",
	"Thailand":      "Таиланд",
	"Seychelles":    "Сейшелы",
	"Maldives":      "Мальдивы",
	"United States": "США",
	"Mexico":        "Мексика",
	"Philippines":   "Филиппины",
	"Indonesia":     "Индонезия",
	"Egypt":         "Египет",
}

// TranslateCountry returns the Russian display name for an English country
// name, or the input unchanged when no translation is known.
func TranslateCountry(countryEN string) string {
	if ru, ok := countryTranslations[countryEN]; ok {
		return ru
	}
	return countryEN
}

// NormalizeImageURL turns a relative image path into a full URL. Absolute
// URLs pass through unchanged.
func NormalizeImageURL(imageURL string) string {
	imageURL = strings.TrimSpace(imageURL)
	if imageURL == "" {
		return ""
	}
	if strings.HasPrefix(imageURL, "http://") || strings.HasPrefix(imageURL, "https://") {
		return imageURL
	}
	if strings.HasPrefix(imageURL, "/") {
		return "https://api.boataround.com" + imageURL
	}
	if !strings.HasPrefix(imageURL, "boats/") {
		return "https://api.boataround.com/boats/" + imageURL
	}
	return "https://api.boataround.com/" + imageURL
}

// CharterResolver looks up or creates the charter record for a listing so
// its commission can feed into the displayed price.
type CharterResolver interface {
	ResolveCharter(ctx context.Context, name, rawID, logo string) (*models.Charter, error)
}

// FormatBoat turns a raw search hit into a display listing. The price
// follows the detail-page logic: when the API already supplies totalPrice
// the only adjustment is the commission step, otherwise the full discount
// chain is applied to the base price.
func FormatBoat(ctx context.Context, b *Boat, charters CharterResolver) models.Listing {
	listing := models.Listing{
		ID:      b.BoatID(),
		Slug:    b.Slug,
		Name:    b.displayTitle(),
		Marina:  b.Marina,
		Country: TranslateCountry(b.Country),
		Region:  b.Region,
		City:    b.City,
	}
	if listing.ID == "" {
		listing.ID = "unknown"
	}

	var locationParts []string
	for _, p := range []string{b.Marina, b.City, b.Region} {
		if strings.TrimSpace(p) != "" {
			locationParts = append(locationParts, p)
		}
	}
	if len(locationParts) > 0 {
		listing.Location = strings.Join(locationParts, ", ")
	} else {
		listing.Location = listing.Country
	}

	listing.Images = b.imageList()
	if len(listing.Images) > 0 {
		listing.Image = listing.Images[0]
	}

	basePrice := float64(b.Price)
	if basePrice == 0 {
		basePrice = float64(b.TotalPrice)
	}
	additionalDiscount := float64(b.AdditionalDiscount)
	if additionalDiscount == 0 {
		additionalDiscount = float64(b.AdditionalDiscountSnake)
	}

	// discount often arrives as the total discount, so when the explicit
	// field is missing the pre-extra part is reconstructed from it
	discountWithoutExtra := float64(b.DiscountWithoutExtra)
	if discountWithoutExtra == 0 {
		total := float64(b.Discount)
		if total != 0 && additionalDiscount != 0 {
			discountWithoutExtra = math.Max(total-additionalDiscount, 0)
		} else {
			discountWithoutExtra = total
		}
	}

	if len(b.Policies) > 0 {
		prices := b.Policies[0].Prices
		if basePrice == 0 {
			basePrice = float64(prices.Price)
		}
		if discountWithoutExtra == 0 {
			discountWithoutExtra = float64(prices.DiscountWithoutExtra)
		}
		if additionalDiscount == 0 {
			additionalDiscount = float64(prices.AdditionalDiscount)
		}
	}

	charterName, charterRawID, charterLogo := b.CharterDetails()
	listing.CharterName = charterName
	listing.CharterID = charterRawID
	listing.CharterLogo = charterLogo

	commission := 0
	hasCharter := false
	if charterName != "" && charters != nil {
		if charter, err := charters.ResolveCharter(ctx, charterName, charterRawID, charterLogo); err == nil && charter != nil {
			commission = charter.Commission
			hasCharter = true
			if listing.CharterLogo == "" {
				listing.CharterLogo = charter.Logo
			}
		}
	}

	var price float64
	if totalPrice := float64(b.TotalPrice); totalPrice != 0 {
		price = totalPrice
		if hasCharter && commission != 0 && additionalDiscount < float64(commission) {
			extra := math.Min(5, float64(commission))
			price = price * (1 - extra/100)
		}
	} else {
		price = pricing.FinalPriceWithDiscounts(basePrice, discountWithoutExtra, additionalDiscount, commission, hasCharter)
	}

	listing.Price = int(price)
	if basePrice > 0 && price > 0 && basePrice > price {
		listing.OldPrice = int(basePrice)
		listing.DiscountPercent = int(math.Round((basePrice - price) / basePrice * 100))
	}
	if avg := float64(b.AvgPrice); avg != 0 {
		listing.PricePerDay = int(avg)
	}

	listing.Currency = b.Currency
	if listing.Currency == "" {
		listing.Currency = "EUR"
	}

	listing.Cabins = b.cabinCount()
	listing.Berths = b.berthCount()
	listing.Length = b.lengthMeters()
	listing.Year = b.buildYear()
	listing.Category = b.Category
	listing.Type = b.Type

	if r := float64(b.ReviewsScore); r != 0 {
		listing.Rating = r
	} else {
		listing.Rating = float64(b.Rating)
	}

	listing.Coordinates = b.Coordinates
	listing.Cockpit = namedItems(b.Filter.Cockpit)
	listing.Entertainment = namedItems(b.Filter.Entertainment)
	listing.Equipment = namedItems(b.Filter.Equipment)

	return listing
}

func namedItems(items []filterItem) []models.NamedItem {
	var out []models.NamedItem
	for _, it := range items {
		if it.Name != "" {
			out = append(out, models.NamedItem{Name: it.Name})
		}
	}
	return out
}

func (b *Boat) displayTitle() string {
	for _, s := range []string{b.Title, b.Name, b.BoatName, b.BoatNameAlt, b.DisplayName} {
		if strings.TrimSpace(s) != "" {
			return s
		}
	}
	if name := b.paramString("displayName"); name != "" {
		return name
	}
	if name := b.paramString("name"); name != "" {
		return name
	}

	boatType := b.Type
	if boatType == "" {
		boatType = "Boat"
	}
	location := b.City
	if location == "" {
		location = b.Marina
	}
	if location == "" {
		location = b.Country
	}
	if location != "" {
		return fmt.Sprintf("%s in %s", boatType, location)
	}
	return "Лодка"
}

// imageList prefers thumb, a pre-resized URL from the image service, over
// main_img which still needs normalization.
func (b *Boat) imageList() []string {
	var images []string
	seen := map[string]bool{}
	add := func(u string) {
		if u != "" && !seen[u] {
			images = append(images, u)
			seen[u] = true
		}
	}

	if strings.TrimSpace(b.Thumb) != "" {
		add(b.Thumb)
	} else if strings.TrimSpace(b.MainImg) != "" {
		add(NormalizeImageURL(b.MainImg))
	}

	extra := b.Images
	if len(extra) == 0 {
		extra = b.Gallery
	}
	for _, img := range extra {
		if strings.TrimSpace(img) != "" {
			add(NormalizeImageURL(img))
		}
	}

	if len(images) == 0 && b.MainImg != "" {
		images = []string{b.MainImg}
	}
	return images
}

func (b *Boat) cabinCount() int {
	if v, ok := b.paramFloat("cabins"); ok {
		return int(v)
	}
	if b.Cabins != 0 {
		return int(b.Cabins)
	}
	return int(b.Cabin)
}

func (b *Boat) berthCount() int {
	if v, ok := b.paramFloat("max_sleeps"); ok {
		return int(v)
	}
	if v, ok := b.paramFloat("allowed_people"); ok {
		return int(v)
	}
	if b.Berths != 0 {
		return int(b.Berths)
	}
	if b.Berth != 0 {
		return int(b.Berth)
	}

	// freeBerths is sometimes {value: N} and sometimes a bare number
	if len(b.FreeBerths) > 0 {
		var obj struct {
			Value flexFloat `json:"value"`
		}
		if err := json.Unmarshal(b.FreeBerths, &obj); err == nil && obj.Value != 0 {
			return int(obj.Value)
		}
		var n flexFloat
		if err := json.Unmarshal(b.FreeBerths, &n); err == nil {
			return int(n)
		}
	}
	return 0
}

func (b *Boat) lengthMeters() float64 {
	raw := b.paramString("length")
	if raw == "" {
		return 0
	}
	cleaned := strings.TrimSpace(strings.ReplaceAll(strings.ReplaceAll(raw, "m", ""), ",", "."))
	v, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0
	}
	return math.Round(v*10) / 10
}

func (b *Boat) buildYear() int {
	raw := string(b.Year)
	if raw == "" {
		raw = string(b.BuildYear)
	}
	if raw == "" {
		return 0
	}
	year, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0
	}
	return year
}

// Package pricing holds the customer-facing price calculators. The constants
// feed directly into charged prices and must not be changed casually.
package pricing

import (
	"strings"
	"time"
)

const (
	InsuranceRate = 0.10
	InsuranceMin  = 400.0
	CookPrice     = 1400.0

	TurkeyBasePrice     = 4400.0
	SeychellesBasePrice = 4500.0
	DefaultBasePrice    = 4500.0

	TurkeyDishBase     = 150.0
	SeychellesDishBase = 210.0
	DefaultDishBase    = 210.0

	PraslinExtra         = 400.0
	LengthExtra          = 200.0
	CatamaranLengthExtra = 500.0
	SailingLengthExtra   = 300.0

	MaxDoubleCabinsFree = 4
	DoubleCabinExtra    = 200.0

	// DefaultCommission is assigned to newly discovered charters.
	DefaultCommission = 20
)

// Category names come from the Russian-language pages.
const (
	CategoryCatamaran    = "Катамаран"
	CategorySailingYacht = "Парусная Яхта"
)

var (
	turkeyNames     = []string{"turkey", "турция"}
	seychellesNames = []string{"seychelles", "сейшелы"}
)

func isTurkey(country string) bool     { return containsName(turkeyNames, country) }
func isSeychelles(country string) bool { return containsName(seychellesNames, country) }

func containsName(names []string, country string) bool {
	country = strings.ToLower(strings.TrimSpace(country))
	for _, n := range names {
		if country == n {
			return true
		}
	}
	return false
}

// FinalPriceWithDiscounts applies the two listing discounts sequentially and
// then, when the boat belongs to a charter whose commission exceeds the
// second discount, one further discount of min(5, commission) percent. The
// commission itself is never added to the price; it only gates the extra
// step.
func FinalPriceWithDiscounts(basePrice, discountWithoutExtra, additionalDiscount float64, commission int, hasCharter bool) float64 {
	if basePrice == 0 {
		return 0
	}

	price := basePrice

	if discountWithoutExtra != 0 {
		price *= 1 - discountWithoutExtra/100
	}
	if additionalDiscount != 0 {
		price *= 1 - additionalDiscount/100
	}

	if hasCharter && commission != 0 && additionalDiscount < float64(commission) {
		extra := float64(commission)
		if extra > 5 {
			extra = 5
		}
		price *= 1 - extra/100
	}

	return price
}

// TouristPackageInput carries everything the package calculator needs.
// CheckIn/CheckOut are YYYY-MM-DD and only affect the reported night count.
type TouristPackageInput struct {
	TotalPrice   float64
	FullPrice    float64
	BoatDiscount float64
	CheckIn      string
	CheckOut     string
	Country      string
	Category     string
	Marina       string
	Length       float64
	MaxSleeps    int
	DoubleCabins int
	Dish         bool
	Adjustment   float64
}

// TouristPackageResult is the computed package quote.
type TouristPackageResult struct {
	TotalPrice    float64 `json:"total_price"`
	OriginalPrice float64 `json:"original_price"`
	Discount      float64 `json:"discount"`
	Nights        int     `json:"nights"`
}

// TouristPackagePrice builds the all-in tourist package price: deposit
// insurance, extra-cabin surcharges, the per-country base fee, marina and
// length surcharges and optional catering, plus a caller-supplied
// adjustment.
func TouristPackagePrice(in TouristPackageInput) TouristPackageResult {
	if in.TotalPrice == 0 {
		return TouristPackageResult{Nights: 1}
	}

	total := in.TotalPrice

	nights := 1
	if in.CheckIn != "" && in.CheckOut != "" {
		checkIn, errIn := time.Parse("2006-01-02", in.CheckIn)
		checkOut, errOut := time.Parse("2006-01-02", in.CheckOut)
		if errIn == nil && errOut == nil {
			if n := int(checkOut.Sub(checkIn).Hours() / 24); n > 1 {
				nights = n
			}
		}
	}

	// 1. Deposit insurance
	insurance := total * InsuranceRate
	if insurance < InsuranceMin {
		insurance = InsuranceMin
	}
	total += insurance

	// 2. Extra double cabins (Seychelles only)
	if isSeychelles(in.Country) && in.DoubleCabins > MaxDoubleCabinsFree {
		total += float64(in.DoubleCabins-MaxDoubleCabinsFree) * DoubleCabinExtra
	}

	// 3. Country base fee
	var dishBase float64
	switch {
	case isTurkey(in.Country):
		total += TurkeyBasePrice
		dishBase = TurkeyDishBase
	case isSeychelles(in.Country):
		total += SeychellesBasePrice
		dishBase = SeychellesDishBase
	default:
		total += DefaultBasePrice
		dishBase = DefaultDishBase
	}

	// 4. Praslin marina surcharge
	if strings.ToLower(strings.TrimSpace(in.Marina)) == "praslin marina" {
		total += PraslinExtra
	}

	// 5. Length surcharge, 14.2m is 46ft
	if in.Length > 14.2 {
		total += LengthExtra
	}

	// 6. Long boats in Turkey
	if in.Length > 13.8 && isTurkey(in.Country) {
		switch in.Category {
		case CategoryCatamaran:
			total += CatamaranLengthExtra
		case CategorySailingYacht:
			total += SailingLengthExtra
		}
	}

	// 7. Catering
	if in.Dish && in.MaxSleeps > 0 {
		total += float64(in.MaxSleeps-2)*dishBase + CookPrice
	}

	// 8. Manual adjustment
	total += in.Adjustment

	return TouristPackageResult{
		TotalPrice:    round2(total),
		OriginalPrice: round2(in.FullPrice),
		Discount:      in.BoatDiscount,
		Nights:        nights,
	}
}

func round2(v float64) float64 {
	if v < 0 {
		return float64(int64(v*100-0.5)) / 100
	}
	return float64(int64(v*100+0.5)) / 100
}

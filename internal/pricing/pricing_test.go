package pricing

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFinalPriceWithDiscounts(t *testing.T) {
	tests := []struct {
		name                 string
		basePrice            float64
		discountWithoutExtra float64
		additionalDiscount   float64
		commission           int
		hasCharter           bool
		expected             float64
	}{
		{
			name:      "zero base price short-circuits",
			basePrice: 0, discountWithoutExtra: 10, additionalDiscount: 5,
			commission: 20, hasCharter: true,
			expected: 0,
		},
		{
			name:      "no discounts no charter",
			basePrice: 1000,
			expected:  1000,
		},
		{
			name:      "sequential discounts then capped commission step",
			basePrice: 1000, discountWithoutExtra: 10, additionalDiscount: 5,
			commission: 20, hasCharter: true,
			expected: 812.25,
		},
		{
			name:      "commission step skipped when additional discount covers it",
			basePrice: 1000, additionalDiscount: 25,
			commission: 20, hasCharter: true,
			expected: 750,
		},
		{
			name:       "small commission applied uncapped",
			basePrice:  1000,
			commission: 3, hasCharter: true,
			expected: 970,
		},
		{
			name:       "no charter means no commission step",
			basePrice:  1000,
			commission: 20, hasCharter: false,
			expected: 1000,
		},
		{
			name:      "only first discount",
			basePrice: 2000, discountWithoutExtra: 15,
			expected: 1700,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FinalPriceWithDiscounts(tt.basePrice, tt.discountWithoutExtra, tt.additionalDiscount, tt.commission, tt.hasCharter)
			assert.InDelta(t, tt.expected, got, 0.001)
		})
	}
}

func TestTouristPackagePrice(t *testing.T) {
	tests := []struct {
		name     string
		input    TouristPackageInput
		expected TouristPackageResult
	}{
		{
			name:     "zero charter price yields empty quote",
			input:    TouristPackageInput{},
			expected: TouristPackageResult{Nights: 1},
		},
		{
			name: "turkey long catamaran with catering",
			input: TouristPackageInput{
				TotalPrice:   2000,
				FullPrice:    2500,
				BoatDiscount: 20,
				CheckIn:      "2026-05-02",
				CheckOut:     "2026-05-09",
				Country:      "Турция",
				Category:     CategoryCatamaran,
				Length:       15.0,
				MaxSleeps:    6,
				Dish:         true,
			},
			// 2000 + 400 insurance + 4400 base + 200 length + 500 long
			// catamaran + (6-2)*150+1400 catering
			expected: TouristPackageResult{
				TotalPrice:    9500,
				OriginalPrice: 2500,
				Discount:      20,
				Nights:        7,
			},
		},
		{
			name: "seychelles with extra cabins and praslin marina",
			input: TouristPackageInput{
				TotalPrice:   3000,
				Country:      "Seychelles",
				Marina:       "Praslin Marina",
				Length:       14.0,
				MaxSleeps:    8,
				DoubleCabins: 6,
				Dish:         true,
			},
			// 3000 + 400 insurance + 400 cabins + 4500 base + 400 marina
			// + (8-2)*210+1400 catering
			expected: TouristPackageResult{
				TotalPrice: 11360,
				Nights:     1,
			},
		},
		{
			name: "default country without catering",
			input: TouristPackageInput{
				TotalPrice: 5000,
				Country:    "Greece",
				Length:     12.0,
			},
			// 5000 + 500 insurance + 4500 base
			expected: TouristPackageResult{
				TotalPrice: 10000,
				Nights:     1,
			},
		},
		{
			name: "manual adjustment is added last",
			input: TouristPackageInput{
				TotalPrice: 1000,
				Country:    "Croatia",
				Adjustment: -900,
			},
			// 1000 + 400 insurance + 4500 base - 900
			expected: TouristPackageResult{
				TotalPrice: 5000,
				Nights:     1,
			},
		},
		{
			name: "extra cabins ignored outside seychelles",
			input: TouristPackageInput{
				TotalPrice:   3000,
				Country:      "Turkey",
				DoubleCabins: 6,
			},
			// 3000 + 400 insurance + 4400 base, no cabin surcharge
			expected: TouristPackageResult{
				TotalPrice: 7800,
				Nights:     1,
			},
		},
		{
			name: "percentage insurance above the floor",
			input: TouristPackageInput{
				TotalPrice: 10000,
				Country:    "Italy",
			},
			// 10000 + 1000 insurance + 4500 base
			expected: TouristPackageResult{
				TotalPrice: 15500,
				Nights:     1,
			},
		},
		{
			name: "long sailing yacht in turkey",
			input: TouristPackageInput{
				TotalPrice: 2000,
				Country:    "turkey",
				Category:   CategorySailingYacht,
				Length:     14.0,
			},
			// 2000 + 400 insurance + 4400 base + 300 long sailing yacht,
			// no 46ft surcharge at 14.0m
			expected: TouristPackageResult{
				TotalPrice: 7100,
				Nights:     1,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := TouristPackagePrice(tt.input)
			assert.InDelta(t, tt.expected.TotalPrice, got.TotalPrice, 0.001)
			assert.InDelta(t, tt.expected.OriginalPrice, got.OriginalPrice, 0.001)
			assert.InDelta(t, tt.expected.Discount, got.Discount, 0.001)
			assert.Equal(t, tt.expected.Nights, got.Nights)
		})
	}
}

func TestFinalPriceWithDiscounts_Monotonic(t *testing.T) {
	const base = 2000.0

	// a growing boat discount never raises the final price
	prev := FinalPriceWithDiscounts(base, 0, 10, 20, true)
	for d := 1; d <= 100; d++ {
		price := FinalPriceWithDiscounts(base, float64(d), 10, 20, true)
		assert.LessOrEqual(t, price, prev, "discount %d%%", d)
		assert.LessOrEqual(t, price, base)
		prev = price
	}

	// same for the additional discount when no charter commission applies
	prev = FinalPriceWithDiscounts(base, 15, 0, 0, false)
	for d := 1; d <= 100; d++ {
		price := FinalPriceWithDiscounts(base, 15, float64(d), 0, false)
		assert.LessOrEqual(t, price, prev, "additional discount %d%%", d)
		prev = price
	}
}

package parser

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestParser() *Parser {
	return New(slog.Default())
}

func mustParse(t *testing.T, html string) *Document {
	t.Helper()
	d, err := newTestParser().Parse(html)
	require.NoError(t, err)
	return d
}

func TestBoatURLForLanguage(t *testing.T) {
	tests := []struct {
		lang     string
		expected string
	}{
		{"ru_RU", "https://www.boataround.com/ru/yachta/bavaria-46-cruiser-2019/"},
		{"en_EN", "https://www.boataround.com/us/boat/bavaria-46-cruiser-2019/"},
		{"de_DE", "https://www.boataround.com/de/boot/bavaria-46-cruiser-2019/"},
		{"fr_FR", "https://www.boataround.com/fr/bateau/bavaria-46-cruiser-2019/"},
		{"es_ES", "https://www.boataround.com/es/bote/bavaria-46-cruiser-2019/"},
		{"it_IT", "https://www.boataround.com/ru/yachta/bavaria-46-cruiser-2019/"},
	}

	for _, tt := range tests {
		t.Run(tt.lang, func(t *testing.T) {
			assert.Equal(t, tt.expected, BoatURLForLanguage("bavaria-46-cruiser-2019", tt.lang))
		})
	}
}

func TestExtractBoatID(t *testing.T) {
	p := newTestParser()

	t.Run("found in image path", func(t *testing.T) {
		html := `<img src="https://api.boataround.com/boats/5f9e1c2b3a4d5e6f7a8b9c0d/abc.jpg">`
		assert.Equal(t, "5f9e1c2b3a4d5e6f7a8b9c0d", p.ExtractBoatID(html))
	})

	t.Run("not present", func(t *testing.T) {
		assert.Empty(t, p.ExtractBoatID(`<div>no ids here</div>`))
	})
}

func TestExtractSlug(t *testing.T) {
	p := newTestParser()

	tests := []struct {
		url      string
		expected string
	}{
		{"https://www.boataround.com/ru/yachta/bavaria-46-cruiser-2019/", "bavaria-46-cruiser-2019"},
		{"https://www.boataround.com/us/boat/lagoon-42?checkIn=2026-05-02", "lagoon-42"},
		{"https://www.boataround.com/de/boot/hanse-418/", "hanse-418"},
		{"https://www.boataround.com/about", "unknown"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, p.ExtractSlug(tt.url))
	}
}

func TestExtractPictures(t *testing.T) {
	p := newTestParser()

	t.Run("gallery component", func(t *testing.T) {
		html := `<gallery-mobile :gallery='[{"path":"boats\/5f9e1c2b3a4d5e6f7a8b9c0d\/1.jpg"},{"path":"boats\/5f9e1c2b3a4d5e6f7a8b9c0d\/2.jpg"},{"path":"other\/skip.jpg"}]'></gallery-mobile>`
		pics := p.ExtractPictures(mustParse(t, html))

		require.Len(t, pics, 2)
		assert.Equal(t, "boats/5f9e1c2b3a4d5e6f7a8b9c0d/1.jpg", pics[0])
	})

	t.Run("regex fallback dedupes", func(t *testing.T) {
		html := `<div>
			<img src="https://api.boataround.com/boats/5f9e1c2b3a4d5e6f7a8b9c0d/aa11.jpg">
			<img src="https://api.boataround.com/boats/5f9e1c2b3a4d5e6f7a8b9c0d/aa11.jpg">
			<img src="https://api.boataround.com/boats/5f9e1c2b3a4d5e6f7a8b9c0d/bb22.webp">
		</div>`
		pics := p.ExtractPictures(mustParse(t, html))

		require.Len(t, pics, 2)
		assert.Equal(t, "boats/5f9e1c2b3a4d5e6f7a8b9c0d/aa11.jpg", pics[0])
		assert.Equal(t, "boats/5f9e1c2b3a4d5e6f7a8b9c0d/bb22.webp", pics[1])
	})

	t.Run("nothing found", func(t *testing.T) {
		assert.Empty(t, p.ExtractPictures(mustParse(t, `<div></div>`)))
	})
}

func TestExtractPrices(t *testing.T) {
	p := newTestParser()

	t.Run("payment box attributes", func(t *testing.T) {
		html := `<mobile-payment-box :price="1890" :old-price="2100" :discount="10"></mobile-payment-box>`
		prices := p.ExtractPrices(mustParse(t, html))

		require.NotNil(t, prices.TotalPrice)
		assert.InDelta(t, 1890, *prices.TotalPrice, 0.001)
		require.NotNil(t, prices.OldPrice)
		assert.InDelta(t, 2100, *prices.OldPrice, 0.001)
		require.NotNil(t, prices.Discount)
		assert.InDelta(t, 10, *prices.Discount, 0.001)
		assert.Equal(t, "EUR", prices.Currency)
	})

	t.Run("unrendered vue bindings are ignored", func(t *testing.T) {
		html := `<mobile-payment-box :price="price" :old-price="oldPrice" :discount="discount"></mobile-payment-box>`
		prices := p.ExtractPrices(mustParse(t, html))

		assert.Nil(t, prices.TotalPrice)
		assert.Nil(t, prices.OldPrice)
		assert.Nil(t, prices.Discount)
	})

	t.Run("regex fallback euro amount", func(t *testing.T) {
		html := `<div class="summary">Итого: 2 450 €</div>`
		prices := p.ExtractPrices(mustParse(t, html))

		require.NotNil(t, prices.TotalPrice)
		assert.InDelta(t, 2450, *prices.TotalPrice, 0.001)
	})

	t.Run("implausible amounts rejected", func(t *testing.T) {
		html := `<div>100 €</div>`
		prices := p.ExtractPrices(mustParse(t, html))
		assert.Nil(t, prices.TotalPrice)
	})
}

func TestExtractBoatInfo(t *testing.T) {
	p := newTestParser()

	t.Run("json-ld product", func(t *testing.T) {
		html := `<script type="application/ld+json">{
			"@type": "Product",
			"name": "Lagoon 380 S2 | Aride",
			"description": "Spacious catamaran",
			"model": "380 S2",
			"manufacturer": {"name": "Lagoon"}
		}</script>`
		info := p.ExtractBoatInfo(mustParse(t, html))

		assert.Equal(t, "Lagoon 380 S2 | Aride", info.Title)
		assert.Equal(t, "Spacious catamaran", info.Description)
		assert.Equal(t, "380 S2", info.Model)
		assert.Equal(t, "Lagoon", info.Manufacturer)
	})

	t.Run("graph wrapper", func(t *testing.T) {
		html := `<script type="application/ld+json">{
			"@context": "https://schema.org",
			"@graph": [
				{"@type": "WebSite", "name": "ignored"},
				{"@type": "Product", "name": "Hanse 418", "brand": {"name": "Hanse"}}
			]
		}</script>`
		info := p.ExtractBoatInfo(mustParse(t, html))

		assert.Equal(t, "Hanse 418", info.Title)
		assert.Equal(t, "Hanse", info.Manufacturer)
	})

	t.Run("parameters blob", func(t *testing.T) {
		html := `<boat-info-list :parameters='{"cabins":4,"max_sleeps":10,"length":"12.35","double_cabins":4,"year":2019,"water_tank":"530 l"}'></boat-info-list>`
		info := p.ExtractBoatInfo(mustParse(t, html))

		assert.Equal(t, "4", info.Cabins)
		assert.Equal(t, "10", info.MaxSleeps)
		assert.Equal(t, "12.35", info.Length)
		assert.Equal(t, "4", info.DoubleCabins)
		assert.Equal(t, "2019", info.Year)
		assert.Equal(t, "530 l", info.WaterTank)
	})

	t.Run("wishlist fills marina and gaps", func(t *testing.T) {
		html := `<add-to-wishlist marina="ACI Marina Split" year="2018" cabins="3"></add-to-wishlist>`
		info := p.ExtractBoatInfo(mustParse(t, html))

		assert.Equal(t, "ACI Marina Split", info.Marina)
		assert.Equal(t, "2018", info.Year)
		assert.Equal(t, "3", info.Cabins)
	})

	t.Run("manufacturer derived from title", func(t *testing.T) {
		html := `<script type="application/ld+json">{"@type":"Product","name":"Bavaria 46 Cruiser | Nemo"}</script>`
		info := p.ExtractBoatInfo(mustParse(t, html))

		assert.Equal(t, "Bavaria", info.Manufacturer)
	})
}

func TestExtractLocalizedInfo(t *testing.T) {
	p := newTestParser()

	html := `
		<script type="application/ld+json">{"@type":"Product","name":"Bavaria 46 Cruiser","description":"Geräumige Segelyacht"}</script>
		<add-to-wishlist marina="ACI Marina" region="Dalmatien"></add-to-wishlist>`
	info := p.ExtractLocalizedInfo(mustParse(t, html))

	assert.Equal(t, "Bavaria 46 Cruiser", info.Title)
	assert.Equal(t, "Geräumige Segelyacht", info.Description)
	assert.Equal(t, "ACI Marina", info.Marina)
	assert.Equal(t, "Dalmatien", info.Location)
}

package boataround

import (
	"context"

	"github.com/DmitriyKurilenko/rent-scraper/internal/models"
)

// EquipmentSet groups the three equipment facets of one boat in one
// language.
type EquipmentSet struct {
	Cockpit       []models.NamedItem
	Entertainment []models.NamedItem
	Equipment     []models.NamedItem
}

func (s EquipmentSet) Empty() bool {
	return len(s.Cockpit) == 0 && len(s.Entertainment) == 0 && len(s.Equipment) == 0
}

// Equipment fetches the localized equipment lists for one boat by issuing
// a single-result search per language. The detail page does not localize
// these lists, so the search filter block is the only source for them.
func (c *Client) Equipment(ctx context.Context, slug string, langs []string) map[string]EquipmentSet {
	out := make(map[string]EquipmentSet, len(langs))

	for _, lang := range langs {
		result, err := c.Search(ctx, SearchParams{Slug: slug, Lang: lang, Limit: 1})
		if err != nil {
			c.logger.Warn("equipment lookup failed", "slug", slug, "lang", lang, "error", err)
			continue
		}

		set := EquipmentSet{
			Cockpit:       namedItems(result.Filters.Cockpit),
			Entertainment: namedItems(result.Filters.Entertainment),
			Equipment:     namedItems(result.Filters.Equipment),
		}
		if set.Empty() && len(result.Boats) > 0 {
			b := result.Boats[0]
			set = EquipmentSet{
				Cockpit:       namedItems(b.Filter.Cockpit),
				Entertainment: namedItems(b.Filter.Entertainment),
				Equipment:     namedItems(b.Filter.Equipment),
			}
		}
		if !set.Empty() {
			out[lang] = set
		}
	}

	return out
}

package boataround

import "encoding/json"

// Boat is one search hit. The API mixes naming conventions between
// endpoints and versions, so most name and id variants are kept and
// resolved by accessors.
type Boat struct {
	MongoID     flexString `json:"_id"`
	ID          flexString `json:"id"`
	Slug        string     `json:"slug"`
	Title       string     `json:"title"`
	Name        string     `json:"name"`
	BoatName    string     `json:"boatName"`
	BoatNameAlt string     `json:"boat_name"`
	DisplayName string     `json:"displayName"`

	Type     string `json:"type"`
	Category string `json:"category"`

	Country  string `json:"country"`
	Region   string `json:"region"`
	City     string `json:"city"`
	Marina   string `json:"marina"`
	Location string `json:"location"`

	Thumb   string   `json:"thumb"`
	MainImg string   `json:"main_img"`
	Images  []string `json:"images"`
	Gallery []string `json:"gallery"`

	Price                   flexFloat `json:"price"`
	TotalPrice              flexFloat `json:"totalPrice"`
	AvgPrice                flexFloat `json:"avg_price"`
	Discount                flexFloat `json:"discount"`
	DiscountWithoutExtra    flexFloat `json:"discount_without_additionalExtra"`
	AdditionalDiscount      flexFloat `json:"additionalDiscount"`
	AdditionalDiscountSnake flexFloat `json:"additional_discount"`
	Currency                string    `json:"currency"`

	Cabins flexFloat `json:"cabins"`
	Cabin  flexFloat `json:"cabin"`
	Berths flexFloat `json:"berths"`
	Berth  flexFloat `json:"berth"`

	Year      flexString `json:"year"`
	BuildYear flexString `json:"buildYear"`

	ReviewsScore flexFloat `json:"reviewsScore"`
	Rating       flexFloat `json:"rating"`

	Coordinates []float64 `json:"coordinates"`

	Parameters map[string]json.RawMessage `json:"parameters"`
	FreeBerths json.RawMessage            `json:"freeBerths"`
	Filter     Filter                     `json:"filter"`
	Policies   []Policy                   `json:"policies"`

	Charter     json.RawMessage `json:"charter"`
	CharterLogo string          `json:"charter_logo"`
	CharterID   flexString      `json:"charter_id"`
}

// Policy is the per-policy price block some responses carry.
type Policy struct {
	Prices struct {
		PriceID              string    `json:"price_id"`
		Price                flexFloat `json:"price"`
		DiscountWithoutExtra flexFloat `json:"discount_without_additionalExtra"`
		AdditionalDiscount   flexFloat `json:"additional_discount"`
	} `json:"prices"`
}

// CharterInfo is the charter block embedded in a search hit. The API uses
// several key variants for the same fields depending on the endpoint.
type CharterInfo struct {
	MongoID flexString `json:"_id"`
	ID      flexString `json:"id"`
	Name    string     `json:"name"`
	Title   string     `json:"title"`
	Company string     `json:"company"`
	Logo    string     `json:"logo"`
	LogoURL string     `json:"logo_url"`
	Image   string     `json:"image"`
}

func (ci *CharterInfo) rawID() string {
	if ci.MongoID != "" {
		return string(ci.MongoID)
	}
	return string(ci.ID)
}

func (ci *CharterInfo) displayName() string {
	for _, s := range []string{ci.Name, ci.Title, ci.Company} {
		if s != "" {
			return s
		}
	}
	return ""
}

func (ci *CharterInfo) logoURL() string {
	for _, s := range []string{ci.Logo, ci.LogoURL, ci.Image} {
		if s != "" {
			return s
		}
	}
	return ""
}

// CharterDetails extracts the charter name, raw id and logo from wherever
// the response put them: the top-level charter block (object or bare
// string), the charter_id/charter_logo fields, or parameters.charter.
func (b *Boat) CharterDetails() (name, rawID, logo string) {
	rawID = string(b.CharterID)
	logo = b.CharterLogo

	if len(b.Charter) > 0 {
		var info CharterInfo
		if err := json.Unmarshal(b.Charter, &info); err == nil {
			name = info.displayName()
			if rawID == "" {
				rawID = info.rawID()
			}
			if logo == "" {
				logo = info.logoURL()
			}
		} else {
			var s string
			if err := json.Unmarshal(b.Charter, &s); err == nil {
				name = s
			}
		}
	}

	if name == "" {
		if raw, ok := b.Parameters["charter"]; ok {
			var info CharterInfo
			if err := json.Unmarshal(raw, &info); err == nil && info.displayName() != "" {
				name = info.displayName()
				if rawID == "" {
					rawID = info.rawID()
				}
				if logo == "" {
					logo = info.logoURL()
				}
			} else {
				var s string
				if err := json.Unmarshal(raw, &s); err == nil {
					name = s
				}
			}
		}
	}

	return name, rawID, logo
}

// BoatID returns the document id, preferring the Mongo-style _id.
func (b *Boat) BoatID() string {
	if b.MongoID != "" {
		return string(b.MongoID)
	}
	return string(b.ID)
}

func (b *Boat) paramString(key string) string {
	raw, ok := b.Parameters[key]
	if !ok {
		return ""
	}
	var s flexString
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return string(s)
}

func (b *Boat) paramFloat(key string) (float64, bool) {
	raw, ok := b.Parameters[key]
	if !ok {
		return 0, false
	}
	var f flexFloat
	if err := json.Unmarshal(raw, &f); err != nil || f == 0 {
		return 0, false
	}
	return float64(f), true
}

package parser

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/DmitriyKurilenko/rent-scraper/internal/models"
	"github.com/PuerkitoBio/goquery"
)

// rawPrice decodes the two shapes the site uses for money: a bare number or
// an object with amount/nice/currency.
type rawPrice struct {
	Amount   float64
	Nice     string
	Currency string
}

func (r *rawPrice) UnmarshalJSON(data []byte) error {
	var n float64
	if err := json.Unmarshal(data, &n); err == nil {
		r.Amount = n
		return nil
	}

	var obj struct {
		Amount   float64 `json:"amount"`
		Nice     string  `json:"nice"`
		Currency string  `json:"currency"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		// unparseable price shapes degrade to zero rather than failing the boat
		return nil
	}
	r.Amount = obj.Amount
	r.Nice = obj.Nice
	if obj.Currency != "" {
		r.Currency = obj.Currency
	}
	return nil
}

func attrJSON(doc *goquery.Document, selector, attr string, v any) bool {
	raw, ok := doc.Find(selector).Attr(attr)
	if !ok || raw == "" {
		return false
	}
	return json.Unmarshal([]byte(raw), v) == nil
}

// ExtractExtras reads the <extras-list> component's :extras attribute.
func (p *Parser) ExtractExtras(d *Document) []models.Extra {
	var items []struct {
		ID             string   `json:"id"`
		Name           string   `json:"name"`
		Slug           string   `json:"slug"`
		AdditionalInfo string   `json:"additional_info"`
		Unit           string   `json:"unit"`
		Price          rawPrice `json:"price"`
		Deposit        rawPrice `json:"deposit"`
		Mandatory      bool     `json:"mandatory"`
		PayWhen        string   `json:"pay_when"`
		Insurance      bool     `json:"insurance"`
		AmountLabel    string   `json:"amount_with_label"`
	}
	if !attrJSON(d.doc, "extras-list", ":extras", &items) {
		p.logger.Warn("extras-list component not found")
		return nil
	}

	extras := make([]models.Extra, 0, len(items))
	for _, item := range items {
		currency := item.Price.Currency
		if currency == "" {
			currency = "EUR"
		}
		extras = append(extras, models.Extra{
			ID:             item.ID,
			Name:           item.Name,
			Slug:           item.Slug,
			AdditionalInfo: item.AdditionalInfo,
			Unit:           item.Unit,
			Price:          item.Price.Amount,
			PriceNice:      item.Price.Nice,
			Currency:       currency,
			Deposit:        item.Deposit.Amount,
			Mandatory:      item.Mandatory,
			PayWhen:        item.PayWhen,
			Insurance:      item.Insurance,
			AmountLabel:    item.AmountLabel,
		})
	}
	return extras
}

// ExtractAdditionalServices reads the :additional-services attribute.
func (p *Parser) ExtractAdditionalServices(d *Document) []models.Service {
	var items []struct {
		Name           string  `json:"name"`
		Slug           string  `json:"slug"`
		AmountWithUnit string  `json:"amountWithUnit"`
		Amount         float64 `json:"amount"`
		AmountType     string  `json:"amountType"`
		Disclaimer     string  `json:"disclaimer"`
		Badge          string  `json:"badge"`
		Unit           string  `json:"unit"`
	}
	if !attrJSON(d.doc, "extras-list", ":additional-services", &items) {
		return nil
	}

	services := make([]models.Service, 0, len(items))
	for _, item := range items {
		services = append(services, models.Service{
			Name:           item.Name,
			Slug:           item.Slug,
			AmountWithUnit: item.AmountWithUnit,
			Amount:         item.Amount,
			AmountType:     item.AmountType,
			Disclaimer:     item.Disclaimer,
			Badge:          item.Badge,
			Unit:           item.Unit,
		})
	}
	return services
}

// ExtractDeliveryExtras reads the :extras-delivery attribute.
func (p *Parser) ExtractDeliveryExtras(d *Document) []models.DeliveryExtra {
	var items []struct {
		Name           string   `json:"name"`
		AdditionalInfo string   `json:"additional_info"`
		Unit           string   `json:"unit"`
		Price          rawPrice `json:"price"`
	}
	if !attrJSON(d.doc, "extras-list", ":extras-delivery", &items) {
		return nil
	}

	delivery := make([]models.DeliveryExtra, 0, len(items))
	for _, item := range items {
		delivery = append(delivery, models.DeliveryExtra{
			Name:           item.Name,
			AdditionalInfo: item.AdditionalInfo,
			Unit:           item.Unit,
			Price:          item.Price.Amount,
		})
	}
	return delivery
}

var extraItemTypeClass = regexp.MustCompile(`extra-item__type--`)

// ExtractNotIncluded walks the rendered "excluded" extras blocks; these have
// no component attribute so the HTML structure is the only source.
func (p *Parser) ExtractNotIncluded(d *Document) []models.NotIncludedItem {
	var notIncluded []models.NotIncludedItem

	d.doc.Find("div.extras-list.excluded").Each(func(_ int, block *goquery.Selection) {
		block.Find("div.extra-item").Each(func(_ int, item *goquery.Selection) {
			entry := models.NotIncludedItem{
				Name:        strings.TrimSpace(item.Find("li.extra-item__heading").First().Text()),
				Price:       strings.TrimSpace(item.Find("div.extra-item__price").First().Text()),
				Description: strings.TrimSpace(item.Find("div.extra-item__description").First().Text()),
			}
			item.Find("span").EachWithBreak(func(_ int, span *goquery.Selection) bool {
				class, _ := span.Attr("class")
				if extraItemTypeClass.MatchString(class) {
					entry.Option = strings.TrimSpace(span.Text())
					return false
				}
				return true
			})
			if entry.Name != "" {
				notIncluded = append(notIncluded, entry)
			}
		})
	})

	return notIncluded
}

// ExtractEquipmentSection reads one of the :cockpit, :entertainment or
// :equipment attributes off the extras-list component.
func (p *Parser) ExtractEquipmentSection(d *Document, sectionKey string) []models.EquipmentItem {
	var raw []struct {
		Name           string   `json:"name"`
		Slug           string   `json:"slug"`
		AdditionalInfo string   `json:"additional_info"`
		Unit           string   `json:"unit"`
		Price          rawPrice `json:"price"`
		Mandatory      bool     `json:"mandatory"`
		PayWhen        string   `json:"pay_when"`
	}
	if !attrJSON(d.doc, "extras-list", ":"+sectionKey, &raw) {
		return nil
	}

	var items []models.EquipmentItem
	for _, item := range raw {
		if item.Name == "" {
			continue
		}
		currency := item.Price.Currency
		if currency == "" {
			currency = "EUR"
		}
		items = append(items, models.EquipmentItem{
			Name:           item.Name,
			Slug:           item.Slug,
			AdditionalInfo: item.AdditionalInfo,
			Unit:           item.Unit,
			Price:          item.Price.Amount,
			PriceNice:      item.Price.Nice,
			Currency:       currency,
			Mandatory:      item.Mandatory,
			PayWhen:        item.PayWhen,
		})
	}
	return items
}

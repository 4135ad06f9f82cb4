// Package products turns the loosely shaped product records served by the
// shop API into one canonical Product.
package products

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/samber/lo"
)

// Raw is a product record as the API or a caller hands it over. Field names
// vary between endpoints, see Normalize.
type Raw map[string]any

type Product struct {
	ID            string
	Name          string
	Price         float64
	FinalPrice    float64
	MRP           float64
	OriginalPrice float64
	Image         string
	Images        []string
	Thumbnail     string
	Category      string
	Brand         string
	Description   string
	Stock         int
	InStock       bool
}

// Ordered fallback sources per canonical field. The first present, non-zero
// source wins. "images.0" is the first entry of the images array.
var (
	idSources            = []string{"_id", "id", "productId"}
	nameSources          = []string{"name", "productName"}
	priceSources         = []string{"price", "finalPrice", "mrp"}
	finalPriceSources    = []string{"finalPrice", "price", "mrp"}
	mrpSources           = []string{"mrp", "originalPrice", "price"}
	originalPriceSources = []string{"originalPrice", "mrp", "price"}
	imageSources         = []string{"image", "thumbnail", "images.0"}
	thumbnailSources     = []string{"thumbnail", "image", "images.0"}
	stockSources         = []string{"stock", "quantity"}
)

// Normalize maps raw onto the canonical shape. Missing fields default to the
// empty string or zero; Normalize never fails. A product without any id
// source has an empty ID.
func Normalize(raw Raw) Product {
	p := Product{
		ID:            raw.firstString(idSources),
		Name:          raw.firstString(nameSources),
		Price:         raw.firstNumber(priceSources),
		FinalPrice:    raw.firstNumber(finalPriceSources),
		MRP:           raw.firstNumber(mrpSources),
		OriginalPrice: raw.firstNumber(originalPriceSources),
		Image:         raw.firstString(imageSources),
		Thumbnail:     raw.firstString(thumbnailSources),
		Images:        raw.strings("images"),
		Category:      raw.String("category"),
		Brand:         raw.String("brand"),
		Description:   raw.String("description"),
		Stock:         int(raw.firstNumber(stockSources)),
	}
	if len(p.Images) == 0 && raw.String("image") != "" {
		p.Images = []string{raw.String("image")}
	}
	if v, ok := raw["inStock"].(bool); ok {
		p.InStock = v
	} else {
		p.InStock = p.Stock > 0
	}
	return p
}

// ID resolves the product id without normalizing the rest of the record.
func (r Raw) ID() string {
	return r.firstString(idSources)
}

// EffectivePrice is what the shopper pays per unit: the discounted price
// when there is one.
func (p Product) EffectivePrice() float64 {
	return lo.CoalesceOrEmpty(p.FinalPrice, p.Price)
}

// IsStub reports whether only the id is known.
func (p Product) IsStub() bool {
	return p.Name == "" && p.Price == 0 && p.FinalPrice == 0 && p.Image == ""
}

// Stub is the minimal product used when only an id is known.
func Stub(id string) Product {
	return Product{ID: id}
}

func (r Raw) firstString(keys []string) string {
	return lo.CoalesceOrEmpty(lo.Map(keys, func(key string, _ int) string {
		return r.String(key)
	})...)
}

func (r Raw) firstNumber(keys []string) float64 {
	return lo.CoalesceOrEmpty(lo.Map(keys, func(key string, _ int) float64 {
		return r.Number(key)
	})...)
}

// String returns the value under key as a string. Numeric ids are formatted
// without a fraction.
func (r Raw) String(key string) string {
	if name, ok := strings.CutSuffix(key, ".0"); ok {
		return lo.FirstOrEmpty(r.strings(name))
	}
	switch v := r[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	case json.Number:
		return v.String()
	}
	return ""
}

// Number returns the value under key as a float. Numeric strings such as
// "199.00" are accepted; anything else is zero.
func (r Raw) Number(key string) float64 {
	switch v := r[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case int64:
		return float64(v)
	case json.Number:
		f, _ := v.Float64()
		return f
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0
		}
		return f
	}
	return 0
}

func (r Raw) strings(key string) []string {
	switch v := r[key].(type) {
	case []string:
		return lo.Compact(v)
	case []any:
		return lo.Compact(lo.Map(v, func(item any, _ int) string {
			s, _ := item.(string)
			return s
		}))
	}
	return nil
}

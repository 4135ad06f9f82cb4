package products

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// wireProduct is the encoded form. Alias names are written alongside the
// canonical ones because different shop endpoints key on different names.
type wireProduct struct {
	ID            string   `json:"_id"`
	AltID         string   `json:"id"`
	ProductID     string   `json:"productId"`
	Name          string   `json:"name"`
	ProductName   string   `json:"productName"`
	Price         float64  `json:"price"`
	FinalPrice    float64  `json:"finalPrice"`
	MRP           float64  `json:"mrp"`
	OriginalPrice float64  `json:"originalPrice"`
	Image         string   `json:"image"`
	Images        []string `json:"images"`
	Thumbnail     string   `json:"thumbnail"`
	Category      string   `json:"category"`
	Brand         string   `json:"brand"`
	Description   string   `json:"description"`
	Stock         int      `json:"stock"`
	InStock       bool     `json:"inStock"`
}

func (p Product) MarshalJSON() ([]byte, error) {
	images := p.Images
	if images == nil {
		images = []string{}
	}
	return json.Marshal(wireProduct{
		ID:            p.ID,
		AltID:         p.ID,
		ProductID:     p.ID,
		Name:          p.Name,
		ProductName:   p.Name,
		Price:         p.Price,
		FinalPrice:    p.FinalPrice,
		MRP:           p.MRP,
		OriginalPrice: p.OriginalPrice,
		Image:         p.Image,
		Images:        images,
		Thumbnail:     p.Thumbnail,
		Category:      p.Category,
		Brand:         p.Brand,
		Description:   p.Description,
		Stock:         p.Stock,
		InStock:       p.InStock,
	})
}

// UnmarshalJSON accepts any product-shaped object and normalizes it. A bare
// string is taken as an unpopulated product reference.
func (p *Product) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*p = Product{}
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var id string
		if err := json.Unmarshal(data, &id); err != nil {
			return fmt.Errorf("decode product reference: %w", err)
		}
		*p = Stub(id)
		return nil
	}
	var raw Raw
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decode product: %w", err)
	}
	*p = Normalize(raw)
	return nil
}

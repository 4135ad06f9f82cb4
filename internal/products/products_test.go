package products

import (
	"encoding/json"
	"testing"
)

func TestNormalizeFallbacks(t *testing.T) {
	tests := []struct {
		name string
		raw  Raw
		want Product
	}{
		{
			name: "final price falls back to price",
			raw:  Raw{"_id": "p1", "name": "Watch", "price": 200.0},
			want: Product{ID: "p1", Name: "Watch", Price: 200, FinalPrice: 200, MRP: 200, OriginalPrice: 200},
		},
		{
			name: "discounted product keeps both prices",
			raw:  Raw{"_id": "p1", "price": 200.0, "finalPrice": 150.0},
			want: Product{ID: "p1", Price: 200, FinalPrice: 150, MRP: 200, OriginalPrice: 200},
		},
		{
			name: "alternate names",
			raw: Raw{
				"productId":   "p9",
				"productName": "Lens",
				"mrp":         "499",
				"thumbnail":   "thumb.png",
				"quantity":    3.0,
			},
			want: Product{
				ID: "p9", Name: "Lens", Price: 499, FinalPrice: 499, MRP: 499, OriginalPrice: 499,
				Image: "thumb.png", Thumbnail: "thumb.png", Stock: 3, InStock: true,
			},
		},
		{
			name: "numeric id",
			raw:  Raw{"id": 42.0},
			want: Product{ID: "42"},
		},
		{
			name: "empty record",
			raw:  Raw{},
			want: Product{},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := Normalize(tc.raw)
			if got.ID != tc.want.ID || got.Name != tc.want.Name {
				t.Fatalf("identity mismatch: got %+v want %+v", got, tc.want)
			}
			if got.Price != tc.want.Price || got.FinalPrice != tc.want.FinalPrice ||
				got.MRP != tc.want.MRP || got.OriginalPrice != tc.want.OriginalPrice {
				t.Fatalf("price mismatch: got %+v want %+v", got, tc.want)
			}
			if got.Image != tc.want.Image || got.Thumbnail != tc.want.Thumbnail {
				t.Fatalf("image mismatch: got %+v want %+v", got, tc.want)
			}
			if got.Stock != tc.want.Stock || got.InStock != tc.want.InStock {
				t.Fatalf("stock mismatch: got %+v want %+v", got, tc.want)
			}
		})
	}
}

func TestNormalizeFinalPriceEqualsPriceWhenMissing(t *testing.T) {
	for _, price := range []float64{0.5, 1, 99, 1234.75} {
		p := Normalize(Raw{"_id": "x", "price": price})
		if p.FinalPrice != price {
			t.Fatalf("price %v: final price %v", price, p.FinalPrice)
		}
	}
}

func TestNormalizeImages(t *testing.T) {
	p := Normalize(Raw{"images": []any{"", "a.png", "b.png"}})
	if p.Image != "a.png" || p.Thumbnail != "a.png" {
		t.Fatalf("expected first non-empty image, got %+v", p)
	}
	if len(p.Images) != 2 {
		t.Fatalf("expected two images, got %v", p.Images)
	}

	p = Normalize(Raw{"image": "only.png"})
	if len(p.Images) != 1 || p.Images[0] != "only.png" {
		t.Fatalf("expected images built from image, got %v", p.Images)
	}
}

func TestNormalizeExplicitInStock(t *testing.T) {
	p := Normalize(Raw{"stock": 5.0, "inStock": false})
	if p.InStock {
		t.Fatal("explicit inStock=false should win over stock")
	}
}

func TestEffectivePrice(t *testing.T) {
	if got := (Product{Price: 50}).EffectivePrice(); got != 50 {
		t.Fatalf("expected price when no final price, got %v", got)
	}
	if got := (Product{Price: 50, FinalPrice: 40}).EffectivePrice(); got != 40 {
		t.Fatalf("expected final price, got %v", got)
	}
}

func TestProductJSON(t *testing.T) {
	var p Product
	if err := json.Unmarshal([]byte(`{"id":"p3","productName":"Shoe","finalPrice":"75.5"}`), &p); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if p.ID != "p3" || p.Name != "Shoe" || p.Price != 75.5 {
		t.Fatalf("unexpected product %+v", p)
	}

	b, err := json.Marshal(p)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var wire map[string]any
	if err := json.Unmarshal(b, &wire); err != nil {
		t.Fatalf("unmarshal wire: %v", err)
	}
	for _, key := range []string{"_id", "id", "productId"} {
		if wire[key] != "p3" {
			t.Fatalf("expected %s alias, got %v", key, wire[key])
		}
	}
	if wire["image"] != "" {
		t.Fatalf("image must always be present, got %v", wire["image"])
	}

	var ref Product
	if err := json.Unmarshal([]byte(`"p7"`), &ref); err != nil {
		t.Fatalf("unmarshal ref: %v", err)
	}
	if ref.ID != "p7" || !ref.IsStub() {
		t.Fatalf("expected stub for bare id, got %+v", ref)
	}
}

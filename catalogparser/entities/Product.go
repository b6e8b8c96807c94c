package entities

// Product is one catalog entry after loading. Products are immutable once
// the index is built; ID is the position in the catalog file.
type Product struct {
	ID             int      `json:"id"`
	Name           string   `json:"name"`
	Brand          string   `json:"brand"`
	RawComposition string   `json:"composition"`
	Price          *float64 `json:"price"` // nil when the catalog has no usable price
	PriceUnit      string   `json:"price_unit,omitempty"`
	PriceText      string   `json:"price_text,omitempty"`
	Categories     []string `json:"categories"`
	PackInfo       string   `json:"pack_info,omitempty"`
	URL            string   `json:"url,omitempty"`
}

// UnitPrice returns the parsed price and whether the product has one.
func (p Product) UnitPrice() (float64, bool) {
	if p.Price == nil {
		return 0, false
	}
	return *p.Price, true
}

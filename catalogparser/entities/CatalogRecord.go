package entities

// CatalogRecord is a raw entry of the catalog JSON array.
type CatalogRecord struct {
	Name        string   `json:"name"`
	Brand       string   `json:"brand"`
	Composition string   `json:"composition"`
	Price       string   `json:"price"`
	Categories  []string `json:"categories"`
	PackInfo    string   `json:"pack_info"`
	URL         string   `json:"url"`
}

// LoadReport summarizes a catalog load.
type LoadReport struct {
	Source        string `json:"source"`
	Records       int    `json:"records"`
	Loaded        int    `json:"loaded"`
	SkippedNoName int    `json:"skipped_no_name"`
	Unpriced      int    `json:"unpriced"`
	Reencoded     bool   `json:"reencoded"`
}

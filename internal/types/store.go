package types

import (
	"encoding/json"
	"time"
)

// CategoryTag is a navigable category control on the feed surface.
type CategoryTag struct {
	// Label is the human-readable category name as rendered.
	Label string `json:"label"`

	// StableID is the site-assigned identifier used for element lookup.
	StableID string `json:"stable_id"`

	// Href is a direct navigation target extracted from the control.
	// Empty means the category can only be selected by interaction.
	Href string `json:"href,omitempty"`
}

// StoreLink is a store discovered on a category listing, before menu
// enrichment.
type StoreLink struct {
	StoreID  string `json:"store_id"`
	Name     string `json:"name"`
	Slug     string `json:"slug"`
	URL      string `json:"url"`
	Category string `json:"category"`
}

// MenuItem is a single priced item on a store menu.
type MenuItem struct {
	Name     string `json:"name"`
	PriceTWD int    `json:"price_twd"`
}

// Store is a fully collected store record, the unit submitted to
// classification.
type Store struct {
	Name      string     `json:"name"`
	Category  string     `json:"category"`
	URL       string     `json:"url"`
	MenuItems []MenuItem `json:"menu_items,omitempty"`
	AvgPrice  int        `json:"avg_price,omitempty"`
}

// AvgMenuPrice returns the rounded mean of the item prices, or 0 when the
// menu is empty.
func AvgMenuPrice(items []MenuItem) int {
	if len(items) == 0 {
		return 0
	}
	sum := 0
	for _, it := range items {
		sum += it.PriceTWD
	}
	return (sum + len(items)/2) / len(items)
}

// ClassifiedStore is a store after LLM classification.
type ClassifiedStore struct {
	Name       string   `json:"name"`
	Label      string   `json:"category"`
	URL        string   `json:"url"`
	AvgPrice   int      `json:"avg_price,omitempty"`
	Highlights []string `json:"highlights,omitempty"`
}

// Dataset is the final pipeline artifact. It is built once by the merger
// and never mutated afterwards.
type Dataset struct {
	GeneratedAt  time.Time         `json:"generated_at"`
	PipelineMode string            `json:"pipeline_mode"`
	StoreCount   int               `json:"store_count"`
	Stores       []ClassifiedStore `json:"stores"`
}

// ToJSON serializes the dataset with indentation, matching the on-disk
// artifact format.
func (d *Dataset) ToJSON() ([]byte, error) {
	return json.MarshalIndent(d, "", "  ")
}

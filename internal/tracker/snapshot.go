package tracker

import (
	"encoding/json"
	"reflect"
	"sort"
	"strconv"

	"lazychat/internal/models"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/samber/lo"
)

// Snapshot is the tracked subset of a product. Values are JSON-native
// (string, float64, bool, []interface{}, map[string]interface{}) so a
// snapshot compares equal after a round trip through any cache backend.
type Snapshot map[string]interface{}

// TrackedFields is the allow-list of top-level keys a snapshot may hold.
var TrackedFields = []string{
	"id", "name", "slug", "type", "status", "sku",
	"price", "regular_price", "sale_price", "on_sale",
	"stock_quantity", "stock_status", "manage_stock",
	"description", "short_description",
	"categories", "tags", "images",
	"variations",
}

type imageRef struct {
	ID  int    `json:"id"`
	Src string `json:"src"`
}

type variationSummary struct {
	StockQuantity *int      `json:"stock_quantity"`
	StockStatus   string    `json:"stock_status"`
	Price         string    `json:"price"`
	SKU           string    `json:"sku"`
	Image         *imageRef `json:"image"`
}

// BuildSnapshot extracts the tracked fields of p. Variable products also get
// a "variations" map keyed by variation ID.
func BuildSnapshot(p *models.Product) Snapshot {
	raw := map[string]interface{}{
		"id":                p.ID,
		"name":              p.Name,
		"slug":              p.Slug,
		"type":              string(p.Type),
		"status":            string(p.Status),
		"sku":               p.SKU,
		"price":             p.Price,
		"regular_price":     p.RegularPrice,
		"sale_price":        p.SalePrice,
		"on_sale":           p.OnSale(),
		"stock_quantity":    p.StockQuantity,
		"stock_status":      string(p.StockStatus),
		"manage_stock":      p.ManageStock,
		"description":       p.Description,
		"short_description": p.ShortDescription,
		"categories":        lo.Map(p.Categories, func(t models.Term, _ int) int { return t.ID }),
		"tags":              lo.Map(p.Tags, func(t models.Term, _ int) int { return t.ID }),
		"images": lo.Map(p.Images, func(img models.Image, _ int) imageRef {
			return imageRef{ID: img.ID, Src: img.Src}
		}),
	}

	if p.IsVariable() {
		raw["variations"] = lo.SliceToMap(p.Variations, func(v models.Variation) (string, variationSummary) {
			summary := variationSummary{
				StockQuantity: v.StockQuantity,
				StockStatus:   string(v.StockStatus),
				Price:         v.Price,
				SKU:           v.SKU,
			}
			if v.Image != nil {
				summary.Image = &imageRef{ID: v.Image.ID, Src: v.Image.Src}
			}
			return strconv.Itoa(v.ID), summary
		})
	}

	return normalize(raw)
}

func normalize(raw map[string]interface{}) Snapshot {
	data, err := json.Marshal(raw)
	if err != nil {
		return Snapshot{}
	}
	out := Snapshot{}
	if err := json.Unmarshal(data, &out); err != nil {
		return Snapshot{}
	}
	return out
}

// Diff returns the sorted top-level keys whose values differ. A key missing
// from both snapshots is never reported.
func Diff(prev, cur Snapshot) []string {
	keys := mapset.NewThreadUnsafeSet[string]()
	for k := range prev {
		keys.Add(k)
	}
	for k := range cur {
		keys.Add(k)
	}

	changed := []string{}
	for _, k := range keys.ToSlice() {
		before, inPrev := prev[k]
		after, inCur := cur[k]
		if inPrev != inCur || !reflect.DeepEqual(before, after) {
			changed = append(changed, k)
		}
	}
	sort.Strings(changed)
	return changed
}

// Package recommend turns a user's stored wardrobe into outfit advice from a
// chat-completion model: free-text suggestions or a structured look.
package recommend

import (
	"strings"

	"nexlook/internal/domain"
)

// DefaultMaxItems mirrors the per-user wardrobe limit.
const DefaultMaxItems = 15

// ClothingItem is one wardrobe image offered to the model. Images of the same
// look share the look's id.
type ClothingItem struct {
	ID       string
	Name     string
	Category string
	ImageRef string
}

// Aggregate flattens looks into one item per image. Images without a URL are skipped.
func Aggregate(looks []domain.Look) []ClothingItem {
	var items []ClothingItem
	for _, look := range looks {
		for _, img := range look.Images {
			ref := strings.TrimSpace(img.ImageURL)
			if ref == "" {
				continue
			}
			items = append(items, ClothingItem{
				ID:       look.ID,
				Name:     look.Title,
				Category: look.Description,
				ImageRef: ref,
			})
		}
	}
	return items
}

// capItems keeps the first max items and reports how many were dropped.
func capItems(items []ClothingItem, max int) ([]ClothingItem, int) {
	if max <= 0 || len(items) <= max {
		return items, 0
	}
	return items[:max], len(items) - max
}

func itemIDs(items []ClothingItem) map[string]struct{} {
	ids := make(map[string]struct{}, len(items))
	for _, item := range items {
		ids[item.ID] = struct{}{}
	}
	return ids
}

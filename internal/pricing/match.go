package pricing

import (
	"regexp"
	"strings"
)

// Item is a product option extracted from a post description. An item may
// price by bundle packs; items without packs fall back to flat unit
// pricing on the order.
type Item struct {
	Name   string      `json:"name"`
	Type   string      `json:"type"`
	Prices []PricePack `json:"prices"`
}

// Keeps latin letters, digits, Vietnamese letters, whitespace and hyphens;
// everything else becomes a separator.
var tokenStrip = regexp.MustCompile(`[^a-z0-9áàảãạăắằẳẵặâấầẩẫậđéèẻẽẹêếềểễệíìỉĩịóòỏõọôốồổỗộơớờởỡợúùủũụưứừửữựýỳỷỹỵ\s-]+`)

func tokenize(s string) []string {
	s = tokenStrip.ReplaceAllString(strings.ToLower(s), " ")
	return strings.Fields(s)
}

// PickItem chooses the item whose type shares the most tokens with the
// comment's type text. Single-item posts and empty comment types short
// circuit to the first item; ties keep the earlier item.
func PickItem(items []Item, commentType string) *Item {
	if len(items) == 0 {
		return nil
	}
	if len(items) == 1 || commentType == "" {
		return &items[0]
	}

	ctoks := make(map[string]bool)
	for _, t := range tokenize(commentType) {
		ctoks[t] = true
	}

	best := 0
	bestScore := -1
	for i := range items {
		seen := make(map[string]bool)
		score := 0
		for _, t := range tokenize(items[i].Type) {
			if ctoks[t] && !seen[t] {
				seen[t] = true
				score++
			}
		}
		if score > bestScore {
			bestScore = score
			best = i
		}
	}
	return &items[best]
}

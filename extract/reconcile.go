package extract

import (
	"regexp"
	"sort"
	"strings"

	"github.com/leonclem/one-minute-menu-sub003/model"
)

// UncategorizedName is the bucket for accepted uncertain items that carry no
// suggested category
const UncategorizedName = "Uncategorized"

const (
	// variantMinItems is the minimum number of direct items a category
	// needs before variant collapsing is considered
	variantMinItems = 2
	// variantRatio is the share of direct item names that must look like
	// variants for the category to collapse
	variantRatio = 0.7
)

var variantPrefix = regexp.MustCompile(`(?i)^(w/|with\b)`)

// Flatten turns a hierarchical structured result into the flat drafts the
// item API accepts. Nesting is preserved in the category label by joining
// path segments with " > ". Accepted uncertain items are appended last,
// bucketed under their suggested category or Uncategorized.
//
// Items with an empty name or a negative price are dropped; every draft
// comes out available with a non-null description.
func Flatten(result *model.StructuredMenuResult, acceptedUncertain []model.UncertainItem) []model.MenuItemDraft {
	drafts := make([]model.MenuItemDraft, 0)
	if result != nil {
		for _, cat := range result.Menu.Categories {
			drafts = appendCategory(drafts, cat, nil)
		}
	}
	for _, u := range acceptedUncertain {
		name := strings.TrimSpace(u.RawText)
		if name == "" || u.SuggestedPrice < 0 {
			continue
		}
		drafts = append(drafts, model.MenuItemDraft{
			Name:      name,
			Price:     u.SuggestedPrice,
			Category:  UncategorizedName,
			Available: true,
		})
	}
	return drafts
}

// appendCategory walks one category depth-first: direct items first, then
// each subcategory with the extended path label.
func appendCategory(drafts []model.MenuItemDraft, cat model.ResultCategory, path []string) []model.MenuItemDraft {
	label := strings.TrimSpace(cat.Name)
	fullPath := path
	if label != "" {
		fullPath = append(append([]string{}, path...), label)
	}
	categoryLabel := strings.Join(fullPath, " > ")

	if isVariantGroup(cat) {
		// Collapsed variants take the parent path as their category so the
		// dish does not end up filed under itself. Top-level groups keep
		// their own name as the label.
		variantLabel := strings.Join(path, " > ")
		if variantLabel == "" {
			variantLabel = categoryLabel
		}
		for _, item := range cat.Items {
			if item.Price < 0 {
				continue
			}
			drafts = append(drafts, model.MenuItemDraft{
				Name:        label,
				Description: joinVariantDescription(item),
				Price:       item.Price,
				Category:    variantLabel,
				Available:   true,
			})
		}
	} else {
		for _, item := range cat.Items {
			name := strings.TrimSpace(item.Name)
			if name == "" || item.Price < 0 {
				continue
			}
			drafts = append(drafts, model.MenuItemDraft{
				Name:        name,
				Description: item.Description,
				Price:       item.Price,
				Category:    categoryLabel,
				Available:   true,
			})
		}
	}

	for _, sub := range cat.Subcategories {
		drafts = appendCategory(drafts, sub, fullPath)
	}
	return drafts
}

// isVariantGroup reports whether a category reads like one dish with priced
// variants ("w/ Fries", "with Salad") rather than a list of distinct items
func isVariantGroup(cat model.ResultCategory) bool {
	if strings.TrimSpace(cat.Name) == "" || len(cat.Items) < variantMinItems {
		return false
	}
	matched := 0
	for _, item := range cat.Items {
		if variantPrefix.MatchString(strings.TrimSpace(item.Name)) {
			matched++
		}
	}
	return float64(matched) >= variantRatio*float64(len(cat.Items))
}

// joinVariantDescription builds the collapsed item's description from the
// normalized variant text and the variant's own description
func joinVariantDescription(item model.ExtractedItem) string {
	variant := strings.TrimSpace(item.Name)
	variant = variantPrefix.ReplaceAllString(variant, "with ")
	variant = strings.Join(strings.Fields(variant), " ")
	desc := strings.TrimSpace(item.Description)
	if desc == "" {
		return variant
	}
	if variant == "" {
		return desc
	}
	return variant + " — " + desc
}

// MigrateLegacyCategories rewrites the flat single-level category labels of
// a pre-hierarchy menu into the path form used today. It is a pure one-shot
// transform: items already carrying a path separator pass through unchanged,
// empty categories become Uncategorized, and relative item order within each
// category is preserved.
func MigrateLegacyCategories(items []model.MenuItem) []model.MenuItem {
	out := make([]model.MenuItem, len(items))
	copy(out, items)
	for i := range out {
		cat := strings.TrimSpace(out[i].Category)
		switch {
		case cat == "":
			out[i].Category = UncategorizedName
		case strings.Contains(cat, " > "):
			// already hierarchical
		default:
			out[i].Category = cat
		}
	}
	sort.SliceStable(out, func(a, b int) bool {
		if out[a].Category != out[b].Category {
			return out[a].Category < out[b].Category
		}
		return out[a].Position < out[b].Position
	})
	for i := range out {
		out[i].Position = i
	}
	return out
}

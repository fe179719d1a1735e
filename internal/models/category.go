package models

import "strings"

// Category is one label out of a fixed closed set. Empty means "not yet
// classified".
type Category string

const (
	CategoryBookClub    Category = "book club"
	CategoryConventions Category = "conventions"
	CategoryFood        Category = "food"
	CategoryGaming      Category = "gaming"
	CategoryKaraoke     Category = "karaoke"
	CategoryOutdoor     Category = "outdoor"
	CategoryWatchParty  Category = "watch party"
	CategoryOther       Category = "other"
)

// Categories is the closed label set, in prompt order. CategoryOther is
// the classifier fallback.
var Categories = []Category{
	CategoryBookClub,
	CategoryConventions,
	CategoryFood,
	CategoryGaming,
	CategoryKaraoke,
	CategoryOutdoor,
	CategoryWatchParty,
	CategoryOther,
}

func (c Category) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// FallbackChannel receives announcements for uncategorized or "other"
// events.
const FallbackChannel = "events-general"

// Channel returns the announcement channel name for the category.
// Channel names use dashes where the category label has spaces.
func (c Category) Channel() string {
	if !c.Valid() || c == CategoryOther {
		return FallbackChannel
	}
	return strings.ReplaceAll(string(c), " ", "-")
}

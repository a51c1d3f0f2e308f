package domain

import "strings"

// FeedSort is a sort criterion understood by the paper feed.
type FeedSort string

const (
	FeedSortHot         FeedSort = "Hot"
	FeedSortComments    FeedSort = "Comments"
	FeedSortViews       FeedSort = "Views"
	FeedSortLikes       FeedSort = "Likes"
	FeedSortGitHub      FeedSort = "GitHub"
	FeedSortTwitter     FeedSort = "Twitter (X)"
	FeedSortRecommended FeedSort = "Recommended"
)

// FeedSorts lists every supported sort in display order.
var FeedSorts = []FeedSort{
	FeedSortHot,
	FeedSortComments,
	FeedSortViews,
	FeedSortLikes,
	FeedSortGitHub,
	FeedSortTwitter,
	FeedSortRecommended,
}

// NormalizeSort maps s onto a supported sort. Matching is case-insensitive and
// anything unknown, including the empty string, becomes FeedSortHot.
func NormalizeSort(s string) FeedSort {
	s = strings.TrimSpace(s)
	for _, fs := range FeedSorts {
		if strings.EqualFold(s, string(fs)) {
			return fs
		}
	}
	return FeedSortHot
}

// DefaultLanguage is the overview language used when none has been chosen.
const DefaultLanguage = "en"

// PreferenceOverviewLanguage is the preference key holding the overview language.
const PreferenceOverviewLanguage = "overview_language"

// NormalizeLanguage lowercases and trims lang, falling back to DefaultLanguage.
func NormalizeLanguage(lang string) string {
	lang = strings.ToLower(strings.TrimSpace(lang))
	if lang == "" {
		return DefaultLanguage
	}
	return lang
}

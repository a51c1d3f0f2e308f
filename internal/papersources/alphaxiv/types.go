// Package alphaxiv provides a paper source backed by the alphaXiv JSON API.
//
// Endpoints used:
//
//	GET papers/v3/feed?pageNum=1&pageSize=20&interval=All time&sort=Hot
//	GET v1/search/paper?q=...
//	GET papers/v3/{id}/preview
//	GET papers/v3/{versionId}/overview/{lang}
package alphaxiv

import (
	"bytes"
	"encoding/json"
	"strings"
)

// FeedResponse is the body of the feed endpoint.
type FeedResponse struct {
	Papers []PaperRecord `json:"papers"`
}

// PaperRecord is a paper as returned by the feed, search and preview endpoints.
type PaperRecord struct {
	ID                   string        `json:"id"`
	Title                string        `json:"title"`
	Abstract             *string       `json:"abstract"`
	ImageURL             *string       `json:"image_url"`
	UniversalPaperID     *string       `json:"universal_paper_id"`
	Authors              []string      `json:"authors"`
	PaperSummary         *PaperSummary `json:"paper_summary"`
	Metrics              *Metrics      `json:"metrics"`
	VersionID            *string       `json:"version_id"`
	CanonicalID          *string       `json:"canonical_id"`
	PublicationDate      LooseString   `json:"publication_date"`
	FirstPublicationDate LooseString   `json:"first_publication_date"`
}

// PaperSummary holds the generated summary block.
type PaperSummary struct {
	Summary *string `json:"summary"`
}

// Metrics holds engagement counters.
type Metrics struct {
	PublicTotalVotes *int    `json:"public_total_votes"`
	TotalVotes       *int    `json:"total_votes"`
	Visits           *Visits `json:"visits_count"`
}

// Visits holds view counters.
type Visits struct {
	All *int `json:"all"`
}

// OverviewResponse is the body of the overview endpoint.
type OverviewResponse struct {
	Title    *string       `json:"title"`
	Overview *string       `json:"overview"`
	Summary  *PaperSummary `json:"summary"`
}

// LooseString accepts a JSON string, number or null. Dates arrive in more than
// one shape depending on the endpoint.
type LooseString string

// UnmarshalJSON implements json.Unmarshaler.
func (s *LooseString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*s = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var v string
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		*s = LooseString(v)
		return nil
	}
	*s = LooseString(strings.Trim(string(data), `"`))
	return nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return strings.TrimSpace(*s)
}

// firstNonBlank returns the first argument that is not blank after trimming.
func firstNonBlank(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

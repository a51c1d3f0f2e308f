package scraper

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"github.com/andybalholm/cascadia"
	"gopkg.in/yaml.v3"
)

//go:embed selectors.yaml
var defaultSelectorsYAML []byte

// Selector is a CSS selector that optionally reads an attribute instead of the
// element text. It is written as "css" or "css@attr".
type Selector struct {
	CSS  string
	Attr string
}

// ParseSelector splits "css@attr". An "@" only introduces an attribute when the
// remainder is a bare attribute name.
func ParseSelector(s string) Selector {
	s = strings.TrimSpace(s)
	if i := strings.LastIndex(s, "@"); i > 0 && isAttrName(s[i+1:]) {
		return Selector{CSS: strings.TrimSpace(s[:i]), Attr: s[i+1:]}
	}
	return Selector{CSS: s}
}

func isAttrName(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || r == '-' || r == '_' || r == ':') {
			return false
		}
	}
	return true
}

// String implements fmt.Stringer.
func (s Selector) String() string {
	if s.Attr == "" {
		return s.CSS
	}
	return s.CSS + "@" + s.Attr
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (s *Selector) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	*s = ParseSelector(raw)
	return nil
}

// CardSelectors locate paper cards on listing and search pages.
type CardSelectors struct {
	Block      string     `yaml:"block"`
	Heading    string     `yaml:"heading"`
	Link       string     `yaml:"link"`
	Title      []Selector `yaml:"title"`
	Authors    []Selector `yaml:"authors"`
	Summary    []Selector `yaml:"summary"`
	Thumbnail  []Selector `yaml:"thumbnail"`
	Upvotes    []Selector `yaml:"upvotes"`
	Comments   []Selector `yaml:"comments"`
	Date       []Selector `yaml:"date"`
	Categories []Selector `yaml:"categories"`
}

// DetailSelectors extract a paper from its abstract page.
type DetailSelectors struct {
	Title        []Selector `yaml:"title"`
	Summary      []Selector `yaml:"summary"`
	Thumbnail    []Selector `yaml:"thumbnail"`
	Authors      []Selector `yaml:"authors"`
	AuthorParam  string     `yaml:"author_param"`
	Placeholders []string   `yaml:"placeholders"`
}

// OverviewSelectors extract long-form content from the overview page.
type OverviewSelectors struct {
	Containers  []Selector `yaml:"containers"`
	MinLength   int        `yaml:"min_length"`
	Description []Selector `yaml:"description"`
}

// Selectors is the full selector table. The site markup changes independently
// of this code, so the table is data rather than logic.
type Selectors struct {
	Card     CardSelectors     `yaml:"card"`
	Detail   DetailSelectors   `yaml:"detail"`
	Overview OverviewSelectors `yaml:"overview"`
}

// DefaultSelectors returns the embedded selector table.
func DefaultSelectors() Selectors {
	var s Selectors
	if err := yaml.Unmarshal(defaultSelectorsYAML, &s); err != nil {
		panic(fmt.Sprintf("scraper: embedded selectors are invalid: %v", err))
	}
	return s
}

// LoadSelectors reads an override file on top of the defaults. Keys absent from
// the file keep their default value. An empty path returns the defaults.
func LoadSelectors(path string) (Selectors, error) {
	s := DefaultSelectors()
	if strings.TrimSpace(path) == "" {
		return s, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Selectors{}, fmt.Errorf("read selectors file: %w", err)
	}
	if err := yaml.Unmarshal(data, &s); err != nil {
		return Selectors{}, fmt.Errorf("parse selectors file: %w", err)
	}
	if err := s.Validate(); err != nil {
		return Selectors{}, err
	}
	return s, nil
}

// Validate checks that every selector compiles and the required ones are set.
func (s Selectors) Validate() error {
	required := map[string]string{
		"card.block":   s.Card.Block,
		"card.heading": s.Card.Heading,
		"card.link":    s.Card.Link,
	}
	for name, css := range required {
		if strings.TrimSpace(css) == "" {
			return fmt.Errorf("selector %s is required", name)
		}
		if _, err := cascadia.Compile(css); err != nil {
			return fmt.Errorf("selector %s: %w", name, err)
		}
	}

	lists := map[string][]Selector{
		"card.title":           s.Card.Title,
		"card.authors":         s.Card.Authors,
		"card.summary":         s.Card.Summary,
		"card.thumbnail":       s.Card.Thumbnail,
		"card.upvotes":         s.Card.Upvotes,
		"card.comments":        s.Card.Comments,
		"card.date":            s.Card.Date,
		"card.categories":      s.Card.Categories,
		"detail.title":         s.Detail.Title,
		"detail.summary":       s.Detail.Summary,
		"detail.thumbnail":     s.Detail.Thumbnail,
		"detail.authors":       s.Detail.Authors,
		"overview.containers":  s.Overview.Containers,
		"overview.description": s.Overview.Description,
	}
	for name, sels := range lists {
		for _, sel := range sels {
			if _, err := cascadia.Compile(sel.CSS); err != nil {
				return fmt.Errorf("selector %s %q: %w", name, sel, err)
			}
		}
	}

	if s.Overview.MinLength < 0 {
		return fmt.Errorf("overview.min_length must be non-negative")
	}
	return nil
}

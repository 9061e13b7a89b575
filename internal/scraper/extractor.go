// internal/scraper/extractor.go
package scraper

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/valpere/listingharvest/internal/config"
	"github.com/valpere/listingharvest/pkg/types"
)

// DefaultFeatureSeparator joins feature bullets into the description.
const DefaultFeatureSeparator = " | "

// FieldExtractor reads one field from a parsed item page.
type FieldExtractor struct {
	name   string
	config config.FieldConfig
}

// NewFieldExtractor creates a new field extractor for a specific field
func NewFieldExtractor(name string, cfg config.FieldConfig) *FieldExtractor {
	return &FieldExtractor{name: name, config: cfg}
}

// Text returns the trimmed text of the first match. found is false when the
// selector is empty or matches nothing.
func (fe *FieldExtractor) Text(doc *goquery.Document) (value string, found bool) {
	if fe.config.Selector == "" {
		return "", false
	}
	sel := doc.Find(fe.config.Selector)
	if sel.Length() == 0 {
		return "", false
	}
	return strings.TrimSpace(sel.First().Text()), true
}

// List returns the trimmed text of every match.
func (fe *FieldExtractor) List(doc *goquery.Document) (values []string, found bool) {
	if fe.config.Selector == "" {
		return nil, false
	}
	sel := doc.Find(fe.config.Selector)
	if sel.Length() == 0 {
		return nil, false
	}
	sel.Each(func(_ int, s *goquery.Selection) {
		values = append(values, strings.TrimSpace(s.Text()))
	})
	return values, true
}

// Extractor turns item page content into a RawCandidate.
type Extractor struct {
	name        *FieldExtractor
	price       *FieldExtractor
	rating      *FieldExtractor
	ratingCount *FieldExtractor
	features    *FieldExtractor
	separator   string
}

// NewExtractor creates an extractor from the item selectors.
func NewExtractor(sel config.ItemSelectors) *Extractor {
	sep := sel.FeatureSeparator
	if sep == "" {
		sep = DefaultFeatureSeparator
	}
	return &Extractor{
		name:        NewFieldExtractor("name", sel.Name),
		price:       NewFieldExtractor("price", sel.Price),
		rating:      NewFieldExtractor("rating", sel.Rating),
		ratingCount: NewFieldExtractor("rating_count", sel.RatingCount),
		features:    NewFieldExtractor("features", sel.Features),
		separator:   sep,
	}
}

// Extract parses content fetched from address. A required field that is
// missing yields ErrStructureMismatch and no partial candidate.
func (e *Extractor) Extract(content []byte, address string) (types.RawCandidate, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(content))
	if err != nil {
		return types.RawCandidate{}, fmt.Errorf("failed to parse HTML: %w", err)
	}

	candidate := types.RawCandidate{SourceAddress: address}

	for _, f := range []struct {
		fe  *FieldExtractor
		dst *string
	}{
		{e.name, &candidate.Name},
		{e.price, &candidate.Price},
		{e.rating, &candidate.Rating},
		{e.ratingCount, &candidate.RatingCount},
	} {
		value, found := f.fe.Text(doc)
		if !found && f.fe.config.Required {
			return types.RawCandidate{}, fmt.Errorf("%w: %s (%s)", ErrStructureMismatch, f.fe.name, f.fe.config.Selector)
		}
		*f.dst = value
	}

	features, found := e.features.List(doc)
	if !found && e.features.config.Required {
		return types.RawCandidate{}, fmt.Errorf("%w: %s (%s)", ErrStructureMismatch, e.features.name, e.features.config.Selector)
	}
	candidate.Description = strings.Join(features, e.separator)

	return candidate, nil
}

package normalizer

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"newsingest/internal/models"
)

// Validation errors, ordered by the rule that produced them. Only the first
// violated rule is reported.
var (
	ErrMissingTitle       = errors.New("title must be non-empty")
	ErrMalformedURL       = errors.New("url must be a well-formed absolute URL")
	ErrMalformedPublished = errors.New("published_at must be a valid timestamp")
)

// Validator checks canonical articles against the wire contract. It never
// mutates its input.
type Validator struct{}

// NewValidator creates a new validator instance.
func NewValidator() *Validator {
	return &Validator{}
}

// Validate returns nil when the article satisfies the contract, or the
// first violated rule. Validating an already-valid article is a no-op.
func (v *Validator) Validate(a models.Article) error {
	if strings.TrimSpace(a.Title) == "" {
		return ErrMissingTitle
	}

	u, err := url.Parse(a.URL)
	if err != nil || !u.IsAbs() || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%w: %q", ErrMalformedURL, a.URL)
	}

	if a.PublishedAt.IsZero() {
		return ErrMalformedPublished
	}

	return nil
}

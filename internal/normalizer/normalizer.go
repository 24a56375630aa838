// Package normalizer converts raw search results into canonical articles and
// enforces the invariants consumers rely on.
package normalizer

import (
	"fmt"
	"time"

	"newsingest/internal/models"
	"newsingest/pkg/utils"
)

// Skip reasons for records the normalizer cannot turn into a canonical
// article. Malformed input is dropped, never retried: it will not become
// well-formed on a later attempt.
const (
	ReasonMissingTitle       = "missing_title"
	ReasonMissingURL         = "missing_url"
	ReasonMissingPublishedAt = "missing_or_malformed_published_at"
)

// SkippedRecordError reports why a raw article was dropped during
// normalization. The caller drops the record and moves on; the surrounding
// batch is unaffected.
type SkippedRecordError struct {
	Reason string
	Detail string
}

func (e *SkippedRecordError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("record skipped: %s", e.Reason)
	}

	return fmt.Sprintf("record skipped: %s (%s)", e.Reason, e.Detail)
}

// removedMarker is what the search API substitutes for content it has
// redacted.
const removedMarker = "[Removed]"

// Normalizer converts RawArticles into canonical Articles.
type Normalizer struct {
	now func() time.Time
}

// NewNormalizer creates a normalizer stamping IngestedAt from the wall clock.
func NewNormalizer() *Normalizer {
	return &Normalizer{now: time.Now}
}

// NewNormalizerWithClock creates a normalizer with an injected clock
// (useful for testing).
func NewNormalizerWithClock(now func() time.Time) *Normalizer {
	return &Normalizer{now: now}
}

// Normalize converts a raw article into its canonical form. Optional fields
// map to defined defaults; a missing required field (title, url,
// published_at) returns a *SkippedRecordError instead of a malformed
// Article. IngestedAt is stamped at invocation time, so two articles
// normalized in the same tick may carry different values.
func (n *Normalizer) Normalize(raw models.RawArticle) (models.Article, error) {
	title := utils.NormalizeWhitespace(raw.Title)
	if title == "" {
		return models.Article{}, &SkippedRecordError{Reason: ReasonMissingTitle}
	}

	url := utils.NormalizeWhitespace(raw.URL)
	if url == "" {
		return models.Article{}, &SkippedRecordError{Reason: ReasonMissingURL, Detail: title}
	}

	publishedAt, err := time.Parse(time.RFC3339, raw.PublishedAt)
	if err != nil {
		return models.Article{}, &SkippedRecordError{
			Reason: ReasonMissingPublishedAt,
			Detail: fmt.Sprintf("%q", raw.PublishedAt),
		}
	}

	sourceName := utils.NormalizeWhitespace(raw.Source.Name)

	content := raw.Content
	if content == "" || content == removedMarker {
		content = raw.Description
	}

	var author *string
	if a := utils.NormalizeWhitespace(raw.Author); a != "" {
		author = &a
	}

	return models.Article{
		ID:          models.ArticleID(sourceName, title, url),
		SourceName:  sourceName,
		Title:       title,
		Content:     utils.NormalizeWhitespace(content),
		URL:         url,
		Author:      author,
		PublishedAt: publishedAt,
		IngestedAt:  n.now().UTC(),
	}, nil
}

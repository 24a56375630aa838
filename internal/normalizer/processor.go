package normalizer

import (
	"errors"

	"newsingest/internal/logger"
	"newsingest/internal/models"
)

// Result summarizes one tick's normalization pass.
type Result struct {
	Articles []models.Article
	Reasons  map[string]int
	Skipped  int
	Invalid  int
}

// Processor runs raw articles through normalization and validation,
// tallying everything it drops.
type Processor struct {
	normalizer *Normalizer
	validator  *Validator
	logger     *logger.Logger
}

// NewProcessor creates a new processor instance.
func NewProcessor(log *logger.Logger) *Processor {
	return &Processor{
		normalizer: NewNormalizer(),
		validator:  NewValidator(),
		logger:     log,
	}
}

// NewProcessorWithDeps creates a processor with injected dependencies.
func NewProcessorWithDeps(n *Normalizer, v *Validator, log *logger.Logger) *Processor {
	return &Processor{normalizer: n, validator: v, logger: log}
}

// Process normalizes and validates every raw article. A record that fails
// either stage is counted and dropped; the rest of the input is unaffected.
func (p *Processor) Process(raws []models.RawArticle) Result {
	result := Result{
		Articles: make([]models.Article, 0, len(raws)),
		Reasons:  make(map[string]int),
	}

	for _, raw := range raws {
		article, err := p.normalizer.Normalize(raw)
		if err != nil {
			var skip *SkippedRecordError
			if errors.As(err, &skip) {
				result.Reasons[skip.Reason]++
			} else {
				result.Reasons["unknown"]++
			}

			result.Skipped++
			p.logger.Debug("record skipped during normalization", "error", err, "url", raw.URL)

			continue
		}

		if err := p.validator.Validate(article); err != nil {
			result.Invalid++
			result.Reasons[validationReason(err)]++
			p.logger.Debug("record failed validation", "error", err, "article_id", article.ID)

			continue
		}

		result.Articles = append(result.Articles, article)
	}

	return result
}

// validationReason maps a validator error onto a short tally key.
func validationReason(err error) string {
	switch {
	case errors.Is(err, ErrMissingTitle):
		return ReasonMissingTitle
	case errors.Is(err, ErrMalformedURL):
		return "malformed_url"
	case errors.Is(err, ErrMalformedPublished):
		return ReasonMissingPublishedAt
	default:
		return "invalid"
	}
}

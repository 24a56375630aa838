package normalizer

import (
	"testing"

	"newsingest/internal/logger"
	"newsingest/internal/models"
)

func TestNewProcessor(t *testing.T) {
	p := NewProcessor(logger.New("error"))
	if p == nil {
		t.Fatal("NewProcessor returned nil")
	}
}

func TestProcessor_Process_MixedBatch(t *testing.T) {
	p := NewProcessor(logger.New("error"))

	noTitle := validRaw()
	noTitle.Title = ""

	noURL := validRaw()
	noURL.URL = ""

	badDate := validRaw()
	badDate.PublishedAt = "not-a-date"

	other := validRaw()
	other.Title = "Another story"

	raws := []models.RawArticle{validRaw(), noTitle, noURL, badDate, other}

	result := p.Process(raws)

	if len(result.Articles) != 2 {
		t.Fatalf("valid articles = %d, want 2", len(result.Articles))
	}

	if result.Skipped != 3 {
		t.Errorf("Skipped = %d, want 3", result.Skipped)
	}

	if result.Invalid != 0 {
		t.Errorf("Invalid = %d, want 0", result.Invalid)
	}

	if result.Reasons[ReasonMissingTitle] != 1 {
		t.Errorf("missing_title tally = %d, want 1", result.Reasons[ReasonMissingTitle])
	}

	if result.Reasons[ReasonMissingURL] != 1 {
		t.Errorf("missing_url tally = %d, want 1", result.Reasons[ReasonMissingURL])
	}

	if result.Reasons[ReasonMissingPublishedAt] != 1 {
		t.Errorf("published_at tally = %d, want 1", result.Reasons[ReasonMissingPublishedAt])
	}

	// A dropped record must not disturb the survivors' order.
	if result.Articles[0].Title != "A" || result.Articles[1].Title != "Another story" {
		t.Errorf("surviving articles out of order: %+v", result.Articles)
	}
}

func TestProcessor_Process_Empty(t *testing.T) {
	p := NewProcessor(logger.New("error"))

	result := p.Process(nil)
	if len(result.Articles) != 0 || result.Skipped != 0 || result.Invalid != 0 {
		t.Errorf("unexpected result for empty input: %+v", result)
	}
}

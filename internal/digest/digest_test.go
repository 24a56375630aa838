package digest

import (
	"strings"
	"testing"
	"time"

	"newsingest/internal/models"
)

func article(title, source string) models.Article {
	return models.Article{
		Title:       title,
		SourceName:  source,
		PublishedAt: time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC),
	}
}

func TestRender_Empty(t *testing.T) {
	if got := Render(nil, 20); got != "(no articles)" {
		t.Errorf("Render(nil) = %q", got)
	}
}

func TestRender_Rows(t *testing.T) {
	out := Render([]models.Article{
		article("First story", "BBC"),
		article("Second story", "Reuters"),
	}, 20)

	for _, want := range []string{"First story", "Second story", "BBC", "Reuters", "2026-03-01T09:30:00Z"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}

	if lines := strings.Split(out, "\n"); len(lines) != 4 {
		t.Errorf("lines = %d, want header + separator + 2 rows", len(lines))
	}
}

func TestRender_TruncatesLongTitles(t *testing.T) {
	long := strings.Repeat("verylongtitle ", 10)
	out := Render([]models.Article{article(long, "BBC")}, 20)

	if strings.Contains(out, long) {
		t.Error("long title was not truncated")
	}

	if !strings.Contains(out, "...") {
		t.Error("truncated title missing ellipsis")
	}
}

func TestRender_Overflow(t *testing.T) {
	articles := make([]models.Article, 25)
	for i := range articles {
		articles[i] = article("story", "BBC")
	}

	out := Render(articles, 20)

	if !strings.Contains(out, "... and 5 more") {
		t.Errorf("output missing overflow line:\n%s", out)
	}

	// Header, separator, 20 rows, overflow.
	if lines := strings.Split(out, "\n"); len(lines) != 23 {
		t.Errorf("lines = %d, want 23", len(lines))
	}
}

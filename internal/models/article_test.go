package models

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestArticleID_Deterministic(t *testing.T) {
	first := ArticleID("BBC", "A", "http://x")
	second := ArticleID("BBC", "A", "http://x")

	if first != second {
		t.Errorf("ArticleID not deterministic: %s != %s", first, second)
	}

	if len(first) != 64 {
		t.Errorf("ArticleID length = %d, want 64", len(first))
	}

	want := "d6101c95d6122ab1ba4874e90501f09142039c159f8cf7f40b09effe085a6c18"
	if first != want {
		t.Errorf("ArticleID = %s, want %s", first, want)
	}
}

func TestArticleID_IgnoresNonIdentityFields(t *testing.T) {
	// Two fetches of the same logical article differ in author and
	// timestamps; the id must not.
	a := ArticleID("Reuters", "Go 1.26 released", "https://example.com/go")
	b := ArticleID("Reuters", "Go 1.26 released", "https://example.com/go")

	if a != b {
		t.Error("same identity tuple produced different ids")
	}

	if a != "485aa807a262e7ece30cee041c58c17c2c407ff0a5726a8fa49c6dc098348ceb" {
		t.Errorf("unexpected id %s", a)
	}
}

func TestArticleID_SeparatorPreventsCollisions(t *testing.T) {
	// Without a separator ("ab","c") and ("a","bc") would collide.
	if ArticleID("ab", "c", "u") == ArticleID("a", "bc", "u") {
		t.Error("shifted field boundaries must not collide")
	}
}

func TestArticle_WireFormat(t *testing.T) {
	author := "Jane Doe"
	a := Article{
		ID:          ArticleID("", "Title", "https://a.example/b"),
		SourceName:  "BBC",
		Title:       "Title",
		Content:     "body",
		URL:         "https://a.example/b",
		Author:      &author,
		PublishedAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		IngestedAt:  time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}

	data, err := json.Marshal(a)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	payload := string(data)
	for _, field := range []string{
		`"article_id"`, `"source_name"`, `"title"`, `"content"`,
		`"url"`, `"author"`, `"published_at"`, `"ingested_at"`,
	} {
		if !strings.Contains(payload, field) {
			t.Errorf("wire record missing field %s: %s", field, payload)
		}
	}

	if !strings.Contains(payload, `"published_at":"2026-01-01T00:00:00Z"`) {
		t.Errorf("published_at not ISO-8601: %s", payload)
	}
}

func TestArticle_WireFormat_NullAuthor(t *testing.T) {
	data, err := json.Marshal(Article{})
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	if !strings.Contains(string(data), `"author":null`) {
		t.Errorf("absent author must serialize as null: %s", data)
	}
}

func TestNewPollWindow(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	w := NewPollWindow(now, 24*time.Hour)

	if !w.To.Equal(now) {
		t.Errorf("To = %v, want %v", w.To, now)
	}

	if !w.From.Equal(now.Add(-24 * time.Hour)) {
		t.Errorf("From = %v, want %v", w.From, now.Add(-24*time.Hour))
	}
}

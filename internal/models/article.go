// Package models defines the data structures flowing through the ingestion pipeline.
package models

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// idSeparator joins the identity fields before hashing. The ASCII unit
// separator cannot appear in a source name, title, or URL, so the
// concatenation is unambiguous.
const idSeparator = "\x1f"

// RawSource is the nested source object of a raw search result.
type RawSource struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// RawArticle is a single article as returned by the search API. Any field
// may be missing, empty, or malformed.
type RawArticle struct {
	Source      RawSource `json:"source"`
	Author      string    `json:"author"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	URL         string    `json:"url"`
	PublishedAt string    `json:"publishedAt"`
	Content     string    `json:"content"`
}

// Article is the canonical, validated representation of a news item. Field
// names and types are the durable wire contract consumers read from the
// stream; do not rename them.
type Article struct {
	ID          string    `json:"article_id"`
	SourceName  string    `json:"source_name"`
	Title       string    `json:"title"`
	Content     string    `json:"content"`
	URL         string    `json:"url"`
	Author      *string   `json:"author"`
	PublishedAt time.Time `json:"published_at"`
	IngestedAt  time.Time `json:"ingested_at"`
}

// ArticleID derives the deterministic identifier for an article. It is a
// pure function of (sourceName, title, url): the same logical article always
// hashes to the same id, which is what makes re-ingestion across poll
// windows safe downstream.
func ArticleID(sourceName, title, url string) string {
	sum := sha256.Sum256([]byte(sourceName + idSeparator + title + idSeparator + url))
	return hex.EncodeToString(sum[:])
}

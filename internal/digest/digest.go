// Package digest renders a compact console summary of a tick's articles.
package digest

import (
	"strconv"
	"strings"
	"time"

	"github.com/mattn/go-runewidth"

	"newsingest/internal/models"
)

// Column widths for the rendered table. Title gets the bulk; source names
// longer than the column are cut with an ellipsis.
const (
	titleWidth  = 48
	sourceWidth = 18
)

// Render returns a fixed-width table of up to max articles, one row per
// article, with an overflow line when the input is longer. Widths are
// measured in display cells so CJK titles keep the columns aligned.
func Render(articles []models.Article, max int) string {
	if len(articles) == 0 {
		return "(no articles)"
	}

	shown := articles
	if len(shown) > max {
		shown = shown[:max]
	}

	var b strings.Builder

	b.WriteString(row("TITLE", "SOURCE", "PUBLISHED"))
	b.WriteString("\n")
	b.WriteString(row(strings.Repeat("-", titleWidth), strings.Repeat("-", sourceWidth), "---------"))

	for _, a := range shown {
		b.WriteString("\n")
		b.WriteString(row(a.Title, a.SourceName, a.PublishedAt.UTC().Format(time.RFC3339)))
	}

	if rest := len(articles) - len(shown); rest > 0 {
		b.WriteString("\n")
		b.WriteString(strings.Repeat(" ", 2))
		b.WriteString("... and ")
		b.WriteString(strconv.Itoa(rest))
		b.WriteString(" more")
	}

	return b.String()
}

func row(title, source, published string) string {
	return "  " +
		runewidth.FillRight(runewidth.Truncate(title, titleWidth, "..."), titleWidth) +
		"  " +
		runewidth.FillRight(runewidth.Truncate(source, sourceWidth, "..."), sourceWidth) +
		"  " +
		published
}


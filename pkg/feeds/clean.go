package feeds

import (
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
)

const maxDescriptionChars = 2000

// CleanDescription strips HTML markup from a feed item description,
// collapses whitespace and bounds the length. Government feeds embed
// anything from plain text to full table layouts in the description field.
func CleanDescription(raw string) string {
	text := raw

	if strings.Contains(raw, "<") {
		doc, err := goquery.NewDocumentFromReader(strings.NewReader(raw))
		if err == nil {
			doc.Find("script, style").Remove()
			text = doc.Text()
		}
	}

	text = strings.Join(strings.Fields(text), " ")

	if len(text) > maxDescriptionChars {
		// Back up to a rune boundary so the cut never splits a multi-byte
		// character from a non-English feed.
		cut := maxDescriptionChars
		for cut > 0 && !utf8.RuneStart(text[cut]) {
			cut--
		}
		text = text[:cut]
	}

	return text
}

package sources

import (
	"bytes"
	"strings"

	"github.com/brentwatch/brent-news-bot/internal/models"
	"github.com/mmcdole/gofeed"
	"golang.org/x/net/html"
)

// ParseFeed turns a feed payload into raw entries according to the source's dialect
func ParseFeed(body []byte, src FeedSource) ([]models.RawEntry, error) {
	if src.Dialect == DialectAuto {
		return parseWithGofeed(body, src)
	}

	tree, err := ParseTree(body)
	if err != nil {
		if pe, ok := err.(*ParseError); ok {
			pe.Source = src.Name
		}
		return nil, err
	}
	return ExtractEntries(tree, src)
}

// ExtractEntries applies the source's paths to a parsed tree. Entries without
// a title or a date are dropped; a missing entries path is a ParseError.
func ExtractEntries(tree *Node, src FeedSource) ([]models.RawEntry, error) {
	entries := Lookup(tree, src.EntriesPath)
	if entries == nil {
		return nil, &ParseError{Source: src.Name, Reason: "no entries at " + src.EntriesPath}
	}

	var out []models.RawEntry
	for _, item := range AsList(entries) {
		title := CleanText(Text(Lookup(item, src.TitlePath)))
		date := strings.TrimSpace(Text(Lookup(item, src.DatePath)))
		if title == "" || date == "" {
			continue
		}
		var link string
		if src.LinkPath != "" {
			link = strings.TrimSpace(Text(Lookup(item, src.LinkPath)))
		}
		out = append(out, models.RawEntry{Title: title, Published: date, Link: link})
	}
	return out, nil
}

func parseWithGofeed(body []byte, src FeedSource) ([]models.RawEntry, error) {
	feed, err := gofeed.NewParser().Parse(bytes.NewReader(body))
	if err != nil {
		return nil, &ParseError{Source: src.Name, Reason: "unrecognized feed", Err: err}
	}

	var out []models.RawEntry
	for _, item := range feed.Items {
		if item == nil {
			continue
		}
		title := CleanText(item.Title)
		date := item.Published
		if date == "" {
			date = item.Updated
		}
		if title == "" || date == "" {
			continue
		}
		out = append(out, models.RawEntry{Title: title, Published: strings.TrimSpace(date), Link: item.Link})
	}
	return out, nil
}

// CleanText strips markup from a headline and collapses whitespace
func CleanText(s string) string {
	if !strings.ContainsAny(s, "<&") {
		return strings.Join(strings.Fields(s), " ")
	}

	var b strings.Builder
	z := html.NewTokenizer(strings.NewReader(s))
	for {
		switch z.Next() {
		case html.ErrorToken:
			return strings.Join(strings.Fields(b.String()), " ")
		case html.TextToken:
			b.Write(z.Text())
			b.WriteByte(' ')
		}
	}
}

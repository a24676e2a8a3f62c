// Package feed renders item lists as RSS 2.0 documents.
//
// Escaping is total: every text field sourced from upstream or caller
// input is entity-escaped before it reaches markup, either by the XML
// encoder (element text, attributes) or by Escape (HTML fragments
// embedded in CDATA descriptions).
package feed

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/docstrack/docstrack/internal/provider"
)

// maxBodyRunes bounds the PR body embedded in a description so one
// item cannot blow up the document size.
const maxBodyRunes = 1000

// Item is one feed entry.
type Item struct {
	Title     string
	Link      string
	GUID      string
	PermaLink bool
	Published time.Time
	// Description is an HTML fragment destined for a CDATA section.
	// Untrusted text inside it must already be escaped.
	Description string
}

// Channel is the feed-level metadata.
type Channel struct {
	Title       string
	Link        string
	Description string
	// TTL is the refresh hint in seconds, kept consistent with the
	// cache freshness directive of the response carrying the feed.
	TTL int
}

type rssDoc struct {
	XMLName xml.Name   `xml:"rss"`
	Version string     `xml:"version,attr"`
	Channel rssChannel `xml:"channel"`
}

type rssChannel struct {
	Title         string    `xml:"title"`
	Link          string    `xml:"link"`
	Description   string    `xml:"description"`
	LastBuildDate string    `xml:"lastBuildDate"`
	TTL           int       `xml:"ttl"`
	Items         []rssItem `xml:"item"`
}

type rssItem struct {
	Title       string  `xml:"title"`
	Link        string  `xml:"link"`
	GUID        rssGUID `xml:"guid"`
	PubDate     string  `xml:"pubDate"`
	Description cdata   `xml:"description"`
}

type rssGUID struct {
	IsPermaLink bool   `xml:"isPermaLink,attr"`
	Value       string `xml:",chardata"`
}

type cdata struct {
	Text string `xml:",cdata"`
}

var escaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&apos;",
)

// Escape entity-escapes untrusted text for embedding in markup.
func Escape(s string) string {
	return escaper.Replace(s)
}

// Render produces the RSS 2.0 document for the channel and items.
// Rendering never fails once given a valid item list. Items with a
// zero publish time fall back to now; the stored event time is never
// overwritten.
func Render(ch Channel, items []Item, now time.Time) []byte {
	doc := rssDoc{
		Version: "2.0",
		Channel: rssChannel{
			Title:         ch.Title,
			Link:          ch.Link,
			Description:   ch.Description,
			LastBuildDate: now.UTC().Format(http.TimeFormat),
			TTL:           ch.TTL,
		},
	}
	for _, it := range items {
		pub := it.Published
		if pub.IsZero() {
			pub = now
		}
		doc.Channel.Items = append(doc.Channel.Items, rssItem{
			Title:       it.Title,
			Link:        it.Link,
			GUID:        rssGUID{IsPermaLink: it.PermaLink, Value: it.GUID},
			PubDate:     pub.UTC().Format(http.TimeFormat),
			Description: cdata{Text: it.Description},
		})
	}

	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")
	// Encoding a static, fully-owned structure cannot fail.
	_ = enc.Encode(doc)
	buf.WriteByte('\n')
	return buf.Bytes()
}

// FromPullRequest maps a merged PR to a feed entry pointing at its
// changed-files view. The guid is the provider's opaque item id, not
// a permalink.
func FromPullRequest(pr provider.PullRequest) Item {
	filesURL := pr.HTMLURL + "/files"
	title := pr.Title
	if title == "" {
		title = "Merged PR"
	}
	return Item{
		Title:       title,
		Link:        filesURL,
		GUID:        strconv.FormatInt(pr.ID, 10),
		PermaLink:   false,
		Published:   pr.EffectiveTime(),
		Description: prDescription(pr, filesURL),
	}
}

// PullRequestItems maps a merged item list in order.
func PullRequestItems(prs []provider.PullRequest) []Item {
	items := make([]Item, len(prs))
	for i, pr := range prs {
		items[i] = FromPullRequest(pr)
	}
	return items
}

func prDescription(pr provider.PullRequest, filesURL string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "<p>%s</p>", Escape(truncate(pr.Body, maxBodyRunes)))
	fmt.Fprintf(&sb, "<p><strong>Author:</strong> %s</p>", Escape(pr.Author()))
	fmt.Fprintf(&sb, `<p><a href="%s" target="_blank" rel="noreferrer">View changed files →</a></p>`, Escape(filesURL))
	return sb.String()
}

// truncate bounds s to n runes, appending an ellipsis when text was
// cut.
func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "…"
}

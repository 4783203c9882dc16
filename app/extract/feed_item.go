package extract

import (
	"html"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/microcosm-cc/bluemonday"
	"github.com/mmcdole/gofeed"

	"github.com/lysyi3m/news-comb/app/article"
)

// Structural tags that survive feed content cleaning.
var feedContentPolicy = func() *bluemonday.Policy {
	p := bluemonday.NewPolicy()
	p.AllowElements("p", "ul", "ol", "li", "table", "tr", "td", "th",
		"blockquote", "strong", "em", "b", "i", "br")
	return p
}()

var textPolicy = bluemonday.StrictPolicy()

var imageExtension = regexp.MustCompile(`(?i)\.(jpe?g|png|webp)$`)

// FromFeedItem builds an article record from a retained feed item, without
// fetching the article page. Full-content tags are preferred over the
// description. A nil record with a nil error means the item is missing a
// title, link or content after cleaning — nothing worth saving, which is
// distinct from a hard failure.
func (e *Extractor) FromFeedItem(item *gofeed.Item) (*article.Record, error) {
	if item == nil {
		return nil, nil
	}

	title := cleanText(item.Title)
	summary := cleanText(item.Description)

	raw := item.Content
	if raw == "" {
		raw = item.Custom["full-text"]
	}
	if raw == "" {
		raw = item.Description
	}
	content := cleanFeedContent(raw)

	if title == "" || item.Link == "" || content == "" {
		return nil, nil
	}

	publishedAt := time.Now().UTC()
	if item.PublishedParsed != nil {
		publishedAt = *item.PublishedParsed
	}

	return &article.Record{
		Title:       title,
		Content:     content,
		Summary:     summary,
		Image:       resolveFeedImage(item, raw),
		URL:         item.Link,
		PublishedAt: publishedAt,
	}, nil
}

// resolveFeedImage picks a representative image: an enclosure with an image
// extension, else a media:content image, else the first <img> inside the
// content, else the default placeholder.
func resolveFeedImage(item *gofeed.Item, rawContent string) string {
	for _, enclosure := range item.Enclosures {
		if enclosure != nil && imageExtension.MatchString(enclosure.URL) {
			return enclosure.URL
		}
	}

	if media, ok := item.Extensions["media"]; ok {
		for _, ext := range media["content"] {
			mediaType := ext.Attrs["type"]
			mediaURL := ext.Attrs["url"]
			if mediaURL == "" {
				continue
			}
			if strings.HasPrefix(mediaType, "image") || imageExtension.MatchString(mediaURL) {
				return mediaURL
			}
		}
	}

	if img := firstImage(rawContent); img != "" {
		return img
	}

	return article.DefaultImage
}

func firstImage(rawHTML string) string {
	if rawHTML == "" {
		return ""
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return ""
	}

	src, _ := doc.Find("img").First().Attr("src")
	return src
}

// cleanFeedContent reduces feed HTML to the structural allow-list and
// normalizes whitespace.
func cleanFeedContent(raw string) string {
	if raw == "" {
		return ""
	}

	cleaned := feedContentPolicy.Sanitize(html.UnescapeString(raw))
	cleaned = newlineRuns.ReplaceAllString(cleaned, "\n")
	cleaned = whitespaceRuns.ReplaceAllString(cleaned, " ")

	return strings.TrimSpace(cleaned)
}

func cleanText(raw string) string {
	return strings.TrimSpace(html.UnescapeString(textPolicy.Sanitize(raw)))
}

package feed

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/lysyi3m/rss-feeds/app/cfg"
	"github.com/lysyi3m/rss-feeds/app/database"
)

// Generator renders a subscription's stored posts as an RSS 2.0 document.
type Generator struct{}

func NewGenerator() *Generator {
	return &Generator{}
}

func (g *Generator) Run(sub database.Subscription, posts []database.Post) (string, error) {
	var buf bytes.Buffer

	buf.WriteString(`<?xml version="1.0" encoding="UTF-8"?>`)
	buf.WriteString("\n")
	buf.WriteString(`<rss version="2.0" xmlns:atom="http://www.w3.org/2005/Atom">`)
	buf.WriteString("\n  <channel>\n")

	g.writeElement(&buf, "title", sub.Name, 4)

	var sources []string
	for _, link := range sub.Links {
		sources = append(sources, link.URL)
	}
	if len(sources) > 0 {
		g.writeElement(&buf, "link", sources[0], 4)
	}
	g.writeElement(&buf, "description", fmt.Sprintf("Posts collected from %s", strings.Join(sources, ", ")), 4)

	var selfLink string
	if cfg.Get().BaseUrl != "" {
		selfLink = fmt.Sprintf("%s/api/subscriptions/%d/rss", strings.TrimRight(cfg.Get().BaseUrl, "/"), sub.ID)
	} else {
		selfLink = fmt.Sprintf("http://localhost:%s/api/subscriptions/%d/rss", cfg.Get().Port, sub.ID)
	}
	buf.WriteString(fmt.Sprintf("    <atom:link href=\"%s\" rel=\"self\" type=\"application/rss+xml\" />\n",
		html.EscapeString(selfLink)))

	lastBuildDate := time.Now().In(time.Local)
	if len(posts) > 0 {
		lastBuildDate = posts[0].AddDate.In(time.Local)
	}

	g.writeElement(&buf, "lastBuildDate", lastBuildDate.Format(time.RFC1123Z), 4)
	g.writeElement(&buf, "generator", fmt.Sprintf("RSS-Feeds/%s", cfg.Get().Version), 4)

	if sub.FavIcon != "" {
		buf.WriteString("    <image>\n")
		g.writeElement(&buf, "url", sub.FavIcon, 6)
		g.writeElement(&buf, "title", sub.Name, 6)
		if len(sources) > 0 {
			g.writeElement(&buf, "link", sources[0], 6)
		}
		buf.WriteString("    </image>\n")
	}

	for _, post := range posts {
		g.writeItem(&buf, post)
	}

	buf.WriteString("  </channel>\n</rss>")

	return buf.String(), nil
}

func (g *Generator) writeItem(buf *bytes.Buffer, post database.Post) {
	buf.WriteString("    <item>\n")

	if post.URL != "" {
		buf.WriteString(fmt.Sprintf("      <guid isPermaLink=\"%t\">", isURL(post.URL)))
		xml.EscapeText(buf, []byte(post.URL))
		buf.WriteString("</guid>\n")
	}

	g.writeElement(buf, "title", post.Title, 6)
	g.writeElement(buf, "link", post.URL, 6)
	g.writeElement(buf, "pubDate", post.PostDate.In(time.Local).Format(time.RFC1123Z), 6)

	buf.WriteString("    </item>\n")
}

func (g *Generator) writeElement(buf *bytes.Buffer, tag, content string, indent int) {
	if content == "" {
		return
	}

	for i := 0; i < indent; i++ {
		buf.WriteByte(' ')
	}

	buf.WriteString("<")
	buf.WriteString(tag)
	buf.WriteString(">")
	xml.EscapeText(buf, []byte(content))
	buf.WriteString("</")
	buf.WriteString(tag)
	buf.WriteString(">\n")
}

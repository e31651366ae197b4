package feed

import (
	"time"
)

// DefaultFetchLimit caps the number of items returned when the caller passes no limit.
const DefaultFetchLimit = 100

// FetchedPost is a normalized feed item that has not been persisted yet.
type FetchedPost struct {
	Title    string
	URL      string
	PostDate time.Time
}

type Metadata struct {
	Title       string
	Link        string
	Description string
	ImageURL    string
	Language    string
	ItemCount   int
}

// Seed file types

type SeedConfig struct {
	Name      string   // Derived from filename (without .yml extension)
	User      string   `yaml:"user"`
	URL       string   `yaml:"url"`
	URLs      []string `yaml:"urls"`
	PostLimit int      `yaml:"post_limit"`
	RegExp    string   `yaml:"reg_exp"`
	FavIcon   string   `yaml:"fav_icon"`
}

// Links returns the configured feed URLs, url first.
func (c *SeedConfig) Links() []string {
	links := make([]string, 0, len(c.URLs)+1)
	if c.URL != "" {
		links = append(links, c.URL)
	}
	for _, u := range c.URLs {
		if u != "" && u != c.URL {
			links = append(links, u)
		}
	}
	return links
}

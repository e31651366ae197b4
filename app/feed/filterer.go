package feed

import (
	"fmt"
	"regexp"
	"sync"
)

// Filterer matches post titles against subscription link expressions.
// An expression matches when it matches at the start of the title; an
// empty expression matches everything. Compiled expressions are cached.
type Filterer struct {
	mu    sync.RWMutex
	cache map[string]*regexp.Regexp
}

func NewFilterer() *Filterer {
	return &Filterer{
		cache: make(map[string]*regexp.Regexp),
	}
}

// Validate reports whether expr compiles.
func (f *Filterer) Validate(expr string) error {
	_, err := f.compile(expr)
	return err
}

// Run returns the posts whose titles match expr, preserving order.
func (f *Filterer) Run(posts []FetchedPost, expr string) ([]FetchedPost, error) {
	if expr == "" {
		return posts, nil
	}

	re, err := f.compile(expr)
	if err != nil {
		return nil, err
	}

	filtered := make([]FetchedPost, 0, len(posts))
	for _, post := range posts {
		if re.MatchString(post.Title) {
			filtered = append(filtered, post)
		}
	}
	return filtered, nil
}

func (f *Filterer) compile(expr string) (*regexp.Regexp, error) {
	f.mu.RLock()
	re, ok := f.cache[expr]
	f.mu.RUnlock()
	if ok {
		return re, nil
	}

	re, err := regexp.Compile(`^(?:` + expr + `)`)
	if err != nil {
		return nil, fmt.Errorf("invalid filter expression %q: %w", expr, err)
	}

	f.mu.Lock()
	f.cache[expr] = re
	f.mu.Unlock()

	return re, nil
}

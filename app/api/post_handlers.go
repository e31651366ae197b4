package api

import (
	"math"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/lysyi3m/rss-feeds/app/database"
)

const (
	defaultPageSize = 50
	maxPageSize     = 500
)

// ListPosts returns a page of the user's posts, newest first.
//
// Query parameters: feed (subscription id), new (true: unread only, false:
// read only), mentioned, current (unix seconds; posts added since then),
// page and page_size.
func (h *Handler) ListPosts(c *gin.Context) {
	filter := database.PostFilter{UserName: currentUser(c)}

	if v := c.Query("feed"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			detail(c, http.StatusBadRequest, "feed must be a subscription id")
			return
		}
		filter.SubscriptionID = &id
	}

	if v := c.Query("new"); v != "" {
		unread, err := strconv.ParseBool(v)
		if err != nil {
			detail(c, http.StatusBadRequest, "new must be a boolean")
			return
		}
		view := !unread
		filter.View = &view
	}

	if v := c.Query("mentioned"); v != "" {
		mentioned, err := strconv.ParseBool(v)
		if err != nil {
			detail(c, http.StatusBadRequest, "mentioned must be a boolean")
			return
		}
		filter.Mentioned = &mentioned
	}

	if v := c.Query("current"); v != "" {
		seconds, err := strconv.ParseFloat(v, 64)
		if err != nil || math.IsNaN(seconds) || math.IsInf(seconds, 0) {
			detail(c, http.StatusBadRequest, "current must be a unix timestamp")
			return
		}
		whole, frac := math.Modf(seconds)
		since := time.Unix(int64(whole), int64(frac*1e9)).UTC()
		until := time.Now().UTC()
		filter.AddedSince = &since
		filter.AddedUntil = &until
	}

	page, err := positiveQueryInt(c, "page", 1)
	if err != nil {
		detail(c, http.StatusNotFound, "Invalid page.")
		return
	}
	pageSize, err := positiveQueryInt(c, "page_size", defaultPageSize)
	if err != nil {
		detail(c, http.StatusBadRequest, "page_size must be a positive integer")
		return
	}
	pageSize = min(pageSize, maxPageSize)

	filter.Limit = pageSize
	filter.Offset = (page - 1) * pageSize

	posts, total, err := h.postRepo.ListPosts(c.Request.Context(), filter)
	if err != nil {
		respondError(c, "list_posts", err)
		return
	}
	if page > 1 && filter.Offset >= total {
		detail(c, http.StatusNotFound, "Invalid page.")
		return
	}

	results := make([]postResponse, 0, len(posts))
	for _, p := range posts {
		results = append(results, newPostResponse(p))
	}

	resp := pageResponse{Count: total, Results: results}
	if filter.Offset+len(posts) < total {
		next := pageURL(c, page+1)
		resp.Next = &next
	}
	if page > 1 {
		previous := pageURL(c, page-1)
		resp.Previous = &previous
	}

	c.JSON(http.StatusOK, resp)
}

func (h *Handler) GetPost(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	post, err := h.postRepo.GetPost(c.Request.Context(), currentUser(c), id)
	if err != nil {
		respondError(c, "get_post", err)
		return
	}
	c.JSON(http.StatusOK, newPostResponse(*post))
}

// UpdatePost changes the view and mentioned flags. Other fields are
// owned by synchronization and cannot be edited.
func (h *Handler) UpdatePost(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req postRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		detail(c, http.StatusBadRequest, err.Error())
		return
	}
	if c.Request.Method == http.MethodPut && req.View == nil && req.Mentioned == nil {
		detail(c, http.StatusBadRequest, "view or mentioned is required")
		return
	}

	post, err := h.postRepo.UpdatePostFlags(c.Request.Context(), currentUser(c), id, req.View, req.Mentioned)
	if err != nil {
		respondError(c, "update_post", err)
		return
	}
	c.JSON(http.StatusOK, newPostResponse(*post))
}

func positiveQueryInt(c *gin.Context, name string, fallback int) (int, error) {
	v := c.Query(name)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, err
	}
	if n < 1 {
		return 0, strconv.ErrRange
	}
	return n, nil
}

// pageURL rebuilds the request URL with a different page number.
func pageURL(c *gin.Context, page int) string {
	scheme := "http"
	if c.Request.TLS != nil {
		scheme = "https"
	}
	if proto := c.GetHeader("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	}

	query := c.Request.URL.Query()
	if page == 1 {
		query.Del("page")
	} else {
		query.Set("page", strconv.Itoa(page))
	}

	u := url.URL{
		Scheme:   scheme,
		Host:     c.Request.Host,
		Path:     c.Request.URL.Path,
		RawQuery: query.Encode(),
	}
	return u.String()
}

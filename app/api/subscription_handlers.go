package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/lysyi3m/rss-feeds/app/database"
)

func (h *Handler) ListSubscriptions(c *gin.Context) {
	subs, err := h.subscriptionRepo.ListSubscriptions(c.Request.Context(), currentUser(c))
	if err != nil {
		respondError(c, "list_subscriptions", err)
		return
	}

	results := make([]subscriptionResponse, 0, len(subs))
	for _, s := range subs {
		results = append(results, newSubscriptionResponse(s))
	}
	c.JSON(http.StatusOK, results)
}

func (h *Handler) GetSubscription(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	sub, err := h.subscriptionRepo.GetSubscription(c.Request.Context(), currentUser(c), id)
	if err != nil {
		respondError(c, "get_subscription", err)
		return
	}
	c.JSON(http.StatusOK, newSubscriptionResponse(*sub))
}

// CreateSubscription appends a subscription with its first link.
func (h *Handler) CreateSubscription(c *gin.Context) {
	var req subscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		detail(c, http.StatusBadRequest, err.Error())
		return
	}

	if req.Name == nil || strings.TrimSpace(*req.Name) == "" {
		detail(c, http.StatusBadRequest, "name is required")
		return
	}
	if strings.TrimSpace(req.URL) == "" {
		detail(c, http.StatusBadRequest, "url is required")
		return
	}
	if err := h.filterer.Validate(req.RegExp); err != nil {
		detail(c, http.StatusBadRequest, err.Error())
		return
	}

	sub := database.Subscription{
		UserName:  currentUser(c),
		Name:      strings.TrimSpace(*req.Name),
		PostLimit: h.defaultPostLimit,
	}
	if req.PostLimit != nil {
		sub.PostLimit = *req.PostLimit
	}
	if sub.PostLimit <= 0 {
		detail(c, http.StatusBadRequest, "postLimit must be positive")
		return
	}
	if req.FavIcon != nil {
		sub.FavIcon = *req.FavIcon
	}

	created, err := h.subscriptionRepo.CreateSubscription(c.Request.Context(), sub, req.URL, req.RegExp)
	if err != nil {
		respondError(c, "create_subscription", err)
		return
	}
	c.JSON(http.StatusCreated, newSubscriptionResponse(*created))
}

// UpdateSubscription serves both PUT and PATCH; PUT requires every field.
func (h *Handler) UpdateSubscription(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req subscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		detail(c, http.StatusBadRequest, err.Error())
		return
	}
	if c.Request.Method == http.MethodPut && (req.Name == nil || req.PostLimit == nil) {
		detail(c, http.StatusBadRequest, "name and postLimit are required")
		return
	}

	ctx := c.Request.Context()
	sub, err := h.subscriptionRepo.GetSubscription(ctx, currentUser(c), id)
	if err != nil {
		respondError(c, "get_subscription", err)
		return
	}

	if req.Name != nil {
		if strings.TrimSpace(*req.Name) == "" {
			detail(c, http.StatusBadRequest, "name may not be blank")
			return
		}
		sub.Name = strings.TrimSpace(*req.Name)
	}
	if req.PostLimit != nil {
		if *req.PostLimit <= 0 {
			detail(c, http.StatusBadRequest, "postLimit must be positive")
			return
		}
		sub.PostLimit = *req.PostLimit
	}
	if req.FavIcon != nil {
		sub.FavIcon = *req.FavIcon
	}

	updated, err := h.subscriptionRepo.UpdateSubscription(ctx, *sub)
	if err != nil {
		respondError(c, "update_subscription", err)
		return
	}
	c.JSON(http.StatusOK, newSubscriptionResponse(*updated))
}

func (h *Handler) DeleteSubscription(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	if err := h.subscriptionRepo.DeleteSubscription(c.Request.Context(), currentUser(c), id); err != nil {
		respondError(c, "delete_subscription", err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) ReorderSubscriptions(c *gin.Context) {
	req, ok := bindReorder(c)
	if !ok {
		return
	}

	err := h.subscriptionRepo.ReorderSubscriptions(c.Request.Context(), currentUser(c), *req.OldPosition, *req.NewPosition)
	if err != nil {
		respondError(c, "reorder_subscriptions", err)
		return
	}
	c.Status(http.StatusNoContent)
}

// GetSubscriptionRSS renders the subscription's stored posts as RSS 2.0.
func (h *Handler) GetSubscriptionRSS(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	ctx := c.Request.Context()
	sub, err := h.subscriptionRepo.GetSubscription(ctx, currentUser(c), id)
	if err != nil {
		respondError(c, "get_subscription", err)
		return
	}

	posts, err := h.postRepo.ListAllPosts(ctx, sub.ID, max(sub.PostLimit, sub.UnreadCount))
	if err != nil {
		respondError(c, "list_posts", err)
		return
	}

	rss, err := h.generator.Run(*sub, posts)
	if err != nil {
		respondError(c, "generate_rss", err)
		return
	}

	c.Header("Content-Type", "application/xml; charset=utf-8")
	c.Header("X-Feed-Items", strconv.Itoa(len(posts)))
	c.String(http.StatusOK, rss)
}

// ownedSubscription resolves :id for the current user, responding on failure.
func (h *Handler) ownedSubscription(c *gin.Context) (*database.Subscription, bool) {
	id, ok := pathID(c, "id")
	if !ok {
		return nil, false
	}

	sub, err := h.subscriptionRepo.GetSubscription(c.Request.Context(), currentUser(c), id)
	if err != nil {
		respondError(c, "get_subscription", err)
		return nil, false
	}
	return sub, true
}

func (h *Handler) ListLinks(c *gin.Context) {
	sub, ok := h.ownedSubscription(c)
	if !ok {
		return
	}

	links := make([]linkResponse, 0, len(sub.Links))
	for _, l := range sub.Links {
		links = append(links, newLinkResponse(l))
	}
	c.JSON(http.StatusOK, links)
}

func (h *Handler) GetLink(c *gin.Context) {
	sub, ok := h.ownedSubscription(c)
	if !ok {
		return
	}
	position, err := strconv.Atoi(c.Param("position"))
	if err != nil {
		detail(c, http.StatusNotFound, "Not found.")
		return
	}

	link, err := h.linkRepo.GetSubscriptionLink(c.Request.Context(), sub.ID, position)
	if err != nil {
		respondError(c, "get_link", err)
		return
	}
	c.JSON(http.StatusOK, newLinkResponse(*link))
}

// CreateLink appends a link to the subscription, creating the source link if needed.
func (h *Handler) CreateLink(c *gin.Context) {
	sub, ok := h.ownedSubscription(c)
	if !ok {
		return
	}

	req, ok := h.bindLink(c)
	if !ok {
		return
	}

	link, err := h.linkRepo.CreateSubscriptionLink(c.Request.Context(), sub.ID, req.Link, req.RegExp)
	if err != nil {
		respondError(c, "create_link", err)
		return
	}
	c.JSON(http.StatusCreated, newLinkResponse(*link))
}

func (h *Handler) UpdateLink(c *gin.Context) {
	sub, ok := h.ownedSubscription(c)
	if !ok {
		return
	}
	position, err := strconv.Atoi(c.Param("position"))
	if err != nil {
		detail(c, http.StatusNotFound, "Not found.")
		return
	}

	req, ok := h.bindLink(c)
	if !ok {
		return
	}

	link, err := h.linkRepo.UpdateSubscriptionLink(c.Request.Context(), sub.ID, position, req.Link, req.RegExp)
	if err != nil {
		respondError(c, "update_link", err)
		return
	}
	c.JSON(http.StatusOK, newLinkResponse(*link))
}

func (h *Handler) DeleteLink(c *gin.Context) {
	sub, ok := h.ownedSubscription(c)
	if !ok {
		return
	}
	position, err := strconv.Atoi(c.Param("position"))
	if err != nil {
		detail(c, http.StatusNotFound, "Not found.")
		return
	}

	if err := h.linkRepo.DeleteSubscriptionLink(c.Request.Context(), sub.ID, position); err != nil {
		respondError(c, "delete_link", err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) ReorderLinks(c *gin.Context) {
	sub, ok := h.ownedSubscription(c)
	if !ok {
		return
	}
	req, ok := bindReorder(c)
	if !ok {
		return
	}

	err := h.linkRepo.ReorderSubscriptionLinks(c.Request.Context(), sub.ID, *req.OldPosition, *req.NewPosition)
	if err != nil {
		respondError(c, "reorder_links", err)
		return
	}
	c.Status(http.StatusNoContent)
}

func bindReorder(c *gin.Context) (reorderRequest, bool) {
	var req reorderRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.OldPosition == nil || req.NewPosition == nil ||
		*req.OldPosition < 0 || *req.NewPosition < 0 {
		detail(c, http.StatusBadRequest, "Wrongly specified positions.")
		return req, false
	}
	return req, true
}

func (h *Handler) bindLink(c *gin.Context) (linkRequest, bool) {
	var req linkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		detail(c, http.StatusBadRequest, err.Error())
		return req, false
	}
	if strings.TrimSpace(req.Link) == "" {
		detail(c, http.StatusBadRequest, "link is required")
		return req, false
	}
	if err := h.filterer.Validate(req.RegExp); err != nil {
		detail(c, http.StatusBadRequest, err.Error())
		return req, false
	}
	return req, true
}

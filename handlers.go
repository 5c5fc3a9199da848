package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/cartel-sh/box/actions"
	"github.com/cartel-sh/box/hydration"
	"github.com/cartel-sh/box/lens"
	"github.com/cartel-sh/box/models"
	"github.com/cartel-sh/box/notifications"
	"github.com/cartel-sh/box/wallet"
)

func (s *Server) runApiServer() error {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.CORS())
	e.Use(middleware.Recover())
	e.Use(s.observeOps)

	e.GET("/health", s.handleHealth)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	api := e.Group("/api")
	api.GET("/posts", s.handleGetPosts, s.optionalAuth)
	api.POST("/posts", s.handleCreatePost, s.requireAuth)
	api.DELETE("/posts", s.handleDeletePost, s.requireAuth)
	api.GET("/posts/:id", s.handleGetPost, s.optionalAuth)
	api.GET("/posts/:id/comments", s.handleGetPostComments, s.optionalAuth)
	api.POST("/posts/:id/collect", s.handleCollectPost, s.requireAuth)
	api.GET("/groups/:id", s.handleGetGroup, s.optionalAuth)
	api.GET("/user/:id", s.handleGetUser, s.optionalAuth)
	api.GET("/user/:id/following", s.handleGetFollowing, s.optionalAuth)
	api.POST("/user/:id/unmute", s.handleUnmuteAccount, s.requireAuth)
	api.GET("/notifications", s.handleGetNotifications, s.requireAuth)
	api.POST("/notifications/read", s.handleMarkNotificationsRead, s.requireAuth)
	api.GET("/settings/collect", s.handleGetCollectSettings, s.requireAuth)
	api.PUT("/settings/collect", s.handlePutCollectSettings, s.requireAuth)
	api.GET("/wallet/socket", s.handleWalletSocket, s.requireAuth)

	return e.Start(s.listenAddr)
}

func (s *Server) observeOps(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()
		err := next(c)
		handleOpHist.WithLabelValues(c.Request().Method, c.Path()).
			Observe(float64(time.Since(start).Milliseconds()))
		return err
	}
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// sessionClient returns a protocol client authenticated as the request's
// session account.
func (s *Server) sessionClient(sess *session) *lens.HTTPClient {
	return s.lens.WithSession(sess.token)
}

// hydratorFor returns the viewer-specific hydrator when the request is
// authenticated, otherwise the shared anonymous one.
func (s *Server) hydratorFor(c echo.Context) *hydration.Hydrator {
	if sess := getSession(c); sess != nil {
		return hydration.NewViewerHydrator(s.sessionClient(sess))
	}
	return s.hydrator
}

func (s *Server) handleGetPosts(c echo.Context) error {
	ctx := c.Request().Context()

	page, err := s.hydratorFor(c).FeedPage(ctx, hydration.FeedQuery{
		Type:      c.QueryParam("type"),
		Address:   c.QueryParam("address"),
		Cursor:    c.QueryParam("cursor"),
		MediaOnly: c.QueryParam("media") == "true",
	})
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]any{
			"error": fmt.Sprintf("Failed to fetch feed: %s", err),
		})
	}

	return c.JSON(http.StatusOK, page)
}

func (s *Server) handleCreatePost(c echo.Context) error {
	ctx := c.Request().Context()
	sess := getSession(c)

	var metadata map[string]any
	if err := c.Bind(&metadata); err != nil || metadata == nil {
		return c.JSON(http.StatusBadRequest, map[string]any{
			"error": "Bad Request: Invalid JSON body",
		})
	}

	collectCfg, err := s.store.LoadCollectConfig(sess.account)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]any{
			"error": fmt.Sprintf("Failed to load collect settings: %s", err),
		})
	}

	receipt, err := s.publisher.CreatePost(ctx, s.sessionClient(sess), metadata, c.QueryParam("replyingTo"), &collectCfg)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]any{
			"error": fmt.Sprintf("Failed to create a post: %s", err),
		})
	}

	return c.JSON(http.StatusOK, receipt)
}

func (s *Server) handleDeletePost(c echo.Context) error {
	ctx := c.Request().Context()
	sess := getSession(c)

	id := c.QueryParam("id")
	if id == "" {
		return c.JSON(http.StatusBadRequest, map[string]any{"error": "Missing id"})
	}

	if err := actions.DeletePost(ctx, s.sessionClient(sess), id); err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]any{
			"error": fmt.Sprintf("Failed to delete post: %s", err),
		})
	}

	return c.JSON(http.StatusOK, map[string]any{"success": true})
}

func (s *Server) handleGetPost(c echo.Context) error {
	ctx := c.Request().Context()

	raw, err := s.hydratorFor(c).Item(ctx, c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]any{
			"error": "Failed to fetch post",
		})
	}

	return c.JSON(http.StatusOK, map[string]any{
		"lensPost":   raw,
		"nativePost": hydration.ItemToPost(raw),
	})
}

func (s *Server) handleGetPostComments(c echo.Context) error {
	ctx := c.Request().Context()

	page, err := s.hydratorFor(c).Comments(ctx, c.Param("id"), c.QueryParam("cursor"))
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]any{
			"error": fmt.Sprintf("Failed to fetch comments: %s", err),
		})
	}

	return c.JSON(http.StatusOK, page)
}

func (s *Server) handleCollectPost(c echo.Context) error {
	ctx := c.Request().Context()
	sess := getSession(c)

	id := c.Param("id")
	if id == "" {
		return c.JSON(http.StatusBadRequest, map[string]any{"error": "Missing publication id"})
	}

	client := s.sessionClient(sess)

	raw, err := client.FetchPost(ctx, id)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]any{
			"error": "Failed to fetch post", "result": false,
		})
	}

	post := hydration.ItemToPost(raw)
	if post == nil {
		return c.JSON(http.StatusInternalServerError, map[string]any{
			"error": "Failed to fetch post", "result": false,
		})
	}

	collector := s.collectorFor(sess.account, client)
	outcome, err := collector.Collect(ctx, post)
	if err != nil {
		return s.collectError(c, post, err)
	}

	return c.JSON(http.StatusOK, map[string]any{
		"result":         true,
		"txHash":         outcome.TxHash,
		"gasless":        outcome.Gasless,
		"collectDetails": post.CollectDetails,
	})
}

// collectError maps orchestrator failures onto the API's status codes and
// recovery flags.
func (s *Server) collectError(c echo.Context, post *models.Post, err error) error {
	var validation *actions.ValidationError
	if errors.As(err, &validation) {
		return c.JSON(http.StatusBadRequest, map[string]any{
			"error": validation.Reason, "result": false,
		})
	}

	var balance *actions.InsufficientBalanceError
	if errors.As(err, &balance) {
		// The UI keeps the modal open and offers the add-funds
		// affordance for this case.
		return c.JSON(http.StatusBadRequest, map[string]any{
			"error":               "Insufficient balance",
			"result":              false,
			"insufficientBalance": true,
			"collectDetails":      post.CollectDetails,
		})
	}

	switch {
	case errors.Is(err, actions.ErrNotAuthenticated):
		return c.JSON(http.StatusUnauthorized, map[string]any{
			"error": "Not authenticated", "result": false,
		})
	case errors.Is(err, actions.ErrWalletUnavailable):
		return c.JSON(http.StatusNotImplemented, map[string]any{
			"error":                "Connect a wallet to collect this post",
			"result":               false,
			"needsWalletSignature": true,
			"collectDetails":       post.CollectDetails,
		})
	case errors.Is(err, actions.ErrChainSwitchRejected):
		return c.JSON(http.StatusBadRequest, map[string]any{
			"error": "Network switch was rejected", "result": false,
		})
	case errors.Is(err, actions.ErrChainNotRegistered):
		return c.JSON(http.StatusBadRequest, map[string]any{
			"error": "The required network is not registered in your wallet", "result": false,
		})
	}

	return c.JSON(http.StatusInternalServerError, map[string]any{
		"error": err.Error(), "result": false,
	})
}

// collectorFor returns the account's collect orchestrator. An in-flight
// collector is kept so its state stays observable; otherwise a fresh one
// is built with the current session client and wallet bridge.
func (s *Server) collectorFor(account string, client lens.SessionClient) *actions.Collector {
	s.collLk.Lock()
	defer s.collLk.Unlock()

	if existing, ok := s.collectors[account]; ok && existing.Collecting() {
		return existing
	}

	var w wallet.Wallet
	if bridge := s.wallets.Get(account); bridge != nil {
		w = bridge
	}

	collector := actions.NewCollector(client, w, s.chainID)
	s.collectors[account] = collector
	return collector
}

func (s *Server) handleGetGroup(c echo.Context) error {
	ctx := c.Request().Context()

	group, err := s.hydratorFor(c).Group(ctx, c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]any{
			"error": "Failed to fetch group",
		})
	}

	return c.JSON(http.StatusOK, group)
}

func (s *Server) handleGetUser(c echo.Context) error {
	ctx := c.Request().Context()

	user, err := s.hydratorFor(c).User(ctx, c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]any{
			"error": "Failed to fetch account",
		})
	}

	return c.JSON(http.StatusOK, user)
}

func (s *Server) handleGetFollowing(c echo.Context) error {
	ctx := c.Request().Context()

	page, err := s.hydratorFor(c).Following(ctx, c.Param("id"), c.QueryParam("cursor"))
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]any{
			"error": "Failed to fetch following",
		})
	}

	return c.JSON(http.StatusOK, page)
}

func (s *Server) handleUnmuteAccount(c echo.Context) error {
	ctx := c.Request().Context()
	sess := getSession(c)

	id := c.Param("id")
	if id == "" {
		return c.JSON(http.StatusBadRequest, map[string]any{"error": "id is required"})
	}

	if err := actions.UnmuteAccount(ctx, s.sessionClient(sess), id); err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]any{"error": err.Error()})
	}

	return c.JSON(http.StatusOK, map[string]any{"success": true})
}

// tokenFor returns the most recent session token seen for the account.
func (s *Server) tokenFor(account string) string {
	s.aggLk.Lock()
	defer s.aggLk.Unlock()
	return s.tokens[account]
}

// aggregatorFor returns the account's notification aggregator, creating
// it and starting its poll loop on first use. The aggregator outlives any
// single session, so its fetch reads the account's current token instead
// of capturing the one it was created with.
func (s *Server) aggregatorFor(sess *session) *notifications.Aggregator {
	s.aggLk.Lock()
	defer s.aggLk.Unlock()

	s.tokens[sess.account] = sess.token

	if agg, ok := s.aggregators[sess.account]; ok {
		return agg
	}

	account := sess.account
	fetch := func(ctx context.Context) ([]models.Notification, error) {
		items, err := hydration.Notifications(ctx, s.lens.WithSession(s.tokenFor(account)))
		if err != nil {
			var apiErr *lens.APIError
			if errors.As(err, &apiErr) && apiErr.Status == http.StatusUnauthorized {
				// Expired or missing session is a normal state, not a
				// failure.
				return []models.Notification{}, nil
			}
			return nil, err
		}
		return items, nil
	}

	agg := notifications.NewAggregator(sess.account, fetch, s.store, s.notifInterval)
	s.aggregators[sess.account] = agg
	go agg.Run(s.bgCtx)

	return agg
}

func (s *Server) handleGetNotifications(c echo.Context) error {
	ctx := c.Request().Context()
	sess := getSession(c)

	agg := s.aggregatorFor(sess)
	if err := agg.Refresh(ctx); err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]any{
			"error": fmt.Sprintf("Failed to fetch notifications: %s", err),
		})
	}

	return c.JSON(http.StatusOK, map[string]any{
		"data":     agg.Notifications(),
		"newCount": agg.NewCount(),
	})
}

func (s *Server) handleMarkNotificationsRead(c echo.Context) error {
	sess := getSession(c)

	if err := s.aggregatorFor(sess).MarkAllRead(); err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]any{
			"error": fmt.Sprintf("Failed to persist watermark: %s", err),
		})
	}

	return c.JSON(http.StatusOK, map[string]any{"success": true})
}

func (s *Server) handleGetCollectSettings(c echo.Context) error {
	sess := getSession(c)

	cfg, err := s.store.LoadCollectConfig(sess.account)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]any{"error": err.Error()})
	}

	return c.JSON(http.StatusOK, cfg)
}

func (s *Server) handlePutCollectSettings(c echo.Context) error {
	sess := getSession(c)

	var cfg models.CollectConfig
	if err := c.Bind(&cfg); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]any{
			"error": "Bad Request: Invalid JSON body",
		})
	}

	if err := s.store.StoreCollectConfig(sess.account, cfg); err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]any{"error": err.Error()})
	}

	return c.JSON(http.StatusOK, cfg)
}

func (s *Server) handleWalletSocket(c echo.Context) error {
	sess := getSession(c)

	conn, err := s.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}

	s.wallets.Attach(sess.account, wallet.NewBridge(conn))
	return nil
}

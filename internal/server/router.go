package server

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/vintrylabs/vintry-api/internal/auth"
	"github.com/vintrylabs/vintry-api/internal/imagesearch"
	"github.com/vintrylabs/vintry-api/internal/oauth"
	"github.com/vintrylabs/vintry-api/internal/records"
	"github.com/vintrylabs/vintry-api/internal/share"
	"github.com/vintrylabs/vintry-api/internal/users"
)

const (
	userIDContextKey    = "vintry_user_id"
	userEmailContextKey = "vintry_user_email"
	stateCookieName     = "vintry_oauth_state"
	stateCookieMaxAge   = 10 * time.Minute
	apiKeyScheme        = "vin_"
	syncBodyLimitBytes  = 10 << 20
)

var (
	errMissingSessionIssuer = errors.New("session issuer dependency required")
	errMissingUserService   = errors.New("user service dependency required")
	errMissingRecordService = errors.New("record service dependency required")
)

// OAuthProvider is the boundary to the external identity provider.
type OAuthProvider interface {
	LoginURL(state string) string
	Exchange(ctx context.Context, code string) (oauth.Identity, error)
}

// Dependencies wires the services consumed by the HTTP layer.
type Dependencies struct {
	SessionIssuer   *auth.SessionIssuer
	OAuth           OAuthProvider
	Users           *users.Service
	Records         *records.Service
	ImageSearcher   imagesearch.Searcher
	PublicBaseURL   string
	AuthSuccessPath string
	AuthFailurePath string
	Logger          *zap.Logger
}

// NewHTTPHandler builds the gin router with all routes registered.
func NewHTTPHandler(deps Dependencies) (http.Handler, error) {
	if deps.SessionIssuer == nil {
		return nil, errMissingSessionIssuer
	}
	if deps.Users == nil {
		return nil, errMissingUserService
	}
	if deps.Records == nil {
		return nil, errMissingRecordService
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowHeaders: []string{"Authorization", "Content-Type"},
		MaxAge:       12 * time.Hour,
	}))
	router.SetHTMLTemplate(share.PageTemplate())

	handler := &httpHandler{
		sessions:        deps.SessionIssuer,
		oauth:           deps.OAuth,
		users:           deps.Users,
		records:         deps.Records,
		images:          deps.ImageSearcher,
		publicBaseURL:   strings.TrimRight(deps.PublicBaseURL, "/"),
		authSuccessPath: deps.AuthSuccessPath,
		authFailurePath: deps.AuthFailurePath,
		logger:          logger,
	}

	router.GET("/healthz", handler.handleHealth)
	router.GET("/auth/google/login", handler.handleGoogleLogin)
	router.GET("/auth/google/callback", handler.handleGoogleCallback)
	router.POST("/auth/logout", handler.handleLogout)
	router.GET("/share/:token", handler.handleShareView)

	api := router.Group("/api")
	api.Use(handler.authorizeRequest)
	api.GET("/me", handler.handleMe)
	api.POST("/keys", handler.handleIssueAPIKey)

	api.GET("/bottles", handler.makeListHandler(records.KindBottle))
	api.POST("/bottles", handler.makeUpsertHandler(records.KindBottle))
	api.PUT("/bottles/:id", handler.makeUpsertHandler(records.KindBottle))
	api.DELETE("/bottles/:id", handler.makeDeleteHandler(records.KindBottle))

	api.GET("/tastings", handler.makeListHandler(records.KindTasting))
	api.POST("/tastings", handler.makeUpsertHandler(records.KindTasting))
	api.PUT("/tastings/:id", handler.makeUpsertHandler(records.KindTasting))
	api.DELETE("/tastings/:id", handler.makeDeleteHandler(records.KindTasting))

	api.POST("/sync/upload", handler.handleSyncUpload)
	api.GET("/sync/download", handler.handleSyncDownload)

	api.POST("/share/generate", handler.handleShareGenerate)
	api.PUT("/share/settings", handler.handleShareSettings)
	api.GET("/share/status", handler.handleShareStatus)
	api.DELETE("/share/revoke", handler.handleShareRevoke)

	api.GET("/images/search", handler.handleImageSearch)

	return router, nil
}

type httpHandler struct {
	sessions        *auth.SessionIssuer
	oauth           OAuthProvider
	users           *users.Service
	records         *records.Service
	images          imagesearch.Searcher
	publicBaseURL   string
	authSuccessPath string
	authFailurePath string
	logger          *zap.Logger
}

func (h *httpHandler) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// authorizeRequest resolves the caller identity from the session cookie,
// a bearer session token, or a bearer API key, in that order.
func (h *httpHandler) authorizeRequest(c *gin.Context) {
	credential, err := h.sessions.CredentialFromRequest(c.Request)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	if strings.HasPrefix(credential, apiKeyScheme) {
		user, err := h.users.AuthenticateAPIKey(c.Request.Context(), credential)
		if err != nil {
			h.logger.Warn("api key authentication failed", zap.Error(err))
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		c.Set(userIDContextKey, user.ID)
		c.Set(userEmailContextKey, user.Email)
		c.Next()
		return
	}

	claims, err := h.sessions.Verify(credential)
	if err != nil {
		if errors.Is(err, auth.ErrExpiredCredential) {
			h.logger.Info("session credential expired")
		} else {
			h.logger.Warn("session verification failed", zap.Error(err))
		}
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	c.Set(userIDContextKey, claims.UserID)
	c.Set(userEmailContextKey, claims.Email)
	c.Next()
}

func (h *httpHandler) currentUserID(c *gin.Context) (string, bool) {
	userID := c.GetString(userIDContextKey)
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return "", false
	}
	return userID, true
}

func (h *httpHandler) shareURL(token string) string {
	return h.publicBaseURL + "/share/" + token
}

// respondServiceError maps a records-layer failure onto the HTTP taxonomy:
// malformed input is the caller's fault, everything else is generic 500
// with the detail kept server-side.
func (h *httpHandler) respondServiceError(c *gin.Context, err error) {
	if errors.Is(err, records.ErrInvalidPayload) || errors.Is(err, records.ErrInvalidRecordID) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_payload"})
		return
	}

	h.logger.Error("record operation failed", zap.Error(err))
	response := gin.H{"error": "storage_failed"}
	var serviceErr *records.ServiceError
	if errors.As(err, &serviceErr) {
		response["code"] = serviceErr.Code()
	}
	c.JSON(http.StatusInternalServerError, response)
}

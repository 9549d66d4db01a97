// Package httpapi exposes the vault services over HTTP. Handlers translate
// between HTTP and service calls; all business rules live in the services.
package httpapi

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/genovault/genovault/internal/common"
	"github.com/genovault/genovault/internal/logging"
	"github.com/genovault/genovault/internal/server/auth"
	sc "github.com/genovault/genovault/internal/server/config"
	"github.com/genovault/genovault/internal/server/services"
)

// principalKey is the gin context key holding the authenticated profile id.
const principalKey = "profile_id"

type API struct {
	ingest    *services.IngestService
	retrieve  *services.RetrieveService
	grants    *services.GrantService
	files     *services.FileService
	analytics *services.AnalyticsService
	config    *sc.Config
	logger    logging.Logger
}

func NewAPI(ingest *services.IngestService, retrieve *services.RetrieveService,
	grants *services.GrantService, files *services.FileService,
	analytics *services.AnalyticsService, cfg *sc.Config, logger logging.Logger) *API {
	return &API{
		ingest:    ingest,
		retrieve:  retrieve,
		grants:    grants,
		files:     files,
		analytics: analytics,
		config:    cfg,
		logger:    logger.With("module", "httpapi"),
	}
}

func (a *API) RegisterRoutes(router *gin.Engine) {
	router.Use(a.requestIDMiddleware())

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := router.Group("/api/v1")
	api.Use(a.authMiddleware())

	api.POST("/files", a.uploadFile)
	api.GET("/files", a.listFiles)
	api.GET("/files/:id", a.getFile)
	api.DELETE("/files/:id", a.deleteFile)
	api.GET("/files/:id/content", a.downloadFile)
	api.POST("/files/:id/anchor", a.reanchorFile)

	api.POST("/files/:id/grants", a.createGrant)
	api.GET("/files/:id/grants", a.listFileGrants)
	api.DELETE("/files/:id/grants/:granteeID", a.revokeGrant)
	api.GET("/grants", a.listHeldGrants)

	api.GET("/analytics/summary", a.analyticsSummary)
	api.GET("/audit", a.auditTrail)
}

// requestIDMiddleware tags every response with a request id so a client
// report can be matched to server logs. An id supplied by the caller is
// echoed back; otherwise a random one is generated.
func (a *API) requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Request-ID")
		if id == "" {
			generated, err := common.MakeRandHexString(8)
			if err != nil {
				a.logger.Warn(c.Request.Context(), "request id generation failed", "error", err)
			}
			id = generated
		}
		c.Header("X-Request-ID", id)
		c.Next()
	}
}

// authMiddleware validates the bearer token and stores the principal's
// profile id in the request context. The token only identifies the profile;
// tier checks happen in the services against the profile store.
func (a *API) authMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}

		profileID, err := auth.GetProfileIDFromToken(token, []byte(a.config.SecretKey))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		c.Set(principalKey, profileID)
		c.Next()
	}
}

func principal(c *gin.Context) string {
	return c.GetString(principalKey)
}

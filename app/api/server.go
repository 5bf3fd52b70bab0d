package api

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// NewServer creates a new HTTP server with all routes configured
func NewServer(handler *Handler, apiAccessKey string) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()

	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		Formatter: func(param gin.LogFormatterParams) string {
			return fmt.Sprintf("%s - [%s] \"%s %s %s %d %s \"%s\" %s\"\n",
				param.ClientIP,
				param.TimeStamp.Format(time.RFC3339),
				param.Method,
				param.Path,
				param.Request.Proto,
				param.StatusCode,
				param.Latency,
				param.Request.UserAgent(),
				param.ErrorMessage,
			)
		},
	}))

	r.Use(gin.Recovery())

	r.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization, X-API-Key")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	})

	setupRoutes(r, handler, apiAccessKey)

	return r
}

func setupRoutes(r *gin.Engine, handler *Handler, apiAccessKey string) {
	r.GET("/health", handler.GetHealth)
	r.GET("/stats", handler.GetStats)

	if apiAccessKey != "" {
		api := r.Group("/api")
		api.Use(authMiddleware(apiAccessKey))
		{
			api.GET("/settings", handler.APIGetSettings)
			api.PUT("/settings", handler.APIUpdateSettings)

			api.GET("/logs", handler.APIListLogs)
			api.POST("/logs/clear", handler.APIClearLogs)

			api.GET("/accounts", handler.APIListAccounts)
			api.DELETE("/accounts/:username", handler.APIDeleteAccount)
			api.POST("/accounts/:username/fetch", handler.APIFetchAccount)
			api.GET("/replacements", handler.APIListReplacements)
			api.POST("/tweets/:id/post", handler.APIPostTweet)

			api.POST("/actions/sync", handler.APISync)
			api.POST("/actions/process-due", handler.APIProcessDue)
			api.POST("/actions/schedule-batch", handler.APIScheduleBatch)
			api.GET("/actions/test-connection", handler.APITestConnection)
		}
		slog.Info("API endpoints enabled with authentication")
	} else {
		slog.Info("API endpoints disabled (API_ACCESS_KEY not set)")
	}

	r.GET("/", func(c *gin.Context) {
		endpoints := map[string]string{
			"health": "/health",
			"stats":  "/stats",
		}

		if apiAccessKey != "" {
			endpoints["settings"] = "/api/settings (GET, PUT)"
			endpoints["logs"] = "/api/logs?limit=<n>&status=<info|success|error>"
			endpoints["clear_logs"] = "/api/logs/clear (POST)"
			endpoints["sync"] = "/api/actions/sync (POST)"
			endpoints["accounts"] = "/api/accounts (GET), /api/accounts/<username> (DELETE)"
			endpoints["fetch_account"] = "/api/accounts/<username>/fetch (POST)"
			endpoints["replacements"] = "/api/replacements"
			endpoints["process_due"] = "/api/actions/process-due (POST)"
			endpoints["schedule_batch"] = "/api/actions/schedule-batch (POST)"
			endpoints["post_tweet"] = "/api/tweets/<id>/post (POST)"
			endpoints["test_connection"] = "/api/actions/test-connection"
		}

		c.JSON(http.StatusOK, gin.H{
			"service":     "Tweet Relay",
			"version":     handler.version(),
			"description": "Fetches tweets from monitored accounts, rewrites their links and reposts them on a schedule",
			"endpoints":   endpoints,
			"api_status": map[string]interface{}{
				"enabled":       apiAccessKey != "",
				"auth_required": apiAccessKey != "",
				"header":        "X-API-Key",
			},
		})
	})

	r.GET("/favicon.ico", func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
}

func authMiddleware(apiAccessKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		providedKey := c.GetHeader("X-API-Key")

		if providedKey == "" {
			authHeader := c.GetHeader("Authorization")
			if strings.HasPrefix(authHeader, "Bearer ") {
				providedKey = strings.TrimPrefix(authHeader, "Bearer ")
			}
		}

		if providedKey == "" {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error":   "API key required",
				"message": "Provide API key in X-API-Key header or Authorization: Bearer <key>",
			})
			c.Abort()
			return
		}

		if providedKey != apiAccessKey {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error":   "Invalid API key",
				"message": "The provided API key is not valid",
			})
			c.Abort()
			return
		}

		c.Next()
	}
}

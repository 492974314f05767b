package handler

import (
	"net/http"
	"time"

	"github.com/Raleighawesome/family-movies/internal/auth"
	"github.com/Raleighawesome/family-movies/internal/config"
	"github.com/Raleighawesome/family-movies/internal/middleware"
	"github.com/Raleighawesome/family-movies/internal/realtime"
	"github.com/Raleighawesome/family-movies/internal/service"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

// Dependencies is everything the router wires into handlers.
type Dependencies struct {
	Config      *config.Config
	Gate        *auth.Gate
	Households  *service.HouseholdService
	Preferences *service.PreferenceService
	Chat        *service.ChatService
	Feedback    *service.FeedbackService
	Hub         *realtime.Hub
	Log         logrus.FieldLogger
}

func NewRouter(deps Dependencies) *gin.Engine {
	cfg := deps.Config

	router := gin.New()
	router.Use(middleware.RequestID())
	router.Use(middleware.AccessLog(deps.Log))
	router.Use(middleware.Recovery(deps.Log))
	if cfg.Metrics.Enabled {
		router.Use(middleware.Metrics())
	}

	if len(cfg.CORS.AllowedOrigins) > 0 {
		corsConfig := cors.Config{
			AllowOrigins:     cfg.CORS.AllowedOrigins,
			AllowMethods:     cfg.CORS.AllowedMethods,
			AllowHeaders:     cfg.CORS.AllowedHeaders,
			ExposeHeaders:    cfg.CORS.ExposedHeaders,
			AllowCredentials: cfg.CORS.AllowCredentials,
			MaxAge:           time.Duration(cfg.CORS.MaxAge) * time.Second,
		}
		router.Use(cors.New(corsConfig))
	}

	router.Use(middleware.RateLimit(cfg.RateLimit))
	router.Use(auth.Middleware(deps.Gate, deps.Log))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "ok",
			"timestamp": time.Now().Unix(),
		})
	})

	// Behind the credential gate like everything except /health.
	if cfg.Metrics.Enabled {
		router.GET(cfg.Metrics.Path, gin.WrapH(promhttp.Handler()))
	}

	households := NewHouseholdHandler(deps.Households, deps.Log)
	preferences := NewPreferenceHandler(deps.Households, deps.Preferences, deps.Log)
	chat := NewChatHandler(deps.Households, deps.Chat, deps.Log)
	feedback := NewFeedbackHandler(deps.Households, deps.Feedback, deps.Log)
	events := NewEventsHandler(deps.Households, deps.Hub, cfg.CORS.AllowedOrigins, deps.Log)

	api := router.Group("/api")
	{
		api.GET("/household", households.GetHousehold)

		prefs := api.Group("/preferences")
		{
			prefs.GET("", preferences.ListFilters)
			prefs.PUT("/filters", preferences.UpdateFilter)
			prefs.POST("/filters", preferences.AddFilters)
			prefs.POST("/filters/remove", preferences.RemoveFilters)
			prefs.POST("/reset", preferences.ResetFilters)
		}

		api.POST("/chat", chat.Chat)
		api.GET("/chat/messages", chat.GetMessages)

		api.POST("/log-movie", feedback.LogMovie)
		api.POST("/recommendations/do-not-recommend", feedback.DoNotRecommend)

		api.GET("/events", events.Websocket)
		api.GET("/events/stream", events.Stream)
	}

	return router
}

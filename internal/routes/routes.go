package routes

import (
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"medibook/internal/config"
	"medibook/internal/handlers"
	"medibook/internal/logging"
	"medibook/internal/metrics"
	"medibook/internal/middleware"
	"medibook/internal/models"
	"medibook/internal/realtime"
	"medibook/internal/services"
	"medibook/internal/utils"
)

// Dependencies are the collaborators the HTTP surface is built from.
// Metrics, Gatherer and Hub are optional.
type Dependencies struct {
	Config       *config.Config
	Logger       *logging.Logger
	Metrics      *metrics.Metrics
	Gatherer     prometheus.Gatherer
	Doctors      *services.DoctorService
	Appointments *services.AppointmentService
	Auth         *services.AuthService
	Hub          *realtime.Hub
}

// NewRouter builds the gin engine with the shared middleware stack and all routes.
func NewRouter(deps Dependencies) *gin.Engine {
	if deps.Logger == nil {
		deps.Logger = logging.Default()
	}

	router := gin.New()
	router.HandleMethodNotAllowed = true
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger(deps.Logger))
	router.Use(middleware.Metrics(deps.Metrics))

	// Configure CORS
	corsConfig := cors.DefaultConfig()
	if origin := deps.Config.Origin; origin == "" || origin == "*" {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = []string{origin}
	}
	corsConfig.AllowCredentials = true
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization", middleware.RequestIDHeader}
	router.Use(cors.New(corsConfig))

	router.NoRoute(func(c *gin.Context) {
		utils.NotFound(c, "Route not found")
	})
	router.NoMethod(func(c *gin.Context) {
		utils.Error(c, http.StatusMethodNotAllowed, "Method not allowed")
	})

	SetupRoutes(router, deps)
	return router
}

// SetupRoutes configures the application routes.
func SetupRoutes(router *gin.Engine, deps Dependencies) {
	cfg := deps.Config

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(deps.Auth, cfg, deps.Logger)
	doctorHandler := handlers.NewDoctorHandler(deps.Doctors, deps.Logger)
	appointmentHandler := handlers.NewAppointmentHandler(deps.Appointments, deps.Logger, cfg.AllowAnonymous)

	// Appointment routes require a token unless anonymous access is enabled.
	appointmentAuth := middleware.AuthMiddleware(cfg)
	doctorSchedule := []gin.HandlerFunc{middleware.RoleAuthMiddleware(models.RoleDoctor), appointmentHandler.GetDoctorAppointments}
	if cfg.AllowAnonymous {
		appointmentAuth = middleware.OptionalAuthMiddleware(cfg)
		doctorSchedule = doctorSchedule[1:]
	}

	api := router.Group("/api")
	{
		authRoutes := api.Group("/auth")
		{
			authRoutes.POST("/signup", authHandler.Signup)
			authRoutes.POST("/login", authHandler.Login)
			authRoutes.POST("/refresh", authHandler.RefreshToken)
			authRoutes.POST("/logout", authHandler.Logout)
			authRoutes.GET("/me", middleware.AuthMiddleware(cfg), authHandler.Me)
		}

		api.GET("/doctors", doctorHandler.GetDoctors)

		appointmentRoutes := api.Group("/appointment")
		appointmentRoutes.Use(appointmentAuth)
		{
			appointmentRoutes.GET("", appointmentHandler.GetAppointments)
			appointmentRoutes.POST("", appointmentHandler.CreateAppointment)
			appointmentRoutes.GET("/user/:userId", appointmentHandler.GetUserAppointments)
			appointmentRoutes.GET("/doctor/:doctorId", doctorSchedule...)
			appointmentRoutes.PATCH("/:id/status", appointmentHandler.UpdateAppointmentStatus)
		}

		if deps.Hub != nil {
			api.GET("/ws", middleware.TokenFromQuery("token"), appointmentAuth, deps.Hub.ServeWS)
		}
	}

	if deps.Gatherer != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{})))
	}

	// Simple health check endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "UP"})
	})
}

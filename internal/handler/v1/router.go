package v1

import (
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/harborhealth/caregate/internal/config"
	"github.com/harborhealth/caregate/internal/domain"
	"github.com/harborhealth/caregate/internal/middleware"
	"github.com/harborhealth/caregate/internal/service"
	"github.com/harborhealth/caregate/pkg/auth"
	"github.com/harborhealth/caregate/pkg/metrics"
)

type RouterDeps struct {
	Config   *config.Config
	Log      *zap.Logger
	Metrics  *metrics.Collector
	Sessions *auth.SessionManager

	AuthSvc          *service.AuthService
	UserSvc          *service.UserService
	PatientSvc       *service.PatientService
	StaffSvc         *service.StaffService
	AppointmentSvc   *service.AppointmentService
	MedicalRecordSvc *service.MedicalRecordService
	PrescriptionSvc  *service.PrescriptionService
	MessageSvc       *service.MessageService
	AuditSvc         *service.AuditService
}

// NewRouter wires middleware and routes. Every /api/v1 route except
// register and login goes through Authenticate; per-operation decisions
// happen in the services.
func NewRouter(d RouterDeps) *gin.Engine {
	if d.Config.App.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.RequestLogger(d.Log))
	r.Use(middleware.Metrics(d.Metrics))
	r.Use(middleware.RateLimit(d.Config.RateLimit))
	r.Use(cors.New(cors.Config{
		AllowOrigins:     d.Config.CORS.AllowedOrigins,
		AllowMethods:     d.Config.CORS.AllowedMethods,
		AllowHeaders:     d.Config.CORS.AllowedHeaders,
		ExposeHeaders:    []string{middleware.RefreshedTokenHeader, "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           d.Config.CORS.MaxAge,
	}))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "version": d.Config.App.Version})
	})
	r.GET("/metrics", gin.WrapH(metrics.MetricsHandler()))

	authHandler := NewAuthHandler(d.AuthSvc, d.UserSvc)
	userHandler := NewUserHandler(d.UserSvc)
	patientHandler := NewPatientHandler(d.PatientSvc)
	staffHandler := NewStaffHandler(d.StaffSvc)
	apptHandler := NewAppointmentHandler(d.AppointmentSvc)
	recordHandler := NewMedicalRecordHandler(d.MedicalRecordSvc)
	rxHandler := NewPrescriptionHandler(d.PrescriptionSvc)
	msgHandler := NewMessageHandler(d.MessageSvc)
	auditHandler := NewAuditHandler(d.AuditSvc)

	api := r.Group("/api/v1")

	public := api.Group("/auth")
	public.Use(middleware.AuthRateLimit(d.Config.RateLimit))
	{
		public.POST("/register", authHandler.Register)
		public.POST("/login", authHandler.Login)
	}

	authed := api.Group("")
	authed.Use(middleware.Authenticate(d.Sessions, d.AuthSvc, d.Log))
	{
		authed.POST("/auth/logout", authHandler.Logout)
		authed.POST("/auth/change-password", authHandler.ChangePassword)

		users := authed.Group("/users")
		{
			users.POST("/staff", userHandler.CreateStaff)
			users.GET("", userHandler.List)
			users.GET("/:id", userHandler.Get)
			users.PATCH("/:id", userHandler.UpdateProfile)
			users.PUT("/:id/role", userHandler.ChangeRole)
			users.PUT("/:id/username", userHandler.ChangeUsername)
			users.DELETE("/:id", userHandler.Deactivate)
			users.DELETE("/:id/permanent", userHandler.HardDelete)
		}

		patients := authed.Group("/patients")
		{
			patients.POST("", patientHandler.Create)
			patients.GET("", patientHandler.List)
			patients.GET("/:id", patientHandler.Get)
			patients.PATCH("/:id", patientHandler.Update)
			patients.DELETE("/:id", patientHandler.Deactivate)
		}

		staffers := authed.Group("/staff")
		{
			staffers.GET("", staffHandler.List)
			staffers.GET("/:id", staffHandler.Get)
			staffers.PATCH("/:id", staffHandler.Update)
			staffers.DELETE("/:id", staffHandler.Deactivate)
		}

		appointments := authed.Group("/appointments")
		{
			appointments.POST("", apptHandler.Schedule)
			appointments.GET("", apptHandler.List)
			appointments.GET("/upcoming", apptHandler.Upcoming)
			appointments.GET("/:id", apptHandler.Get)
			appointments.PATCH("/:id", apptHandler.Reschedule)
			appointments.PUT("/:id/status", apptHandler.Transition)
			appointments.DELETE("/:id", apptHandler.Delete)
		}

		records := authed.Group("/medical-records")
		{
			records.POST("", recordHandler.Create)
			records.GET("", recordHandler.List)
			records.GET("/:id", recordHandler.Get)
			records.POST("/:id/addenda", recordHandler.AddAddendum)
		}

		prescriptions := authed.Group("/prescriptions")
		{
			prescriptions.POST("", rxHandler.Issue)
			prescriptions.GET("", rxHandler.List)
			prescriptions.GET("/:id", rxHandler.Get)
			prescriptions.POST("/:id/refill", rxHandler.Refill)
			prescriptions.DELETE("/:id", rxHandler.Cancel)
		}

		messages := authed.Group("/messages")
		{
			messages.POST("", msgHandler.Send)
			messages.GET("", msgHandler.List)
			messages.GET("/unread-count", msgHandler.UnreadCount)
			messages.GET("/:id", msgHandler.Get)
			messages.PUT("/:id/read", msgHandler.MarkRead)
		}

		audit := authed.Group("/audit-logs")
		audit.Use(middleware.RequireRoles(string(domain.RoleAdmin)))
		{
			audit.GET("", auditHandler.List)
		}
	}

	return r
}

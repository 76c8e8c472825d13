package main

import (
	"fmt"
	"log"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/uagrm-posgrado/admin-api/api/swagger"
	"github.com/uagrm-posgrado/admin-api/internal/handler"
	"github.com/uagrm-posgrado/admin-api/internal/middleware"
	"github.com/uagrm-posgrado/admin-api/internal/models"
	"github.com/uagrm-posgrado/admin-api/internal/repository"
	"github.com/uagrm-posgrado/admin-api/internal/service"
	"github.com/uagrm-posgrado/admin-api/pkg/cache"
	"github.com/uagrm-posgrado/admin-api/pkg/config"
	"github.com/uagrm-posgrado/admin-api/pkg/database"
	"github.com/uagrm-posgrado/admin-api/pkg/logger"
	corsmiddleware "github.com/uagrm-posgrado/admin-api/pkg/middleware/cors"
	reqidmiddleware "github.com/uagrm-posgrado/admin-api/pkg/middleware/requestid"
	"github.com/uagrm-posgrado/admin-api/pkg/storage"
)

// @title Posgrado Admin API
// @version 1.0.0
// @description Administrative backend for postgraduate course enrollment, payments and requisito verification
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close() //nolint:errcheck

	metricsSvc := service.NewMetricsService()

	cacheSvc := service.NewCacheService(nil, metricsSvc, cfg.Cache.PaymentConfigTTL, logr, false)
	if cfg.Redis.Enabled {
		redisClient, err := cache.NewRedis(cfg.Redis)
		if err != nil {
			logr.Sugar().Warnw("redis unavailable, caching disabled", "error", err)
		} else {
			cacheRepo := repository.NewCacheRepository(redisClient, logr)
			cacheSvc = service.NewCacheService(cacheRepo, metricsSvc, cfg.Cache.PaymentConfigTTL, logr, true)
			defer cacheRepo.Close() //nolint:errcheck
		}
	}

	limits := storage.Limits{
		MaxImageBytes: cfg.Uploads.MaxImageBytes,
		MaxPDFBytes:   cfg.Uploads.MaxPDFBytes,
	}
	signer := storage.NewSignedURLSigner(cfg.Uploads.SignedURLSecret, cfg.Uploads.SignedURLTTL)

	var docStore storage.DocumentStore
	var localStore *storage.LocalStore
	switch cfg.Uploads.Backend {
	case config.StorageCloudinary:
		docStore, err = storage.NewCloudinaryStore(cfg.Uploads.CloudinaryURL, cfg.Uploads.Folder)
		if err != nil {
			logr.Sugar().Fatalw("failed to init cloudinary store", "error", err)
		}
	default:
		localStore, err = storage.NewLocalStore(cfg.Uploads.BaseDir, cfg.Uploads.PublicBaseURL, signer)
		if err != nil {
			logr.Sugar().Fatalw("failed to init local store", "error", err)
		}
		docStore = localStore
	}

	validate := validator.New()

	userRepo := repository.NewUserRepository(db)
	studentRepo := repository.NewStudentRepository(db)
	courseRepo := repository.NewCourseRepository(db)
	discountRepo := repository.NewDiscountRepository(db)
	enrollmentRepo := repository.NewEnrollmentRepository(db)
	paymentConfigRepo := repository.NewPaymentConfigRepository(db)

	authSvc := service.NewAuthService(userRepo, studentRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             "posgrado-admin-api",
		Audience:           []string{"posgrado-admin"},
	})
	userSvc := service.NewUserService(userRepo, validate, logr)
	studentSvc := service.NewStudentService(studentRepo, docStore, limits, validate, logr)
	courseSvc := service.NewCourseService(courseRepo, validate, logr)
	discountSvc := service.NewDiscountService(discountRepo, studentRepo, validate, logr)
	enrollmentSvc := service.NewEnrollmentService(enrollmentRepo, studentRepo, courseRepo, discountRepo, validate, logr)
	requisitoSvc := service.NewRequisitoService(enrollmentRepo, docStore, limits, logr)
	paymentConfigSvc := service.NewPaymentConfigService(paymentConfigRepo, cacheSvc, docStore, limits, validate, logr)

	authHandler := handler.NewAuthHandler(authSvc)
	userHandler := handler.NewUserHandler(userSvc)
	studentHandler := handler.NewStudentHandler(studentSvc)
	courseHandler := handler.NewCourseHandler(courseSvc)
	discountHandler := handler.NewDiscountHandler(discountSvc)
	enrollmentHandler := handler.NewEnrollmentHandler(enrollmentSvc, requisitoSvc)
	paymentConfigHandler := handler.NewPaymentConfigHandler(paymentConfigSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc)
	fileHandler := handler.NewFileHandler(localStore, signer)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Health)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	if localStore != nil {
		r.GET("/files/:token", fileHandler.Download)
	}

	api := r.Group(cfg.APIPrefix)

	auth := api.Group("/auth")
	auth.POST("/login", authHandler.Login)
	auth.POST("/estudiante/login", authHandler.StudentLogin)
	auth.POST("/refresh", authHandler.Refresh)

	authenticated := auth.Group("")
	authenticated.Use(middleware.JWT(authSvc))
	authenticated.POST("/logout", authHandler.Logout)
	authenticated.PUT("/password", authHandler.ChangePassword)
	authenticated.GET("/me", authHandler.Me)

	protected := api.Group("")
	protected.Use(middleware.JWT(authSvc))

	users := protected.Group("/usuarios")
	users.Use(middleware.RequireRoles(models.RoleSuperAdmin))
	users.GET("", userHandler.List)
	users.GET("/:id", userHandler.Get)
	users.POST("", middleware.Audit(userRepo, "CREATE", "usuario"), userHandler.Create)
	users.PUT("/:id", middleware.Audit(userRepo, "UPDATE", "usuario"), userHandler.Update)
	users.DELETE("/:id", middleware.Audit(userRepo, "DELETE", "usuario"), userHandler.Delete)

	students := protected.Group("/estudiantes")
	students.GET("", middleware.RequireAdmin(), studentHandler.List)
	students.GET("/:id", middleware.RBAC(string(models.RoleAdmin), string(models.RoleSuperAdmin), "SELF"), studentHandler.Get)
	students.POST("", middleware.RequireAdmin(), middleware.Audit(userRepo, "CREATE", "estudiante"), studentHandler.Create)
	students.PUT("/:id", middleware.RequireAdmin(), middleware.Audit(userRepo, "UPDATE", "estudiante"), studentHandler.Update)
	students.DELETE("/:id", middleware.RequireRoles(models.RoleSuperAdmin), middleware.Audit(userRepo, "DELETE", "estudiante"), studentHandler.Delete)
	students.PUT("/:id/foto", middleware.RBAC(string(models.RoleAdmin), string(models.RoleSuperAdmin), "SELF"), studentHandler.UploadPhoto)

	courses := protected.Group("/cursos")
	courses.GET("", courseHandler.List)
	courses.GET("/:id", courseHandler.Get)
	courses.POST("", middleware.RequireAdmin(), middleware.Audit(userRepo, "CREATE", "curso"), courseHandler.Create)
	courses.PUT("/:id", middleware.RequireAdmin(), middleware.Audit(userRepo, "UPDATE", "curso"), courseHandler.Update)
	courses.DELETE("/:id", middleware.RequireRoles(models.RoleSuperAdmin), middleware.Audit(userRepo, "DELETE", "curso"), courseHandler.Delete)
	courses.GET("/:id/reporte", middleware.RequireAdmin(), courseHandler.Report)
	courses.GET("/:id/reporte/export", middleware.RequireAdmin(), courseHandler.Export)

	discounts := protected.Group("/descuentos")
	discounts.Use(middleware.RequireAdmin())
	discounts.GET("", discountHandler.List)
	discounts.GET("/:id", discountHandler.Get)
	discounts.POST("", middleware.Audit(userRepo, "CREATE", "descuento"), discountHandler.Create)
	discounts.PUT("/:id", middleware.Audit(userRepo, "UPDATE", "descuento"), discountHandler.Update)
	discounts.POST("/:id/estudiantes/:student_id", middleware.Audit(userRepo, "UPDATE", "descuento"), discountHandler.AssignStudent)
	discounts.DELETE("/:id/estudiantes/:student_id", middleware.Audit(userRepo, "UPDATE", "descuento"), discountHandler.RevokeStudent)
	discounts.DELETE("/:id", middleware.RequireRoles(models.RoleSuperAdmin), middleware.Audit(userRepo, "DELETE", "descuento"), discountHandler.Delete)

	enrollments := protected.Group("/inscripciones")
	enrollments.GET("", enrollmentHandler.List)
	enrollments.GET("/:id", enrollmentHandler.Get)
	enrollments.GET("/estudiante/:id", middleware.RBAC(string(models.RoleAdmin), string(models.RoleSuperAdmin), "SELF"), enrollmentHandler.ListByStudent)
	enrollments.GET("/curso/:id", middleware.RequireAdmin(), enrollmentHandler.ListByCourse)
	enrollments.POST("", middleware.RequireAdmin(), middleware.Audit(userRepo, "CREATE", "inscripcion"), enrollmentHandler.Create)
	enrollments.PUT("/:id/descuento", middleware.RequireAdmin(), middleware.Audit(userRepo, "UPDATE", "inscripcion"), enrollmentHandler.UpdateDiscount)
	enrollments.PUT("/:id/estado", middleware.RequireAdmin(), middleware.Audit(userRepo, "UPDATE", "inscripcion"), enrollmentHandler.ChangeStatus)
	enrollments.GET("/:id/requisitos", enrollmentHandler.Requisitos)
	enrollments.PUT("/:id/requisitos/:index", middleware.Audit(userRepo, "UPLOAD", "requisito"), enrollmentHandler.UploadRequisito)
	enrollments.PUT("/:id/requisitos/:index/aprobar", middleware.RequireAdmin(), middleware.Audit(userRepo, "APPROVE", "requisito"), enrollmentHandler.ApproveRequisito)
	enrollments.PUT("/:id/requisitos/:index/rechazar", middleware.RequireAdmin(), middleware.Audit(userRepo, "REJECT", "requisito"), enrollmentHandler.RejectRequisito)

	paymentConfig := protected.Group("/configuracion-pago")
	paymentConfig.GET("", paymentConfigHandler.Get)
	paymentConfig.POST("", middleware.RequireAdmin(), middleware.Audit(userRepo, "CREATE", "configuracion_pago"), paymentConfigHandler.Create)
	paymentConfig.PUT("", middleware.RequireAdmin(), middleware.Audit(userRepo, "UPDATE", "configuracion_pago"), paymentConfigHandler.Update)
	paymentConfig.DELETE("", middleware.RequireRoles(models.RoleSuperAdmin), middleware.Audit(userRepo, "DELETE", "configuracion_pago"), paymentConfigHandler.Delete)
	paymentConfig.PUT("/qr", middleware.RequireAdmin(), middleware.Audit(userRepo, "UPDATE", "configuracion_pago"), paymentConfigHandler.UploadQR)

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}

package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/jeebendu/ch-clinic-admin-sub000/internal/handler"
	"github.com/jeebendu/ch-clinic-admin-sub000/internal/middleware"
	"github.com/jeebendu/ch-clinic-admin-sub000/internal/model"
	"github.com/jeebendu/ch-clinic-admin-sub000/internal/provision"
	"github.com/jeebendu/ch-clinic-admin-sub000/internal/schema"
	entitysync "github.com/jeebendu/ch-clinic-admin-sub000/internal/sync"
	"github.com/jeebendu/ch-clinic-admin-sub000/internal/tenant"
	"github.com/jeebendu/ch-clinic-admin-sub000/internal/tenantctx"
	"github.com/jeebendu/ch-clinic-admin-sub000/pkg/config"
	"github.com/jeebendu/ch-clinic-admin-sub000/pkg/database"
	"github.com/jeebendu/ch-clinic-admin-sub000/pkg/jwtutil"
	"github.com/jeebendu/ch-clinic-admin-sub000/pkg/logger"
	appmetrics "github.com/jeebendu/ch-clinic-admin-sub000/prometheus"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func main() {
	// Load configuration from .env file and environment variables
	conf, err := config.Load("clinic-platform")
	if err != nil {
		fmt.Printf("Error loading configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	err = logger.InitLogger(&logger.LogConfig{
		Level:       conf.Log.Level,
		Environment: conf.Server.Env,
		ServiceName: conf.ServiceName,
	})
	if err != nil {
		fmt.Printf("Error initializing logger: %v\n", err)
		os.Exit(1)
	}
	log := logger.GetLogger()
	log.Info("Starting clinic platform...", conf.LogConfig()...)

	// Initialize database
	db, err := database.InitDB(&conf.DB)
	if err != nil {
		log.Fatal("Failed to initialize database", zap.Error(err))
	}
	log.Info("Database connection established")

	// Schema router over the shared pool
	router := schema.NewRouter(db, &conf.Tenancy, log)

	// Bootstrap the master partition
	if err := bootstrapMaster(db, router, conf); err != nil {
		log.Fatal("Failed to bootstrap master schema", zap.Error(err))
	}
	log.Info("Master schema ready", zap.String("schema", conf.Tenancy.MasterSchema))

	// Initialize JWT utility
	jwt := jwtutil.NewJWTUtil(&jwtutil.JWTConfig{
		SigningKey:      conf.JWT.SigningKey,
		ExpirationHours: conf.JWT.ExpirationHours,
	})

	// Tenant resolution
	resolver := tenant.NewResolver(&conf.Tenancy, jwt)

	// Stores, synchronizers, deferred-retry queue
	stores := entitysync.NewGormStores(router)
	doctorSync := entitysync.NewDoctorSynchronizer(stores.Doctors, log)
	patientSync := entitysync.NewPatientSynchronizer(stores.Patients, log)
	appointmentSync := entitysync.NewAppointmentSynchronizer(stores.Appointments, stores.Doctors, stores.Patients, stores.Slots, log)

	retries := entitysync.NewRetryQueue(log, 256, 5, 30*time.Second)
	retries.Start()
	defer retries.Stop()

	// Provisioning saga
	masterClient := conf.Tenancy.DefaultTenant
	masterStore := provision.NewGormMasterStore(router, masterClient)
	provisioner := provision.NewGormTenantProvisioner(db, router)
	existsCache := provision.NewExistsCache()
	// No external registrar wired; the DNS step is skipped
	saga := provision.NewSaga(masterStore, provisioner, nil, existsCache, router.SchemaFor, conf.Tenancy.BaseDomain, log)

	// Handlers
	provisionHandler := handler.NewProvisionHandler(saga, router, masterClient)
	doctorHandler := handler.NewDoctorHandler(stores.Doctors, doctorSync, retries, masterClient)
	patientHandler := handler.NewPatientHandler(stores.Patients, patientSync, retries, masterClient)
	appointmentHandler := handler.NewAppointmentHandler(stores, appointmentSync, retries, masterClient)

	// Initialize Echo framework
	e := echo.New()

	// Apply global middleware - order matters
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.CORS())
	e.Use(middleware.RequestIDMiddleware())
	e.Use(logger.Middleware())
	e.Use(appmetrics.MetricsMiddleware())
	e.Use(tenant.Middleware(resolver))

	// Public routes
	e.GET("/health", handler.HealthCheck)
	e.GET("/metrics", handler.MetricsHandler)
	e.POST("/signup", provisionHandler.Signup)

	// Administrative routes - internal callers only
	admin := e.Group("/admin")
	admin.Use(middleware.InternalOnlyMiddleware(conf.Tenancy.InternalAPIToken))
	admin.POST("/provision/:id/approve", provisionHandler.Approve)
	admin.GET("/partitions/:client_id", provisionHandler.GetPartition)

	// API routes - authenticated, tenant-scoped
	api := e.Group("/api")
	api.Use(middleware.JWTAuthMiddleware(jwt))
	api.POST("/doctors", doctorHandler.CreateDoctor)
	api.POST("/doctors/:global_id/publish", doctorHandler.PublishDoctor)
	api.POST("/patients", patientHandler.CreatePatient)
	api.POST("/patients/:global_id/share", patientHandler.SharePatient)
	api.POST("/appointments", appointmentHandler.BookAppointment)
	api.POST("/appointments/:global_id/cancel", appointmentHandler.CancelAppointment)

	// Start server
	port := conf.Server.Port
	log.Info("Starting server", zap.String("port", port))
	if err := e.Start(":" + port); err != nil {
		log.Fatal("Failed to start server", zap.Error(err))
	}
}

// bootstrapMaster creates the master schema and migrates the registry and
// projection tables into it.
func bootstrapMaster(db *gorm.DB, router *schema.Router, conf *config.Config) error {
	masterSchema := conf.Tenancy.MasterSchema
	if err := schema.ValidateSchemaName(masterSchema); err != nil {
		return err
	}
	if err := db.Exec(fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %q", masterSchema)).Error; err != nil {
		return err
	}

	masterCtx := tenantctx.WithTenant(context.Background(), conf.Tenancy.DefaultTenant)
	return router.WithTenant(masterCtx, func(scoped *gorm.DB) error {
		return scoped.AutoMigrate(model.MasterModels()...)
	})
}

package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/harborhealth/caregate/internal/config"
	v1 "github.com/harborhealth/caregate/internal/handler/v1"
	"github.com/harborhealth/caregate/internal/repository/postgres"
	"github.com/harborhealth/caregate/internal/service"
	"github.com/harborhealth/caregate/pkg/auth"
	"github.com/harborhealth/caregate/pkg/database"
	"github.com/harborhealth/caregate/pkg/logger"
	"github.com/harborhealth/caregate/pkg/metrics"
	"github.com/harborhealth/caregate/pkg/tracer"
)

func main() {
	// Missing .env is fine in containerized deployments; env vars win.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		panic("loading config: " + err.Error())
	}

	log, err := logger.New(cfg.Log)
	if err != nil {
		panic("building logger: " + err.Error())
	}
	defer func() { _ = log.Sync() }()

	if err := run(cfg, log); err != nil {
		log.Fatal("server exited with error", zap.Error(err))
	}
}

func run(cfg *config.Config, log *zap.Logger) error {
	tp, err := tracer.Init(cfg.Tracing)
	if err != nil {
		return err
	}
	defer func() {
		if err := tp.Shutdown(context.Background()); err != nil {
			log.Warn("tracer shutdown failed", zap.Error(err))
		}
	}()

	db, err := database.Connect(cfg.Database)
	if err != nil {
		return err
	}
	if err := database.Migrate(db, log); err != nil {
		return err
	}

	m := metrics.NewCollector("caregate")
	sessions := auth.NewSessionManager(cfg.Session)
	hasher := auth.NewPasswordHasher(cfg.Security.BcryptCost)

	userRepo := postgres.NewUserRepository(db)
	patientRepo := postgres.NewPatientRepository(db)
	staffRepo := postgres.NewStaffRepository(db)
	apptRepo := postgres.NewAppointmentRepository(db)
	recordRepo := postgres.NewMedicalRecordRepository(db)
	rxRepo := postgres.NewPrescriptionRepository(db)
	msgRepo := postgres.NewMessageRepository(db)
	auditRepo := postgres.NewAuditRepository(db)

	auditSvc := service.NewAuditService(auditRepo, m, log)
	authSvc := service.NewAuthService(userRepo, hasher, sessions, auditSvc, cfg.Security, m, log)
	userSvc := service.NewUserService(userRepo, hasher, auditSvc, cfg.Security, log)
	patientSvc := service.NewPatientService(patientRepo, auditSvc, log)
	staffSvc := service.NewStaffService(staffRepo, auditSvc, log)
	apptSvc := service.NewAppointmentService(apptRepo, patientRepo, staffRepo, auditSvc, m, log)
	recordSvc := service.NewMedicalRecordService(recordRepo, patientRepo, auditSvc, log)
	rxSvc := service.NewPrescriptionService(rxRepo, patientRepo, auditSvc, log)
	msgSvc := service.NewMessageService(msgRepo, userRepo, auditSvc, log)

	router := v1.NewRouter(v1.RouterDeps{
		Config:   cfg,
		Log:      log,
		Metrics:  m,
		Sessions: sessions,

		AuthSvc:          authSvc,
		UserSvc:          userSvc,
		PatientSvc:       patientSvc,
		StaffSvc:         staffSvc,
		AppointmentSvc:   apptSvc,
		MedicalRecordSvc: recordSvc,
		PrescriptionSvc:  rxSvc,
		MessageSvc:       msgSvc,
		AuditSvc:         auditSvc,
	})

	srv := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server listening",
			zap.String("addr", srv.Addr),
			zap.String("environment", cfg.App.Environment),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-quit:
		log.Info("shutting down", zap.String("signal", sig.String()))
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("graceful shutdown failed", zap.Error(err))
	}

	// Drain the audit queue after the listener stops accepting requests,
	// so in-flight mutations still get their audit rows.
	auditSvc.Shutdown()

	return nil
}

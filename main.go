package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	intconfig "busbooking/internal/config"
	intdb "busbooking/internal/db"
	"busbooking/internal/events"
	router "busbooking/internal/http"
	"busbooking/internal/http/handlers"
	"busbooking/internal/observability"
	"busbooking/internal/repositories"
	"busbooking/internal/repositories/memory"
	"busbooking/internal/services"
	"busbooking/internal/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	env := intconfig.LoadEnv()
	if env.GinMode != "" {
		gin.SetMode(env.GinMode)
	}

	ctx := context.Background()
	tel, err := observability.Setup(ctx, env)
	if err != nil {
		panic(err)
	}
	utils.SetLogger(tel.Logger)
	log := tel.Logger

	if err := env.Validate(); err != nil {
		log.Fatal("invalid configuration", zap.Error(err))
	}
	if env.UsesDefaultJWTSecret() {
		log.Warn("JWT_SECRET is not set; tokens are signed with the development secret")
	}

	store, err := openStore(ctx, env)
	if err != nil {
		log.Fatal("store unavailable", zap.String("store", env.Store), zap.Error(err))
	}
	defer intconfig.CloseDB()

	publisher := newPublisher(env, tel)
	auth := services.AuthService{Secret: []byte(env.JWTSecret), TTL: env.JWTTTL}
	hd := handlers.New(store, publisher, auth, env.LockTimeout)
	seedAdmin(ctx, env, hd.Auth, log)
	r := router.NewRouter(env, hd)

	srv := &http.Server{
		Addr:              env.AppAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       20 * time.Second,
		WriteTimeout:      20 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("server listening", zap.String("addr", env.AppAddr), zap.String("store", env.Store))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown failed", zap.Error(err))
	}
	if err := publisher.Close(); err != nil {
		log.Warn("publisher close failed", zap.Error(err))
	}
	log.Info("server stopped")
	if err := tel.Shutdown(shutdownCtx); err != nil {
		log.Warn("telemetry shutdown failed", zap.Error(err))
	}
}

func seedAdmin(ctx context.Context, env intconfig.Env, auth services.AuthService, log *zap.Logger) {
	if env.AdminEmail == "" || env.AdminPassword == "" {
		log.Info("no admin seed configured; set ADMIN_EMAIL and ADMIN_PASSWORD to manage trips")
		return
	}
	admin, created, err := auth.EnsureAdmin(ctx, services.RegisterInput{
		Name:     env.AdminName,
		Email:    env.AdminEmail,
		Password: env.AdminPassword,
	})
	if err != nil {
		log.Fatal("admin seed failed", zap.String("email", env.AdminEmail), zap.Error(err))
	}
	log.Info("admin account ready", zap.Int64("user_id", admin.ID), zap.Bool("created", created))
}

func openStore(ctx context.Context, env intconfig.Env) (repositories.Store, error) {
	if env.Store == intconfig.StoreMemory {
		return memory.New(), nil
	}
	primary, replica, err := intconfig.ConnectDB(ctx, env)
	if err != nil {
		return nil, err
	}
	if err := intdb.EnsureSchema(ctx, primary); err != nil {
		return nil, err
	}
	return repositories.NewMySQLStore(primary, replica), nil
}

func newPublisher(env intconfig.Env, tel *observability.Telemetry) events.Publisher {
	if env.KafkaBroker == "" {
		return events.LogPublisher{}
	}
	p, err := events.NewTracedKafkaPublisher(env.KafkaBroker, env.KafkaTopic, intconfig.ServiceName, tel.TracerProvider)
	if err != nil {
		tel.Logger.Warn("kafka publisher disabled", zap.String("broker", env.KafkaBroker), zap.Error(err))
		return events.LogPublisher{}
	}
	return p
}

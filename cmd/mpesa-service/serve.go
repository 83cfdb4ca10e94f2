package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/LavaJover/shvark-mpesa-service/internal/app/background"
	"github.com/LavaJover/shvark-mpesa-service/internal/app/setup"
	"github.com/LavaJover/shvark-mpesa-service/internal/delivery/grpcapi"
	"github.com/LavaJover/shvark-mpesa-service/internal/delivery/http/handlers"
	"github.com/LavaJover/shvark-mpesa-service/internal/domain"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

const shutdownTimeout = 15 * time.Second

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP and gRPC servers",
		RunE:  runServe,
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()
	if cfg.Env != "local" {
		gin.SetMode(gin.ReleaseMode)
	}

	deps, err := setup.InitializeDependencies(cfg)
	if err != nil {
		return fmt.Errorf("failed to init dependencies: %w", err)
	}
	defer deps.Close()

	if deps.Audit != nil {
		deps.Audit.Start()
		defer deps.Audit.Stop()
	}

	uc := setup.InitializeUseCases(deps).TransactionUsecase

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// gRPC server
	grpcServer := grpc.NewServer()
	healthServer := health.NewServer()
	grpcapi.RegisterTransactionServiceServer(grpcServer, grpcapi.NewTransactionHandler(uc))
	healthpb.RegisterHealthServer(grpcServer, healthServer)

	lis, err := net.Listen("tcp", net.JoinHostPort(cfg.GRPCServer.Host, cfg.GRPCServer.Port))
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}

	// HTTP server
	var auditStats handlers.AuditStatsProvider
	if deps.Audit != nil {
		auditStats = deps.Audit
	}
	router := handlers.NewRouter(handlers.NewTransactionHandler(uc, auditStats), cfg.Auth.APIKeys, promhttp.Handler())
	httpServer := &http.Server{
		Addr:              net.JoinHostPort(cfg.HTTPServer.Host, cfg.HTTPServer.Port),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       cfg.HTTPServer.ReadTimeout,
		WriteTimeout:      cfg.HTTPServer.WriteTimeout,
	}

	var subscriber domain.SubscriberPort
	if deps.Subscriber != nil {
		subscriber = deps.Subscriber
	}
	background.NewBackgroundTasks(uc, subscriber, healthServer, cfg.Sweeper, cfg.KafkaService).StartAll(ctx)

	errCh := make(chan error, 2)
	go func() {
		slog.Info("gRPC server started", "addr", lis.Addr().String())
		if err := grpcServer.Serve(lis); err != nil {
			errCh <- fmt.Errorf("grpc server: %w", err)
		}
	}()
	go func() {
		slog.Info("HTTP server started", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	var serveErr error
	select {
	case <-ctx.Done():
		slog.Info("shutdown signal received")
	case serveErr = <-errCh:
		slog.Error("server failed", "error", serveErr)
	}

	healthServer.Shutdown()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("http shutdown failed", "error", err)
	}
	grpcServer.GracefulStop()

	// pending events and callbacks finish before the publisher closes
	uc.Wait()
	slog.Info("service stopped")
	return serveErr
}

package main

import (
	"context"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/snappy-loop/factcheck/internal/auth"
	"github.com/snappy-loop/factcheck/internal/config"
	"github.com/snappy-loop/factcheck/internal/grpcserver"
	"github.com/snappy-loop/factcheck/internal/mcpserver"
	"github.com/snappy-loop/factcheck/internal/services"
	"google.golang.org/grpc"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.DefaultContextLogger = &log.Logger

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	log.Info().Msg("Starting Fact Check Agents (gRPC + MCP)")

	factCheckService, llmClient, err := services.Build(context.Background(), cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize fact-check pipeline")
	}
	defer llmClient.Close()

	authService := auth.NewService(cfg.APIKeyHash)

	// gRPC server with auth
	grpcSrv := grpc.NewServer(grpc.UnaryInterceptor(grpcserver.AuthUnaryInterceptor(authService)))
	grpcserver.RegisterFactCheckServer(grpcSrv, grpcserver.NewFactCheckServer(factCheckService))
	healthSrv := grpcserver.RegisterHealth(grpcSrv)

	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		log.Fatal().Err(err).Str("addr", cfg.GRPCAddr).Msg("Failed to listen for gRPC")
	}
	go func() {
		log.Info().Str("addr", cfg.GRPCAddr).Msg("gRPC server listening")
		if err := grpcSrv.Serve(lis); err != nil && err != grpc.ErrServerStopped {
			log.Error().Err(err).Msg("gRPC server error")
		}
	}()

	// MCP HTTP server with auth
	mcpSrv, err := mcpserver.NewServer(factCheckService)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build MCP tool schemas")
	}
	mcpHTTP := &http.Server{
		Addr:         cfg.MCPAddr,
		Handler:      mcpserver.AuthMiddleware(authService)(mcpSrv.Handler()),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 15*time.Second,
	}
	go func() {
		log.Info().Str("addr", cfg.MCPAddr).Msg("MCP server listening")
		if err := mcpHTTP.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("MCP HTTP server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down agents...")
	healthSrv.Shutdown()

	// gRPC: bounded graceful stop so it cannot block forever and starve MCP shutdown
	grpcDone := make(chan struct{})
	go func() {
		grpcSrv.GracefulStop()
		close(grpcDone)
	}()
	select {
	case <-grpcDone:
	case <-time.After(10 * time.Second):
		log.Warn().Msg("gRPC graceful stop timed out; stopping")
		grpcSrv.Stop()
		<-grpcDone
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := mcpHTTP.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("MCP HTTP shutdown error")
	}

	log.Info().Msg("Agents exited")
}

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"nifty/internal/app/service"
	"nifty/internal/client"
	"nifty/internal/infrastructure/configloader"
	clientprovider "nifty/internal/infrastructure/network/client"
	networkdefinition "nifty/internal/infrastructure/network/definition"
	"nifty/internal/infrastructure/restapi"
	"nifty/internal/pkg/logger"
	"nifty/internal/pkg/metrics"
	"nifty/internal/pkg/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const defaultConfigPath = "config/config.yml"

func main() {
	cfgPath := utils.GetEnv("CONFIG_PATH", defaultConfigPath)
	cfg, err := configloader.Load(cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "CRITICAL: failed to load configuration from %s: %v\n", cfgPath, err)
		os.Exit(1)
	}

	zapLogger := logger.InitSlog(cfg.Logging.Level, cfg.Logging.Development)
	defer logger.Sync()

	logger.Info("NFT gallery service starting", "config", cfgPath)
	metrics.MustRegisterMetrics()

	chainProvider := networkdefinition.NewChainDefinitionProvider(
		logger.NewComponentAdapter("chains"),
		cfg.Chains.Enabled,
		chainOverrides(cfg),
	)

	rpcLog := logger.NewComponentAdapter("rpc")
	readerProvider := clientprovider.NewEVMClientProvider(cfg, rpcLog.Info, rpcLog.Error)
	if closer, ok := readerProvider.(interface{ Close() }); ok {
		defer closer.Close()
	}

	explorerClient := client.NewExplorerClient(client.ExplorerClientConfig{
		Scheme:            cfg.Explorer.Scheme,
		Timeout:           time.Duration(cfg.Explorer.RequestTimeoutMillis) * time.Millisecond,
		APIKeys:           cfg.Explorer.APIKeys,
		RequestsPerSecond: cfg.Explorer.RequestsPerSecond,
		Burst:             cfg.Explorer.Burst,
	}, zapLogger)

	metadataClient := client.NewMetadataClient(client.MetadataClientConfig{
		Timeout:              time.Duration(cfg.Metadata.RequestTimeoutMillis) * time.Millisecond,
		MaxRedirects:         cfg.Metadata.MaxRedirects,
		MaxBodyBytes:         cfg.Metadata.MaxBodyBytes,
		InitialRetryInterval: time.Duration(cfg.Metadata.InitialRetryMillis) * time.Millisecond,
		MaxRetryElapsed:      time.Duration(cfg.Metadata.MaxRetryElapsedMs) * time.Millisecond,
		CacheTTL:             time.Duration(cfg.Cache.MetadataTTLMinutes) * time.Minute,
	}, zapLogger)

	discoveryService := service.NewDiscoveryService(chainProvider, explorerClient, logger.NewComponentAdapter("discovery"), cfg)
	resolutionService := service.NewResolutionService(readerProvider, metadataClient, logger.NewComponentAdapter("resolution"), cfg)
	galleryService := service.NewGalleryService(discoveryService, resolutionService, chainProvider, logger.NewComponentAdapter("gallery"), cfg)
	defer galleryService.Close()

	logger.Info("Services initialized",
		"chains", len(chainProvider.GetAllChains()),
		"abort_on_chain_error", cfg.Discovery.AbortOnChainError,
		"max_concurrent_tokens", cfg.Resolution.MaxConcurrentTokens)

	gin.SetMode(cfg.Server.GinMode)
	router := restapi.SetupRouter(restapi.NewGalleryHandler(galleryService, logger.NewComponentAdapter("api")), cfg, zapLogger)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeoutSeconds) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeoutSeconds) * time.Second,
	}

	go func() {
		zapLogger.Info("HTTP server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Failed to start HTTP server", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutdown signal received, stopping HTTP server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Server.ShutdownTimeoutSeconds)*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server forced to shutdown", "error", err)
	}

	logger.Info("NFT gallery service stopped")
}

func chainOverrides(cfg *configloader.Config) map[string]networkdefinition.ChainOverride {
	overrides := make(map[string]networkdefinition.ChainOverride, len(cfg.Chains.Overrides))
	for id, o := range cfg.Chains.Overrides {
		overrides[id] = networkdefinition.ChainOverride{
			ExplorerHost:    o.ExplorerHost,
			RPCURL:          o.RPCURL,
			FallbackRPCURLs: o.FallbackRPCURLs,
		}
	}
	return overrides
}

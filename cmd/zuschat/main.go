package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/Tanz2024/Zuschat-Rag-API-sub001/internal/catalog"
	"github.com/Tanz2024/Zuschat-Rag-API-sub001/internal/config"
	"github.com/Tanz2024/Zuschat-Rag-API-sub001/internal/dispatch"
	"github.com/Tanz2024/Zuschat-Rag-API-sub001/internal/history"
	"github.com/Tanz2024/Zuschat-Rag-API-sub001/internal/httpapi"
	"github.com/Tanz2024/Zuschat-Rag-API-sub001/internal/intent"
	"github.com/Tanz2024/Zuschat-Rag-API-sub001/internal/observability"
	"github.com/Tanz2024/Zuschat-Rag-API-sub001/internal/orchestrator"
	"github.com/Tanz2024/Zuschat-Rag-API-sub001/internal/session"
	"github.com/Tanz2024/Zuschat-Rag-API-sub001/internal/tools"
)

func main() {
	// Local development convenience; a missing .env is not an error.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	metrics := observability.NewMetrics(cfg.MetricsNamespace)

	products, err := catalog.LoadProducts(cfg.ProductsPath)
	if err != nil {
		log.Fatalf("product catalog load failed: %v", err)
	}
	outlets, err := catalog.LoadOutlets(cfg.OutletsPath)
	if err != nil {
		log.Fatalf("outlet catalog load failed: %v", err)
	}
	log.Printf("catalogs loaded: %d products, %d outlets", len(products), len(outlets))

	ctx := context.Background()
	transcripts, err := history.NewStore(ctx, cfg.DatabaseURL, cfg.SQLitePath)
	if err != nil {
		log.Fatalf("transcript store init failed: %v", err)
	}
	defer transcripts.Close()
	switch {
	case cfg.DatabaseURL != "":
		log.Printf("transcript store: postgres")
	case cfg.SQLitePath != "":
		log.Printf("transcript store: sqlite (%s)", cfg.SQLitePath)
	default:
		log.Printf("transcript store: in-memory")
	}

	productIndex := tools.NewProductIndex(products)
	outletDirectory := tools.NewOutletDirectory(outlets)
	dispatcher := dispatch.New(productIndex, outletDirectory, tools.NewCalculator(), cfg.ToolTimeout)

	sessions := session.NewStore(cfg.SessionIdleTimeout, cfg.SessionHistoryLimit)
	engine := orchestrator.NewEngine(
		sessions,
		intent.NewClassifier(),
		dispatcher,
		transcripts,
		metrics,
		cfg.StrictIntent,
	)

	api := httpapi.New(cfg, engine, productIndex, outletDirectory, transcripts)
	httpServer := &http.Server{
		Addr:    cfg.BindAddr,
		Handler: api.Router(),
	}

	go func() {
		log.Printf("server listening on %s", cfg.BindAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("listen error: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	log.Printf("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
		_ = httpServer.Close()
	}

	log.Printf("shutdown complete")
}

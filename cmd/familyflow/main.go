package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/yabolb/familyflow/internal/advisor"
	"github.com/yabolb/familyflow/internal/amqp"
	"github.com/yabolb/familyflow/internal/budget"
	"github.com/yabolb/familyflow/internal/config"
	"github.com/yabolb/familyflow/internal/energy"
	apphttp "github.com/yabolb/familyflow/internal/http"
	applog "github.com/yabolb/familyflow/internal/log"
	"github.com/yabolb/familyflow/internal/services"
	"github.com/yabolb/familyflow/internal/storage"
)

func main() {
	// Load .env for local development; ignore errors in production.
	_ = godotenv.Load()

	logger := applog.New("familyflow")
	applog.SetDefault(logger)

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}

	repo, err := storage.NewRepository(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("Failed to initialize repository", "error", err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer repo.Close()

	// AMQP is optional; without it transaction events are not published
	// and the rollup worker falls behind.
	var amqpClient *amqp.Client
	if cfg.AMQPURL != "" {
		amqpClient, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("AMQP unavailable, transaction events disabled", "error", err)
		} else {
			defer amqpClient.Close()
		}
	}

	transactions := services.NewTransactionService(repo, amqpClient)
	aggregator := budget.NewAggregator(repo, repo)
	gate := budget.NewFeedbackGate(repo)

	var chatAdvisor apphttp.ChatAdvisor
	if cfg.GeminiAPIKey != "" {
		generator, err := advisor.NewGeminiGenerator(context.Background(), cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			logger.Error("Failed to initialize advisor", "error", err)
			os.Exit(1)
		}

		var prices advisor.PriceProvider
		if cfg.EnergyFeedURL != "" {
			feed, err := energy.NewClient(nil, cfg.EnergyFeedURL, cfg.EnergyTTL)
			if err != nil {
				logger.Error("Failed to initialize energy feed", "error", err)
				os.Exit(1)
			}
			prices = feed
		}

		chatAdvisor = advisor.New(aggregator, prices, repo, generator)
		logger.Info("Advisor enabled", "model", cfg.GeminiModel, "energy_feed", cfg.EnergyFeedURL != "")
	} else {
		logger.Info("Advisor disabled - no API key provided")
	}

	stores := apphttp.Stores{
		Families:     repo,
		Categories:   repo,
		Transactions: repo,
		Templates:    repo,
		Feedback:     repo,
	}
	srv := apphttp.NewServer(":"+cfg.Port, stores, transactions, aggregator, gate, chatAdvisor, apphttp.Options{
		CacheSize: cfg.SummaryCacheSize,
		CacheTTL:  cfg.SummaryCacheTTL,
	})

	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 10 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String())

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
		cancel()
	}()

	logger.Info("Starting familyflow server", "port", cfg.Port)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}

	<-ctx.Done()
	logger.Info("Server stopped gracefully")
}

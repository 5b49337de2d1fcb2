package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"

	"github.com/ksred/klear-trade/internal/auth"
	"github.com/ksred/klear-trade/internal/config"
	"github.com/ksred/klear-trade/internal/database"
	"github.com/ksred/klear-trade/internal/exchange"
	"github.com/ksred/klear-trade/internal/fees"
	"github.com/ksred/klear-trade/internal/ledger"
	"github.com/ksred/klear-trade/internal/notify"
	"github.com/ksred/klear-trade/internal/quote"
	"github.com/ksred/klear-trade/internal/settlement"
	"github.com/ksred/klear-trade/internal/trading"
	"github.com/ksred/klear-trade/pkg/middleware"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// init installs a console logger so that config errors are readable; the
// configured logger replaces it once the config is loaded
func init() {
	zlog.Logger = zerolog.New(zerolog.ConsoleWriter{
		Out:        os.Stdout,
		TimeFormat: time.RFC3339,
	}).With().Timestamp().Logger()
}

func configureLogging(cfg config.Logging) {
	if strings.ToLower(cfg.Format) == "json" {
		zlog.Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
	}

	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
}

type handlers struct {
	auth       *auth.GinHandlers
	exchange   *exchange.GinHandlers
	ledger     *ledger.GinHandlers
	trading    *trading.GinHandlers
	settlement *settlement.GinHandlers
}

// main initializes and runs the trading API server with graceful shutdown support
func main() {
	configPath := flag.String("config", os.Getenv("KLEAR_CONFIG"), "path to the YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		zlog.Fatal().Err(err).Msg("Failed to load config")
	}
	configureLogging(cfg.Logging)

	db, err := database.Open(cfg.Database)
	if err != nil {
		zlog.Fatal().Err(err).Msg("Failed to initialize database")
	}
	if err := database.Seed(context.Background(), db, cfg.Seed); err != nil {
		zlog.Fatal().Err(err).Msg("Failed to seed database")
	}

	commissionRate, taxRate, err := cfg.FeeRates()
	if err != nil {
		zlog.Fatal().Err(err).Msg("Invalid fee configuration")
	}
	calculator, err := fees.New(commissionRate, taxRate)
	if err != nil {
		zlog.Fatal().Err(err).Msg("Invalid fee configuration")
	}

	var publisher notify.Publisher = notify.Nop{}
	if cfg.NATS.URL != "" {
		natsPublisher, err := notify.NewNATSPublisher(cfg.NATS.URL, cfg.NATS.SubjectPrefix)
		if err != nil {
			zlog.Fatal().Err(err).Msg("Failed to connect to NATS")
		}
		publisher = natsPublisher
	}
	defer publisher.Close()

	// Initialize services
	authService := auth.NewServiceFromConfig(cfg.Auth)
	exchangeService := exchange.NewService(db)
	ledgerService := ledger.NewService(db)
	calendar := settlement.NewCalendar(db)
	settlementService := settlement.NewService(db, calendar, publisher)
	quotes := quote.NewStore(cfg.Trading.QuoteTTL)
	tradingService := trading.NewService(db, trading.Dependencies{
		Ledger:    ledgerService,
		Prices:    exchangeService,
		Calendar:  calendar,
		Quotes:    quotes,
		Fees:      calculator,
		Publisher: publisher,
	})

	if _, err := calendar.Current(context.Background()); err != nil {
		zlog.Fatal().Err(err).Msg("Failed to initialise simulation calendar")
	}

	// Background processors
	processorCtx, processorCancel := context.WithCancel(context.Background())
	defer processorCancel()

	go quote.NewSweeper(quotes, cfg.Trading.SweepInterval).Start(processorCtx)
	go trading.NewProcessor(tradingService, cfg.Trading.PendingOrderInterval).Start(processorCtx)
	if cfg.Settlement.AutoAdvanceInterval > 0 {
		go settlement.NewProcessor(settlementService, cfg.Settlement.AutoAdvanceInterval).Start(processorCtx)
	}
	if cfg.Trading.PriceDriftInterval > 0 {
		go exchange.NewDrifter(exchangeService, cfg.Trading.PriceDriftInterval).Start(processorCtx)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.PrometheusMiddleware())
	router.Use(middleware.RateLimit())

	setupRoutes(router, authService, handlers{
		auth:       auth.NewGinHandlers(authService),
		exchange:   exchange.NewGinHandlers(exchangeService),
		ledger:     ledger.NewGinHandlers(ledgerService),
		trading:    trading.NewGinHandlers(tradingService),
		settlement: settlement.NewGinHandlers(settlementService),
	})

	var metricsSrv *http.Server
	if cfg.Server.MetricsPort > 0 && cfg.Server.MetricsPort != cfg.Server.Port {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		metricsSrv = &http.Server{
			Addr:    fmt.Sprintf(":%d", cfg.Server.MetricsPort),
			Handler: mux,
		}
		go func() {
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				zlog.Error().Err(err).Msg("metrics server stopped")
			}
		}()
	} else {
		router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	}

	srv := &http.Server{
		Addr:    cfg.Server.Addr(),
		Handler: router,
	}

	go func() {
		zlog.Info().Str("addr", srv.Addr).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zlog.Fatal().Err(err).Msg("listen")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	zlog.Info().Msg("Shutting down server...")

	processorCancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()
	if metricsSrv != nil {
		_ = metricsSrv.Shutdown(shutdownCtx)
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zlog.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	zlog.Info().Msg("Server exiting")
}

// setupRoutes configures all API endpoints and their handlers:
// - Auth routes: public token issuance
// - Client routes: JWT protected, scoped to the caller's accounts and orders
// - Internal routes: operations permission, drive the simulation
func setupRoutes(router *gin.Engine, validator middleware.TokenValidator, h handlers) {
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := router.Group("/api/v1")
	{
		authGroup := v1.Group("/auth")
		{
			authGroup.POST("/token", h.auth.GenerateTokenHandler())
		}

		stocks := v1.Group("/stocks")
		stocks.Use(middleware.JWTAuth(validator))
		{
			stocks.GET("", h.exchange.ListStocksHandler())
			stocks.GET("/:stock_id", h.exchange.GetStockHandler())
		}

		accounts := v1.Group("/accounts")
		accounts.Use(middleware.JWTAuth(validator))
		{
			accounts.GET("/:account_id", h.ledger.GetAccountHandler())
			accounts.GET("/:account_id/entries", h.ledger.GetEntriesHandler())
		}

		orders := v1.Group("/orders")
		orders.Use(middleware.JWTAuth(validator))
		{
			orders.POST("/preview", h.trading.PreviewHandler())
			orders.POST("/commit", h.trading.CommitHandler())
			orders.GET("", h.trading.ListOrdersHandler())
			orders.GET("/:order_id", h.trading.GetOrderHandler())
			orders.POST("/:order_id/cancel", h.trading.CancelHandler())
		}

		internal := v1.Group("/internal")
		internal.Use(middleware.InternalAuth(validator))
		{
			internal.GET("/simulation", h.settlement.GetSimulationHandler())
			internal.POST("/simulation/advance", h.settlement.AdvanceDayHandler())
			internal.POST("/stocks", h.exchange.ListStockHandler())
			internal.PUT("/stocks/:stock_id/price", h.exchange.SetPriceHandler())
			internal.POST("/accounts", h.ledger.OpenAccountHandler())
			internal.POST("/accounts/:account_id/deposit", h.ledger.DepositHandler())
			internal.PUT("/accounts/:account_id/status", h.ledger.SetStatusHandler())
		}
	}
}

package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/robfig/cron/v3"
	"golang.org/x/crypto/bcrypt"

	"perpguard/configs"
	"perpguard/internal/adapter"
	"perpguard/internal/adapter/telegram"
	"perpguard/internal/database"
	httpdelivery "perpguard/internal/delivery/http"
	"perpguard/internal/domain"
	"perpguard/internal/infra"
	"perpguard/internal/repository"
	"perpguard/internal/service"
	"perpguard/internal/usecase"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found, using environment variables")
	}

	cfg := configs.Load()
	ctx := context.Background()

	// Database
	db, err := infra.NewDatabase(ctx, cfg.Database.URL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	if err := database.RunMigrations(ctx, db); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	// Repositories
	positionRepo := repository.NewPositionRepository(db)
	decisionRepo := repository.NewDecisionRepository(db)
	orderRepo := repository.NewOrderRepository(db)
	balanceRepo := repository.NewBalanceRepository(db)
	modeRepo := repository.NewModeRepository(db)
	logRepo := repository.NewExecutionLogRepository(db)
	settingsRepo := repository.NewSettingsRepository(db)
	operatorRepo := repository.NewOperatorRepository(db)

	ensureDefaultOperator(ctx, operatorRepo)

	// External adapters
	notif := telegram.NewNotificationService(cfg.Telegram.BotToken, cfg.Telegram.ChatID)
	exchange := adapter.NewHyperliquidClient(cfg.Exchange.BaseURL, cfg.Exchange.Address)
	agentBridge := adapter.NewAgentBridge(cfg.Agent.URL, cfg.Trading.Symbols)
	executor := adapter.NewExecutionBridge(agentBridge, cfg.Agent.ExecutionEnabled)

	log.Println("Checking reasoning engine health...")
	if err := agentBridge.HealthCheck(ctx); err != nil {
		log.Printf("WARNING: reasoning engine is not available: %v", err)
		log.Println("Cycles will keep running but produce rejected HOLD decisions until it recovers")
	} else {
		log.Println("Reasoning engine is healthy")
	}

	// Core services
	account := service.NewExchangeAccountManager(exchange, positionRepo, cfg.Exchange.Address)
	gate := service.NewModeGate(modeRepo, notif)
	profiles := service.NewProfileManager(settingsRepo, configs.ProfileParams, cfg.Trading.DefaultProfile)
	profiles.Load(ctx)

	breaker := service.NewCircuitBreaker(gate, service.NewMemoryCounterStore(), account,
		cfg.Breaker.MaxDailyLossPct, cfg.Breaker.MaxConsecutiveLosses)
	validator := service.NewRiskValidator(positionRepo, account, cfg.Trading.MaxOpenPositions, cfg.Trading.EnforceRiskReward)
	sizer := service.NewPositionSizer()
	volatility := service.NewVolatilityScheduler()
	reconciler := service.NewBalanceReconciler(balanceRepo, positionRepo, exchange, cfg.Exchange.Address,
		cfg.Trading.MinBalanceChange, cfg.Trading.DepositThreshold)
	stopMonitor := service.NewStopLossMonitor(positionRepo, decisionRepo, orderRepo, logRepo, exchange, executor, breaker, notif)
	trailingMonitor := service.NewTrailingStopMonitor(positionRepo, logRepo, exchange, profiles)

	readiness := service.NewReadinessGate(
		service.ReadinessProbe{
			Name: "database",
			Check: func(ctx context.Context) (bool, error) {
				return db.Ping(ctx) == nil, nil
			},
		},
		service.ReadinessProbe{
			Name: "reasoning_engine",
			Check: func(ctx context.Context) (bool, error) {
				return agentBridge.HealthCheck(ctx) == nil, nil
			},
		},
		service.ReadinessProbe{
			Name: "macro_strategy",
			Check: func(ctx context.Context) (bool, error) {
				strategy, stale, err := agentBridge.Current(ctx)
				return err == nil && strategy != "" && !stale, nil
			},
		},
		service.ReadinessProbe{
			Name: "market_data",
			Check: func(ctx context.Context) (bool, error) {
				mids, err := exchange.AllMids(ctx)
				return err == nil && len(mids) > 0, nil
			},
		},
	)

	orchestrator := usecase.NewCycleOrchestrator(usecase.CycleOrchestratorDeps{
		Gate:               gate,
		Profiles:           profiles,
		Validator:          validator,
		Sizer:              sizer,
		Volatility:         volatility,
		Reconciler:         reconciler,
		Breaker:            breaker,
		Agent:              agentBridge,
		Executor:           executor,
		Exchange:           exchange,
		Account:            account,
		Indicators:         agentBridge,
		Macro:              agentBridge,
		Readiness:          readiness,
		DecisionRepo:       decisionRepo,
		PositionRepo:       positionRepo,
		OrderRepo:          orderRepo,
		LogRepo:            logRepo,
		Symbols:            cfg.Trading.Symbols,
		DefaultIntervalMin: cfg.Trading.DefaultCycleMinutes,
	})

	// Adaptive cycle scheduler with a pre-cycle strategy warmup
	refresh := func(ctx context.Context) {
		if _, err := agentBridge.Refresh(ctx); err != nil {
			log.Printf("[WARN] Strategy warmup failed: %v", err)
		}
	}
	scheduler := infra.NewCycleScheduler(orchestrator, refresh,
		cfg.Trading.DefaultCycleMinutes, time.Duration(cfg.Trading.CycleTimeoutMinutes)*time.Minute)

	schedCtx, schedCancel := context.WithCancel(ctx)
	defer schedCancel()
	scheduler.Start(schedCtx)
	defer scheduler.Stop()

	// Fixed-cadence background jobs
	cronScheduler := cron.New()

	mustAddJob(cronScheduler, fmt.Sprintf("@every %ds", cfg.Trading.MonitorIntervalSec), "stop-loss scan", func(ctx context.Context) error {
		_, err := stopMonitor.Scan(ctx)
		return err
	})
	mustAddJob(cronScheduler, fmt.Sprintf("@every %ds", cfg.Trading.MonitorIntervalSec), "trailing scan", func(ctx context.Context) error {
		_, err := trailingMonitor.Scan(ctx)
		return err
	})
	mustAddJob(cronScheduler, fmt.Sprintf("@every %ds", cfg.Trading.BreakerIntervalSec), "circuit breaker", func(ctx context.Context) error {
		_, err := breaker.CheckAndTrip(ctx)
		return err
	})
	mustAddJob(cronScheduler, fmt.Sprintf("@every %dm", cfg.Trading.BalanceSyncMinutes), "balance sync", func(ctx context.Context) error {
		_, err := reconciler.Sync(ctx)
		return err
	})

	cronScheduler.Start()
	defer cronScheduler.Stop()

	log.Println("Background jobs initialized:")
	log.Printf("  - Stop-loss / trailing scans: every %ds", cfg.Trading.MonitorIntervalSec)
	log.Printf("  - Circuit breaker: every %ds", cfg.Trading.BreakerIntervalSec)
	log.Printf("  - Balance sync: every %dm", cfg.Trading.BalanceSyncMinutes)

	// Ops listener (unauthenticated, for process supervision)
	opsSrv := &http.Server{
		Addr:         ":" + cfg.Server.OpsPort,
		Handler:      opsRouter(db, scheduler),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	go func() {
		log.Printf("Ops listener starting on :%s", cfg.Server.OpsPort)
		if err := opsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start ops listener: %v", err)
		}
	}()

	// Operator API
	e := echo.New()
	e.HideBanner = true
	authHandler := httpdelivery.NewAuthHandler(operatorRepo)
	controlHandler := httpdelivery.NewControlHandler(gate, breaker, profiles, reconciler, scheduler,
		decisionRepo, positionRepo, balanceRepo, logRepo)
	httpdelivery.SetupRoutes(e, &httpdelivery.RouterConfig{
		AuthHandler:    authHandler,
		ControlHandler: controlHandler,
	})

	go func() {
		log.Printf("Operator API starting on :%s (env %s)", cfg.Server.Port, cfg.Server.Env)
		if err := e.Start(":" + cfg.Server.Port); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start operator API: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Printf("Operator API forced to shutdown: %v", err)
	}
	if err := opsSrv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Ops listener forced to shutdown: %v", err)
	}

	log.Println("Server exited gracefully")
}

// mustAddJob registers a cron job that logs failures instead of bubbling
// them up.
func mustAddJob(c *cron.Cron, spec, name string, job func(ctx context.Context) error) {
	_, err := c.AddFunc(spec, func() {
		if err := job(context.Background()); err != nil {
			log.Printf("ERROR: %s failed: %v", name, err)
		}
	})
	if err != nil {
		log.Fatalf("Failed to add %s cron job: %v", name, err)
	}
}

func opsRouter(db interface{ Ping(context.Context) error }, scheduler *infra.CycleScheduler) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Timeout(60 * time.Second))

	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		ctx, cancel := context.WithTimeout(req.Context(), 2*time.Second)
		defer cancel()

		dbStatus := "healthy"
		if err := db.Ping(ctx); err != nil {
			dbStatus = "unhealthy"
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, `{"status": "healthy", "service": "perpguard", "database": %q, "timestamp": %q}`,
			dbStatus, time.Now().Format(time.RFC3339))
	})

	r.Post("/cycle/trigger", func(w http.ResponseWriter, req *http.Request) {
		log.Println("Manual cycle triggered via ops API")
		go func() {
			if _, err := scheduler.TriggerNow(context.Background()); err != nil {
				log.Printf("ERROR: Manual cycle failed: %v", err)
			}
		}()

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusAccepted)
		w.Write([]byte(`{"message": "Cycle triggered", "status": "processing"}`))
	})

	return r
}

// ensureDefaultOperator creates the bootstrap admin account on first run
func ensureDefaultOperator(ctx context.Context, operatorRepo domain.OperatorRepository) {
	existing, err := operatorRepo.GetByUsername(ctx, "admin")
	if err == nil && existing != nil {
		return
	}

	password := os.Getenv("ADMIN_PASSWORD")
	if password == "" {
		password = "change-me-on-first-login"
		log.Println("WARNING: ADMIN_PASSWORD not set, using the default bootstrap password")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		log.Printf("WARNING: Failed to hash admin password: %v", err)
		return
	}

	op := &domain.Operator{
		ID:           uuid.New(),
		Username:     "admin",
		PasswordHash: string(hash),
		Role:         domain.RoleAdmin,
		CreatedAt:    time.Now(),
	}
	if err := operatorRepo.Create(ctx, op); err != nil {
		log.Printf("WARNING: Failed to create admin operator: %v", err)
		return
	}
	log.Println("Created bootstrap admin operator")
}

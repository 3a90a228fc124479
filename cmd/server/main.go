// cmd/server/main.go
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"

	"github.com/tgorbit/tgads-backend/internal/config"
	"github.com/tgorbit/tgads-backend/internal/controller"
	"github.com/tgorbit/tgads-backend/internal/db"
	"github.com/tgorbit/tgads-backend/internal/health"
	"github.com/tgorbit/tgads-backend/internal/kv"
	"github.com/tgorbit/tgads-backend/internal/logging"
	"github.com/tgorbit/tgads-backend/internal/repository"
	"github.com/tgorbit/tgads-backend/internal/service"
)

func main() {
	// a missing .env just means we rely on OS environment variables
	_ = godotenv.Load()

	cfg := config.Load()
	logging.Init(logging.Config{Level: cfg.LogLevel, JSONOutput: cfg.LogJSON})
	log := logging.WithComponent("server")

	conn, err := db.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("database connection failed")
	}
	defer conn.Close()

	rdb, err := kv.NewRedisClient(kv.RedisConfig{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("redis connection failed")
	}
	defer rdb.Close()
	store := kv.NewRedisStore(rdb)

	customerRepo := &repository.CustomerRepository{DB: conn}
	campaignRepo := &repository.CampaignRepository{DB: conn}
	accountRepo := &repository.AccountRepository{DB: conn}
	groupRepo := &repository.GroupRepository{DB: conn}
	logRepo := &repository.MessageLogRepository{DB: conn}
	healthEventRepo := &repository.HealthEventRepository{DB: conn}
	marketListRepo := &repository.MarketListRepository{DB: conn}

	monitor := health.NewMonitor(store, healthEventRepo, logging.WithComponent("health"))

	campaignService := &service.CampaignService{
		CampaignRepo:   campaignRepo,
		CustomerRepo:   customerRepo,
		LogRepo:        logRepo,
		MarketListRepo: marketListRepo,
		Store:          store,
	}
	accountService := &service.AccountService{
		AccountRepo:     accountRepo,
		CustomerRepo:    customerRepo,
		HealthEventRepo: healthEventRepo,
		Monitor:         monitor,
	}

	campaignController := &controller.CampaignController{CampaignService: campaignService}
	accountController := &controller.AccountController{AccountService: accountService}
	groupController := &controller.GroupController{GroupRepo: groupRepo}
	marketListController := &controller.MarketListController{
		MarketListRepo: marketListRepo,
		GroupRepo:      groupRepo,
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(controller.APIKeyAuth(customerRepo, cfg.AdminAPIKey))

	r.Post("/campaigns", campaignController.CreateCampaign)
	r.Get("/campaigns", campaignController.ListCampaigns)
	r.Get("/campaigns/{id}", campaignController.GetCampaign)
	r.Post("/campaigns/{id}/status", campaignController.SetStatus)
	r.Post("/campaigns/{id}/market-lists", campaignController.AttachMarketLists)
	r.Post("/campaigns/{id}/run", campaignController.Run)
	r.Get("/campaigns/{id}/logs", campaignController.History)

	r.Post("/accounts", accountController.CreateAccount)
	r.Get("/accounts", accountController.ListAccounts)
	r.Post("/accounts/{id}/status", accountController.SetStatus)
	r.Get("/accounts/{id}/health", accountController.Health)

	r.Post("/groups", groupController.CreateGroup)
	r.Get("/groups", groupController.ListGroups)

	r.Post("/market-lists", marketListController.CreateMarketList)
	r.Get("/market-lists", marketListController.ListMarketLists)
	r.Get("/market-lists/{id}/groups", marketListController.ListGroups)
	r.Post("/market-lists/{id}/groups", marketListController.AddGroup)
	r.Delete("/market-lists/{id}/groups/{groupID}", marketListController.RemoveGroup)

	srv := &http.Server{
		Addr:    ":" + cfg.ServerPort,
		Handler: r,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	log.Info().Msg("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
}

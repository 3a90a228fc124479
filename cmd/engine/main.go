// cmd/engine/main.go

// The engine binary runs the campaign scheduler and the per-account send
// workers. It shares the database and redis with the API server but
// serves no HTTP traffic.
package main

import (
	"context"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/tgorbit/tgads-backend/internal/config"
	"github.com/tgorbit/tgads-backend/internal/db"
	"github.com/tgorbit/tgads-backend/internal/engine"
	"github.com/tgorbit/tgads-backend/internal/events"
	"github.com/tgorbit/tgads-backend/internal/health"
	"github.com/tgorbit/tgads-backend/internal/kv"
	"github.com/tgorbit/tgads-backend/internal/logging"
	"github.com/tgorbit/tgads-backend/internal/ratelimit"
	"github.com/tgorbit/tgads-backend/internal/repository"
	"github.com/tgorbit/tgads-backend/internal/selector"
	"github.com/tgorbit/tgads-backend/internal/transport"
	"github.com/tgorbit/tgads-backend/internal/variator"
	"github.com/tgorbit/tgads-backend/internal/warmup"
)

const workerRescanInterval = time.Minute

func main() {
	// a missing .env just means we rely on OS environment variables
	_ = godotenv.Load()

	cfg := config.Load()
	logging.Init(logging.Config{Level: cfg.LogLevel, JSONOutput: cfg.LogJSON})
	log := logging.WithComponent("engine")

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

	campaignRepo := &repository.CampaignRepository{DB: conn}
	accountRepo := &repository.AccountRepository{DB: conn}
	customerRepo := &repository.CustomerRepository{DB: conn}
	logRepo := &repository.MessageLogRepository{DB: conn}
	usageRepo := &repository.UsageRepository{DB: conn}
	healthEventRepo := &repository.HealthEventRepository{DB: conn}

	limiter := ratelimit.NewLimiter(store)
	monitor := health.NewMonitor(store, healthEventRepo, logging.WithComponent("health"))
	warm := warmup.NewController(accountRepo)
	sel := selector.New(campaignRepo, logRepo, limiter, logging.WithComponent("selector"))

	var publisher *events.Publisher
	if cfg.AMQPURL != "" {
		publisher, err = events.NewPublisher(cfg.AMQPURL, logging.WithComponent("events"))
		if err != nil {
			log.Fatal().Err(err).Msg("event broker connection failed")
		}
		defer publisher.Close()
	} else {
		log.Warn().Msg("AMQP_URL not set, outcome events disabled")
	}

	eng := engine.New(engine.Deps{
		Campaigns: campaignRepo,
		Accounts:  accountRepo,
		Customers: customerRepo,
		Logs:      logRepo,
		Usage:     usageRepo,
		Store:     store,
		Limiter:   limiter,
		Monitor:   monitor,
		Warmup:    warm,
		Selector:  sel,
		Variator:  variator.New(),
		Dialer:    newDialer(),
		Events:    publisher,
		Logger:    logging.WithComponent("engine"),
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go eng.RunScheduler(ctx)
	go eng.RunWorkers(ctx, workerRescanInterval)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	log.Info().Msg("shutting down")
	cancel()
	// give in-flight iterations a moment to observe cancellation
	time.Sleep(2 * time.Second)
}

// newDialer builds the transport. Only the simulated network ships so
// far; a real client slots in behind the same Dialer interface.
func newDialer() transport.Dialer {
	seed, _ := strconv.ParseInt(os.Getenv("TRANSPORT_MOCK_SEED"), 10, 64)
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return transport.NewMockDialer(seed)
}

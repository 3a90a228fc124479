// cmd/seeder/main.go

// The seeder applies the schema and loads a small demo dataset so a dev
// environment can run the engine against the mock transport right away.
package main

import (
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/tgorbit/tgads-backend/internal/config"
	"github.com/tgorbit/tgads-backend/internal/db"
	"github.com/tgorbit/tgads-backend/internal/logging"
	"github.com/tgorbit/tgads-backend/internal/model"
	"github.com/tgorbit/tgads-backend/internal/repository"
)

func main() {
	// a missing .env just means we rely on OS environment variables
	_ = godotenv.Load()

	cfg := config.Load()
	logging.Init(logging.Config{Level: cfg.LogLevel, JSONOutput: cfg.LogJSON})
	log := logging.WithComponent("seeder")

	conn, err := db.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("database connection failed")
	}
	defer conn.Close()

	schemaPath := "seed/schema.sql"
	if len(os.Args) > 1 {
		schemaPath = os.Args[1]
	}
	schema, err := os.ReadFile(schemaPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", schemaPath).Msg("failed to read schema")
	}
	if _, err := conn.Exec(string(schema)); err != nil {
		log.Fatal().Err(err).Msg("failed to apply schema")
	}
	log.Info().Str("path", schemaPath).Msg("schema applied")

	customerRepo := &repository.CustomerRepository{DB: conn}
	accountRepo := &repository.AccountRepository{DB: conn}
	groupRepo := &repository.GroupRepository{DB: conn}
	campaignRepo := &repository.CampaignRepository{DB: conn}
	marketListRepo := &repository.MarketListRepository{DB: conn}

	customer := &model.Customer{
		Name:             "Demo Agency",
		Email:            "demo@example.com",
		APIKey:           "demo-api-key",
		SubscriptionTier: "starter",
		IsActive:         true,
	}
	if err := customerRepo.Create(customer); err != nil {
		log.Fatal().Err(err).Msg("failed to seed customer")
	}

	accounts := []*model.Account{
		{
			OwnerCustomerID: customer.ID,
			PhoneNumber:     "+10000000001",
			SessionName:     "demo-session-1",
			APIID:           10001,
			APIHash:         "demo-hash-1",
			Status:          model.AccountWarming,
		},
		{
			OwnerCustomerID: customer.ID,
			PhoneNumber:     "+10000000002",
			SessionName:     "demo-session-2",
			APIID:           10002,
			APIHash:         "demo-hash-2",
			Status:          model.AccountWarming,
		},
	}
	for _, a := range accounts {
		if err := accountRepo.Create(a); err != nil {
			log.Fatal().Err(err).Str("phone", a.PhoneNumber).Msg("failed to seed account")
		}
	}

	groups := []*model.Group{
		{TelegramID: -1001000000001, Username: "@demodeals", Title: "Demo Deals", CooldownMinutes: 60, AllowAds: true, IsActive: true},
		{TelegramID: -1001000000002, Username: "@demomarket", Title: "Demo Market", CooldownMinutes: 120, AllowAds: true, IsActive: true},
		{TelegramID: -1001000000003, Username: "@demoquiet", Title: "No Ads Here", CooldownMinutes: 60, AllowAds: false, IsActive: true},
	}
	for _, g := range groups {
		if err := groupRepo.Create(g); err != nil {
			log.Fatal().Err(err).Str("username", g.Username).Msg("failed to seed group")
		}
	}

	campaign := &model.Campaign{
		CustomerID:      customer.ID,
		Name:            "Demo promo",
		MessageTemplate: "Big spring sale! 🔥\nEverything must go.\nJoin now!",
		IntervalMinutes: 30,
		Status:          model.CampaignActive,
	}
	if err := campaignRepo.Create(campaign); err != nil {
		log.Fatal().Err(err).Msg("failed to seed campaign")
	}

	groupIDs := []uuid.UUID{groups[0].ID, groups[1].ID}
	if err := campaignRepo.AttachGroups(campaign.ID, groupIDs); err != nil {
		log.Fatal().Err(err).Msg("failed to attach groups")
	}

	marketList := &model.MarketList{CustomerID: customer.ID, Name: "Demo markets"}
	if err := marketListRepo.Create(marketList); err != nil {
		log.Fatal().Err(err).Msg("failed to seed market list")
	}
	for _, gid := range groupIDs {
		if err := marketListRepo.AddGroup(marketList.ID, gid); err != nil {
			log.Fatal().Err(err).Msg("failed to fill market list")
		}
	}
	if err := campaignRepo.AttachMarketLists(campaign.ID, []uuid.UUID{marketList.ID}); err != nil {
		log.Fatal().Err(err).Msg("failed to attach market list")
	}
	accountIDs := []uuid.UUID{accounts[0].ID, accounts[1].ID}
	if err := campaignRepo.AttachAccounts(campaign.ID, accountIDs); err != nil {
		log.Fatal().Err(err).Msg("failed to attach accounts")
	}

	fmt.Println("seeded demo customer with API key: demo-api-key")
}

package main // Entry point package

import (
	"log"  // Logging library
	"time" // Durations for token TTL

	"github.com/joho/godotenv"    // Loads .env files into the environment
	"github.com/labstack/echo/v4" // Echo web framework

	"github.com/solara-labs/mint-reservation/internal/chain"      // Solana RPC client, payment builder and minter
	"github.com/solara-labs/mint-reservation/internal/config"     // Internal config loader
	"github.com/solara-labs/mint-reservation/internal/database"   // MySQL connection helper
	"github.com/solara-labs/mint-reservation/internal/handler"    // HTTP handlers
	"github.com/solara-labs/mint-reservation/internal/mint"       // Reservation protocol service
	"github.com/solara-labs/mint-reservation/internal/queue"      // RabbitMQ consumer
	"github.com/solara-labs/mint-reservation/internal/repository" // Data access layer
	"github.com/solara-labs/mint-reservation/internal/router"     // Internal router setup
	queue_publisher "github.com/solara-labs/mint-reservation/internal/service"
	"github.com/solara-labs/mint-reservation/internal/worker" // Scheduled reaper and refund notifier
)

func main() {
	// Load .env if present; real deployments set the environment directly.
	if err := godotenv.Load(); err != nil {
		log.Printf("no .env file loaded: %v", err)
	}
	cfg := config.Load() // Load environment config

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	// Redis is optional: when unreachable, rate limiting and response
	// caching are disabled and the service still works.
	rdb := config.NewRedisClient()

	slots := repository.NewSlotRepo(db)
	refunds := repository.NewRefundRepo(db)
	audits := repository.NewAuditRepo(db)

	chainClient, err := chain.NewClient(cfg.RPCEndpoint, cfg.SellerPubkey, cfg.PriceLamports)
	if err != nil {
		log.Fatalf("chain client: %v", err)
	}
	minter, err := chain.NewMinter(chainClient, cfg.SellerKeyPath, cfg.CollectionMint, cfg.IPFSGateway, cfg.ResourceCID)
	if err != nil {
		log.Fatalf("minter: %v", err)
	}

	publisher := queue_publisher.NewPublisher()
	svc := mint.NewService(slots, refunds, audits, chainClient, minter, publisher, cfg.PriceLamports, cfg.LockTTL)

	// Scheduled jobs: reaper sweep and refund notifier.
	workers, err := worker.New(slots, refunds, publisher, cfg.LockTTL, cfg.ReapEvery, cfg.NotifyEvery)
	if err != nil {
		log.Fatalf("workers: %v", err)
	}
	if err := workers.Start(); err != nil {
		log.Fatalf("workers: %v", err)
	}
	defer workers.Stop()

	// Consume mint.completed events in the background for the local audit
	// log.  The consumer reconnects on its own; a dead broker only costs
	// the log entries.
	go func() {
		if err := queue.StartMintConsumer(); err != nil {
			log.Printf("mint consumer stopped: %v", err)
		}
	}()

	e := echo.New() // Create Echo instance
	router.RegisterRoutes(e)
	router.RegisterMint(e, handler.NewMintHandler(svc), rdb)
	router.RegisterInfo(e, handler.NewInfoHandler(slots, cfg.PriceLamports), rdb)
	router.RegisterRefunds(e, handler.NewRefundHandler(slots, refunds, cfg.PriceLamports), rdb)
	router.RegisterAdmin(e, handler.NewAdminHandler(
		slots, refunds, cfg.AdminUser, cfg.AdminPassHash, cfg.JWTSecret,
		time.Duration(cfg.AccessTTLMin)*time.Minute,
	), cfg.JWTSecret)

	addr := ":" + cfg.Port                                // Address string with port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env) // Print startup info

	if err := e.Start(addr); err != nil { // Start HTTP server
		log.Fatal(err) // Log and exit if server fails
	}
}

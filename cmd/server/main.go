package main // Entry point package

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/iliyamo/smart-parking/internal/config"
	"github.com/iliyamo/smart-parking/internal/database"
	"github.com/iliyamo/smart-parking/internal/handler"
	"github.com/iliyamo/smart-parking/internal/middleware"
	"github.com/iliyamo/smart-parking/internal/pricing"
	"github.com/iliyamo/smart-parking/internal/queue"
	"github.com/iliyamo/smart-parking/internal/repository"
	"github.com/iliyamo/smart-parking/internal/router"
	"github.com/iliyamo/smart-parking/internal/session"
)

func main() {
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(cfg.DB)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()
	if err := database.Migrate(ctx, db); err != nil {
		log.Fatalf("migrate: %v", err)
	}

	rdb := config.NewRedisClient()
	if rdb == nil {
		log.Printf("redis unavailable: rate limiting and caches disabled")
	} else {
		defer rdb.Close()
	}

	var publisher queue.Publisher = queue.NopPublisher{}
	if cfg.EventsEnabled {
		amqpPub := queue.NewAMQPPublisher(cfg.BrokerURL)
		defer amqpPub.Close()
		publisher = amqpPub
	}
	if cfg.AuditConsumer {
		go func() {
			if err := queue.StartAuditConsumer(ctx, cfg.BrokerURL, cfg.AuditDir); err != nil && !errors.Is(err, context.Canceled) {
				log.Printf("audit consumer stopped: %v", err)
			}
		}()
	}

	rules := &pricing.CachedRuleSource{
		Next:   pricing.DBRuleSource{Rules: repository.NewPricingRuleRepo(db)},
		Client: rdb,
		TTL:    cfg.PricingCache,
	}
	engine, err := session.NewEngine(db, session.Options{
		NodeID:    cfg.NodeID,
		Rules:     rules,
		Fees:      pricing.NewEngine(cfg.Pricing),
		Publisher: publisher,
	})
	if err != nil {
		log.Fatalf("session engine: %v", err)
	}

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Recover())
	e.Use(echomw.Logger())

	cache := middleware.NewResponseCache(config.LoadCacheConfig(), rdb)
	router.RegisterRoutes(e, db)
	router.RegisterParking(e, handler.NewParkingHandler(engine, cache), cfg.JWTSecret, rdb, config.LoadRateLimitConfig(), cache)

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s, db=%s)", addr, cfg.Env, db.Dialect)
	go func() {
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal(err)
		}
	}()

	<-ctx.Done()
	log.Printf("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownPeriod)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown: %v", err)
	}
}

package main

import (
	"log"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/adnanhaider/course-review-portal/internal/config"
	"github.com/adnanhaider/course-review-portal/internal/database"
	"github.com/adnanhaider/course-review-portal/internal/handler"
	"github.com/adnanhaider/course-review-portal/internal/queue"
	"github.com/adnanhaider/course-review-portal/internal/repository"
	"github.com/adnanhaider/course-review-portal/internal/router"
	"github.com/adnanhaider/course-review-portal/internal/service"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg := config.Load()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	// Redis is optional. A nil client degrades revocation checks, rate
	// limiting and the summary cache to no-ops.
	rdb := config.NewRedisClient()
	if rdb != nil {
		defer rdb.Close()
	}

	users := repository.NewUserRepo(db)
	terms := repository.NewTermRepo(db)
	catalog := repository.NewCatalogRepo(db)
	offerings := repository.NewOfferingRepo(db)
	ratings := repository.NewRatingRepo(db)
	summaries := repository.NewSummaryRepo(db)
	tokens := repository.NewTokenRepo(db)
	verifications := repository.NewVerificationRepo(db)
	audits := repository.NewAuditRepo(db)
	revoked := repository.NewRevocationRepo(rdb)

	auditor := service.NewAuditor(audits)
	cache := service.NewSummaryCache(rdb, config.LoadSummaryCacheConfig())
	eligibility := &service.EligibilityService{Terms: terms, Offerings: offerings, Ratings: ratings}
	lifecycle := &service.TermService{
		Terms:     terms,
		Offerings: offerings,
		Ratings:   ratings,
		Summaries: summaries,
		Audit:     auditor,
	}

	authH := &handler.AuthHandler{
		Cfg:           cfg,
		Users:         users,
		Tokens:        tokens,
		Verifications: verifications,
		Catalog:       catalog,
		Revoked:       revoked,
		Audit:         auditor,
	}
	ratingH := &handler.RatingHandler{
		Ratings:     ratings,
		Offerings:   offerings,
		Terms:       terms,
		Users:       users,
		Summaries:   summaries,
		Eligibility: eligibility,
		Cache:       cache,
		Audit:       auditor,
	}
	termH := &handler.AdminTermHandler{Terms: terms, Lifecycle: lifecycle, Cache: cache}
	offeringH := &handler.AdminOfferingHandler{Offerings: offerings, Catalog: catalog, Terms: terms, Audit: auditor}
	userH := &handler.AdminUserHandler{Cfg: cfg, Users: users, Audit: auditor}

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Recover())
	e.Use(echomw.Logger())

	router.RegisterRoutes(e)
	router.RegisterAuth(e, authH, cfg.JWTSecret, revoked, rdb, config.LoadRateLimitConfig())
	router.RegisterRatings(e, ratingH, cfg.JWTSecret, revoked)
	router.RegisterAdmin(e, termH, offeringH, userH, ratingH, cfg.JWTSecret, revoked)

	// Audit events are mirrored to a local log file by a background
	// consumer. It reconnects on its own; a missing broker only costs
	// the mirror, never the API.
	go func() {
		if err := queue.StartAuditConsumer(); err != nil {
			log.Printf("audit consumer stopped: %v", err)
		}
	}()

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)
	if err := e.Start(addr); err != nil {
		log.Fatal(err)
	}
}

package server

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/crypto/bcrypt"

	"github.com/pravin-sketch/studyflow-ai1/config"
	"github.com/pravin-sketch/studyflow-ai1/internal/rag"
	"github.com/pravin-sketch/studyflow-ai1/internal/runtime"
	"github.com/pravin-sketch/studyflow-ai1/internal/store"
	"github.com/pravin-sketch/studyflow-ai1/internal/study"
	"github.com/pravin-sketch/studyflow-ai1/internal/topic"
	"github.com/pravin-sketch/studyflow-ai1/internal/usage"
	"github.com/pravin-sketch/studyflow-ai1/provider"
)

func withAuth(secret []byte) echo.MiddlewareFunc {
	return runtime.EchoAuthMiddleware(secret)
}

// Run wires every dependency and serves HTTP until the listener stops.
func Run(cfg *config.Config) error {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	// Unified HTTP error handler with structured JSON and logging
	baseLogger := log.New(log.Writer(), "[HTTP] ", log.LstdFlags)
	e.HTTPErrorHandler = func(err error, c echo.Context) {
		code := http.StatusInternalServerError
		msg := err.Error()
		if he, ok := err.(*echo.HTTPError); ok {
			code = he.Code
			if he.Message != nil {
				msg = fmt.Sprint(he.Message)
			}
		}
		req := c.Request()
		baseLogger.Printf("%d %s %s from %s: %v", code, req.Method, req.URL.Path, c.RealIP(), err)
		if !c.Response().Committed {
			_ = c.JSON(code, map[string]interface{}{"error": msg})
		}
	}
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type", "Cookie", "Authorization"},
		AllowCredentials: true,
	}))

	e.GET("/healthz", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	if err := cfg.Retrieval.Validate(); err != nil {
		return err
	}
	dsn, err := cfg.Databases.Postgres.DSN()
	if err != nil {
		return err
	}
	if err := Migrate("file://migrations", dsn, "up", 0); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	ctx := context.Background()
	st, err := store.NewWithDSN(ctx, dsn)
	if err != nil {
		return err
	}

	rdb, err := usage.Conn(ctx, cfg.Databases.Redis.Addr(), cfg.Databases.Redis.Pass, cfg.Databases.Redis.DB, cfg.Databases.Redis.Timeout)
	if err != nil {
		baseLogger.Printf("redis unavailable, usage tracking degraded: %v", err)
	}
	tracker := usage.NewTracker(rdb)

	if cfg.Providers.Groq.APIKey == "" {
		return fmt.Errorf("groq api key not configured (providers.groq.api_key)")
	}
	llm, err := provider.NewProvider(provider.Groq, cfg.Providers.Groq)
	if err != nil {
		return err
	}
	models := modelTable(cfg)
	detector := topic.NewDetector(llm, models)
	generator := study.NewGenerator(llm, models)
	ragSessions := rag.NewSessions()

	search, err := NewDocSearch()
	if err != nil {
		return err
	}
	if docs, err := st.SearchableDocuments(ctx); err != nil {
		baseLogger.Printf("search reindex skipped: %v", err)
	} else {
		for _, d := range docs {
			_ = search.Index(d.ID, docEntry{
				Filename:  d.Filename,
				Subject:   d.Subject,
				Category:  d.Category,
				UserEmail: d.UserEmail,
				Text:      d.Text,
				CreatedAt: d.CreatedAt,
			})
		}
	}

	secret, err := runtime.LoadJWTSecret(cfg)
	if err != nil {
		return err
	}
	if err := seedAdmin(ctx, st); err != nil {
		return err
	}

	api := e.Group("/api")

	auth := &AuthHandler{Store: st, Secret: secret, Secure: cfg.General.Env == "prod"}
	auth.Register(api.Group("/auth"))

	me := &MeHandler{Store: st, Usage: tracker}
	me.Register(api.Group("/me"), secret)

	sessGroup := api.Group("/sessions")
	sessions := &SessionsHandler{
		Store:  st,
		LLM:    llm,
		Models: models,
		Rag:    ragSessions,
		Usage:  tracker,
		TopK:   cfg.Retrieval.TopK,
		Logger: log.New(log.Writer(), "[CHAT] ", log.LstdFlags),
	}
	sessions.Register(sessGroup, secret)

	docs := &DocumentsHandler{
		Store:        st,
		LLM:          llm,
		Detector:     detector,
		Study:        generator,
		Rag:          ragSessions,
		Search:       search,
		Models:       models,
		ChunkSize:    cfg.Retrieval.ChunkSize,
		ChunkOverlap: cfg.Retrieval.ChunkOverlap,
		Logger:       log.New(log.Writer(), "[DOCS] ", log.LstdFlags),
	}
	docs.Register(sessGroup)
	api.POST("/transcribe", docs.Transcribe, withAuth(secret))

	admin := &AdminHandler{Store: st, Search: search, Secret: secret}
	admin.Register(api.Group("/admin"), secret)

	if cfg.Janitor.Enabled {
		janitor := &Janitor{
			Store:     st,
			Rdb:       rdb,
			Schedule:  cfg.Janitor.Schedule,
			Retention: cfg.Janitor.Retention,
			Stop:      make(chan struct{}),
			Logger:    log.New(log.Writer(), "[JANITOR] ", log.LstdFlags),
		}
		janitor.Start()
	}

	return e.Start(cfg.General.Listen)
}

// modelTable merges config model overrides over the shipped defaults.
func modelTable(cfg *config.Config) topic.ModelTable {
	models := topic.ModelTable{}
	for c, m := range topic.DefaultModels {
		models[c] = m
	}
	for name, m := range cfg.Providers.Groq.Models {
		c := topic.Category(name)
		if c.Valid() && m != "" {
			models[c] = m
		}
	}
	return models
}

// seedAdmin creates the default admin account on first boot. The
// password comes from STUDYFLOW_ADMIN_PASSWORD; without it no account
// is seeded and the admin console stays locked.
func seedAdmin(ctx context.Context, st *store.Store) error {
	pass := os.Getenv("STUDYFLOW_ADMIN_PASSWORD")
	if pass == "" {
		return nil
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(pass), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	return st.SeedAdmin(ctx, "admin", string(hash))
}

// Package server exposes the HTTP API: question answering over ingested
// telemetry, the chat proxy and operational endpoints.
package server

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/opsmind/monchat/config"
	"github.com/opsmind/monchat/internal/embedding"
	"github.com/opsmind/monchat/internal/llm"
	"github.com/opsmind/monchat/internal/retrieval"
	"github.com/opsmind/monchat/internal/vectorstore"
)

// Run wires shared dependencies and serves the API until the process exits.
func Run(cfg *config.Config) error {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())

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
		AllowOrigins:     []string{cfg.General.FrontendOrigin},
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type"},
		AllowCredentials: true,
	}))

	e.GET("/", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"app": cfg.General.AppName, "env": cfg.General.Env})
	})
	e.GET("/healthz", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	(&HealthHandler{}).Register(e.Group("/health"))

	// Shared dependencies (top-level DI). The store stays nil when the vector
	// backend is disabled; retrieval then serves the keyword tier only.
	var store *vectorstore.Store
	if cfg.Storage.Postgres.Enabled {
		dsn, err := cfg.Storage.Postgres.DSN()
		if err != nil {
			return err
		}
		store, err = vectorstore.New(context.Background(), dsn, cfg.Storage.Postgres.EmbeddingDim)
		if err != nil {
			return err
		}
	}
	embedder := embedding.Default(cfg.Embedding)
	retriever := retrieval.NewService(store, embedder, retrieval.NewKeywordRanker(cfg.MockDB.Dir), nil)

	api := e.Group("/api")
	(&QAHandler{Retriever: retriever}).Register(api.Group("/qa"))
	(&ChatHandler{Client: llm.NewClient(cfg.LLM)}).Register(api.Group("/llm"))

	return e.Start(cfg.Server.Address)
}

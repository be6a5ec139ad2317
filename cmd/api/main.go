package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"coachscope.org/internal/audit"
	"coachscope.org/internal/config"
	"coachscope.org/internal/embedder"
	"coachscope.org/internal/httpapi"
	"coachscope.org/internal/identity"
	"coachscope.org/internal/obs"
	"coachscope.org/internal/retrieval"
	"coachscope.org/internal/scope"
	"coachscope.org/internal/store/pg"
	"coachscope.org/internal/stream"
)

var (
	version = "0.3.0"
	commit  = "dev"
)

func main() {
	obs.Init()
	obs.InitBuildInfo(version, commit)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	store, err := pg.Open(cfg.PgDSN)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}

	var emb embedder.Embedder
	switch cfg.EmbedProvider {
	case "ollama":
		emb = embedder.NewOllamaEmbedder(embedder.OllamaConfig{
			Host:    cfg.EmbedEndpoint,
			Model:   cfg.EmbedModel,
			Timeout: cfg.EmbedTimeout,
		})
	default:
		emb = embedder.NewOpenAIEmbedder(embedder.OpenAIConfig{
			BaseURL:    cfg.EmbedEndpoint,
			APIKey:     cfg.EmbedAPIKey,
			Model:      cfg.EmbedModel,
			Dimensions: cfg.EmbedDimensions,
			Timeout:    cfg.EmbedTimeout,
		})
	}

	events := stream.New()
	recorder := audit.NewRecorder(store,
		audit.WithQueueSize(cfg.AuditQueueSize),
		audit.WithSink(events))
	resolver := identity.NewResolver(store)
	scopes := scope.NewBuilder(store)
	engine := retrieval.NewEngine(scopes, store, emb, recorder,
		retrieval.WithEmbedTimeout(cfg.EmbedTimeout))

	api := httpapi.New(httpapi.Deps{
		Version:    version,
		ReadyProbe: httpapi.ReadyProbe{DB: store.DB()},
		Resolver:   resolver,
		Engine:     engine,
		Recorder:   recorder,
		Admin:      store,
		Items:      store,
		Embedder:   emb,
		Stream:     events,
		RateRPS:    cfg.RateLimitRPS,
		RateBurst:  cfg.RateLimitBurst,
	})

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		// no WriteTimeout: /v1/admin/events holds long-lived SSE connections
		IdleTimeout: 60 * time.Second,
	}

	log.Printf("Starting coachscope-api %s on %s", version, srv.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = srv.Shutdown(ctx)
	_ = recorder.Close(ctx)
	_ = store.Close()
	log.Println("Stopped")
}

package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"undergame/internal/api"
	"undergame/internal/archive"
	"undergame/internal/config"
	"undergame/internal/db"
	"undergame/internal/dialogue"
	"undergame/internal/game"
	"undergame/internal/oracle"
	redisdb "undergame/internal/redis"
	"undergame/internal/retrieval"
	"undergame/internal/scenario"
)

func main() {
	cfg, err := config.LoadConfig("config.json")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Config error: %v\n", err)
		os.Exit(1)
	}
	if err := db.Init(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "DB init error: %v\n", err)
		os.Exit(1)
	}
	rdb := redisdb.NewClient(cfg)

	scen, err := scenario.Load(cfg.Scenario.Path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Scenario error: %v\n", err)
		os.Exit(1)
	}

	client := oracle.NewClient(cfg.Oracle)
	delegate := oracle.NewDelegate(client, cfg.Oracle)
	responder := oracle.NewResponder(client, cfg.Oracle)

	engine := game.NewRoundEngine(scen.InitialState(), scen.UndergamePlot(), delegate)
	store := archive.NewStore(db.DB)
	engine.SetArchiver(store)

	// Grounding is optional; without it personas speak from profile alone.
	var retriever dialogue.Retriever
	if cfg.Retrieval.Enabled {
		vectorStore, err := retrieval.NewVectorStore(
			cfg.Retrieval.Qdrant.URL,
			cfg.Retrieval.Qdrant.Collection,
			cfg.Retrieval.Qdrant.APIKey,
		)
		if err != nil {
			log.Printf("[Main] WARNING: failed to connect vector store, running ungrounded: %v", err)
		} else {
			embedder := retrieval.NewEmbedder(cfg.Retrieval.EmbeddingURL)
			retriever = retrieval.NewRetriever(vectorStore, embedder, cfg.Retrieval.TopK)

			// Ingestion can take minutes on first boot; do it off the
			// serving path.
			ingestor := retrieval.NewIngestor(vectorStore, embedder)
			go func() {
				ctx := context.Background()
				for _, src := range scen.RAGSources {
					if err := ingestor.Ingest(ctx, src.ParticipantID, src.URLs); err != nil {
						log.Printf("[Main] WARNING: ingestion failed for %s: %v", src.ParticipantID, err)
					}
				}
			}()
			log.Printf("[Main] Retrieval grounding enabled (%d source sets)", len(scen.RAGSources))
		}
	} else {
		log.Printf("[Main] Retrieval grounding disabled in config")
	}

	session := dialogue.NewSession(
		dialogue.NewRedisCheckpointStore(rdb),
		responder,
		retriever,
		cfg.Dialogue,
	)

	gameAPI := api.NewGameAPI(engine, scen, store)
	dialogueAPI := api.NewDialogueAPI(session, gameAPI)

	r := api.SetupRouter(cfg, rdb, gameAPI, dialogueAPI)
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	fmt.Printf("Starting server on %s%s\n", addr, cfg.Server.Subpath)
	if err := r.Run(addr); err != nil {
		fmt.Fprintf(os.Stderr, "Server error: %v\n", err)
		os.Exit(1)
	}
}

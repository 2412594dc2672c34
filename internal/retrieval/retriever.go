package retrieval

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"
)

// Retriever answers grounding queries against per-participant knowledge
// bases. Implements the dialogue package's Retriever interface.
type Retriever struct {
	store    *VectorStore
	embedder *Embedder
	topK     int
}

func NewRetriever(store *VectorStore, embedder *Embedder, topK int) *Retriever {
	if topK <= 0 {
		topK = 3
	}
	return &Retriever{
		store:    store,
		embedder: embedder,
		topK:     topK,
	}
}

// Retrieve embeds the query and returns the closest passages stored for the
// participant. limit <= 0 uses the configured topK.
func (r *Retriever) Retrieve(ctx context.Context, participantID, query string, limit int) ([]string, error) {
	if limit <= 0 {
		limit = r.topK
	}
	embedding, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	return r.store.Search(ctx, embedding, participantID, limit)
}

// Ingestor populates the vector store from web sources.
type Ingestor struct {
	store    *VectorStore
	embedder *Embedder
	client   *http.Client
}

func NewIngestor(store *VectorStore, embedder *Embedder) *Ingestor {
	return &Ingestor{
		store:    store,
		embedder: embedder,
		client:   &http.Client{Timeout: 30 * time.Second},
	}
}

// Ingest fetches, chunks, embeds and stores the given URLs for one
// participant. Already-populated participants are skipped so restarts do
// not duplicate passages. Individual page failures are logged and skipped.
func (i *Ingestor) Ingest(ctx context.Context, participantID string, urls []string) error {
	if len(urls) == 0 {
		return nil
	}

	existing, err := i.store.Count(ctx, participantID)
	if err != nil {
		return fmt.Errorf("failed to check existing passages: %w", err)
	}
	if existing > 0 {
		log.Printf("[Retrieval] %s already has %d passages, skipping ingestion", participantID, existing)
		return nil
	}

	var passages []Passage
	for _, pageURL := range urls {
		text, err := FetchArticle(ctx, i.client, pageURL)
		if err != nil {
			log.Printf("[Retrieval] WARNING: failed to extract %s: %v", pageURL, err)
			continue
		}
		for idx, chunk := range ChunkText(text, 2000) {
			embedding, err := i.embedder.Embed(ctx, chunk)
			if err != nil {
				log.Printf("[Retrieval] WARNING: failed to embed chunk %d of %s: %v", idx, pageURL, err)
				continue
			}
			passages = append(passages, Passage{
				ParticipantID: participantID,
				Content:       chunk,
				SourceURL:     pageURL,
				ChunkIndex:    idx,
				Embedding:     embedding,
			})
		}
	}
	if len(passages) == 0 {
		log.Printf("[Retrieval] WARNING: no passages ingested for %s", participantID)
		return nil
	}

	if err := i.store.Store(ctx, passages); err != nil {
		return fmt.Errorf("failed to store passages: %w", err)
	}
	log.Printf("[Retrieval] Ingested %d passages for %s from %d sources", len(passages), participantID, len(urls))
	return nil
}

package retrieval

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
)

// Passage is one chunk of ingested background text, bound to a participant.
type Passage struct {
	ID            string
	ParticipantID string
	Content       string
	SourceURL     string
	ChunkIndex    int
	Embedding     []float32
}

// VectorStore handles all vector database operations
type VectorStore struct {
	client         *qdrant.Client
	collectionName string
}

// NewVectorStore connects to qdrant and ensures the collection exists.
func NewVectorStore(qdrantURL string, collectionName string, apiKey string) (*VectorStore, error) {
	// Strip http:// or https:// prefix and any port
	qdrantURL = strings.TrimPrefix(qdrantURL, "http://")
	qdrantURL = strings.TrimPrefix(qdrantURL, "https://")

	host := qdrantURL
	if idx := strings.Index(qdrantURL, ":"); idx != -1 {
		host = qdrantURL[:idx]
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   host,
		Port:   6334, // gRPC port
		APIKey: apiKey,
		UseTLS: false,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Qdrant client: %w", err)
	}

	s := &VectorStore{
		client:         client,
		collectionName: collectionName,
	}
	if err := s.ensureCollection(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to ensure collection: %w", err)
	}
	return s, nil
}

func (s *VectorStore) ensureCollection(ctx context.Context) error {
	exists, err := s.client.CollectionExists(ctx, s.collectionName)
	if err != nil {
		return fmt.Errorf("failed to check collection existence: %w", err)
	}
	if exists {
		return nil
	}

	// 384 dimensions (all-MiniLM-L6-v2)
	err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: s.collectionName,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     384,
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}

	fieldType := qdrant.FieldType(qdrant.PayloadSchemaType_Keyword)
	_, err = s.client.CreateFieldIndex(ctx, &qdrant.CreateFieldIndexCollection{
		CollectionName: s.collectionName,
		FieldName:      "participant_id",
		FieldType:      &fieldType,
		Wait:           qdrant.PtrOf(true),
	})
	if err != nil {
		return fmt.Errorf("failed to create participant_id index: %w", err)
	}
	return nil
}

// Store upserts a batch of embedded passages.
func (s *VectorStore) Store(ctx context.Context, passages []Passage) error {
	if len(passages) == 0 {
		return nil
	}
	points := make([]*qdrant.PointStruct, 0, len(passages))
	for _, p := range passages {
		if p.ID == "" {
			p.ID = uuid.New().String()
		}
		points = append(points, &qdrant.PointStruct{
			Id:      qdrant.NewIDUUID(p.ID),
			Vectors: qdrant.NewVectors(p.Embedding...),
			Payload: map[string]*qdrant.Value{
				"participant_id": qdrant.NewValueString(strings.ToLower(p.ParticipantID)),
				"content":        qdrant.NewValueString(p.Content),
				"source_url":     qdrant.NewValueString(p.SourceURL),
				"chunk_index":    qdrant.NewValueInt(int64(p.ChunkIndex)),
			},
		})
	}
	_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: s.collectionName,
		Points:         points,
	})
	return err
}

// Search returns the contents of the closest passages for one participant.
func (s *VectorStore) Search(ctx context.Context, queryEmbedding []float32, participantID string, limit int) ([]string, error) {
	if limit <= 0 {
		limit = 3
	}
	filter := &qdrant.Filter{
		Must: []*qdrant.Condition{
			qdrant.NewMatch("participant_id", strings.ToLower(participantID)),
		},
	}

	searchResult, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: s.collectionName,
		Query:          qdrant.NewQuery(queryEmbedding...),
		Filter:         filter,
		Limit:          qdrant.PtrOf(uint64(limit)),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}

	contents := make([]string, 0, len(searchResult))
	for _, point := range searchResult {
		if val, ok := point.Payload["content"]; ok && val.GetStringValue() != "" {
			contents = append(contents, val.GetStringValue())
		}
	}
	return contents, nil
}

// Count returns how many passages are stored for a participant. Used to
// skip re-ingestion on restart.
func (s *VectorStore) Count(ctx context.Context, participantID string) (uint64, error) {
	count, err := s.client.Count(ctx, &qdrant.CountPoints{
		CollectionName: s.collectionName,
		Filter: &qdrant.Filter{
			Must: []*qdrant.Condition{
				qdrant.NewMatch("participant_id", strings.ToLower(participantID)),
			},
		},
	})
	if err != nil {
		return 0, err
	}
	return count, nil
}

// DropAll wipes and recreates the collection.
func (s *VectorStore) DropAll(ctx context.Context) error {
	if err := s.client.DeleteCollection(ctx, s.collectionName); err != nil {
		return fmt.Errorf("failed to delete collection: %w", err)
	}
	log.Printf("[Retrieval] Dropped collection %s", s.collectionName)
	return s.ensureCollection(ctx)
}

package storage

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"

	"github.com/bull/pdf-ingest/internal/document"
	"github.com/bull/pdf-ingest/internal/embedding"
)

const vectorName = "content"

// pointNamespace derives Qdrant point UUIDs from canonical IDs, which are not
// valid Qdrant IDs themselves.
var pointNamespace = uuid.MustParse("6f1c3b0e-5d0a-4f7e-9a51-2b8f8c0d4e11")

// QdrantConfig holds connection settings for a Qdrant server.
type QdrantConfig struct {
	Host       string
	Port       int
	APIKey     string
	UseTLS     bool
	Collection string
}

// QdrantIndex stores segments in a Qdrant collection. Vectors are computed
// with the configured embedder at upsert time.
type QdrantIndex struct {
	client     *qdrant.Client
	embedder   embedding.Embedder
	collection string
	logger     *slog.Logger
}

// NewQdrantIndex connects to Qdrant, waits for it to become healthy and
// ensures the collection exists. It fails fast if Qdrant is unreachable.
func NewQdrantIndex(ctx context.Context, cfg QdrantConfig, embedder embedding.Embedder, logger *slog.Logger) (*QdrantIndex, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Collection == "" {
		cfg.Collection = DefaultCollection
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create qdrant client: %w", err)
	}

	idx := &QdrantIndex{
		client:     client,
		embedder:   embedder,
		collection: cfg.Collection,
		logger:     logger,
	}

	if err := idx.healthCheckWithRetry(ctx); err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: %w: %v", ErrIndexUnavailable, ErrQdrantUnreachable, err)
	}

	if err := idx.EnsureCollection(ctx); err != nil {
		client.Close()
		return nil, err
	}

	return idx, nil
}

func newBackoff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 10 * time.Second
	b.MaxElapsedTime = 30 * time.Second
	return backoff.WithContext(b, ctx)
}

// healthCheckWithRetry performs health check with exponential backoff.
func (s *QdrantIndex) healthCheckWithRetry(ctx context.Context) error {
	return backoff.Retry(func() error { return s.Health(ctx) }, newBackoff(ctx))
}

// Health performs a single health check against Qdrant.
func (s *QdrantIndex) Health(ctx context.Context) error {
	result, err := s.client.HealthCheck(ctx)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}

	if result == nil || result.Title == "" {
		return fmt.Errorf("health check returned invalid response")
	}

	return nil
}

// EnsureCollection creates the collection with cosine vectors sized for the
// embedder, plus keyword payload indexes. Idempotent.
func (s *QdrantIndex) EnsureCollection(ctx context.Context) error {
	exists, err := s.client.CollectionExists(ctx, s.collection)
	if err != nil {
		return fmt.Errorf("%w: check collection: %v", ErrIndexUnavailable, err)
	}
	if exists {
		return nil
	}

	err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: s.collection,
		VectorsConfig: qdrant.NewVectorsConfigMap(map[string]*qdrant.VectorParams{
			vectorName: {
				Size:     uint64(s.embedder.Dimension()),
				Distance: qdrant.Distance_Cosine,
			},
		}),
	})
	if err != nil {
		return fmt.Errorf("%w: create collection: %v", ErrIndexUnavailable, err)
	}

	return s.createPayloadIndexes(ctx)
}

// createPayloadIndexes indexes the fields used for lookups and filtering.
func (s *QdrantIndex) createPayloadIndexes(ctx context.Context) error {
	fields := []string{
		document.KeyDocID,
		document.KeySource,
		document.KeySourceType,
		document.KeyContentHash,
	}

	for _, field := range fields {
		_, err := s.client.CreateFieldIndex(ctx, &qdrant.CreateFieldIndexCollection{
			CollectionName: s.collection,
			FieldName:      field,
			FieldType:      qdrant.FieldType_FieldTypeKeyword.Enum(),
		})
		if err != nil {
			return fmt.Errorf("failed to create index for field %s: %w", field, err)
		}
	}

	return nil
}

// PointID maps a canonical segment ID onto a deterministic Qdrant UUID.
func PointID(id string) string {
	return uuid.NewSHA1(pointNamespace, []byte(id)).String()
}

// Exists fetches the points for ids in a single request.
func (s *QdrantIndex) Exists(ctx context.Context, ids []string) (map[string]bool, error) {
	found := make(map[string]bool)
	if len(ids) == 0 {
		return found, nil
	}

	byPoint := make(map[string]string, len(ids))
	pointIDs := make([]*qdrant.PointId, 0, len(ids))
	for _, id := range ids {
		pid := PointID(id)
		if _, dup := byPoint[pid]; dup {
			continue
		}
		byPoint[pid] = id
		pointIDs = append(pointIDs, qdrant.NewIDUUID(pid))
	}

	points, err := s.client.Get(ctx, &qdrant.GetPoints{
		CollectionName: s.collection,
		Ids:            pointIDs,
		WithPayload:    qdrant.NewWithPayloadInclude(document.KeyDocID),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: get points: %v", ErrIndexUnavailable, err)
	}

	for _, p := range points {
		if id, ok := byPoint[p.GetId().GetUuid()]; ok {
			found[id] = true
		}
	}
	return found, nil
}

// Upsert embeds segments and writes them as points.
func (s *QdrantIndex) Upsert(ctx context.Context, ids []string, segments []document.Segment) error {
	if len(ids) != len(segments) {
		return fmt.Errorf("%w: %d ids, %d segments", ErrLengthMismatch, len(ids), len(segments))
	}
	if len(ids) == 0 {
		return nil
	}

	texts := make([]string, len(segments))
	for i, seg := range segments {
		texts[i] = seg.Content
	}
	vectors, err := s.embedder.GenerateEmbeddings(ctx, texts)
	if err != nil {
		return fmt.Errorf("%w: embed segments: %w", ErrIndexUnavailable, err)
	}
	if len(vectors) != len(segments) {
		return fmt.Errorf("embed segments: got %d vectors for %d segments", len(vectors), len(segments))
	}

	points := make([]*qdrant.PointStruct, len(ids))
	for i, id := range ids {
		if len(vectors[i]) != s.embedder.Dimension() {
			return fmt.Errorf("%w: segment %s has %d dimensions, expected %d",
				ErrDimensionMismatch, id, len(vectors[i]), s.embedder.Dimension())
		}
		points[i] = &qdrant.PointStruct{
			Id: qdrant.NewIDUUID(PointID(id)),
			Vectors: qdrant.NewVectorsMap(map[string]*qdrant.Vector{
				vectorName: qdrant.NewVector(vectors[i]...),
			}),
			Payload: qdrant.NewValueMap(payloadFor(id, segments[i])),
		}
	}

	if err := s.upsertWithRetry(ctx, points); err != nil {
		return fmt.Errorf("%w: upsert: %v", ErrIndexUnavailable, err)
	}
	return nil
}

// payloadFor flattens segment metadata into Qdrant-compatible values.
func payloadFor(id string, seg document.Segment) map[string]any {
	payload := make(map[string]any, len(seg.Metadata)+2)
	for k := range seg.Metadata {
		payload[k] = seg.String(k)
	}
	payload[document.KeyPage] = int64(seg.Page())
	payload[document.KeyDocID] = id
	payload["content"] = seg.Content
	return payload
}

// upsertWithRetry performs upsert operation with exponential backoff retry.
func (s *QdrantIndex) upsertWithRetry(ctx context.Context, points []*qdrant.PointStruct) error {
	operation := func() error {
		_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
			CollectionName: s.collection,
			Wait:           qdrant.PtrOf(true),
			Points:         points,
		})
		return err
	}

	return backoff.Retry(operation, newBackoff(ctx))
}

// Count returns the number of points in the collection.
func (s *QdrantIndex) Count(ctx context.Context) (int, error) {
	info, err := s.client.GetCollectionInfo(ctx, s.collection)
	if err != nil {
		return 0, fmt.Errorf("%w: get collection: %v", ErrIndexUnavailable, err)
	}
	return int(info.GetPointsCount()), nil
}

// Query embeds text and returns the k nearest stored segments.
func (s *QdrantIndex) Query(ctx context.Context, text string, k int) ([]Hit, error) {
	if k <= 0 {
		k = 5
	}
	vectors, err := s.embedder.GenerateEmbeddings(ctx, []string{text})
	if err != nil {
		return nil, fmt.Errorf("%w: embed query: %w", ErrIndexUnavailable, err)
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("embed query: got %d vectors", len(vectors))
	}

	using := vectorName
	results, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: s.collection,
		Query:          qdrant.NewQuery(vectors[0]...),
		Using:          &using,
		Limit:          qdrant.PtrOf(uint64(k)),
		WithPayload:    qdrant.NewWithPayload(true),
		WithVectors:    qdrant.NewWithVectors(false),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: query: %v", ErrIndexUnavailable, err)
	}

	hits := make([]Hit, 0, len(results))
	for _, r := range results {
		meta := make(map[string]string, len(r.Payload))
		for key, v := range r.Payload {
			if key == "content" {
				continue
			}
			if key == document.KeyPage {
				meta[key] = fmt.Sprint(v.GetIntegerValue())
				continue
			}
			meta[key] = v.GetStringValue()
		}
		hits = append(hits, Hit{
			ID:       r.Payload[document.KeyDocID].GetStringValue(),
			Content:  r.Payload["content"].GetStringValue(),
			Metadata: meta,
			Score:    float64(r.Score),
		})
	}
	return hits, nil
}

// DeleteCollection drops the collection and recreates it empty.
func (s *QdrantIndex) DeleteCollection(ctx context.Context) error {
	if err := s.client.DeleteCollection(ctx, s.collection); err != nil {
		return fmt.Errorf("%w: delete collection: %v", ErrIndexUnavailable, err)
	}
	s.logger.Info("Deleted collection", "collection", s.collection)
	return s.EnsureCollection(ctx)
}

// Info reports backend, collection and size.
func (s *QdrantIndex) Info(ctx context.Context) (*Info, error) {
	count, err := s.Count(ctx)
	if err != nil {
		return nil, err
	}
	return &Info{Backend: "qdrant", Collection: s.collection, Count: count, Model: s.embedder.Model()}, nil
}

// Close closes the Qdrant client connection.
func (s *QdrantIndex) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}

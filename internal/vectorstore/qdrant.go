package vectorstore

import (
	"context"
	"fmt"
	"net"
	"strconv"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"google.golang.org/grpc"
	grpccodes "google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Tracer for OpenTelemetry instrumentation.
var tracer = otel.Tracer("ragd.vectorstore.qdrant")

// scopeIndexFields are the payload fields indexed on collection creation so
// the mandatory scope filter stays cheap.
var scopeIndexFields = []string{
	payloadKeyTenant,
	payloadKeyProject,
	payloadKeyDocument,
	payloadKeyVisibility,
}

// QdrantConfig holds configuration for the Qdrant gRPC adapter.
type QdrantConfig struct {
	// URL is the Qdrant gRPC endpoint as host:port. The gRPC port is 6334,
	// not the 6333 HTTP REST port. A bare hostname defaults to port 6334.
	URL string `koanf:"url"`

	// UseTLS enables TLS for the gRPC connection.
	UseTLS bool `koanf:"use_tls"`

	// MaxMessageSize is the maximum gRPC message size in bytes.
	// Default: 50MB, large enough for big document batches.
	MaxMessageSize int `koanf:"max_message_size"`

	// UpsertBatchSize caps points per upsert request. Default: 256.
	UpsertBatchSize int `koanf:"upsert_batch_size"`
}

// Validate validates the configuration.
func (c QdrantConfig) Validate() error {
	if c.URL == "" {
		return fmt.Errorf("%w: qdrant url is required", ErrInvalidConfig)
	}
	return nil
}

// ApplyDefaults sets default values for unset fields.
func (c *QdrantConfig) ApplyDefaults() {
	if c.MaxMessageSize == 0 {
		c.MaxMessageSize = 50 * 1024 * 1024
	}
	if c.UpsertBatchSize == 0 {
		c.UpsertBatchSize = 256
	}
}

// QdrantStore is a Store implementation using Qdrant's native gRPC client.
//
// gRPC bypasses Qdrant's HTTP layer and its 256kB payload limit, which
// matters for large upsert batches during ingestion. The store performs no
// internal retries; transient-failure handling belongs to the resilience
// wrapper around it.
type QdrantStore struct {
	client *qdrant.Client
	config QdrantConfig
}

// NewQdrantStore creates a QdrantStore and verifies connectivity.
func NewQdrantStore(config QdrantConfig) (*QdrantStore, error) {
	config.ApplyDefaults()
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	host, port, err := splitQdrantURL(config.URL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   host,
		Port:   port,
		UseTLS: config.UseTLS,
		GrpcOptions: []grpc.DialOption{
			grpc.WithDefaultCallOptions(
				grpc.MaxCallRecvMsgSize(config.MaxMessageSize),
				grpc.MaxCallSendMsgSize(config.MaxMessageSize),
			),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConnectionFailed, err)
	}

	return &QdrantStore{client: client, config: config}, nil
}

// splitQdrantURL parses host:port, defaulting the port to 6334.
func splitQdrantURL(url string) (string, int, error) {
	host, portStr, err := net.SplitHostPort(url)
	if err != nil {
		// No port in the URL: treat the whole string as a host.
		return url, 6334, nil
	}
	port, err := strconv.Atoi(portStr)
	if err != nil || port <= 0 || port > 65535 {
		return "", 0, fmt.Errorf("invalid qdrant port %q", portStr)
	}
	return host, port, nil
}

// Close closes the gRPC connection.
func (s *QdrantStore) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}

// HealthCheck verifies the Qdrant server responds.
func (s *QdrantStore) HealthCheck(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "QdrantStore.HealthCheck")
	defer span.End()

	if _, err := s.client.HealthCheck(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("qdrant health check: %w", err)
	}
	span.SetStatus(codes.Ok, "healthy")
	return nil
}

// EnsureCollection creates the collection with cosine distance and keyword
// indexes on the scope fields if it does not already exist.
func (s *QdrantStore) EnsureCollection(ctx context.Context, collection string, dimensions int) error {
	ctx, span := tracer.Start(ctx, "QdrantStore.EnsureCollection")
	defer span.End()

	span.SetAttributes(
		attribute.String("collection", collection),
		attribute.Int("dimensions", dimensions),
	)

	if err := ValidateCollectionName(collection); err != nil {
		return err
	}
	if dimensions <= 0 {
		return fmt.Errorf("%w: dimensions must be positive, got %d", ErrInvalidConfig, dimensions)
	}

	exists, err := s.collectionExists(ctx, collection)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("checking collection %s: %w", collection, err)
	}
	if exists {
		span.SetStatus(codes.Ok, "exists")
		return nil
	}

	err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(dimensions),
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("creating collection %s: %w", collection, err)
	}

	for _, field := range scopeIndexFields {
		_, err := s.client.CreateFieldIndex(ctx, &qdrant.CreateFieldIndexCollection{
			CollectionName: collection,
			FieldName:      field,
			FieldType:      qdrant.FieldType_FieldTypeKeyword.Enum(),
		})
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return fmt.Errorf("indexing %s on collection %s: %w", field, collection, err)
		}
	}

	span.SetStatus(codes.Ok, "created")
	return nil
}

// collectionExists checks for the collection, mapping NotFound to false.
func (s *QdrantStore) collectionExists(ctx context.Context, collection string) (bool, error) {
	info, err := s.client.GetCollectionInfo(ctx, collection)
	if err != nil {
		if isCollectionMissing(err) {
			return false, nil
		}
		return false, err
	}
	return info != nil, nil
}

// isCollectionMissing reports whether the gRPC error says the collection does
// not exist.
func isCollectionMissing(err error) bool {
	st, ok := status.FromError(err)
	return ok && st.Code() == grpccodes.NotFound
}

// Upsert writes records in batches, idempotent by record ID.
func (s *QdrantStore) Upsert(ctx context.Context, collection string, records []Record) error {
	ctx, span := tracer.Start(ctx, "QdrantStore.Upsert")
	defer span.End()

	span.SetAttributes(
		attribute.String("collection", collection),
		attribute.Int("record_count", len(records)),
	)

	if err := ValidateCollectionName(collection); err != nil {
		return err
	}
	if len(records) == 0 {
		return nil
	}

	points := make([]*qdrant.PointStruct, len(records))
	for i, rec := range records {
		if err := rec.Validate(); err != nil {
			span.RecordError(err)
			return fmt.Errorf("record %d: %w", i, err)
		}
		points[i] = &qdrant.PointStruct{
			Id:      qdrantPointID(rec.ID),
			Vectors: qdrant.NewVectors(rec.Vector...),
			Payload: recordPayload(rec),
		}
	}

	for start := 0; start < len(points); start += s.config.UpsertBatchSize {
		end := start + s.config.UpsertBatchSize
		if end > len(points) {
			end = len(points)
		}
		_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
			CollectionName: collection,
			Points:         points[start:end],
		})
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return fmt.Errorf("upserting points %d-%d to %s: %w", start, end, collection, err)
		}
	}

	span.SetStatus(codes.Ok, "success")
	return nil
}

// qdrantPointID maps a record ID to a Qdrant point ID. Record IDs are UUIDs
// by construction; anything else is hashed into one deterministically so the
// same record ID always lands on the same point.
func qdrantPointID(id string) *qdrant.PointId {
	if _, err := uuid.Parse(id); err == nil {
		return qdrant.NewIDUUID(id)
	}
	return qdrant.NewIDUUID(uuid.NewSHA1(uuid.NameSpaceOID, []byte(id)).String())
}

// recordPayload builds the point payload: scope fields, visibility, the
// record ID, and the caller's payload map.
func recordPayload(rec Record) map[string]*qdrant.Value {
	payload := map[string]*qdrant.Value{
		"id":                 {Kind: &qdrant.Value_StringValue{StringValue: rec.ID}},
		payloadKeyTenant:     {Kind: &qdrant.Value_StringValue{StringValue: rec.TenantID}},
		payloadKeyProject:    {Kind: &qdrant.Value_StringValue{StringValue: rec.ProjectID}},
		payloadKeyDocument:   {Kind: &qdrant.Value_StringValue{StringValue: rec.DocumentID}},
		payloadKeyChunk:      {Kind: &qdrant.Value_StringValue{StringValue: rec.ChunkID}},
		payloadKeyVisibility: {Kind: &qdrant.Value_StringValue{StringValue: string(rec.Visibility)}},
	}
	for k, v := range rec.Payload {
		switch val := v.(type) {
		case string:
			payload[k] = &qdrant.Value{Kind: &qdrant.Value_StringValue{StringValue: val}}
		case int:
			payload[k] = &qdrant.Value{Kind: &qdrant.Value_IntegerValue{IntegerValue: int64(val)}}
		case int64:
			payload[k] = &qdrant.Value{Kind: &qdrant.Value_IntegerValue{IntegerValue: val}}
		case float64:
			payload[k] = &qdrant.Value{Kind: &qdrant.Value_DoubleValue{DoubleValue: val}}
		case bool:
			payload[k] = &qdrant.Value{Kind: &qdrant.Value_BoolValue{BoolValue: val}}
		}
	}
	return payload
}

// Search performs scoped similarity search.
func (s *QdrantStore) Search(ctx context.Context, collection string, params SearchParams) ([]ScoredResult, error) {
	ctx, span := tracer.Start(ctx, "QdrantStore.Search")
	defer span.End()

	span.SetAttributes(
		attribute.String("collection", collection),
		attribute.Int("top_k", params.TopK),
	)

	// Scope validation happens before anything touches the network.
	if err := params.Validate(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	if err := ValidateCollectionName(collection); err != nil {
		return nil, err
	}

	filter, err := scopeFilter(params)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	query := &qdrant.QueryPoints{
		CollectionName: collection,
		Query:          qdrant.NewQuery(params.Vector...),
		Limit:          qdrant.PtrOf(uint64(params.TopK)),
		WithPayload:    qdrant.NewWithPayload(true),
		Filter:         filter,
	}
	if params.ScoreThreshold > 0 {
		query.ScoreThreshold = qdrant.PtrOf(params.ScoreThreshold)
	}

	points, err := s.client.Query(ctx, query)
	if err != nil {
		if isCollectionMissing(err) {
			err = fmt.Errorf("%w: %s", ErrCollectionNotFound, collection)
		} else {
			err = fmt.Errorf("searching collection %s: %w", collection, err)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	results := make([]ScoredResult, len(points))
	for i, point := range points {
		results[i] = scoredResultFromPayload(point.Score, point.Payload)
	}

	span.SetAttributes(attribute.Int("result_count", len(results)))
	span.SetStatus(codes.Ok, "success")
	return results, nil
}

// scopeFilter builds the mandatory AND filter: tenant, project, visible, and
// the optional caller filter. Metadata filter values must be strings; a
// non-string value cannot be expressed as a keyword match and silently
// skipping it would widen the result set, so it is rejected.
func scopeFilter(params SearchParams) (*qdrant.Filter, error) {
	must := []*qdrant.Condition{
		keywordCondition(payloadKeyTenant, params.TenantID),
		keywordCondition(payloadKeyProject, params.ProjectID),
		keywordCondition(payloadKeyVisibility, string(VisibilityVisible)),
	}
	if params.Filter != nil {
		if len(params.Filter.DocumentIDs) > 0 {
			must = append(must, keywordsCondition(payloadKeyDocument, params.Filter.DocumentIDs))
		}
		for key, value := range params.Filter.Metadata {
			str, ok := value.(string)
			if !ok {
				return nil, fmt.Errorf("%w: metadata filter value for %q must be a string, got %T", ErrInvalidQuery, key, value)
			}
			must = append(must, keywordCondition(key, str))
		}
	}
	return &qdrant.Filter{Must: must}, nil
}

func keywordCondition(key, value string) *qdrant.Condition {
	return &qdrant.Condition{
		ConditionOneOf: &qdrant.Condition_Field{
			Field: &qdrant.FieldCondition{
				Key: key,
				Match: &qdrant.Match{
					MatchValue: &qdrant.Match_Keyword{Keyword: value},
				},
			},
		},
	}
}

func keywordsCondition(key string, values []string) *qdrant.Condition {
	return &qdrant.Condition{
		ConditionOneOf: &qdrant.Condition_Field{
			Field: &qdrant.FieldCondition{
				Key: key,
				Match: &qdrant.Match{
					MatchValue: &qdrant.Match_Keywords{
						Keywords: &qdrant.RepeatedStrings{Strings: values},
					},
				},
			},
		},
	}
}

// scoredResultFromPayload converts a Qdrant payload back into a ScoredResult.
func scoredResultFromPayload(score float32, payload map[string]*qdrant.Value) ScoredResult {
	result := ScoredResult{Score: score, Payload: make(map[string]interface{}, len(payload))}
	for k, v := range payload {
		switch val := v.Kind.(type) {
		case *qdrant.Value_StringValue:
			result.Payload[k] = val.StringValue
			switch k {
			case "id":
				result.ID = val.StringValue
			case payloadKeyDocument:
				result.DocumentID = val.StringValue
			case payloadKeyChunk:
				result.ChunkID = val.StringValue
			case payloadKeyContent:
				result.Content = val.StringValue
			}
		case *qdrant.Value_IntegerValue:
			result.Payload[k] = val.IntegerValue
		case *qdrant.Value_DoubleValue:
			result.Payload[k] = val.DoubleValue
		case *qdrant.Value_BoolValue:
			result.Payload[k] = val.BoolValue
		}
	}
	return result
}

// Delete removes records by ID, scoped to the tenant.
func (s *QdrantStore) Delete(ctx context.Context, collection, tenantID string, ids []string) error {
	ctx, span := tracer.Start(ctx, "QdrantStore.Delete")
	defer span.End()

	span.SetAttributes(
		attribute.String("collection", collection),
		attribute.Int("id_count", len(ids)),
	)

	if tenantID == "" {
		return fmt.Errorf("%w: tenant id is required", ErrIsolationViolation)
	}
	if err := ValidateCollectionName(collection); err != nil {
		return err
	}
	if len(ids) == 0 {
		return nil
	}

	filter := &qdrant.Filter{Must: []*qdrant.Condition{
		keywordCondition(payloadKeyTenant, tenantID),
		keywordsCondition("id", ids),
	}}
	if err := s.deleteByQdrantFilter(ctx, collection, filter); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	span.SetStatus(codes.Ok, "success")
	return nil
}

// DeleteByFilter removes records matching the selector, tenant-scoped.
func (s *QdrantStore) DeleteByFilter(ctx context.Context, collection, tenantID string, sel DeleteSelector) error {
	ctx, span := tracer.Start(ctx, "QdrantStore.DeleteByFilter")
	defer span.End()

	span.SetAttributes(attribute.String("collection", collection))

	if tenantID == "" {
		return fmt.Errorf("%w: tenant id is required", ErrIsolationViolation)
	}
	if err := ValidateCollectionName(collection); err != nil {
		return err
	}

	must := []*qdrant.Condition{keywordCondition(payloadKeyTenant, tenantID)}
	if sel.ProjectID != "" {
		must = append(must, keywordCondition(payloadKeyProject, sel.ProjectID))
	}
	if sel.DocumentID != "" {
		must = append(must, keywordCondition(payloadKeyDocument, sel.DocumentID))
	}
	if err := s.deleteByQdrantFilter(ctx, collection, &qdrant.Filter{Must: must}); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	span.SetStatus(codes.Ok, "success")
	return nil
}

func (s *QdrantStore) deleteByQdrantFilter(ctx context.Context, collection string, filter *qdrant.Filter) error {
	_, err := s.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: collection,
		Points: &qdrant.PointsSelector{
			PointsSelectorOneOf: &qdrant.PointsSelector_Filter{Filter: filter},
		},
	})
	if err != nil {
		return fmt.Errorf("deleting from collection %s: %w", collection, err)
	}
	return nil
}

// SetVisibility flips the visibility of one document's records, tenant-scoped.
func (s *QdrantStore) SetVisibility(ctx context.Context, collection, tenantID, documentID string, visibility Visibility) error {
	ctx, span := tracer.Start(ctx, "QdrantStore.SetVisibility")
	defer span.End()

	span.SetAttributes(
		attribute.String("collection", collection),
		attribute.String("visibility", string(visibility)),
	)

	if tenantID == "" {
		return fmt.Errorf("%w: tenant id is required", ErrIsolationViolation)
	}
	if documentID == "" {
		return fmt.Errorf("%w: document id is required", ErrInvalidQuery)
	}
	if !visibility.Valid() {
		return fmt.Errorf("%w: unknown visibility %q", ErrInvalidQuery, visibility)
	}
	if err := ValidateCollectionName(collection); err != nil {
		return err
	}

	filter := &qdrant.Filter{Must: []*qdrant.Condition{
		keywordCondition(payloadKeyTenant, tenantID),
		keywordCondition(payloadKeyDocument, documentID),
	}}

	_, err := s.client.SetPayload(ctx, &qdrant.SetPayloadPoints{
		CollectionName: collection,
		Payload: map[string]*qdrant.Value{
			payloadKeyVisibility: {Kind: &qdrant.Value_StringValue{StringValue: string(visibility)}},
		},
		PointsSelector: &qdrant.PointsSelector{
			PointsSelectorOneOf: &qdrant.PointsSelector_Filter{Filter: filter},
		},
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("setting visibility on %s: %w", collection, err)
	}

	span.SetStatus(codes.Ok, "success")
	return nil
}

// Ensure QdrantStore implements Store.
var _ Store = (*QdrantStore)(nil)

// Package qdrant provides a Qdrant-backed implementation of the
// longterm.Driver interface.
//
// Records live in a single collection; ownership, scope, and visibility are
// payload fields and every search carries a payload filter so scoping is
// enforced server-side.
package qdrant

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/qdrant/go-client/qdrant"
	"go.uber.org/zap"

	"github.com/papercomputeco/warren/pkg/longterm"
)

const (
	// DefaultCollectionName is the default collection for warren memories.
	DefaultCollectionName = "warren"

	payloadText       = "text"
	payloadOwner      = "owner"
	payloadAuthor     = "author"
	payloadScope      = "scope"
	payloadVisibility = "visibility"
	payloadSharedWith = "shared_with"
	payloadSource     = "source"
	payloadDedupKey   = "dedup_key"
	payloadCreatedAt  = "created_at"
)

// Config holds configuration for the Qdrant driver.
type Config struct {
	// Host is the Qdrant gRPC host (e.g. "localhost").
	Host string

	// Port is the Qdrant gRPC port (typically 6334).
	Port int

	// APIKey is the optional Qdrant API key.
	APIKey string

	// UseTLS enables TLS on the gRPC connection.
	UseTLS bool

	// CollectionName is the collection to use.
	// Defaults to DefaultCollectionName if empty.
	CollectionName string

	// Dimensions is the embedding dimensionality; required when the
	// collection does not exist yet.
	Dimensions uint64
}

// Driver implements longterm.Driver using the Qdrant gRPC client.
type Driver struct {
	client     *qdrant.Client
	collection string
	dimensions uint64
	logger     *zap.Logger
}

// NewDriver connects to Qdrant and ensures the collection exists.
func NewDriver(ctx context.Context, cfg Config, logger *zap.Logger) (*Driver, error) {
	if cfg.Host == "" {
		return nil, fmt.Errorf("qdrant host is required")
	}

	collection := cfg.CollectionName
	if collection == "" {
		collection = DefaultCollectionName
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: connecting to qdrant: %v", longterm.ErrConnection, err)
	}

	d := &Driver{
		client:     client,
		collection: collection,
		dimensions: cfg.Dimensions,
		logger:     logger,
	}

	if err := d.ensureCollection(ctx, cfg.Dimensions); err != nil {
		return nil, fmt.Errorf("ensuring collection %q: %w", collection, err)
	}

	logger.Info("connected to qdrant",
		zap.String("host", cfg.Host),
		zap.Int("port", cfg.Port),
		zap.String("collection", collection),
	)

	return d, nil
}

// ensureCollection creates the collection when missing. Creation races with
// other agent instances are benign: the loser observes "already exists".
func (d *Driver) ensureCollection(ctx context.Context, dimensions uint64) error {
	exists, err := d.client.CollectionExists(ctx, d.collection)
	if err != nil {
		return fmt.Errorf("%w: checking collection: %v", longterm.ErrConnection, err)
	}
	if exists {
		return nil
	}

	if dimensions == 0 {
		return fmt.Errorf("embedding dimensions required to create collection %q", d.collection)
	}

	err = d.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: d.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     dimensions,
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil && !strings.Contains(err.Error(), "already exists") {
		return fmt.Errorf("creating collection: %w", err)
	}
	return nil
}

// Add stores a record as a single point with its metadata payload. Rejecting
// mismatched vectors here keeps the qdrant error (which would only surface on
// the upsert) readable and lets callers test with errors.Is.
func (d *Driver) Add(ctx context.Context, rec longterm.Record) error {
	if d.dimensions > 0 && uint64(len(rec.Embedding)) != d.dimensions {
		return fmt.Errorf("%w: record has %d dimensions, collection %q expects %d",
			longterm.ErrDimensionMismatch, len(rec.Embedding), d.collection, d.dimensions)
	}

	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	payload := qdrant.NewValueMap(map[string]any{
		payloadText:       rec.Text,
		payloadOwner:      rec.Owner,
		payloadAuthor:     rec.Author,
		payloadScope:      rec.Scope,
		payloadVisibility: string(rec.Visibility),
		payloadSharedWith: strings.Join(rec.SharedWith, ","),
		payloadSource:     string(rec.Source),
		payloadDedupKey:   rec.DedupKey,
		payloadCreatedAt:  createdAt.Format(time.RFC3339),
	})

	_, err := d.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: d.collection,
		Wait:           qdrant.PtrOf(true),
		Points: []*qdrant.PointStruct{{
			Id:      qdrant.NewID(rec.ID),
			Vectors: qdrant.NewVectors(rec.Embedding...),
			Payload: payload,
		}},
	})
	if err != nil {
		return fmt.Errorf("upserting record: %w", err)
	}

	d.logger.Debug("stored long-term record",
		zap.String("id", rec.ID),
		zap.String("owner", rec.Owner),
		zap.String("visibility", string(rec.Visibility)),
	)

	return nil
}

// Search queries the collection within the filter's slice.
func (d *Driver) Search(ctx context.Context, embedding []float32, filter longterm.Filter, limit int) ([]longterm.Result, error) {
	if limit <= 0 {
		limit = 10
	}

	must := []*qdrant.Condition{
		qdrant.NewMatch(payloadOwner, filter.Owner),
		qdrant.NewMatch(payloadScope, filter.Scope),
	}
	if filter.Visibility != "" {
		must = append(must, qdrant.NewMatch(payloadVisibility, string(filter.Visibility)))
	}

	points, err := d.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: d.collection,
		Query:          qdrant.NewQuery(embedding...),
		Filter:         &qdrant.Filter{Must: must},
		Limit:          qdrant.PtrOf(uint64(limit)),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("querying records: %w", err)
	}

	results := make([]longterm.Result, 0, len(points))
	for _, p := range points {
		rec := recordFromPayload(p.Payload)
		rec.ID = p.Id.GetUuid()
		results = append(results, longterm.Result{
			Record: rec,
			Score:  p.Score,
		})
	}

	d.logger.Debug("queried qdrant",
		zap.String("owner", filter.Owner),
		zap.Int("results", len(results)),
	)

	return results, nil
}

// Close releases the gRPC connection.
func (d *Driver) Close() error {
	return d.client.Close()
}

func recordFromPayload(payload map[string]*qdrant.Value) longterm.Record {
	get := func(key string) string {
		if v, ok := payload[key]; ok {
			return v.GetStringValue()
		}
		return ""
	}

	rec := longterm.Record{
		Text:       get(payloadText),
		Owner:      get(payloadOwner),
		Author:     get(payloadAuthor),
		Scope:      get(payloadScope),
		Visibility: longterm.Visibility(get(payloadVisibility)),
		Source:     longterm.Source(get(payloadSource)),
		DedupKey:   get(payloadDedupKey),
	}

	if shared := get(payloadSharedWith); shared != "" {
		rec.SharedWith = strings.Split(shared, ",")
	}
	if created := get(payloadCreatedAt); created != "" {
		if t, err := time.Parse(time.RFC3339, created); err == nil {
			rec.CreatedAt = t
		}
	}

	return rec
}

var _ longterm.Driver = (*Driver)(nil)

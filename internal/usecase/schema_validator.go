package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/hspiira/timeline-sub001/internal/domain"
)

const schemaCacheKeySep = ":"

// SchemaValidator resolves the schema for (tenant, event type) and checks
// the payload against it. Lookups go through an advisory cache; a cache
// failure falls back to the repository read.
type SchemaValidator struct {
	Schemas  SchemaRepository
	Payloads PayloadValidator
	Cache    SchemaCache
	CacheTTL time.Duration
	Log      *slog.Logger
}

func NewSchemaValidator(schemas SchemaRepository, payloads PayloadValidator, cache SchemaCache, ttl time.Duration, log *slog.Logger) *SchemaValidator {
	if log == nil {
		log = slog.Default()
	}
	return &SchemaValidator{Schemas: schemas, Payloads: payloads, Cache: cache, CacheTTL: ttl, Log: log}
}

// Validate checks the payload against the schema for (tenant, event type).
// Version 0 resolves to the active version; the resolved version is
// returned so the ledger stamps the event with it. When the schema carries
// a subject-type allow-list, subjectType is checked against it.
func (v *SchemaValidator) Validate(ctx context.Context, tenantID, subjectType, eventType string, version int, payload map[string]any) (int, error) {
	schema, err := v.lookup(ctx, tenantID, eventType, version)
	if err != nil {
		return 0, err
	}
	if version > 0 && !schema.IsActive {
		return 0, &domain.ValidationError{
			Clause:  "schema",
			Message: fmt.Sprintf("schema version %d for %q is not active", version, eventType),
		}
	}
	if len(schema.AllowedSubjectTypes) > 0 && !contains(schema.AllowedSubjectTypes, subjectType) {
		return 0, &domain.ValidationError{
			Clause:  "subject_type",
			Message: fmt.Sprintf("subject type %q may not emit event type %q", subjectType, eventType),
		}
	}
	if err := v.Payloads.ValidatePayload(*schema, payload); err != nil {
		return 0, &domain.ValidationError{
			Clause:  "schema",
			Message: fmt.Sprintf("payload failed schema v%d: %v", schema.Version, err),
		}
	}
	return schema.Version, nil
}

func (v *SchemaValidator) lookup(ctx context.Context, tenantID, eventType string, version int) (*domain.EventSchema, error) {
	key := SchemaCacheKey(tenantID, eventType, version)
	if v.Cache != nil {
		if cached, ok, err := v.Cache.Get(ctx, key); err != nil {
			v.Log.Warn("schema cache read failed, falling back to store", "key", key, "error", err)
		} else if ok {
			return cached, nil
		}
	}

	var (
		schema *domain.EventSchema
		err    error
	)
	if version > 0 {
		schema, err = v.Schemas.GetByVersion(ctx, tenantID, eventType, version)
	} else {
		schema, err = v.Schemas.GetActive(ctx, tenantID, eventType)
	}
	if err != nil {
		return nil, err
	}
	if schema == nil {
		if version > 0 {
			return nil, &domain.ValidationError{
				Clause:  "schema",
				Message: fmt.Sprintf("schema version %d not found for event type %q", version, eventType),
			}
		}
		return nil, &domain.ValidationError{
			Clause:  "schema",
			Message: fmt.Sprintf("no active schema for event type %q", eventType),
		}
	}
	if v.Cache != nil {
		if err := v.Cache.Put(ctx, key, *schema, v.CacheTTL); err != nil {
			v.Log.Warn("schema cache write failed", "key", key, "error", err)
		}
	}
	return schema, nil
}

// InvalidateSchema purges cached entries for (tenant, event type): the
// explicit version and the active-version slot. Called on schema
// activation so stale schema data never outlives the write.
func (v *SchemaValidator) InvalidateSchema(ctx context.Context, tenantID, eventType string, version int) {
	if v.Cache == nil {
		return
	}
	for _, key := range []string{
		SchemaCacheKey(tenantID, eventType, version),
		SchemaCacheKey(tenantID, eventType, 0),
	} {
		if err := v.Cache.Delete(ctx, key); err != nil {
			v.Log.Warn("schema cache purge failed", "key", key, "error", err)
		}
	}
}

// SchemaCacheKey builds the cache key; version 0 is the active-version
// slot. Components must not contain the separator.
func SchemaCacheKey(tenantID, eventType string, version int) string {
	return strings.Join([]string{"schema", tenantID, eventType, strconv.Itoa(version)}, schemaCacheKeySep)
}

func contains(list []string, value string) bool {
	for _, item := range list {
		if item == value {
			return true
		}
	}
	return false
}

package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	"github.com/simorgh/advanced-logger/config"
	"github.com/simorgh/advanced-logger/models"
)

// ElasticsearchBackend ships records to an Elasticsearch index. It supports
// Store, Count and Query; aggregation, deletion and resolution stay with the
// relational backend.
type ElasticsearchBackend struct {
	client *elasticsearch.Client
	index  string
}

// OpenElasticsearch builds the client from config.
func OpenElasticsearch(cfg config.ElasticsearchConfig) (*ElasticsearchBackend, error) {
	if cfg.Index == "" {
		return nil, fmt.Errorf("elasticsearch index is required")
	}
	client, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: cfg.Addresses,
		Username:  cfg.Username,
		Password:  cfg.Password,
		APIKey:    cfg.APIKey,
	})
	if err != nil {
		return nil, fmt.Errorf("creating elasticsearch client: %w", err)
	}
	return &ElasticsearchBackend{client: client, index: cfg.Index}, nil
}

// Store indexes one record, using the record id as the document id.
func (b *ElasticsearchBackend) Store(ctx context.Context, rec *models.LogRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encoding record: %w", err)
	}

	req := esapi.IndexRequest{
		Index:      b.index,
		DocumentID: rec.ID,
		Body:       bytes.NewReader(data),
	}
	res, err := req.Do(ctx, b.client)
	if err != nil {
		return fmt.Errorf("indexing record: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("elasticsearch index returned %s", res.Status())
	}
	return nil
}

// Query searches the index, newest first.
func (b *ElasticsearchBackend) Query(ctx context.Context, f models.Filter, page models.Page) (*models.PagedResult, error) {
	page = page.Normalize()

	body, err := json.Marshal(map[string]any{
		"query": esQuery(f),
		"sort":  []map[string]any{{"created_at": map[string]string{"order": "desc"}}},
		"from":  page.Offset(),
		"size":  page.Size,
	})
	if err != nil {
		return nil, err
	}

	res, err := b.client.Search(
		b.client.Search.WithContext(ctx),
		b.client.Search.WithIndex(b.index),
		b.client.Search.WithBody(bytes.NewReader(body)),
		b.client.Search.WithTrackTotalHits(true),
	)
	if err != nil {
		return nil, fmt.Errorf("searching logs: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, fmt.Errorf("elasticsearch search returned %s", res.Status())
	}

	var parsed struct {
		Hits struct {
			Total struct {
				Value int64 `json:"value"`
			} `json:"total"`
			Hits []struct {
				Source models.LogRecord `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := decodeBody(res.Body, &parsed); err != nil {
		return nil, err
	}

	items := make([]models.LogRecord, 0, len(parsed.Hits.Hits))
	for _, hit := range parsed.Hits.Hits {
		items = append(items, hit.Source)
	}

	totalPages := int((parsed.Hits.Total.Value + int64(page.Size) - 1) / int64(page.Size))
	return &models.PagedResult{
		Items:      items,
		Total:      parsed.Hits.Total.Value,
		Page:       page.Number,
		PerPage:    page.Size,
		TotalPages: totalPages,
	}, nil
}

// Count counts matching documents.
func (b *ElasticsearchBackend) Count(ctx context.Context, f models.Filter) (int64, error) {
	body, err := json.Marshal(map[string]any{"query": esQuery(f)})
	if err != nil {
		return 0, err
	}

	res, err := b.client.Count(
		b.client.Count.WithContext(ctx),
		b.client.Count.WithIndex(b.index),
		b.client.Count.WithBody(bytes.NewReader(body)),
	)
	if err != nil {
		return 0, fmt.Errorf("counting logs: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return 0, fmt.Errorf("elasticsearch count returned %s", res.Status())
	}

	var parsed struct {
		Count int64 `json:"count"`
	}
	if err := decodeBody(res.Body, &parsed); err != nil {
		return 0, err
	}
	return parsed.Count, nil
}

// Stats is not supported by the elasticsearch backend.
func (b *ElasticsearchBackend) Stats(ctx context.Context, f models.Filter) (*models.Stats, error) {
	return nil, ErrUnsupported
}

// Delete is not supported by the elasticsearch backend.
func (b *ElasticsearchBackend) Delete(ctx context.Context, f models.Filter) (int64, error) {
	return 0, ErrUnsupported
}

// Resolve is not supported by the elasticsearch backend.
func (b *ElasticsearchBackend) Resolve(ctx context.Context, id string) error {
	return ErrUnsupported
}

// Unresolve is not supported by the elasticsearch backend.
func (b *ElasticsearchBackend) Unresolve(ctx context.Context, id string) error {
	return ErrUnsupported
}

// Close is a no-op; the client has no persistent connection state to release.
func (b *ElasticsearchBackend) Close() error { return nil }

// esQuery maps the filter vocabulary onto a bool query. Exact matches on
// string fields go through the .keyword subfield: under dynamic mapping the
// base fields are analyzed text, and a term query against analyzed text never
// matches.
func esQuery(f models.Filter) map[string]any {
	var must []map[string]any

	if len(f.Levels) > 0 {
		levels := make([]string, len(f.Levels))
		for i, l := range f.Levels {
			levels[i] = string(l)
		}
		must = append(must, map[string]any{"terms": map[string]any{"level.keyword": levels}})
	}
	if len(f.Categories) > 0 {
		must = append(must, map[string]any{"terms": map[string]any{"category.keyword": f.Categories}})
	}
	if f.Search != "" {
		must = append(must, map[string]any{"multi_match": map[string]any{
			"query":  f.Search,
			"fields": []string{"message", "exception_message"},
		}})
	}
	if f.UserID != nil {
		must = append(must, map[string]any{"term": map[string]any{"user_id": *f.UserID}})
	}
	if len(f.Tags) > 0 {
		must = append(must, map[string]any{"terms": map[string]any{"tags.keyword": f.Tags}})
	}
	if f.RequestID != "" {
		must = append(must, map[string]any{"term": map[string]any{"request_id.keyword": f.RequestID}})
	}
	if f.SessionID != "" {
		must = append(must, map[string]any{"term": map[string]any{"session_id.keyword": f.SessionID}})
	}
	if f.IsResolved != nil {
		must = append(must, map[string]any{"term": map[string]any{"is_resolved": *f.IsResolved}})
	}

	created := map[string]any{}
	if f.DateFrom != nil {
		created["gte"] = f.DateFrom.UTC().Format(time.RFC3339Nano)
	}
	if f.DateTo != nil {
		created["lte"] = f.DateTo.UTC().Format(time.RFC3339Nano)
	}
	if from, to, ok := f.Period.Range(time.Now()); ok {
		created["gte"] = from.UTC().Format(time.RFC3339Nano)
		created["lt"] = to.UTC().Format(time.RFC3339Nano)
	}
	if len(created) > 0 {
		must = append(must, map[string]any{"range": map[string]any{"created_at": created}})
	}

	if len(must) == 0 {
		return map[string]any{"match_all": map[string]any{}}
	}
	return map[string]any{"bool": map[string]any{"must": must}}
}

func decodeBody(body io.Reader, v any) error {
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decoding elasticsearch response %q: %w", strings.TrimSpace(string(data)), err)
	}
	return nil
}

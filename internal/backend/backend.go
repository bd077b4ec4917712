package backend

import (
	"context"
	"encoding/json"
	"fmt"
)

// Hit is a single document as the engine reports it: a get or mget entry, a
// search hit, a write response or a bulk item outcome. Fields the engine
// omits for a given response stay at their zero value.
type Hit struct {
	Index       string          `json:"_index,omitempty"`
	Type        string          `json:"_type,omitempty"`
	ID          string          `json:"_id,omitempty"`
	Version     *int64          `json:"_version,omitempty"`
	SeqNo       *int64          `json:"_seq_no,omitempty"`
	PrimaryTerm *int64          `json:"_primary_term,omitempty"`
	Routing     string          `json:"_routing,omitempty"`
	Parent      string          `json:"_parent,omitempty"`
	Score       *float64        `json:"_score,omitempty"`
	Found       *bool           `json:"found,omitempty"`
	Result      string          `json:"result,omitempty"`
	Status      int             `json:"status,omitempty"`
	Error       json.RawMessage `json:"error,omitempty"`
	Source      map[string]any  `json:"_source,omitempty"`
	// Get carries the updated document of an update response when _source
	// was requested.
	Get *Hit `json:"get,omitempty"`
}

// SearchResponse represents a search response.
type SearchResponse struct {
	Took     int             `json:"took"`
	TimedOut bool            `json:"timed_out"`
	Shards   json.RawMessage `json:"_shards,omitempty"`
	Hits     HitsResult      `json:"hits"`
}

// HitsResult contains the search hits.
type HitsResult struct {
	Total    HitsTotal `json:"total"`
	MaxScore *float64  `json:"max_score"`
	Hits     []Hit     `json:"hits"`
}

// HitsTotal represents the total hit count. Engines before 7.0 report it as a
// bare number, later ones as {"value": n, "relation": "eq"}.
type HitsTotal struct {
	Value    int    `json:"value"`
	Relation string `json:"relation"`
}

func (t *HitsTotal) UnmarshalJSON(data []byte) error {
	var n int
	if err := json.Unmarshal(data, &n); err == nil {
		t.Value, t.Relation = n, "eq"
		return nil
	}
	type plain HitsTotal
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return fmt.Errorf("decoding hits total: %w", err)
	}
	*t = HitsTotal(p)
	return nil
}

// BulkResponse is the engine's answer to a bulk request. Items are in request
// order.
type BulkResponse struct {
	Took   int        `json:"took"`
	Errors bool       `json:"errors"`
	Items  []BulkItem `json:"items"`
}

// BulkItem is the outcome of one bulk action.
type BulkItem struct {
	Action string // create, index, update or delete
	Hit
}

func (b *BulkItem) UnmarshalJSON(data []byte) error {
	var item map[string]Hit
	if err := json.Unmarshal(data, &item); err != nil {
		return fmt.Errorf("decoding bulk item: %w", err)
	}
	if len(item) != 1 {
		return fmt.Errorf("decoding bulk item: expected one action, got %d", len(item))
	}
	for action, hit := range item {
		b.Action, b.Hit = action, hit
	}
	return nil
}

func (b BulkItem) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]Hit{b.Action: b.Hit})
}

// Failed reports whether the engine rejected the action.
func (b BulkItem) Failed() bool {
	return len(b.Error) > 0 || b.Status >= 300
}

// GetRequest fetches one document by id.
type GetRequest struct {
	Index   string
	ID      string
	Routing string
	Parent  string
	// Source selects returned fields: nil for the whole source, empty for none.
	Source []string
}

// WriteRequest stores a whole document.
type WriteRequest struct {
	Index   string
	ID      string // optional for Index; the engine assigns one when empty
	Routing string
	Parent  string
	Body    map[string]any
	Refresh string
}

// UpdateRequest merges fields into an existing document.
type UpdateRequest struct {
	Index   string
	ID      string
	Routing string
	Parent  string
	Doc     map[string]any
	// Source selects the fields returned in Hit.Get: nil for the whole
	// source, empty for none.
	Source  []string
	Refresh string
}

// DeleteRequest removes one document.
type DeleteRequest struct {
	Index   string
	ID      string
	Routing string
	Parent  string
	Refresh string
}

// MultiGetRequest fetches many documents in one round trip.
type MultiGetRequest struct {
	Index  string
	Docs   []DocRef
	Source []string
}

// DocRef addresses one document of a multi-get.
type DocRef struct {
	ID      string
	Routing string
	Parent  string
}

// BulkRequest carries ordered actions; action i yields response item i.
type BulkRequest struct {
	Index   string
	Actions []BulkAction
	Refresh string
}

// BulkAction is one action/payload pair of a bulk request.
type BulkAction struct {
	Op      string // create, index, update or delete
	Index   string // overrides BulkRequest.Index when set
	ID      string
	Routing string
	Parent  string
	Body    any // nil for delete
}

// SortField orders search results by one field.
type SortField struct {
	Field string
	Desc  bool
}

// SearchRequest runs a query. A nil Query matches every document.
type SearchRequest struct {
	Index   string
	Query   any
	From    *int
	Size    *int
	Sort    []SortField
	Source  []string
	Routing string
}

// RawParams are the caller-supplied arguments of a raw passthrough call.
type RawParams struct {
	Index   []string        `json:"index,omitempty"`
	ID      string          `json:"id,omitempty"`
	Routing string          `json:"routing,omitempty"`
	Body    json.RawMessage `json:"body,omitempty"`
}

// Engine is the document store the service talks to.
type Engine interface {
	// Get fetches one document. A missing document is an *HTTPStatusError
	// with status 404.
	Get(ctx context.Context, req GetRequest) (*Hit, error)

	// Create stores a new document and fails with status 409 when the id
	// already exists.
	Create(ctx context.Context, req WriteRequest) (*Hit, error)

	// Index creates or replaces a document.
	Index(ctx context.Context, req WriteRequest) (*Hit, error)

	// Update merges fields into an existing document.
	Update(ctx context.Context, req UpdateRequest) (*Hit, error)

	// Delete removes one document.
	Delete(ctx context.Context, req DeleteRequest) (*Hit, error)

	// MultiGet returns one hit per requested document, in request order.
	MultiGet(ctx context.Context, req MultiGetRequest) ([]Hit, error)

	// Bulk issues all actions in one round trip.
	Bulk(ctx context.Context, req BulkRequest) (*BulkResponse, error)

	// Search executes a query against the index.
	Search(ctx context.Context, req SearchRequest) (*SearchResponse, error)

	// Refresh makes recent writes to the index visible to search.
	Refresh(ctx context.Context, index string) error

	// Raw invokes an engine API by dotted method name, e.g. "indices.refresh".
	Raw(ctx context.Context, method string, params RawParams) (json.RawMessage, error)

	// Name returns the engine name for logging purposes.
	Name() string
}

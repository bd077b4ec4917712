// Package service implements document operations over an Engine: find, get,
// create, update, patch and remove of single documents, their bulk
// counterparts, and a raw passthrough to engine APIs.
//
// Every operation runs its engine round trips sequentially on the caller's
// goroutine. A Service holds no per-call state and is safe for concurrent
// use.
package service

import (
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/leonunix/esdoc/internal/backend"
	"github.com/leonunix/esdoc/internal/config"
	"github.com/leonunix/esdoc/internal/document"
	"github.com/leonunix/esdoc/internal/query"
	"github.com/leonunix/esdoc/internal/util"
)

// Options configure a Service. They are copied at construction.
type Options struct {
	Index    string
	Fields   document.Fields
	Refresh  string // default refresh for writes: "false", "true" or "wait_for"
	Paginate Paginate
	Security Security
}

// Paginate bounds find results. Find is paginated when Default > 0.
type Paginate struct {
	Default int
	Max     int
}

// Security holds the limits applied to caller input.
type Security struct {
	MaxQueryDepth        int
	MaxBulkOperations    int
	MaxArraySize         int
	MaxQueryStringLength int
	AllowedRawMethods    []string // wildcard patterns; empty disables Raw
	AllowedIndices       []string // wildcard patterns; empty allows any index override
	SearchableFields     []string
}

// OptionsFromConfig builds Options from the loaded configuration.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Index: cfg.Service.Index,
		Fields: document.Fields{
			ID:      cfg.Service.IDField,
			Parent:  cfg.Service.ParentField,
			Routing: cfg.Service.RoutingField,
			Join:    cfg.Service.JoinField,
			Meta:    cfg.Service.MetaField,
		},
		Refresh: cfg.Service.Refresh,
		Paginate: Paginate{
			Default: cfg.Service.Paginate.Default,
			Max:     cfg.Service.Paginate.Max,
		},
		Security: Security{
			MaxQueryDepth:        cfg.Security.MaxQueryDepth,
			MaxBulkOperations:    cfg.Security.MaxBulkOperations,
			MaxArraySize:         cfg.Security.MaxArraySize,
			MaxQueryStringLength: cfg.Security.MaxQueryStringLength,
			AllowedRawMethods:    cfg.Security.AllowedRawMethods,
			AllowedIndices:       cfg.Security.AllowedIndices,
			SearchableFields:     cfg.Security.SearchableFields,
		},
	}
}

// SortField orders find results by one field.
type SortField = backend.SortField

// Params are the per-call parameters of an operation.
type Params struct {
	// Query filters the documents an operation applies to. Parent and
	// routing keys in it steer single-document reads to a shard.
	Query *query.Filter
	// Select lists the source fields to return: nil for all, empty for none.
	Select []string
	Sort   []SortField
	Skip   int
	Limit  *int
	// Routing overrides the routing derived from the query.
	Routing string
	// Index overrides the service index; it must match AllowedIndices.
	Index string
	// Upsert makes Create and Update write whether or not the id exists.
	Upsert bool
	// Refresh overrides the service's default refresh for writes.
	Refresh string
	// Paginate overrides the service's pagination; a zero Default turns
	// pagination off.
	Paginate *Paginate
}

// Result is the outcome of Find.
type Result struct {
	Total     int
	Limit     int
	Skip      int
	Data      []document.Document
	Paginated bool
}

// MarshalJSON renders a paginated result as {total, limit, skip, data} and
// an unpaginated one as the bare data array.
func (r *Result) MarshalJSON() ([]byte, error) {
	data := r.Data
	if data == nil {
		data = []document.Document{}
	}
	if !r.Paginated {
		return json.Marshal(data)
	}
	return json.Marshal(struct {
		Total int                 `json:"total"`
		Limit int                 `json:"limit"`
		Skip  int                 `json:"skip"`
		Data  []document.Document `json:"data"`
	}{r.Total, r.Limit, r.Skip, data})
}

// Service runs document operations against an engine.
type Service struct {
	engine     backend.Engine
	opts       Options
	translator *query.Translator
	mapper     document.Mapper
	logger     *zap.Logger
}

// Option configures optional Service dependencies.
type Option func(*Service)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// New creates a Service. Empty field names fall back to _id, _parent,
// _routing and _meta.
func New(engine backend.Engine, opts Options, options ...Option) (*Service, error) {
	if engine == nil {
		return nil, fmt.Errorf("engine is required")
	}
	if opts.Index == "" {
		return nil, fmt.Errorf("index is required")
	}
	if opts.Fields.ID == "" {
		opts.Fields.ID = "_id"
	}
	if opts.Fields.Parent == "" {
		opts.Fields.Parent = "_parent"
	}
	if opts.Fields.Routing == "" {
		opts.Fields.Routing = "_routing"
	}
	if opts.Fields.Meta == "" {
		opts.Fields.Meta = "_meta"
	}
	if opts.Security.MaxQueryDepth <= 0 {
		opts.Security.MaxQueryDepth = 50
	}

	s := &Service{
		engine: engine,
		opts:   opts,
		translator: query.NewTranslator(opts.Fields.ID, query.Limits{
			MaxDepth:             opts.Security.MaxQueryDepth,
			MaxArraySize:         opts.Security.MaxArraySize,
			MaxQueryStringLength: opts.Security.MaxQueryStringLength,
			SearchableFields:     opts.Security.SearchableFields,
		}),
		mapper: document.Mapper{
			IDField:   opts.Fields.ID,
			MetaField: opts.Fields.Meta,
			JoinField: opts.Fields.Join,
		},
		logger: zap.NewNop(),
	}
	for _, o := range options {
		o(s)
	}
	return s, nil
}

// index resolves the target index of a call.
func (s *Service) index(p Params) (string, error) {
	if p.Index == "" || p.Index == s.opts.Index {
		return s.opts.Index, nil
	}
	if len(s.opts.Security.AllowedIndices) > 0 && !util.MatchAny(s.opts.Security.AllowedIndices, p.Index) {
		return "", &Error{
			Kind:    ErrForbidden,
			Message: fmt.Sprintf("Access to index '%s' is not allowed", p.Index),
			Status:  403,
		}
	}
	return p.Index, nil
}

func (s *Service) refresh(p Params) string {
	if p.Refresh != "" {
		return p.Refresh
	}
	return s.opts.Refresh
}

// refreshRequested reports whether a refresh value asks the engine to refresh.
func refreshRequested(v string) bool {
	return v != "" && v != "false"
}

// routing resolves the shard routing of a single-document call: the
// explicit Params.Routing, else the routing or parent key of the query.
func (s *Service) routing(p Params) string {
	if p.Routing != "" {
		return p.Routing
	}
	return s.opts.Fields.Resolve(p.Query.Clauses()).Routing
}

func (s *Service) checkBulkSize(op string, n int) error {
	if limit := s.opts.Security.MaxBulkOperations; limit > 0 && n > limit {
		return badRequest(nil, "%s: %d documents exceed the maximum of %d bulk operations", op, n, limit)
	}
	return nil
}

func (s *Service) meta(doc document.Document) document.Meta {
	m, _ := document.MetaOf(doc, s.opts.Fields.Meta)
	return m
}

package service

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"net/http"
	"slices"
	"sync"

	"github.com/leonunix/esdoc/internal/backend"
	"github.com/leonunix/esdoc/internal/query"
)

type storedDoc struct {
	source  map[string]any
	routing string
}

// memEngine is an in-memory backend.Engine. Search evaluates the boolean
// queries the translator produces for term, terms, exists, match_all and
// nested bool clauses.
type memEngine struct {
	mu      sync.Mutex
	docs    map[string]map[string]*storedDoc // index -> id -> doc
	nextID  int
	calls   map[string]int
	refresh []string // refresh values seen by write calls, in order

	// failDelete makes bulk deletes of these ids fail.
	failDelete map[string]bool
	// vanish lists ids removed from the bulk target index right before a
	// bulk call runs, as if deleted by another writer after discovery.
	vanish []string
	// err, when set, is returned by every call.
	err error
	// lastSearch is the most recent search request.
	lastSearch backend.SearchRequest
}

func newMemEngine() *memEngine {
	return &memEngine{
		docs:       map[string]map[string]*storedDoc{},
		calls:      map[string]int{},
		failDelete: map[string]bool{},
	}
}

func (m *memEngine) Name() string { return "memory" }

func (m *memEngine) put(index, id string, source map[string]any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.store(index)[id] = &storedDoc{source: maps.Clone(source)}
}

func (m *memEngine) count(call string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[call]
}

func (m *memEngine) writes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls["create"] + m.calls["index"] + m.calls["update"] + m.calls["delete"] + m.calls["bulk"]
}

func (m *memEngine) store(index string) map[string]*storedDoc {
	s, ok := m.docs[index]
	if !ok {
		s = map[string]*storedDoc{}
		m.docs[index] = s
	}
	return s
}

func notFoundErr(op string) error {
	return &backend.HTTPStatusError{StatusCode: http.StatusNotFound, Op: op}
}

func selectSource(src map[string]any, fields []string) map[string]any {
	switch {
	case fields == nil:
		return maps.Clone(src)
	case len(fields) == 0:
		return nil
	}
	out := map[string]any{}
	for _, f := range fields {
		if v, ok := src[f]; ok {
			out[f] = v
		}
	}
	return out
}

func boolPtr(b bool) *bool { return &b }

func (m *memEngine) hit(index, id string, d *storedDoc, fields []string) backend.Hit {
	return backend.Hit{
		Index:   index,
		ID:      id,
		Routing: d.routing,
		Found:   boolPtr(true),
		Source:  selectSource(d.source, fields),
	}
}

func (m *memEngine) Get(ctx context.Context, req backend.GetRequest) (*backend.Hit, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls["get"]++
	if m.err != nil {
		return nil, m.err
	}
	d, ok := m.store(req.Index)[req.ID]
	if !ok {
		return nil, notFoundErr("get")
	}
	h := m.hit(req.Index, req.ID, d, req.Source)
	return &h, nil
}

func (m *memEngine) Create(ctx context.Context, req backend.WriteRequest) (*backend.Hit, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls["create"]++
	m.refresh = append(m.refresh, req.Refresh)
	if m.err != nil {
		return nil, m.err
	}
	if _, ok := m.store(req.Index)[req.ID]; ok {
		return nil, &backend.HTTPStatusError{
			StatusCode: http.StatusConflict,
			Op:         "create",
			Type:       "version_conflict_engine_exception",
			Reason:     fmt.Sprintf("[%s]: version conflict, document already exists", req.ID),
		}
	}
	m.store(req.Index)[req.ID] = &storedDoc{source: maps.Clone(req.Body), routing: routingOf(req.Routing, req.Parent)}
	return &backend.Hit{Index: req.Index, ID: req.ID, Result: "created"}, nil
}

func (m *memEngine) Index(ctx context.Context, req backend.WriteRequest) (*backend.Hit, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls["index"]++
	m.refresh = append(m.refresh, req.Refresh)
	if m.err != nil {
		return nil, m.err
	}
	id := req.ID
	if id == "" {
		m.nextID++
		id = fmt.Sprintf("gen-%d", m.nextID)
	}
	result := "created"
	if _, ok := m.store(req.Index)[id]; ok {
		result = "updated"
	}
	m.store(req.Index)[id] = &storedDoc{source: maps.Clone(req.Body), routing: routingOf(req.Routing, req.Parent)}
	return &backend.Hit{Index: req.Index, ID: id, Result: result}, nil
}

func (m *memEngine) Update(ctx context.Context, req backend.UpdateRequest) (*backend.Hit, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls["update"]++
	m.refresh = append(m.refresh, req.Refresh)
	if m.err != nil {
		return nil, m.err
	}
	d, ok := m.store(req.Index)[req.ID]
	if !ok {
		return nil, notFoundErr("update")
	}
	maps.Copy(d.source, req.Doc)
	h := backend.Hit{Index: req.Index, ID: req.ID, Result: "updated"}
	if src := selectSource(d.source, req.Source); src != nil {
		h.Get = &backend.Hit{Found: boolPtr(true), Source: src}
	}
	return &h, nil
}

func (m *memEngine) Delete(ctx context.Context, req backend.DeleteRequest) (*backend.Hit, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls["delete"]++
	m.refresh = append(m.refresh, req.Refresh)
	if m.err != nil {
		return nil, m.err
	}
	if _, ok := m.store(req.Index)[req.ID]; !ok {
		return nil, notFoundErr("delete")
	}
	delete(m.store(req.Index), req.ID)
	return &backend.Hit{Index: req.Index, ID: req.ID, Result: "deleted"}, nil
}

func (m *memEngine) MultiGet(ctx context.Context, req backend.MultiGetRequest) ([]backend.Hit, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls["mget"]++
	if m.err != nil {
		return nil, m.err
	}
	hits := make([]backend.Hit, len(req.Docs))
	for i, ref := range req.Docs {
		d, ok := m.store(req.Index)[ref.ID]
		if !ok {
			hits[i] = backend.Hit{Index: req.Index, ID: ref.ID, Found: boolPtr(false)}
			continue
		}
		hits[i] = m.hit(req.Index, ref.ID, d, req.Source)
	}
	return hits, nil
}

func (m *memEngine) Bulk(ctx context.Context, req backend.BulkRequest) (*backend.BulkResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls["bulk"]++
	m.refresh = append(m.refresh, req.Refresh)
	if m.err != nil {
		return nil, m.err
	}

	for _, id := range m.vanish {
		delete(m.store(req.Index), id)
	}

	resp := &backend.BulkResponse{Items: make([]backend.BulkItem, len(req.Actions))}
	for i, a := range req.Actions {
		index := a.Index
		if index == "" {
			index = req.Index
		}
		docs := m.store(index)
		item := backend.BulkItem{Action: a.Op, Hit: backend.Hit{Index: index, ID: a.ID}}
		fail := func(status int, typ string) {
			item.Status = status
			item.Error = json.RawMessage(fmt.Sprintf(`{"type":%q}`, typ))
			resp.Errors = true
		}

		switch a.Op {
		case "create", "index":
			if item.ID == "" {
				m.nextID++
				item.ID = fmt.Sprintf("gen-%d", m.nextID)
			}
			_, exists := docs[item.ID]
			if a.Op == "create" && exists {
				fail(http.StatusConflict, "version_conflict_engine_exception")
				break
			}
			body, _ := a.Body.(map[string]any)
			docs[item.ID] = &storedDoc{source: maps.Clone(body), routing: routingOf(a.Routing, a.Parent)}
			item.Status, item.Result = http.StatusCreated, "created"
			if exists {
				item.Status, item.Result = http.StatusOK, "updated"
			}
		case "update":
			d, ok := docs[a.ID]
			if !ok {
				fail(http.StatusNotFound, "document_missing_exception")
				break
			}
			body, _ := a.Body.(map[string]any)
			patch, _ := body["doc"].(map[string]any)
			maps.Copy(d.source, patch)
			item.Status, item.Result = http.StatusOK, "updated"
		case "delete":
			if _, ok := docs[a.ID]; !ok || m.failDelete[a.ID] {
				item.Status, item.Result = http.StatusNotFound, "not_found"
				resp.Errors = true
				break
			}
			delete(docs, a.ID)
			item.Status, item.Result = http.StatusOK, "deleted"
		}
		resp.Items[i] = item
	}
	return resp, nil
}

func (m *memEngine) Search(ctx context.Context, req backend.SearchRequest) (*backend.SearchResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls["search"]++
	m.lastSearch = req
	if m.err != nil {
		return nil, m.err
	}

	var b *query.Bool
	if req.Query != nil {
		clause, ok := req.Query.(query.Clause)
		if !ok {
			return nil, fmt.Errorf("memEngine: unsupported query %T", req.Query)
		}
		b = clause["bool"].(*query.Bool)
	}

	docs := m.store(req.Index)
	ids := slices.Sorted(maps.Keys(docs))
	var hits []backend.Hit
	for _, id := range ids {
		if b == nil || matchBool(b, id, docs[id].source) {
			hits = append(hits, m.hit(req.Index, id, docs[id], req.Source))
		}
	}

	resp := &backend.SearchResponse{}
	resp.Hits.Total = backend.HitsTotal{Value: len(hits), Relation: "eq"}
	from := 0
	if req.From != nil {
		from = min(*req.From, len(hits))
	}
	hits = hits[from:]
	if req.Size != nil && *req.Size < len(hits) {
		hits = hits[:*req.Size]
	}
	resp.Hits.Hits = hits
	return resp, nil
}

func (m *memEngine) Refresh(ctx context.Context, index string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls["refresh"]++
	return m.err
}

func (m *memEngine) Raw(ctx context.Context, method string, params backend.RawParams) (json.RawMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls["raw"]++
	if m.err != nil {
		return nil, m.err
	}
	switch method {
	case "indices.refresh", "cluster.health", "info":
		return json.RawMessage(fmt.Sprintf(`{"method":%q,"index":%q}`, method, params.Index)), nil
	}
	return nil, fmt.Errorf("%w: %s", backend.ErrUnknownMethod, method)
}

func routingOf(routing, parent string) string {
	if routing != "" {
		return routing
	}
	return parent
}

func matchBool(b *query.Bool, id string, src map[string]any) bool {
	for _, c := range b.Must {
		if !matchClause(c, id, src) {
			return false
		}
	}
	for _, c := range b.Filter {
		if !matchClause(c, id, src) {
			return false
		}
	}
	for _, c := range b.MustNot {
		if matchClause(c, id, src) {
			return false
		}
	}
	if b.MinimumShouldMatch != nil {
		n := 0
		for _, c := range b.Should {
			if matchClause(c, id, src) {
				n++
			}
		}
		return n >= *b.MinimumShouldMatch
	}
	return true
}

func fieldValue(field, id string, src map[string]any) (any, bool) {
	if field == "_id" {
		return id, true
	}
	v, ok := src[field]
	return v, ok && v != nil
}

func matchClause(c query.Clause, id string, src map[string]any) bool {
	for kind, body := range c {
		switch kind {
		case "match_all":
			return true
		case "bool":
			return matchBool(body.(*query.Bool), id, src)
		case "exists":
			field := body.(map[string]any)["field"].(string)
			_, ok := fieldValue(field, id, src)
			return ok
		case "term":
			for field, want := range body.(map[string]any) {
				got, ok := fieldValue(field, id, src)
				return ok && fmt.Sprint(got) == fmt.Sprint(want)
			}
		case "terms":
			for field, want := range body.(map[string]any) {
				got, ok := fieldValue(field, id, src)
				if !ok {
					return false
				}
				for _, w := range want.([]any) {
					if fmt.Sprint(got) == fmt.Sprint(w) {
						return true
					}
				}
				return false
			}
		default:
			panic("memEngine: unsupported clause " + kind)
		}
	}
	return false
}

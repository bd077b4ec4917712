package service

import (
	"context"
	"time"

	"github.com/leonunix/esdoc/internal/backend"
	"github.com/leonunix/esdoc/internal/document"
)

// Update replaces the document id with data. Without Upsert the document
// must already exist; the existence check and the write are not atomic.
func (s *Service) Update(ctx context.Context, id string, data map[string]any, p Params) (document.Document, error) {
	start := time.Now()
	doc, err := s.update(ctx, id, data, p)
	err = normalize(err, id)
	s.observe(ctx, "update", start, err)
	return doc, err
}

func (s *Service) update(ctx context.Context, id string, data map[string]any, p Params) (document.Document, error) {
	index, err := s.index(p)
	if err != nil {
		return nil, err
	}
	d := s.opts.Fields.Resolve(data, p.Query.Clauses(), map[string]any{s.opts.Fields.ID: id})
	routing := d.Routing
	if p.Routing != "" {
		routing = p.Routing
	}
	req := backend.WriteRequest{
		Index:   index,
		ID:      d.ID,
		Routing: routing,
		Parent:  d.Parent,
		Body:    d.Body(),
		Refresh: s.refresh(p),
	}

	if !p.Upsert {
		exists := p
		exists.Select = []string{}
		if _, err := s.get(ctx, id, exists); err != nil {
			return nil, err
		}
	}

	hit, err := s.engine.Index(ctx, req)
	if err != nil {
		return nil, err
	}
	getParams := p
	getParams.Upsert = false
	getParams.Routing = routing
	return s.get(ctx, hit.ID, getParams)
}

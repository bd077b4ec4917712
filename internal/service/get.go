package service

import (
	"context"
	"time"

	"github.com/leonunix/esdoc/internal/backend"
	"github.com/leonunix/esdoc/internal/document"
)

// Get fetches one document by id. When p.Query constrains more than parent
// or routing, the document must also match it.
func (s *Service) Get(ctx context.Context, id string, p Params) (document.Document, error) {
	start := time.Now()
	doc, err := s.get(ctx, id, p)
	err = normalize(err, id)
	s.observe(ctx, "get", start, err)
	return doc, err
}

func (s *Service) get(ctx context.Context, id string, p Params) (document.Document, error) {
	if s.opts.Fields.QueryLength(p.Query.Clauses()) >= 1 {
		return s.findOne(ctx, id, p)
	}

	index, err := s.index(p)
	if err != nil {
		return nil, err
	}
	hit, err := s.engine.Get(ctx, backend.GetRequest{
		Index:   index,
		ID:      id,
		Routing: s.routing(p),
		Source:  p.Select,
	})
	if err != nil {
		return nil, err
	}
	if hit.Found != nil && !*hit.Found {
		return nil, notFound(id)
	}
	return s.mapper.Get(*hit), nil
}

package service

import (
	"context"
	"time"

	"github.com/leonunix/esdoc/internal/backend"
	"github.com/leonunix/esdoc/internal/document"
)

// Patch merges data into the document id and returns the patched document.
// A query beyond parent and routing is checked against the document first.
func (s *Service) Patch(ctx context.Context, id string, data map[string]any, p Params) (document.Document, error) {
	start := time.Now()
	doc, err := s.patch(ctx, id, data, p)
	err = normalize(err, id)
	s.observe(ctx, "patch", start, err)
	return doc, err
}

func (s *Service) patch(ctx context.Context, id string, data map[string]any, p Params) (document.Document, error) {
	index, err := s.index(p)
	if err != nil {
		return nil, err
	}
	if s.opts.Fields.QueryLength(p.Query.Clauses()) >= 1 {
		if _, err := s.get(ctx, id, p); err != nil {
			return nil, err
		}
	}

	hit, err := s.engine.Update(ctx, backend.UpdateRequest{
		Index:   index,
		ID:      id,
		Routing: s.routing(p),
		Doc:     s.opts.Fields.Resolve(data).Doc,
		Source:  p.Select,
		Refresh: s.refresh(p),
	})
	if err != nil {
		return nil, err
	}
	return s.mapper.Patch(*hit), nil
}

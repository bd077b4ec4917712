package service

import (
	"context"
	"time"

	"github.com/leonunix/esdoc/internal/backend"
	"github.com/leonunix/esdoc/internal/document"
)

// Remove deletes the document id and returns it as it was before deletion.
func (s *Service) Remove(ctx context.Context, id string, p Params) (document.Document, error) {
	start := time.Now()
	doc, err := s.remove(ctx, id, p)
	err = normalize(err, id)
	s.observe(ctx, "remove", start, err)
	return doc, err
}

func (s *Service) remove(ctx context.Context, id string, p Params) (document.Document, error) {
	index, err := s.index(p)
	if err != nil {
		return nil, err
	}
	doc, err := s.get(ctx, id, p)
	if err != nil {
		return nil, err
	}
	if _, err := s.engine.Delete(ctx, backend.DeleteRequest{
		Index:   index,
		ID:      id,
		Routing: s.routing(p),
		Refresh: s.refresh(p),
	}); err != nil {
		return nil, err
	}
	return doc, nil
}

package service

import (
	"context"
	"time"

	"github.com/leonunix/esdoc/internal/backend"
	"github.com/leonunix/esdoc/internal/document"
)

// Create stores data and returns the document as stored. With an id in data
// and no Upsert the write fails with ErrConflict if the id exists; otherwise
// the document is created or replaced.
func (s *Service) Create(ctx context.Context, data map[string]any, p Params) (document.Document, error) {
	start := time.Now()
	d := s.opts.Fields.Resolve(data)
	doc, err := s.create(ctx, d, p)
	err = normalize(err, d.ID)
	s.observe(ctx, "create", start, err)
	return doc, err
}

func (s *Service) create(ctx context.Context, d document.Descriptor, p Params) (document.Document, error) {
	index, err := s.index(p)
	if err != nil {
		return nil, err
	}
	req := backend.WriteRequest{
		Index:   index,
		ID:      d.ID,
		Routing: d.Routing,
		Parent:  d.Parent,
		Body:    d.Body(),
		Refresh: s.refresh(p),
	}

	var hit *backend.Hit
	if d.ID != "" && !p.Upsert {
		hit, err = s.engine.Create(ctx, req)
	} else {
		hit, err = s.engine.Index(ctx, req)
	}
	if err != nil {
		return nil, err
	}

	getParams := p
	getParams.Upsert = false
	if d.Routing != "" {
		getParams.Routing = d.Routing
	}
	return s.get(ctx, hit.ID, getParams)
}

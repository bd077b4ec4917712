package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/leonunix/esdoc/internal/backend"
	"github.com/leonunix/esdoc/internal/document"
	"github.com/leonunix/esdoc/internal/logger"
	"github.com/leonunix/esdoc/internal/metrics"
	"github.com/leonunix/esdoc/internal/query"
)

// Find returns the documents matching p.Query in engine order.
func (s *Service) Find(ctx context.Context, p Params) (*Result, error) {
	start := time.Now()
	res, err := s.find(ctx, p)
	err = normalize(err, "")
	s.observe(ctx, "find", start, err)
	return res, err
}

func (s *Service) find(ctx context.Context, p Params) (*Result, error) {
	index, err := s.index(p)
	if err != nil {
		return nil, err
	}
	if p.Skip < 0 {
		return nil, badRequest(nil, "skip must not be negative")
	}
	if p.Limit != nil && *p.Limit < 0 {
		return nil, badRequest(nil, "limit must not be negative")
	}
	b, err := s.translator.Translate(p.Query)
	if err != nil {
		return nil, err
	}

	paginate := s.opts.Paginate
	if p.Paginate != nil {
		paginate = *p.Paginate
	}
	limit := p.Limit
	if paginate.Default > 0 {
		if limit == nil {
			limit = &paginate.Default
		}
		if paginate.Max > 0 && *limit > paginate.Max {
			limit = &paginate.Max
		}
	}

	req := backend.SearchRequest{
		Index:   index,
		Size:    limit,
		Sort:    p.Sort,
		Source:  p.Select,
		Routing: p.Routing,
	}
	if p.Skip > 0 {
		req.From = &p.Skip
	}
	if b != nil {
		req.Query = b.Query()
	}

	resp, err := s.engine.Search(ctx, req)
	if err != nil {
		return nil, err
	}

	res := &Result{
		Total:     resp.Hits.Total.Value,
		Skip:      p.Skip,
		Data:      make([]document.Document, len(resp.Hits.Hits)),
		Paginated: paginate.Default > 0,
	}
	if limit != nil {
		res.Limit = *limit
	}
	for i, hit := range resp.Hits.Hits {
		res.Data[i] = s.mapper.Get(hit)
	}
	return res, nil
}

// findOne returns the first document matching both p.Query and id.
func (s *Service) findOne(ctx context.Context, id string, p Params) (document.Document, error) {
	p.Query = query.NewFilter(map[string]any{
		string(query.OpAnd): []any{p.Query, map[string]any{s.opts.Fields.ID: id}},
	})
	p.Paginate = &Paginate{}

	res, err := s.find(ctx, p)
	if err != nil {
		return nil, err
	}
	if len(res.Data) == 0 {
		return nil, notFound(id)
	}
	return res.Data[0], nil
}

func (s *Service) observe(ctx context.Context, op string, start time.Time, err error) {
	metrics.ObserveOperation(op, start, err)
	l := logger.FromContext(ctx, s.logger)
	if err != nil {
		l.Debug("operation failed", zap.String("operation", op), zap.Duration("took", time.Since(start)), zap.Error(err))
		return
	}
	l.Debug("operation done", zap.String("operation", op), zap.Duration("took", time.Since(start)))
}

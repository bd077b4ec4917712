package service

import (
	"context"
	"maps"
	"time"

	"go.uber.org/zap"

	"github.com/leonunix/esdoc/internal/backend"
	"github.com/leonunix/esdoc/internal/document"
	"github.com/leonunix/esdoc/internal/logger"
	"github.com/leonunix/esdoc/internal/metrics"
)

// CreateBulk stores items in one bulk call. The result has one document per
// item, in input order: the stored document for every created item and a
// metadata-only document, whose Meta reports the failure, for the rest.
func (s *Service) CreateBulk(ctx context.Context, items []map[string]any, p Params) ([]document.Document, error) {
	start := time.Now()
	docs, err := s.createBulk(ctx, items, p)
	err = normalize(err, "")
	s.observe(ctx, "create_bulk", start, err)
	return docs, err
}

func (s *Service) createBulk(ctx context.Context, items []map[string]any, p Params) ([]document.Document, error) {
	if err := s.checkBulkSize("create", len(items)); err != nil {
		return nil, err
	}
	index, err := s.index(p)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return []document.Document{}, nil
	}

	descriptors := make([]document.Descriptor, len(items))
	actions := make([]backend.BulkAction, len(items))
	for i, item := range items {
		d := s.opts.Fields.Resolve(item)
		op := "index"
		if d.ID != "" && !p.Upsert {
			op = "create"
		}
		descriptors[i] = d
		actions[i] = backend.BulkAction{
			Op:      op,
			ID:      d.ID,
			Routing: d.Routing,
			Parent:  d.Parent,
			Body:    d.Body(),
		}
	}

	resp, err := s.engine.Bulk(ctx, backend.BulkRequest{
		Index:   index,
		Actions: actions,
		Refresh: s.refresh(p),
	})
	if err != nil {
		return nil, err
	}
	created := s.mapper.Bulk(resp.Items)

	// Only created items are fetched back; the create response has no body.
	var refs []backend.DocRef
	for i, doc := range created {
		if s.meta(doc).Status == 201 {
			refs = append(refs, backend.DocRef{
				ID:      s.meta(doc).ID,
				Routing: descriptors[i].Routing,
				Parent:  descriptors[i].Parent,
			})
		}
	}
	s.observeBulk(ctx, "create_bulk", len(refs), len(created)-len(refs))
	if len(refs) == 0 {
		return created, nil
	}

	fetched, err := s.engine.MultiGet(ctx, backend.MultiGetRequest{
		Index:  index,
		Docs:   refs,
		Source: p.Select,
	})
	if err != nil {
		return nil, err
	}

	next := 0
	for i, doc := range created {
		if s.meta(doc).Status != 201 || next >= len(fetched) {
			continue
		}
		created[i] = s.mapper.Get(fetched[next])
		next++
	}
	return created, nil
}

// PatchBulk merges data into every document matching p.Query. The result has
// one document per matched document in find order: the patched document
// when it could be read back, its bulk outcome otherwise.
func (s *Service) PatchBulk(ctx context.Context, data map[string]any, p Params) ([]document.Document, error) {
	start := time.Now()
	docs, err := s.patchBulk(ctx, data, p)
	err = normalize(err, "")
	s.observe(ctx, "patch_bulk", start, err)
	return docs, err
}

func (s *Service) patchBulk(ctx context.Context, data map[string]any, p Params) ([]document.Document, error) {
	index, err := s.index(p)
	if err != nil {
		return nil, err
	}

	findParams := p
	findParams.Select = []string{}
	res, err := s.find(ctx, findParams)
	if err != nil {
		return nil, err
	}
	found := res.Data
	if len(found) == 0 {
		return found, nil
	}
	if err := s.checkBulkSize("patch", len(found)); err != nil {
		return nil, err
	}

	doc := s.opts.Fields.Resolve(data).Doc
	actions := make([]backend.BulkAction, len(found))
	for i, f := range found {
		meta := s.meta(f)
		actions[i] = backend.BulkAction{
			Op:      "update",
			ID:      meta.ID,
			Routing: meta.Routing,
			Parent:  meta.Parent,
			Body:    map[string]any{"doc": doc, "doc_as_upsert": false},
		}
	}

	// The bulk call never refreshes; a requested refresh runs once after it.
	resp, err := s.engine.Bulk(ctx, backend.BulkRequest{Index: index, Actions: actions})
	if err != nil {
		return nil, err
	}
	if refreshRequested(s.refresh(p)) {
		if err := s.engine.Refresh(ctx, index); err != nil {
			return nil, err
		}
	}

	var refs []backend.DocRef
	for i, item := range resp.Items {
		if item.Action == "update" && (item.Result == "updated" || item.Result == "noop") {
			refs = append(refs, backend.DocRef{ID: item.ID, Routing: actions[i].Routing, Parent: actions[i].Parent})
		}
	}
	s.observeBulk(ctx, "patch_bulk", len(refs), len(resp.Items)-len(refs))
	if len(refs) == 0 {
		return s.mapper.Bulk(resp.Items), nil
	}

	fetched, err := s.engine.MultiGet(ctx, backend.MultiGetRequest{
		Index:  index,
		Docs:   refs,
		Source: p.Select,
	})
	if err != nil {
		return nil, err
	}
	sources := make(map[string]map[string]any, len(fetched))
	for _, hit := range fetched {
		if hit.Found != nil && *hit.Found {
			sources[hit.ID] = hit.Source
		}
	}

	out := make([]document.Document, len(resp.Items))
	for i, item := range resp.Items {
		source, ok := sources[item.ID]
		if item.Action != "update" || !ok {
			out[i] = s.mapper.Bulk(resp.Items[i : i+1])[0]
			continue
		}
		status := item.Status
		if status == 0 {
			status = 200
		}
		merged := make(document.Document, len(source)+2)
		maps.Copy(merged, source)
		merged[s.opts.Fields.ID] = item.ID
		merged[s.opts.Fields.Meta] = document.Meta{ID: item.ID, Index: item.Index, Status: status}
		out[i] = merged
	}
	return out, nil
}

// RemoveBulk deletes every document matching p.Query and returns those whose
// deletion succeeded, in find order. Failed deletions are left out.
func (s *Service) RemoveBulk(ctx context.Context, p Params) ([]document.Document, error) {
	start := time.Now()
	docs, err := s.removeBulk(ctx, p)
	err = normalize(err, "")
	s.observe(ctx, "remove_bulk", start, err)
	return docs, err
}

func (s *Service) removeBulk(ctx context.Context, p Params) ([]document.Document, error) {
	index, err := s.index(p)
	if err != nil {
		return nil, err
	}
	res, err := s.find(ctx, p)
	if err != nil {
		return nil, err
	}
	found := res.Data
	if len(found) == 0 {
		return found, nil
	}
	if err := s.checkBulkSize("remove", len(found)); err != nil {
		return nil, err
	}

	actions := make([]backend.BulkAction, len(found))
	for i, f := range found {
		meta := s.meta(f)
		actions[i] = backend.BulkAction{Op: "delete", ID: meta.ID, Routing: meta.Routing, Parent: meta.Parent}
	}
	resp, err := s.engine.Bulk(ctx, backend.BulkRequest{
		Index:   index,
		Actions: actions,
		Refresh: s.refresh(p),
	})
	if err != nil {
		return nil, err
	}

	removed := make([]document.Document, 0, len(found))
	for i, item := range resp.Items {
		if item.Status == 200 {
			removed = append(removed, found[i])
		}
	}
	s.observeBulk(ctx, "remove_bulk", len(removed), len(found)-len(removed))
	return removed, nil
}

func (s *Service) observeBulk(ctx context.Context, op string, ok, failed int) {
	metrics.ObserveBulk(op, ok, failed)
	if failed > 0 {
		logger.FromContext(ctx, s.logger).Warn("bulk operation partially failed",
			zap.String("operation", op),
			zap.Int("succeeded", ok),
			zap.Int("failed", failed),
		)
	}
}

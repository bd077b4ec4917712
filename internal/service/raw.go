package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/leonunix/esdoc/internal/backend"
	"github.com/leonunix/esdoc/internal/util"
)

// Raw invokes an engine API by dotted method name. Only methods matching
// Security.AllowedRawMethods may be called, and index arguments are checked
// against Security.AllowedIndices.
func (s *Service) Raw(ctx context.Context, method string, params backend.RawParams) (json.RawMessage, error) {
	start := time.Now()
	out, err := s.raw(ctx, method, params)
	err = normalize(err, "")
	s.observe(ctx, "raw", start, err)
	return out, err
}

func (s *Service) raw(ctx context.Context, method string, params backend.RawParams) (json.RawMessage, error) {
	allowed := s.opts.Security.AllowedRawMethods
	if len(allowed) == 0 {
		return nil, methodNotAllowed("Raw method '%s' is not allowed: raw passthrough is disabled", method)
	}
	if !util.MatchAny(allowed, method) {
		return nil, methodNotAllowed("Raw method '%s' is not allowed", method)
	}
	for _, index := range params.Index {
		if _, err := s.index(Params{Index: index}); err != nil {
			return nil, err
		}
	}
	if len(params.Index) == 0 {
		params.Index = []string{s.opts.Index}
	}

	out, err := s.engine.Raw(ctx, method, params)
	if err != nil {
		return nil, fmt.Errorf("raw %s: %w", method, err)
	}
	return out, nil
}

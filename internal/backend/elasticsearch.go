package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	"github.com/leonunix/esdoc/internal/config"
	"github.com/leonunix/esdoc/internal/util"
)

// Elasticsearch implements Engine on the official go-elasticsearch client.
type Elasticsearch struct {
	transport esapi.Transport
	caps      Capabilities
	raw       map[string]rawMethod
}

// NewClient builds a go-elasticsearch client from the engine configuration.
func NewClient(cfg config.ElasticsearchConfig) (*elasticsearch.Client, error) {
	esCfg := elasticsearch.Config{
		Addresses: cfg.Addresses,
		Username:  cfg.Username,
		Password:  cfg.Password,
		APIKey:    cfg.APIKey,
	}
	transport, err := util.NewTLSTransport(cfg.TLS)
	if err != nil {
		return nil, err
	}
	if transport != nil {
		esCfg.Transport = transport
	}

	client, err := elasticsearch.NewClient(esCfg)
	if err != nil {
		return nil, fmt.Errorf("creating elasticsearch client: %w", err)
	}
	return client, nil
}

// NewElasticsearch wraps client for an engine with the given capabilities.
// Engines that predate the X-Elastic-Product header are called through the
// client's underlying transport, which skips the product check.
func NewElasticsearch(client *elasticsearch.Client, caps Capabilities) *Elasticsearch {
	e := &Elasticsearch{transport: client, caps: caps}
	if !caps.ProductHeader {
		e.transport = client.Transport
	}
	e.raw = e.rawMethods()
	return e
}

func (e *Elasticsearch) Name() string { return "elasticsearch" }

// Capabilities returns the version descriptor the engine was built with.
func (e *Elasticsearch) Capabilities() Capabilities { return e.caps }

func (e *Elasticsearch) Get(ctx context.Context, req GetRequest) (*Hit, error) {
	res, err := e.get(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("executing get request: %w", err)
	}
	var hit Hit
	if err := decode(res, "get", &hit); err != nil {
		return nil, err
	}
	return &hit, nil
}

func (e *Elasticsearch) get(ctx context.Context, req GetRequest) (*esapi.Response, error) {
	if e.caps.DocType != "" {
		params := e.typedParams(req.Routing, req.Parent, "")
		if src := sourceParam(req.Source, ""); src != nil {
			params.Set("_source", strings.Join(src, ","))
		}
		return e.perform(ctx, http.MethodGet, e.typedPath(req.Index, req.ID, ""), params, nil)
	}
	return esapi.GetRequest{
		Index:      req.Index,
		DocumentID: req.ID,
		Routing:    routingOf(req.Routing, req.Parent),
		Source:     sourceParam(req.Source, ""),
	}.Do(ctx, e.transport)
}

func (e *Elasticsearch) Create(ctx context.Context, req WriteRequest) (*Hit, error) {
	body, err := json.Marshal(req.Body)
	if err != nil {
		return nil, fmt.Errorf("marshaling document: %w", err)
	}

	var res *esapi.Response
	if e.caps.DocType != "" {
		res, err = e.perform(ctx, http.MethodPut, e.typedPath(req.Index, req.ID, "_create"),
			e.typedParams(req.Routing, req.Parent, req.Refresh), body)
	} else {
		res, err = esapi.CreateRequest{
			Index:      req.Index,
			DocumentID: req.ID,
			Body:       bytes.NewReader(body),
			Routing:    routingOf(req.Routing, req.Parent),
			Refresh:    req.Refresh,
		}.Do(ctx, e.transport)
	}
	if err != nil {
		return nil, fmt.Errorf("executing create request: %w", err)
	}
	var hit Hit
	if err := decode(res, "create", &hit); err != nil {
		return nil, err
	}
	return &hit, nil
}

func (e *Elasticsearch) Index(ctx context.Context, req WriteRequest) (*Hit, error) {
	body, err := json.Marshal(req.Body)
	if err != nil {
		return nil, fmt.Errorf("marshaling document: %w", err)
	}

	var res *esapi.Response
	if e.caps.DocType != "" {
		method := http.MethodPut
		if req.ID == "" {
			method = http.MethodPost
		}
		res, err = e.perform(ctx, method, e.typedPath(req.Index, req.ID, ""),
			e.typedParams(req.Routing, req.Parent, req.Refresh), body)
	} else {
		res, err = esapi.IndexRequest{
			Index:      req.Index,
			DocumentID: req.ID,
			Body:       bytes.NewReader(body),
			Routing:    routingOf(req.Routing, req.Parent),
			Refresh:    req.Refresh,
		}.Do(ctx, e.transport)
	}
	if err != nil {
		return nil, fmt.Errorf("executing index request: %w", err)
	}
	var hit Hit
	if err := decode(res, "index", &hit); err != nil {
		return nil, err
	}
	return &hit, nil
}

func (e *Elasticsearch) Update(ctx context.Context, req UpdateRequest) (*Hit, error) {
	body, err := json.Marshal(map[string]any{"doc": req.Doc})
	if err != nil {
		return nil, fmt.Errorf("marshaling update: %w", err)
	}
	source := sourceParam(req.Source, "true")

	var res *esapi.Response
	if e.caps.DocType != "" {
		params := e.typedParams(req.Routing, req.Parent, req.Refresh)
		params.Set("_source", strings.Join(source, ","))
		res, err = e.perform(ctx, http.MethodPost, e.typedPath(req.Index, req.ID, "_update"), params, body)
	} else {
		res, err = esapi.UpdateRequest{
			Index:      req.Index,
			DocumentID: req.ID,
			Body:       bytes.NewReader(body),
			Routing:    routingOf(req.Routing, req.Parent),
			Refresh:    req.Refresh,
			Source:     source,
		}.Do(ctx, e.transport)
	}
	if err != nil {
		return nil, fmt.Errorf("executing update request: %w", err)
	}
	var hit Hit
	if err := decode(res, "update", &hit); err != nil {
		return nil, err
	}
	return &hit, nil
}

func (e *Elasticsearch) Delete(ctx context.Context, req DeleteRequest) (*Hit, error) {
	var (
		res *esapi.Response
		err error
	)
	if e.caps.DocType != "" {
		res, err = e.perform(ctx, http.MethodDelete, e.typedPath(req.Index, req.ID, ""),
			e.typedParams(req.Routing, req.Parent, req.Refresh), nil)
	} else {
		res, err = esapi.DeleteRequest{
			Index:      req.Index,
			DocumentID: req.ID,
			Routing:    routingOf(req.Routing, req.Parent),
			Refresh:    req.Refresh,
		}.Do(ctx, e.transport)
	}
	if err != nil {
		return nil, fmt.Errorf("executing delete request: %w", err)
	}
	var hit Hit
	if err := decode(res, "delete", &hit); err != nil {
		return nil, err
	}
	return &hit, nil
}

// typedPath addresses a document as /{index}/{type}/{id}[/{endpoint}], the
// only form 5.x and 6.x engines accept for a custom mapping type.
func (e *Elasticsearch) typedPath(index, id, endpoint string) string {
	path := "/" + index + "/" + e.caps.DocType
	if id != "" {
		path += "/" + id
	}
	if endpoint != "" {
		path += "/" + endpoint
	}
	return path
}

// typedParams carries routing, the 5.x parent link and the refresh policy of
// a typed document request.
func (e *Elasticsearch) typedParams(routing, parent, refresh string) url.Values {
	params := url.Values{}
	if r := routingOf(routing, parent); r != "" {
		params.Set("routing", r)
	}
	if e.caps.LegacyParent && parent != "" {
		params.Set("parent", parent)
	}
	if refresh != "" {
		params.Set("refresh", refresh)
	}
	return params
}

// perform sends a hand-built request through the engine transport.
func (e *Elasticsearch) perform(ctx context.Context, method, path string, params url.Values, body []byte) (*esapi.Response, error) {
	var r io.Reader
	if body != nil {
		r = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, "/", r)
	if err != nil {
		return nil, err
	}
	req.URL.Path = path
	req.URL.RawQuery = params.Encode()
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	res, err := e.transport.Perform(req)
	if err != nil {
		return nil, err
	}
	return &esapi.Response{StatusCode: res.StatusCode, Header: res.Header, Body: res.Body}, nil
}

// sourceParam renders a source selection as the _source parameter: nil
// yields whenNil, an empty selection disables the source.
func sourceParam(fields []string, whenNil string) []string {
	switch {
	case fields == nil:
		if whenNil == "" {
			return nil
		}
		return []string{whenNil}
	case len(fields) == 0:
		return []string{"false"}
	}
	return fields
}

func (e *Elasticsearch) MultiGet(ctx context.Context, req MultiGetRequest) ([]Hit, error) {
	if len(req.Docs) == 0 {
		return nil, nil
	}
	docs := make([]map[string]any, len(req.Docs))
	for i, d := range req.Docs {
		docs[i] = e.docMeta(req.Index, d.ID, d.Routing, d.Parent)
	}
	body, err := json.Marshal(map[string]any{"docs": docs})
	if err != nil {
		return nil, fmt.Errorf("marshaling mget request: %w", err)
	}

	res, err := esapi.MgetRequest{
		Body:   bytes.NewReader(body),
		Source: sourceParam(req.Source, ""),
	}.Do(ctx, e.transport)
	if err != nil {
		return nil, fmt.Errorf("executing mget request: %w", err)
	}
	var result struct {
		Docs []Hit `json:"docs"`
	}
	if err := decode(res, "mget", &result); err != nil {
		return nil, err
	}
	return result.Docs, nil
}

func (e *Elasticsearch) Bulk(ctx context.Context, req BulkRequest) (*BulkResponse, error) {
	if len(req.Actions) == 0 {
		return &BulkResponse{}, nil
	}
	var buf bytes.Buffer
	if err := e.encodeBulk(&buf, req); err != nil {
		return nil, err
	}

	res, err := esapi.BulkRequest{
		Body:    &buf,
		Refresh: req.Refresh,
	}.Do(ctx, e.transport)
	if err != nil {
		return nil, fmt.Errorf("executing bulk request: %w", err)
	}
	var result BulkResponse
	if err := decode(res, "bulk", &result); err != nil {
		return nil, err
	}
	if len(result.Items) != len(req.Actions) {
		return nil, fmt.Errorf("bulk returned %d items for %d actions", len(result.Items), len(req.Actions))
	}
	return &result, nil
}

// encodeBulk writes the NDJSON body: one metadata line per action followed
// by its payload line. Deletes have no payload line.
func (e *Elasticsearch) encodeBulk(buf *bytes.Buffer, req BulkRequest) error {
	enc := json.NewEncoder(buf)
	for i, a := range req.Actions {
		index := a.Index
		if index == "" {
			index = req.Index
		}
		meta := map[string]any{a.Op: e.docMeta(index, a.ID, a.Routing, a.Parent)}
		if err := enc.Encode(meta); err != nil {
			return fmt.Errorf("encoding bulk action %d: %w", i, err)
		}
		if a.Op == "delete" {
			continue
		}
		if err := enc.Encode(a.Body); err != nil {
			return fmt.Errorf("encoding bulk payload %d: %w", i, err)
		}
	}
	return nil
}

// docMeta builds the metadata object addressing one document in bulk and
// mget requests.
func (e *Elasticsearch) docMeta(index, id, routing, parent string) map[string]any {
	meta := map[string]any{}
	if index != "" {
		meta["_index"] = index
	}
	if id != "" {
		meta["_id"] = id
	}
	if e.caps.DocType != "" {
		meta["_type"] = e.caps.DocType
	}
	if e.caps.LegacyParent && parent != "" {
		meta["_parent"] = parent
	}
	if r := routingOf(routing, parent); r != "" {
		meta[e.caps.routingKey()] = r
	}
	return meta
}

func (e *Elasticsearch) Search(ctx context.Context, req SearchRequest) (*SearchResponse, error) {
	body := map[string]any{}
	if req.Query != nil {
		body["query"] = req.Query
	}
	if req.From != nil {
		body["from"] = *req.From
	}
	if req.Size != nil {
		body["size"] = *req.Size
	}
	if len(req.Sort) > 0 {
		sort := make([]map[string]string, len(req.Sort))
		for i, s := range req.Sort {
			order := "asc"
			if s.Desc {
				order = "desc"
			}
			sort[i] = map[string]string{s.Field: order}
		}
		body["sort"] = sort
	}
	switch {
	case req.Source == nil:
	case len(req.Source) == 0:
		body["_source"] = false
	default:
		body["_source"] = req.Source
	}
	if e.caps.TotalAsObject {
		body["track_total_hits"] = true
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshaling search request: %w", err)
	}
	sreq := esapi.SearchRequest{
		Index: []string{req.Index},
		Body:  bytes.NewReader(payload),
	}
	if req.Routing != "" {
		sreq.Routing = []string{req.Routing}
	}

	res, err := sreq.Do(ctx, e.transport)
	if err != nil {
		return nil, fmt.Errorf("executing search request: %w", err)
	}
	var result SearchResponse
	if err := decode(res, "search", &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (e *Elasticsearch) Refresh(ctx context.Context, index string) error {
	res, err := esapi.IndicesRefreshRequest{Index: []string{index}}.Do(ctx, e.transport)
	if err != nil {
		return fmt.Errorf("executing refresh request: %w", err)
	}
	return decode(res, "refresh", nil)
}

// decode checks the response status and unmarshals its body into out. A nil
// out discards the body.
func decode(res *esapi.Response, op string, out any) error {
	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return fmt.Errorf("reading %s response: %w", op, err)
	}
	if res.IsError() {
		return newHTTPStatusError(res.StatusCode, op, body)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decoding %s response: %w", op, err)
	}
	return nil
}

// routingOf returns the explicit routing, or the parent id that child
// documents are routed by.
func routingOf(routing, parent string) string {
	if routing != "" {
		return routing
	}
	return parent
}

// rawMethod invokes one engine API for a raw passthrough call.
type rawMethod func(ctx context.Context, p RawParams) (*esapi.Response, error)

func (e *Elasticsearch) rawMethods() map[string]rawMethod {
	t := e.transport
	return map[string]rawMethod{
		"search": func(ctx context.Context, p RawParams) (*esapi.Response, error) {
			req := esapi.SearchRequest{Index: p.Index, Body: bodyOf(p)}
			if p.Routing != "" {
				req.Routing = []string{p.Routing}
			}
			return req.Do(ctx, t)
		},
		"count": func(ctx context.Context, p RawParams) (*esapi.Response, error) {
			req := esapi.CountRequest{Index: p.Index, Body: bodyOf(p)}
			if p.Routing != "" {
				req.Routing = []string{p.Routing}
			}
			return req.Do(ctx, t)
		},
		"get": func(ctx context.Context, p RawParams) (*esapi.Response, error) {
			if len(p.Index) != 1 || p.ID == "" {
				return nil, fmt.Errorf("get requires exactly one index and an id")
			}
			return e.get(ctx, GetRequest{Index: p.Index[0], ID: p.ID, Routing: p.Routing})
		},
		"mget": func(ctx context.Context, p RawParams) (*esapi.Response, error) {
			req := esapi.MgetRequest{Body: bytes.NewReader(p.Body), Routing: p.Routing}
			if len(p.Index) == 1 {
				req.Index = p.Index[0]
			}
			return req.Do(ctx, t)
		},
		"info": func(ctx context.Context, p RawParams) (*esapi.Response, error) {
			return esapi.InfoRequest{}.Do(ctx, t)
		},
		"ping": func(ctx context.Context, p RawParams) (*esapi.Response, error) {
			return esapi.PingRequest{}.Do(ctx, t)
		},
		"indices.refresh": func(ctx context.Context, p RawParams) (*esapi.Response, error) {
			return esapi.IndicesRefreshRequest{Index: p.Index}.Do(ctx, t)
		},
		"indices.exists": func(ctx context.Context, p RawParams) (*esapi.Response, error) {
			return esapi.IndicesExistsRequest{Index: p.Index}.Do(ctx, t)
		},
		"indices.getMapping": func(ctx context.Context, p RawParams) (*esapi.Response, error) {
			return esapi.IndicesGetMappingRequest{Index: p.Index}.Do(ctx, t)
		},
		"indices.stats": func(ctx context.Context, p RawParams) (*esapi.Response, error) {
			return esapi.IndicesStatsRequest{Index: p.Index}.Do(ctx, t)
		},
		"cluster.health": func(ctx context.Context, p RawParams) (*esapi.Response, error) {
			return esapi.ClusterHealthRequest{Index: p.Index}.Do(ctx, t)
		},
	}
}

func bodyOf(p RawParams) io.Reader {
	if len(p.Body) == 0 {
		return nil
	}
	return bytes.NewReader(p.Body)
}

// RawMethods lists the method names Raw accepts.
func (e *Elasticsearch) RawMethods() []string {
	names := make([]string, 0, len(e.raw))
	for name := range e.raw {
		names = append(names, name)
	}
	return names
}

// Raw invokes an engine API by dotted method name. HEAD-style APIs (ping,
// indices.exists) answer true or false instead of a body.
func (e *Elasticsearch) Raw(ctx context.Context, method string, params RawParams) (json.RawMessage, error) {
	call, ok := e.raw[method]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownMethod, method)
	}
	res, err := call(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("executing %s: %w", method, err)
	}

	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("reading %s response: %w", method, err)
	}
	if method == "ping" || method == "indices.exists" {
		if res.StatusCode == http.StatusNotFound {
			return json.RawMessage("false"), nil
		}
		if !res.IsError() {
			return json.RawMessage("true"), nil
		}
	}
	if res.IsError() {
		return nil, newHTTPStatusError(res.StatusCode, method, body)
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return json.RawMessage("null"), nil
	}
	return json.RawMessage(body), nil
}

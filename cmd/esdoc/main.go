package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"go.uber.org/zap"

	"github.com/leonunix/esdoc/internal/backend"
	"github.com/leonunix/esdoc/internal/config"
	"github.com/leonunix/esdoc/internal/logger"
	"github.com/leonunix/esdoc/internal/query"
	"github.com/leonunix/esdoc/internal/service"
)

const usage = `usage: esdoc [flags] <command> [args]

commands:
  find                    list documents matching -query
  get <id>                fetch one document
  create                  store the -data document, or every document of a -data array
  update <id>             replace a document with -data
  patch [id]              merge -data into one document, or into every match of -query
  remove [id]             delete one document, or every match of -query
  raw <method>            call an engine API, e.g. indices.refresh

-data is read from stdin when it is "-".

flags:
`

func main() {
	configPath := flag.String("config", "esdoc.yaml", "path to configuration file")
	queryJSON := flag.String("query", "", "filter as a JSON object")
	dataJSON := flag.String("data", "", "document payload as JSON, or - for stdin")
	selectFields := flag.String("select", "", "comma-separated fields to return")
	sortFields := flag.String("sort", "", "comma-separated sort fields, - prefix for descending")
	limit := flag.Int("limit", -1, "maximum number of documents to return")
	skip := flag.Int("skip", 0, "number of documents to skip")
	routing := flag.String("routing", "", "shard routing value")
	index := flag.String("index", "", "index override")
	upsert := flag.Bool("upsert", false, "create or replace regardless of existence")
	refresh := flag.String("refresh", "", "refresh policy for writes: true, false or wait_for")
	flag.Usage = func() {
		fmt.Fprint(flag.CommandLine.Output(), usage)
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.Logging.Format, cfg.Logging.Level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	svc, err := newService(cfg, log)
	if err != nil {
		log.Fatal("failed to initialize service", zap.Error(err))
	}

	params, err := buildParams(*queryJSON, *selectFields, *sortFields, *limit, *skip)
	if err != nil {
		log.Fatal("invalid flags", zap.Error(err))
	}
	params.Routing = *routing
	params.Index = *index
	params.Upsert = *upsert
	params.Refresh = *refresh

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx = logger.ContextWithLogger(ctx, log)

	cmd := command{svc: svc, params: params, data: *dataJSON, stdin: os.Stdin}
	out, err := cmd.run(ctx, flag.Args())
	if err != nil {
		log.Error("command failed", zap.String("command", flag.Arg(0)), zap.Error(err))
		os.Exit(1)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		log.Fatal("failed to write output", zap.Error(err))
	}
}

func newService(cfg *config.Config, log *zap.Logger) (*service.Service, error) {
	client, err := backend.NewClient(cfg.Elasticsearch)
	if err != nil {
		return nil, err
	}
	caps, err := backend.CapabilitiesFor(cfg.Elasticsearch.Version, cfg.Elasticsearch.DocType)
	if err != nil {
		return nil, err
	}
	log.Debug("engine capabilities",
		zap.Strings("addresses", cfg.Elasticsearch.Addresses),
		zap.Int("major", caps.Major),
		zap.String("doc_type", caps.DocType),
	)
	return service.New(backend.NewElasticsearch(client, caps), service.OptionsFromConfig(cfg), service.WithLogger(log))
}

// buildParams turns the shared query flags into service parameters. A
// negative limit means unset.
func buildParams(queryJSON, selectFields, sortFields string, limit, skip int) (service.Params, error) {
	var p service.Params
	if queryJSON != "" {
		var clauses map[string]any
		if err := json.Unmarshal([]byte(queryJSON), &clauses); err != nil {
			return p, fmt.Errorf("-query: %w", err)
		}
		p.Query = query.NewFilter(clauses)
	}
	if selectFields != "" {
		p.Select = splitList(selectFields)
	}
	for _, f := range splitList(sortFields) {
		if field, ok := strings.CutPrefix(f, "-"); ok {
			p.Sort = append(p.Sort, service.SortField{Field: field, Desc: true})
			continue
		}
		p.Sort = append(p.Sort, service.SortField{Field: f})
	}
	if limit >= 0 {
		p.Limit = &limit
	}
	p.Skip = skip
	return p, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

type command struct {
	svc    *service.Service
	params service.Params
	data   string
	stdin  io.Reader
}

func (c command) run(ctx context.Context, args []string) (any, error) {
	name, args := args[0], args[1:]
	id := ""
	if len(args) > 0 {
		id = args[0]
	}

	switch name {
	case "find":
		return c.svc.Find(ctx, c.params)
	case "get":
		if id == "" {
			return nil, fmt.Errorf("get requires an id")
		}
		return c.svc.Get(ctx, id, c.params)
	case "create":
		payload, err := c.payload()
		if err != nil {
			return nil, err
		}
		switch v := payload.(type) {
		case []any:
			items := make([]map[string]any, len(v))
			for i, item := range v {
				m, ok := item.(map[string]any)
				if !ok {
					return nil, fmt.Errorf("-data[%d]: expected an object", i)
				}
				items[i] = m
			}
			return c.svc.CreateBulk(ctx, items, c.params)
		case map[string]any:
			return c.svc.Create(ctx, v, c.params)
		}
		return nil, fmt.Errorf("-data: expected an object or an array of objects")
	case "update":
		if id == "" {
			return nil, fmt.Errorf("update requires an id")
		}
		data, err := c.object()
		if err != nil {
			return nil, err
		}
		return c.svc.Update(ctx, id, data, c.params)
	case "patch":
		data, err := c.object()
		if err != nil {
			return nil, err
		}
		if id == "" {
			return c.svc.PatchBulk(ctx, data, c.params)
		}
		return c.svc.Patch(ctx, id, data, c.params)
	case "remove":
		if id == "" {
			return c.svc.RemoveBulk(ctx, c.params)
		}
		return c.svc.Remove(ctx, id, c.params)
	case "raw":
		if id == "" {
			return nil, fmt.Errorf("raw requires a method")
		}
		params := backend.RawParams{Routing: c.params.Routing}
		if c.params.Index != "" {
			params.Index = splitList(c.params.Index)
		}
		if len(args) > 1 {
			params.ID = args[1]
		}
		if c.data != "" {
			body, err := c.read()
			if err != nil {
				return nil, err
			}
			params.Body = body
		}
		return c.svc.Raw(ctx, id, params)
	}
	return nil, fmt.Errorf("unknown command %q", name)
}

func (c command) read() ([]byte, error) {
	if c.data != "-" {
		return []byte(c.data), nil
	}
	b, err := io.ReadAll(c.stdin)
	if err != nil {
		return nil, fmt.Errorf("reading stdin: %w", err)
	}
	return b, nil
}

func (c command) payload() (any, error) {
	if c.data == "" {
		return nil, fmt.Errorf("-data is required")
	}
	b, err := c.read()
	if err != nil {
		return nil, err
	}
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return nil, fmt.Errorf("-data: %w", err)
	}
	return v, nil
}

func (c command) object() (map[string]any, error) {
	v, err := c.payload()
	if err != nil {
		return nil, err
	}
	m, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("-data: expected an object")
	}
	return m, nil
}

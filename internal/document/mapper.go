package document

import (
	"encoding/json"
	"maps"

	"github.com/leonunix/esdoc/internal/backend"
	"github.com/leonunix/esdoc/internal/util"
)

// Document is a document in the caller's shape. The mapper stores a Meta
// value under the configured meta field.
type Document map[string]any

// Meta is the engine metadata attached to a mapped document.
type Meta struct {
	ID          string          `json:"_id,omitempty"`
	Index       string          `json:"_index,omitempty"`
	Type        string          `json:"_type,omitempty"`
	Version     *int64          `json:"_version,omitempty"`
	SeqNo       *int64          `json:"_seq_no,omitempty"`
	PrimaryTerm *int64          `json:"_primary_term,omitempty"`
	Routing     string          `json:"_routing,omitempty"`
	Parent      string          `json:"_parent,omitempty"`
	Score       *float64        `json:"_score,omitempty"`
	Found       *bool           `json:"found,omitempty"`
	Result      string          `json:"result,omitempty"`
	Status      int             `json:"status,omitempty"`
	Error       json.RawMessage `json:"error,omitempty"`
}

// Failed reports whether the engine rejected the document's bulk action.
func (m Meta) Failed() bool {
	return len(m.Error) > 0 || m.Status >= 300
}

// MetaOf returns the metadata stored under field.
func MetaOf(doc Document, field string) (Meta, bool) {
	m, ok := doc[field].(Meta)
	return m, ok
}

// Mapper turns engine hits into documents.
type Mapper struct {
	IDField   string
	MetaField string
	JoinField string
}

// Get maps a get, mget or search hit: the source, the engine id under the id
// field and a Meta under the meta field. A join object {name, parent} is
// reduced to its name, with the parent moved into the metadata.
func (m Mapper) Get(hit backend.Hit) Document {
	meta := Meta{
		ID:          hit.ID,
		Index:       hit.Index,
		Type:        hit.Type,
		Version:     hit.Version,
		SeqNo:       hit.SeqNo,
		PrimaryTerm: hit.PrimaryTerm,
		Routing:     hit.Routing,
		Parent:      hit.Parent,
		Score:       hit.Score,
		Found:       hit.Found,
		Result:      hit.Result,
		Status:      hit.Status,
		Error:       hit.Error,
	}

	doc := make(Document, len(hit.Source)+2)
	maps.Copy(doc, hit.Source)

	if m.JoinField != "" {
		if join, ok := util.AsMap(doc[m.JoinField]); ok {
			if parent, ok := join["parent"]; ok && parent != nil {
				meta.Parent = util.Stringify(parent)
			}
			doc[m.JoinField] = join["name"]
		}
	}
	if hit.ID != "" {
		doc[m.IDField] = hit.ID
	}
	doc[m.MetaField] = meta
	return doc
}

// Patch maps an update response, whose document lives under "get".
func (m Mapper) Patch(hit backend.Hit) Document {
	flat := hit
	flat.Get = nil
	flat.Source = nil
	if hit.Get != nil {
		flat.Source = hit.Get.Source
	}
	return m.Get(flat)
}

// Bulk maps bulk item outcomes in order. Failed items carry only metadata.
func (m Mapper) Bulk(items []backend.BulkItem) []Document {
	docs := make([]Document, len(items))
	for i, item := range items {
		if item.Action == "update" {
			docs[i] = m.Patch(item.Hit)
			continue
		}
		docs[i] = m.Get(item.Hit)
	}
	return docs
}

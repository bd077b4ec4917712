// Package document converts between the caller's document shape and the
// engine's: it resolves the identity and routing of an incoming payload and
// maps engine hits back into documents carrying a metadata object.
package document

import "github.com/leonunix/esdoc/internal/util"

// Fields names the document keys that carry engine metadata rather than
// stored data. Join is empty when no join relation is configured.
type Fields struct {
	ID      string
	Parent  string
	Routing string
	Join    string
	Meta    string
}

// Descriptor is the identity, routing and body of one document to write.
type Descriptor struct {
	ID      string
	Parent  string
	Routing string
	Join    string
	// Doc is the payload without the id, parent, routing, join and meta keys.
	Doc map[string]any

	joinField string
}

// Resolve builds the descriptor of payload. Supplementary maps are merged
// over the payload in order, later ones winning, when reading id, parent,
// routing and join; they never contribute to Doc. Routing falls back to the
// parent.
func (f Fields) Resolve(payload map[string]any, supplementary ...map[string]any) Descriptor {
	merged := payload
	if len(supplementary) > 0 {
		merged = util.Merge(append([]map[string]any{payload}, supplementary...)...)
	}

	d := Descriptor{
		ID:        stringField(merged, f.ID),
		Parent:    stringField(merged, f.Parent),
		Routing:   stringField(merged, f.Routing),
		Doc:       util.Without(payload, f.Meta, f.ID, f.Parent, f.Routing, f.Join),
		joinField: f.Join,
	}
	if f.Join != "" {
		d.Join = stringField(merged, f.Join)
	}
	if d.Routing == "" {
		d.Routing = d.Parent
	}
	return d
}

// Body returns the document as it is stored: Doc plus, for documents taking
// part in a join relation, the join object {name, parent}.
func (d Descriptor) Body() map[string]any {
	if d.Join == "" || d.joinField == "" {
		return d.Doc
	}
	join := map[string]any{"name": d.Join}
	if d.Parent != "" {
		join["parent"] = d.Parent
	}
	return util.Merge(d.Doc, map[string]any{d.joinField: join})
}

// QueryLength counts the filter keys that constrain documents, leaving out
// the parent and routing keys that only steer which shard is read.
func (f Fields) QueryLength(query map[string]any) int {
	n := 0
	for k := range query {
		if k == f.Parent || k == f.Routing {
			continue
		}
		n++
	}
	return n
}

func stringField(m map[string]any, key string) string {
	if key == "" {
		return ""
	}
	v, ok := m[key]
	if !ok {
		return ""
	}
	return util.Stringify(v)
}

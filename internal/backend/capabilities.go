package backend

import (
	"fmt"
	"strconv"
	"strings"
)

// Capabilities describes how the engine's version shapes requests. It is
// selected once when the engine is constructed.
type Capabilities struct {
	Major int
	Minor int
	// LegacyParent is set for engines that link child documents with a
	// parent parameter and _parent action metadata.
	LegacyParent bool
	// DocType is the mapping type of engines that still address documents
	// as /{index}/{type}/{id}; empty once types are gone.
	DocType string
	// Join reports support for join-field parent/child relations.
	Join bool
	// TotalAsObject reports hits.total as {"value", "relation"}; such engines
	// also need track_total_hits for an exact count.
	TotalAsObject bool
	// ProductHeader is set for engines that identify themselves with the
	// X-Elastic-Product header. Older engines are called without the
	// client's product check.
	ProductHeader bool
}

// CapabilitiesFor parses a "major[.minor[.patch]]" version string. docType
// overrides the default mapping type of 5.x and 6.x engines.
func CapabilitiesFor(version, docType string) (Capabilities, error) {
	parts := strings.SplitN(strings.TrimSpace(version), ".", 3)
	major, err := strconv.Atoi(parts[0])
	if err != nil {
		return Capabilities{}, fmt.Errorf("parsing engine version %q: %w", version, err)
	}
	minor := 0
	if len(parts) > 1 {
		if minor, err = strconv.Atoi(parts[1]); err != nil {
			return Capabilities{}, fmt.Errorf("parsing engine version %q: %w", version, err)
		}
	}
	if major < 5 {
		return Capabilities{}, fmt.Errorf("unsupported engine version %q", version)
	}

	c := Capabilities{
		Major:         major,
		Minor:         minor,
		LegacyParent:  major == 5,
		Join:          major >= 6,
		TotalAsObject: major >= 7,
		ProductHeader: major > 7 || (major == 7 && minor >= 14),
	}
	if major < 7 {
		c.DocType = docType
		if c.DocType == "" {
			c.DocType = "doc"
		}
	}
	return c, nil
}

// routingKey is the metadata key carrying routing in bulk and multi-get
// entries.
func (c Capabilities) routingKey() string {
	if c.LegacyParent {
		return "_routing"
	}
	return "routing"
}

// Package extractor turns a raw SBOM payload into a schema.Document,
// trying SPDX JSON first and CycloneDX JSON second.
package extractor

import (
	"fmt"

	"github.com/summit/services/sbomindexd/internal/schema"
)

// ParseError is returned when a payload matches neither SPDX nor CycloneDX.
// It records the two parsers' rejection reasons so operators can tell a
// genuinely malformed SBOM from a format the extractor doesn't support, and
// is what the indexer loop reports on the failed topic.
type ParseError struct {
	SPDXErr      error
	CycloneDXErr error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("not a recognized SBOM: spdx: %v; cyclonedx: %v", e.SPDXErr, e.CycloneDXErr)
}

func (e *ParseError) Unwrap() []error {
	return []error{e.SPDXErr, e.CycloneDXErr}
}

// Extract parses raw and returns the single schema.Document it describes,
// keyed by the caller-supplied logical key (the object's storage key with
// the "data/" prefix already stripped, used verbatim as sbom_id). SPDX is
// attempted first; CycloneDX second; a *ParseError is returned only when
// both fail.
func Extract(key string, raw []byte) (*schema.Document, error) {
	doc, spdxErr := parseSPDX(key, raw)
	if spdxErr == nil {
		return doc, nil
	}
	doc, cdxErr := parseCycloneDX(key, raw)
	if cdxErr == nil {
		return doc, nil
	}
	return nil, &ParseError{SPDXErr: spdxErr, CycloneDXErr: cdxErr}
}

package extractor

import (
	"github.com/package-url/packageurl-go"

	"github.com/summit/services/sbomindexd/internal/schema"
)

// decomposePURL parses a raw Package URL string and returns its sub-fields
// for indexing. A parse failure is not fatal to extraction: the raw
// string is still indexed verbatim, only the decomposed sub-fields are
// omitted (the function returns nil).
func decomposePURL(raw string) *schema.DecomposedPURL {
	if raw == "" {
		return nil
	}
	p, err := packageurl.FromString(raw)
	if err != nil {
		return nil
	}
	d := &schema.DecomposedPURL{
		Type:      p.Type,
		Namespace: p.Namespace,
		Name:      p.Name,
		Version:   p.Version,
	}
	if len(p.Qualifiers) > 0 {
		d.Qualifiers = p.Qualifiers.Map()
	}
	return d
}

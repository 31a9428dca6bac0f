package extractor

import (
	"bytes"
	"fmt"
	"time"

	cdx "github.com/CycloneDX/cyclonedx-go"

	"github.com/summit/services/sbomindexd/internal/schema"
)

// parseCycloneDX decodes raw as a CycloneDX JSON document and maps it to a
// schema.Document.
func parseCycloneDX(key string, raw []byte) (*schema.Document, error) {
	decoder := cdx.NewBOMDecoder(bytes.NewReader(raw), cdx.BOMFileFormatJSON)
	var bom cdx.BOM
	if err := decoder.Decode(&bom); err != nil {
		return nil, fmt.Errorf("decode cyclonedx: %w", err)
	}
	if bom.Metadata == nil || bom.Metadata.Component == nil {
		return nil, fmt.Errorf("decode cyclonedx: no metadata.component")
	}

	created := parseCycloneDXCreated(bom.Metadata.Timestamp)
	name := bom.Metadata.Component.Name
	out := schema.NewDocument(key, name, created)

	mapCycloneDXComponent(out, schema.Primary, bom.Metadata.Component)
	if bom.Components != nil {
		for i := range *bom.Components {
			mapCycloneDXComponent(out, schema.Dependency, &(*bom.Components)[i])
		}
	}
	return out, nil
}

func parseCycloneDXCreated(timestamp string) int64 {
	if timestamp == "" {
		return 0
	}
	t, err := time.Parse(time.RFC3339, timestamp)
	if err != nil {
		return 0
	}
	return t.UnixMilli()
}

func mapCycloneDXComponent(out *schema.Document, group schema.Group, c *cdx.Component) {
	if c == nil {
		return
	}
	if c.Name != "" {
		out.AddName(group, c.Name)
	}
	if c.Version != "" {
		out.AddVersion(group, c.Version)
	}
	if c.Description != "" {
		out.AddDesc(group, c.Description)
	}
	if c.Type != "" {
		out.AddClassifier(group, string(c.Type))
	}
	if c.PackageURL != "" {
		out.AddPURL(group, c.PackageURL, decomposePURL(c.PackageURL))
	}
	if c.Hashes != nil {
		for _, h := range *c.Hashes {
			if h.Algorithm == cdx.HashAlgoSHA256 {
				out.AddSHA256(group, h.Value)
			}
		}
	}
	if c.Licenses != nil {
		for _, choice := range *c.Licenses {
			if choice.License != nil && choice.License.Name != "" {
				out.AddLicense(group, choice.License.Name)
			}
		}
	}
	if c.Supplier != nil && c.Supplier.Name != "" {
		out.AddSupplier(group, c.Supplier.Name)
	}
}

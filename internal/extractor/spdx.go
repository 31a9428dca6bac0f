package extractor

import (
	"bytes"
	"fmt"
	"time"

	spdxjson "github.com/spdx/tools-golang/json"
	"github.com/spdx/tools-golang/spdx/v2/common"
	spdx23 "github.com/spdx/tools-golang/spdx/v2/v2_3"

	"github.com/summit/services/sbomindexd/internal/schema"
)

// spdxCreatedLayout is the timestamp format SPDX 2.3 creation info uses.
const spdxCreatedLayout = "2006-01-02T15:04:05Z"

// parseSPDX decodes raw as an SPDX 2.3 JSON document and maps it to a
// schema.Document.
func parseSPDX(key string, raw []byte) (*schema.Document, error) {
	doc, err := spdxjson.Read(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("decode spdx: %w", err)
	}
	if doc == nil || len(doc.Packages) == 0 {
		return nil, fmt.Errorf("decode spdx: no packages")
	}

	created := parseSPDXCreated(doc)
	out := schema.NewDocument(key, doc.DocumentName, created)
	for _, c := range spdxCreators(doc) {
		out.SBOMCreators = append(out.SBOMCreators, c)
	}

	describes := spdxDescribes(doc)
	for _, pkg := range doc.Packages {
		if pkg == nil {
			continue
		}
		group := schema.Dependency
		if describes[string(pkg.PackageSPDXIdentifier)] {
			group = schema.Primary
		}
		mapSPDXPackage(out, group, pkg)
	}
	return out, nil
}

func parseSPDXCreated(doc *spdx23.Document) int64 {
	if doc.CreationInfo == nil || doc.CreationInfo.Created == "" {
		return 0
	}
	t, err := time.Parse(spdxCreatedLayout, doc.CreationInfo.Created)
	if err != nil {
		t, err = time.Parse(time.RFC3339, doc.CreationInfo.Created)
		if err != nil {
			return 0
		}
	}
	return t.UnixMilli()
}

func spdxCreators(doc *spdx23.Document) []string {
	if doc.CreationInfo == nil {
		return nil
	}
	out := make([]string, 0, len(doc.CreationInfo.Creators))
	for _, c := range doc.CreationInfo.Creators {
		out = append(out, c.Creator)
	}
	return out
}

// spdxDescribes returns the set of package SPDX identifiers the document
// DESCRIBES, derived from its relationships (tools-golang does not surface a
// dedicated DocumentDescribes field on v2_3.Document).
func spdxDescribes(doc *spdx23.Document) map[string]bool {
	out := make(map[string]bool)
	docID := string(doc.SPDXIdentifier)
	for _, rel := range doc.Relationships {
		if rel == nil || rel.Relationship != "DESCRIBES" {
			continue
		}
		if string(rel.RefA.ElementRefID) != docID {
			continue
		}
		out[string(rel.RefB.ElementRefID)] = true
	}
	return out
}

func mapSPDXPackage(out *schema.Document, group schema.Group, pkg *spdx23.Package) {
	if pkg.PackageName != "" {
		out.AddName(group, pkg.PackageName)
	}
	if pkg.PackageVersion != "" {
		out.AddVersion(group, pkg.PackageVersion)
	}
	if pkg.PackageSummary != "" {
		out.AddDesc(group, pkg.PackageSummary)
	}
	if license := spdxDeclaredLicense(pkg); license != "" {
		out.AddLicense(group, license)
	}
	if pkg.PackageSupplier != nil && pkg.PackageSupplier.Supplier != "" {
		out.AddSupplier(group, pkg.PackageSupplier.Supplier)
	}
	for _, sum := range pkg.PackageChecksums {
		if sum.Algorithm == common.SHA256 {
			out.AddSHA256(group, sum.Value)
		}
	}
	for _, ref := range pkg.PackageExternalReferences {
		if ref == nil {
			continue
		}
		switch ref.RefType {
		case "purl":
			out.AddPURL(group, ref.Locator, decomposePURL(ref.Locator))
		case "cpe22Type":
			out.AddCPE(group, ref.Locator)
		}
	}
}

// spdxDeclaredLicense stringifies the package's declared license, skipping
// the SPDX "NOASSERTION"/"NONE" placeholders so they don't pollute the
// license facet.
func spdxDeclaredLicense(pkg *spdx23.Package) string {
	switch pkg.PackageLicenseDeclared {
	case "", "NOASSERTION", "NONE":
		return ""
	default:
		return pkg.PackageLicenseDeclared
	}
}

// Package schema defines the searchable field set shared by every SBOM the
// indexer ingests: one flat document per SBOM carrying a primary-package
// group (sbom_pkg_*) and a dependency group (dep_*) whose fields accumulate
// one value per dependency package.
package schema

import (
	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/mapping"
)

// Field names as addressed by the query compiler and filter language.
// Identity and temporal fields live unprefixed; primary-package fields
// carry a "sbom_pkg_" prefix and dependency fields a "dep_" prefix.
const (
	FieldSBOMID       = "sbom_id"
	FieldSBOMName     = "sbom_name"
	FieldSBOMCreated  = "sbom_created"
	FieldSBOMInverse  = "sbom_created_inverse"
	FieldSBOMCreators = "sbom_creators"

	FieldPkgName               = "sbom_pkg_name"
	FieldPkgVersion            = "sbom_pkg_version"
	FieldPkgDesc               = "sbom_pkg_desc"
	FieldPkgPURL               = "sbom_pkg_purl"
	FieldPkgCPE                = "sbom_pkg_cpe"
	FieldPkgLicense            = "sbom_pkg_license"
	FieldPkgSupplier           = "sbom_pkg_supplier"
	FieldPkgClassifier         = "sbom_pkg_classifier"
	FieldPkgSHA256             = "sbom_pkg_sha256"
	FieldPkgPURLType           = "sbom_pkg_purl_type"
	FieldPkgPURLNamespace      = "sbom_pkg_purl_namespace"
	FieldPkgPURLName           = "sbom_pkg_purl_name"
	FieldPkgPURLVersion        = "sbom_pkg_purl_version"
	FieldPkgPURLQualifiers     = "sbom_pkg_purl_qualifiers"
	FieldPkgPURLQualifierValue = "sbom_pkg_purl_qualifiers_values"

	FieldDepName          = "dep_name"
	FieldDepVersion       = "dep_version"
	FieldDepDesc          = "dep_desc"
	FieldDepPURL          = "dep_purl"
	FieldDepCPE           = "dep_cpe"
	FieldDepLicense       = "dep_license"
	FieldDepSupplier      = "dep_supplier"
	FieldDepClassifier    = "dep_classifier"
	FieldDepSHA256        = "dep_sha256"
	FieldDepPURLType      = "dep_purl_type"
	FieldDepPURLNamespace = "dep_purl_namespace"
	FieldDepPURLName      = "dep_purl_name"
	FieldDepPURLVersion   = "dep_purl_version"
	FieldDepPURLQualifier = "dep_purl_qualifiers"
)

// Group identifies which half of a Document a package's fields belong to.
type Group int

const (
	// Primary is the SBOM's single described package.
	Primary Group = iota
	// Dependency is any other package/component listed in the SBOM.
	Dependency
)

// DecomposedPURL is the set of sub-fields extracted from a successfully
// parsed Package URL.
type DecomposedPURL struct {
	Type       string
	Namespace  string
	Name       string
	Version    string
	Qualifiers map[string]string
}

// Document is the single indexable record produced for an SBOM. Exactly
// one Document exists per sbom_id; dependency fields accumulate one entry per
// dependency package rather than spawning additional documents.
type Document struct {
	SBOMID       string   `json:"sbom_id"`
	SBOMName     string   `json:"sbom_name"`
	SBOMCreated  int64    `json:"sbom_created"`
	SBOMInverse  int64    `json:"sbom_created_inverse"`
	SBOMCreators []string `json:"sbom_creators,omitempty"`

	PkgName          []string `json:"sbom_pkg_name,omitempty"`
	PkgVersion       []string `json:"sbom_pkg_version,omitempty"`
	PkgDesc          []string `json:"sbom_pkg_desc,omitempty"`
	PkgPURL          []string `json:"sbom_pkg_purl,omitempty"`
	PkgCPE           []string `json:"sbom_pkg_cpe,omitempty"`
	PkgLicense       []string `json:"sbom_pkg_license,omitempty"`
	PkgSupplier      []string `json:"sbom_pkg_supplier,omitempty"`
	PkgClassifier    []string `json:"sbom_pkg_classifier,omitempty"`
	PkgSHA256        []string `json:"sbom_pkg_sha256,omitempty"`
	PkgPURLType      []string `json:"sbom_pkg_purl_type,omitempty"`
	PkgPURLNamespace []string `json:"sbom_pkg_purl_namespace,omitempty"`
	PkgPURLName      []string `json:"sbom_pkg_purl_name,omitempty"`
	PkgPURLVersion   []string `json:"sbom_pkg_purl_version,omitempty"`
	PkgPURLQualifier []string `json:"sbom_pkg_purl_qualifiers,omitempty"`
	// PkgPURLQualifierValues is populated only for the primary group.
	PkgPURLQualifierValues []string `json:"sbom_pkg_purl_qualifiers_values,omitempty"`

	DepName          []string `json:"dep_name,omitempty"`
	DepVersion       []string `json:"dep_version,omitempty"`
	DepDesc          []string `json:"dep_desc,omitempty"`
	DepPURL          []string `json:"dep_purl,omitempty"`
	DepCPE           []string `json:"dep_cpe,omitempty"`
	DepLicense       []string `json:"dep_license,omitempty"`
	DepSupplier      []string `json:"dep_supplier,omitempty"`
	DepClassifier    []string `json:"dep_classifier,omitempty"`
	DepSHA256        []string `json:"dep_sha256,omitempty"`
	DepPURLType      []string `json:"dep_purl_type,omitempty"`
	DepPURLNamespace []string `json:"dep_purl_namespace,omitempty"`
	DepPURLName      []string `json:"dep_purl_name,omitempty"`
	DepPURLVersion   []string `json:"dep_purl_version,omitempty"`
	DepPURLQualifier []string `json:"dep_purl_qualifiers,omitempty"`
}

// NewDocument builds a Document with its identity and temporal invariant
// (sbom_created_inverse = -sbom_created) already satisfied.
func NewDocument(id, name string, createdUnixMillis int64) *Document {
	return &Document{
		SBOMID:      id,
		SBOMName:    name,
		SBOMCreated: createdUnixMillis,
		SBOMInverse: -createdUnixMillis,
	}
}

// AddName appends a name value to the requested group.
func (d *Document) AddName(g Group, v string) {
	if g == Primary {
		d.PkgName = append(d.PkgName, v)
	} else {
		d.DepName = append(d.DepName, v)
	}
}

// AddVersion appends a version value to the requested group.
func (d *Document) AddVersion(g Group, v string) {
	if g == Primary {
		d.PkgVersion = append(d.PkgVersion, v)
	} else {
		d.DepVersion = append(d.DepVersion, v)
	}
}

// AddDesc appends a description value to the requested group.
func (d *Document) AddDesc(g Group, v string) {
	if g == Primary {
		d.PkgDesc = append(d.PkgDesc, v)
	} else {
		d.DepDesc = append(d.DepDesc, v)
	}
}

// AddCPE appends a CPE value to the requested group.
func (d *Document) AddCPE(g Group, v string) {
	if g == Primary {
		d.PkgCPE = append(d.PkgCPE, v)
	} else {
		d.DepCPE = append(d.DepCPE, v)
	}
}

// AddLicense appends a license value to the requested group.
func (d *Document) AddLicense(g Group, v string) {
	if g == Primary {
		d.PkgLicense = append(d.PkgLicense, v)
	} else {
		d.DepLicense = append(d.DepLicense, v)
	}
}

// AddSupplier appends a supplier value to the requested group.
func (d *Document) AddSupplier(g Group, v string) {
	if g == Primary {
		d.PkgSupplier = append(d.PkgSupplier, v)
	} else {
		d.DepSupplier = append(d.DepSupplier, v)
	}
}

// AddClassifier appends a classifier value to the requested group.
func (d *Document) AddClassifier(g Group, v string) {
	if g == Primary {
		d.PkgClassifier = append(d.PkgClassifier, v)
	} else {
		d.DepClassifier = append(d.DepClassifier, v)
	}
}

// AddSHA256 appends a checksum value to the requested group.
func (d *Document) AddSHA256(g Group, v string) {
	if g == Primary {
		d.PkgSHA256 = append(d.PkgSHA256, v)
	} else {
		d.DepSHA256 = append(d.DepSHA256, v)
	}
}

// AddPURL records the raw Package URL and, when it parsed successfully, its
// decomposed sub-fields. Both groups store qualifiers as "key=value"
// pairs; only the primary group additionally records bare qualifier values.
func (d *Document) AddPURL(g Group, raw string, decomposed *DecomposedPURL) {
	if g == Primary {
		d.PkgPURL = append(d.PkgPURL, raw)
	} else {
		d.DepPURL = append(d.DepPURL, raw)
	}
	if decomposed == nil {
		return
	}
	switch g {
	case Primary:
		if decomposed.Type != "" {
			d.PkgPURLType = append(d.PkgPURLType, decomposed.Type)
		}
		if decomposed.Namespace != "" {
			d.PkgPURLNamespace = append(d.PkgPURLNamespace, decomposed.Namespace)
		}
		if decomposed.Name != "" {
			d.PkgPURLName = append(d.PkgPURLName, decomposed.Name)
		}
		if decomposed.Version != "" {
			d.PkgPURLVersion = append(d.PkgPURLVersion, decomposed.Version)
		}
		for k, v := range decomposed.Qualifiers {
			d.PkgPURLQualifier = append(d.PkgPURLQualifier, k+"="+v)
			d.PkgPURLQualifierValues = append(d.PkgPURLQualifierValues, v)
		}
	case Dependency:
		if decomposed.Type != "" {
			d.DepPURLType = append(d.DepPURLType, decomposed.Type)
		}
		if decomposed.Namespace != "" {
			d.DepPURLNamespace = append(d.DepPURLNamespace, decomposed.Namespace)
		}
		if decomposed.Name != "" {
			d.DepPURLName = append(d.DepPURLName, decomposed.Name)
		}
		if decomposed.Version != "" {
			d.DepPURLVersion = append(d.DepPURLVersion, decomposed.Version)
		}
		for k, v := range decomposed.Qualifiers {
			d.DepPURLQualifier = append(d.DepPURLQualifier, k+"="+v)
		}
	}
}

// BleveType satisfies bleve's type-field convention so every Document routes
// through the same document mapping.
func (Document) BleveType() string { return "sbom" }

// NewMapping constructs the fixed, immutable index mapping used by every
// sbomindexd instance. String fields use the keyword analyzer (single-term,
// exact match); desc and license fields use bleve's standard analyzer
// (word-tokenized, case-folded) for relevance scoring.
func NewMapping() mapping.IndexMapping {
	stringField := bleve.NewTextFieldMapping()
	stringField.Analyzer = keyword.Name
	stringField.Store = true
	stringField.IncludeInAll = false

	textField := bleve.NewTextFieldMapping()
	textField.Store = true
	textField.IncludeInAll = false

	numericField := bleve.NewNumericFieldMapping()
	numericField.Store = true
	numericField.IncludeInAll = false

	doc := bleve.NewDocumentMapping()
	doc.AddFieldMappingsAt(FieldSBOMID, stringField)
	doc.AddFieldMappingsAt(FieldSBOMName, stringField)
	doc.AddFieldMappingsAt(FieldSBOMCreated, numericField)
	doc.AddFieldMappingsAt(FieldSBOMInverse, numericField)
	doc.AddFieldMappingsAt(FieldSBOMCreators, stringField)

	for _, f := range []string{
		FieldPkgName, FieldPkgVersion, FieldPkgPURL, FieldPkgCPE,
		FieldPkgClassifier, FieldPkgSHA256, FieldPkgPURLType, FieldPkgPURLNamespace,
		FieldPkgPURLName, FieldPkgPURLVersion, FieldPkgPURLQualifiers, FieldPkgPURLQualifierValue,
		FieldDepName, FieldDepVersion, FieldDepPURL, FieldDepCPE,
		FieldDepClassifier, FieldDepSHA256, FieldDepPURLType, FieldDepPURLNamespace,
		FieldDepPURLName, FieldDepPURLVersion, FieldDepPURLQualifier,
	} {
		doc.AddFieldMappingsAt(f, stringField)
	}
	// Supplier is analyzed rather than keyword-matched: a search like
	// `"Red Hat" in:supplier` has to match organization names such as
	// "Red Hat, Inc." on a word basis, which only a tokenized field
	// supports.
	for _, f := range []string{FieldPkgDesc, FieldPkgLicense, FieldDepDesc, FieldDepLicense, FieldPkgSupplier, FieldDepSupplier} {
		doc.AddFieldMappingsAt(f, textField)
	}

	im := bleve.NewIndexMapping()
	im.DefaultMapping = doc
	return im
}

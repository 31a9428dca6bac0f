// Package query lowers a parsed filter.Tree into a bleve query plus an
// optional sort field.
package query

import (
	"strings"
	"time"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search/query"

	"github.com/summit/services/sbomindexd/internal/filter"
	"github.com/summit/services/sbomindexd/internal/schema"
)

const (
	packageBoost = 1.5
	createdBoost = 1.25
)

const dateLayout = "2006-01-02"

// Compiled is the compiler's output: an engine query plus the field hits
// should be sorted by (empty/zero value means unsorted, i.e. relevance
// order).
type Compiled struct {
	Query     query.Query
	SortField string // "" means no explicit sort
}

// Compile lowers t into a Compiled query. An empty tree compiles to
// match-all with no sort.
func Compile(t *filter.Tree) *Compiled {
	if t == nil {
		return &Compiled{Query: bleve.NewMatchAllQuery()}
	}
	q := compileNode(t.Root)
	c := &Compiled{Query: q}
	if t.Sort.Explicit {
		// The engine sorts the chosen field descending. "sort:created" is
		// ascending by creation, so it orders by the negated timestamp;
		// "-sort:created" orders by the timestamp itself (newest first).
		if t.Sort.Inverse {
			c.SortField = schema.FieldSBOMCreated
		} else {
			c.SortField = schema.FieldSBOMInverse
		}
	}
	return c
}

func compileNode(n *filter.Node) query.Query {
	switch {
	case n == nil:
		return bleve.NewMatchAllQuery()
	case n.Leaf != nil:
		return compileLeaf(n.Leaf)
	case n.Not != nil:
		inner := compileNode(n.Not)
		all := bleve.NewMatchAllQuery()
		bq := bleve.NewBooleanQuery()
		bq.AddMust(all)
		bq.AddMustNot(inner)
		return bq
	case n.And != nil:
		bq := bleve.NewBooleanQuery()
		for _, child := range n.And {
			bq.AddMust(compileNode(child))
		}
		return bq
	case n.Or != nil:
		dq := bleve.NewDisjunctionQuery()
		for _, child := range n.Or {
			dq.AddQuery(compileNode(child))
		}
		dq.SetMin(1)
		return dq
	default:
		return bleve.NewMatchAllQuery()
	}
}

func compileLeaf(l *filter.Leaf) query.Query {
	switch l.Kind {
	case filter.KindPackage:
		return unionTermQuery(packageBoost, l.Value,
			schema.FieldSBOMName, schema.FieldPkgName, schema.FieldPkgPURL,
			schema.FieldPkgCPE, schema.FieldPkgPURLName)
	case filter.KindType:
		return termQuery(l.Value, schema.FieldPkgPURLType)
	case filter.KindNamespace:
		return termQuery(l.Value, schema.FieldPkgPURLNamespace)
	case filter.KindVersion:
		return unionTermQuery(1, l.Value, schema.FieldPkgVersion, schema.FieldPkgPURLVersion)
	case filter.KindDescription:
		return matchQuery(l.Value, schema.FieldPkgDesc)
	case filter.KindDigest:
		return termQuery(l.Value, schema.FieldPkgSHA256)
	case filter.KindLicense:
		return termQuery(l.Value, schema.FieldPkgLicense)
	case filter.KindSupplier:
		return matchQuery(l.Value, schema.FieldPkgSupplier)
	case filter.KindQualifier:
		return termQuery(l.QualifierKey+"="+l.QualifierValue, schema.FieldPkgPURLQualifiers)
	case filter.KindDependency:
		return unionTermQuery(1, l.Value,
			schema.FieldDepName, schema.FieldDepPURLName, schema.FieldDepPURL, schema.FieldDepCPE)
	case filter.KindCreated:
		return createdRangeQuery(l)
	case filter.KindClassifier:
		dq := bleve.NewDisjunctionQuery(
			termQuery(l.Value, schema.FieldPkgClassifier),
			termQuery(l.Value, schema.FieldDepClassifier),
		)
		dq.SetMin(1)
		return dq
	default:
		return bleve.NewMatchAllQuery()
	}
}

// termQuery builds an exact/prefix-match query against a keyword-analyzed
// field: `*` selects a wildcard query, anything else an exact term query.
func termQuery(value, field string) query.Query {
	if strings.Contains(value, "*") {
		wq := bleve.NewWildcardQuery(value)
		wq.SetField(field)
		return wq
	}
	tq := bleve.NewTermQuery(value)
	tq.SetField(field)
	return tq
}

// unionTermQuery ORs a termQuery across multiple fields with an optional
// boost on the resulting disjunction.
func unionTermQuery(boost float64, value string, fields ...string) query.Query {
	dq := bleve.NewDisjunctionQuery()
	for _, f := range fields {
		dq.AddQuery(termQuery(value, f))
	}
	dq.SetMin(1)
	if boost != 1 {
		dq.SetBoost(boost)
	}
	return dq
}

// matchQuery builds an analyzed (tokenized, scored) query.
func matchQuery(value, field string) query.Query {
	mq := bleve.NewMatchQuery(value)
	mq.SetField(field)
	return mq
}

// createdRangeQuery builds a numeric range query over sbom_created, which is
// stored as Unix milliseconds rather than a bleve datetime field so that its
// negation (sbom_created_inverse) can be sorted the same way.
func createdRangeQuery(l *filter.Leaf) query.Query {
	var min, max *float64
	if t, err := time.Parse(dateLayout, l.DateFrom); l.DateFrom != "" && err == nil {
		if l.Op == filter.OpGT {
			// strictly after the named day
			t = t.AddDate(0, 0, 1)
		}
		v := float64(t.UnixMilli())
		min = &v
	}
	if t, err := time.Parse(dateLayout, l.DateTo); l.DateTo != "" && err == nil {
		if l.Op != filter.OpLT {
			// the engine's upper bound is exclusive; advance to the start
			// of the following day so inclusive forms cover the whole day
			t = t.AddDate(0, 0, 1)
		}
		v := float64(t.UnixMilli())
		max = &v
	}
	nrq := bleve.NewNumericRangeQuery(min, max)
	nrq.SetField(schema.FieldSBOMCreated)
	nrq.SetBoost(createdBoost)
	return nrq
}

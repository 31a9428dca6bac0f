package filter_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/summit/services/sbomindexd/internal/filter"
)

func mustParse(t *testing.T, input string) *filter.Tree {
	t.Helper()
	tree, err := filter.Parse(input)
	require.NoError(t, err)
	return tree
}

func TestParseEmpty(t *testing.T) {
	tree := mustParse(t, "")
	require.Nil(t, tree.Root)
	require.False(t, tree.Sort.Explicit)
}

func TestParseFreeTerm(t *testing.T) {
	tree := mustParse(t, "ubi9-container")
	require.NotNil(t, tree.Root.Leaf)
	require.Equal(t, filter.KindPackage, tree.Root.Leaf.Kind)
	require.Equal(t, "ubi9-container", tree.Root.Leaf.Value)
}

func TestParseQuotedTermWithScope(t *testing.T) {
	tree := mustParse(t, `"cpe:/a:redhat:kernel_module_management:1.0::el9" in:package`)
	require.NotNil(t, tree.Root.Leaf)
	require.Equal(t, filter.KindPackage, tree.Root.Leaf.Kind)
	require.Equal(t, "cpe:/a:redhat:kernel_module_management:1.0::el9", tree.Root.Leaf.Value)

	tree = mustParse(t, `"Red Hat" in:supplier`)
	require.Equal(t, filter.KindSupplier, tree.Root.Leaf.Kind)
	require.Equal(t, "Red Hat", tree.Root.Leaf.Value)

	tree = mustParse(t, "openssl in:dependency")
	require.Equal(t, filter.KindDependency, tree.Root.Leaf.Kind)
}

func TestParseFieldPredicates(t *testing.T) {
	tree := mustParse(t, "type:oci")
	require.Equal(t, filter.KindType, tree.Root.Leaf.Kind)
	require.Equal(t, "oci", tree.Root.Leaf.Value)

	tree = mustParse(t, "namespace:io.seedwing")
	require.Equal(t, filter.KindNamespace, tree.Root.Leaf.Kind)
	require.Equal(t, "io.seedwing", tree.Root.Leaf.Value)

	tree = mustParse(t, "qualifier:tag:9.1.0-1782")
	require.Equal(t, filter.KindQualifier, tree.Root.Leaf.Kind)
	require.Equal(t, "tag", tree.Root.Leaf.QualifierKey)
	require.Equal(t, "9.1.0-1782", tree.Root.Leaf.QualifierValue)
}

func TestParseCreatedPredicates(t *testing.T) {
	tree := mustParse(t, "created:>2022-01-01")
	leaf := tree.Root.Leaf
	require.Equal(t, filter.KindCreated, leaf.Kind)
	require.Equal(t, filter.OpGT, leaf.Op)
	require.Equal(t, "2022-01-01", leaf.DateFrom)

	tree = mustParse(t, "created:<=2023-06-30")
	leaf = tree.Root.Leaf
	require.Equal(t, filter.OpLE, leaf.Op)
	require.Equal(t, "2023-06-30", leaf.DateTo)

	tree = mustParse(t, "created:2022-01-01..2022-12-31")
	leaf = tree.Root.Leaf
	require.Equal(t, filter.OpRange, leaf.Op)
	require.Equal(t, "2022-01-01", leaf.DateFrom)
	require.Equal(t, "2022-12-31", leaf.DateTo)

	tree = mustParse(t, "created:2022-01-01")
	leaf = tree.Root.Leaf
	require.Equal(t, filter.OpEq, leaf.Op)
	require.Equal(t, "2022-01-01", leaf.DateFrom)
	require.Equal(t, "2022-01-01", leaf.DateTo)
}

func TestParseClassifierWords(t *testing.T) {
	tree := mustParse(t, "library")
	require.Equal(t, filter.KindClassifier, tree.Root.Leaf.Kind)
	require.Equal(t, "library", tree.Root.Leaf.Value)

	// Unknown bare words stay free terms.
	tree = mustParse(t, "libraries")
	require.Equal(t, filter.KindPackage, tree.Root.Leaf.Kind)
}

func TestParseBooleanComposition(t *testing.T) {
	tree := mustParse(t, "openssl type:rpm")
	require.Len(t, tree.Root.And, 2)

	tree = mustParse(t, "type:oci OR type:rpm type:maven")
	require.Len(t, tree.Root.Or, 2)
	require.NotNil(t, tree.Root.Or[0].Leaf)
	require.Len(t, tree.Root.Or[1].And, 2)

	tree = mustParse(t, "NOT type:oci")
	require.NotNil(t, tree.Root.Not)
	require.Equal(t, filter.KindType, tree.Root.Not.Leaf.Kind)

	tree = mustParse(t, "(type:oci OR type:rpm) openssl")
	require.Len(t, tree.Root.And, 2)
	require.Len(t, tree.Root.And[0].Or, 2)
}

func TestCompaction(t *testing.T) {
	// Double negation cancels.
	tree := mustParse(t, "NOT NOT openssl")
	require.NotNil(t, tree.Root.Leaf)
	require.Equal(t, "openssl", tree.Root.Leaf.Value)

	// Nested same-kind nodes flatten.
	tree = mustParse(t, "a (b c)")
	require.Len(t, tree.Root.And, 3)
}

func TestParseSortDirectives(t *testing.T) {
	tree := mustParse(t, "openssl sort:created")
	require.True(t, tree.Sort.Explicit)
	require.Equal(t, "created", tree.Sort.Field)
	require.False(t, tree.Sort.Inverse)

	tree = mustParse(t, "-sort:created openssl")
	require.True(t, tree.Sort.Inverse)
	require.NotNil(t, tree.Root.Leaf)

	// Only the first sort directive is honored.
	tree = mustParse(t, "sort:created -sort:created")
	require.False(t, tree.Sort.Inverse)
}

func TestParseErrors(t *testing.T) {
	for _, input := range []string{
		`"unterminated`,
		"OR openssl",
		"(openssl",
		"in:package",
		"qualifier:tag",
		"created:",
	} {
		_, err := filter.Parse(input)
		require.Error(t, err, "input %q", input)
		var perr *filter.ParseError
		require.ErrorAs(t, err, &perr, "input %q", input)
	}
}

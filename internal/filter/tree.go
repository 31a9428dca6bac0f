// Package filter implements the user-facing filter grammar and its parse
// into an abstract term tree.
package filter

// Kind identifies the variety of a Leaf term, one per predicate the query
// compiler knows how to lower.
type Kind int

const (
	KindPackage Kind = iota
	KindType
	KindNamespace
	KindVersion
	KindDescription
	KindDigest
	KindLicense
	KindSupplier
	KindQualifier
	KindDependency
	KindCreated
	KindClassifier
)

// Op is a date/numeric comparison operator recognized on a predicate value.
type Op int

const (
	OpEq Op = iota
	OpGT
	OpGE
	OpLT
	OpLE
	OpRange // inclusive DATE..DATE
)

// Leaf is a single matchable predicate at the bottom of a term tree.
type Leaf struct {
	Kind Kind

	// Value is the literal operand for string/term leaves (Package, Type,
	// Namespace, Version, Description, Digest, License, Supplier,
	// Dependency) and the classifier name for KindClassifier.
	Value string

	// QualifierKey/QualifierValue are set only for KindQualifier.
	QualifierKey   string
	QualifierValue string

	// Op/DateFrom/DateTo are set only for KindCreated.
	Op       Op
	DateFrom string
	DateTo   string
}

// Node is one element of a term tree: exactly one of Leaf, And, Or, or Not
// (the Not operand) is populated.
type Node struct {
	Leaf *Leaf
	And  []*Node
	Or   []*Node
	Not  *Node
}

// Sort is the optional trailing sort directive. Field is the name written
// after "sort:"; the query compiler sorts by creation whatever it names.
// Inverse selects the "-sort:" form, which orders newest first; the plain
// "sort:" form orders oldest first.
type Sort struct {
	Field    string
	Inverse  bool
	Explicit bool // whether the user specified a sort directive at all
}

// Tree is a parsed, compacted filter expression plus its (at most one) sort
// directive.
type Tree struct {
	Root *Node // nil means "match all"
	Sort Sort
}

func leaf(l Leaf) *Node { return &Node{Leaf: &l} }

// and builds a flattened conjunction: nested And nodes among operands are
// absorbed rather than nested.
func and(nodes ...*Node) *Node {
	return flatten(&Node{And: nodes})
}

func or(nodes ...*Node) *Node {
	return flatten(&Node{Or: nodes})
}

// compact flattens nested same-kind boolean nodes and eliminates double
// negation.
func compact(n *Node) *Node {
	if n == nil {
		return nil
	}
	switch {
	case n.Leaf != nil:
		return n
	case n.Not != nil:
		inner := compact(n.Not)
		if inner != nil && inner.Not != nil {
			// NOT (NOT x) == x
			return inner.Not
		}
		return &Node{Not: inner}
	case n.And != nil:
		return flatten(&Node{And: compactAll(n.And)})
	case n.Or != nil:
		return flatten(&Node{Or: compactAll(n.Or)})
	}
	return n
}

func compactAll(nodes []*Node) []*Node {
	out := make([]*Node, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, compact(n))
	}
	return out
}

func flatten(n *Node) *Node {
	switch {
	case n.And != nil:
		out := make([]*Node, 0, len(n.And))
		for _, child := range n.And {
			if child != nil && child.And != nil {
				out = append(out, child.And...)
			} else if child != nil {
				out = append(out, child)
			}
		}
		if len(out) == 1 {
			return out[0]
		}
		return &Node{And: out}
	case n.Or != nil:
		out := make([]*Node, 0, len(n.Or))
		for _, child := range n.Or {
			if child != nil && child.Or != nil {
				out = append(out, child.Or...)
			} else if child != nil {
				out = append(out, child)
			}
		}
		if len(out) == 1 {
			return out[0]
		}
		return &Node{Or: out}
	default:
		return n
	}
}

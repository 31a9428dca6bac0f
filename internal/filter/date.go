package filter

import "strings"

// parseCreatedValue parses the value half of a "created:VALUE" predicate
// into a KindCreated Leaf. Supported forms: "YYYY-MM-DD", ">DATE",
// ">=DATE", "<DATE", "<=DATE", and "DATE..DATE".
func parseCreatedValue(value string, pos int) (*Leaf, error) {
	switch {
	case strings.HasPrefix(value, ">="):
		return &Leaf{Kind: KindCreated, Op: OpGE, DateFrom: value[2:]}, nil
	case strings.HasPrefix(value, "<="):
		return &Leaf{Kind: KindCreated, Op: OpLE, DateTo: value[2:]}, nil
	case strings.HasPrefix(value, ">"):
		return &Leaf{Kind: KindCreated, Op: OpGT, DateFrom: value[1:]}, nil
	case strings.HasPrefix(value, "<"):
		return &Leaf{Kind: KindCreated, Op: OpLT, DateTo: value[1:]}, nil
	case strings.Contains(value, ".."):
		from, to, _ := strings.Cut(value, "..")
		return &Leaf{Kind: KindCreated, Op: OpRange, DateFrom: from, DateTo: to}, nil
	case value == "":
		return nil, &ParseError{Pos: pos, Msg: "empty created predicate"}
	default:
		return &Leaf{Kind: KindCreated, Op: OpEq, DateFrom: value, DateTo: value}, nil
	}
}

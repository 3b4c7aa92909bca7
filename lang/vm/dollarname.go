package vm

import "strings"

// DollarName is an ordered sequence of name segments (spec.md §3), e.g.
// ["a", "b", "c"]. Two names compare component-wise; Go slices aren't
// comparable, so the engine keys its maps on dnKey(name) rather than the
// slice itself.
type DollarName []string

func (n DollarName) String() string { return "$" + strings.Join(n, ".") }
func (n DollarName) Type() string   { return "DollarName" }

// IsPrefixOf reports whether n is a (non-strict) prefix of other.
func (n DollarName) IsPrefixOf(other DollarName) bool {
	if len(n) > len(other) {
		return false
	}
	for i, seg := range n {
		if other[i] != seg {
			return false
		}
	}
	return true
}

func (n DollarName) Equal(other DollarName) bool {
	if len(n) != len(other) {
		return false
	}
	for i, seg := range n {
		if other[i] != seg {
			return false
		}
	}
	return true
}

func (n DollarName) Child(seg string) DollarName {
	out := make(DollarName, len(n)+1)
	copy(out, n)
	out[len(n)] = seg
	return out
}

func (n DollarName) Parent() (DollarName, bool) {
	if len(n) == 0 {
		return nil, false
	}
	return n[:len(n)-1], true
}

// dnKey is the map key for a DollarName: segments joined by a NUL byte,
// which cannot occur in a surface name segment.
func dnKey(n DollarName) string { return strings.Join(n, "\x00") }

func dnFromKey(k string) DollarName {
	if k == "" {
		return DollarName{}
	}
	return DollarName(strings.Split(k, "\x00"))
}

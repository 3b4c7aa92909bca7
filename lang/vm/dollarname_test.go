package vm

import "testing"

func TestDollarNameString(t *testing.T) {
	n := DollarName{"a", "b", "c"}
	if got, want := n.String(), "$a.b.c"; got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
	if got, want := (DollarName{}).String(), "$"; got != want {
		t.Errorf("empty String() = %q, want %q", got, want)
	}
}

func TestDollarNamePrefixAndEqual(t *testing.T) {
	parent := DollarName{"a", "b"}
	child := DollarName{"a", "b", "c"}
	other := DollarName{"a", "x"}

	if !parent.IsPrefixOf(child) {
		t.Error("parent should be a prefix of child")
	}
	if child.IsPrefixOf(parent) {
		t.Error("child should not be a prefix of parent")
	}
	if parent.IsPrefixOf(other) {
		t.Error("parent should not be a prefix of other")
	}
	if !parent.Equal(DollarName{"a", "b"}) {
		t.Error("identical names should compare equal")
	}
	if parent.Equal(other) {
		t.Error("different names should not compare equal")
	}
}

func TestDollarNameChildAndParent(t *testing.T) {
	n := DollarName{"a", "b"}
	c := n.Child("c")
	if !c.Equal(DollarName{"a", "b", "c"}) {
		t.Errorf("Child() = %v, want [a b c]", c)
	}
	// Child must not mutate the receiver's backing array.
	if len(n) != 2 {
		t.Errorf("Child() mutated receiver: %v", n)
	}

	p, ok := c.Parent()
	if !ok || !p.Equal(n) {
		t.Errorf("Parent() = %v, %v, want %v, true", p, ok, n)
	}

	_, ok = DollarName{}.Parent()
	if ok {
		t.Error("Parent() of empty name should report ok=false")
	}
}

func TestDnKeyRoundTrip(t *testing.T) {
	n := DollarName{"a", "b", "c"}
	k := dnKey(n)
	if got := dnFromKey(k); !got.Equal(n) {
		t.Errorf("dnFromKey(dnKey(n)) = %v, want %v", got, n)
	}
	if got := dnFromKey(dnKey(DollarName{})); len(got) != 0 {
		t.Errorf("dnFromKey(dnKey(empty)) = %v, want empty", got)
	}
}

package querystate

import (
	"net/url"
	"testing"
)

func TestValueEqual(t *testing.T) {
	if !String("a").Equal(String("a")) {
		t.Error("Expected equal scalars")
	}
	if String("a").Equal(String("b")) {
		t.Error("Expected unequal scalars")
	}
	if String("a").Equal(List("a")) {
		t.Error("Scalar and list must not be equal")
	}
	if !List("a", "b").Equal(List("a", "b")) {
		t.Error("Expected equal lists")
	}
	if List("a", "b").Equal(List("b", "a")) {
		t.Error("List equality is order-sensitive")
	}
}

func TestFromValuesBracketNotation(t *testing.T) {
	q, err := url.ParseQuery("value%5B%5D=Added0&value%5B%5D=Added1&q=search")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	rec := FromValues(q, nil)

	items := rec.GetList("value")
	if len(items) != 2 || items[0] != "Added0" || items[1] != "Added1" {
		t.Errorf("Expected ordered list [Added0 Added1], got %v", items)
	}
	if rec.Get("q") != "search" {
		t.Errorf("Expected scalar 'search', got %q", rec.Get("q"))
	}
}

func TestFromValuesSubset(t *testing.T) {
	q := url.Values{"q": {"B"}, "cursor": {"c"}, "limit": {"100"}}

	rec := FromValues(q, []string{"q"})

	if len(rec) != 1 {
		t.Errorf("Expected only owned keys, got %v", rec.Keys())
	}
	if rec.Get("q") != "B" {
		t.Errorf("Expected 'B', got %q", rec.Get("q"))
	}
}

func TestRecordGetBool(t *testing.T) {
	rec := Record{"a": String("true"), "b": String("false"), "c": String("yes")}

	if !rec.GetBool("a", false) {
		t.Error("Expected true for literal 'true'")
	}
	if rec.GetBool("b", true) {
		t.Error("Expected false for literal 'false'")
	}
	// Non-literal passes through as the default: decoding is best-effort.
	if !rec.GetBool("c", true) {
		t.Error("Expected default for non-boolean literal")
	}
	if rec.GetBool("missing", false) {
		t.Error("Expected default for absent key")
	}
}

func TestPatchApplyPreservesUnrelatedKeys(t *testing.T) {
	q := url.Values{"q": {"B"}, "cursor": {"c"}, "limit": {"100"}}

	patch := Patch{Set: Record{"q": String("Typed")}}
	merged := patch.Apply(q)

	if merged.Get("q") != "Typed" {
		t.Errorf("Expected q=Typed, got %q", merged.Get("q"))
	}
	if merged.Get("cursor") != "c" || merged.Get("limit") != "100" {
		t.Errorf("Unrelated keys modified: %v", merged)
	}

	// Input untouched
	if q.Get("q") != "B" {
		t.Error("Apply must not mutate its input")
	}
}

func TestPatchApplyRemove(t *testing.T) {
	q := url.Values{"q": {"Navigated"}, "other": {"x"}}

	patch := Patch{Remove: []string{"q"}}
	merged := patch.Apply(q)

	if _, ok := merged["q"]; ok {
		t.Error("Expected q to be removed entirely")
	}
	if merged.Get("other") != "x" {
		t.Error("Unrelated key lost")
	}
}

func TestPatchApplyListEncoding(t *testing.T) {
	q := url.Values{}

	merged := Patch{Set: Record{"value": List("Added0")}}.Apply(q)
	if got := merged.Encode(); got != "value%5B%5D=Added0" {
		t.Errorf("Expected 'value%%5B%%5D=Added0', got %q", got)
	}

	merged = Patch{Set: Record{"value": List("Added0", "Added1")}}.Apply(merged)
	if got := merged.Encode(); got != "value%5B%5D=Added0&value%5B%5D=Added1" {
		t.Errorf("Expected ordered bracket encoding, got %q", got)
	}
}

func TestPatchApplyShapeChange(t *testing.T) {
	// Scalar to list must not leave the plain key behind, and vice versa.
	q := url.Values{"tags": {"single"}}

	merged := Patch{Set: Record{"tags": List("a", "b")}}.Apply(q)
	if _, ok := merged["tags"]; ok {
		t.Error("Plain key should be cleared when field becomes a list")
	}
	if len(merged["tags[]"]) != 2 {
		t.Errorf("Expected 2 bracket values, got %v", merged["tags[]"])
	}

	back := Patch{Set: Record{"tags": String("single")}}.Apply(merged)
	if _, ok := back["tags[]"]; ok {
		t.Error("Bracket key should be cleared when field becomes a scalar")
	}
	if back.Get("tags") != "single" {
		t.Errorf("Expected 'single', got %q", back.Get("tags"))
	}
}

func TestPercentEncodingOfValues(t *testing.T) {
	merged := Patch{Set: Record{"q": String("a,b c")}}.Apply(url.Values{})
	encoded := merged.Encode()

	if encoded != "q=a%2Cb+c" {
		t.Errorf("Expected commas and spaces percent-encoded, got %q", encoded)
	}
}

func TestPatchIsZero(t *testing.T) {
	if !(Patch{}).IsZero() {
		t.Error("Empty patch should be zero")
	}
	if (Patch{Remove: []string{"k"}}).IsZero() {
		t.Error("Patch with removals is not zero")
	}
}

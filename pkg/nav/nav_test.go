package nav

import (
	"reflect"
	"testing"
)

var testTabs = []Tab{
	{Key: "overview", Title: "Overview", Path: "/"},
	{Key: "runs", Title: "Runs", Path: "/runs"},
	{Key: "assets", Title: "Assets", Path: "/assets", Permission: "assets:view"},
	{Key: "settings", Title: "Settings", Path: "/settings", Permission: "admin"},
}

func keysOf(tabs []Tab) []string {
	out := make([]string, len(tabs))
	for i, t := range tabs {
		out[i] = t.Key
	}
	return out
}

func TestVisibleNoPermissions(t *testing.T) {
	got := keysOf(Visible(testTabs, NewPermissions()))

	if !reflect.DeepEqual(got, []string{"overview", "runs"}) {
		t.Errorf("Expected ungated tabs only, got %v", got)
	}
}

func TestVisiblePreservesDeclarationOrder(t *testing.T) {
	got := keysOf(Visible(testTabs, NewPermissions("admin", "assets:view")))

	if !reflect.DeepEqual(got, []string{"overview", "runs", "assets", "settings"}) {
		t.Errorf("Expected declaration order, got %v", got)
	}
}

func TestVisiblePartialGrant(t *testing.T) {
	got := keysOf(Visible(testTabs, NewPermissions("admin")))

	if !reflect.DeepEqual(got, []string{"overview", "runs", "settings"}) {
		t.Errorf("Expected admin-only gating, got %v", got)
	}
}

func TestActiveKeyExactMatch(t *testing.T) {
	if got := ActiveKey(testTabs, "/runs"); got != "runs" {
		t.Errorf("Expected runs, got %q", got)
	}
}

func TestActiveKeyLongestPrefixWins(t *testing.T) {
	tabs := []Tab{
		{Key: "runs", Path: "/runs"},
		{Key: "run-detail", Path: "/runs/detail"},
	}

	if got := ActiveKey(tabs, "/runs/detail/123"); got != "run-detail" {
		t.Errorf("Expected run-detail, got %q", got)
	}
	if got := ActiveKey(tabs, "/runs/other"); got != "runs" {
		t.Errorf("Expected runs, got %q", got)
	}
}

func TestActiveKeyRootFallback(t *testing.T) {
	if got := ActiveKey(testTabs, "/unknown"); got != "overview" {
		t.Errorf("Expected root tab for unmatched path, got %q", got)
	}
}

func TestActiveKeySegmentBoundary(t *testing.T) {
	if got := ActiveKey(testTabs, "/runsarchive"); got != "overview" {
		t.Errorf("Prefix must respect segment boundaries, got %q", got)
	}
}

func TestActiveKeyNoMatch(t *testing.T) {
	tabs := []Tab{{Key: "runs", Path: "/runs"}}

	if got := ActiveKey(tabs, "/assets"); got != "" {
		t.Errorf("Expected no match, got %q", got)
	}
}

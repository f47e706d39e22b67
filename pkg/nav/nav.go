// Package nav provides permission-gated navigation tabs.
//
// A tab bar is declared once as an ordered list of tabs, each optionally
// guarded by a permission. Visible filters the list against the viewer's
// permission set without reordering; ActiveKey resolves which tab a path
// belongs to.
package nav

import "strings"

// Tab is one entry in a navigation bar.
type Tab struct {
	// Key is the stable identifier, used for active-tab resolution.
	Key string

	// Title is the display label.
	Title string

	// Path is the tab's destination. ActiveKey matches the current path
	// against it by longest prefix.
	Path string

	// Permission gates visibility. Empty means visible to everyone.
	Permission string
}

// Permissions is the set of permissions granted to a viewer.
type Permissions map[string]struct{}

// NewPermissions builds a permission set from a list of grants.
func NewPermissions(grants ...string) Permissions {
	p := make(Permissions, len(grants))
	for _, g := range grants {
		p[g] = struct{}{}
	}
	return p
}

// Has reports whether the permission is granted.
func (p Permissions) Has(perm string) bool {
	_, ok := p[perm]
	return ok
}

// Visible returns the tabs the viewer may see, in declaration order.
// Ungated tabs are always included.
func Visible(tabs []Tab, perms Permissions) []Tab {
	out := make([]Tab, 0, len(tabs))
	for _, t := range tabs {
		if t.Permission == "" || perms.Has(t.Permission) {
			out = append(out, t)
		}
	}
	return out
}

// ActiveKey returns the key of the tab whose path is the longest prefix of
// the current path, or "" when no tab matches. Prefixes match on path
// segment boundaries: "/runs" is active for "/runs/123" but not "/runsarchive".
func ActiveKey(tabs []Tab, path string) string {
	bestKey := ""
	bestLen := -1
	for _, t := range tabs {
		if !pathHasPrefix(path, t.Path) {
			continue
		}
		if len(t.Path) > bestLen {
			bestKey = t.Key
			bestLen = len(t.Path)
		}
	}
	return bestKey
}

func pathHasPrefix(path, prefix string) bool {
	if prefix == "" {
		return false
	}
	if prefix == "/" {
		return true
	}
	prefix = strings.TrimSuffix(prefix, "/")
	if !strings.HasPrefix(path, prefix) {
		return false
	}
	rest := path[len(prefix):]
	return rest == "" || rest[0] == '/' || rest[0] == '?'
}

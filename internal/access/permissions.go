// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 cr0n Contributors

package access

// Permission groups define reusable sets of "action:resource" patterns.
// Roles compose these groups rather than inheriting.

var viewerPowers = []string{
	"read:**",
}

var editorPowers = []string{
	"write:content",
	"write:media",
	"write:crm",
	"delete:content",
}

var adminPowers = []string{
	"write:**",
	"delete:**",
	"manage:members",
}

var ownerPowers = []string{
	"manage:**",
	"billing:**",
}

// DefaultRoles returns the default role definitions.
func DefaultRoles() map[Role][]string {
	return map[Role][]string{
		RoleViewer: viewerPowers,
		RoleEditor: compose(viewerPowers, editorPowers),
		RoleAdmin:  compose(viewerPowers, editorPowers, adminPowers),
		RoleOwner:  compose(viewerPowers, editorPowers, adminPowers, ownerPowers),
	}
}

// compose merges multiple permission slices into one.
func compose(groups ...[]string) []string {
	var n int
	for _, g := range groups {
		n += len(g)
	}
	out := make([]string, 0, n)
	for _, g := range groups {
		out = append(out, g...)
	}
	return out
}

// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package auth

// Role names.
const (
	RoleAdmin  = "admin"
	RoleEditor = "editor"
)

// roleLevel defines the role hierarchy. Higher levels include the
// permissions of lower ones.
var roleLevel = map[string]int{
	RoleEditor: 1,
	RoleAdmin:  2,
}

// ValidRole reports whether role is a known role name.
func ValidRole(role string) bool {
	_, ok := roleLevel[role]
	return ok
}

// HasRole reports whether userRole satisfies required. Unknown roles
// satisfy nothing.
func HasRole(userRole, required string) bool {
	have, ok := roleLevel[userRole]
	if !ok {
		return false
	}
	need, ok := roleLevel[required]
	if !ok {
		return false
	}
	return have >= need
}

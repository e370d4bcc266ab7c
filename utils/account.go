package utils

import "strings"

// NormalizeAdAccountID returns the "act_<id>" form Meta uses in paths.
func NormalizeAdAccountID(id string) string {
	id = strings.TrimSpace(id)
	if id == "" || strings.HasPrefix(id, "act_") {
		return id
	}
	return "act_" + id
}

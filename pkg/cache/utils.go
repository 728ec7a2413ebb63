package cache

import "strings"

// GenerateKey joins parts with ':' the way Redis keys are namespaced.
func GenerateKey(parts ...string) string {
	return strings.Join(parts, ":")
}

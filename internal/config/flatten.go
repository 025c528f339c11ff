package config

import "strings"

// secretKeys holds the dotted keys whose values never print in full.
var secretKeys = map[string]bool{
	"llm.api_key":    true,
	"telegram.token": true,
}

// IsSecretKey reports whether the dotted key holds a credential.
func IsSecretKey(key string) bool {
	return secretKeys[key]
}

// Flatten turns a nested map into dotted keys, so
// {"llm": {"model": "x"}} becomes {"llm.model": "x"}.
func Flatten(nested map[string]any) map[string]any {
	flat := make(map[string]any)
	var walk func(prefix string, m map[string]any)
	walk = func(prefix string, m map[string]any) {
		for k, v := range m {
			key := prefix + k
			if child, ok := v.(map[string]any); ok {
				walk(key+".", child)
				continue
			}
			flat[key] = v
		}
	}
	walk("", nested)
	return flat
}

// Unflatten is the inverse of Flatten.
func Unflatten(flat map[string]any) map[string]any {
	nested := make(map[string]any)
	for key, v := range flat {
		parts := strings.Split(key, ".")
		node := nested
		for _, part := range parts[:len(parts)-1] {
			node = dig(node, part)
		}
		node[parts[len(parts)-1]] = v
	}
	return nested
}

// dig returns the child map at key, creating or replacing as needed.
func dig(node map[string]any, key string) map[string]any {
	if child, ok := node[key].(map[string]any); ok {
		return child
	}
	child := make(map[string]any)
	node[key] = child
	return child
}

// MaskSecrets copies the flat map, reducing secret values to "***" plus
// their last four characters. Empty secrets pass through so a blank key
// still reads as unset.
func MaskSecrets(flat map[string]any) map[string]any {
	out := make(map[string]any, len(flat))
	for k, v := range flat {
		out[k] = v
		if !secretKeys[k] {
			continue
		}
		if s, ok := v.(string); ok && s != "" {
			out[k] = "***" + s[max(0, len(s)-4):]
		}
	}
	return out
}

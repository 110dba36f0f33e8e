package handlers

import (
	"errors"
	"strings"
)

var (
	errWebhookUnavailable   = errors.New("analysis webhook url not configured")
	errWebhookEmptyResponse = errors.New("analysis webhook returned an empty body")
	errWebhookEmptyResult   = errors.New("analysis webhook response has no result field")
)

// firstString returns the first non-empty string among the given keys.
func firstString(m map[string]interface{}, keys ...string) string {
	for _, key := range keys {
		if s, ok := m[key].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

// stringAt walks nested maps along path and returns the string leaf, or "".
func stringAt(m map[string]interface{}, path ...string) string {
	current := m
	for i, key := range path {
		if i == len(path)-1 {
			s, _ := current[key].(string)
			return s
		}
		next, ok := current[key].(map[string]interface{})
		if !ok {
			return ""
		}
		current = next
	}
	return ""
}

// firstStringAt tries each path in order and returns the first non-empty
// string leaf.
func firstStringAt(m map[string]interface{}, paths ...[]string) string {
	for _, path := range paths {
		if s := stringAt(m, path...); s != "" {
			return s
		}
	}
	return ""
}

// nilIfEmpty converts empty or blank strings to nil pointers, the stored
// record convention for absent names.
func nilIfEmpty(s string) *string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return &s
}

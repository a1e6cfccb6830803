package providers

import "strings"

// FailureText formats a failure so consumers can tell it apart from an answer:
// "[ollama error: timeout]".
func FailureText(p Name, msg string) string {
	return sentinelPrefix(p) + msg + "]"
}

// IsFailure reports whether text is a failure sentinel for provider p.
func IsFailure(p Name, text string) bool {
	return strings.HasPrefix(text, sentinelPrefix(p)) && strings.HasSuffix(text, "]")
}

func sentinelPrefix(p Name) string { return "[" + string(p) + " error: " }

package logging

import (
	"strings"

	"go.uber.org/zap/zaptest/observer"
)

// CountMessages returns how many observed log lines contain substr.
func CountMessages(logs *observer.ObservedLogs, substr string) int {
	return logs.FilterMessageSnippet(substr).Len()
}

// HasMessage reports whether an observed log line has exactly the given message, ignoring case.
func HasMessage(logs *observer.ObservedLogs, msg string) bool {
	for _, entry := range logs.All() {
		if strings.EqualFold(entry.Message, msg) {
			return true
		}
	}
	return false
}

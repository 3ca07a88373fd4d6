package middleware

import (
	"context"
	"net/http"
	"strings"
	"unicode/utf8"
)

type ContextKey string

const OperatorIDKey ContextKey = "operatorID"

// OperatorHeader names whoever is driving the request, typically the referee's device.
const OperatorHeader = "X-Operator-ID"

const maxOperatorIDLength = 128

// Operator puts the caller's operator id, if any, on the request context.
// Requests without the header are still served; the id is informational only.
func Operator(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		operatorID := strings.TrimSpace(r.Header.Get(OperatorHeader))
		operatorID = truncate(operatorID, maxOperatorIDLength)
		if operatorID == "" {
			next.ServeHTTP(w, r)
			return
		}

		ctx := context.WithValue(r.Context(), OperatorIDKey, operatorID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// truncate cuts s to at most n bytes without splitting a multi-byte character.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

func GetOperatorIDFromContext(ctx context.Context) (string, bool) {
	val := ctx.Value(OperatorIDKey)
	if val == nil {
		return "", false
	}

	id, ok := val.(string)
	return id, ok
}

package ratelimit

import (
	"net/http"
	"strconv"

	"github.com/GlebRadaev/partnerpay/pkg/utils"
)

const CodeRateLimited = "RATE_LIMITED"

// SetHeaders writes the X-RateLimit-* headers, plus Retry-After on refusal.
func SetHeaders(w http.ResponseWriter, d Decision) {
	h := w.Header()
	h.Set("X-RateLimit-Limit", strconv.Itoa(d.Limit))
	h.Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
	h.Set("X-RateLimit-Reset", strconv.FormatInt(d.ResetAt.Unix(), 10))
	if !d.Admitted {
		h.Set("Retry-After", strconv.Itoa(d.RetryAfterSeconds()))
	}
}

// Middleware applies rule to every request, keyed by Identifier. A nil limiter disables it.
func Middleware(l *Limiter, rule Rule) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if l == nil {
				next.ServeHTTP(w, r)
				return
			}

			d := l.Check(r.Context(), Identifier(r), rule)
			SetHeaders(w, d)
			if !d.Admitted {
				utils.RespondWithCode(w, http.StatusTooManyRequests, CodeRateLimited, "Too many requests")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

package accesscontrol

import "net/http"

// Middleware resolves the request's bearer credential (if any) into a
// Subject and attaches it to the request context, without itself
// rejecting unauthenticated requests — each handler decides, via
// CheckSubject, whether the operation it's performing requires one.
// This mirrors the donor's AuthMiddleware shape but defers the
// allow/deny decision to the policy evaluation at the point of use.
func (c *DefaultChecker) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if subj, ok := c.CheckRequest(r.Context(), r.Header.Get("Authorization")); ok {
			r = r.WithContext(WithSubject(r.Context(), subj))
		}
		next.ServeHTTP(w, r)
	})
}

package auth

import "net/http"

// Middleware attaches the resolved Identity to the request context when a
// credential is present and valid; it never rejects an anonymous request
// itself, since several routes (public search, public image reads) allow
// anonymous callers. Handlers that require authentication check
// IdentityFromContext and reject nil themselves.
func (m *Manager) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, err := m.Authenticate(r)
		if err != nil {
			next.ServeHTTP(w, r)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), identity)))
	})
}

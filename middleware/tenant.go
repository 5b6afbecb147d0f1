package middleware

import (
	"context"
	"net/http"

	"ticketchat/logger"
)

// TenantHeader names the header that scopes a request to a tenant
const TenantHeader = "X-Company-Id"

// Tenant resolves the tenant from the X-Company-Id header or the companyId query
// parameter and adds it to the request context. Browsers cannot set headers on a
// WebSocket handshake, hence the query fallback.
func Tenant(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tenantID := r.Header.Get(TenantHeader)
		if tenantID == "" {
			tenantID = r.URL.Query().Get("companyId")
		}
		if tenantID == "" {
			next.ServeHTTP(w, r)
			return
		}
		ctx := context.WithValue(r.Context(), logger.TenantKey, tenantID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// TenantFromContext retrieves the tenant id from the request context
func TenantFromContext(ctx context.Context) string {
	tenantID, ok := ctx.Value(logger.TenantKey).(string)
	if !ok {
		return ""
	}
	return tenantID
}

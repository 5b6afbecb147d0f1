package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func tenantOf(r *http.Request) string {
	var got string
	Tenant(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = TenantFromContext(r.Context())
	})).ServeHTTP(httptest.NewRecorder(), r)
	return got
}

func TestTenantFromHeader(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/messages/1?companyId=9", nil)
	r.Header.Set(TenantHeader, "7")
	assert.Equal(t, "7", tenantOf(r), "header wins over query")
}

func TestTenantFromQuery(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/ws?companyId=9", nil)
	assert.Equal(t, "9", tenantOf(r))
}

func TestTenantMissing(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/health", nil)
	assert.Empty(t, tenantOf(r))
}

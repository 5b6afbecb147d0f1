package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ticketchat/models"
)

func TestHistoryClientFetchPage(t *testing.T) {
	var gotPath, gotPage, gotTenant string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotPage = r.URL.Query().Get("pageNumber")
		gotTenant = r.Header.Get(TenantHeader)
		json.NewEncoder(w).Encode(models.Page{
			Messages: []models.Message{{ID: "m1", TicketID: "42", Body: "hi"}},
			HasMore:  true,
		})
	}))
	defer srv.Close()

	c := NewHistoryClient(srv.URL+"/", "7")
	page, err := c.FetchPage(context.Background(), "42", 3)
	require.NoError(t, err)

	assert.Equal(t, "/messages/42", gotPath)
	assert.Equal(t, "3", gotPage)
	assert.Equal(t, "7", gotTenant)
	assert.True(t, page.HasMore)
	require.Len(t, page.Messages, 1)
	assert.Equal(t, "hi", page.Messages[0].Body)
}

func TestHistoryClientEmptyPage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"hasMore":false}`))
	}))
	defer srv.Close()

	page, err := NewHistoryClient(srv.URL, "7").FetchPage(context.Background(), "42", 1)
	require.NoError(t, err)
	assert.NotNil(t, page.Messages)
	assert.Empty(t, page.Messages)
}

func TestHistoryClientErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"error":"ERR_NO_PERMISSION"}`))
	}))
	defer srv.Close()

	_, err := NewHistoryClient(srv.URL, "7").FetchPage(context.Background(), "42", 1)
	var httpErr *HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusForbidden, httpErr.StatusCode)
	assert.Equal(t, "ERR_NO_PERMISSION", httpErr.Message)
}

func TestHistoryClientHonoursContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewHistoryClient(srv.URL, "7").FetchPage(ctx, "42", 1)
	assert.ErrorIs(t, err, context.Canceled)
}

package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/docsync/internal/core/domain"
)

type fixedIdentity struct {
	id  domain.Identity
	err error
}

func (f fixedIdentity) Identity(context.Context) (domain.Identity, error) {
	return f.id, f.err
}

func newClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(Config{BaseURL: srv.URL}, fixedIdentity{id: domain.Identity{UserID: "u1", Token: "tok"}})
}

func TestCreateDocument(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/documents", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var doc domain.Document
		require.NoError(t, json.NewDecoder(r.Body).Decode(&doc))
		assert.Equal(t, "tmp-1", doc.ID)
		doc.ID = "doc-1"
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(doc)
	})

	out, err := c.CreateDocument(context.Background(), domain.Document{ID: "tmp-1", Name: "a.pdf"})

	require.NoError(t, err)
	assert.Equal(t, "doc-1", out.ID)
	assert.Equal(t, "a.pdf", out.Name)
}

func TestUpdateDocument_EscapesID(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPatch, r.Method)
		assert.Equal(t, "/documents/a%2Fb", r.URL.EscapedPath())
		var doc domain.Document
		_ = json.NewDecoder(r.Body).Decode(&doc)
		_ = json.NewEncoder(w).Encode(doc)
	})

	out, err := c.UpdateDocument(context.Background(), domain.Document{ID: "a/b", Name: "renamed"})

	require.NoError(t, err)
	assert.Equal(t, "renamed", out.Name)
}

func TestDeleteDocument(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		assert.Equal(t, "/documents/d1", r.URL.Path)
		w.WriteHeader(http.StatusNoContent)
	})

	assert.NoError(t, c.DeleteDocument(context.Background(), "d1"))
}

func TestListDocuments(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		_, _ = w.Write([]byte(`[{"id":"d1","name":"a","status":"completed"},{"id":"d2","name":"b","status":"uploaded"}]`))
	})

	docs, err := c.ListDocuments(context.Background())

	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, domain.StatusCompleted, docs[0].Status)
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		status int
		body   string
		want   error
	}{
		{http.StatusNotFound, `{"error":"no such document"}`, domain.ErrNotFound},
		{http.StatusConflict, ``, domain.ErrAlreadyExists},
		{http.StatusUnprocessableEntity, `bad name`, domain.ErrInvalidInput},
		{http.StatusUnauthorized, ``, domain.ErrIdentityUnavailable},
		{http.StatusInternalServerError, `boom`, domain.ErrServerAction},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			c := newClient(t, func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})

			err := c.DeleteDocument(context.Background(), "d1")

			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestErrorMessageFromBody(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"no such document"}`))
	})

	_, err := c.UpdateDocument(context.Background(), domain.Document{ID: "d1"})

	assert.ErrorContains(t, err, "no such document")
}

func TestMalformedResponse(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{`))
	})

	_, err := c.CreateDocument(context.Background(), domain.Document{Name: "a"})

	assert.ErrorIs(t, err, domain.ErrServerAction)
}

func TestIdentityFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Error("request must not be sent without identity")
	}))
	defer srv.Close()
	c := NewClient(Config{BaseURL: srv.URL}, fixedIdentity{err: errors.New("logged out")})

	err := c.DeleteDocument(context.Background(), "d1")

	assert.ErrorIs(t, err, domain.ErrIdentityUnavailable)
}

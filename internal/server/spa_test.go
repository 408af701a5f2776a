package server

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsAPIPath(t *testing.T) {
	tests := []struct {
		path string
		want bool
	}{
		{"/api/presentation", true},
		{"/api/metrics/live", true},
		{"/api/demo/sessions", true},
		{"/api/", true},
		{"/api", true},
		{"/mcp", true},

		{"/", false},
		{"/index.html", false},
		{"/app.js", false},
		{"/health", false},
		{"/demo", false},

		{"", false},
		{"/apis", false},
		{"/apiary/x", false},
		{"/mcpserver", false},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, isAPIPath(tt.path))
		})
	}
}

func TestSetCacheHeaders(t *testing.T) {
	tests := []struct {
		urlPath string
		wantCC  string
	}{
		{"/app.js", "no-cache"},
		{"/style.css", "no-cache"},
		{"/index.html", "no-cache"},
		{"/favicon.ico", "public, max-age=3600"},
		{"/images/building.png", "public, max-age=3600"},
	}

	for _, tt := range tests {
		t.Run(tt.urlPath, func(t *testing.T) {
			w := httptest.NewRecorder()
			setCacheHeaders(w, tt.urlPath)
			assert.Equal(t, tt.wantCC, w.Header().Get("Cache-Control"))
		})
	}
}

func TestSPAHandler(t *testing.T) {
	fsys := fstest.MapFS{
		"index.html": {Data: []byte("<html>twin</html>")},
		"app.js":     {Data: []byte("console.log('twin')")},
	}
	h := newSPAHandler(fsys)

	t.Run("serves existing file", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/app.js", nil))
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "console.log")
		assert.Equal(t, "no-cache", rec.Header().Get("Cache-Control"))
	})

	t.Run("falls back to index", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/walkthrough", nil))
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "twin")
	})

	t.Run("unknown api path is a json 404", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/nope", nil))
		require.Equal(t, http.StatusNotFound, rec.Code)
		assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
		assert.Contains(t, rec.Body.String(), "NOT_FOUND")
	})
}

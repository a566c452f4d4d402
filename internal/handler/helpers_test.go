package handler_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/tableside/api/internal/apierror"
	"github.com/tableside/api/internal/auth"
	mw "github.com/tableside/api/internal/middleware"
)

const testSecret = "test-secret"

var testUserID = uuid.MustParse("7b0c5a52-54a6-4d0e-9a53-4f1a1f1d2c3e")

// asUser injects claims the way Authenticate would.
func asUser(role string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := mw.WithClaims(r.Context(), &auth.Claims{UserID: testUserID, Username: "tester", Role: role})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func doRequest(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		require.NoError(t, json.NewEncoder(&buf).Encode(b))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&v))
	return v
}

func errorKind(t *testing.T, rr *httptest.ResponseRecorder) apierror.Kind {
	t.Helper()
	return decode[apierror.Response](t, rr).Kind
}

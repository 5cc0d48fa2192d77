package response

import (
	"encoding/json"
	stdErrors "errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "hotpot-chat/pkg/errors"
)

func decode(t *testing.T, rec *httptest.ResponseRecorder) Response {
	t.Helper()
	var body Response
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	return body
}

func TestCreatedEnvelope(t *testing.T) {
	rec := httptest.NewRecorder()
	Created(rec, "session created", map[string]int{"id": 3})

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	body := decode(t, rec)
	assert.True(t, body.Success)
	assert.Equal(t, "session created", body.Message)
	assert.Equal(t, map[string]any{"id": float64(3)}, body.Data)
}

func TestErrorMapsTaxonomy(t *testing.T) {
	cases := []struct {
		err    error
		status int
		msg    string
	}{
		{apperrors.Validation("topic is required"), http.StatusBadRequest, "topic is required"},
		{apperrors.NotFound("session not found"), http.StatusNotFound, "session not found"},
		{apperrors.Conflict("session already assigned"), http.StatusConflict, "session already assigned"},
		{apperrors.Unauthorized("missing token"), http.StatusUnauthorized, "missing token"},
		{stdErrors.New("pool exhausted"), http.StatusInternalServerError, apperrors.ErrUnexpected.Message},
	}

	for _, tc := range cases {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/v1/chat/sessions", nil)
		Error(rec, req, tc.err)

		assert.Equal(t, tc.status, rec.Code)
		body := decode(t, rec)
		assert.False(t, body.Success)
		assert.Equal(t, tc.msg, body.Message)
		assert.Nil(t, body.Data)
	}
}

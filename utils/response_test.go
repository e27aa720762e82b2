package utils

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"outliers_server/apperr"
)

func TestStatusOf(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{apperr.ErrEmptyMessage, http.StatusBadRequest},
		{fmt.Errorf("failed to fetch article: %w", apperr.ErrNotFound), http.StatusNotFound},
		{apperr.ErrAlreadyMember, http.StatusConflict},
		{apperr.ErrNotGroupAdmin, http.StatusForbidden},
		{apperr.ErrInvalidToken, http.StatusUnauthorized},
		{apperr.ErrNoActiveChat, http.StatusPreconditionFailed},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, StatusOf(tc.err), tc.err.Error())
	}
}

func TestWriteError(t *testing.T) {
	t.Run("happy path - coded errors keep their message", func(t *testing.T) {
		rec := httptest.NewRecorder()
		WriteError(rec, httptest.NewRequest(http.MethodGet, "/x", nil), fmt.Errorf("wrapped: %w", apperr.ErrNotGroupAdmin))

		assert.Equal(t, http.StatusForbidden, rec.Code)
		var body ErrorBody
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, ErrorBody{Error: "only group admins can do this", Code: apperr.CodePermissionDenied}, body)
	})

	t.Run("sad path - internal errors are hidden", func(t *testing.T) {
		rec := httptest.NewRecorder()
		WriteError(rec, httptest.NewRequest(http.MethodGet, "/x", nil), errors.New("dynamo: connection reset"))

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.NotContains(t, rec.Body.String(), "dynamo")
	})
}

func TestDecodeJSON(t *testing.T) {
	var v struct {
		Name string `json:"name"`
	}
	require.NoError(t, DecodeJSON(httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"go"}`)), &v))
	assert.Equal(t, "go", v.Name)

	require.NoError(t, DecodeJSON(httptest.NewRequest(http.MethodPost, "/", strings.NewReader("")), &v))

	err := DecodeJSON(httptest.NewRequest(http.MethodPost, "/", strings.NewReader("{")), &v)
	assert.True(t, apperr.HasCode(err, apperr.CodeInvalidArgument))
}

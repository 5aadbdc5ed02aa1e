package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shopaudit-backend/internal/visits"
)

func TestVisitErrorStatusMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"unknown shop", visits.ErrShopNotFound, http.StatusNotFound},
		{"no open attempt", visits.ErrNoOpenAttempt, http.StatusBadRequest},
		{"wrong assignee", visits.ErrNotAssigned, http.StatusForbidden},
		{"non-visiting role", visits.ErrRoleCannotVisit, http.StatusForbidden},
		{"database failure", errors.New("connection reset"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			visitError(rec, tt.err)
			assert.Equal(t, tt.status, rec.Code)

			var body map[string]interface{}
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, false, body["success"])
			assert.NotEmpty(t, body["error"])
		})
	}
}

func multipartRequest(t *testing.T, fields map[string]string, files map[string]string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	for field, name := range files {
		part, err := mw.CreateFormFile(field, name)
		require.NoError(t, err)
		_, err = part.Write([]byte("jpeg-bytes"))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/visits/submit", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	require.NoError(t, req.ParseMultipartForm(32<<20))
	return req
}

func TestSaveEvidenceFileRequiresUpload(t *testing.T) {
	req := multipartRequest(t, map[string]string{"shop_id": "s1"}, nil)

	_, err := saveEvidenceFile(req, "shopImage")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "shopImage is required")

	_, err = saveEvidenceFile(req, "shelfImage")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "shelfImage is required")
}

func TestSaveEvidenceFileStoresUpload(t *testing.T) {
	t.Setenv("UPLOAD_DIR", t.TempDir())
	req := multipartRequest(t, nil, map[string]string{"shopImage": "front.jpg"})

	ref, err := saveEvidenceFile(req, "shopImage")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(ref, "/uploads/"))
	assert.True(t, strings.HasSuffix(ref, ".jpg"))
}

func TestCheckpointRequestCoordinate(t *testing.T) {
	lat, lng := 12.9716, 77.5946

	full := checkpointRequest{ShopID: "s1", Latitude: &lat, Longitude: &lng}
	coord := full.coordinate()
	require.NotNil(t, coord)
	assert.Equal(t, lat, coord.Latitude)
	assert.Equal(t, lng, coord.Longitude)

	// A lone latitude is no fix at all.
	half := checkpointRequest{ShopID: "s1", Latitude: &lat}
	assert.Nil(t, half.coordinate())

	none := checkpointRequest{ShopID: "s1"}
	assert.Nil(t, none.coordinate())
}

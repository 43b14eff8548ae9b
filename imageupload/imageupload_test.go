package imageupload

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relaygate/gateway/contracts"
)

func multipartRequest(t *testing.T, fieldName, filename string, content []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile(fieldName, filename)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/images/profile", &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.ContentLength = int64(buf.Len())
	return req
}

func TestUploadStoresFileAndReturnsURL(t *testing.T) {
	dir := t.TempDir()
	h, err := New(dir, "https://cdn.example.com/images")
	require.NoError(t, err)

	req := multipartRequest(t, "file", "avatar.png", []byte("fake-png-bytes"))
	rec := httptest.NewRecorder()
	h.Upload("profile")(rec, req)

	assert.Equal(t, http.StatusCreated, rec.Code)

	var body contracts.ApiResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	require.NotNil(t, body.Data)

	payload, ok := body.Data.(map[string]interface{})
	require.True(t, ok)
	assert.Contains(t, payload["url"], "https://cdn.example.com/images/profile/")
}

func TestUploadRejectsUnknownImageType(t *testing.T) {
	dir := t.TempDir()
	h, err := New(dir, "https://cdn.example.com/images")
	require.NoError(t, err)

	req := multipartRequest(t, "file", "avatar.png", []byte("data"))
	rec := httptest.NewRecorder()
	h.Upload("not-a-type")(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUploadRejectsDisallowedExtension(t *testing.T) {
	dir := t.TempDir()
	h, err := New(dir, "https://cdn.example.com/images")
	require.NoError(t, err)

	req := multipartRequest(t, "file", "payload.exe", []byte("data"))
	rec := httptest.NewRecorder()
	h.Upload("profile")(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUploadRejectsOversizeContentLength(t *testing.T) {
	dir := t.TempDir()
	h, err := New(dir, "https://cdn.example.com/images")
	require.NoError(t, err)

	req := multipartRequest(t, "file", "avatar.png", []byte("data"))
	req.ContentLength = maxFileSize + 1
	rec := httptest.NewRecorder()
	h.Upload("profile")(rec, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

package server

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/cloneofkoha/form-filler/internal/audit"
	"github.com/cloneofkoha/form-filler/internal/classify"
	"github.com/cloneofkoha/form-filler/internal/engine"
	"github.com/cloneofkoha/form-filler/internal/format"
	"github.com/cloneofkoha/form-filler/internal/format/xlsx"
	"github.com/cloneofkoha/form-filler/internal/masterdata"
	"github.com/cloneofkoha/form-filler/internal/resolve"
)

const serverProfile = `Company Name: Weston Manufacturing Ltd
VAT Number: GB298745163
`

func newTestServer(t *testing.T, auditStore *audit.Store) http.Handler {
	t.Helper()
	snap, err := masterdata.Parse(strings.NewReader(serverProfile))
	require.NoError(t, err)

	store := masterdata.NewStaticStore(snap)
	resolver := resolve.New(nil, nil)
	registry := format.NewRegistry(xlsx.New(nil))
	eng := engine.New(registry, classify.Default(), resolver, store, nil)
	return New(eng, store, auditStore, 4<<20, nil).Router()
}

func buildTestForm(t *testing.T) []byte {
	t.Helper()
	f := excelize.NewFile()
	require.NoError(t, f.SetCellValue("Sheet1", "A1", "Company Name:"))
	require.NoError(t, f.SetCellValue("Sheet1", "A2", "VAT Number:"))
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	require.NoError(t, f.Close())
	return buf.Bytes()
}

func multipartBody(t *testing.T, filename string, data []byte) (string, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return mw.FormDataContentType(), &buf
}

func TestHealth(t *testing.T) {
	h := newTestServer(t, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"ok"`)
}

func TestMasterPreview(t *testing.T) {
	h := newTestServer(t, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/master", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Entries int      `json:"entries"`
		Keys    []string `json:"keys"`
		Preview string   `json:"preview"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 2, body.Entries)
	assert.Contains(t, body.Keys, "vat_number")
	assert.Contains(t, body.Preview, "company_name")
}

func TestFillMultipartUpload(t *testing.T) {
	h := newTestServer(t, nil)

	ct, body := multipartBody(t, "vendor_form.xlsx", buildTestForm(t))
	req := httptest.NewRequest(http.MethodPost, "/fill", body)
	req.Header.Set("Content-Type", ct)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "FILLED_vendor_form.xlsx")
	assert.Equal(t, "2", rec.Header().Get("X-Fields-Total"))
	assert.Equal(t, "2", rec.Header().Get("X-Fields-Filled"))
	assert.Equal(t, "0", rec.Header().Get("X-Fields-Left-Blank"))

	f, err := excelize.OpenReader(bytes.NewReader(rec.Body.Bytes()))
	require.NoError(t, err)
	defer func() { require.NoError(t, f.Close()) }()
	v, err := f.GetCellValue("Sheet1", "B1")
	require.NoError(t, err)
	assert.Equal(t, "Weston Manufacturing Ltd", v)
}

func TestFillRawUpload(t *testing.T) {
	h := newTestServer(t, nil)

	req := httptest.NewRequest(http.MethodPost, "/fill?filename=form.xlsx", bytes.NewReader(buildTestForm(t)))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestFillRawUploadRequiresFilename(t *testing.T) {
	h := newTestServer(t, nil)

	req := httptest.NewRequest(http.MethodPost, "/fill", bytes.NewReader(buildTestForm(t)))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestFillUnsupportedExtension(t *testing.T) {
	h := newTestServer(t, nil)

	ct, body := multipartBody(t, "form.csv", []byte("a,b,c"))
	req := httptest.NewRequest(http.MethodPost, "/fill", body)
	req.Header.Set("Content-Type", ct)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "bad_request")
}

func TestFillCorruptDocument(t *testing.T) {
	h := newTestServer(t, nil)

	ct, body := multipartBody(t, "form.xlsx", []byte("not a spreadsheet"))
	req := httptest.NewRequest(http.MethodPost, "/fill", body)
	req.Header.Set("Content-Type", ct)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestJobsWithoutAuditStore(t *testing.T) {
	h := newTestServer(t, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/jobs", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "[]", strings.TrimSpace(rec.Body.String()))
}

func TestFillRecordsAuditJob(t *testing.T) {
	auditStore, err := audit.Open(filepath.Join(t.TempDir(), "audit.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, auditStore.Close()) })

	h := newTestServer(t, auditStore)

	ct, body := multipartBody(t, "vendor_form.xlsx", buildTestForm(t))
	req := httptest.NewRequest(http.MethodPost, "/fill", body)
	req.Header.Set("Content-Type", ct)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/jobs", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var jobs []audit.Job
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &jobs))
	require.Len(t, jobs, 1)
	assert.Equal(t, "vendor_form.xlsx", jobs[0].Filename)
	assert.Equal(t, 2, jobs[0].FieldsTotal)
	assert.Equal(t, 2, jobs[0].Direct)
}

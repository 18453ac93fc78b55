package main

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldnotes/second-brain/internal/classifier"
	"github.com/fieldnotes/second-brain/internal/digest"
	"github.com/fieldnotes/second-brain/internal/query"
	"github.com/fieldnotes/second-brain/internal/transcriber"
	"github.com/fieldnotes/second-brain/internal/vault"
	"github.com/fieldnotes/second-brain/pkg/anthropic"
	"github.com/fieldnotes/second-brain/pkg/whisper"
)

type stubOracle struct {
	text string
}

func (s *stubOracle) CreateMessage(context.Context, anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	return &anthropic.MessageResponse{
		Content: []anthropic.ContentBlock{{Type: "text", Text: s.text}},
	}, nil
}

type stubWhisper struct {
	text string
}

func (s *stubWhisper) Transcribe(context.Context, whisper.TranscriptionRequest) (*whisper.TranscriptionResponse, error) {
	return &whisper.TranscriptionResponse{Text: s.text}, nil
}

func testServices(t *testing.T, oracle anthropic.Client, wh whisper.Client) *services {
	t.Helper()
	v, err := vault.New(t.TempDir(), vault.WithClock(func() time.Time {
		return time.Date(2024, 3, 15, 10, 30, 45, 0, time.UTC)
	}))
	require.NoError(t, err)

	return &services{
		vault:       v,
		classifier:  classifier.New(oracle, v, classifier.Config{Model: "test-model"}),
		query:       query.New(oracle, v, query.Config{Model: "test-model"}),
		digest:      digest.New(oracle, v, digest.Config{Model: "test-model"}),
		transcriber: transcriber.New(wh, "whisper-1"),
	}
}

func postJSON(t *testing.T, handler http.Handler, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestHealth(t *testing.T) {
	svcs := testServices(t, &stubOracle{}, &stubWhisper{})
	router := newRouter(svcs)

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, svcs.vault.Root(), body["vault_path"])
}

func TestCapture(t *testing.T) {
	oracle := &stubOracle{text: `{"type":"people","confidence":0.9,"name":"Alice","body":"Roadmap chat."}`}
	svcs := testServices(t, oracle, &stubWhisper{})
	router := newRouter(svcs)

	rec := postJSON(t, router, "/api/capture", `{"text":"Met Alice about the roadmap"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "People", body["category"])
	assert.Equal(t, "Alice", body["name"])
	assert.Equal(t, false, body["needs_review"])

	_, err := svcs.vault.Read(svcs.vault.PathFor(vault.People, "Alice"))
	require.NoError(t, err)
}

func TestCaptureValidation(t *testing.T) {
	svcs := testServices(t, &stubOracle{}, &stubWhisper{})
	router := newRouter(svcs)

	rec := postJSON(t, router, "/api/capture", `{"text":"   "}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = postJSON(t, router, "/api/capture", `{broken`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTranscribeClassifiesByDefault(t *testing.T) {
	oracle := &stubOracle{text: `{"type":"admin","confidence":0.8,"name":"Plumber","body":"Call the plumber."}`}
	svcs := testServices(t, oracle, &stubWhisper{text: "call the plumber tomorrow"})
	router := newRouter(svcs)

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("audio", "memo.mp3")
	require.NoError(t, err)
	_, err = part.Write([]byte("fake audio"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/transcribe", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "call the plumber tomorrow", body["text"])
	require.Contains(t, body, "classification")

	_, err = svcs.vault.Read(svcs.vault.PathFor(vault.Admin, "Plumber"))
	require.NoError(t, err)
}

func TestTranscribeSkipsClassification(t *testing.T) {
	svcs := testServices(t, &stubOracle{}, &stubWhisper{text: "just the words"})
	router := newRouter(svcs)

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	require.NoError(t, w.WriteField("classify", "false"))
	part, err := w.CreateFormFile("audio", "memo.wav")
	require.NoError(t, err)
	_, err = part.Write([]byte("fake audio"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/transcribe", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "just the words", body["text"])
	assert.NotContains(t, body, "classification")
}

func TestTranscribeNoFile(t *testing.T) {
	svcs := testServices(t, &stubOracle{}, &stubWhisper{})
	router := newRouter(svcs)

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	require.NoError(t, w.WriteField("something", "else"))
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/transcribe", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestQuery(t *testing.T) {
	oracle := &stubOracle{text: "You have nothing scheduled."}
	svcs := testServices(t, oracle, &stubWhisper{})
	router := newRouter(svcs)

	rec := postJSON(t, router, "/api/query", `{"question":"What is on my plate?"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "You have nothing scheduled.", body["answer"])

	rec = postJSON(t, router, "/api/query", `{"question":""}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestFixValidationAndNotFound(t *testing.T) {
	svcs := testServices(t, &stubOracle{text: `{"type":"admin","confidence":0.9}`}, &stubWhisper{})
	router := newRouter(svcs)

	rec := postJSON(t, router, "/api/fix", `{"source_id":"x"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = postJSON(t, router, "/api/fix", `{"source_id":"2020-01-01_000000","category":"admin","name":"X"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestEditAndDelete(t *testing.T) {
	svcs := testServices(t, &stubOracle{}, &stubWhisper{})
	router := newRouter(svcs)

	_, err := svcs.vault.Write(vault.People, "Alice",
		vault.NewMetadata("type", "people", "name", "Alice", "source_id", "2024-03-15_090000"),
		"Met at the roadmap review.")
	require.NoError(t, err)

	rec := postJSON(t, router, "/api/edit",
		`{"source_id":"2024-03-15_090000","name":"Alice Chen"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "Alice Chen", body["name"])

	_, err = svcs.vault.Read(svcs.vault.PathFor(vault.People, "Alice Chen"))
	require.NoError(t, err)

	rec = postJSON(t, router, "/api/delete", `{"source_id":"2024-03-15_090000"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	_, err = svcs.vault.FindBySourceID("2024-03-15_090000")
	assert.ErrorIs(t, err, vault.ErrNotFound)
}

func TestEditNotFound(t *testing.T) {
	svcs := testServices(t, &stubOracle{}, &stubWhisper{})
	router := newRouter(svcs)

	rec := postJSON(t, router, "/api/edit", `{"source_id":"1999-01-01_000000","name":"X"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDeleteNotFound(t *testing.T) {
	svcs := testServices(t, &stubOracle{}, &stubWhisper{})
	router := newRouter(svcs)

	rec := postJSON(t, router, "/api/delete", `{"source_id":"1999-01-01_000000"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStats(t *testing.T) {
	svcs := testServices(t, &stubOracle{}, &stubWhisper{})
	router := newRouter(svcs)

	_, err := svcs.vault.Write(vault.People, "Alice", vault.NewMetadata("type", "people"), "")
	require.NoError(t, err)
	_, err = svcs.vault.Write(vault.Ideas, "Spark", vault.NewMetadata("type", "idea"), "")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/vault/stats", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	stats := body["stats"].(map[string]any)
	assert.EqualValues(t, 1, stats["people"])
	assert.EqualValues(t, 1, stats["ideas"])
	assert.EqualValues(t, 0, stats["projects"])
	assert.EqualValues(t, 2, stats["total"])
}

func TestRecent(t *testing.T) {
	svcs := testServices(t, &stubOracle{}, &stubWhisper{})
	router := newRouter(svcs)

	_, err := svcs.vault.Write(vault.People, "Alice", vault.NewMetadata("type", "people"), "note body")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/vault/recent?days=3", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.EqualValues(t, 3, body["days"])
	entries := body["entries"].(map[string]any)
	people := entries["People"].([]any)
	require.Len(t, people, 1)
	first := people[0].(map[string]any)
	assert.Equal(t, "Alice", first["filename"])
	assert.Equal(t, "note body", first["content"])
}

func TestRecentInvalidDays(t *testing.T) {
	svcs := testServices(t, &stubOracle{}, &stubWhisper{})
	router := newRouter(svcs)

	for _, q := range []string{"days=zero", "days=0", "days=-2"} {
		req := httptest.NewRequest(http.MethodGet, "/api/vault/recent?"+q, nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code, q)
	}
}

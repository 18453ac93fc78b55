// Package whisper is a minimal client for the OpenAI audio transcription
// endpoint. The core only ever consumes the transcribed text.
package whisper

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/rotisserie/eris"

	"github.com/fieldnotes/second-brain/internal/retry"
)

const (
	defaultBaseURL = "https://api.openai.com/v1"
	defaultModel   = "whisper-1"
)

// Client transcribes audio to text.
type Client interface {
	Transcribe(ctx context.Context, req TranscriptionRequest) (*TranscriptionResponse, error)
}

// TranscriptionRequest carries the audio bytes plus a filename hint the API
// uses for format detection.
type TranscriptionRequest struct {
	Model    string
	Filename string
	Audio    []byte
}

// TranscriptionResponse is the response from POST /audio/transcriptions.
type TranscriptionResponse struct {
	Text string `json:"text"`
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the default API base URL.
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		c.baseURL = url
	}
}

// WithModel overrides the default model.
func WithModel(model string) Option {
	return func(c *httpClient) {
		c.model = model
	}
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

type httpClient struct {
	apiKey  string
	baseURL string
	model   string
	http    *http.Client
}

// NewClient creates a Whisper API client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		model:   defaultModel,
		http: &http.Client{
			Timeout: 120 * time.Second,
		},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *httpClient) Transcribe(ctx context.Context, req TranscriptionRequest) (*TranscriptionResponse, error) {
	if req.Model == "" {
		req.Model = c.model
	}
	if req.Filename == "" {
		req.Filename = "audio.webm"
	}

	var body bytes.Buffer
	w := multipart.NewWriter(&body)

	if err := w.WriteField("model", req.Model); err != nil {
		return nil, eris.Wrap(err, "whisper: write model field")
	}
	part, err := w.CreateFormFile("file", req.Filename)
	if err != nil {
		return nil, eris.Wrap(err, "whisper: create file part")
	}
	if _, err := part.Write(req.Audio); err != nil {
		return nil, eris.Wrap(err, "whisper: write audio")
	}
	if err := w.Close(); err != nil {
		return nil, eris.Wrap(err, "whisper: finalize multipart body")
	}

	// The body is built once and re-read per attempt.
	return retry.Do(ctx, retry.Policy{Operation: "whisper_transcribe"},
		func(ctx context.Context) (*TranscriptionResponse, error) {
			return c.doTranscribe(ctx, bytes.NewReader(body.Bytes()), w.FormDataContentType())
		})
}

func (c *httpClient) doTranscribe(ctx context.Context, body io.Reader, contentType string) (*TranscriptionResponse, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/audio/transcriptions", body)
	if err != nil {
		return nil, eris.Wrap(err, "whisper: create request")
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Content-Type", contentType)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, eris.Wrap(err, "whisper: transcription request")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		err := eris.Errorf("whisper: transcription failed: %d %s", resp.StatusCode, string(msg))
		if retry.TransientStatus(resp.StatusCode) {
			err = retry.Transient(err)
		}
		return nil, err
	}

	var out TranscriptionResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, eris.Wrap(err, "whisper: decode response")
	}
	return &out, nil
}

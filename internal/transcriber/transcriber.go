// Package transcriber turns audio captures into text via the transcription
// oracle. The rest of the system only ever sees the text.
package transcriber

import (
	"context"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/fieldnotes/second-brain/pkg/whisper"
)

// supportedFormats lists the audio container extensions the oracle accepts.
var supportedFormats = map[string]bool{
	".mp3":  true,
	".mp4":  true,
	".mpeg": true,
	".mpga": true,
	".m4a":  true,
	".wav":  true,
	".webm": true,
}

// Service transcribes audio captures.
type Service struct {
	client whisper.Client
	model  string
}

// New creates a transcriber service.
func New(client whisper.Client, model string) *Service {
	return &Service{client: client, model: model}
}

// Transcribe converts audio bytes to text. The filename hint drives format
// detection; unsupported extensions are rejected before any oracle call.
func (s *Service) Transcribe(ctx context.Context, audio []byte, filename string) (string, error) {
	if len(audio) == 0 {
		return "", eris.New("transcriber: empty audio")
	}
	if filename == "" {
		filename = "audio.webm"
	}

	ext := strings.ToLower(filepath.Ext(filename))
	if !supportedFormats[ext] {
		return "", eris.Errorf("transcriber: unsupported format %q (supported: %s)", ext, supportedList())
	}

	resp, err := s.client.Transcribe(ctx, whisper.TranscriptionRequest{
		Model:    s.model,
		Filename: filename,
		Audio:    audio,
	})
	if err != nil {
		return "", err
	}
	return resp.Text, nil
}

func supportedList() string {
	exts := make([]string, 0, len(supportedFormats))
	for ext := range supportedFormats {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return strings.Join(exts, ", ")
}

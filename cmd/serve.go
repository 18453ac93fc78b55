package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fieldnotes/second-brain/internal/vault"
)

var servePort int

// maxAudioBytes bounds transcription uploads.
const maxAudioBytes = 25 << 20

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the capture and query HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		svcs, err := newServices(cfg)
		if err != nil {
			return err
		}

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, port),
			Handler: newRouter(svcs),
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			srv.Shutdown(shutdownCtx)
		}()

		zap.L().Info("starting server",
			zap.String("addr", srv.Addr),
			zap.String("vault", svcs.vault.Root()),
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}

// newRouter assembles the API routes around the services.
func newRouter(svcs *services) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost},
		AllowedHeaders: []string{"Content-Type"},
	}))

	a := &api{svcs: svcs}

	r.Route("/api", func(r chi.Router) {
		r.Post("/capture", a.capture)
		r.Post("/transcribe", a.transcribe)
		r.Post("/query", a.query)
		r.Post("/fix", a.fix)
		r.Post("/edit", a.edit)
		r.Post("/delete", a.delete)
		r.Get("/digest/daily", a.dailyDigest)
		r.Get("/digest/weekly", a.weeklyDigest)
		r.Get("/vault/stats", a.stats)
		r.Get("/vault/recent", a.recent)
		r.Get("/health", a.health)
	})

	return r
}

type api struct {
	svcs *services
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// respondError maps failures to transport status codes. Not-found conditions
// surface as 404, everything else as 500; the message is always
// human-readable, never a stack trace.
func respondError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	if errors.Is(err, vault.ErrNotFound) {
		status = http.StatusNotFound
	}
	zap.L().Error("request failed", zap.Error(err))
	respondJSON(w, status, map[string]any{"success": false, "error": err.Error()})
}

func respondBadRequest(w http.ResponseWriter, msg string) {
	respondJSON(w, http.StatusBadRequest, map[string]any{"success": false, "error": msg})
}

func (a *api) capture(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondBadRequest(w, "invalid request body")
		return
	}

	text := strings.TrimSpace(req.Text)
	if text == "" {
		respondBadRequest(w, "missing 'text' field")
		return
	}

	result, err := a.svcs.classifier.ProcessCapture(r.Context(), text)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

func (a *api) transcribe(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxAudioBytes); err != nil {
		respondBadRequest(w, "invalid multipart body")
		return
	}

	file, header, err := r.FormFile("audio")
	if err != nil {
		respondBadRequest(w, "no audio file provided")
		return
	}
	defer file.Close()

	audio, err := io.ReadAll(io.LimitReader(file, maxAudioBytes))
	if err != nil {
		respondError(w, eris.Wrap(err, "read audio upload"))
		return
	}

	text, err := a.svcs.transcriber.Transcribe(r.Context(), audio, header.Filename)
	if err != nil {
		respondError(w, err)
		return
	}

	resp := map[string]any{"success": true, "text": text}

	if r.FormValue("classify") != "false" {
		classification, err := a.svcs.classifier.ProcessCapture(r.Context(), text)
		if err != nil {
			respondError(w, err)
			return
		}
		resp["classification"] = classification
	}

	respondJSON(w, http.StatusOK, resp)
}

func (a *api) query(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Question    string   `json:"question"`
		SearchTerms []string `json:"search_terms"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondBadRequest(w, "invalid request body")
		return
	}

	question := strings.TrimSpace(req.Question)
	if question == "" {
		respondBadRequest(w, "missing 'question' field")
		return
	}

	result, err := a.svcs.query.SearchAndAnswer(r.Context(), question, req.SearchTerms)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

func (a *api) fix(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SourceID string `json:"source_id"`
		Category string `json:"category"`
		Name     string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondBadRequest(w, "invalid request body")
		return
	}
	if req.SourceID == "" || req.Category == "" || req.Name == "" {
		respondBadRequest(w, "missing 'source_id', 'category', or 'name' field")
		return
	}

	result, err := a.svcs.classifier.Reclassify(r.Context(), req.SourceID, req.Category, req.Name)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

func (a *api) edit(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SourceID string         `json:"source_id"`
		Name     string         `json:"name"`
		Category string         `json:"category"`
		Metadata map[string]any `json:"metadata"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondBadRequest(w, "invalid request body")
		return
	}
	if req.SourceID == "" {
		respondBadRequest(w, "missing 'source_id' field")
		return
	}

	result, err := a.svcs.vault.Edit(vault.EditInput{
		SourceID:        req.SourceID,
		NewName:         req.Name,
		NewCategory:     req.Category,
		MetadataUpdates: req.Metadata,
	})
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"source_id": result.SourceID,
		"name":      result.Name,
		"category":  result.Category,
		"file_path": result.Path,
	})
}

func (a *api) delete(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SourceID string `json:"source_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondBadRequest(w, "invalid request body")
		return
	}
	if req.SourceID == "" {
		respondBadRequest(w, "missing 'source_id' field")
		return
	}

	result, err := a.svcs.vault.Delete(req.SourceID)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"source_id": result.SourceID,
		"name":      result.Name,
		"category":  result.Category,
		"message":   "Entry deleted",
	})
}

func (a *api) dailyDigest(w http.ResponseWriter, r *http.Request) {
	result, err := a.svcs.digest.Daily(r.Context())
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

func (a *api) weeklyDigest(w http.ResponseWriter, r *http.Request) {
	result, err := a.svcs.digest.Weekly(r.Context())
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

func (a *api) stats(w http.ResponseWriter, r *http.Request) {
	stats, err := a.svcs.vault.Stats()
	if err != nil {
		respondError(w, err)
		return
	}

	total := 0
	for _, n := range stats {
		total += n
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"stats": map[string]any{
			"people":   stats[vault.People],
			"projects": stats[vault.Projects],
			"ideas":    stats[vault.Ideas],
			"admin":    stats[vault.Admin],
			"total":    total,
		},
	})
}

func (a *api) recent(w http.ResponseWriter, r *http.Request) {
	days := 7
	if raw := r.URL.Query().Get("days"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			respondBadRequest(w, "invalid 'days' parameter")
			return
		}
		days = n
	}

	entries := make(map[vault.Category][]recentEntry)
	for _, cat := range vault.ContentCategories() {
		recent, err := a.svcs.vault.Recent(cat, days)
		if err != nil {
			respondError(w, err)
			return
		}
		entries[cat] = toRecentEntries(recent)
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"entries": entries,
		"days":    days,
	})
}

func (a *api) health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"success":    true,
		"status":     "healthy",
		"vault_path": a.svcs.vault.Root(),
	})
}

// recentEntry is the wire shape for recent-entry listings.
type recentEntry struct {
	Filename string         `json:"filename"`
	Metadata map[string]any `json:"metadata"`
	Content  string         `json:"content"`
}

func toRecentEntries(entries []vault.Entry) []recentEntry {
	out := make([]recentEntry, 0, len(entries))
	for _, e := range entries {
		meta := make(map[string]any, e.Meta.Len())
		for _, key := range e.Meta.Keys() {
			v, _ := e.Meta.Get(key)
			meta[key] = v
		}
		out = append(out, recentEntry{
			Filename: e.Filename,
			Metadata: meta,
			Content:  e.Body,
		})
	}
	return out
}

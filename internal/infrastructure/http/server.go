// Package http provides the HTTP server infrastructure.
// Clean Architecture: Framework/driver layer - outermost circle.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/0xcro3dile/ragchat-go/internal/domain/entities"
	"github.com/0xcro3dile/ragchat-go/internal/domain/usecases"
	"github.com/0xcro3dile/ragchat-go/internal/infrastructure/logging"
)

const (
	msgNoFilePart      = "No file part in the request."
	msgNoSelectedFile  = "No selected file."
	msgSessionNotFound = "Session ID not found. Please initialize the session first."
)

// Options configures the server.
type Options struct {
	Addr            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	UploadDir       string // Defaults to the OS temp dir
	MaxUploadMB     int64
}

// Server is the HTTP server for the chat API.
type Server struct {
	sessions *usecases.SessionManager
	opts     Options
	log      logging.Logger
}

// NewServer creates a new HTTP server.
func NewServer(sessions *usecases.SessionManager, opts Options, log logging.Logger) *Server {
	if opts.Addr == "" {
		opts.Addr = ":8000"
	}
	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = 5 * time.Second
	}
	if opts.MaxUploadMB <= 0 {
		opts.MaxUploadMB = 32
	}
	return &Server{sessions: sessions, opts: opts, log: logging.OrNop(log)}
}

// Handler returns the routed API with middleware applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /initialize/{$}", s.handleInitialize)
	mux.HandleFunc("POST /stream/{$}", s.handleStream)
	mux.HandleFunc("POST /query/{$}", s.handleQuery)
	mux.HandleFunc("GET /sessions/{$}", s.handleSessions)
	mux.HandleFunc("GET /sessions/{id}/history", s.handleHistory)
	mux.HandleFunc("DELETE /sessions/{id}", s.handleCloseSession)
	mux.HandleFunc("GET /api/health", s.handleHealth)

	return corsMiddleware(s.loggingMiddleware(mux))
}

// Start runs the HTTP server until ctx is cancelled, then shuts it down
// gracefully.
func (s *Server) Start(ctx context.Context) error {
	server := &http.Server{
		Addr:         s.opts.Addr,
		Handler:      s.Handler(),
		ReadTimeout:  s.opts.ReadTimeout,
		WriteTimeout: s.opts.WriteTimeout, // Zero for long streams
	}

	s.log.Info("ragchat server starting on %s", s.opts.Addr)

	shutdownErr := make(chan error, 1)
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.opts.ShutdownTimeout)
		defer cancel()
		shutdownErr <- server.Shutdown(shutdownCtx)
	}()

	if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return <-shutdownErr
}

// handleInitialize stores the uploaded corpus and builds a session from it.
func (s *Server) handleInitialize(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxUploadMB<<20)
	if err := r.ParseMultipartForm(s.opts.MaxUploadMB << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("upload exceeds %d MB", s.opts.MaxUploadMB))
			return
		}
		writeError(w, http.StatusBadRequest, msgNoFilePart)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		// A part named "file" without a filename is a submitted empty picker.
		if _, ok := r.MultipartForm.Value["file"]; ok {
			writeError(w, http.StatusBadRequest, msgNoSelectedFile)
			return
		}
		writeError(w, http.StatusBadRequest, msgNoFilePart)
		return
	}
	defer file.Close()

	name := filepath.Base(header.Filename)
	if name == "" || name == "." || name == string(filepath.Separator) {
		writeError(w, http.StatusBadRequest, msgNoSelectedFile)
		return
	}

	dir, err := os.MkdirTemp(s.opts.UploadDir, "upload-*")
	if err != nil {
		s.log.Error("creating upload dir: %v", err)
		writeError(w, http.StatusInternalServerError, "could not store upload")
		return
	}
	// The index holds everything a session needs; the file can go.
	defer os.RemoveAll(dir)

	path := filepath.Join(dir, name)
	if err := saveUpload(path, file); err != nil {
		s.log.Error("saving upload %s: %v", name, err)
		writeError(w, http.StatusInternalServerError, "could not store upload")
		return
	}

	id, err := s.sessions.CreateSession(r.Context(), entities.CorpusSource{Path: path, Name: name})
	if err != nil {
		s.log.Warn("initializing session from %s: %v", name, err)
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"message":    "Session initialized with file: " + name,
		"session_id": id,
	})
}

func saveUpload(path string, src io.Reader) error {
	dst, err := os.Create(path)
	if err != nil {
		return err
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return err
	}
	return dst.Close()
}

// handleStream answers one conversational turn, streaming fragments as plain
// text lines or, when asked for, as SSE events.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	id := r.FormValue("session_id")
	question := r.FormValue("question")
	if n := len(r.Form["chat_history"]); n > 0 {
		s.log.Debug("session %s: ignoring %d client chat_history entries", id, n)
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	stream, err := s.sessions.Ask(r.Context(), id, question)
	if err != nil {
		s.writeAskError(w, err)
		return
	}
	defer stream.Close()

	if r.Header.Get("Accept") == "text/event-stream" {
		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")

		for f := range stream.Fragments() {
			if f.IsError() {
				sendSSE(w, flusher, map[string]any{"error": f.Err.Error()})
				continue
			}
			sendSSE(w, flusher, map[string]any{"content": f.Text})
		}
		sendSSE(w, flusher, map[string]any{"done": true})
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()
	for f := range stream.Fragments() {
		if _, err := io.WriteString(w, f.String()+"\n"); err != nil {
			s.log.Debug("session %s: client went away: %v", id, err)
			return
		}
		flusher.Flush()
	}
}

func sendSSE(w http.ResponseWriter, flusher http.Flusher, data map[string]any) {
	jsonData, _ := json.Marshal(data)
	fmt.Fprintf(w, "data: %s\n\n", jsonData)
	flusher.Flush()
}

type sourceJSON struct {
	Document string  `json:"document"`
	Content  string  `json:"content"`
	Score    float64 `json:"score"`
}

type queryJSON struct {
	Answer   string       `json:"answer"`
	Question string       `json:"question"`
	Sources  []sourceJSON `json:"sources"`
}

// handleQuery answers a question without touching the session's history.
func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	id := r.FormValue("session_id")
	question := r.FormValue("question")

	resp, err := s.sessions.Query(r.Context(), id, question)
	if err != nil {
		s.writeAskError(w, err)
		return
	}

	out := queryJSON{
		Answer:   resp.Answer,
		Question: resp.Question,
		Sources:  make([]sourceJSON, len(resp.Sources)),
	}
	for i, src := range resp.Sources {
		out.Sources[i] = sourceJSON{Document: src.SourceDoc, Content: src.Chunk.Content, Score: src.Score}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleSessions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.sessions.Sessions())
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	turns, err := s.sessions.History(r.Context(), r.PathValue("id"))
	if err != nil {
		var notFound *entities.SessionNotFoundError
		if errors.As(err, &notFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		s.log.Error("loading history: %v", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if turns == nil {
		turns = []entities.Turn{}
	}
	writeJSON(w, http.StatusOK, turns)
}

func (s *Server) handleCloseSession(w http.ResponseWriter, r *http.Request) {
	err := s.sessions.CloseSession(r.Context(), r.PathValue("id"))
	var notFound *entities.SessionNotFoundError
	switch {
	case err == nil:
		w.WriteHeader(http.StatusNoContent)
	case errors.As(err, &notFound):
		writeError(w, http.StatusNotFound, err.Error())
	default:
		// The session is gone either way; only cleanup failed.
		s.log.Warn("closing session: %v", err)
		w.WriteHeader(http.StatusNoContent)
	}
}

// handleHealth returns server health status.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// writeAskError maps ask and query failures onto status codes.
func (s *Server) writeAskError(w http.ResponseWriter, err error) {
	var (
		notFound *entities.SessionNotFoundError
		genErr   *entities.GenerationError
	)
	switch {
	case errors.As(err, &notFound):
		writeError(w, http.StatusBadRequest, msgSessionNotFound)
	case errors.Is(err, entities.ErrEmptyQuestion):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &genErr):
		writeError(w, http.StatusBadGateway, err.Error())
	case errors.Is(err, context.Canceled):
		// Client left while waiting for its turn.
	default:
		s.log.Error("ask: %v", err)
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.log.Info("%s %s %v", r.Method, r.URL.Path, time.Since(start))
	})
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Accept")
		if r.Method == http.MethodOptions {
			return
		}
		next.ServeHTTP(w, r)
	})
}

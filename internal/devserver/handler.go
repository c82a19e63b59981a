// Package devserver implements the backend wire contract with canned,
// deterministic responses. It exists for local development and for
// end-to-end tests of the streaming client; it fabricates HTML rather
// than generating it.
package devserver

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"path"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/supreme-gg-gg/multiflex/internal/agent"
)

var supportedExtensions = map[string]bool{
	".pdf":  true,
	".docx": true,
	".pptx": true,
	".txt":  true,
}

const maxUploadSize = 10 << 20

// Handler serves the stub backend.
type Handler struct {
	mu   sync.Mutex
	docs map[string][]string // user id -> uploaded filenames
}

// NewHandler creates a stub backend handler.
func NewHandler() *Handler {
	return &Handler{docs: make(map[string][]string)}
}

// Routes returns the full route tree: the streaming endpoint plus the
// document and agent REST surface.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/ws", h.serveWS)
	r.Post("/api/agent", h.handleAgent)
	r.Post("/api/upload", h.handleUpload)
	r.Get("/api/documents/{userID}", h.handleDocuments)
	r.Delete("/api/documents/{userID}", h.handleDeleteDocuments)
	r.Post("/api/test-rag", h.handleTestRAG)
	return r
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error": "failed to encode response"}`, http.StatusInternalServerError)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}

func (h *Handler) handleAgent(w http.ResponseWriter, r *http.Request) {
	var req agent.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Prompt == "" {
		Error(w, http.StatusBadRequest, "prompt is required")
		return
	}

	card, _ := json.Marshal(agent.CardProps{
		Title:   "Generated UI",
		Content: "Components for: " + req.Prompt,
	})
	JSON(w, http.StatusOK, agent.Response{
		Components: []agent.Component{{Type: "card", Props: card}},
	})
}

func (h *Handler) handleUpload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		Error(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	userID := r.FormValue("user_id")
	if userID == "" {
		Error(w, http.StatusBadRequest, "user_id is required")
		return
	}

	files := r.MultipartForm.File["files"]
	results := make([]map[string]any, 0, len(files))
	accepted := 0
	for _, fh := range files {
		ext := strings.ToLower(path.Ext(fh.Filename))
		if !supportedExtensions[ext] {
			results = append(results, map[string]any{
				"filename": fh.Filename,
				"status":   "error",
				"message":  "Unsupported file type",
			})
			continue
		}
		h.mu.Lock()
		h.docs[userID] = append(h.docs[userID], fh.Filename)
		h.mu.Unlock()
		accepted++
		results = append(results, map[string]any{
			"filename":       fh.Filename,
			"status":         "success",
			"message":        "Processed into 1 chunks",
			"chunks_created": 1,
		})
	}

	slog.Info("Documents uploaded", "user_id", userID, "accepted", accepted, "total", len(files))
	JSON(w, http.StatusOK, map[string]any{
		"message":      "Processed files",
		"results":      results,
		"user_id":      userID,
		"total_chunks": accepted,
	})
}

func (h *Handler) handleDocuments(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	h.mu.Lock()
	files := append([]string(nil), h.docs[userID]...)
	h.mu.Unlock()

	JSON(w, http.StatusOK, map[string]any{
		"user_id": userID,
		"statistics": map[string]any{
			"total_documents": len(files),
			"total_chunks":    len(files),
			"files":           files,
			"file_count":      len(files),
		},
	})
}

func (h *Handler) handleDeleteDocuments(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	h.mu.Lock()
	delete(h.docs, userID)
	h.mu.Unlock()

	slog.Info("Documents cleared", "user_id", userID)
	JSON(w, http.StatusOK, map[string]string{
		"message": "Cleared documents",
		"user_id": userID,
	})
}

func (h *Handler) handleTestRAG(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		Error(w, http.StatusBadRequest, "invalid form")
		return
	}
	query := r.FormValue("query")
	userID := r.FormValue("user_id")
	if query == "" || userID == "" {
		Error(w, http.StatusBadRequest, "query and user_id are required")
		return
	}

	h.mu.Lock()
	count := len(h.docs[userID])
	h.mu.Unlock()

	preview := ""
	if count > 0 {
		preview = "Document 1 (" + h.firstDoc(userID) + "): stub context for " + query
	}
	JSON(w, http.StatusOK, map[string]any{
		"use_rag":             count > 0,
		"retrieved_documents": count,
		"context_length":      len(preview),
		"preview":             preview,
	})
}

func (h *Handler) firstDoc(userID string) string {
	h.mu.Lock()
	defer h.mu.Unlock()
	if files := h.docs[userID]; len(files) > 0 {
		return files[0]
	}
	return ""
}

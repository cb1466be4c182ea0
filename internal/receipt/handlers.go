package receipt

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/zombor/receipt-pipeline/internal/notion"
)

// maxFormSize bounds a whole batch upload; high-resolution phone photos add up quickly
const maxFormSize = int64(200 << 20)

// corsError writes an error response with CORS headers set
func corsError(w http.ResponseWriter, message string, code int) {
	setCORSHeaders(w)
	http.Error(w, message, code)
}

// jsonError writes a JSON error body
func jsonError(w http.ResponseWriter, message string, code int) {
	setCORSHeaders(w)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{
		"error": message,
	})
}

// writeJSON writes a JSON body with the given status
func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Error encoding response", "error", err)
	}
}

// setCORSHeaders sets CORS headers on a response
func setCORSHeaders(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
	w.Header().Set("Access-Control-Max-Age", "3600")
}

// contentTypeFor picks the MIME type of an uploaded part, falling back to the file extension
func contentTypeFor(header *multipart.FileHeader) string {
	contentType := strings.ToLower(strings.TrimSpace(header.Header.Get("Content-Type")))
	if contentType != "" && contentType != "application/octet-stream" {
		return contentType
	}

	switch strings.ToLower(filepath.Ext(header.Filename)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".pdf":
		return "application/pdf"
	case ".heic":
		return "image/heic"
	case ".heif":
		return "image/heif"
	default:
		return "application/octet-stream"
	}
}

// readUpload reads one multipart file into an Upload
func readUpload(header *multipart.FileHeader) (Upload, error) {
	f, err := header.Open()
	if err != nil {
		return Upload{}, err
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return Upload{}, err
	}
	return Upload{
		Filename:    header.Filename,
		ContentType: contentTypeFor(header),
		Data:        data,
	}, nil
}

// handleStartBatch accepts a multipart batch of receipt images and starts processing it
func (s *Server) handleStartBatch(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxFormSize)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		slog.Error("Error parsing multipart form", "error", err)
		errorMsg := "Error parsing form"
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			errorMsg = "Upload is too large. Maximum batch size is 200MB."
		}
		jsonError(w, errorMsg, http.StatusBadRequest)
		return
	}

	headers := append(r.MultipartForm.File["files"], r.MultipartForm.File["file"]...)
	uploads := make([]Upload, 0, len(headers))
	for _, header := range headers {
		upload, err := readUpload(header)
		if err != nil {
			slog.Error("Error reading file data", "error", err, "filename", header.Filename)
			jsonError(w, "Error reading file. Please try again.", http.StatusInternalServerError)
			return
		}
		uploads = append(uploads, upload)
	}

	creds := notion.Credentials{
		APIKey:     r.FormValue("api_key"),
		DatabaseID: r.FormValue("database_id"),
	}

	batchID, err := s.service.StartBatch(r.Context(), uploads, creds)
	switch {
	case errors.Is(err, ErrEmptyBatch):
		jsonError(w, "No files were selected. Please choose at least one receipt image.", http.StatusBadRequest)
		return
	case errors.Is(err, ErrMissingCredentials):
		jsonError(w, "Notion API key and database ID are required.", http.StatusBadRequest)
		return
	case errors.Is(err, ErrBatchInFlight):
		jsonError(w, "A batch is already being processed. Wait for it to finish.", http.StatusConflict)
		return
	case err != nil:
		slog.Error("Error starting batch", "error", err)
		jsonError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	view := s.service.View().Current()
	view.BatchID = batchID
	writeJSON(w, http.StatusAccepted, view)
}

// handleCurrentBatch returns the live status of the current batch
func (s *Server) handleCurrentBatch(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.service.View().Current())
}

// handleGetPreview returns a stored preview image
func (s *Server) handleGetPreview(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if name == "" {
		corsError(w, "Preview name required", http.StatusBadRequest)
		return
	}
	data, err := s.service.GetPreview(name)
	if err != nil {
		if errors.Is(err, ErrInvalidName) {
			corsError(w, "Invalid preview name", http.StatusBadRequest)
			return
		}
		corsError(w, "Preview not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", http.DetectContentType(data))
	w.Write(data)
}

// handleListHistory returns all recorded item outcomes
func (s *Server) handleListHistory(w http.ResponseWriter, r *http.Request) {
	entries, err := s.history.ListEntries()
	if err != nil {
		slog.Error("Error listing history", "error", err)
		corsError(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

package server

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/finexhq/finex-server/internal/receipt"
	"github.com/finexhq/finex-server/internal/scanning"
	"github.com/finexhq/finex-server/internal/staging"
)

// maxUploadSize caps a single upload request (high-resolution phone photos)
const maxUploadSize = int64(50 << 20) // 50MB

// allowedExtensions are the accepted receipt file types
var allowedExtensions = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".pdf":  "application/pdf",
	".heic": "image/heic",
	".heif": "image/heif",
}

// writeJSON writes a JSON response with CORS headers set
func writeJSON(w http.ResponseWriter, code int, v any) {
	setCORSHeaders(w)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Error encoding response", "error", err)
	}
}

// writeError writes a JSON error response with CORS headers set
func writeError(w http.ResponseWriter, message string, code int) {
	writeJSON(w, code, map[string]string{"error": message})
}

// sanitizeFilename cleans up a filename by removing special characters and
// truncating length; phone cameras produce very long names
func sanitizeFilename(filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	base := strings.TrimSuffix(filename, filepath.Ext(filename))

	reg := regexp.MustCompile(`[^a-zA-Z0-9\s\-_]`)
	base = reg.ReplaceAllString(base, "")

	reg = regexp.MustCompile(`\s+`)
	base = reg.ReplaceAllString(base, " ")

	base = strings.TrimSpace(base)

	maxLen := 50
	if len(base) > maxLen {
		base = base[:maxLen]
	}

	if base == "" {
		base = "receipt"
	}

	return base + ext
}

// uploadedFile is the per-file success entry in the upload response
type uploadedFile struct {
	Filename string         `json:"filename"`
	Size     int64          `json:"size"`
	ImageURL string         `json:"imageUrl"`
	DraftID  string         `json:"draftId"`
	Draft    *receipt.Draft `json:"draft"`
}

// uploadError is the per-file failure entry in the upload response
type uploadError struct {
	File  string `json:"file"`
	Error string `json:"error"`
}

// uploadResponse reports the outcome of a (possibly batch) upload. Uploaded
// entries appear in upload order; drafts are meant to be verified
// sequentially in that order.
type uploadResponse struct {
	Status    string         `json:"status"`
	Uploaded  []uploadedFile `json:"uploaded"`
	Errors    []uploadError  `json:"errors"`
	Total     int            `json:"total"`
	Succeeded int            `json:"succeeded"`
}

// handleUpload accepts one or more receipt files, stores each image, runs
// extraction and stages a normalized draft per file. An extraction failure
// still produces a draft (ocrStatus=error); only a storage failure is
// terminal for a file. One file's failure never affects the others.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		slog.Error("Error parsing multipart form", "error", err)
		msg := "Error parsing form"
		if err.Error() == "http: request body too large" {
			msg = "Upload is too large. Maximum size is 50MB."
		}
		writeError(w, msg, http.StatusBadRequest)
		return
	}

	headers := r.MultipartForm.File["files"]
	if len(headers) == 0 {
		// Single-file clients post under "file"
		headers = r.MultipartForm.File["file"]
	}
	if len(headers) == 0 {
		writeError(w, "No file was selected. Please choose a file to upload.", http.StatusBadRequest)
		return
	}

	resp := uploadResponse{
		Status:   "success",
		Uploaded: []uploadedFile{},
		Errors:   []uploadError{},
	}

	for _, header := range headers {
		entry, err := s.processFile(header)
		if err != nil {
			slog.Error("Error processing upload", "filename", header.Filename, "error", err)
			resp.Errors = append(resp.Errors, uploadError{File: header.Filename, Error: err.Error()})
			continue
		}
		resp.Uploaded = append(resp.Uploaded, *entry)
	}

	resp.Total = len(resp.Uploaded) + len(resp.Errors)
	resp.Succeeded = len(resp.Uploaded)

	writeJSON(w, http.StatusCreated, resp)
}

// processFile stores one uploaded file, runs extraction on it and stages the
// normalized draft
func (s *Server) processFile(header *multipart.FileHeader) (*uploadedFile, error) {
	filename := header.Filename
	ext := strings.ToLower(filepath.Ext(filename))
	contentType, ok := allowedExtensions[ext]
	if !ok {
		return nil, errors.New("file type not allowed; allowed: jpg, jpeg, png, pdf, heic, heif")
	}

	f, err := header.Open()
	if err != nil {
		return nil, errors.New("error reading file; please try again")
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, maxUploadSize+1))
	if err != nil {
		return nil, errors.New("error reading file; please try again")
	}
	if int64(len(data)) > maxUploadSize {
		return nil, errors.New("file is too large; maximum size is 50MB")
	}

	storedName := uuid.NewString() + "_" + sanitizeFilename(filename)
	savedPath, err := s.storage.Save(storedName, data)
	if err != nil {
		return nil, errors.New("failed to store file")
	}

	status := receipt.OCRSuccess
	message := ""
	raw, err := s.scanner.ScanReceipt(data, contentType)
	if err != nil {
		slog.Error("Failed to scan receipt",
			"filename", filename,
			"content_type", contentType,
			"file_size", len(data),
			"error", err,
		)
		status = receipt.OCRError
		message = err.Error()
		raw = scanning.RawResult{}
	}

	draft := scanning.Normalize(raw, status, message)
	draft.ImageURL = s.storage.URL(savedPath)

	id := s.drafts.Put(draft)

	return &uploadedFile{
		Filename: filename,
		Size:     int64(len(data)),
		ImageURL: draft.ImageURL,
		DraftID:  id,
		Draft:    draft,
	}, nil
}

// handleListDrafts returns all staged drafts in upload order
func (s *Server) handleListDrafts(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.drafts.List())
}

// handleGetDraft returns a single staged draft
func (s *Server) handleGetDraft(w http.ResponseWriter, r *http.Request) {
	entry, err := s.drafts.Get(r.PathValue("id"))
	if err != nil {
		writeError(w, "Draft not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

// handleEditDraft applies scalar field edits to a staged draft. Values are
// coerced, never rejected: a non-numeric amount becomes 0.
func (s *Server) handleEditDraft(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var fields map[string]any
	if err := json.NewDecoder(r.Body).Decode(&fields); err != nil {
		writeError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	for field, value := range fields {
		if err := s.drafts.SetField(id, field, value); err != nil {
			writeError(w, "Draft not found", http.StatusNotFound)
			return
		}
	}

	entry, err := s.drafts.Get(id)
	if err != nil {
		writeError(w, "Draft not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

// handleEditDraftItem applies field edits to one line item of a draft
func (s *Server) handleEditDraftItem(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	index, err := strconv.Atoi(r.PathValue("index"))
	if err != nil {
		writeError(w, "Invalid item index", http.StatusBadRequest)
		return
	}

	var fields map[string]any
	if err := json.NewDecoder(r.Body).Decode(&fields); err != nil {
		writeError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	for field, value := range fields {
		if err := s.drafts.SetItemField(id, index, field, value); err != nil {
			writeError(w, "Draft not found", http.StatusNotFound)
			return
		}
	}

	entry, err := s.drafts.Get(id)
	if err != nil {
		writeError(w, "Draft not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

// handleAddDraftItem appends a default line item to a draft
func (s *Server) handleAddDraftItem(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.drafts.AddItem(id); err != nil {
		writeError(w, "Draft not found", http.StatusNotFound)
		return
	}
	entry, _ := s.drafts.Get(id)
	writeJSON(w, http.StatusOK, entry)
}

// handleRemoveDraftItem removes one line item from a draft. Removing the
// last item is allowed; an empty item list is a valid draft.
func (s *Server) handleRemoveDraftItem(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	index, err := strconv.Atoi(r.PathValue("index"))
	if err != nil {
		writeError(w, "Invalid item index", http.StatusBadRequest)
		return
	}
	if err := s.drafts.RemoveItem(id, index); err != nil {
		writeError(w, "Draft not found", http.StatusNotFound)
		return
	}
	entry, _ := s.drafts.Get(id)
	writeJSON(w, http.StatusOK, entry)
}

// handleRevertDraft discards unsaved edits back to the last snapshot
func (s *Server) handleRevertDraft(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.drafts.Revert(id); err != nil {
		writeError(w, "Draft not found", http.StatusNotFound)
		return
	}
	entry, _ := s.drafts.Get(id)
	writeJSON(w, http.StatusOK, entry)
}

// handleConfirmDraft commits a staged draft. On persistence failure the
// draft stays staged unchanged so the user can retry the same confirm; on
// success the session is discarded.
func (s *Server) handleConfirmDraft(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	draft, err := s.drafts.Take(id)
	if err != nil {
		switch {
		case errors.Is(err, staging.ErrEditRequired):
			writeError(w, err.Error(), http.StatusConflict)
		default:
			writeError(w, "Draft not found", http.StatusNotFound)
		}
		return
	}

	rec, err := s.receipts.CommitDraft(draft)
	if err != nil {
		slog.Error("Error committing draft", "draft_id", id, "error", err)
		writeError(w, "Failed to save receipt; please try again", http.StatusInternalServerError)
		return
	}

	s.drafts.Discard(id)
	writeJSON(w, http.StatusCreated, rec)
}

// handleCancelDraft discards a staged draft. Nothing was persisted, so no
// compensating action is needed.
func (s *Server) handleCancelDraft(w http.ResponseWriter, r *http.Request) {
	s.drafts.Discard(r.PathValue("id"))
	setCORSHeaders(w)
	w.WriteHeader(http.StatusNoContent)
}

// handleListReceipts returns all persisted receipts
func (s *Server) handleListReceipts(w http.ResponseWriter, r *http.Request) {
	receipts, err := s.receipts.ListReceipts()
	if err != nil {
		slog.Error("Error listing receipts", "error", err)
		writeError(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, receipts)
}

// handleCreateReceipt persists a manually entered receipt
func (s *Server) handleCreateReceipt(w http.ResponseWriter, r *http.Request) {
	var rec receipt.Receipt
	if err := json.NewDecoder(r.Body).Decode(&rec); err != nil {
		writeError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	saved, err := s.receipts.CreateReceipt(&rec)
	if err != nil {
		slog.Error("Error creating receipt", "error", err)
		writeError(w, "Failed to save receipt; please try again", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, saved)
}

// handleGetReceipt returns a single receipt
func (s *Server) handleGetReceipt(w http.ResponseWriter, r *http.Request) {
	rec, err := s.receipts.GetReceipt(r.PathValue("id"))
	if err != nil {
		writeError(w, "Receipt not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// handleUpdateReceipt replaces a persisted receipt
func (s *Server) handleUpdateReceipt(w http.ResponseWriter, r *http.Request) {
	var rec receipt.Receipt
	if err := json.NewDecoder(r.Body).Decode(&rec); err != nil {
		writeError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	saved, err := s.receipts.UpdateReceipt(r.PathValue("id"), &rec)
	if err != nil {
		if errors.Is(err, receipt.ErrNotFound) {
			writeError(w, "Receipt not found", http.StatusNotFound)
			return
		}
		slog.Error("Error updating receipt", "error", err)
		writeError(w, "Failed to update receipt; please try again", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, saved)
}

// handleDeleteReceipt deletes a receipt and its stored image
func (s *Server) handleDeleteReceipt(w http.ResponseWriter, r *http.Request) {
	if err := s.receipts.DeleteReceipt(r.PathValue("id")); err != nil {
		if errors.Is(err, receipt.ErrNotFound) {
			writeError(w, "Receipt not found", http.StatusNotFound)
			return
		}
		slog.Error("Error deleting receipt", "error", err)
		writeError(w, "Error deleting receipt", http.StatusInternalServerError)
		return
	}
	setCORSHeaders(w)
	w.WriteHeader(http.StatusNoContent)
}

// handleGetReceiptFile returns the stored source image for a receipt
func (s *Server) handleGetReceiptFile(w http.ResponseWriter, r *http.Request) {
	data, contentType, err := s.receipts.GetReceiptFile(r.PathValue("id"))
	if err != nil {
		writeError(w, "File not found", http.StatusNotFound)
		return
	}
	setCORSHeaders(w)
	w.Header().Set("Content-Type", contentType)
	w.Write(data)
}

// handleStats returns collection-wide receipt statistics
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.receipts.Stats()
	if err != nil {
		slog.Error("Error computing stats", "error", err)
		writeError(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// handleAnalytics returns the aggregate report, optionally bounded by
// ?start=YYYY-MM-DD&end=YYYY-MM-DD (end date inclusive)
func (s *Server) handleAnalytics(w http.ResponseWriter, r *http.Request) {
	startParam := r.URL.Query().Get("start")
	endParam := r.URL.Query().Get("end")

	var start, end time.Time
	if (startParam == "") != (endParam == "") {
		writeError(w, "start and end must be provided together", http.StatusBadRequest)
		return
	}
	if startParam != "" {
		var err error
		start, err = time.Parse("2006-01-02", startParam)
		if err != nil {
			writeError(w, "Invalid start date", http.StatusBadRequest)
			return
		}
		end, err = time.Parse("2006-01-02", endParam)
		if err != nil {
			writeError(w, "Invalid end date", http.StatusBadRequest)
			return
		}
		end = end.AddDate(0, 0, 1).Add(-time.Nanosecond)
	}

	report, err := s.analytics.Report(start, end)
	if err != nil {
		slog.Error("Error computing analytics", "error", err)
		writeError(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

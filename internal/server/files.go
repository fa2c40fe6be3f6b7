package server

import (
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/ssd-technologies/cumulus/internal/notify"
	"github.com/ssd-technologies/cumulus/internal/storage"
)

const (
	defaultRecentLimit = 10
	multipartMemory    = 32 << 20 // parts beyond this spill to temp files
	multipartOverhead  = 1 << 20
)

type updateFileRequest struct {
	Name     string          `json:"name"`
	FolderID json.RawMessage `json:"folderId"`
}

// ownedFile resolves the {id} path segment to a file owned by the server's
// owner, writing the failure response itself.
func (s *Server) ownedFile(w http.ResponseWriter, r *http.Request) (storage.File, bool) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid file id")
		return storage.File{}, false
	}
	f, err := s.store.File(id)
	if err != nil {
		s.writeStoreError(w, r, err, "File")
		return storage.File{}, false
	}
	if f.OwnerID != s.owner {
		writeError(w, http.StatusForbidden, "Unauthorized access to file")
		return storage.File{}, false
	}
	return f, true
}

// handleListFiles handles GET /api/files: every file, or only the direct
// files of folderId when given.
func (s *Server) handleListFiles(w http.ResponseWriter, r *http.Request) {
	folderID, ok := optionalID(r.URL.Query().Get("folderId"))
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid folderId")
		return
	}
	writeJSON(w, http.StatusOK, storage.FileResponses(s.store.Files(s.owner, folderID)))
}

// handleRecentFiles handles GET /api/files/recent?limit=N.
func (s *Server) handleRecentFiles(w http.ResponseWriter, r *http.Request) {
	limit := defaultRecentLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}
	writeJSON(w, http.StatusOK, storage.FileResponses(s.store.RecentFiles(s.owner, limit)))
}

// handleUploadFile handles POST /api/files: multipart upload of one file.
func (s *Server) handleUploadFile(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload+multipartOverhead)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			writeError(w, http.StatusRequestEntityTooLarge, "file too large")
			return
		}
		writeError(w, http.StatusBadRequest, "No file uploaded")
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "No file uploaded")
		return
	}
	defer file.Close()

	if header.Size > s.maxUpload {
		writeError(w, http.StatusRequestEntityTooLarge, "file too large")
		return
	}

	folderID, ok := optionalID(r.FormValue("folderId"))
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid folderId")
		return
	}

	if _, err := s.store.Usage(s.owner); err != nil {
		s.writeStoreError(w, r, err, "User or storage info")
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to read file")
		return
	}

	mimeType := header.Header.Get("Content-Type")
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}

	f, err := s.store.Upload(r.Context(), storage.NewFile{
		Name:     header.Filename,
		MimeType: mimeType,
		FolderID: folderID,
		OwnerID:  s.owner,
	}, data)
	if err != nil {
		s.writeStoreError(w, r, err, "Folder")
		return
	}
	s.log.Info("file uploaded", "file_id", f.ID, "size", f.Size, "folder_id", f.FolderID)

	s.publish(notify.FileCreated, f.ID, f.FolderID)
	s.publish(notify.QuotaChanged, s.owner, nil)
	writeJSON(w, http.StatusCreated, storage.FileResponseFor(f))
}

// handleGetFile handles GET /api/files/{id}: metadata only.
func (s *Server) handleGetFile(w http.ResponseWriter, r *http.Request) {
	f, ok := s.ownedFile(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, storage.FileResponseFor(f))
}

// handleDownloadFile handles GET /api/files/{id}/download: raw bytes.
func (s *Server) handleDownloadFile(w http.ResponseWriter, r *http.Request) {
	f, ok := s.ownedFile(w, r)
	if !ok {
		return
	}

	_, data, err := s.store.Content(r.Context(), f.ID)
	if err != nil {
		s.writeStoreError(w, r, err, "File")
		return
	}

	w.Header().Set("Content-Type", f.MimeType)
	w.Header().Set("Content-Disposition", contentDisposition(f.Name))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

// contentDisposition builds an attachment header carrying the stored name.
func contentDisposition(name string) string {
	if v := mime.FormatMediaType("attachment", map[string]string{"filename": name}); v != "" {
		return v
	}
	return `attachment; filename="` + strings.NewReplacer(`"`, "", "\\", "", "\r", "", "\n", "").Replace(name) + `"`
}

// handleUpdateFile handles PUT /api/files/{id}: rename and optional move.
func (s *Server) handleUpdateFile(w http.ResponseWriter, r *http.Request) {
	var req updateFileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		writeError(w, http.StatusBadRequest, "File name is required")
		return
	}
	move, folderID, ok := parseFolderRef(req.FolderID)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid folderId")
		return
	}

	f, ok := s.ownedFile(w, r)
	if !ok {
		return
	}
	updated, err := s.store.UpdateFile(f.ID, storage.FileUpdate{
		Name:     req.Name,
		Move:     move,
		FolderID: folderID,
	})
	if err != nil {
		s.writeStoreError(w, r, err, "File")
		return
	}

	s.publish(notify.FileUpdated, updated.ID, updated.FolderID)
	writeJSON(w, http.StatusOK, storage.FileResponseFor(updated))
}

// handleDeleteFile handles DELETE /api/files/{id}.
func (s *Server) handleDeleteFile(w http.ResponseWriter, r *http.Request) {
	f, ok := s.ownedFile(w, r)
	if !ok {
		return
	}
	if err := s.store.DeleteFile(r.Context(), f.ID); err != nil {
		s.writeStoreError(w, r, err, "File")
		return
	}

	s.publish(notify.FileDeleted, f.ID, f.FolderID)
	s.publish(notify.QuotaChanged, s.owner, nil)
	w.WriteHeader(http.StatusNoContent)
}

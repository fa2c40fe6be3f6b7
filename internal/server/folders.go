package server

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/ssd-technologies/cumulus/internal/notify"
	"github.com/ssd-technologies/cumulus/internal/storage"
)

type createFolderRequest struct {
	Name     string `json:"name"`
	ParentID *int64 `json:"parentId"`
}

// updateFolderRequest keeps parentId raw so an explicit null (move to
// root) can be told apart from an absent field (no move).
type updateFolderRequest struct {
	Name     string          `json:"name"`
	ParentID json.RawMessage `json:"parentId"`
}

// folderResponse aggregates the folder's direct files only.
func (s *Server) folderResponse(f storage.Folder) storage.FolderResponse {
	return storage.FolderResponseFor(f, s.store.Files(s.owner, &f.ID))
}

// ownedFolder resolves the {id} path segment to a folder owned by the
// server's owner, writing the failure response itself.
func (s *Server) ownedFolder(w http.ResponseWriter, r *http.Request) (storage.Folder, bool) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid folder id")
		return storage.Folder{}, false
	}
	f, err := s.store.Folder(id)
	if err != nil {
		s.writeStoreError(w, r, err, "Folder")
		return storage.Folder{}, false
	}
	if f.OwnerID != s.owner {
		writeError(w, http.StatusForbidden, "Unauthorized access to folder")
		return storage.Folder{}, false
	}
	return f, true
}

// handleListFolders handles GET /api/folders: direct children of parentId,
// or root folders when it is omitted.
func (s *Server) handleListFolders(w http.ResponseWriter, r *http.Request) {
	parentID, ok := optionalID(r.URL.Query().Get("parentId"))
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid parentId")
		return
	}

	folders := s.store.Folders(s.owner, parentID)
	result := make([]storage.FolderResponse, len(folders))
	for i, f := range folders {
		result[i] = s.folderResponse(f)
	}
	writeJSON(w, http.StatusOK, result)
}

// handleCreateFolder handles POST /api/folders.
func (s *Server) handleCreateFolder(w http.ResponseWriter, r *http.Request) {
	var req createFolderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid folder data")
		return
	}

	f, err := s.store.CreateFolder(storage.NewFolder{
		Name:     req.Name,
		ParentID: req.ParentID,
		OwnerID:  s.owner,
	})
	if err != nil {
		s.writeStoreError(w, r, err, "Folder")
		return
	}

	s.publish(notify.FolderCreated, f.ID, f.ParentID)
	writeJSON(w, http.StatusCreated, s.folderResponse(f))
}

// handleGetFolder handles GET /api/folders/{id}.
func (s *Server) handleGetFolder(w http.ResponseWriter, r *http.Request) {
	f, ok := s.ownedFolder(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, s.folderResponse(f))
}

// handleUpdateFolder handles PUT /api/folders/{id}: rename, and move when
// parentId is present in the body.
func (s *Server) handleUpdateFolder(w http.ResponseWriter, r *http.Request) {
	var req updateFolderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		writeError(w, http.StatusBadRequest, "Folder name is required")
		return
	}
	move, parentID, ok := parseFolderRef(req.ParentID)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid parentId")
		return
	}

	f, ok := s.ownedFolder(w, r)
	if !ok {
		return
	}
	if move {
		if _, err := s.store.MoveFolder(f.ID, parentID); err != nil {
			s.writeStoreError(w, r, err, "Folder")
			return
		}
	}
	updated, err := s.store.RenameFolder(f.ID, req.Name)
	if err != nil {
		s.writeStoreError(w, r, err, "Folder")
		return
	}

	s.publish(notify.FolderUpdated, updated.ID, updated.ParentID)
	writeJSON(w, http.StatusOK, s.folderResponse(updated))
}

// handleDeleteFolder handles DELETE /api/folders/{id}: cascading delete.
func (s *Server) handleDeleteFolder(w http.ResponseWriter, r *http.Request) {
	f, ok := s.ownedFolder(w, r)
	if !ok {
		return
	}

	sum, err := s.store.DeleteFolder(r.Context(), f.ID)
	if err != nil {
		s.writeStoreError(w, r, err, "Folder")
		return
	}
	s.log.Info("folder deleted",
		"folder_id", f.ID, "folders", sum.Folders, "files", sum.Files,
		"freed_bytes", sum.FreedBytes, "blob_errors", sum.BlobErrors)

	s.publish(notify.FolderDeleted, f.ID, f.ParentID)
	if sum.Files > 0 {
		s.publish(notify.QuotaChanged, s.owner, nil)
	}
	w.WriteHeader(http.StatusNoContent)
}

package storage

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"
)

// Files returns ownerID's files. With a folderID only that folder's direct
// files are returned; a nil folderID returns every file regardless of
// folder. Note the contrast with Folders, where nil means root only.
func (s *Store) Files(ownerID int64, folderID *int64) []File {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := []File{}
	for _, f := range s.files {
		if f.OwnerID != ownerID {
			continue
		}
		if folderID != nil && !sameRef(f.FolderID, folderID) {
			continue
		}
		out = append(out, f.clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// RecentFiles returns at most limit of ownerID's files, most recently
// modified first. Equal timestamps keep creation order.
func (s *Store) RecentFiles(ownerID int64, limit int) []File {
	if limit <= 0 {
		return []File{}
	}
	all := s.Files(ownerID, nil)
	sort.SliceStable(all, func(i, j int) bool {
		return all[i].LastModified.After(all[j].LastModified)
	})
	if len(all) > limit {
		all = all[:limit]
	}
	return all
}

func (s *Store) File(id int64) (File, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.files[id]
	if !ok {
		return File{}, fmt.Errorf("file %d: %w", id, ErrNotFound)
	}
	return f.clone(), nil
}

// CreateFile records metadata for a blob already in the blob store and adds
// its size to the owner's usage. Uploads that do not fit the owner's
// remaining allowance fail with a *QuotaError and change nothing.
//
// The blob is unreferenced until CreateFile returns; SweepOrphanBlobs
// removes it if the record does not follow within one sweep interval.
// Upload stores and records in one step.
func (s *Store) CreateFile(nf NewFile) (File, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.createFile(nf)
}

// Upload stores data in the blob store and creates its file record in one
// step. nf.Size is taken from len(data) and a content id is generated when
// nf.ContentID is empty. If the record cannot be created the blob is removed.
func (s *Store) Upload(ctx context.Context, nf NewFile, data []byte) (File, error) {
	nf.Size = int64(len(data))
	if nf.ContentID == "" {
		nf.ContentID = uuid.NewString()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.admit(nf); err != nil {
		return File{}, fmt.Errorf("upload: %w", err)
	}
	if err := s.blobs.Put(ctx, nf.ContentID, data); err != nil {
		return File{}, fmt.Errorf("upload: store blob: %w", err)
	}
	f, err := s.createFile(nf)
	if err != nil {
		if derr := s.blobs.Delete(ctx, nf.ContentID); derr != nil {
			s.log.Warn("remove blob after failed upload", "content_id", nf.ContentID, "error", derr)
		}
		return File{}, fmt.Errorf("upload: %w", err)
	}
	return f, nil
}

// admit validates nf and checks it against the owner's remaining
// allowance. Owners without a user record are not limited.
func (s *Store) admit(nf NewFile) error {
	if _, err := cleanName(nf.Name); err != nil {
		return err
	}
	if nf.Size < 0 {
		return fmt.Errorf("negative file size %d", nf.Size)
	}
	if nf.ContentID == "" {
		return errors.New("content id is required")
	}
	if err := s.checkParent(nf.FolderID, nf.OwnerID); err != nil {
		return err
	}
	if u, ok := s.users[nf.OwnerID]; ok {
		available := u.StorageLimit - s.ledger.Used(nf.OwnerID)
		if nf.Size > available {
			return &QuotaError{Required: nf.Size, Available: available}
		}
	}
	return nil
}

func (s *Store) createFile(nf NewFile) (File, error) {
	if err := s.admit(nf); err != nil {
		return File{}, fmt.Errorf("create file: %w", err)
	}
	name, _ := cleanName(nf.Name)
	now := s.now()
	f := File{
		ID:           s.ids.Next(KindFile),
		Name:         name,
		MimeType:     nf.MimeType,
		Size:         nf.Size,
		FolderID:     clonePtr(nf.FolderID),
		OwnerID:      nf.OwnerID,
		ContentID:    nf.ContentID,
		LastModified: now,
		CreatedAt:    now,
	}
	s.files[f.ID] = f
	s.ledger.SetUsed(f.OwnerID, s.ledger.Used(f.OwnerID)+f.Size, now)
	return f.clone(), nil
}

// UpdateFile renames a file and, when upd.Move is set, moves it. The target
// folder must exist and belong to the file's owner. Size and quota are
// never touched; LastModified is always refreshed.
func (s *Store) UpdateFile(id int64, upd FileUpdate) (File, error) {
	name, err := cleanName(upd.Name)
	if err != nil {
		return File{}, fmt.Errorf("update file: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	f, ok := s.files[id]
	if !ok {
		return File{}, fmt.Errorf("file %d: %w", id, ErrNotFound)
	}
	if upd.Move {
		if err := s.checkParent(upd.FolderID, f.OwnerID); err != nil {
			return File{}, fmt.Errorf("update file: %w", err)
		}
		f.FolderID = clonePtr(upd.FolderID)
	}
	f.Name = name
	f.LastModified = s.now()
	s.files[id] = f
	return f.clone(), nil
}

// DeleteFile removes a file record, returns its bytes to the owner's
// allowance and deletes its blob. A failing blob delete is logged; the
// orphan is left for SweepOrphanBlobs.
func (s *Store) DeleteFile(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, ok := s.files[id]
	if !ok {
		return fmt.Errorf("file %d: %w", id, ErrNotFound)
	}
	s.releaseFile(f)
	if err := s.blobs.Delete(ctx, f.ContentID); err != nil {
		s.log.Warn("delete blob", "file_id", f.ID, "content_id", f.ContentID, "error", err)
	}
	return nil
}

// releaseFile drops the record and decrements usage, clamped at zero.
func (s *Store) releaseFile(f File) {
	used := s.ledger.Used(f.OwnerID) - f.Size
	if used < 0 {
		used = 0
	}
	s.ledger.SetUsed(f.OwnerID, used, s.now())
	delete(s.files, f.ID)
}

// Content returns a file's metadata together with its payload.
func (s *Store) Content(ctx context.Context, id int64) (File, []byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, ok := s.files[id]
	if !ok {
		return File{}, nil, fmt.Errorf("file %d: %w", id, ErrNotFound)
	}
	data, err := s.blobs.Get(ctx, f.ContentID)
	if err != nil {
		return f.clone(), nil, fmt.Errorf("file %d content: %w", id, err)
	}
	return f.clone(), data, nil
}

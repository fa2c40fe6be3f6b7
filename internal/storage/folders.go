package storage

import (
	"context"
	"fmt"
	"sort"
)

// Folders returns ownerID's folders whose parent is parentID. A nil
// parentID lists the root level only, not every folder.
func (s *Store) Folders(ownerID int64, parentID *int64) []Folder {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := []Folder{}
	for _, f := range s.folders {
		if f.OwnerID == ownerID && sameRef(f.ParentID, parentID) {
			out = append(out, f.clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *Store) Folder(id int64) (Folder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.folders[id]
	if !ok {
		return Folder{}, fmt.Errorf("folder %d: %w", id, ErrNotFound)
	}
	return f.clone(), nil
}

// CreateFolder adds a folder under nf.ParentID (root when nil). The parent
// must exist and belong to the same owner.
func (s *Store) CreateFolder(nf NewFolder) (Folder, error) {
	name, err := cleanName(nf.Name)
	if err != nil {
		return Folder{}, fmt.Errorf("create folder: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkParent(nf.ParentID, nf.OwnerID); err != nil {
		return Folder{}, fmt.Errorf("create folder: %w", err)
	}
	f := Folder{
		ID:        s.ids.Next(KindFolder),
		Name:      name,
		ParentID:  clonePtr(nf.ParentID),
		OwnerID:   nf.OwnerID,
		CreatedAt: s.now(),
	}
	s.folders[f.ID] = f
	return f.clone(), nil
}

func (s *Store) RenameFolder(id int64, name string) (Folder, error) {
	name, err := cleanName(name)
	if err != nil {
		return Folder{}, fmt.Errorf("rename folder: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	f, ok := s.folders[id]
	if !ok {
		return Folder{}, fmt.Errorf("folder %d: %w", id, ErrNotFound)
	}
	f.Name = name
	s.folders[id] = f
	return f.clone(), nil
}

// MoveFolder re-parents a folder (to the root when parentID is nil). Moving
// a folder into itself or one of its descendants fails with ErrCycle.
func (s *Store) MoveFolder(id int64, parentID *int64) (Folder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, ok := s.folders[id]
	if !ok {
		return Folder{}, fmt.Errorf("folder %d: %w", id, ErrNotFound)
	}
	if err := s.checkParent(parentID, f.OwnerID); err != nil {
		return Folder{}, fmt.Errorf("move folder: %w", err)
	}
	for cur := parentID; cur != nil; {
		if *cur == id {
			return Folder{}, fmt.Errorf("move folder %d: %w", id, ErrCycle)
		}
		cur = s.folders[*cur].ParentID
	}
	f.ParentID = clonePtr(parentID)
	s.folders[id] = f
	return f.clone(), nil
}

// DeleteFolder removes a folder, every descendant folder and every file
// inside any of them.
//
// The subtree is collected before anything is removed, and metadata removal
// cannot fail, so the tree is never left half-deleted. Blob deletions come
// last; a failing blob delete is logged and counted, and the orphaned blob is
// left for SweepOrphanBlobs.
func (s *Store) DeleteFolder(ctx context.Context, id int64) (DeleteSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.folders[id]; !ok {
		return DeleteSummary{}, fmt.Errorf("folder %d: %w", id, ErrNotFound)
	}

	doomed := s.subtree(id)
	var files []File
	for _, f := range s.files {
		if f.FolderID == nil {
			continue
		}
		if _, ok := doomed[*f.FolderID]; ok {
			files = append(files, f)
		}
	}
	sort.Slice(files, func(i, j int) bool { return files[i].ID < files[j].ID })

	var sum DeleteSummary
	for _, f := range files {
		s.releaseFile(f)
		sum.Files++
		sum.FreedBytes += f.Size
	}
	for fid := range doomed {
		delete(s.folders, fid)
		sum.Folders++
	}
	for _, f := range files {
		if err := s.blobs.Delete(ctx, f.ContentID); err != nil {
			sum.BlobErrors++
			s.log.Warn("delete blob during folder delete",
				"folder_id", id, "file_id", f.ID, "content_id", f.ContentID, "error", err)
		}
	}
	return sum, nil
}

// subtree returns id and the ids of all its descendant folders.
func (s *Store) subtree(id int64) map[int64]struct{} {
	children := make(map[int64][]int64)
	for _, f := range s.folders {
		if f.ParentID != nil {
			children[*f.ParentID] = append(children[*f.ParentID], f.ID)
		}
	}

	out := map[int64]struct{}{id: {}}
	queue := []int64{id}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, c := range children[cur] {
			if _, seen := out[c]; seen {
				continue
			}
			out[c] = struct{}{}
			queue = append(queue, c)
		}
	}
	return out
}

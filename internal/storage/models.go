// internal/storage/models.go
package storage

import "time"

// DefaultStorageLimit is the quota granted to users created without an
// explicit limit (3 TiB).
const DefaultStorageLimit int64 = 3 * 1024 * 1024 * 1024 * 1024

type User struct {
	ID           int64     `json:"id"`
	StorageLimit int64     `json:"storage_limit"`
	CreatedAt    time.Time `json:"created_at"`
}

// Folder is a node in an owner's folder forest. A nil ParentID marks a
// root-level folder.
type Folder struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	ParentID  *int64    `json:"parent_id"`
	OwnerID   int64     `json:"owner_id"`
	CreatedAt time.Time `json:"created_at"`
}

// File is the metadata of an uploaded file. The payload lives in the blob
// store under ContentID and is owned exclusively by this record.
type File struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	MimeType     string    `json:"mime_type"`
	Size         int64     `json:"size"`
	FolderID     *int64    `json:"folder_id"`
	OwnerID      int64     `json:"owner_id"`
	ContentID    string    `json:"-"`
	LastModified time.Time `json:"last_modified"`
	CreatedAt    time.Time `json:"created_at"`
}

type QuotaRecord struct {
	ID          int64     `json:"id"`
	OwnerID     int64     `json:"owner_id"`
	UsedBytes   int64     `json:"used_bytes"`
	LastUpdated time.Time `json:"last_updated"`
}

// NewFolder holds the caller-supplied fields of a folder to create.
type NewFolder struct {
	Name     string
	ParentID *int64
	OwnerID  int64
}

// NewFile holds the caller-supplied fields of a file to create.
type NewFile struct {
	Name      string
	MimeType  string
	Size      int64
	FolderID  *int64
	OwnerID   int64
	ContentID string
}

// FileUpdate renames a file and optionally moves it. When Move is false the
// folder is left unchanged; when Move is true a nil FolderID moves the file
// to the root.
type FileUpdate struct {
	Name     string
	Move     bool
	FolderID *int64
}

// DeleteSummary reports what a cascading folder delete removed.
type DeleteSummary struct {
	Folders    int   `json:"folders"`
	Files      int   `json:"files"`
	FreedBytes int64 `json:"freed_bytes"`
	BlobErrors int   `json:"blob_errors"`
}

// QuotaCorrection describes a ledger entry that drifted from the sum of the
// owner's live files.
type QuotaCorrection struct {
	OwnerID  int64 `json:"owner_id"`
	Recorded int64 `json:"recorded"`
	Actual   int64 `json:"actual"`
}

func clonePtr(p *int64) *int64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func sameRef(a, b *int64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func (f Folder) clone() Folder {
	f.ParentID = clonePtr(f.ParentID)
	return f
}

func (f File) clone() File {
	f.FolderID = clonePtr(f.FolderID)
	return f
}

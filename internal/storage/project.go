package storage

import "time"

// isoLayout matches JavaScript's Date.toISOString.
const isoLayout = "2006-01-02T15:04:05.000Z"

type FileResponse struct {
	ID           int64  `json:"id"`
	Name         string `json:"name"`
	Type         string `json:"type"`
	SizeInBytes  int64  `json:"sizeInBytes"`
	FolderID     *int64 `json:"folderId"`
	LastModified string `json:"lastModified"`
	CreatedAt    string `json:"createdAt"`
}

type FolderResponse struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	ParentID  *int64 `json:"parentId"`
	FileCount int    `json:"fileCount"`
	TotalSize int64  `json:"totalSize"`
}

type StorageResponse struct {
	UsedBytes   int64   `json:"usedBytes"`
	TotalBytes  int64   `json:"totalBytes"`
	PercentUsed float64 `json:"percentUsed"`
}

func formatTime(t time.Time) string {
	return t.UTC().Format(isoLayout)
}

func FileResponseFor(f File) FileResponse {
	return FileResponse{
		ID:           f.ID,
		Name:         f.Name,
		Type:         f.MimeType,
		SizeInBytes:  f.Size,
		FolderID:     clonePtr(f.FolderID),
		LastModified: formatTime(f.LastModified),
		CreatedAt:    formatTime(f.CreatedAt),
	}
}

// FileResponses projects every file in files.
func FileResponses(files []File) []FileResponse {
	out := make([]FileResponse, len(files))
	for i, f := range files {
		out[i] = FileResponseFor(f)
	}
	return out
}

// FolderResponseFor aggregates exactly the files passed in. Callers pass the
// folder's direct files; nested folders are not counted.
func FolderResponseFor(folder Folder, files []File) FolderResponse {
	var total int64
	for _, f := range files {
		total += f.Size
	}
	return FolderResponse{
		ID:        folder.ID,
		Name:      folder.Name,
		ParentID:  clonePtr(folder.ParentID),
		FileCount: len(files),
		TotalSize: total,
	}
}

func StorageResponseFor(rec QuotaRecord, u User) StorageResponse {
	return StorageResponse{
		UsedBytes:   rec.UsedBytes,
		TotalBytes:  u.StorageLimit,
		PercentUsed: PercentUsed(rec.UsedBytes, u.StorageLimit),
	}
}

package models

import "time"

// FileRecord describes one uploaded blob. Everything except DownloadCount is
// fixed at creation.
type FileRecord struct {
	Token         string    `json:"token"`
	OriginalName  string    `json:"original_filename"`
	StoredPath    string    `json:"stored_path"`
	SizeBytes     int64     `json:"size"`
	UploadedAt    time.Time `json:"upload_date"`
	DownloadCount int64     `json:"download_count"`
}

func (f *FileRecord) Clone() *FileRecord {
	c := *f
	return &c
}

// SecretRecord holds the operator password as an encoded argon2id hash.
type SecretRecord struct {
	Hash      string    `json:"hash"`
	UpdatedAt time.Time `json:"updated_at"`
}

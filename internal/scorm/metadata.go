package scorm

import "time"

// PackageMetadata is the per-block record of the last ingestion.
type PackageMetadata struct {
	DisplayName      string    `json:"display_name" dynamodbav:"display_name"`
	ContentHash      string    `json:"content_hash,omitempty" dynamodbav:"content_hash,omitempty"`
	OriginalFileName string    `json:"original_file_name,omitempty" dynamodbav:"original_file_name,omitempty"`
	FileExtension    string    `json:"file_extension,omitempty" dynamodbav:"file_extension,omitempty"`
	StoragePath      string    `json:"storage_path,omitempty" dynamodbav:"storage_path,omitempty"`
	EntryPath        string    `json:"entry_path,omitempty" dynamodbav:"entry_path,omitempty"`
	LastUpdated      time.Time `json:"last_updated" dynamodbav:"last_updated"`
	PublicBaseURL    string    `json:"public_base_url,omitempty" dynamodbav:"public_base_url,omitempty"`
}

// Ingested reports whether a package was ever successfully unpacked.
func (m PackageMetadata) Ingested() bool { return m.PublicBaseURL != "" }

// Descriptor is what read clients get: when the archive last changed and
// where to download it.
type Descriptor struct {
	LastModified time.Time `json:"last_modified"`
	ScormData    string    `json:"scorm_data"`
}

package utils

import (
	"fmt"
	"mime/multipart"
	"path/filepath"
	"strings"
)

const (
	// MaxAttachmentSize is 10MB in bytes
	MaxAttachmentSize = 10 * 1024 * 1024
)

// allowedAttachmentTypes maps permitted file extensions to their MIME types.
var allowedAttachmentTypes = map[string]string{
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
}

// AttachmentError represents an attachment validation error
type AttachmentError struct {
	Code    string
	Message string
}

func (e *AttachmentError) Error() string {
	return e.Message
}

// ValidateAttachmentFile validates the uploaded attachment's format and size
func ValidateAttachmentFile(fileHeader *multipart.FileHeader) error {
	if fileHeader.Size > MaxAttachmentSize {
		return &AttachmentError{
			Code:    "FILE_TOO_LARGE",
			Message: fmt.Sprintf("File size exceeds maximum allowed size of %d MB", MaxAttachmentSize/(1024*1024)),
		}
	}

	ext := strings.ToLower(filepath.Ext(fileHeader.Filename))
	if _, ok := allowedAttachmentTypes[ext]; !ok {
		return &AttachmentError{
			Code:    "INVALID_FILE_FORMAT",
			Message: "Only PNG and JPEG files are allowed",
		}
	}

	return nil
}

// AttachmentContentType returns the MIME type for an attachment filename.
// Unknown extensions fall back to application/octet-stream.
func AttachmentContentType(filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	if contentType, ok := allowedAttachmentTypes[ext]; ok {
		return contentType
	}
	return "application/octet-stream"
}

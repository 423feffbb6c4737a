package models

import "io"

// FileUpload is a single file part taken from a multipart request.
type FileUpload struct {
	Filename    string
	ContentType string
	Size        int64
	Body        io.Reader
}

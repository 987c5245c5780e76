package fmrest

import (
	"bytes"

	"github.com/google/uuid"
)

// uploadFieldName is the form field the Data API reads container data from.
const uploadFieldName = "upload"

// newBoundary returns a fresh multipart boundary. Replaced in tests.
var newBoundary = func() string {
	return "Boundary-" + uuid.NewString()
}

// ContainerFile is a file to upload into a container field.
type ContainerFile struct {
	FileName string
	MimeType string
	Data     []byte
}

// EncodeMultipart renders a single-part multipart/form-data body for file.
//
// The layout is fixed: one part named "upload", CRLF line endings, and no
// trailing CRLF after the closing boundary.
func EncodeMultipart(file ContainerFile, boundary string) []byte {
	var buf bytes.Buffer
	buf.Grow(len(file.Data) + len(file.FileName) + len(file.MimeType) + 2*len(boundary) + 112)

	buf.WriteString("--" + boundary + "\r\n")
	buf.WriteString(`Content-Disposition: form-data; name="` + uploadFieldName + `"; filename="` + file.FileName + "\"\r\n")
	buf.WriteString("Content-Type: " + file.MimeType + "\r\n\r\n")
	buf.Write(file.Data)
	buf.WriteString("\r\n")
	buf.WriteString("--" + boundary + "--")
	return buf.Bytes()
}

// MultipartContentType is the Content-Type value for a body built with boundary.
func MultipartContentType(boundary string) string {
	return "multipart/form-data; boundary=" + boundary
}

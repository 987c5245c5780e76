package fmrest

import (
	"strings"
	"testing"
)

func TestEncodeMultipartExactBytes(t *testing.T) {
	file := ContainerFile{FileName: "a.png", MimeType: "image/png", Data: []byte("PNG")}
	got := string(EncodeMultipart(file, "B1"))
	want := "--B1\r\n" +
		"Content-Disposition: form-data; name=\"upload\"; filename=\"a.png\"\r\n" +
		"Content-Type: image/png\r\n\r\n" +
		"PNG\r\n" +
		"--B1--"
	if got != want {
		t.Errorf("EncodeMultipart() =\n%q\nwant\n%q", got, want)
	}
}

func TestEncodeMultipartEmptyData(t *testing.T) {
	got := string(EncodeMultipart(ContainerFile{FileName: "e", MimeType: "text/plain"}, "X"))
	if !strings.Contains(got, "\r\n\r\n\r\n--X--") {
		t.Errorf("empty payload should leave blank data line, got %q", got)
	}
}

func TestNewBoundaryIsUnique(t *testing.T) {
	a, b := newBoundary(), newBoundary()
	if a == b {
		t.Errorf("boundaries should differ, both %q", a)
	}
	if !strings.HasPrefix(a, "Boundary-") {
		t.Errorf("boundary %q missing prefix", a)
	}
}

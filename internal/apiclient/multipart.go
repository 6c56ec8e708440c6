package apiclient

import (
	"bytes"
	"fmt"
	"io"
	"mime/multipart"
	"net/textproto"
	"strings"

	"github.com/openkcm/session-client/internal/serviceerr"
)

// File is a multipart upload, e.g. a profile picture.
type File struct {
	// Field is the form field name; empty means the client default.
	Field       string
	Name        string
	ContentType string
	Content     io.Reader
	// Fields are sent as additional form values.
	Fields map[string]string
}

func (c *Client) encodeMultipart(f *File) (io.Reader, string, error) {
	if f.Content == nil {
		return nil, "", serviceerr.Validation("No file selected")
	}

	field := f.Field
	if field == "" {
		field = c.uploadField
	}

	name := f.Name
	if name == "" {
		name = "upload"
	}

	contentType := f.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	for k, v := range f.Fields {
		if err := w.WriteField(k, v); err != nil {
			return nil, "", serviceerr.New(serviceerr.KindValidation, "Invalid upload", err)
		}
	}

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`, escapeQuotes(field), escapeQuotes(name)))
	h.Set("Content-Type", contentType)

	part, err := w.CreatePart(h)
	if err != nil {
		return nil, "", serviceerr.New(serviceerr.KindValidation, "Invalid upload", err)
	}

	if _, err := io.Copy(part, f.Content); err != nil {
		return nil, "", serviceerr.New(serviceerr.KindValidation, "Could not read the file", err)
	}

	if err := w.Close(); err != nil {
		return nil, "", serviceerr.New(serviceerr.KindValidation, "Invalid upload", err)
	}

	return &buf, w.FormDataContentType(), nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(s string) string {
	return quoteEscaper.Replace(s)
}

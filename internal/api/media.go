package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"os"
	"path/filepath"

	"snapshoot-sync/internal/domain/media"
)

// UploadMedia sends the file at up.LocalPath as multipart field "file".
func (c *Client) UploadMedia(ctx context.Context, up media.Upload) (media.Uploaded, error) {
	f, err := os.Open(up.LocalPath)
	if err != nil {
		return media.Uploaded{}, fmt.Errorf("opening %s: %w", up.LocalPath, err)
	}
	defer f.Close()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	hdr := make(textproto.MIMEHeader)
	hdr.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, filepath.Base(up.LocalPath)))
	hdr.Set("Content-Type", media.ContentType(up.LocalPath, up.Kind))
	part, err := w.CreatePart(hdr)
	if err != nil {
		return media.Uploaded{}, fmt.Errorf("creating form file: %w", err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return media.Uploaded{}, fmt.Errorf("copying %s: %w", up.LocalPath, err)
	}
	if up.Kind != "" {
		if err := w.WriteField("type", up.Kind.APIName()); err != nil {
			return media.Uploaded{}, err
		}
	}
	if up.Coordinates != nil {
		coords, err := json.Marshal(up.Coordinates.Point())
		if err != nil {
			return media.Uploaded{}, err
		}
		if err := w.WriteField("coordinates", string(coords)); err != nil {
			return media.Uploaded{}, err
		}
	}
	if err := w.Close(); err != nil {
		return media.Uploaded{}, fmt.Errorf("closing form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/media/upload", &buf)
	if err != nil {
		return media.Uploaded{}, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set("Accept", "application/json")

	var out media.Uploaded
	if err := c.do(req, &out); err != nil {
		return media.Uploaded{}, err
	}
	return out, nil
}

func (c *Client) DeleteMedia(ctx context.Context, id string) error {
	return c.call(ctx, http.MethodDelete, "/media/"+url.PathEscape(id), nil, nil)
}

package offline

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strconv"
	"time"
)

// HTTPSubmitter replays queued items against the live manifestation
// endpoint using the same multipart form a direct submission sends.
type HTTPSubmitter struct {
	endpoint string
	client   *http.Client
}

// NewHTTPSubmitter targets the full submission URL, e.g.
// "https://host/api/v1/manifestations".
func NewHTTPSubmitter(endpoint string) *HTTPSubmitter {
	return &HTTPSubmitter{
		endpoint: endpoint,
		client:   &http.Client{Timeout: 2 * time.Minute},
	}
}

// Submit posts one item. Only a 2xx response counts as acknowledged.
func (s *HTTPSubmitter) Submit(ctx context.Context, item Item) error {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	if err := w.WriteField("text", item.Text); err != nil {
		return fmt.Errorf("write text field: %w", err)
	}
	if err := w.WriteField("type", item.Type); err != nil {
		return fmt.Errorf("write type field: %w", err)
	}
	if err := w.WriteField("isAnonymous", strconv.FormatBool(item.IsAnonymous)); err != nil {
		return fmt.Errorf("write isAnonymous field: %w", err)
	}

	for i, blob := range item.Media {
		name := blob.Name
		if name == "" {
			name = fmt.Sprintf("media-%d", i)
		}
		// The server derives has_audio/has_video/image_count from part
		// content types, so the stored MIME must survive the replay.
		header := make(textproto.MIMEHeader)
		header.Set("Content-Disposition",
			fmt.Sprintf(`form-data; name="files"; filename=%q`, name))
		if blob.MIME != "" {
			header.Set("Content-Type", blob.MIME)
		}
		part, err := w.CreatePart(header)
		if err != nil {
			return fmt.Errorf("create file part: %w", err)
		}
		if _, err := part.Write(blob.Data); err != nil {
			return fmt.Errorf("write file part: %w", err)
		}
	}

	if err := w.Close(); err != nil {
		return fmt.Errorf("finish multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, &buf)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("post manifestation: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("server rejected replay: status %d", resp.StatusCode)
	}
	return nil
}

package aulasdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/aussiebroadwan/aula/pkg/metrics"
)

// payload is a fully buffered request body. Keeping the bytes lets a request
// be replayed after a token refresh with exactly what was sent the first time.
type payload struct {
	body        []byte
	contentType string
}

func (p payload) reader() io.Reader {
	if p.body == nil {
		return nil
	}
	return bytes.NewReader(p.body)
}

func jsonPayload(v any) (payload, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return payload{}, fmt.Errorf("failed to encode request: %w", err)
	}
	return payload{body: b, contentType: "application/json"}, nil
}

// multipartPayload buffers a multipart/form-data body with text fields and
// one file part.
func multipartPayload(fields map[string]string, fileField, fileName string, file io.Reader) (payload, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	for name, value := range fields {
		if err := mw.WriteField(name, value); err != nil {
			return payload{}, fmt.Errorf("failed to write field %q: %w", name, err)
		}
	}

	part, err := mw.CreateFormFile(fileField, fileName)
	if err != nil {
		return payload{}, fmt.Errorf("failed to create file part: %w", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return payload{}, fmt.Errorf("failed to read file: %w", err)
	}
	if err := mw.Close(); err != nil {
		return payload{}, fmt.Errorf("failed to finish multipart body: %w", err)
	}

	return payload{body: buf.Bytes(), contentType: mw.FormDataContentType()}, nil
}

// url builds a complete URL by appending the path to the base URL.
func (c *SDKClient) url(path string) string {
	return c.BaseURL + path
}

// doRequest performs an HTTP request with the SDKClient's HTTP client. The
// Authorization header is only set when token is non-empty.
func (c *SDKClient) doRequest(
	ctx context.Context,
	method, path string,
	body payload,
	token string,
) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.url(path), body.reader())
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	if body.contentType != "" {
		req.Header.Set("Content-Type", body.contentType)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.HTTPClient.Do(req)
	metrics.APIRequestDuration.WithLabelValues(method).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.APIRequestsTotal.WithLabelValues(method, "error").Inc()
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	metrics.APIRequestsTotal.WithLabelValues(method, strconv.Itoa(resp.StatusCode)).Inc()

	return resp, nil
}

// decodeJSON decodes a 2xx response into target. A nil target or an empty
// body skips decoding. Non-2xx responses become an *APIError.
func decodeJSON(resp *http.Response, target any) error {
	defer resp.Body.Close()

	// Read body once for both error parsing and success decoding
	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return parseErrorResponse(resp, bodyBytes)
	}

	if target == nil || len(bytes.TrimSpace(bodyBytes)) == 0 {
		return nil
	}

	if err := json.Unmarshal(bodyBytes, target); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return nil
}

// drain discards and closes a response body so the connection can be reused.
func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	_ = resp.Body.Close()
}

func escape(id string) string {
	return url.PathEscape(id)
}

// byCourse adds the ?curso= filter used by the course-scoped listings.
func byCourse(path, courseID string) string {
	return path + "?" + url.Values{"curso": {courseID}}.Encode()
}

// ============================================================================
// Session request helpers
// ============================================================================

// getJSON performs an authenticated GET and decodes the reply into out.
func (s *Session) getJSON(ctx context.Context, path string, out any) error {
	resp, err := s.doAuthRequest(ctx, http.MethodGet, path, payload{})
	if err != nil {
		return err
	}
	return decodeJSON(resp, out)
}

// sendJSON validates in (when non-nil), sends it as JSON and decodes the
// reply into out.
func (s *Session) sendJSON(ctx context.Context, method, path string, in, out any) error {
	body := payload{}
	if in != nil {
		if err := validateRequest(in); err != nil {
			return err
		}
		var err error
		if body, err = jsonPayload(in); err != nil {
			return err
		}
	}

	resp, err := s.doAuthRequest(ctx, method, path, body)
	if err != nil {
		return err
	}
	return decodeJSON(resp, out)
}

// Package backend talks to the video-processing and embedding-search
// service over its JSON/multipart REST surface.
package backend

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
	"strings"
	"time"
)

const (
	DefaultTopK          = 5
	maxErrorMessageBytes = 1024
)

type Config struct {
	BaseURL string
	APIKey  string
	// Timeout bounds each request; zero leaves requests bounded only by ctx.
	Timeout time.Duration
}

type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func New(cfg Config) *Client {
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

// Query is a search request. A nil VideoID searches every video.
type Query struct {
	Text    string
	Kind    Kind
	VideoID *string
	TopK    int
}

// Search runs a ranked search. The caller guards against empty queries.
func (c *Client) Search(ctx context.Context, q Query) ([]SearchResult, error) {
	topK := q.TopK
	if topK <= 0 {
		topK = DefaultTopK
	}
	body, err := json.Marshal(searchRequest{Query: q.Text, VideoID: q.VideoID, TopK: topK})
	if err != nil {
		return nil, malformedError(OpSearch, fmt.Errorf("marshal request: %w", err))
	}

	req, err := c.newRequest(ctx, http.MethodPost, q.Kind.endpoint(), bytes.NewReader(body))
	if err != nil {
		return nil, transportError(OpSearch, err)
	}
	req.Header.Set("Content-Type", "application/json")

	var resp searchResponse
	if err := c.do(req, OpSearch, &resp); err != nil {
		return nil, err
	}
	if resp.Results == nil {
		return []SearchResult{}, nil
	}
	return resp.Results, nil
}

// Upload sends a single file as the multipart field "file".
func (c *Client) Upload(ctx context.Context, filename, contentType string, r io.Reader) (VideoDescriptor, error) {
	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)

	go func() {
		header := make(textproto.MIMEHeader)
		header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, escapeQuotes(filename)))
		if contentType != "" {
			header.Set("Content-Type", contentType)
		}
		part, err := mw.CreatePart(header)
		if err != nil {
			_ = pw.CloseWithError(err)
			return
		}
		if _, err := io.Copy(part, r); err != nil {
			_ = pw.CloseWithError(err)
			return
		}
		_ = pw.CloseWithError(mw.Close())
	}()

	req, err := c.newRequest(ctx, http.MethodPost, "/upload-video", pr)
	if err != nil {
		_ = pr.CloseWithError(err)
		return VideoDescriptor{}, transportError(OpUpload, err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	var desc VideoDescriptor
	if err := c.do(req, OpUpload, &desc); err != nil {
		_ = pr.CloseWithError(err)
		return VideoDescriptor{}, err
	}
	if desc.VideoID == "" {
		return VideoDescriptor{}, malformedError(OpUpload, fmt.Errorf("response has no video_id"))
	}
	return desc, nil
}

// ListVideos fetches the full catalog.
func (c *Client) ListVideos(ctx context.Context) ([]VideoDescriptor, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/videos", nil)
	if err != nil {
		return nil, transportError(OpList, err)
	}
	var list videoList
	if err := c.do(req, OpList, &list); err != nil {
		return nil, err
	}
	if list == nil {
		return []VideoDescriptor{}, nil
	}
	return list, nil
}

// DeleteVideo removes a video. The response body is ignored.
func (c *Client) DeleteVideo(ctx context.Context, videoID string) error {
	req, err := c.newRequest(ctx, http.MethodDelete, "/videos/"+url.PathEscape(videoID), nil)
	if err != nil {
		return transportError(OpDelete, err)
	}
	return c.do(req, OpDelete, nil)
}

// StreamURL is the address the browser's media element plays from.
func (c *Client) StreamURL(videoID string) string {
	return c.baseURL + "/videos/" + url.PathEscape(videoID) + "/stream"
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	return req, nil
}

func (c *Client) do(req *http.Request, op Op, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return transportError(op, fmt.Errorf("send request: %w", err))
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorMessageBytes))
		return statusError(op, resp.StatusCode, errorMessage(raw))
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return transportError(op, fmt.Errorf("read response: %w", err))
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return malformedError(op, fmt.Errorf("unmarshal response: %w", err))
	}
	return nil
}

// errorMessage extracts a readable message from an error body. FastAPI
// style {"detail": ...} and {"error": ...} bodies are unwrapped.
func errorMessage(raw []byte) string {
	var body struct {
		Detail  any    `json:"detail"`
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &body); err == nil {
		if s, ok := body.Detail.(string); ok && s != "" {
			return s
		}
		if body.Error != "" {
			return body.Error
		}
		if body.Message != "" {
			return body.Message
		}
	}
	return strings.TrimSpace(string(raw))
}

func escapeQuotes(s string) string {
	return strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(s)
}

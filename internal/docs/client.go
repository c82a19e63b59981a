// Package docs is the client for the document/RAG collaborator: upload,
// listing, bulk delete, and the ad-hoc retrieval probe. These endpoints
// are independent of the streaming session.
package docs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client calls the document REST endpoints.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a client for the backend at baseURL.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 60 * time.Second},
	}
}

// File is one document to upload.
type File struct {
	Name    string
	Content []byte
}

// FileResult reports the outcome for one uploaded file.
type FileResult struct {
	Filename      string `json:"filename"`
	Status        string `json:"status"`
	Message       string `json:"message"`
	ChunksCreated int    `json:"chunks_created,omitempty"`
}

// UploadResult is the upload endpoint response.
type UploadResult struct {
	Message     string       `json:"message"`
	Results     []FileResult `json:"results"`
	UserID      string       `json:"user_id"`
	TotalChunks int          `json:"total_chunks"`
}

// Statistics describes a user's stored documents.
type Statistics struct {
	TotalDocuments int      `json:"total_documents"`
	TotalChunks    int      `json:"total_chunks"`
	Files          []string `json:"files"`
	FileCount      int      `json:"file_count"`
}

// DocumentsInfo is the document listing response.
type DocumentsInfo struct {
	UserID     string     `json:"user_id"`
	Statistics Statistics `json:"statistics"`
}

// RAGProbe is the retrieval probe response.
type RAGProbe struct {
	UseRAG             bool   `json:"use_rag"`
	RetrievedDocuments int    `json:"retrieved_documents"`
	ContextLength      int    `json:"context_length"`
	Preview            string `json:"preview"`
}

// Upload sends documents for ingestion as a multipart form.
func (c *Client) Upload(ctx context.Context, userID string, files []File) (*UploadResult, error) {
	if len(files) == 0 {
		return nil, fmt.Errorf("no files to upload")
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for _, f := range files {
		part, err := mw.CreateFormFile("files", f.Name)
		if err != nil {
			return nil, fmt.Errorf("create form file %s: %w", f.Name, err)
		}
		if _, err := part.Write(f.Content); err != nil {
			return nil, fmt.Errorf("write form file %s: %w", f.Name, err)
		}
	}
	if err := mw.WriteField("user_id", userID); err != nil {
		return nil, fmt.Errorf("write user_id field: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("finalize multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/upload", &body)
	if err != nil {
		return nil, fmt.Errorf("build upload request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	var out UploadResult
	if err := c.do(req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Documents lists a user's stored documents.
func (c *Client) Documents(ctx context.Context, userID string) (*DocumentsInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/api/documents/"+url.PathEscape(userID), nil)
	if err != nil {
		return nil, fmt.Errorf("build documents request: %w", err)
	}

	var out DocumentsInfo
	if err := c.do(req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteAll removes all documents for a user.
func (c *Client) DeleteAll(ctx context.Context, userID string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete,
		c.baseURL+"/api/documents/"+url.PathEscape(userID), nil)
	if err != nil {
		return fmt.Errorf("build delete request: %w", err)
	}
	return c.do(req, nil)
}

// ProbeRAG asks whether retrieval would engage for a query and what it
// would fetch.
func (c *Client) ProbeRAG(ctx context.Context, query, userID string) (*RAGProbe, error) {
	form := url.Values{}
	form.Set("query", query)
	form.Set("user_id", userID)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/api/test-rag", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("build rag probe request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	var out RAGProbe
	if err := c.do(req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("call %s: %w", req.URL.Path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return fmt.Errorf("%s returned status %d: %s", req.URL.Path, resp.StatusCode, snippet)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", req.URL.Path, err)
	}
	return nil
}

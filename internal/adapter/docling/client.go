package docling

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"time"

	"tessera/backend/internal/partition"
)

// Client partitions documents via a docling-style HTTP service. The service
// converts a file or URL into an ordered list of typed elements.
type Client struct {
	baseURL string
	client  *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 5 * time.Minute},
	}
}

type elementDTO struct {
	Category    string `json:"category"`
	Text        string `json:"text"`
	PageNumber  *int   `json:"page_number,omitempty"`
	TextAsHTML  string `json:"text_as_html,omitempty"`
	ImageBase64 string `json:"image_base64,omitempty"`
}

func (c *Client) Partition(ctx context.Context, req partition.Request) ([]partition.Element, error) {
	var (
		resp *http.Response
		err  error
	)
	if req.URL != "" {
		resp, err = c.partitionURL(ctx, req.URL)
	} else {
		resp, err = c.partitionFile(ctx, req.FilePath, req.FileType)
	}
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("partition service returned %d: %s", resp.StatusCode, body)
	}

	var dtos []elementDTO
	if err := json.NewDecoder(resp.Body).Decode(&dtos); err != nil {
		return nil, fmt.Errorf("decode partition response: %w", err)
	}

	elements := make([]partition.Element, 0, len(dtos))
	for _, d := range dtos {
		elements = append(elements, partition.Element{
			Kind:        mapCategory(d.Category),
			Text:        d.Text,
			Page:        d.PageNumber,
			TableHTML:   d.TextAsHTML,
			ImageBase64: d.ImageBase64,
		})
	}
	return elements, nil
}

func (c *Client) partitionURL(ctx context.Context, url string) (*http.Response, error) {
	body, _ := json.Marshal(map[string]string{"url": url})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/partition/url", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.client.Do(req)
}

func (c *Client) partitionFile(ctx context.Context, path, fileType string) (*http.Response, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open file for partitioning: %w", err)
	}
	defer f.Close()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", "document."+fileType)
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(part, f); err != nil {
		return nil, err
	}
	if err := mw.WriteField("file_type", fileType); err != nil {
		return nil, err
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/partition/file", &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return c.client.Do(req)
}

func mapCategory(category string) partition.Kind {
	switch category {
	case "Table":
		return partition.KindTable
	case "Image":
		return partition.KindImage
	case "Title", "Header":
		return partition.KindTitle
	case "NarrativeText", "Text", "ListItem", "FigureCaption":
		return partition.KindText
	default:
		return partition.KindOther
	}
}

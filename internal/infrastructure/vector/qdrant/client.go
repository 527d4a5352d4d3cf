package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/scc-caselaw-rag/internal/core/domain"
	"github.com/kirillkom/scc-caselaw-rag/internal/core/ports"
)

// Client writes one collection per snapshot version, named
// "<collectionPrefix>_<version>".
type Client struct {
	baseURL          string
	collectionPrefix string
	httpClient       *http.Client
}

func New(baseURL, collectionPrefix string) *Client {
	return &Client{
		baseURL:          strings.TrimRight(baseURL, "/"),
		collectionPrefix: collectionPrefix,
		httpClient:       &http.Client{Timeout: 60 * time.Second},
	}
}

func (c *Client) Backend() string {
	return domain.BackendQdrant
}

func (c *Client) CollectionName(version string) string {
	return c.collectionPrefix + "_" + strings.ToLower(version)
}

// Prepare creates the snapshot collection with cosine distance.
func (c *Client) Prepare(ctx context.Context, version string, dimension int) (string, error) {
	collection := c.CollectionName(version)
	reqBody := map[string]any{
		"vectors": map[string]any{
			"size":     dimension,
			"distance": "Cosine",
		},
	}

	// 409 if the collection already exists (depends on version/config).
	status, err := c.do(ctx, http.MethodPut, "/collections/"+collection, reqBody, nil, "create collection")
	if err != nil && status != http.StatusConflict {
		return "", err
	}
	return collection, nil
}

func (c *Client) Write(ctx context.Context, collection string, chunks []domain.IndexedChunk) error {
	if len(chunks) == 0 {
		return nil
	}

	type point struct {
		ID      string         `json:"id"`
		Vector  []float32      `json:"vector"`
		Payload map[string]any `json:"payload"`
	}

	points := make([]point, 0, len(chunks))
	for _, chunk := range chunks {
		if len(chunk.Embedding) == 0 {
			return fmt.Errorf("chunk %s/%d has no embedding", chunk.CaseNumber, chunk.Offset)
		}
		points = append(points, point{
			ID:     pointID(chunk.CaseNumber, chunk.Offset),
			Vector: chunk.Embedding,
			Payload: map[string]any{
				"case_number":   chunk.CaseNumber,
				"title":         chunk.Case.Title,
				"date":          chunk.Case.Date.String(),
				"citation_text": chunk.Case.CitationText,
				"offset":        chunk.Offset,
				"text":          chunk.Text,
			},
		})
	}

	_, err := c.do(ctx, http.MethodPut, "/collections/"+collection+"/points?wait=true", map[string]any{"points": points}, nil, "upsert")
	return err
}

// Open returns a read-only view over an existing collection.
func (c *Client) Open(collection string) *Collection {
	return &Collection{client: c, name: collection}
}

func (c *Client) Opener() ports.IndexOpener {
	return func(ctx context.Context, manifest domain.SnapshotManifest) (ports.VectorIndex, error) {
		collection := c.Open(manifest.Location)
		if _, err := collection.Count(ctx); err != nil {
			return nil, err
		}
		return collection, nil
	}
}

type Collection struct {
	client *Client
	name   string
}

func (col *Collection) Search(ctx context.Context, queryVector []float32, limit int) ([]domain.RetrievedChunk, error) {
	reqBody := map[string]any{
		"vector":       queryVector,
		"limit":        limit,
		"with_payload": true,
	}

	var searchResp struct {
		Result []struct {
			Score   float64        `json:"score"`
			Payload map[string]any `json:"payload"`
		} `json:"result"`
	}
	if _, err := col.client.do(ctx, http.MethodPost, "/collections/"+col.name+"/points/search", reqBody, &searchResp, "search"); err != nil {
		return nil, err
	}

	out := make([]domain.RetrievedChunk, 0, len(searchResp.Result))
	for _, r := range searchResp.Result {
		caseNumber := getStringPayload(r.Payload, "case_number")
		date, _ := domain.ParseDate(getStringPayload(r.Payload, "date"))
		out = append(out, domain.RetrievedChunk{
			Chunk: domain.Chunk{
				CaseNumber: caseNumber,
				Text:       getStringPayload(r.Payload, "text"),
				Offset:     getIntPayload(r.Payload, "offset"),
			},
			Case: domain.Case{
				CaseNumber:   caseNumber,
				Title:        getStringPayload(r.Payload, "title"),
				Date:         date,
				CitationText: getStringPayload(r.Payload, "citation_text"),
			},
			Score: r.Score,
		})
	}
	return out, nil
}

func (col *Collection) Count(ctx context.Context) (int, error) {
	var countResp struct {
		Result struct {
			Count int `json:"count"`
		} `json:"result"`
	}
	if _, err := col.client.do(ctx, http.MethodPost, "/collections/"+col.name+"/points/count", map[string]any{"exact": true}, &countResp, "count"); err != nil {
		return 0, err
	}
	return countResp.Result.Count, nil
}

func (c *Client) do(ctx context.Context, method, path string, payload any, out any, operation string) (int, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return 0, fmt.Errorf("marshal %s body: %w", operation, err)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("create %s request: %w", operation, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("qdrant %s request: %w", operation, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		if msg := strings.TrimSpace(string(body)); msg != "" {
			return resp.StatusCode, fmt.Errorf("qdrant %s status: %s: %s", operation, resp.Status, msg)
		}
		return resp.StatusCode, fmt.Errorf("qdrant %s status: %s", operation, resp.Status)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, fmt.Errorf("decode %s response: %w", operation, err)
		}
	}
	return resp.StatusCode, nil
}

// pointID is stable per chunk so a rebuilt snapshot overwrites instead of duplicating.
func pointID(caseNumber string, offset int) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(caseNumber+"#"+strconv.Itoa(offset))).String()
}

func getStringPayload(payload map[string]any, key string) string {
	v, ok := payload[key]
	if !ok || v == nil {
		return ""
	}
	s, ok := v.(string)
	if ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}

func getIntPayload(payload map[string]any, key string) int {
	switch v := payload[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	case string:
		n, _ := strconv.Atoi(v)
		return n
	default:
		return 0
	}
}

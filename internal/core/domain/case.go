package domain

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

const DateLayout = "2006-01-02"

// Date is a calendar date serialized as YYYY-MM-DD. The zero value is an unknown date.
type Date struct {
	time.Time
}

func NewDate(year int, month time.Month, day int) Date {
	return Date{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

func ParseDate(raw string) (Date, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Date{}, nil
	}
	if t, err := time.Parse(DateLayout, raw); err == nil {
		return Date{Time: t}, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return Date{}, fmt.Errorf("parse date %q: %w", raw, err)
	}
	return NewDate(t.Year(), t.Month(), t.Day()), nil
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(DateLayout)
}

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(b []byte) error {
	var raw string
	if err := json.Unmarshal(b, &raw); err != nil {
		return fmt.Errorf("decode date: %w", err)
	}
	parsed, err := ParseDate(raw)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Case is the canonical record of one decision. Identity is CaseNumber.
type Case struct {
	CaseNumber   string `json:"case_number"`
	Title        string `json:"title"`
	Date         Date   `json:"date"`
	CitationText string `json:"citation_text"`
}

type Chunk struct {
	CaseNumber string    `json:"case_number"`
	Text       string    `json:"text"`
	Embedding  []float32 `json:"embedding,omitempty"`
	Offset     int       `json:"offset"`
}

// IndexedChunk is what the index builder writes: a chunk with the metadata of its case.
type IndexedChunk struct {
	Chunk
	Case Case `json:"case"`
}

type RetrievedChunk struct {
	Chunk
	Case  Case    `json:"case"`
	Score float64 `json:"score"`
}

type ContextEntry struct {
	CaseNumber string `json:"case_number"`
	Title      string `json:"title"`
	Date       Date   `json:"date"`
}

type Citation struct {
	CaseNumber   string  `json:"case_number"`
	Title        string  `json:"title"`
	Date         Date    `json:"date"`
	CitationText string  `json:"citation_text"`
	Score        float64 `json:"score"`
	Mention      string  `json:"mention,omitempty"`
}

type QueryResult struct {
	Answer        string         `json:"answer"`
	Citations     []Citation     `json:"citations"`
	Context       []ContextEntry `json:"context"`
	RetrievalTime float64        `json:"retrieval_time"`
	TotalTime     float64        `json:"total_time"`
	Error         string         `json:"error,omitempty"`
}

// NewQueryResult returns a result with non-nil slices so it always serializes as arrays.
func NewQueryResult() QueryResult {
	return QueryResult{
		Citations: []Citation{},
		Context:   []ContextEntry{},
	}
}

// SourceDocument is one case file handed to the index builder.
type SourceDocument struct {
	Case Case   `json:"case"`
	Path string `json:"path"`
}

package docluster

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/goccy/go-json"

	"github.com/hupe1980/docluster/model"
)

// ResultCache is the persistence collaborator consulted around a run.
// A miss is (nil, false, nil).
type ResultCache interface {
	Get(ctx context.Context, key model.CacheKey) (*model.Result, bool, error)
	Put(ctx context.Context, key model.CacheKey, res *model.Result) error
}

// DocumentSource supplies a corpus.
type DocumentSource interface {
	Documents(ctx context.Context) ([]model.Document, error)
}

// StaticSource is a corpus held in memory.
type StaticSource []model.Document

// Documents implements DocumentSource.
func (s StaticSource) Documents(context.Context) ([]model.Document, error) {
	return s, nil
}

// jsonDocument is one input line. Title, Body and Tags are joined into the
// document text when Text is empty.
type jsonDocument struct {
	ID    string   `json:"id"`
	Text  string   `json:"text"`
	Title string   `json:"title"`
	Body  string   `json:"body"`
	Tags  []string `json:"tags"`
}

// JSONLinesSource reads one JSON document per line:
//
//	{"id":"a","text":"..."}
//	{"id":"b","title":"...","body":"...","tags":["x","y"]}
//
// Blank lines are skipped. Lines without an id get their 1-based line
// number as id.
type JSONLinesSource struct {
	r io.Reader
}

// NewJSONLinesSource creates a JSONLinesSource reading r.
func NewJSONLinesSource(r io.Reader) *JSONLinesSource {
	return &JSONLinesSource{r: r}
}

// Documents implements DocumentSource.
func (s *JSONLinesSource) Documents(ctx context.Context) ([]model.Document, error) {
	var docs []model.Document
	sc := bufio.NewScanner(s.r)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	line := 0
	for sc.Scan() {
		line++
		if line%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		raw := strings.TrimSpace(sc.Text())
		if raw == "" {
			continue
		}
		var jd jsonDocument
		if err := json.Unmarshal([]byte(raw), &jd); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if jd.ID == "" {
			jd.ID = fmt.Sprint(line)
		}
		if jd.Text != "" {
			docs = append(docs, model.Document{ID: jd.ID, Text: jd.Text})
			continue
		}
		docs = append(docs, model.NewDocument(jd.ID, jd.Title, jd.Body, strings.Join(jd.Tags, " ")))
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return docs, nil
}

// Package loader turns files into documents: plain text and markdown files
// become one document each, JSON arrays and CSV rows one document per record.
package loader

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"rag/internal/domain"
)

// DefaultExtensions lists the file types the directory source reads by default.
var DefaultExtensions = []string{".txt", ".md", ".json", ".csv"}

// ErrNoContent is returned for files that hold no usable text.
var ErrNoContent = errors.New("no content")

// CSVOptions selects columns when reading CSV records.
type CSVOptions struct {
	// ContentColumn holds the document text. When empty every column is
	// rendered as "name: value" and joined.
	ContentColumn string
	// IDColumn holds the document id. When empty ids are "<name>#row-<n>".
	IDColumn string
}

// File loads the documents in path. name is used for ids and the "source" metadata key.
func File(path, name string, opts CSVOptions) ([]domain.Document, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		return JSON(data, name)
	case ".csv":
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		return CSV(f, name, opts)
	default:
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		return Text(string(data), name)
	}
}

// Text wraps a whole file as one document.
func Text(content, name string) ([]domain.Document, error) {
	if strings.TrimSpace(content) == "" {
		return nil, fmt.Errorf("%s: %w", name, ErrNoContent)
	}
	kind := "text"
	if strings.EqualFold(filepath.Ext(name), ".md") {
		kind = "markdown"
	}
	return []domain.Document{{
		ID:       name,
		Content:  content,
		Metadata: map[string]any{"source": name, "type": kind},
	}}, nil
}

var contentKeys = []string{"content", "text", "body"}

// JSON reads an object or an array of objects. The text comes from the first
// of "content", "text" or "body"; other fields become metadata.
func JSON(data []byte, name string) ([]domain.Document, error) {
	var records []map[string]any
	if err := json.Unmarshal(data, &records); err != nil {
		var single map[string]any
		if errSingle := json.Unmarshal(data, &single); errSingle != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		records = []map[string]any{single}
	}
	var docs []domain.Document
	for i, rec := range records {
		doc := domain.Document{
			ID:       fmt.Sprintf("%s#%d", name, i),
			Metadata: map[string]any{"source": name, "type": "json"},
		}
		contentKey := ""
		for _, k := range contentKeys {
			if s, ok := rec[k].(string); ok && strings.TrimSpace(s) != "" {
				doc.Content, contentKey = s, k
				break
			}
		}
		for k, v := range rec {
			switch k {
			case contentKey:
			case "id":
				doc.ID = fmt.Sprint(v)
			default:
				doc.Metadata[k] = v
			}
		}
		if contentKey == "" {
			doc.Content = renderFields(rec)
		}
		if strings.TrimSpace(doc.Content) == "" {
			continue
		}
		docs = append(docs, doc)
	}
	if len(docs) == 0 {
		return nil, fmt.Errorf("%s: %w", name, ErrNoContent)
	}
	return docs, nil
}

// CSV reads a header row followed by one document per record.
func CSV(r io.Reader, name string, opts CSVOptions) ([]domain.Document, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%s: %w", name, ErrNoContent)
		}
		return nil, fmt.Errorf("%s: read header: %w", name, err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}
	if opts.ContentColumn != "" && indexOf(header, opts.ContentColumn) < 0 {
		return nil, fmt.Errorf("%s: content column %q not found", name, opts.ContentColumn)
	}

	var docs []domain.Document
	for row := 1; ; row++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%s: row %d: %w", name, row, err)
		}
		fields := make(map[string]any, len(header))
		for i, col := range header {
			if i < len(rec) {
				fields[col] = rec[i]
			}
		}
		doc := domain.Document{
			ID:       fmt.Sprintf("%s#row-%d", name, row),
			Metadata: map[string]any{"source": name, "type": "csv", "row": row},
		}
		if opts.IDColumn != "" {
			if id, ok := fields[opts.IDColumn].(string); ok && id != "" {
				doc.ID = id
			}
		}
		if opts.ContentColumn != "" {
			doc.Content, _ = fields[opts.ContentColumn].(string)
			for k, v := range fields {
				if k != opts.ContentColumn && k != opts.IDColumn {
					doc.Metadata[k] = v
				}
			}
		} else {
			doc.Content = renderFields(fields)
		}
		if strings.TrimSpace(doc.Content) == "" {
			continue
		}
		docs = append(docs, doc)
	}
	if len(docs) == 0 {
		return nil, fmt.Errorf("%s: %w", name, ErrNoContent)
	}
	return docs, nil
}

// renderFields formats a record as "key: value" pairs in key order.
func renderFields(fields map[string]any) string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		v := fmt.Sprint(fields[k])
		if strings.TrimSpace(v) == "" {
			continue
		}
		parts = append(parts, k+": "+v)
	}
	return strings.Join(parts, ", ")
}

func indexOf(list []string, s string) int {
	for i, v := range list {
		if v == s {
			return i
		}
	}
	return -1
}

// Supported reports whether ext (with leading dot) is in exts.
func Supported(ext string, exts []string) bool {
	ext = strings.ToLower(ext)
	for _, e := range exts {
		if strings.ToLower(e) == ext {
			return true
		}
	}
	return false
}

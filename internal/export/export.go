// Package export writes snapshots of the task list to files.
package export

import (
	"bytes"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/oklog/ulid/v2"

	"github.com/amirbrooks/tasklist/internal/kv"
	"github.com/amirbrooks/tasklist/internal/tasklist"
)

const (
	FormatJSON = "json"
	FormatPDF  = "pdf"
)

var timeNow = func() time.Time { return time.Now().UTC() }

type randReader struct{}

func (randReader) Read(p []byte) (int, error) { return rand.Read(p) }

type Snapshot struct {
	ID         string          `json:"id"`
	ExportedAt time.Time       `json:"exported_at"`
	Key        string          `json:"key"`
	Total      int             `json:"total"`
	Done       int             `json:"done"`
	Tasks      []tasklist.Task `json:"tasks"`
}

func NewSnapshot(key string, tasks []tasklist.Task) Snapshot {
	if tasks == nil {
		tasks = []tasklist.Task{}
	}
	s := Snapshot{
		ID:         newULID(),
		ExportedAt: timeNow(),
		Key:        key,
		Total:      len(tasks),
		Tasks:      tasks,
	}
	for _, t := range tasks {
		if t.Completed {
			s.Done++
		}
	}
	return s
}

// Encode renders s in format.
func Encode(s Snapshot, format string) ([]byte, error) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case FormatJSON:
		return json.MarshalIndent(s, "", "  ")
	case FormatPDF:
		return encodePDF(s)
	default:
		return nil, fmt.Errorf("unknown export format %q (want json|pdf)", format)
	}
}

// Write encodes s into dir as tasks-<id>.<format> and returns the path.
func Write(dir string, s Snapshot, format string) (string, error) {
	if strings.TrimSpace(dir) == "" {
		return "", fmt.Errorf("export directory is empty")
	}
	data, err := Encode(s, format)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(dir, fmt.Sprintf("tasks-%s.%s", s.ID, strings.ToLower(strings.TrimSpace(format))))
	if err := kv.WriteFileAtomic(path, data, 0o644); err != nil {
		return "", err
	}
	return path, nil
}

func encodePDF(s Snapshot) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetCreationDate(s.ExportedAt)
	pdf.SetTitle("To-Do List", true)
	pdf.AddPage()
	pdf.SetFont("Arial", "B", 14)
	pdf.Cell(40, 10, "To-Do List")
	pdf.Ln(12)
	pdf.SetFont("Arial", "", 9)
	pdf.Cell(40, 6, fmt.Sprintf("%d of %d done, exported %s", s.Done, s.Total, s.ExportedAt.Format("2006-01-02 15:04 MST")))
	pdf.Ln(10)
	pdf.SetFont("Arial", "", 11)
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	for _, l := range tasklist.Lines(s.Tasks) {
		pdf.MultiCell(0, 7, tr(l.String()), "0", "L", false)
	}
	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func newULID() string {
	t := ulid.Timestamp(timeNow())
	entropy := ulid.Monotonic(randReader{}, 0)
	id, err := ulid.New(t, entropy)
	if err != nil {
		// fallback
		return fmt.Sprintf("%d", timeNow().UnixNano())
	}
	return strings.ToUpper(id.String())
}

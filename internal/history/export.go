package history

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/obiente/translate/livescribe/internal/language"
	"github.com/obiente/translate/livescribe/internal/transcript"
)

// Format is an export serialisation.
type Format string

const (
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
	FormatText Format = "txt"
)

var (
	// ErrExportIO wraps filesystem failures during export.
	ErrExportIO = errors.New("export io error")
	// ErrUnknownFormat is returned for unsupported export formats.
	ErrUnknownFormat = errors.New("unknown export format")
)

// ParseFormat accepts json, csv, txt and text.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "json":
		return FormatJSON, nil
	case "csv":
		return FormatCSV, nil
	case "txt", "text":
		return FormatText, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownFormat, s)
}

// FormatFromPath picks a format from the file extension, defaulting to JSON.
func FormatFromPath(path string) Format {
	if f, err := ParseFormat(strings.TrimPrefix(filepath.Ext(path), ".")); err == nil {
		return f
	}
	return FormatJSON
}

// Extension is the file extension used for f, without the dot.
func (f Format) Extension() string { return string(f) }

// Metadata summarises an export.
type Metadata struct {
	ExportTimestamp     string   `json:"export_timestamp"`
	TotalTranscriptions int      `json:"total_transcriptions"`
	Languages           []string `json:"languages"`
	TotalDuration       float64  `json:"total_duration"`
	AverageConfidence   float64  `json:"average_confidence"`
}

type jsonExport struct {
	Metadata       Metadata            `json:"metadata"`
	Transcriptions []transcript.Result `json:"transcriptions"`
}

func (s *Store) metadata(entries []transcript.Result, now time.Time) Metadata {
	m := Metadata{
		ExportTimestamp:     now.Format("2006-01-02T15:04:05.000000"),
		TotalTranscriptions: len(entries),
		Languages:           languagesOf(entries),
	}
	if m.Languages == nil {
		m.Languages = []string{}
	}
	var conf float64
	for _, r := range entries {
		m.TotalDuration += r.Duration
		conf += r.Confidence
	}
	if len(entries) > 0 {
		m.AverageConfidence = conf / float64(len(entries))
	}
	return m
}

// Render serialises the (optionally final-only) history.
func (s *Store) Render(format Format, finalOnly, includeMetadata bool) ([]byte, error) {
	entries := s.filtered(finalOnly)
	now := s.clock()
	switch format {
	case FormatJSON:
		return renderJSON(entries, s.metadata(entries, now), includeMetadata)
	case FormatCSV:
		return renderCSV(entries)
	case FormatText:
		return renderText(entries, s.metadata(entries, now), now, includeMetadata), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
}

func renderJSON(entries []transcript.Result, meta Metadata, includeMetadata bool) ([]byte, error) {
	if entries == nil {
		entries = []transcript.Result{}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	var v any = entries
	if includeMetadata {
		v = jsonExport{Metadata: meta, Transcriptions: entries}
	}
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func renderCSV(entries []transcript.Result) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	_ = w.Write([]string{"datetime", "text", "language", "confidence", "duration", "word_count", "has_mixed_language"})
	for _, r := range entries {
		_ = w.Write([]string{
			r.DateTime(),
			r.Text,
			r.Language,
			strconv.FormatFloat(r.Confidence, 'f', -1, 64),
			strconv.FormatFloat(r.Duration, 'f', -1, 64),
			strconv.Itoa(r.WordCount),
			strconv.FormatBool(r.HasMixedLanguage),
		})
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}

func renderText(entries []transcript.Result, meta Metadata, now time.Time, includeMetadata bool) []byte {
	var b strings.Builder
	if includeMetadata {
		b.WriteString("=== Transcription Export ===\n")
		fmt.Fprintf(&b, "Export Time: %s\n", now.Format("2006-01-02 15:04:05"))
		fmt.Fprintf(&b, "Total Transcriptions: %d\n", meta.TotalTranscriptions)
		fmt.Fprintf(&b, "Languages: %s\n", strings.Join(meta.Languages, ", "))
		b.WriteString("\n=== Transcriptions ===\n\n")
	}
	for _, r := range entries {
		b.WriteString(TextLine(r))
		b.WriteByte('\n')
	}
	return []byte(b.String())
}

// TextLine formats one result as "[HH:MM:SS] [lang] text (0.87)". The
// language tag is omitted when unknown and the confidence when zero.
func TextLine(r transcript.Result) string {
	parts := []string{"[" + r.Timestamp.Format("15:04:05") + "]"}
	if r.Language != "" && r.Language != language.Unknown {
		parts = append(parts, "["+r.Language+"]")
	}
	parts = append(parts, r.Text)
	if r.Confidence > 0 {
		parts = append(parts, fmt.Sprintf("(%.2f)", r.Confidence))
	}
	return strings.Join(parts, " ")
}

// Export writes the history to path atomically. Failures are logged and
// reported as false.
func (s *Store) Export(path string, format Format, finalOnly, includeMetadata bool) bool {
	err := s.export(path, format, finalOnly, includeMetadata)
	s.metrics.RecordExport(string(format), err == nil)
	if err != nil {
		s.log.Error().Err(err).Str("path", path).Str("format", string(format)).Msg("export failed")
		return false
	}
	s.log.Info().Str("path", path).Str("format", string(format)).Msg("exported transcriptions")
	return true
}

func (s *Store) export(path string, format Format, finalOnly, includeMetadata bool) error {
	data, err := s.Render(format, finalOnly, includeMetadata)
	if err != nil {
		return err
	}
	if err := writeAtomic(path, data); err != nil {
		return fmt.Errorf("%w: %v", ErrExportIO, err)
	}
	return nil
}

// ExportFinal writes a JSON snapshot next to base named
// <stem>_final_<YYYYmmdd_HHMMSS><ext>. Empty histories are skipped.
func (s *Store) ExportFinal(base string) (string, bool) {
	if base == "" || s.Len() == 0 {
		return "", false
	}
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(filepath.Base(base), ext)
	name := fmt.Sprintf("%s_final_%s%s", stem, s.clock().Format("20060102_150405"), ext)
	path := filepath.Join(filepath.Dir(base), name)
	return path, s.Export(path, FormatJSON, true, true)
}

func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

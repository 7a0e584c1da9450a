// Package ingest reads review records from CSV files. Header matching is
// lenient; invalid rows are reported individually and never abort the file.
package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/JaimeStill/rapport/internal/reviews"
)

var (
	ErrEmpty          = errors.New("file contains no rows")
	ErrMissingColumns = errors.New("missing required columns")
	ErrTooLarge       = errors.New("file exceeds size limit")
)

// MaxFileSize bounds uploads read through ReadLimited.
const MaxFileSize = 10 << 20

const (
	fieldName   = "customer_name"
	fieldEmail  = "customer_email"
	fieldReview = "review"
	fieldRating = "rating"
)

// aliases lists header fragments accepted for each field, checked in order.
var aliases = map[string][]string{
	fieldName:   {"customer_name", "name", "customer"},
	fieldEmail:  {"customer_email", "email", "mail"},
	fieldReview: {"review", "comment", "feedback"},
	fieldRating: {"rating", "stars", "score"},
}

// RowError describes one rejected row. Row numbers are 1-based data rows.
type RowError struct {
	Row    int    `json:"row"`
	Reason string `json:"reason"`
}

func (e RowError) Error() string {
	return fmt.Sprintf("row %d: %s", e.Row, e.Reason)
}

// Result is the parsed content of a file.
type Result struct {
	Rows    int              `json:"total_rows"`
	Records []reviews.Record `json:"records"`
	Errors  []RowError       `json:"errors,omitempty"`
}

// ReadFile parses the CSV file at path.
func ReadFile(path string) (*Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Read(f)
}

// ReadLimited parses at most MaxFileSize bytes from r.
func ReadLimited(r io.Reader) (*Result, error) {
	lr := &io.LimitedReader{R: r, N: MaxFileSize + 1}
	result, err := Read(lr)
	if lr.N <= 0 {
		return nil, fmt.Errorf("%w: %d bytes", ErrTooLarge, MaxFileSize)
	}
	return result, err
}

// Read parses CSV content with a header row.
func Read(r io.Reader) (*Result, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, ErrEmpty
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	columns, err := mapColumns(header)
	if err != nil {
		return nil, err
	}

	result := &Result{}
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		result.Rows++
		if err != nil {
			result.Errors = append(result.Errors, RowError{Row: result.Rows, Reason: err.Error()})
			continue
		}

		rec, reason := buildRecord(row, header, columns)
		if reason != "" {
			result.Errors = append(result.Errors, RowError{Row: result.Rows, Reason: reason})
			continue
		}
		result.Records = append(result.Records, rec)
	}

	if result.Rows == 0 {
		return nil, ErrEmpty
	}

	return result, nil
}

func buildRecord(row, header []string, columns map[string]int) (reviews.Record, string) {
	name := cell(row, columns[fieldName])
	email := cell(row, columns[fieldEmail])
	text := cell(row, columns[fieldReview])

	switch {
	case name == "":
		return reviews.Record{}, "missing customer name"
	case email == "":
		return reviews.Record{}, "missing customer email"
	case text == "":
		return reviews.Record{}, "missing review text"
	case !reviews.ValidEmail(email):
		return reviews.Record{}, fmt.Sprintf("invalid email format: %s", email)
	}

	rec := reviews.NewRecord(name, email, text)

	if idx, ok := columns[fieldRating]; ok {
		if v := cell(row, idx); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				rec.Rating = n
			}
		}
	}

	used := make(map[int]bool, len(columns))
	for _, idx := range columns {
		used[idx] = true
	}
	for i, h := range header {
		if used[i] {
			continue
		}
		if v := cell(row, i); v != "" {
			if rec.Source == nil {
				rec.Source = make(map[string]string)
			}
			rec.Source[normalizeHeader(h)] = v
		}
	}

	return rec, ""
}

// mapColumns resolves each field to a header index. Exact matches win over
// fragment matches, and a header is bound to at most one field.
func mapColumns(header []string) (map[string]int, error) {
	normalized := make([]string, len(header))
	for i, h := range header {
		normalized[i] = normalizeHeader(h)
	}

	columns := make(map[string]int, len(aliases))
	taken := make(map[int]bool, len(header))

	bind := func(field string, match func(h, alias string) bool) {
		if _, ok := columns[field]; ok {
			return
		}
		for _, alias := range aliases[field] {
			for i, h := range normalized {
				if !taken[i] && match(h, alias) {
					columns[field] = i
					taken[i] = true
					return
				}
			}
		}
	}

	fields := []string{fieldEmail, fieldReview, fieldName, fieldRating}
	for _, f := range fields {
		bind(f, func(h, alias string) bool { return h == alias })
	}
	for _, f := range fields {
		bind(f, strings.Contains)
	}

	var missing []string
	for _, f := range []string{fieldName, fieldEmail, fieldReview} {
		if _, ok := columns[f]; !ok {
			missing = append(missing, f)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf(
			"%w: %s (found: %s)",
			ErrMissingColumns,
			strings.Join(missing, ", "),
			strings.Join(normalized, ", "),
		)
	}

	return columns, nil
}

func normalizeHeader(h string) string {
	h = strings.TrimPrefix(h, "\ufeff")
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(h)), " ", "_")
}

func cell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	v := strings.TrimSpace(row[idx])
	if strings.EqualFold(v, "nan") {
		return ""
	}
	return v
}

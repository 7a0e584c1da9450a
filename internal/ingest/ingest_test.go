package ingest_test

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/JaimeStill/rapport/internal/ingest"
)

func TestRead(t *testing.T) {
	const data = `customer_name,customer_email,review,rating,location
Dana Reyes,dana@example.com,Food was cold and service was rude,1,Downtown
Sam Lee,sam@example.com,"Great experience, will return!",5,
`
	result, err := ingest.Read(strings.NewReader(data))
	if err != nil {
		t.Fatalf("read: %v", err)
	}

	if result.Rows != 2 {
		t.Errorf("rows: got %d, want 2", result.Rows)
	}
	if len(result.Records) != 2 {
		t.Fatalf("records: got %d, want 2", len(result.Records))
	}
	if len(result.Errors) != 0 {
		t.Errorf("errors: got %v, want none", result.Errors)
	}

	first := result.Records[0]
	if first.CustomerName != "Dana Reyes" || first.CustomerEmail != "dana@example.com" {
		t.Errorf("first record: got %+v", first)
	}
	if first.Rating != 1 {
		t.Errorf("rating: got %d, want 1", first.Rating)
	}
	if first.Source["location"] != "Downtown" {
		t.Errorf("source: got %v, want location=Downtown", first.Source)
	}
	if result.Records[1].Text != "Great experience, will return!" {
		t.Errorf("quoted text: got %q", result.Records[1].Text)
	}
	if result.Records[1].Source != nil {
		t.Errorf("empty source cells should be omitted: %v", result.Records[1].Source)
	}
}

func TestReadFlexibleHeaders(t *testing.T) {
	tests := []struct {
		name   string
		header string
	}{
		{"exact", "customer_name,customer_email,review"},
		{"spaced and cased", " Customer Name , Customer Email , Review "},
		{"short", "Name,Email,Comment"},
		{"reordered", "Feedback,E-Mail Address,Customer"},
		{"byte order mark", "\ufeffcustomer_name,customer_email,review"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var row string
			if tt.name == "reordered" {
				row = "Too slow,pat@example.com,Pat"
			} else {
				row = "Pat,pat@example.com,Too slow"
			}

			result, err := ingest.Read(strings.NewReader(tt.header + "\n" + row + "\n"))
			if err != nil {
				t.Fatalf("read: %v", err)
			}
			if len(result.Records) != 1 {
				t.Fatalf("records: got %d (errors %v), want 1", len(result.Records), result.Errors)
			}

			r := result.Records[0]
			if r.CustomerName != "Pat" || r.CustomerEmail != "pat@example.com" || r.Text != "Too slow" {
				t.Errorf("record: got %+v", r)
			}
		})
	}
}

func TestReadRowErrors(t *testing.T) {
	const data = `name,email,review
,a@example.com,text
Bo,,text
Cy,c@example.com,
Di,not-an-email,text
Ed,e@example.com,nan
Flo,flo@example.com,fine
`
	result, err := ingest.Read(strings.NewReader(data))
	if err != nil {
		t.Fatalf("read: %v", err)
	}

	if result.Rows != 6 {
		t.Errorf("rows: got %d, want 6", result.Rows)
	}
	if len(result.Records) != 1 || result.Records[0].CustomerName != "Flo" {
		t.Errorf("records: got %+v, want only Flo", result.Records)
	}

	want := []struct {
		row    int
		reason string
	}{
		{1, "missing customer name"},
		{2, "missing customer email"},
		{3, "missing review text"},
		{4, "invalid email format"},
		{5, "missing review text"},
	}

	if len(result.Errors) != len(want) {
		t.Fatalf("errors: got %v, want %d", result.Errors, len(want))
	}
	for i, w := range want {
		got := result.Errors[i]
		if got.Row != w.row || !strings.Contains(got.Reason, w.reason) {
			t.Errorf("error %d: got %v, want row %d %q", i, got, w.row, w.reason)
		}
	}
}

func TestReadFailures(t *testing.T) {
	tests := []struct {
		name string
		data string
		want error
	}{
		{"empty", "", ingest.ErrEmpty},
		{"header only", "name,email,review\n", ingest.ErrEmpty},
		{"missing review column", "name,email\nA,a@example.com\n", ingest.ErrMissingColumns},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ingest.Read(strings.NewReader(tt.data))
			if !errors.Is(err, tt.want) {
				t.Errorf("err: got %v, want %v", err, tt.want)
			}
		})
	}
}

func TestReadLimited(t *testing.T) {
	big := "name,email,review\n" + strings.Repeat("A,a@example.com,"+strings.Repeat("x", 1000)+"\n", ingest.MaxFileSize/1000+10)

	_, err := ingest.ReadLimited(strings.NewReader(big))
	if !errors.Is(err, ingest.ErrTooLarge) {
		t.Errorf("err: got %v, want %v", err, ingest.ErrTooLarge)
	}
}

func TestReadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reviews.csv")
	if err := os.WriteFile(path, []byte("name,email,review\nA,a@example.com,ok\n"), 0644); err != nil {
		t.Fatal(err)
	}

	result, err := ingest.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Records) != 1 {
		t.Errorf("records: got %d, want 1", len(result.Records))
	}
}

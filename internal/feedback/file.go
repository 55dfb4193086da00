package feedback

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

// #region file-recorder

// FileRecorder appends CSV rows to a file. The file is opened and closed on
// every call so a crash loses at most the record being written.
type FileRecorder struct {
	path string
	mu   sync.Mutex
	now  func() time.Time
}

// NewFileRecorder returns a recorder writing to path. The file is created on first use.
func NewFileRecorder(path string) *FileRecorder {
	return &FileRecorder{path: path, now: time.Now}
}

// Path returns the log location.
func (f *FileRecorder) Path() string {
	return f.path
}

// Record writes r as one CSV row with a single Write call.
func (f *FileRecorder) Record(_ context.Context, r Record) error {
	if r.Timestamp.IsZero() {
		r.Timestamp = f.now()
	}

	row, err := encodeRow(r)
	if err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	fh, err := os.OpenFile(f.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open vote log: %w", err)
	}
	if _, err := fh.Write(row); err != nil {
		fh.Close()
		return fmt.Errorf("append vote: %w", err)
	}
	if err := fh.Close(); err != nil {
		return fmt.Errorf("close vote log: %w", err)
	}
	return nil
}

func encodeRow(r Record) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	err := w.Write([]string{
		r.Timestamp.UTC().Format(time.RFC3339Nano),
		r.Voter,
		string(r.Vote),
		r.Text,
	})
	if err != nil {
		return nil, fmt.Errorf("encode vote: %w", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("encode vote: %w", err)
	}
	return buf.Bytes(), nil
}

// #endregion file-recorder

// #region read

// ReadFile parses a vote log written by FileRecorder. A missing file is an empty log.
func ReadFile(path string) ([]Record, error) {
	fh, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open vote log: %w", err)
	}
	defer fh.Close()
	return readRecords(fh)
}

func readRecords(src io.Reader) ([]Record, error) {
	cr := csv.NewReader(src)
	cr.FieldsPerRecord = 4

	var out []Record
	for line := 1; ; line++ {
		fields, err := cr.Read()
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return nil, fmt.Errorf("vote log row %d: %w", line, err)
		}
		ts, err := time.Parse(time.RFC3339Nano, fields[0])
		if err != nil {
			return nil, fmt.Errorf("vote log row %d: timestamp: %w", line, err)
		}
		vote, err := ParseVote(fields[2])
		if err != nil {
			return nil, fmt.Errorf("vote log row %d: %w", line, err)
		}
		out = append(out, Record{Timestamp: ts, Voter: fields[1], Vote: vote, Text: fields[3]})
	}
}

// #endregion read

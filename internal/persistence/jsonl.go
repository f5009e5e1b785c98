package persistence

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/klauspost/compress/zstd"

	"github.com/talgya/tausaga/internal/demography"
	"github.com/talgya/tausaga/internal/history"
)

// vitalLine is one JSONL entry.
type vitalLine struct {
	Year   int       `json:"year"`
	ID     uuid.UUID `json:"id"`
	Kind   string    `json:"kind"`
	Moment float64   `json:"moment"`
	Sex    *uint8    `json:"sex,omitempty"`
}

// ExportJSONL writes an island's record to dir/<island>.jsonl.zst.
func ExportJSONL(dir, island string, rec history.Record) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(dir, island+".jsonl.zst")
	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		_ = f.Close()
		return "", err
	}
	w := bufio.NewWriterSize(enc, 128*1024)
	je := json.NewEncoder(w)

	var werr error
	rec.Each(func(ev history.Event) {
		if werr != nil {
			return
		}
		line := vitalLine{Year: ev.Year, ID: ev.ID, Kind: ev.Kind.String(), Moment: ev.Moment}
		if ev.Sex != nil {
			s := uint8(*ev.Sex)
			line.Sex = &s
		}
		werr = je.Encode(line)
	})
	if werr == nil {
		werr = w.Flush()
	}
	if err := enc.Close(); werr == nil {
		werr = err
	}
	if err := f.Close(); werr == nil {
		werr = err
	}
	if werr != nil {
		return "", fmt.Errorf("export %s: %w", island, werr)
	}
	return path, nil
}

// ImportJSONL reads dir/<island>.jsonl.zst.
func ImportJSONL(dir, island string) (history.Record, error) {
	f, err := os.Open(filepath.Join(dir, island+".jsonl.zst"))
	if err != nil {
		return nil, err
	}
	defer f.Close()
	dec, err := zstd.NewReader(f)
	if err != nil {
		return nil, err
	}
	defer dec.Close()

	rec := make(history.Record)
	sc := bufio.NewScanner(dec)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for n := 1; sc.Scan(); n++ {
		var line vitalLine
		if err := json.Unmarshal(sc.Bytes(), &line); err != nil {
			return nil, fmt.Errorf("import %s: line %d: %w", island, n, err)
		}
		kind, err := history.ParseKind(line.Kind)
		if err != nil {
			return nil, fmt.Errorf("import %s: line %d: %w", island, n, err)
		}
		ev := history.Event{Kind: kind, ID: line.ID, Year: line.Year, Moment: line.Moment}
		if line.Sex != nil {
			s := demography.Sex(*line.Sex)
			ev.Sex = &s
		}
		rec.Add(ev)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("import %s: %w", island, err)
	}
	return rec, nil
}

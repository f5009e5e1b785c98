package persistence

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/talgya/tausaga/internal/demography"
	"github.com/talgya/tausaga/internal/history"
)

var ErrBadCSV = errors.New("persistence: malformed vital record csv")

var csvHeader = []string{"year", "person_id", "type", "exact_moment", "sex (if applicable)"}

// WriteCSV writes rec with one row per event. Types are written as
// NAME-ordinal, e.g. BIRTH-0.
func WriteCSV(w io.Writer, rec history.Record) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	var werr error
	rec.Each(func(ev history.Event) {
		if werr != nil {
			return
		}
		sex := ""
		if ev.Kind == history.KindBirth && ev.Sex != nil {
			sex = strconv.Itoa(int(*ev.Sex))
		}
		werr = cw.Write([]string{
			strconv.Itoa(ev.Year),
			ev.ID.String(),
			fmt.Sprintf("%s-%d", ev.Kind, int(ev.Kind)),
			strconv.FormatFloat(ev.Moment, 'g', -1, 64),
			sex,
		})
	})
	if werr != nil {
		return werr
	}
	cw.Flush()
	return cw.Error()
}

// ReadCSV parses a record written by WriteCSV. The ordinal after the last
// '-' of the type column decides the kind.
func ReadCSV(r io.Reader) (history.Record, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(csvHeader)
	head, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("%w: header: %v", ErrBadCSV, err)
	}
	if head[0] != csvHeader[0] || head[1] != csvHeader[1] {
		return nil, fmt.Errorf("%w: unexpected header %v", ErrBadCSV, head)
	}
	rec := make(history.Record)
	for line := 2; ; line++ {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return rec, nil
		}
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", ErrBadCSV, line, err)
		}
		ev, err := parseRow(row)
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", ErrBadCSV, line, err)
		}
		rec.Add(ev)
	}
}

func parseRow(row []string) (history.Event, error) {
	var ev history.Event
	year, err := strconv.Atoi(row[0])
	if err != nil {
		return ev, fmt.Errorf("year: %w", err)
	}
	id, err := uuid.Parse(row[1])
	if err != nil {
		return ev, fmt.Errorf("person id: %w", err)
	}
	i := strings.LastIndexByte(row[2], '-')
	if i < 0 {
		return ev, fmt.Errorf("type %q", row[2])
	}
	ord, err := strconv.Atoi(row[2][i+1:])
	if err != nil || ord < int(history.KindBirth) || ord > int(history.KindConception) {
		return ev, fmt.Errorf("type %q", row[2])
	}
	moment, err := strconv.ParseFloat(row[3], 64)
	if err != nil {
		return ev, fmt.Errorf("moment: %w", err)
	}
	ev = history.Event{Kind: history.Kind(ord), ID: id, Year: year, Moment: moment}
	if row[4] != "" {
		s, err := strconv.Atoi(row[4])
		if err != nil || (s != int(demography.SexFemale) && s != int(demography.SexMale)) {
			return ev, fmt.Errorf("sex %q", row[4])
		}
		sex := demography.Sex(s)
		ev.Sex = &sex
	}
	return ev, nil
}

// ExportCSV writes an island's record to dir/<island>.csv.
func ExportCSV(dir, island string, rec history.Record) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(dir, island+".csv")
	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	if err := WriteCSV(f, rec); err != nil {
		f.Close()
		return "", fmt.Errorf("export %s: %w", island, err)
	}
	return path, f.Close()
}

// ImportCSV reads dir/<island>.csv.
func ImportCSV(dir, island string) (history.Record, error) {
	f, err := os.Open(filepath.Join(dir, island+".csv"))
	if err != nil {
		return nil, err
	}
	defer f.Close()
	rec, err := ReadCSV(f)
	if err != nil {
		return nil, fmt.Errorf("import %s: %w", island, err)
	}
	return rec, nil
}

package export

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/tierline/tierline/internal/hierarchy"
	"github.com/tierline/tierline/internal/reports"
)

const (
	csvFlushEvery = 200
	csvBufferSize = 32 * 1024
)

// csvStreamer writes CRLF-terminated rows with every field double-quoted and
// embedded quotes doubled.
type csvStreamer struct {
	buf          *bufio.Writer
	flushEvery   int
	pendingLines int
}

func newCSVStreamer(w io.Writer) *csvStreamer {
	return &csvStreamer{buf: bufio.NewWriterSize(w, csvBufferSize), flushEvery: csvFlushEvery}
}

func (s *csvStreamer) writeRow(fields []string) error {
	if s == nil || s.buf == nil {
		return fmt.Errorf("csv streamer not initialised")
	}
	for i, field := range fields {
		if i > 0 {
			if err := s.buf.WriteByte(','); err != nil {
				return err
			}
		}
		if err := s.buf.WriteByte('"'); err != nil {
			return err
		}
		if _, err := s.buf.WriteString(strings.ReplaceAll(field, `"`, `""`)); err != nil {
			return err
		}
		if err := s.buf.WriteByte('"'); err != nil {
			return err
		}
	}
	if _, err := s.buf.WriteString("\r\n"); err != nil {
		return err
	}
	s.pendingLines++
	if s.flushEvery > 0 && s.pendingLines >= s.flushEvery {
		return s.Flush()
	}
	return nil
}

func (s *csvStreamer) Flush() error {
	if s == nil || s.buf == nil {
		return fmt.Errorf("csv streamer not initialised")
	}
	if err := s.buf.Flush(); err != nil {
		return err
	}
	s.pendingLines = 0
	return nil
}

// WriteReport writes the header and rows of an aggregated report. Columns
// follow def.Columns exactly.
func WriteReport(w io.Writer, def reports.Definition, rows []reports.Row, f Format) error {
	streamer := newCSVStreamer(w)
	header := make([]string, len(def.Columns))
	for i, col := range def.Columns {
		header[i] = col.Label
	}
	if err := streamer.writeRow(header); err != nil {
		return err
	}
	record := make([]string, len(def.Columns))
	for _, row := range rows {
		for i, col := range def.Columns {
			if col.Numeric {
				record[i] = f.Amount(col.Amount(row))
			} else {
				record[i] = col.Text(row)
			}
		}
		if err := streamer.writeRow(record); err != nil {
			return err
		}
	}
	return streamer.Flush()
}

// LevelHeader lists the level report columns.
var LevelHeader = []string{"Level", "Member ID", "Name", "Referrer ID", "Status", "Business Volume"}

// WriteLevels writes level report nodes.
func WriteLevels(w io.Writer, nodes []hierarchy.Node, f Format) error {
	streamer := newCSVStreamer(w)
	if err := streamer.writeRow(LevelHeader); err != nil {
		return err
	}
	for _, n := range nodes {
		if err := streamer.writeRow([]string{
			fmt.Sprintf("%d", n.Depth),
			n.MemberID,
			n.Name,
			n.ReferrerID,
			string(n.Status),
			f.Amount(n.BusinessVolume),
		}); err != nil {
			return err
		}
	}
	return streamer.Flush()
}

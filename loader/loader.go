package loader

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Record is one embeddable chunk of a document.
type Record struct {
	ID   uint32 `json:"id"`
	Text string `json:"text"`
}

// Separator joins the text columns of a row.
const Separator = "\t"

const progressEvery = 10000

// Option configures a load.
type Option func(*config)

type config struct {
	chunkSize int
	overlap   int
	logger    *slog.Logger
}

// WithChunking overrides the chunk size and overlap (in runes).
func WithChunking(size, overlap int) Option {
	return func(c *config) {
		c.chunkSize = size
		c.overlap = overlap
	}
}

// WithLogger sets the logger used for skipped rows and progress.
func WithLogger(l *slog.Logger) Option {
	return func(c *config) {
		if l != nil {
			c.logger = l
		}
	}
}

func newConfig(opts []Option) *config {
	c := &config{
		chunkSize: DefaultChunkSize,
		overlap:   DefaultOverlap,
		logger:    slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(c)
	}

	return c
}

// collect chunks text and appends one record per non-empty chunk.
func (c *config) collect(records []Record, id uint32, text string) []Record {
	for _, chunk := range Chunk(text, c.chunkSize, c.overlap) {
		if chunk != "" {
			records = append(records, Record{ID: id, Text: chunk})
		}
	}

	return records
}

// LoadFile loads path, choosing the format by extension: ".xlsx" is read as
// a workbook, anything else as tab-separated text.
func LoadFile(path string, opts ...Option) ([]Record, error) {
	if strings.EqualFold(filepath.Ext(path), ".xlsx") {
		return LoadXLSX(path, opts...)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("loader: open %s: %w", path, err)
	}
	defer f.Close()

	return LoadDelimited(f, opts...)
}

// LoadDelimited reads tab-separated rows from r. The first line is a header.
// Blank lines and rows with fewer than two fields are skipped; rows whose
// first field is not an unsigned 32-bit id are logged and skipped.
func LoadDelimited(r io.Reader, opts ...Option) ([]Record, error) {
	c := newConfig(opts)
	br := bufio.NewReader(r)

	var (
		records []Record
		line    int
		rows    int
	)

	for {
		text, err := br.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("loader: read line %d: %w", line+1, err)
		}

		if text != "" {
			line++
			if line > 1 {
				if rec, ok := c.parseRow(line, strings.TrimRight(text, "\r\n")); ok {
					records = c.collect(records, rec.ID, rec.Text)

					rows++
					if rows%progressEvery == 0 {
						c.logger.Info("loading documents", "rows", rows)
					}
				}
			}
		}

		if err != nil {
			break
		}
	}

	c.logger.Info("documents loaded", "rows", rows, "records", len(records))

	return records, nil
}

func (c *config) parseRow(line int, text string) (Record, bool) {
	if strings.TrimSpace(text) == "" {
		return Record{}, false
	}

	fields := strings.Split(text, Separator)
	for len(fields) > 1 && fields[len(fields)-1] == "" {
		fields = fields[:len(fields)-1]
	}

	if len(fields) < 2 {
		return Record{}, false
	}

	id, err := parseID(fields[0])
	if err != nil {
		c.logger.Warn("skipping row with invalid id", "line", line, "id", fields[0], "error", err)
		return Record{}, false
	}

	return Record{ID: id, Text: strings.Join(fields[1:], Separator)}, true
}

// parseID accepts plain integers and integral floats such as "12.0", which
// is how spreadsheets commonly render numeric ids.
func parseID(s string) (uint32, error) {
	s = strings.TrimSpace(s)

	id, err := strconv.ParseUint(s, 10, 32)
	if err == nil {
		return uint32(id), nil
	}

	f, ferr := strconv.ParseFloat(s, 64)
	if ferr != nil || f < 0 || f > float64(^uint32(0)) {
		return 0, err
	}

	return uint32(f), nil
}

// Package export serializes query results to JSON, CSV or XML.
package export

import (
	"encoding/csv"
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/simorgh/advanced-logger/models"
)

// Format names a supported export format.
type Format string

const (
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
	FormatXML  Format = "xml"
)

// ErrUnsupportedFormat is returned for format names outside json/csv/xml.
var ErrUnsupportedFormat = errors.New("unsupported export format")

// Encoder writes records one at a time; Close finishes the document.
type Encoder interface {
	Write(rec *models.LogRecord) error
	Close() error
}

// NewEncoder returns the encoder for the requested format.
func NewEncoder(w io.Writer, format Format) (Encoder, error) {
	switch format {
	case FormatJSON:
		return &jsonEncoder{w: w}, nil
	case FormatCSV:
		return newCSVEncoder(w)
	case FormatXML:
		return newXMLEncoder(w)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
}

// jsonEncoder emits a pretty-printed array of full records.
type jsonEncoder struct {
	w       io.Writer
	started bool
}

func (e *jsonEncoder) Write(rec *models.LogRecord) error {
	data, err := json.MarshalIndent(rec, "    ", "    ")
	if err != nil {
		return err
	}
	prefix := "[\n    "
	if e.started {
		prefix = ",\n    "
	}
	e.started = true
	if _, err := io.WriteString(e.w, prefix); err != nil {
		return err
	}
	_, err = e.w.Write(data)
	return err
}

func (e *jsonEncoder) Close() error {
	if !e.started {
		_, err := io.WriteString(e.w, "[]")
		return err
	}
	_, err := io.WriteString(e.w, "\n]")
	return err
}

// csvHeader is the fixed header row.
var csvHeader = []string{"ID", "Level", "Category", "Message", "User ID", "IP Address", "Created At"}

type csvEncoder struct {
	w *csv.Writer
}

func newCSVEncoder(w io.Writer) (*csvEncoder, error) {
	enc := &csvEncoder{w: csv.NewWriter(w)}
	if err := enc.w.Write(csvHeader); err != nil {
		return nil, err
	}
	return enc, nil
}

func (e *csvEncoder) Write(rec *models.LogRecord) error {
	userID := ""
	if rec.UserID != nil {
		userID = strconv.FormatInt(*rec.UserID, 10)
	}
	return e.w.Write([]string{
		rec.ID,
		string(rec.Level),
		rec.Category,
		rec.Message,
		userID,
		rec.IPAddress,
		rec.CreatedAt.Format("2006-01-02 15:04:05"),
	})
}

func (e *csvEncoder) Close() error {
	e.w.Flush()
	return e.w.Error()
}

// xmlLog is one <log> element; the message is CDATA-wrapped.
type xmlLog struct {
	XMLName   xml.Name `xml:"log"`
	ID        string   `xml:"id"`
	Level     string   `xml:"level"`
	Category  string   `xml:"category"`
	Message   cdata    `xml:"message"`
	UserID    string   `xml:"user_id"`
	IPAddress string   `xml:"ip_address"`
	CreatedAt string   `xml:"created_at"`
}

type cdata struct {
	Value string `xml:",cdata"`
}

type xmlEncoder struct {
	w   io.Writer
	enc *xml.Encoder
}

func newXMLEncoder(w io.Writer) (*xmlEncoder, error) {
	if _, err := io.WriteString(w, xml.Header+"<logs>\n"); err != nil {
		return nil, err
	}
	enc := xml.NewEncoder(w)
	enc.Indent("  ", "  ")
	return &xmlEncoder{w: w, enc: enc}, nil
}

func (e *xmlEncoder) Write(rec *models.LogRecord) error {
	userID := ""
	if rec.UserID != nil {
		userID = strconv.FormatInt(*rec.UserID, 10)
	}
	return e.enc.Encode(xmlLog{
		ID:        rec.ID,
		Level:     string(rec.Level),
		Category:  rec.Category,
		Message:   cdata{Value: rec.Message},
		UserID:    userID,
		IPAddress: rec.IPAddress,
		CreatedAt: rec.CreatedAt.Format("2006-01-02 15:04:05"),
	})
}

func (e *xmlEncoder) Close() error {
	if err := e.enc.Flush(); err != nil {
		return err
	}
	_, err := io.WriteString(e.w, "\n</logs>\n")
	return err
}

// Package export flattens stored responses into tables and serializes them
// as CSV, XLSX or JSON downloads.
package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/goccy/go-json"
	"github.com/xuri/excelize/v2"

	"github.com/mbolis/merchant-survey/model"
)

// SheetName is the name of the only sheet of XLSX exports.
const SheetName = "Data"

var fixedColumns = []string{"id", "category", "merchant_name", "timestamp", "latitude", "longitude"}

const addressColumn = "location_address"

type Table struct {
	Columns []string
	Rows    [][]string
}

// Flatten turns responses into one row each. The leading columns hold the
// response header; location_address is included only when some response
// has an address. Then comes one column per distinct question, in order of
// first appearance. Unanswered cells are empty.
func Flatten(responses []model.SurveyResponse) Table {
	withAddress := false
	var questions []string
	seen := map[string]bool{}
	for _, r := range responses {
		if r.LocationAddress != "" {
			withAddress = true
		}
		for _, a := range r.Answers {
			if !seen[a.Question] {
				seen[a.Question] = true
				questions = append(questions, a.Question)
			}
		}
	}

	columns := append([]string(nil), fixedColumns...)
	if withAddress {
		columns = append(columns, addressColumn)
	}
	columns = append(columns, questions...)

	rows := make([][]string, 0, len(responses))
	for _, r := range responses {
		row := make([]string, 0, len(columns))
		row = append(row,
			strconv.FormatInt(r.ID, 10),
			r.Category,
			r.MerchantName,
			r.Timestamp,
			r.Latitude,
			r.Longitude,
		)
		if withAddress {
			row = append(row, r.LocationAddress)
		}
		for _, q := range questions {
			a, _ := r.Answers.Get(q)
			row = append(row, a)
		}
		rows = append(rows, row)
	}
	return Table{Columns: columns, Rows: rows}
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// CSV renders t as comma separated UTF-8 with a leading byte order mark.
func CSV(t Table) ([]byte, error) {
	var buf bytes.Buffer
	buf.Write(utf8BOM)

	w := csv.NewWriter(&buf)
	if err := w.Write(t.Columns); err != nil {
		return nil, err
	}
	if err := w.WriteAll(t.Rows); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// XLSX renders t as a workbook with a single "Data" sheet.
func XLSX(t Table) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), SheetName); err != nil {
		return nil, err
	}

	if err := setRow(f, 1, t.Columns); err != nil {
		return nil, err
	}
	for i, row := range t.Rows {
		if err := setRow(f, i+2, row); err != nil {
			return nil, err
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func setRow(f *excelize.File, n int, values []string) error {
	cell, err := excelize.CoordinatesToCellName(1, n)
	if err != nil {
		return err
	}
	row := make([]interface{}, len(values))
	for i, v := range values {
		row[i] = v
	}
	return f.SetSheetRow(SheetName, cell, &row)
}

// JSON renders responses as an indented array, answers kept as nested objects.
func JSON(responses []model.SurveyResponse) ([]byte, error) {
	if responses == nil {
		responses = []model.SurveyResponse{}
	}
	return json.MarshalIndent(responses, "", "  ")
}

type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
	FormatJSON Format = "json"
)

var Formats = []Format{FormatCSV, FormatXLSX, FormatJSON}

func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatCSV, FormatXLSX, FormatJSON:
		return f, nil
	case "excel", "xls":
		return FormatXLSX, nil
	}
	return "", fmt.Errorf("unknown export format %q", s)
}

func (f Format) Extension() string {
	return string(f)
}

func (f Format) ContentType() string {
	switch f {
	case FormatCSV:
		return "text/csv; charset=utf-8"
	case FormatXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case FormatJSON:
		return "application/json; charset=utf-8"
	}
	return "application/octet-stream"
}

// Payload is a ready to download export.
type Payload struct {
	Filename    string
	ContentType string
	Body        []byte
}

// Export serializes responses in format. scope names the exported set in
// the file name.
func Export(format Format, responses []model.SurveyResponse, scope string, now time.Time) (Payload, error) {
	var (
		body []byte
		err  error
	)
	switch format {
	case FormatCSV:
		body, err = CSV(Flatten(responses))
	case FormatXLSX:
		body, err = XLSX(Flatten(responses))
	case FormatJSON:
		body, err = JSON(responses)
	default:
		err = fmt.Errorf("unknown export format %q", format)
	}
	if err != nil {
		return Payload{}, err
	}

	return Payload{
		Filename:    Filename(scope, format, now),
		ContentType: format.ContentType(),
		Body:        body,
	}, nil
}

// Filename builds survey_<scope>_<YYYYmmdd_HHMMSS>.<ext>.
func Filename(scope string, format Format, now time.Time) string {
	return fmt.Sprintf("survey_%s_%s.%s", scope, now.Format("20060102_150405"), format.Extension())
}

// Slug keeps letters and digits of s, in any script, and joins the rest with underscores.
func Slug(s string) string {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	if len(fields) == 0 {
		return "unnamed"
	}
	return strings.Join(fields, "_")
}

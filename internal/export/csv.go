// Package export renders listings into downloadable CSV files.
package export

import (
	"encoding/csv"
	"io"
	"strconv"
	"time"
)

// Table is a header plus rows already formatted as strings.
type Table struct {
	Header []string
	Rows   [][]string
}

// WriteCSV serialises the table to w.
func WriteCSV(w io.Writer, table Table) error {
	writer := csv.NewWriter(w)
	defer writer.Flush()
	if err := writer.Write(table.Header); err != nil {
		return err
	}
	for _, row := range table.Rows {
		if err := writer.Write(row); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// Money formats an amount with two decimals.
func Money(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

// Int formats an integer column.
func Int(v int64) string {
	return strconv.FormatInt(v, 10)
}

// Date formats a calendar date column.
func Date(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("2006-01-02")
}

// Timestamp formats a timestamp column in UTC.
func Timestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

// Filename builds a dated download name such as suppliers-2024-05-01.csv.
func Filename(prefix string, at time.Time) string {
	return prefix + "-" + at.Format("2006-01-02") + ".csv"
}

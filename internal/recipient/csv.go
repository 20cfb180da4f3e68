package recipient

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
)

// requiredColumns are the headers a recipient CSV must carry, in any order.
var requiredColumns = []string{"email", "first_name", "last_name", "position"}

// MissingColumnsError reports required CSV headers that are absent.
type MissingColumnsError struct {
	Columns []string
}

func (e *MissingColumnsError) Error() string {
	return fmt.Sprintf("missing required columns: %s", strings.Join(e.Columns, ", "))
}

// ParseCSV reads recipients from comma-delimited text. The first row must
// be a header containing at least email, first_name, last_name and
// position (case-insensitive, order-independent). Rows without an email
// are dropped.
func ParseCSV(r io.Reader) ([]Recipient, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("empty CSV input")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}

	index := make(map[string]int, len(header))
	for i, h := range header {
		index[strings.ToLower(strings.TrimSpace(h))] = i
	}

	var missing []string
	for _, col := range requiredColumns {
		if _, ok := index[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, &MissingColumnsError{Columns: missing}
	}

	field := func(row []string, col string) string {
		i := index[col]
		if i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	var recipients []Recipient
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read CSV row: %w", err)
		}

		email := field(row, "email")
		if email == "" {
			continue
		}

		recipients = append(recipients, Recipient{
			Email:     email,
			FirstName: field(row, "first_name"),
			LastName:  field(row, "last_name"),
			Position:  field(row, "position"),
		})
	}

	return recipients, nil
}

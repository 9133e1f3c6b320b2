package usageimport

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/shopspring/decimal"

	pkgerrors "github.com/angelmondragon/propertyledger-backend/pkg/errors"
	"github.com/angelmondragon/propertyledger-backend/pkg/money"
)

const (
	colRoomNumber       = "roomnumber"
	colWaterUsage       = "waterusage"
	colElectricityUsage = "electricityusage"
	colBillingMonth     = "billingmonth"
	colWaterRate        = "waterrate"
	colElectricityRate  = "electricityrate"
)

var requiredColumns = []string{colRoomNumber, colWaterUsage, colElectricityUsage, colBillingMonth}

// ParseCSV reads the meter-reading export. The header row is required and
// matched case-insensitively; rows that cannot be parsed come back as
// rejections instead of aborting the file. Row indexes count data rows from 0.
func ParseCSV(r io.Reader) ([]Row, []Rejection, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil, pkgerrors.New(pkgerrors.CodeValidation, "csv is empty")
		}
		return nil, nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read csv header")
	}
	columns := indexHeader(header)
	var missing []string
	for _, name := range requiredColumns {
		if _, ok := columns[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return nil, nil, pkgerrors.New(pkgerrors.CodeValidation, "csv header is missing columns").
			WithDetails(map[string]any{"missing": missing})
	}

	var (
		rows       []Row
		rejections []Rejection
	)
	for index := 0; ; index++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) {
				rejections = append(rejections, Rejection{RowIndex: index, Code: pkgerrors.CodeValidation, Reason: parseErr.Err.Error()})
				continue
			}
			return nil, nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read csv")
		}
		if blank(record) {
			continue
		}
		row, err := parseRecord(index, record, columns)
		if err != nil {
			rejections = append(rejections, Rejection{
				RowIndex:   index,
				RoomNumber: field(record, columns, colRoomNumber),
				Code:       pkgerrors.CodeOf(err),
				Reason:     reason(err),
			})
			continue
		}
		rows = append(rows, row)
	}
	return rows, rejections, nil
}

// ImportCSV parses and applies a CSV export in one call.
func (i *Importer) ImportCSV(ctx context.Context, r io.Reader, opts Options) (BatchResult, error) {
	rows, parseRejections, err := ParseCSV(r)
	if err != nil {
		return BatchResult{}, err
	}
	for range parseRejections {
		i.metrics.ImportRow(string(pkgerrors.CodeValidation))
	}
	result, err := i.importRows(ctx, rows, opts)
	if err != nil {
		return BatchResult{}, err
	}
	result.Rejected = append(parseRejections, result.Rejected...)
	return result, nil
}

func parseRecord(index int, record []string, columns map[string]int) (Row, error) {
	row := Row{
		Index:        index,
		RoomNumber:   field(record, columns, colRoomNumber),
		BillingMonth: field(record, columns, colBillingMonth),
	}
	if row.RoomNumber == "" {
		return Row{}, pkgerrors.New(pkgerrors.CodeValidation, "RoomNumber is required")
	}
	var err error
	if row.WaterUsage, err = requiredAmount(record, columns, colWaterUsage, "WaterUsage"); err != nil {
		return Row{}, err
	}
	if row.ElectricityUsage, err = requiredAmount(record, columns, colElectricityUsage, "ElectricityUsage"); err != nil {
		return Row{}, err
	}
	if row.WaterRate, err = optionalAmount(record, columns, colWaterRate, "WaterRate"); err != nil {
		return Row{}, err
	}
	if row.ElectricityRate, err = optionalAmount(record, columns, colElectricityRate, "ElectricityRate"); err != nil {
		return Row{}, err
	}
	return row, nil
}

func requiredAmount(record []string, columns map[string]int, key, label string) (decimal.Decimal, error) {
	value, err := money.Parse(field(record, columns, key))
	if err != nil {
		return decimal.Zero, pkgerrors.Wrap(pkgerrors.CodeValidation, err, fmt.Sprintf("%s is not a number", label))
	}
	return value, nil
}

func optionalAmount(record []string, columns map[string]int, key, label string) (*decimal.Decimal, error) {
	value, err := money.ParseOptional(field(record, columns, key))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, fmt.Sprintf("%s is not a number", label))
	}
	return value, nil
}

func indexHeader(header []string) map[string]int {
	columns := make(map[string]int, len(header))
	for i, name := range header {
		key := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")))
		key = strings.NewReplacer("_", "", " ", "").Replace(key)
		if _, seen := columns[key]; !seen {
			columns[key] = i
		}
	}
	return columns
}

func field(record []string, columns map[string]int, key string) string {
	i, ok := columns[key]
	if !ok || i >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[i])
}

func blank(record []string) bool {
	for _, value := range record {
		if strings.TrimSpace(value) != "" {
			return false
		}
	}
	return true
}

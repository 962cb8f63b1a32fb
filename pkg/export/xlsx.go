package export

import (
	"fmt"
	"io"
	"strconv"

	"github.com/ruslano69/invmirror/pkg/core/schema"
	"github.com/xuri/excelize/v2"
)

// DefaultSheet - имя листа, если не задано
const DefaultSheet = "Sheet1"

// WriteXLSX сохраняет снимок в файл Excel
//
// Example:
//
//	err := export.WriteXLSX("supplies.xlsx", snap, "Supplies")
func WriteXLSX(path string, snap *Snapshot, sheetName string) error {
	f, err := buildWorkbook(snap, sheetName)
	if err != nil {
		return err
	}
	defer f.Close()

	return f.SaveAs(path)
}

// WriteXLSXTo пишет книгу Excel в поток
func WriteXLSXTo(w io.Writer, snap *Snapshot, sheetName string) error {
	f, err := buildWorkbook(snap, sheetName)
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

func buildWorkbook(snap *Snapshot, sheetName string) (*excelize.File, error) {
	f := excelize.NewFile()

	if sheetName == "" {
		sheetName = snap.Title
		if sheetName == "" {
			sheetName = DefaultSheet
		}
	}

	index, err := f.NewSheet(sheetName)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}
	f.SetActiveSheet(index)
	if sheetName != DefaultSheet {
		f.DeleteSheet(DefaultSheet)
	}

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 11, Color: "#FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})

	for col, c := range snap.Columns {
		cell := columnName(col+1) + "1"
		f.SetCellValue(sheetName, cell, c.Name)
		f.SetCellStyle(sheetName, cell, cell, headerStyle)
	}

	// Текст ячеек разбирается по типу колонки, чтобы числа и даты
	// попали в Excel значениями, а не строками
	conv := schema.NewConverter()
	styles := make(map[int]int)
	for rowIdx, row := range snap.Rows {
		for col, text := range row {
			if col >= len(snap.Columns) {
				break
			}
			c := snap.Columns[col]
			c.Nullable = true
			c.Length = 0

			cell := columnName(col+1) + strconv.Itoa(rowIdx+2)
			var value any = text
			if tv, err := conv.ParseValue(text, c); err == nil {
				value = typedValueToExcel(tv)
			}
			f.SetCellValue(sheetName, cell, value)
			applyCellFormat(f, sheetName, cell, schema.NormalizeType(c.Type), styles)
		}
	}

	for col := range snap.Columns {
		name := columnName(col + 1)
		f.SetColWidth(sheetName, name, name, 15)
	}

	return f, nil
}

func typedValueToExcel(tv *schema.TypedValue) any {
	switch {
	case tv.IsNull:
		return ""
	case tv.IntValue != nil:
		return *tv.IntValue
	case tv.FloatValue != nil:
		return *tv.FloatValue
	case tv.BoolValue != nil:
		if *tv.BoolValue {
			return "TRUE"
		}
		return "FALSE"
	case tv.TimeValue != nil:
		return *tv.TimeValue
	case tv.StringValue != nil:
		return *tv.StringValue
	default:
		return tv.RawValue
	}
}

// applyCellFormat - встроенные форматы Excel по типу колонки.
// styles кэширует id стиля по номеру формата.
func applyCellFormat(f *excelize.File, sheet, cell string, t schema.DataType, styles map[int]int) {
	var numFmt int
	switch t {
	case schema.TypeInteger:
		numFmt = 1
	case schema.TypeReal, schema.TypeDecimal:
		numFmt = 2
	case schema.TypeDate:
		numFmt = 14
	case schema.TypeDatetime, schema.TypeTimestamp:
		numFmt = 22
	default:
		return
	}
	style, ok := styles[numFmt]
	if !ok {
		var err error
		if style, err = f.NewStyle(&excelize.Style{NumFmt: numFmt}); err != nil {
			return
		}
		styles[numFmt] = style
	}
	f.SetCellStyle(sheet, cell, cell, style)
}

// columnName - номер колонки в имя Excel (1 → A, 27 → AA)
func columnName(col int) string {
	name := ""
	for col > 0 {
		col--
		name = string(rune('A'+col%26)) + name
		col /= 26
	}
	return name
}

//
// SPDX-License-Identifier: GPL-3.0-or-later
//
// Copyright (C) 2025 Aaron Mathis aaron.mathis@gmail.com
//
// This file is part of TradeFlow.
//
// TradeFlow is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// TradeFlow is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with TradeFlow. If not, see https://www.gnu.org/licenses/.

package readers

import (
	"bytes"
	"fmt"
	"io"

	"github.com/extrame/xls"
	"github.com/xuri/excelize/v2"
)

// This file implements the workbook readers. Both load the first sheet into memory and
// serve it through SheetReader, taking the first non-blank row as the header.

// ExcelReaderError wraps structured error information for the workbook readers.
type ExcelReaderError struct {
	Format string
	Op     string
	Err    error
}

func (e *ExcelReaderError) Error() string {
	return fmt.Sprintf("%s reader %s: %v", e.Format, e.Op, e.Err)
}

func (e *ExcelReaderError) Unwrap() error {
	return e.Err
}

// NewXLSXReader reads the first sheet of an Office Open XML workbook.
func NewXLSXReader(r io.Reader) (*SheetReader, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, &ExcelReaderError{Format: "xlsx", Op: "open", Err: err}
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return newSheetReader("xlsx", "", nil), nil
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, &ExcelReaderError{Format: "xlsx", Op: "read_sheet", Err: err}
	}
	return newSheetReader("xlsx", sheets[0], rows), nil
}

// NewXLSReader reads the first sheet of a legacy BIFF (.xls) workbook.
func NewXLSReader(r io.Reader) (*SheetReader, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, &ExcelReaderError{Format: "xls", Op: "read", Err: err}
	}

	wb, err := xls.OpenReader(bytes.NewReader(data), "utf-8")
	if err != nil {
		return nil, &ExcelReaderError{Format: "xls", Op: "open", Err: err}
	}

	sheet := wb.GetSheet(0)
	if sheet == nil {
		return newSheetReader("xls", "", nil), nil
	}

	rows := make([][]string, 0, int(sheet.MaxRow)+1)
	for i := 0; i <= int(sheet.MaxRow); i++ {
		row := xlsRow(sheet, i)
		if row == nil {
			rows = append(rows, nil)
			continue
		}
		cells := make([]string, 0, row.LastCol())
		for c := 0; c < row.LastCol(); c++ {
			cells = append(cells, row.Col(c))
		}
		rows = append(rows, cells)
	}
	return newSheetReader("xls", sheet.Name, rows), nil
}

// xlsRow returns row i of sheet, or nil when the sheet has no such row.
// WorkSheet.Row dereferences the missing entry instead of returning nil.
func xlsRow(sheet *xls.WorkSheet, i int) (row *xls.Row) {
	defer func() {
		if recover() != nil {
			row = nil
		}
	}()
	return sheet.Row(i)
}

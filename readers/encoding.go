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
	"io"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// decodeText buffers r and returns a UTF-8 reader over it along with the name of the
// detected encoding. A UTF-8 or UTF-16 byte-order mark wins; otherwise valid UTF-8 is
// passed through and anything else is decoded as Windows-1252, which is what spreadsheet
// tools on Windows export by default.
func decodeText(r io.Reader) (io.Reader, string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, "", err
	}

	name := "utf-8"
	var fallback encoding.Encoding = encoding.Nop
	switch {
	case bytes.HasPrefix(data, []byte{0xEF, 0xBB, 0xBF}):
		name = "utf-8-bom"
	case bytes.HasPrefix(data, []byte{0xFF, 0xFE}):
		name = "utf-16le"
	case bytes.HasPrefix(data, []byte{0xFE, 0xFF}):
		name = "utf-16be"
	case !utf8.Valid(data):
		name = "windows-1252"
		fallback = charmap.Windows1252
	}

	dec := unicode.BOMOverride(fallback.NewDecoder())
	return transform.NewReader(bytes.NewReader(data), dec), name, nil
}

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
	"net/url"
	"strings"

	"github.com/aaronlmathis/tradeflow/core"
)

// DefaultSpreadsheetHost is where shared spreadsheet links are exported from.
const DefaultSpreadsheetHost = "https://docs.google.com"

const spreadsheetMarker = "docs.google.com/spreadsheets"

// SpreadsheetExportURL rewrites a shared spreadsheet link into its CSV export link on host:
//
//	https://docs.google.com/spreadsheets/d/<id>/edit#gid=7
//	-> <host>/spreadsheets/d/<id>/export?format=csv&gid=7
//
// The link must contain docs.google.com/spreadsheets and a /d/<id> path segment.
func SpreadsheetExportURL(link, host string) (string, error) {
	link = strings.TrimSpace(link)
	if !strings.Contains(link, spreadsheetMarker) {
		return "", &core.InvalidSourceError{URL: link, Reason: "not a shared spreadsheet link"}
	}

	raw := link
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", &core.InvalidSourceError{URL: link, Reason: err.Error()}
	}

	id := documentID(u.Path)
	if id == "" {
		return "", &core.InvalidSourceError{URL: link, Reason: "no document id after /d/"}
	}

	if host == "" {
		host = DefaultSpreadsheetHost
	}
	export := strings.TrimRight(host, "/") + "/spreadsheets/d/" + id + "/export?format=csv"
	if gid := sheetGID(u); gid != "" {
		export += "&gid=" + url.QueryEscape(gid)
	}
	return export, nil
}

func documentID(path string) string {
	_, rest, found := strings.Cut(path, "/d/")
	if !found {
		return ""
	}
	id, _, _ := strings.Cut(rest, "/")
	for _, r := range id {
		if !(r == '-' || r == '_' || r >= '0' && r <= '9' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z') {
			return ""
		}
	}
	return id
}

// sheetGID finds the tab id in the query or in a "#gid=N" fragment.
func sheetGID(u *url.URL) string {
	if gid := u.Query().Get("gid"); gid != "" {
		return gid
	}
	if frag, err := url.ParseQuery(u.Fragment); err == nil {
		return frag.Get("gid")
	}
	return ""
}

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

package core

import (
	"strings"
	"time"
)

// Grant is the capability handed to ingestion by whatever performed authentication.
// TradeFlow never sees credentials; it only checks that a grant was issued.
type Grant struct {
	subject  string
	issuedAt time.Time
}

// NewGrant issues a grant for subject. The caller is responsible for having
// authenticated the subject beforehand.
func NewGrant(subject string) Grant {
	return Grant{subject: strings.TrimSpace(subject), issuedAt: time.Now()}
}

// Subject returns the authenticated subject the grant was issued to.
func (g Grant) Subject() string { return g.subject }

// IssuedAt returns when the grant was issued.
func (g Grant) IssuedAt() time.Time { return g.issuedAt }

// Valid reports whether the grant was issued through NewGrant for a non-empty subject.
// The zero Grant is never valid.
func (g Grant) Valid() bool {
	return g.subject != "" && !g.issuedAt.IsZero()
}

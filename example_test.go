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

package tradeflow_test

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/aaronlmathis/tradeflow"
	"github.com/aaronlmathis/tradeflow/anomaly"
	"github.com/aaronlmathis/tradeflow/core"
	"github.com/aaronlmathis/tradeflow/filter"
	"github.com/aaronlmathis/tradeflow/metrics"
	"github.com/aaronlmathis/tradeflow/readers"
	"github.com/aaronlmathis/tradeflow/writers"
)

const imports = "Month,Quanity,Year,Consignee State,Consignee,Exporter\n" +
	"sept,\"1,200 Kgs\",2023,CA,Acme,Globex\n" +
	"Oct,800,2024,NY,Beta,Initech\n"

// nopCloser keeps writers from closing os.Stdout.
type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }

func ExampleIngest() {
	ctx := context.Background()
	rel, err := tradeflow.Ingest(ctx, core.NewGrant("analyst"),
		readers.Input{Name: "imports.csv", Body: strings.NewReader(imports)})
	if err != nil {
		fmt.Println(err)
		return
	}
	fmt.Println(rel.Columns())
	fmt.Println(rel.Values(core.ColumnQuantity), rel.Values(core.ColumnQuarter))

	kpis, _ := metrics.Compute(ctx, rel)
	fmt.Printf("total=%.0f states=%d yoy=%.2f\n", kpis.TotalQuantity, kpis.DistinctStates, kpis.YoYGrowth)
	// Output:
	// [Month Quantity Year State Consignee Exporter Quarter]
	// [1200 800] [Q3 Q4]
	// total=2000 states=2 yoy=-33.33
}

func ExampleExport() {
	ctx := context.Background()
	rel, err := tradeflow.Ingest(ctx, core.NewGrant("analyst"),
		readers.Input{Name: "imports.csv", Body: strings.NewReader(imports)})
	if err != nil {
		fmt.Println(err)
		return
	}

	view, err := filter.Apply(ctx, rel, filter.Spec{core.ColumnState: filter.Value("NY")})
	if err != nil {
		fmt.Println(err)
		return
	}
	view, err = anomaly.Detect(ctx, view, core.ColumnQuantity, anomaly.MethodZScore, anomaly.DefaultParams())
	if err != nil {
		fmt.Println(err)
		return
	}

	sink, _ := writers.NewCSVWriter(nopCloser{os.Stdout}, writers.WithHeaders(view.Columns()))
	if _, err := tradeflow.Export(ctx, view, sink); err != nil {
		fmt.Println(err)
	}
	// Output:
	// Month,Quantity,Year,State,Consignee,Exporter,Quarter,is_anomaly
	// Oct,800,2024,NY,Beta,Initech,Q4,false
}

// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

/*
Package metrics counts ingestion events and forwards them to OpenTelemetry.

Every metric is declared in metrics.json and gets an ID constant in the generated
ids.go. Producers report values with Add or AddSlice:

	metrics.Add(metrics.IDRowsCommitted, metrics.MetricValue(len(rows)))

Counters report deltas and gauges report absolute values. Both are recorded on
the OTel meter of the process and accumulated locally, so a run can print a
summary with Snapshot without setting up a metrics exporter.

# Directory Structure

	metrics
	├── genids/         // generates ids.go from metrics.json
	├── runtimemetrics/ // periodic process and blob gauges
	├── doc.go          // this file
	├── ids.go          // generated metric ids
	├── metrics.go      // implement Add(), AddSlice() and Snapshot()
	├── metrics.json    // metric definitions, append only
	├── metrics_test.go // tests the metrics package
	└── types.go        // Metric, MetricID, MetricValue and MetricDefinition
*/
package metrics // import "go.opentelemetry.io/profile-ingest/metrics"

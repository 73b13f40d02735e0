// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package ingest // import "go.opentelemetry.io/profile-ingest/ingest"

import "go.opentelemetry.io/profile-ingest/metrics"

func (p *Pipeline) collectMetrics(s *Summary) {
	p.registry.ReportMetrics()
	metrics.AddSlice([]metrics.Metric{
		{
			ID:    metrics.IDMalformedPackets,
			Value: metrics.MetricValue(s.Malformed),
		},
	})
}

package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestConsumerCountersExport(t *testing.T) {
	ConsumerProcessed.WithLabelValues("metrics-test", "user.registered").Add(2)
	ConsumerDropped.WithLabelValues("metrics-test", "user.registered").Inc()
	ConsumerDecodeFailed.WithLabelValues("metrics-test", "user.registered").Inc()
	ConsumerReconnects.WithLabelValues("metrics-test", "user.registered").Inc()

	mfs, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}

	cases := []struct {
		name string
		want float64
	}{
		{"bus_consumer_processed_total", 2},
		{"bus_consumer_dropped_total", 1},
		{"bus_consumer_decode_failed_total", 1},
		{"bus_consumer_reconnects_total", 1},
	}
	for _, tc := range cases {
		got, ok := fetchCounterValue(mfs, tc.name, "metrics-test", "user.registered")
		if !ok {
			t.Fatalf("metric %q not found for metrics-test/user.registered", tc.name)
		}
		if got != tc.want {
			t.Fatalf("%s = %f, want %f", tc.name, got, tc.want)
		}
	}
}

func fetchCounterValue(mfs []*dto.MetricFamily, name, service, topic string) (float64, bool) {
	for _, mf := range mfs {
		if mf.GetName() != name {
			continue
		}
		for _, metric := range mf.GetMetric() {
			if matchesLabels(metric.GetLabel(), service, topic) {
				return metric.GetCounter().GetValue(), true
			}
		}
	}
	return 0, false
}

func matchesLabels(labels []*dto.LabelPair, service, topic string) bool {
	var serviceOK, topicOK bool
	for _, label := range labels {
		switch label.GetName() {
		case "service":
			serviceOK = label.GetValue() == service
		case "topic":
			topicOK = label.GetValue() == topic
		}
	}
	return serviceOK && topicOK
}

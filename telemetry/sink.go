package telemetry

import (
	"fmt"
	"time"

	"github.com/DataDog/datadog-go/statsd"
	metrics "github.com/armon/go-metrics"
	"github.com/sirupsen/logrus"
)

// Sink publishes one drained Metric to an external system.
type Sink interface {
	Send(m Metric) error
}

// GoMetricsSink adapts armon/go-metrics: every metric value becomes a
// gauge keyed "dqguard.<suite>.<name>", tagged via go-metrics' label
// support so per-run tags (partition, environment) survive into
// whatever sink.MetricSink is wired underneath (statsd, Prometheus
// push gateway, in-memory).
type GoMetricsSink struct {
	sink metrics.MetricSink
}

func NewGoMetricsSink(sink metrics.MetricSink) *GoMetricsSink {
	return &GoMetricsSink{sink: sink}
}

func (g *GoMetricsSink) Send(m Metric) error {
	labels := tagLabels(m.Tags)
	for name, value := range m.Values {
		key := []string{"dqguard", m.SuiteName, name}
		g.sink.SetGaugeWithLabels(key, float32(value), labels)
	}
	return nil
}

func tagLabels(tags map[string]string) []metrics.Label {
	labels := make([]metrics.Label, 0, len(tags))
	for k, v := range tags {
		labels = append(labels, metrics.Label{Name: k, Value: v})
	}
	return labels
}

// DataDogSink publishes via the dogstatsd protocol.
type DataDogSink struct {
	client *statsd.Client
}

func NewDataDogSink(addr string) (*DataDogSink, error) {
	client, err := statsd.New(addr, statsd.WithNamespace("dqguard."))
	if err != nil {
		return nil, fmt.Errorf("telemetry: datadog sink: %w", err)
	}
	return &DataDogSink{client: client}, nil
}

func (d *DataDogSink) Send(m Metric) error {
	tags := make([]string, 0, len(m.Tags))
	for k, v := range m.Tags {
		tags = append(tags, k+":"+v)
	}
	for name, value := range m.Values {
		if err := d.client.Gauge(m.SuiteName+"."+name, value, tags, 1); err != nil {
			return err
		}
	}
	return nil
}

func (d *DataDogSink) Close() error {
	return d.client.Close()
}

// Uploader drains ready entries from a Buffer and forwards each to a
// Sink, requeuing a failed send with an exponential backoff
// (2^retry_count seconds, capped at MaxBackoff) rather than dropping
// it.
type Uploader struct {
	Buffer     *Buffer
	Sink       Sink
	BatchSize  int
	MaxBackoff time.Duration
	Log        *logrus.Entry
}

func NewUploader(buf *Buffer, sink Sink) *Uploader {
	return &Uploader{
		Buffer:     buf,
		Sink:       sink,
		BatchSize:  32,
		MaxBackoff: 5 * time.Minute,
		Log:        logrus.WithField("component", "telemetry"),
	}
}

func (u *Uploader) log() *logrus.Entry {
	if u.Log != nil {
		return u.Log
	}
	return logrus.WithField("component", "telemetry")
}

// DrainOnce drains one batch and attempts to send each entry,
// requeuing failures with backoff. Returns the count sent
// successfully.
func (u *Uploader) DrainOnce() int {
	start := time.Now()
	entries := u.Buffer.Drain(u.BatchSize)
	sent := 0
	for _, e := range entries {
		if err := u.Sink.Send(e.Metric); err != nil {
			backoff := time.Duration(1<<uint(e.RetryCount)) * time.Second
			if backoff > u.MaxBackoff {
				backoff = u.MaxBackoff
			}
			if rqErr := u.Buffer.PushRetry(e, time.Now().Add(backoff)); rqErr != nil {
				u.log().WithError(rqErr).Warn("dropping metric: buffer overflow on retry")
			}
			continue
		}
		sent++
	}
	drainLatency.Observe(time.Since(start).Seconds())
	return sent
}

package store

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics — счётчики и гистограмма операций хранилища.
type Metrics struct {
	ops      *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewMetrics регистрирует метрики в reg (nil — prometheus.DefaultRegisterer).
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Metrics{
		ops: f.NewCounterVec(prometheus.CounterOpts{
			Name: "fsmodels_store_ops_total",
			Help: "Document store operations by collection, operation and result",
		}, []string{"collection", "op", "result"}),
		duration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "fsmodels_store_op_duration_seconds",
			Help:    "Document store operation latency in seconds",
			Buckets: prometheus.ExponentialBuckets(0.0001, 2, 14), // 0.1ms .. ~1.6s
		}, []string{"collection", "op"}),
	}
}

// Instrument оборачивает клиент: каждая операция документа считается и замеряется.
func Instrument(c Client, m *Metrics) Client {
	return &instrumented{Client: c, m: m}
}

type instrumented struct {
	Client
	m *Metrics
}

func (i *instrumented) Collection(name string) Collection {
	return &instrumentedCollection{Collection: i.Client.Collection(name), m: i.m}
}

type instrumentedCollection struct {
	Collection
	m *Metrics
}

func (c *instrumentedCollection) Doc(id string) Document {
	return &instrumentedDocument{Document: c.Collection.Doc(id), coll: c.Name(), m: c.m}
}

func (c *instrumentedCollection) NewDoc() Document {
	return &instrumentedDocument{Document: c.Collection.NewDoc(), coll: c.Name(), m: c.m}
}

type instrumentedDocument struct {
	Document
	coll string
	m    *Metrics
}

func (d *instrumentedDocument) observe(op string, start time.Time, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	d.m.ops.WithLabelValues(d.coll, op, result).Inc()
	d.m.duration.WithLabelValues(d.coll, op).Observe(time.Since(start).Seconds())
}

func (d *instrumentedDocument) Get(ctx context.Context) (*Snapshot, error) {
	start := time.Now()
	snap, err := d.Document.Get(ctx)
	d.observe("get", start, err)
	return snap, err
}

func (d *instrumentedDocument) Set(ctx context.Context, data map[string]any) (*WriteResult, error) {
	start := time.Now()
	res, err := d.Document.Set(ctx, data)
	d.observe("set", start, err)
	return res, err
}

func (d *instrumentedDocument) Update(ctx context.Context, data map[string]any) (*WriteResult, error) {
	start := time.Now()
	res, err := d.Document.Update(ctx, data)
	d.observe("update", start, err)
	return res, err
}

func (d *instrumentedDocument) Delete(ctx context.Context) (*WriteResult, error) {
	start := time.Now()
	res, err := d.Document.Delete(ctx)
	d.observe("delete", start, err)
	return res, err
}

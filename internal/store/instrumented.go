// SPDX-License-Identifier: MIT
package store

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/streamforge/provisiond/internal/model"
)

var (
	storeOps = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "provisiond_store_ops_total",
			Help: "Total repository operations",
		},
		[]string{"backend", "op", "result"}, // result=success/error
	)
	storeLat = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "provisiond_store_op_seconds",
			Help:    "Repository operation latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"backend", "op"},
	)
)

// instrumentedStore wraps any Repository to capture metrics.
type instrumentedStore struct {
	inner   Repository
	backend string
}

func NewInstrumentedStore(inner Repository, backend string) Repository {
	return &instrumentedStore{inner: inner, backend: backend}
}

func (i *instrumentedStore) observe(op string, start time.Time, err error) {
	res := "success"
	if err != nil {
		res = "error"
	}
	storeOps.WithLabelValues(i.backend, op, res).Inc()
	storeLat.WithLabelValues(i.backend, op).Observe(time.Since(start).Seconds())
}

func (i *instrumentedStore) FindByContentID(ctx context.Context, contentID string) (rec *model.ChannelMetadata, err error) {
	start := time.Now()
	defer func() { i.observe("find", start, err) }()
	return i.inner.FindByContentID(ctx, contentID)
}

func (i *instrumentedStore) Upsert(ctx context.Context, rec *model.ChannelMetadata) (err error) {
	start := time.Now()
	defer func() { i.observe("upsert", start, err) }()
	return i.inner.Upsert(ctx, rec)
}

func (i *instrumentedStore) ListFailed(ctx context.Context, limit int) (recs []*model.ChannelMetadata, err error) {
	start := time.Now()
	defer func() { i.observe("list_failed", start, err) }()
	return i.inner.ListFailed(ctx, limit)
}

func (i *instrumentedStore) Close() error {
	return i.inner.Close()
}

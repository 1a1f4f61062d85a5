// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package metrics exposes Prometheus counters for form submissions and
// notification emails.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Submission results
const (
	ResultValid   = "valid"
	ResultInvalid = "invalid"
	ResultError   = "error"
)

// Email kinds and results
const (
	EmailPrimary = "primary"
	EmailCopies  = "copies"
	EmailSent    = "sent"
	EmailFailed  = "failed"
)

// Metrics holds the forms counters. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry    *prometheus.Registry
	submissions *prometheus.CounterVec // by form and result
	emails      *prometheus.CounterVec // by kind and result
}

// New creates the counters and registers them, together with the Go and
// process collectors, on a dedicated registry.
func New() (*Metrics, error) {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		submissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "forms",
			Name:      "submissions_total",
			Help:      "Total number of form submissions by form slug and result",
		}, []string{"form", "result"}),
		emails: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "forms",
			Name:      "emails_total",
			Help:      "Total number of notification emails by kind and result",
		}, []string{"kind", "result"}),
	}

	for _, c := range []prometheus.Collector{
		m.submissions,
		m.emails,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	} {
		if err := m.registry.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Submission counts one processed submission.
func (m *Metrics) Submission(form, result string) {
	if m == nil {
		return
	}
	m.submissions.WithLabelValues(form, result).Inc()
}

// Email counts one email delivery attempt.
func (m *Metrics) Email(kind, result string) {
	if m == nil {
		return
	}
	m.emails.WithLabelValues(kind, result).Inc()
}

// CacheStats is a snapshot of the form cache counters.
type CacheStats struct {
	Hits   int64
	Misses int64
	Items  int
}

// RegisterCache exposes the counters reported by snapshot as gauges
// labelled with the cache backend.
func (m *Metrics) RegisterCache(backend string, snapshot func() CacheStats) error {
	labels := prometheus.Labels{"backend": backend}
	gauges := []struct {
		name, help string
		value      func(CacheStats) float64
	}{
		{"hits", "Form cache hits since startup", func(s CacheStats) float64 { return float64(s.Hits) }},
		{"misses", "Form cache misses since startup", func(s CacheStats) float64 { return float64(s.Misses) }},
		{"items", "Entries held by the form cache; zero when the backend does not track it", func(s CacheStats) float64 { return float64(s.Items) }},
	}
	for _, g := range gauges {
		value := g.value
		if err := m.registry.Register(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace:   "forms",
			Subsystem:   "cache",
			Name:        g.name,
			Help:        g.help,
			ConstLabels: labels,
		}, func() float64 { return value(snapshot()) })); err != nil {
			return err
		}
	}
	return nil
}

// Registry returns the underlying Prometheus registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

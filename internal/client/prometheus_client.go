package client

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"sentinel-guard/internal/model"

	"github.com/prometheus/client_golang/api"
	v1 "github.com/prometheus/client_golang/api/prometheus/v1"
	prommodel "github.com/prometheus/common/model"
)

// PrometheusClient wraps Prometheus API client
type PrometheusClient struct {
	client v1.API
	url    string
}

// NewPrometheusClient creates a new Prometheus client
func NewPrometheusClient(url string) (*PrometheusClient, error) {
	promClient, err := api.NewClient(api.Config{
		Address: url,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Prometheus client: %w", err)
	}

	v1API := v1.NewAPI(promClient)
	return &PrometheusClient{
		client: v1API,
		url:    url,
	}, nil
}

// Query executes a Prometheus query
func (p *PrometheusClient) Query(ctx context.Context, query string, timeout time.Duration) (prommodel.Value, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	result, _, err := p.client.Query(ctx, query, time.Now())
	return result, err
}

// QueryRange executes a Prometheus range query
func (p *PrometheusClient) QueryRange(ctx context.Context, query string, r v1.Range, timeout time.Duration) (prommodel.Value, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	result, _, err := p.client.QueryRange(ctx, query, r)
	return result, err
}

// SumRange runs a range query and sums every series per step, returning
// one TrendPoint per timestamp labelled with layout.
func (p *PrometheusClient) SumRange(ctx context.Context, query string, r v1.Range, layout string, timeout time.Duration) ([]model.TrendPoint, error) {
	value, err := p.QueryRange(ctx, query, r, timeout)
	if err != nil {
		return nil, fmt.Errorf("range query %q failed: %w", query, err)
	}
	return SumMatrix(value, layout)
}

// SumMatrix collapses a range query result into trend points.
func SumMatrix(value prommodel.Value, layout string) ([]model.TrendPoint, error) {
	matrix, ok := value.(prommodel.Matrix)
	if !ok {
		return nil, fmt.Errorf("unexpected result type %s", value.Type())
	}

	totals := make(map[prommodel.Time]float64)
	for _, stream := range matrix {
		for _, sample := range stream.Values {
			totals[sample.Timestamp] += float64(sample.Value)
		}
	}

	stamps := make([]prommodel.Time, 0, len(totals))
	for ts := range totals {
		stamps = append(stamps, ts)
	}
	sort.Slice(stamps, func(i, j int) bool { return stamps[i].Before(stamps[j]) })

	points := make([]model.TrendPoint, 0, len(stamps))
	for _, ts := range stamps {
		points = append(points, model.TrendPoint{
			Time:  ts.Time().Format(layout),
			Count: int64(math.Round(totals[ts])),
		})
	}
	return points, nil
}

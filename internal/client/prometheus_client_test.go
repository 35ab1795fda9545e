package client

import (
	"testing"
	"time"

	prommodel "github.com/prometheus/common/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSumMatrix(t *testing.T) {
	t0 := time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC)
	at := func(d time.Duration) prommodel.Time { return prommodel.TimeFromUnixNano(t0.Add(d).UnixNano()) }

	matrix := prommodel.Matrix{
		{
			Metric: prommodel.Metric{"attack_type": "DDoS"},
			Values: []prommodel.SamplePair{{Timestamp: at(time.Hour), Value: 2}, {Timestamp: at(0), Value: 1}},
		},
		{
			Metric: prommodel.Metric{"attack_type": "XSS"},
			Values: []prommodel.SamplePair{{Timestamp: at(0), Value: 3.4}},
		},
	}

	points, err := SumMatrix(matrix, "15:04")
	require.NoError(t, err)
	require.Len(t, points, 2)

	first := t0.In(time.Local).Format("15:04")
	assert.Equal(t, first, points[0].Time)
	assert.EqualValues(t, 4, points[0].Count)
	assert.EqualValues(t, 2, points[1].Count)
}

func TestSumMatrix_WrongType(t *testing.T) {
	_, err := SumMatrix(prommodel.Vector{}, "15:04")
	assert.Error(t, err)
}

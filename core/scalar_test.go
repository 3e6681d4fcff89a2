package core

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMetricValueJSONRoundTrip(t *testing.T) {
	values := []MetricValue{
		NoneValue(),
		LongValue(42),
		DoubleValue(3.14),
		StringValue("hello"),
		BoolValue(true),
		MapValue(map[string]MetricValue{"a": LongValue(1)}),
		HistogramMetricValue(&HistogramValue{
			LowerBounds: []float64{0, 1},
			Counts:      []int64{3, 4},
			Min:         0, Max: 2, Sum: 5, SumSquared: 9,
		}),
	}

	for _, v := range values {
		data, err := json.Marshal(v)
		require.NoError(t, err)

		var round MetricValue
		require.NoError(t, json.Unmarshal(data, &round))
		require.Equal(t, v.Kind(), round.Kind())
	}
}

func TestMetricValueArithmeticOnlyOnNumeric(t *testing.T) {
	_, ok := StringValue("x").AsFloat64()
	require.False(t, ok)

	f, ok := LongValue(7).AsFloat64()
	require.True(t, ok)
	require.Equal(t, 7.0, f)

	f, ok = DoubleValue(1.5).AsFloat64()
	require.True(t, ok)
	require.Equal(t, 1.5, f)
}

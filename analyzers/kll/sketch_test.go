package kll

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewRejectsSmallK(t *testing.T) {
	_, err := New(1)
	require.Error(t, err)
}

func TestQuantileOnUniformData(t *testing.T) {
	s, err := New(200)
	require.NoError(t, err)
	for i := 1; i <= 1000; i++ {
		s.Insert(float64(i))
	}

	median, err := s.Quantile(0.5)
	require.NoError(t, err)
	require.InDelta(t, 500, median, 1000*s.ErrorBound()+5)

	min, err := s.Quantile(0)
	require.NoError(t, err)
	require.Equal(t, 1.0, min)

	max, err := s.Quantile(1)
	require.NoError(t, err)
	require.Equal(t, 1000.0, max)
}

func TestQuantileEmptySketchFails(t *testing.T) {
	s, err := New(200)
	require.NoError(t, err)
	_, err = s.Quantile(0.5)
	require.Error(t, err)
}

func TestQuantileInvalidPhiFails(t *testing.T) {
	s, err := New(200)
	require.NoError(t, err)
	s.Insert(1)
	_, err = s.Quantile(1.5)
	require.Error(t, err)
}

func TestMergeRequiresEqualK(t *testing.T) {
	a, _ := New(100)
	b, _ := New(200)
	a.Insert(1)
	b.Insert(2)
	require.Error(t, a.Merge(b))
}

func TestMergeCombinesDistributions(t *testing.T) {
	a, _ := New(200)
	b, _ := New(200)
	for i := 1; i <= 500; i++ {
		a.Insert(float64(i))
	}
	for i := 501; i <= 1000; i++ {
		b.Insert(float64(i))
	}
	require.NoError(t, a.Merge(b))
	require.Equal(t, int64(1000), a.N)

	min, err := a.Quantile(0)
	require.NoError(t, err)
	require.Equal(t, 1.0, min)

	max, err := a.Quantile(1)
	require.NoError(t, err)
	require.Equal(t, 1000.0, max)
}

func TestInsertIgnoresNaN(t *testing.T) {
	s, _ := New(50)
	s.Insert(1)
	nan := 0.0
	nan = nan / nan
	s.Insert(nan)
	require.Equal(t, int64(1), s.N)
}

func TestMarshalRoundTrip(t *testing.T) {
	s, _ := New(50)
	for i := 0; i < 300; i++ {
		s.Insert(float64(i))
	}
	data, err := s.Marshal()
	require.NoError(t, err)

	restored, err := Unmarshal(data)
	require.NoError(t, err)
	require.Equal(t, s.N, restored.N)
	require.Equal(t, s.K, restored.K)

	q1, _ := s.Quantile(0.5)
	q2, _ := restored.Quantile(0.5)
	require.Equal(t, q1, q2)
}

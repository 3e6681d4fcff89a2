package core

import (
	"encoding/json"
	"fmt"
)

// Kind discriminates the tagged variants of MetricValue.
type Kind int

const (
	KindNone Kind = iota
	KindLong
	KindDouble
	KindString
	KindBoolean
	KindMap
	KindHistogram
)

func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindLong:
		return "long"
	case KindDouble:
		return "double"
	case KindString:
		return "string"
	case KindBoolean:
		return "boolean"
	case KindMap:
		return "map"
	case KindHistogram:
		return "histogram"
	default:
		return "unknown"
	}
}

// HistogramValue is the KindHistogram payload: fixed, ordered buckets plus
// the summary statistics the Histogram analyzer derives alongside them.
type HistogramValue struct {
	LowerBounds []float64
	Counts      []int64
	Min, Max    float64
	Sum         float64
	SumSquared  float64
}

// MetricValue is a tagged scalar: Long, Double, String, Boolean, a nested
// Map, a Histogram, or None. Arithmetic helpers only accept the numeric
// variants (Long, Double); everything else returns ok=false. Serialization
// is stable across variants (see MarshalJSON).
type MetricValue struct {
	kind      Kind
	long      int64
	double    float64
	str       string
	boolean   bool
	m         map[string]MetricValue
	histogram *HistogramValue
}

func NoneValue() MetricValue                 { return MetricValue{kind: KindNone} }
func LongValue(v int64) MetricValue          { return MetricValue{kind: KindLong, long: v} }
func DoubleValue(v float64) MetricValue      { return MetricValue{kind: KindDouble, double: v} }
func StringValue(v string) MetricValue       { return MetricValue{kind: KindString, str: v} }
func BoolValue(v bool) MetricValue           { return MetricValue{kind: KindBoolean, boolean: v} }
func MapValue(v map[string]MetricValue) MetricValue {
	return MetricValue{kind: KindMap, m: v}
}
func HistogramMetricValue(h *HistogramValue) MetricValue {
	return MetricValue{kind: KindHistogram, histogram: h}
}

func (v MetricValue) Kind() Kind    { return v.kind }
func (v MetricValue) IsNone() bool  { return v.kind == KindNone }
func (v MetricValue) IsNumeric() bool {
	return v.kind == KindLong || v.kind == KindDouble
}

// AsFloat64 returns the numeric value of a Long or Double variant. It
// returns ok=false for every other variant; no implicit string parsing.
func (v MetricValue) AsFloat64() (float64, bool) {
	switch v.kind {
	case KindLong:
		return float64(v.long), true
	case KindDouble:
		return v.double, true
	default:
		return 0, false
	}
}

func (v MetricValue) AsString() (string, bool) {
	if v.kind != KindString {
		return "", false
	}
	return v.str, true
}

func (v MetricValue) AsBool() (bool, bool) {
	if v.kind != KindBoolean {
		return false, false
	}
	return v.boolean, true
}

func (v MetricValue) AsMap() (map[string]MetricValue, bool) {
	if v.kind != KindMap {
		return nil, false
	}
	return v.m, true
}

func (v MetricValue) AsHistogram() (*HistogramValue, bool) {
	if v.kind != KindHistogram {
		return nil, false
	}
	return v.histogram, true
}

type wireValue struct {
	Kind  string          `json:"kind"`
	Value json.RawMessage `json:"value,omitempty"`
}

// MarshalJSON keeps the wire shape stable across variants: a "kind"
// discriminator plus a "value" payload whose shape depends on it.
func (v MetricValue) MarshalJSON() ([]byte, error) {
	w := wireValue{Kind: v.kind.String()}
	var (
		raw []byte
		err error
	)
	switch v.kind {
	case KindNone:
		return json.Marshal(w)
	case KindLong:
		raw, err = json.Marshal(v.long)
	case KindDouble:
		raw, err = json.Marshal(v.double)
	case KindString:
		raw, err = json.Marshal(v.str)
	case KindBoolean:
		raw, err = json.Marshal(v.boolean)
	case KindMap:
		raw, err = json.Marshal(v.m)
	case KindHistogram:
		raw, err = json.Marshal(v.histogram)
	default:
		return nil, fmt.Errorf("metric value: unknown kind %d", v.kind)
	}
	if err != nil {
		return nil, err
	}
	w.Value = raw
	return json.Marshal(w)
}

func (v *MetricValue) UnmarshalJSON(data []byte) error {
	var w wireValue
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	switch w.Kind {
	case "none", "":
		*v = NoneValue()
	case "long":
		var i int64
		if err := json.Unmarshal(w.Value, &i); err != nil {
			return err
		}
		*v = LongValue(i)
	case "double":
		var f float64
		if err := json.Unmarshal(w.Value, &f); err != nil {
			return err
		}
		*v = DoubleValue(f)
	case "string":
		var s string
		if err := json.Unmarshal(w.Value, &s); err != nil {
			return err
		}
		*v = StringValue(s)
	case "boolean":
		var b bool
		if err := json.Unmarshal(w.Value, &b); err != nil {
			return err
		}
		*v = BoolValue(b)
	case "map":
		var m map[string]MetricValue
		if err := json.Unmarshal(w.Value, &m); err != nil {
			return err
		}
		*v = MapValue(m)
	case "histogram":
		var h HistogramValue
		if err := json.Unmarshal(w.Value, &h); err != nil {
			return err
		}
		*v = HistogramMetricValue(&h)
	default:
		return fmt.Errorf("metric value: unknown kind %q", w.Kind)
	}
	return nil
}

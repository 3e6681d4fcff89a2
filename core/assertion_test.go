package core

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAssertionEvaluate(t *testing.T) {
	tests := []struct {
		assertion Assertion
		x         float64
		want      bool
		desc      string
	}{
		{Equals(10), 10, true, "equal to 10"},
		{Equals(10), 11, false, "equal to 10"},
		{NotEquals(10), 11, true, "not equal to 10"},
		{GreaterThan(10), 11, true, "greater than 10"},
		{GreaterThan(10), 10, false, "greater than 10"},
		{GreaterThanOrEqual(10), 10, true, "greater than or equal to 10"},
		{LessThan(10), 9, true, "less than 10"},
		{LessThanOrEqual(10), 10, true, "less than or equal to 10"},
		{Between(5, 10), 5, true, "between 5 and 10"},
		{Between(5, 10), 10, true, "between 5 and 10"},
		{Between(5, 10), 4.999, false, "between 5 and 10"},
		{In([]float64{1, 2, 3}), 2, true, "in [1 2 3]"},
		{In([]float64{1, 2, 3}), 4, false, "in [1 2 3]"},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s@%v", tt.desc, tt.x), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.assertion.Evaluate(tt.x))
			assert.Equal(t, tt.desc, tt.assertion.Description())
		})
	}
}

func TestLogicalOperatorReduce(t *testing.T) {
	tests := []struct {
		op      LogicalOperator
		results []bool
		want    bool
	}{
		{All(), []bool{true, true}, true},
		{All(), []bool{true, false}, false},
		{All(), nil, true}, // vacuous success on zero columns
		{Any(), []bool{false, true}, true},
		{Any(), []bool{false, false}, false},
		{AtLeast(2), []bool{true, true, false}, true},
		{AtLeast(2), []bool{true, false, false}, false},
		{AtMost(1), []bool{true, false, false}, true},
		{AtMost(1), []bool{true, true, false}, false},
		{Exactly(2), []bool{true, true, false}, true},
		{Exactly(2), []bool{true, true, true}, false},
	}

	for _, tt := range tests {
		t.Run(tt.op.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.op.Reduce(tt.results))
		})
	}
}

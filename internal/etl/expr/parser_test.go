package expr

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAndEval(t *testing.T) {
	row := map[string]any{
		"amount":   float64(100),
		"quantity": 4,
		"rate":     "0.25",
	}

	tests := []struct {
		formula string
		want    float64
	}{
		{"1 + 2", 3},
		{"2 + 3 * 4", 14},
		{"(2 + 3) * 4", 20},
		{"10 - 4 - 3", 3},
		{"10 / 4", 2.5},
		{"10 % 3", 1},
		{"amount * rate", 25},
		{"amount / quantity", 25},
		{"-amount + 50", -50},
		{"-2 * 3", -6},
		{"amount * (1 - rate)", 75},
		{"1.5 + 0.25", 1.75},
	}

	for _, tt := range tests {
		t.Run(tt.formula, func(t *testing.T) {
			node, err := Parse(tt.formula)
			require.NoError(t, err)

			got, err := node.Eval(row)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestParseErrors(t *testing.T) {
	formulas := []string{
		"",
		"1 +",
		"(1 + 2",
		"1 ++ 2",
		"a b",
		"$amount",
		"1 2",
	}
	for _, f := range formulas {
		t.Run(f, func(t *testing.T) {
			_, err := Parse(f)
			assert.Error(t, err)
		})
	}
}

func TestEvalErrors(t *testing.T) {
	t.Run("unknown field", func(t *testing.T) {
		node, err := Parse("missing + 1")
		require.NoError(t, err)
		_, err = node.Eval(map[string]any{})
		assert.ErrorContains(t, err, "missing")
	})

	t.Run("division by zero", func(t *testing.T) {
		node, err := Parse("1 / n")
		require.NoError(t, err)
		_, err = node.Eval(map[string]any{"n": 0})
		assert.Error(t, err)
	})

	t.Run("non-numeric field", func(t *testing.T) {
		node, err := Parse("v + 1")
		require.NoError(t, err)
		_, err = node.Eval(map[string]any{"v": "not a number"})
		assert.Error(t, err)
	})
}

func TestNoFunctionCalls(t *testing.T) {
	// An identifier followed by a parenthesized expression is not a call;
	// the grammar has no call syntax, so this must fail to parse.
	_, err := Parse("exec(1)")
	assert.Error(t, err)
}

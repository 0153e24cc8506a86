package repl

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func session(t *testing.T, inputs ...string) string {
	t.Helper()
	r := New()
	var out bytes.Buffer
	r.out = &out
	for _, src := range inputs {
		r.eval(src)
	}
	return out.String()
}

func TestEchoesExpressionValues(t *testing.T) {
	assert.Equal(t, "3\n", session(t, `1 + 2`))
	assert.Equal(t, "", session(t, `let x = 1`), "declarations echo nothing")
	assert.Equal(t, "[1, 2]\n", session(t, `[1, 2]`))
}

func TestBindingsPersistAcrossInputs(t *testing.T) {
	out := session(t,
		`let x = 40`,
		`x = x + 2`,
		`x`,
	)
	assert.Equal(t, "42\n", out)
}

func TestFaultKeepsSessionAlive(t *testing.T) {
	out := session(t,
		`let x = 7`,
		`1 / 0`,
		`x`,
	)
	assert.Contains(t, out, "ArithmeticFault: division by zero")
	assert.Contains(t, out, "7\n")
}

func TestParseErrorReported(t *testing.T) {
	out := session(t, `let = 3`)
	assert.Contains(t, out, "parse error")
}

func TestFunctionsUsableInLaterInputs(t *testing.T) {
	out := session(t,
		`fn double(n) { return n * 2; }`,
		`double(21)`,
	)
	assert.Equal(t, "42\n", out)
}

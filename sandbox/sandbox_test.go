package sandbox

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runJSON(t *testing.T, r *Runner, code string) map[string]any {
	t.Helper()
	res := r.Run(context.Background(), code)
	data, err := json.Marshal(res)
	require.NoError(t, err)
	var out map[string]any
	require.NoError(t, json.Unmarshal(data, &out))
	return out
}

func TestThrownStringBecomesError(t *testing.T) {
	out := runJSON(t, New(), `console.log("before"); throw "boom";`)
	assert.Equal(t, "boom", out["error"])
	assert.Equal(t, []any{"before"}, out["logs"])
	assert.NotContains(t, out, "result")
}

func TestThrownErrorUsesMessage(t *testing.T) {
	res := New().Run(context.Background(), `throw new Error("boom")`)
	assert.True(t, res.Failed())
	assert.Equal(t, "boom", res.Error)
}

func TestReturnValueBecomesResult(t *testing.T) {
	out := runJSON(t, New(), `return 42`)
	assert.Equal(t, float64(42), out["result"])
	assert.Equal(t, []any{}, out["logs"])
	assert.NotContains(t, out, "error")
}

func TestAwaitAndObjectResult(t *testing.T) {
	res := New().Run(context.Background(), `
		const v = await Promise.resolve({a: 1, b: [1, 2]});
		console.info("got", v);
		return v;
	`)
	require.False(t, res.Failed(), res.Error)
	assert.Equal(t, []string{`got {"a":1,"b":[1,2]}`}, res.Logs)
	data, err := json.Marshal(res)
	require.NoError(t, err)
	assert.JSONEq(t, `{"logs":["got {\"a\":1,\"b\":[1,2]}"],"result":{"a":1,"b":[1,2]}}`, string(data))
}

func TestConsoleLevelsCapturedInOrder(t *testing.T) {
	res := New().Run(context.Background(), `
		console.log("a"); console.warn("b", 2); console.error(null); console.debug(undefined);
	`)
	assert.Equal(t, []string{"a", "b 2", "null", "undefined"}, res.Logs)
	assert.Nil(t, res.Value)
}

func TestRejectedPromise(t *testing.T) {
	res := New().Run(context.Background(), `await Promise.reject(new TypeError("nope"))`)
	assert.Equal(t, "nope", res.Error)
}

func TestSyntaxErrorIsCaptured(t *testing.T) {
	res := New().Run(context.Background(), `return (`)
	assert.True(t, res.Failed())
}

func TestNoHostBindings(t *testing.T) {
	res := New().Run(context.Background(), `return [typeof document, typeof window, typeof require, typeof fetch]`)
	require.False(t, res.Failed(), res.Error)
	assert.Equal(t, []any{"undefined", "undefined", "undefined", "undefined"}, res.Value)
}

func TestInfiniteLoopTimesOut(t *testing.T) {
	r := New(WithTimeout(100 * time.Millisecond))
	start := time.Now()
	res := r.Run(context.Background(), `console.log("spin"); while (true) {}`)
	assert.Equal(t, "execution timed out", res.Error)
	assert.Equal(t, []string{"spin"}, res.Logs)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()
	res := New(WithTimeout(0)).Run(ctx, `while (true) {}`)
	assert.Equal(t, "execution cancelled", res.Error)
}

func TestNeutralize(t *testing.T) {
	assert.Equal(t, `"<\/script>"`, Neutralize(`"</script>"`))
	assert.Equal(t, `'<\/SCRIPT>'`, Neutralize(`'</SCRIPT>'`))
	res := New().Run(context.Background(), `return "</script>".length`)
	require.False(t, res.Failed(), res.Error)
	assert.EqualValues(t, 9, res.Value)
}

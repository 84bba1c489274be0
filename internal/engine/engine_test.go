package engine

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/dreamware/litedb/internal/aof"
	"github.com/dreamware/litedb/internal/protocol"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	dir := t.TempDir()
	a, err := aof.Open(filepath.Join(dir, "test.aof"), aof.ModeAppend)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	return New(a, zap.NewNop())
}

func exec(e *Engine, name string, args ...string) protocol.Response {
	return e.Execute(protocol.Request{Name: name, Args: args})
}

func decode(t *testing.T, r protocol.Response) protocol.Decoded {
	t.Helper()
	buf := protocol.Encode(nil, r)
	d, rest, err := protocol.DecodeResponse(buf)
	require.NoError(t, err)
	assert.Empty(t, rest)
	return d
}

func TestPingRespondsPong(t *testing.T) {
	e := newTestEngine(t)
	d := decode(t, exec(e, "PING"))
	assert.Equal(t, protocol.TagStr, d.Tag)
	assert.Equal(t, "PONG", d.Str)
}

func TestSetGetDel(t *testing.T) {
	e := newTestEngine(t)
	assert.Equal(t, protocol.TagNil, decode(t, exec(e, "SET", "a", "1")).Tag)
	assert.Equal(t, "1", decode(t, exec(e, "GET", "a")).Str)

	d := decode(t, exec(e, "DEL", "a"))
	assert.Equal(t, protocol.TagInt, d.Tag)
	assert.EqualValues(t, 1, d.Int)

	assert.Equal(t, protocol.TagNil, decode(t, exec(e, "GET", "a")).Tag)
}

func TestSetOverwritesExistingKey(t *testing.T) {
	e := newTestEngine(t)
	exec(e, "SET", "a", "1")
	exec(e, "SET", "a", "2")
	assert.Equal(t, "2", decode(t, exec(e, "GET", "a")).Str)
}

func TestHashRoundTrip(t *testing.T) {
	e := newTestEngine(t)
	d := decode(t, exec(e, "HSET", "h", "x", "1"))
	assert.EqualValues(t, 1, d.Int)
	d = decode(t, exec(e, "HSET", "h", "y", "2"))
	assert.EqualValues(t, 1, d.Int)

	assert.Equal(t, "1", decode(t, exec(e, "HGET", "h", "x")).Str)

	all := decode(t, exec(e, "HGETALL", "h"))
	require.Equal(t, protocol.TagArr, all.Tag)
	require.Len(t, all.Arr, 4)
	got := map[string]string{}
	for i := 0; i < len(all.Arr); i += 2 {
		got[all.Arr[i].Str] = all.Arr[i+1].Str
	}
	assert.Equal(t, map[string]string{"x": "1", "y": "2"}, got)
}

func TestHSetUpdateReturnsZero(t *testing.T) {
	e := newTestEngine(t)
	exec(e, "HSET", "h", "x", "1")
	d := decode(t, exec(e, "HSET", "h", "x", "2"))
	assert.EqualValues(t, 0, d.Int)
	assert.Equal(t, "2", decode(t, exec(e, "HGET", "h", "x")).Str)
}

func TestListPushRangeTrimLen(t *testing.T) {
	e := newTestEngine(t)
	decode(t, exec(e, "LPUSH", "L", "a"))
	decode(t, exec(e, "LPUSH", "L", "b"))
	decode(t, exec(e, "RPUSH", "L", "c"))

	rng := decode(t, exec(e, "LRANGE", "L", "0", "2"))
	require.Equal(t, protocol.TagArr, rng.Tag)
	require.Len(t, rng.Arr, 3)
	assert.Equal(t, []string{"b", "a", "c"}, []string{rng.Arr[0].Str, rng.Arr[1].Str, rng.Arr[2].Str})

	assert.Equal(t, protocol.TagNil, decode(t, exec(e, "LTRIM", "L", "1", "2")).Tag)

	d := decode(t, exec(e, "LLEN", "L"))
	assert.EqualValues(t, 2, d.Int)
}

func TestSortedSetAddScoreQuery(t *testing.T) {
	e := newTestEngine(t)
	assert.EqualValues(t, 1, decode(t, exec(e, "ZADD", "S", "1", "alice")).Int)
	assert.EqualValues(t, 1, decode(t, exec(e, "ZADD", "S", "2", "bob")).Int)
	assert.EqualValues(t, 1, decode(t, exec(e, "ZADD", "S", "3", "carol")).Int)

	score := decode(t, exec(e, "ZSCORE", "S", "bob"))
	assert.Equal(t, protocol.TagFloat, score.Tag)
	assert.InDelta(t, 2.0, score.Float, 1e-6)

	q := decode(t, exec(e, "ZQUERY", "S", "-inf", `""`, "1", "2"))
	require.Equal(t, protocol.TagArr, q.Tag)
	require.Len(t, q.Arr, 4)
	assert.Equal(t, "bob", q.Arr[0].Str)
	assert.InDelta(t, 2.0, q.Arr[1].Float, 1e-6)
	assert.Equal(t, "carol", q.Arr[2].Str)
	assert.InDelta(t, 3.0, q.Arr[3].Float, 1e-6)
}

func TestZQueryScoreModeRequiresExactMatch(t *testing.T) {
	e := newTestEngine(t)
	exec(e, "ZADD", "S", "1", "alice")
	exec(e, "ZADD", "S", "3", "bob")

	q := decode(t, exec(e, "ZQUERY", "S", "2", `""`, "0", "10"))
	assert.Equal(t, protocol.TagErr, q.Tag)

	q = decode(t, exec(e, "ZQUERY", "S", "3", `""`, "0", "10"))
	require.Equal(t, protocol.TagArr, q.Tag)
	require.Len(t, q.Arr, 2)
	assert.Equal(t, "bob", q.Arr[0].Str)
}

func TestZAddUpdateReturnsZero(t *testing.T) {
	e := newTestEngine(t)
	exec(e, "ZADD", "S", "1", "alice")
	d := decode(t, exec(e, "ZADD", "S", "5", "alice"))
	assert.EqualValues(t, 0, d.Int)
	score := decode(t, exec(e, "ZSCORE", "S", "alice"))
	assert.InDelta(t, 5.0, score.Float, 1e-6)
}

func TestTypeMismatchReturnsErr(t *testing.T) {
	e := newTestEngine(t)
	assert.Equal(t, protocol.TagNil, decode(t, exec(e, "GET", "missing")).Tag)

	exec(e, "SET", "x", "1")
	d := decode(t, exec(e, "LPUSH", "x", "y"))
	assert.Equal(t, protocol.TagErr, d.Tag)

	assert.Equal(t, "1", decode(t, exec(e, "GET", "x")).Str)
}

func TestUnknownCommandReturnsErr(t *testing.T) {
	e := newTestEngine(t)
	assert.Equal(t, protocol.TagErr, decode(t, exec(e, "NOSUCHCOMMAND")).Tag)
}

func TestWrongArityReturnsErr(t *testing.T) {
	e := newTestEngine(t)
	assert.Equal(t, protocol.TagErr, decode(t, exec(e, "SET", "onlyonearg")).Tag)
}

func TestExistsHexistsLexistsReturnIntZeroOnMissing(t *testing.T) {
	e := newTestEngine(t)
	assert.EqualValues(t, 0, decode(t, exec(e, "EXISTS", "nope")).Int)
	assert.EqualValues(t, 0, decode(t, exec(e, "HEXISTS", "nope", "f")).Int)
	assert.EqualValues(t, 0, decode(t, exec(e, "LEXISTS", "nope", "v")).Int)
}

func TestLRangeOutOfRangeIsErr(t *testing.T) {
	e := newTestEngine(t)
	exec(e, "RPUSH", "L", "a")
	d := decode(t, exec(e, "LRANGE", "L", "-1", "0"))
	assert.Equal(t, protocol.TagErr, d.Tag)
}

func TestStrictIntegerParsingRejectsTrailingBytes(t *testing.T) {
	e := newTestEngine(t)
	exec(e, "RPUSH", "L", "a")
	d := decode(t, exec(e, "LRANGE", "L", "0x1", "0"))
	assert.Equal(t, protocol.TagErr, d.Tag)
}

func TestMutatingCommandsAreLoggedToAOF(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.aof")
	a, err := aof.Open(path, aof.ModeAppend)
	require.NoError(t, err)
	e := New(a, zap.NewNop())

	exec(e, "SET", "a", "1")
	exec(e, "GET", "a")
	require.NoError(t, a.Flush())
	require.NoError(t, a.Close())

	body, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "SET a 1\n", string(body))
}

func TestFailedMutationIsNotLoggedToAOF(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.aof")
	a, err := aof.Open(path, aof.ModeAppend)
	require.NoError(t, err)
	e := New(a, zap.NewNop())

	exec(e, "SET", "x", "1")
	d := decode(t, exec(e, "LPUSH", "x", "y"))
	require.Equal(t, protocol.TagErr, d.Tag)
	require.NoError(t, a.Flush())
	require.NoError(t, a.Close())

	body, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "SET x 1\n", string(body))
}

func TestReplayDoesNotWriteAOFOrRespond(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.aof")
	a, err := aof.Open(path, aof.ModeAppend)
	require.NoError(t, err)
	e := New(a, zap.NewNop())

	e.Replay(protocol.Request{Name: "SET", Args: []string{"a", "1"}})
	require.NoError(t, a.Flush())
	require.NoError(t, a.Close())

	body, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Empty(t, string(body))

	assert.Equal(t, "1", decode(t, exec(e, "GET", "a")).Str)
}

func TestPipeliningOrderIsPreservedByRepeatedExecute(t *testing.T) {
	e := newTestEngine(t)
	exec(e, "RPUSH", "L", "x")
	exec(e, "RPUSH", "L", "y")
	exec(e, "RPUSH", "L", "z")
	rng := decode(t, exec(e, "LRANGE", "L", "0", "2"))
	require.Len(t, rng.Arr, 3)
	assert.Equal(t, []string{"x", "y", "z"}, []string{rng.Arr[0].Str, rng.Arr[1].Str, rng.Arr[2].Str})
}

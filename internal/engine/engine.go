// Package engine dispatches parsed commands against liteDB's keyspace,
// producing exactly one framed protocol.Response per request, per
// server.c's do_request/try_process_single_request dispatch table and
// each *_command handler it calls into.
//
// Every handler is free of I/O: it reads and mutates the keyspace and
// returns a Response. Execute wraps dispatch with an AOF write-on-success
// rule (derived by reading del_command, whose call into handle_aof_write
// sits only on the success path, never reached from an error return);
// Replay wraps the same dispatch table without ever writing the AOF or
// counting toward client-facing metrics: the replay driver returns no
// bytes and must not re-log what it is replaying.
package engine

import (
	"math"
	"strconv"

	"go.uber.org/zap"

	"github.com/dreamware/litedb/internal/aof"
	"github.com/dreamware/litedb/internal/hashmap"
	"github.com/dreamware/litedb/internal/list"
	"github.com/dreamware/litedb/internal/metrics"
	"github.com/dreamware/litedb/internal/protocol"
	"github.com/dreamware/litedb/internal/value"
	"github.com/dreamware/litedb/internal/zset"
)

// zqueryEmptyName is the literal wire token ZQUERY uses to mean "no name
// given" — a two-character empty-quoted-string argument, never confused
// with ParseRequest's zero-arg case because it survives tokenization as
// its own field.
const zqueryEmptyName = `""`

// negInf is the literal ZQUERY score argument selecting rank mode.
const negInf = "-inf"

// Engine owns the primary keyspace and the AOF it logs mutations to. It is
// not safe for concurrent use: a single goroutine is assumed to drive every
// command, exactly as the reference assumes a single event-loop thread.
type Engine struct {
	keys *hashmap.Map[value.Value]
	log  *aof.AOF
	zlog *zap.Logger
}

// New returns an Engine with an empty keyspace, logging mutations to a.
func New(a *aof.AOF, zlog *zap.Logger) *Engine {
	return &Engine{keys: hashmap.New[value.Value](), log: a, zlog: zlog}
}

type cmdFunc func(e *Engine, args []string) protocol.Response

type cmdSpec struct {
	arity    int
	mutating bool
	fn       cmdFunc
}

var commands = map[string]cmdSpec{
	"PING":     {0, false, cmdPing},
	"EXISTS":   {1, false, cmdExists},
	"DEL":      {1, true, cmdDel},
	"KEYS":     {0, false, cmdKeys},
	"FLUSHALL": {0, true, cmdFlushAll},
	"GET":      {1, false, cmdGet},
	"SET":      {2, true, cmdSet},
	"HEXISTS":  {2, false, cmdHExists},
	"HSET":     {3, true, cmdHSet},
	"HGET":     {2, false, cmdHGet},
	"HDEL":     {2, true, cmdHDel},
	"HGETALL":  {1, false, cmdHGetAll},
	"LEXISTS":  {2, false, cmdLExists},
	"LPUSH":    {2, true, cmdLPush},
	"RPUSH":    {2, true, cmdRPush},
	"LPOP":     {1, true, cmdLPop},
	"RPOP":     {1, true, cmdRPop},
	"LLEN":     {1, false, cmdLLen},
	"LRANGE":   {3, false, cmdLRange},
	"LTRIM":    {3, true, cmdLTrim},
	"LSET":     {3, true, cmdLSet},
	"ZADD":     {3, true, cmdZAdd},
	"ZREM":     {2, true, cmdZRem},
	"ZSCORE":   {2, false, cmdZScore},
	"ZQUERY":   {5, false, cmdZQuery},
}

// dispatch resolves req against the command table and runs its handler,
// reporting whether the command is a recognized mutating command alongside
// the response. Unknown commands and arity mismatches are reported as ERR.
func (e *Engine) dispatch(req protocol.Request) (resp protocol.Response, mutating bool, known bool) {
	if req.Name == "" {
		return protocol.Err("empty command"), false, false
	}
	spec, ok := commands[req.Name]
	if !ok {
		return protocol.Err("unknown command: " + req.Name), false, false
	}
	if len(req.Args) != spec.arity {
		return protocol.Err("wrong number of arguments for " + req.Name), false, true
	}
	return spec.fn(e, req.Args), spec.mutating, true
}

// Execute runs req against the keyspace, appends it to the AOF if it is a
// mutating command that succeeded, and returns the response to send to the
// client. This is the client-facing entry point; Replay is the
// AOF-recovery entry point and never calls this.
func (e *Engine) Execute(req protocol.Request) protocol.Response {
	resp, mutating, known := e.dispatch(req)

	outcome := "ok"
	if protocol.IsErr(resp) {
		outcome = "err"
	}
	if known {
		metrics.CommandsTotal.WithLabelValues(req.Name, outcome).Inc()
	} else {
		metrics.CommandsTotal.WithLabelValues("unknown", outcome).Inc()
	}

	if mutating && !protocol.IsErr(resp) {
		line := protocol.EncodeLine(req.Name, req.Args)
		if err := e.log.Write(line + "\n"); err != nil {
			e.zlog.Warn("aof write failed", zap.Error(err), zap.String("command", req.Name))
		} else {
			metrics.AOFWritesTotal.Inc()
		}
	}
	return resp
}

// Replay re-executes req as part of AOF recovery: it runs the same
// dispatch table but never re-logs the command and never reports a
// response to any client.
func (e *Engine) Replay(req protocol.Request) {
	e.dispatch(req)
	metrics.ReplayedCommandsTotal.Inc()
}

func cmdPing(_ *Engine, _ []string) protocol.Response {
	return protocol.Str("PONG")
}

func cmdExists(e *Engine, args []string) protocol.Response {
	_, ok := e.keys.Get(args[0])
	if ok {
		return protocol.Int(1)
	}
	return protocol.Int(0)
}

func cmdDel(e *Engine, args []string) protocol.Response {
	_, ok := e.keys.Remove(args[0])
	if ok {
		return protocol.Int(1)
	}
	return protocol.Int(0)
}

func cmdKeys(e *Engine, _ []string) protocol.Response {
	elems := make([]protocol.Response, 0, e.keys.Len())
	for k := range e.keys.All() {
		elems = append(elems, protocol.Str(k))
	}
	return protocol.Arr(elems...)
}

func cmdFlushAll(e *Engine, _ []string) protocol.Response {
	e.keys.Clear()
	return protocol.Nil
}

func cmdGet(e *Engine, args []string) protocol.Response {
	v, ok := e.keys.Get(args[0])
	if !ok {
		return protocol.Nil
	}
	if v.Kind != value.KindString {
		return protocol.Err("wrong type: " + v.Kind.String())
	}
	return protocol.Str(v.Str())
}

func cmdSet(e *Engine, args []string) protocol.Response {
	key, val := args[0], args[1]
	if existing, ok := e.keys.Get(key); ok && existing.Kind != value.KindString {
		return protocol.Err("wrong type: " + existing.Kind.String())
	}
	e.keys.Set(key, value.NewString(val))
	return protocol.Nil
}

// resolveHash fetches key's Hash container, creating an empty one if
// absent (HSET's create-on-miss rule), or reports a type-guard ERR if the
// key holds something else.
func (e *Engine) resolveHash(key string, create bool) (*value.Hash, protocol.Response) {
	v, ok := e.keys.Get(key)
	if !ok {
		if !create {
			return nil, protocol.Nil
		}
		nv := value.NewHash()
		e.keys.Set(key, nv)
		return nv.HashVal(), nil
	}
	if v.Kind != value.KindHash {
		return nil, protocol.Err("wrong type: " + v.Kind.String())
	}
	return v.HashVal(), nil
}

func cmdHExists(e *Engine, args []string) protocol.Response {
	h, errResp := e.resolveHash(args[0], false)
	if h == nil {
		if errResp == protocol.Nil {
			return protocol.Int(0)
		}
		return errResp
	}
	if h.Exists(args[1]) {
		return protocol.Int(1)
	}
	return protocol.Int(0)
}

func cmdHSet(e *Engine, args []string) protocol.Response {
	h, errResp := e.resolveHash(args[0], true)
	if h == nil {
		return errResp
	}
	added := 0
	if !h.Exists(args[1]) {
		added = 1
	}
	h.Set(args[1], args[2])
	return protocol.Int(int32(added))
}

func cmdHGet(e *Engine, args []string) protocol.Response {
	h, errResp := e.resolveHash(args[0], false)
	if h == nil {
		if errResp == protocol.Nil {
			return protocol.Nil
		}
		return errResp
	}
	val, ok := h.Get(args[1])
	if !ok {
		return protocol.Nil
	}
	return protocol.Str(val)
}

func cmdHDel(e *Engine, args []string) protocol.Response {
	h, errResp := e.resolveHash(args[0], false)
	if h == nil {
		if errResp == protocol.Nil {
			return protocol.Int(0)
		}
		return errResp
	}
	if h.Del(args[1]) {
		return protocol.Int(1)
	}
	return protocol.Int(0)
}

func cmdHGetAll(e *Engine, args []string) protocol.Response {
	h, errResp := e.resolveHash(args[0], false)
	if h == nil {
		if errResp == protocol.Nil {
			return protocol.Err("no such key")
		}
		return errResp
	}
	elems := make([]protocol.Response, 0, h.Len()*2)
	for field, val := range h.All() {
		elems = append(elems, protocol.Str(field), protocol.Str(val))
	}
	return protocol.Arr(elems...)
}

// resolveList fetches key's List container, creating an empty one if
// absent and create is true (LPUSH/RPUSH's create-on-miss rule), or
// reports a type-guard ERR if the key holds something else. A nil,nil
// result (no container, create=false) means "missing key" and is left to
// the caller, since missing-list handling differs by command: most
// operations treat it as an error, but LEXISTS reports INT 0 instead.
func (e *Engine) resolveList(key string, create bool) (*list.List, protocol.Response) {
	v, ok := e.keys.Get(key)
	if !ok {
		if !create {
			return nil, nil
		}
		nv := value.NewList()
		e.keys.Set(key, nv)
		return nv.ListVal(), nil
	}
	if v.Kind != value.KindList {
		return nil, protocol.Err("wrong type: " + v.Kind.String())
	}
	return v.ListVal(), nil
}

func cmdLExists(e *Engine, args []string) protocol.Response {
	l, errResp := e.resolveList(args[0], false)
	if errResp != nil {
		return errResp
	}
	if l == nil {
		return protocol.Int(0)
	}
	if l.Contains(list.StringItem(args[1])) {
		return protocol.Int(1)
	}
	return protocol.Int(0)
}

func cmdLPush(e *Engine, args []string) protocol.Response {
	l, errResp := e.resolveList(args[0], true)
	if errResp != nil {
		return errResp
	}
	l.PushFront(list.StringItem(args[1]))
	return protocol.Int(int32(l.Len()))
}

func cmdRPush(e *Engine, args []string) protocol.Response {
	l, errResp := e.resolveList(args[0], true)
	if errResp != nil {
		return errResp
	}
	l.PushBack(list.StringItem(args[1]))
	return protocol.Int(int32(l.Len()))
}

func cmdLPop(e *Engine, args []string) protocol.Response {
	l, errResp := e.resolveList(args[0], false)
	if errResp != nil {
		return errResp
	}
	if l == nil {
		return protocol.Err("no such key")
	}
	if _, ok := l.PopFront(); ok {
		return protocol.Int(1)
	}
	return protocol.Int(0)
}

func cmdRPop(e *Engine, args []string) protocol.Response {
	l, errResp := e.resolveList(args[0], false)
	if errResp != nil {
		return errResp
	}
	if l == nil {
		return protocol.Err("no such key")
	}
	if _, ok := l.PopBack(); ok {
		return protocol.Int(1)
	}
	return protocol.Int(0)
}

func cmdLLen(e *Engine, args []string) protocol.Response {
	l, errResp := e.resolveList(args[0], false)
	if errResp != nil {
		return errResp
	}
	if l == nil {
		return protocol.Err("no such key")
	}
	return protocol.Int(int32(l.Len()))
}

func cmdLRange(e *Engine, args []string) protocol.Response {
	l, errResp := e.resolveList(args[0], false)
	if errResp != nil {
		return errResp
	}
	if l == nil {
		return protocol.Err("no such key")
	}
	start, ok1 := parseInt(args[1])
	end, ok2 := parseInt(args[2])
	if !ok1 || !ok2 {
		return protocol.Err("invalid integer argument")
	}
	if start < 0 || end < 0 || start >= l.Len() || end >= l.Len() {
		return protocol.Err("index out of range")
	}
	if end < start {
		return protocol.Arr()
	}
	elems := make([]protocol.Response, 0, end-start+1)
	for i := start; i <= end; i++ {
		item, _ := l.Get(i)
		elems = append(elems, protocol.Str(item.Str))
	}
	return protocol.Arr(elems...)
}

func cmdLTrim(e *Engine, args []string) protocol.Response {
	l, errResp := e.resolveList(args[0], false)
	if errResp != nil {
		return errResp
	}
	if l == nil {
		return protocol.Err("no such key")
	}
	start, ok1 := parseInt(args[1])
	end, ok2 := parseInt(args[2])
	if !ok1 || !ok2 {
		return protocol.Err("invalid integer argument")
	}
	if !l.Trim(start, end) {
		return protocol.Err("index out of range")
	}
	return protocol.Nil
}

func cmdLSet(e *Engine, args []string) protocol.Response {
	l, errResp := e.resolveList(args[0], false)
	if errResp != nil {
		return errResp
	}
	if l == nil {
		return protocol.Err("no such key")
	}
	idx, ok := parseInt(args[1])
	if !ok {
		return protocol.Err("invalid integer argument")
	}
	if !l.Set(idx, list.StringItem(args[2])) {
		return protocol.Err("index out of range")
	}
	return protocol.Int(1)
}

// resolveZSet fetches key's sorted set, creating an empty one if absent
// and create is true (ZADD's create-on-miss rule), or reports a
// type-guard ERR if the key holds something else.
func (e *Engine) resolveZSet(key string, create bool) (*zset.Set, protocol.Response) {
	v, ok := e.keys.Get(key)
	if !ok {
		if !create {
			return nil, nil
		}
		nv := value.NewSortedSet()
		e.keys.Set(key, nv)
		return nv.SortedSetVal(), nil
	}
	if v.Kind != value.KindSortedSet {
		return nil, protocol.Err("wrong type: " + v.Kind.String())
	}
	return v.SortedSetVal(), nil
}

func cmdZAdd(e *Engine, args []string) protocol.Response {
	z, errResp := e.resolveZSet(args[0], true)
	if errResp != nil {
		return errResp
	}
	score, ok := parseFloat(args[1])
	if !ok {
		return protocol.Err("invalid float argument")
	}
	if z.Add(args[2], score) {
		return protocol.Int(1)
	}
	return protocol.Int(0)
}

func cmdZRem(e *Engine, args []string) protocol.Response {
	z, errResp := e.resolveZSet(args[0], false)
	if errResp != nil {
		return errResp
	}
	if z == nil {
		return protocol.Err("no such key")
	}
	if z.Remove(args[1]) {
		return protocol.Int(1)
	}
	return protocol.Int(0)
}

func cmdZScore(e *Engine, args []string) protocol.Response {
	z, errResp := e.resolveZSet(args[0], false)
	if errResp != nil {
		return errResp
	}
	if z == nil {
		return protocol.Err("no such key")
	}
	score, ok := z.Score(args[1])
	if !ok {
		return protocol.Err("no such member")
	}
	return protocol.Float(float32(score))
}

// cmdZQuery implements zquery_cmd's three lookup modes — rank, score, and
// pair — each selected by literally inspecting the score and name tokens
// before walking the tree with Offset. Neither score mode nor pair mode
// falls back to a nearby member when the requested score or pair isn't an
// exact match; both report an error instead, matching avl_search_float and
// avl_search_pair.
func cmdZQuery(e *Engine, args []string) protocol.Response {
	z, errResp := e.resolveZSet(args[0], false)
	if errResp != nil {
		return errResp
	}
	if z == nil {
		return protocol.Err("no such key")
	}

	scoreTok, nameTok := args[1], args[2]
	offset, ok1 := parseInt(args[3])
	limit, ok2 := parseInt(args[4])
	if !ok1 || !ok2 {
		return protocol.Err("invalid integer argument")
	}
	if offset < 0 || limit < 0 {
		return protocol.Err("index out of range")
	}

	var origin *zset.Node
	switch {
	case scoreTok == negInf && nameTok == zqueryEmptyName:
		origin = z.Min()
	case nameTok == zqueryEmptyName:
		score, ok := parseFloat(scoreTok)
		if !ok {
			return protocol.Err("invalid float argument")
		}
		origin = z.SearchGE(score, "")
		if origin == nil || origin.Score != score {
			return protocol.Err("no valid elements in zset")
		}
	default:
		score, ok := parseFloat(scoreTok)
		if !ok {
			return protocol.Err("invalid float argument")
		}
		origin = z.SearchExact(score, nameTok)
		if origin == nil {
			return protocol.Err("element not in zset")
		}
	}

	if origin == nil {
		return protocol.Err("no valid elements in zset")
	}

	cur := zset.Offset(origin, offset)
	elems := make([]protocol.Response, 0, limit*2)
	for i := 0; i < limit && cur != nil; i++ {
		elems = append(elems, protocol.Str(cur.Name), protocol.Float(float32(cur.Score)))
		cur = zset.Offset(cur, 1)
	}
	return protocol.Arr(elems...)
}

// parseInt is a strict all-or-nothing integer conversion: every byte of s
// must be consumed and the result must fit an int, or the parse fails
// outright — no partial-prefix parse, no silent overflow clamp. The
// original checks errno after strtol and separately validates *endptr;
// parsing first and validating after fixes the original's errno-then-parse
// ordering bug while keeping the same all-or-nothing contract.
func parseInt(s string) (int, bool) {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, false
	}
	return int(n), true
}

// parseFloat implements the same strict contract as parseInt, plus the
// literal "-inf" sentinel ZQUERY's rank mode relies on.
func parseFloat(s string) (float64, bool) {
	if s == negInf {
		return math.Inf(-1), true
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

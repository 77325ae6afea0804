package sink

import (
	"bufio"
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/dgraph-io/badger/v4"
	"github.com/redis/go-redis/v9"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttputil"

	"github.com/park285/chess-game-metrics/pkg/metricsdto"
)

func record(id string) *metricsdto.GameMetrics {
	elo := 2100
	pts := 0.5
	return &metricsdto.GameMetrics{
		GameID:          id,
		White:           "alice",
		Black:           "bob",
		WhiteElo:        &elo,
		Result:          "1/2-1/2",
		WhiteResult:     &pts,
		BlackResult:     &pts,
		WhiteGI:         0.41,
		BlackGI:         0.37,
		WhiteGPL:        0.09,
		BlackGPL:        0.13,
		WhiteACPL:       18.5,
		BlackACPL:       22.25,
		WhiteMoveNumber: 40,
		BlackMoveNumber: 40,
	}
}

type failingSink struct{ err error }

func (f failingSink) Write(context.Context, *metricsdto.GameMetrics) error { return f.err }
func (f failingSink) Close() error                                        { return nil }

func TestMemory_UpsertsByID(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	_ = m.Write(ctx, record("a"))
	_ = m.Write(ctx, record("b"))
	updated := record("a")
	updated.WhiteGI = 0.9
	_ = m.Write(ctx, updated)

	recs := m.Records()
	if len(recs) != 2 {
		t.Fatalf("expected 2 records, got %d", len(recs))
	}
	got, ok := m.Get("a")
	if !ok || got.WhiteGI != 0.9 {
		t.Fatalf("expected updated record, got %+v", got)
	}
	updated.Diagnostics = append(updated.Diagnostics, "late")
	if got, _ := m.Get("a"); len(got.Diagnostics) != 0 {
		t.Fatalf("memory sink must copy records")
	}
}

func TestMulti_JoinsErrors(t *testing.T) {
	errA := errors.New("a down")
	mem := NewMemory()
	multi := Multi{failingSink{errA}, mem}
	err := multi.Write(context.Background(), record("x"))
	if !errors.Is(err, errA) {
		t.Fatalf("expected joined error, got %v", err)
	}
	if len(mem.Records()) != 1 {
		t.Fatalf("healthy sink should still receive the record")
	}
	if err := multi.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestJSONL_ConcurrentWritesStayWhole(t *testing.T) {
	var buf bytes.Buffer
	j := NewJSONL(&buf)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if err := j.Write(context.Background(), record(fmt.Sprintf("g%d", i))); err != nil {
				t.Errorf("Write: %v", err)
			}
		}(i)
	}
	wg.Wait()

	sc := bufio.NewScanner(&buf)
	n := 0
	for sc.Scan() {
		var m metricsdto.GameMetrics
		if err := json.Unmarshal(sc.Bytes(), &m); err != nil {
			t.Fatalf("line %d is not a whole record: %v", n, err)
		}
		n++
	}
	if n != 50 {
		t.Fatalf("expected 50 lines, got %d", n)
	}
}

func TestJSONL_FileAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "metrics.jsonl")
	for i := 0; i < 2; i++ {
		j, err := OpenJSONL(path)
		if err != nil {
			t.Fatalf("OpenJSONL: %v", err)
		}
		if err := j.Write(context.Background(), record(fmt.Sprintf("run%d", i))); err != nil {
			t.Fatalf("Write: %v", err)
		}
		if err := j.Close(); err != nil {
			t.Fatalf("Close: %v", err)
		}
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if got := bytes.Count(raw, []byte("\n")); got != 2 {
		t.Fatalf("expected 2 lines after reopening, got %d", got)
	}
	if !bytes.Contains(raw, []byte(`"white_acpl":18.5`)) {
		t.Fatalf("unexpected wire format: %s", raw)
	}
}

func TestRedis_WriteAndLoad(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	defer mr.Close()
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	s := NewRedis(rdb, 0)
	defer s.Close()
	ctx := context.Background()

	if err := s.Write(ctx, record("g1")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	again := record("g1")
	again.BlackGI = 1
	if err := s.Write(ctx, again); err != nil {
		t.Fatalf("Write: %v", err)
	}

	n, err := s.Len(ctx)
	if err != nil || n != 2 {
		t.Fatalf("expected 2 list entries, got %d (%v)", n, err)
	}
	got, err := s.Load(ctx, "g1")
	if err != nil || got == nil {
		t.Fatalf("Load: %v", err)
	}
	if got.BlackGI != 1 || got.WhiteElo == nil || *got.WhiteElo != 2100 {
		t.Fatalf("unexpected record %+v", got)
	}
	if missing, err := s.Load(ctx, "nope"); err != nil || missing != nil {
		t.Fatalf("expected nil for missing record, got %v %v", missing, err)
	}
}

func TestBadger_WriteLoadCount(t *testing.T) {
	opts := badger.DefaultOptions("").WithInMemory(true)
	opts.Logger = nil
	b, err := OpenBadgerWithOptions(opts)
	if err != nil {
		t.Fatalf("OpenBadger: %v", err)
	}
	defer b.Close()
	ctx := context.Background()

	for _, id := range []string{"a", "b", "a"} {
		if err := b.Write(ctx, record(id)); err != nil {
			t.Fatalf("Write: %v", err)
		}
	}
	n, err := b.Count()
	if err != nil || n != 2 {
		t.Fatalf("expected 2 records, got %d (%v)", n, err)
	}
	got, err := b.Load("b")
	if err != nil || got == nil || got.BlackACPL != 22.25 {
		t.Fatalf("Load: %+v %v", got, err)
	}
	if missing, err := b.Load("zzz"); err != nil || missing != nil {
		t.Fatalf("expected nil for missing key, got %v %v", missing, err)
	}
}

func startCollector(t *testing.T, handler fasthttp.RequestHandler) *fasthttp.Client {
	t.Helper()
	ln := fasthttputil.NewInmemoryListener()
	srv := &fasthttp.Server{Handler: handler}
	go func() { _ = srv.Serve(ln) }()
	t.Cleanup(func() { _ = ln.Close() })
	return &fasthttp.Client{Dial: func(addr string) (net.Conn, error) { return ln.Dial() }}
}

func TestWebhook_PostsJSON(t *testing.T) {
	var got atomic.Value
	client := startCollector(t, func(ctx *fasthttp.RequestCtx) {
		if string(ctx.Method()) != fasthttp.MethodPost || string(ctx.Request.Header.Peek("X-Token")) != "secret" {
			ctx.SetStatusCode(fasthttp.StatusBadRequest)
			return
		}
		got.Store(append([]byte(nil), ctx.PostBody()...))
		ctx.SetStatusCode(fasthttp.StatusAccepted)
	})
	w := NewWebhook("http://collector/metrics",
		WithHTTPClient(client),
		WithHeaderProvider(func() map[string]string { return map[string]string{"X-Token": "secret"} }),
	)
	defer w.Close()

	if err := w.Write(context.Background(), record("w1")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	body, _ := got.Load().([]byte)
	var m metricsdto.GameMetrics
	if err := json.Unmarshal(body, &m); err != nil || m.GameID != "w1" {
		t.Fatalf("collector received %q (%v)", body, err)
	}
}

func TestWebhook_Non2xxIsError(t *testing.T) {
	var calls atomic.Int32
	client := startCollector(t, func(ctx *fasthttp.RequestCtx) {
		calls.Add(1)
		ctx.SetStatusCode(fasthttp.StatusServiceUnavailable)
		ctx.SetBodyString("busy")
	})
	w := NewWebhook("http://collector/metrics", WithHTTPClient(client), WithRetry(2))
	err := w.Write(context.Background(), record("w2"))
	if err == nil {
		t.Fatalf("expected error for 503")
	}
	if calls.Load() != 2 {
		t.Fatalf("expected 2 attempts, got %d", calls.Load())
	}

	client = startCollector(t, func(ctx *fasthttp.RequestCtx) {
		ctx.SetStatusCode(fasthttp.StatusBadRequest)
	})
	w = NewWebhook("http://collector/metrics", WithHTTPClient(client), WithRetry(3))
	if err := w.Write(context.Background(), record("w3")); err == nil {
		t.Fatalf("expected error for 400")
	}
}

func TestPostgres_RequiresURL(t *testing.T) {
	if _, err := NewPostgres("  "); err == nil {
		t.Fatalf("expected error for empty DATABASE_URL")
	}
}

func TestPostgres_UpsertArgs(t *testing.T) {
	args := upsertArgs(record("pg"))
	if len(args) != 22 {
		t.Fatalf("expected 22 bind args, got %d", len(args))
	}
	if args[0] != "pg" || args[len(args)-1] != "[]" {
		t.Fatalf("unexpected args %v", args)
	}
	if elo, ok := args[9].(sql.NullInt64); !ok || elo.Valid {
		t.Fatalf("missing black elo should bind as NULL, got %#v", args[9])
	}
	if elo, ok := args[8].(sql.NullInt64); !ok || !elo.Valid || elo.Int64 != 2100 {
		t.Fatalf("unexpected white elo %#v", args[8])
	}
}

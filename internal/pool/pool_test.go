package pool_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"mediabridge/internal/pool"
	"mediabridge/internal/protocol"
	"mediabridge/internal/testsupport"
	"mediabridge/internal/worker"
)

func testConfig(workers int) pool.Config {
	return pool.Config{
		Workers:          workers,
		HandshakeTimeout: 2 * time.Second,
		ResponseTimeout:  2 * time.Second,
		ShutdownGrace:    time.Second,
		MaxRestarts:      3,
		RestartBackoff:   10 * time.Millisecond,
	}
}

func envelope(t *testing.T, payload protocol.Payload) protocol.Envelope {
	t.Helper()
	env, err := protocol.NewEnvelope(payload)
	if err != nil {
		t.Fatalf("NewEnvelope returned error: %v", err)
	}
	return env
}

func TestDispatchBoundsParallelismToPoolSize(t *testing.T) {
	var inFlight, peak atomic.Int32
	script := testsupport.Script{
		Respond: func(action string, command []byte) ([]string, bool) {
			now := inFlight.Add(1)
			for {
				old := peak.Load()
				if now <= old || peak.CompareAndSwap(old, now) {
					break
				}
			}
			time.Sleep(50 * time.Millisecond)
			inFlight.Add(-1)
			return []string{`{"status":"success","ffmpeg_available":true}`}, true
		},
	}
	p, err := pool.New(testConfig(2), testsupport.NewFakeLauncher(script), worker.Command{Binary: "media-worker"})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("Start returned error: %v", err)
	}
	defer p.Shutdown(context.Background())

	var wg sync.WaitGroup
	results := make([]*protocol.Terminal, 3)
	errs := make([]error, 3)
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = p.Dispatch(context.Background(), envelope(t, protocol.CheckFFmpeg{}))
		}(i)
	}
	wg.Wait()

	for i := 0; i < 3; i++ {
		if errs[i] != nil {
			t.Fatalf("dispatch %d returned error: %v", i, errs[i])
		}
		if available, ok := results[i].BoolField("ffmpeg_available"); !ok || !available {
			t.Fatalf("dispatch %d: unexpected result %+v", i, results[i])
		}
	}
	if got := peak.Load(); got != 2 {
		t.Fatalf("expected exactly 2 commands in parallel, saw peak %d", got)
	}
}

func TestStartDegradedWhenOneHandshakeFails(t *testing.T) {
	launcher := testsupport.NewFakeLauncher(
		testsupport.Script{Handshake: `{"status":"starting"}`},
		testsupport.Script{},
	)
	p, err := pool.New(testConfig(2), launcher, worker.Command{Binary: "media-worker"})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("degraded start must not fail: %v", err)
	}
	defer p.Shutdown(context.Background())

	status := p.Snapshot()
	if status.Ready != 1 || status.Dead != 1 {
		t.Fatalf("expected 1 ready / 1 dead, got %+v", status)
	}

	term, err := p.Dispatch(context.Background(), envelope(t, protocol.CheckFFmpeg{}))
	if err != nil {
		t.Fatalf("dispatch on degraded pool failed: %v", err)
	}
	if !term.Succeeded() {
		t.Fatalf("unexpected terminal: %+v", term)
	}
}

func TestStartFailsWhenNoWorkerBecomesReady(t *testing.T) {
	launcher := testsupport.NewFakeLauncher(testsupport.Script{Handshake: `{"status":"starting"}`})
	p, err := pool.New(testConfig(2), launcher, worker.Command{Binary: "media-worker"})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	if err := p.Start(context.Background()); !errors.Is(err, protocol.ErrStartup) {
		t.Fatalf("expected fatal startup failure, got %v", err)
	}
}

func TestTryDispatchFailsFastWhenSaturated(t *testing.T) {
	release := make(chan struct{})
	script := testsupport.Script{
		Respond: func(action string, command []byte) ([]string, bool) {
			<-release
			return []string{`{"status":"success"}`}, true
		},
	}
	p, err := pool.New(testConfig(1), testsupport.NewFakeLauncher(script), worker.Command{Binary: "media-worker"})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("Start returned error: %v", err)
	}
	defer p.Shutdown(context.Background())

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = p.Dispatch(context.Background(), envelope(t, protocol.CheckFFmpeg{}))
	}()

	// Wait until the single worker is leased.
	for i := 0; i < 100; i++ {
		if p.Snapshot().Busy == 1 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	_, err = p.TryDispatch(context.Background(), envelope(t, protocol.CheckFFmpeg{}))
	if !errors.Is(err, protocol.ErrSaturated) {
		t.Fatalf("expected saturation error, got %v", err)
	}
	close(release)
	<-done
}

func TestCrashedWorkerIsRestartedAndServesAgain(t *testing.T) {
	hangOnce := make(chan struct{}, 1)
	hangOnce <- struct{}{}
	launcher := testsupport.NewFakeLauncher(testsupport.Script{
		Respond: func(action string, command []byte) ([]string, bool) {
			select {
			case <-hangOnce:
				return nil, false
			default:
				return []string{`{"status":"success"}`}, true
			}
		},
	})
	p, err := pool.New(testConfig(1), launcher, worker.Command{Binary: "media-worker"})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("Start returned error: %v", err)
	}
	defer p.Shutdown(context.Background())

	dispatchErr := make(chan error, 1)
	go func() {
		_, err := p.Dispatch(context.Background(), envelope(t, protocol.GetFileInfo{FilePath: "a.mkv"}))
		dispatchErr <- err
	}()

	time.Sleep(30 * time.Millisecond)
	_ = launcher.Proc(0).Kill()

	select {
	case err := <-dispatchErr:
		if !errors.Is(err, protocol.ErrCrash) {
			t.Fatalf("expected crash error, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("pending request did not resolve after external kill")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	term, err := p.Dispatch(ctx, envelope(t, protocol.CheckFFmpeg{}))
	if err != nil {
		t.Fatalf("dispatch after restart failed: %v", err)
	}
	if !term.Succeeded() {
		t.Fatalf("unexpected terminal: %+v", term)
	}
	if got := launcher.Launches(); got != 2 {
		t.Fatalf("expected a replacement launch, got %d launches", got)
	}
	status := p.Snapshot()
	if status.Workers[0].Restarts != 1 {
		t.Fatalf("expected restart attempt 1 recorded, got %+v", status.Workers[0])
	}
}

func TestWorkerIsRetiredAfterRestartBudget(t *testing.T) {
	hangOnce := make(chan struct{}, 1)
	hangOnce <- struct{}{}
	scripts := []testsupport.Script{
		{
			Respond: func(action string, command []byte) ([]string, bool) {
				select {
				case <-hangOnce:
					return nil, false
				default:
					return []string{`{"status":"success"}`}, true
				}
			},
		},
		{LaunchErr: errors.New("spawn failed")},
	}
	cfg := testConfig(2)
	cfg.MaxRestarts = 2
	// Both initial workers use the first script; replacements always fail.
	launcher := testsupport.NewFakeLauncher(scripts[0], scripts[0], scripts[1])
	p, err := pool.New(cfg, launcher, worker.Command{Binary: "media-worker"})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("Start returned error: %v", err)
	}
	defer p.Shutdown(context.Background())

	dispatchErr := make(chan error, 1)
	go func() {
		_, err := p.Dispatch(context.Background(), envelope(t, protocol.GetFileInfo{FilePath: "a.mkv"}))
		dispatchErr <- err
	}()
	time.Sleep(30 * time.Millisecond)

	// Kill whichever worker took the command.
	busyPID := 0
	for i := 0; i < 100 && busyPID == 0; i++ {
		for _, snap := range p.Snapshot().Workers {
			if snap.State == worker.StateBusy {
				busyPID = snap.PID
			}
		}
		time.Sleep(5 * time.Millisecond)
	}
	if busyPID == 0 {
		t.Fatal("no worker took the command")
	}
	_ = launcher.ProcByPID(busyPID).Kill()
	if err := <-dispatchErr; !errors.Is(err, protocol.ErrCrash) {
		t.Fatalf("expected crash, got %v", err)
	}

	// Both restart attempts fail, so the worker retires.
	deadline := time.After(2 * time.Second)
	for {
		status := p.Snapshot()
		if status.Retired == 1 {
			if status.Capacity != 1 {
				t.Fatalf("expected capacity 1 after retirement, got %+v", status)
			}
			break
		}
		select {
		case <-deadline:
			t.Fatalf("worker was not retired: %+v", p.Snapshot())
		case <-time.After(10 * time.Millisecond):
		}
	}

	// The surviving worker still serves.
	term, err := p.Dispatch(context.Background(), envelope(t, protocol.CheckFFmpeg{}))
	if err != nil {
		t.Fatalf("dispatch on reduced pool failed: %v", err)
	}
	if !term.Succeeded() {
		t.Fatalf("unexpected terminal: %+v", term)
	}
}

func TestDispatchStreamDeliversProgressThenDone(t *testing.T) {
	script := testsupport.Script{
		Respond: func(action string, command []byte) ([]string, bool) {
			return []string{
				`{"progress":25,"file":"a.mkv"}`,
				`{"progress":75,"file":"a.mkv"}`,
				`{"status":"success","files_converted":1}`,
			}, true
		},
	}
	p, err := pool.New(testConfig(1), testsupport.NewFakeLauncher(script), worker.Command{Binary: "media-worker"})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("Start returned error: %v", err)
	}
	defer p.Shutdown(context.Background())

	var mu sync.Mutex
	var events []string
	done := make(chan struct{})
	err = p.DispatchStream(context.Background(), envelope(t, protocol.ConvertFiles{FilePaths: []string{"a.mkv"}}),
		func(prog protocol.Progress) {
			mu.Lock()
			events = append(events, "progress")
			mu.Unlock()
		},
		func(term *protocol.Terminal, err error) {
			mu.Lock()
			if err != nil {
				events = append(events, "error")
			} else if term.Succeeded() {
				events = append(events, "terminal")
			}
			mu.Unlock()
			close(done)
		})
	if err != nil {
		t.Fatalf("DispatchStream returned error: %v", err)
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("stream did not complete")
	}

	mu.Lock()
	defer mu.Unlock()
	if len(events) != 3 || events[0] != "progress" || events[1] != "progress" || events[2] != "terminal" {
		t.Fatalf("unexpected event sequence: %v", events)
	}
}

type memoryRecorder struct {
	mu      sync.Mutex
	entries []pool.Entry
}

func (r *memoryRecorder) Record(entry pool.Entry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, entry)
}

func TestDispatchOutcomesAreRecorded(t *testing.T) {
	rec := &memoryRecorder{}
	p, err := pool.New(testConfig(1), testsupport.NewFakeLauncher(testsupport.Script{}),
		worker.Command{Binary: "media-worker"}, pool.WithRecorder(rec))
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("Start returned error: %v", err)
	}
	defer p.Shutdown(context.Background())

	env := envelope(t, protocol.CheckFFmpeg{})
	if _, err := p.Dispatch(context.Background(), env); err != nil {
		t.Fatalf("Dispatch returned error: %v", err)
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if len(rec.entries) != 1 {
		t.Fatalf("expected 1 recorded entry, got %d", len(rec.entries))
	}
	entry := rec.entries[0]
	if entry.Action != protocol.ActionCheckFFmpeg || entry.Status != protocol.StatusSuccess {
		t.Fatalf("unexpected entry: %+v", entry)
	}
	if entry.RequestID != env.RequestID {
		t.Fatalf("entry not correlated to request: %+v", entry)
	}
}

func TestShutdownIsIdempotentAndKillsEveryWorker(t *testing.T) {
	launcher := testsupport.NewFakeLauncher(testsupport.Script{})
	p, err := pool.New(testConfig(2), launcher, worker.Command{Binary: "media-worker"})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("Start returned error: %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = p.Shutdown(context.Background())
		}()
	}
	wg.Wait()

	for i := 0; i < launcher.Launches(); i++ {
		if proc := launcher.Proc(i); proc != nil && proc.Alive() {
			t.Fatalf("worker %d still alive after shutdown", i)
		}
	}
	if _, err := p.Dispatch(context.Background(), envelope(t, protocol.CheckFFmpeg{})); !errors.Is(err, pool.ErrClosed) {
		t.Fatalf("expected ErrClosed after shutdown, got %v", err)
	}
}

package runner

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/glennschmidt/fcgiq/internal/fastcgi"
	"github.com/glennschmidt/fcgiq/internal/item"
)

// fakeQueue serves a fixed queue of items (in order) then blocks until the
// context is cancelled, mimicking an empty long poll that outlives the
// test.
type fakeQueue struct {
	mu        sync.Mutex
	items     []*item.Item
	acked     []string
	receiveAt []time.Time
}

func (q *fakeQueue) Receive(ctx context.Context, wait time.Duration) (*item.Item, error) {
	q.mu.Lock()
	q.receiveAt = append(q.receiveAt, time.Now())
	var it *item.Item
	if len(q.items) > 0 {
		it = q.items[0]
		q.items = q.items[1:]
	}
	q.mu.Unlock()

	if it != nil {
		return it, nil
	}

	<-ctx.Done()
	return nil, ctx.Err()
}

func (q *fakeQueue) Acknowledge(ctx context.Context, it *item.Item) error {
	q.mu.Lock()
	q.acked = append(q.acked, it.ID)
	q.mu.Unlock()
	return nil
}

func (q *fakeQueue) ackedIDs() []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]string, len(q.acked))
	copy(out, q.acked)
	return out
}

// fakePool dispatches according to a per-item canned ScriptOutput/error,
// and can optionally block dispatch until released, to exercise
// concurrency bounds and drain behaviour.
type fakePool struct {
	mu        sync.Mutex
	responses map[string]fastcgi.ScriptOutput
	errs      map[string]error
	release   chan struct{} // if non-nil, Dispatch blocks on it
	inFlight  int
	maxSeen   int
}

func (p *fakePool) Dispatch(stdin []byte, overrides map[string]string) (*fastcgi.ScriptOutput, error) {
	p.mu.Lock()
	p.inFlight++
	if p.inFlight > p.maxSeen {
		p.maxSeen = p.inFlight
	}
	p.mu.Unlock()

	defer func() {
		p.mu.Lock()
		p.inFlight--
		p.mu.Unlock()
	}()

	if p.release != nil {
		<-p.release
	}

	key := string(stdin)
	if err, ok := p.errs[key]; ok {
		return nil, err
	}
	out := p.responses[key]
	return &out, nil
}

func TestRunnerHappyPath(t *testing.T) {
	it := &item.Item{ID: "m1", Data: []byte("{}"), Metadata: map[string]string{"receipt_handle": "r1"}}
	q := &fakeQueue{items: []*item.Item{it}}
	p := &fakePool{
		responses: map[string]fastcgi.ScriptOutput{
			"{}": {Stdout: []byte("Status: 200 OK\nContent-Type: text/plain\n\nok")},
		},
	}

	r := Start(Config{MaxTasks: 2, Pool: p, Queue: q})
	require.Eventually(t, func() bool { return len(q.ackedIDs()) == 1 }, time.Second, 5*time.Millisecond)
	r.Stop()

	assert.Equal(t, []string{"m1"}, q.ackedIDs())
}

func TestRunnerNon2xxNotAcknowledged(t *testing.T) {
	it := &item.Item{ID: "m1", Data: []byte("{}"), Metadata: map[string]string{"receipt_handle": "r1"}}
	q := &fakeQueue{items: []*item.Item{it}}
	p := &fakePool{
		responses: map[string]fastcgi.ScriptOutput{
			"{}": {Stdout: []byte("Status: 500\n\nboom")},
		},
	}

	r := Start(Config{MaxTasks: 2, Pool: p, Queue: q})
	time.Sleep(50 * time.Millisecond)
	r.Stop()

	assert.Empty(t, q.ackedIDs())
}

func TestRunnerDispatchFailureNotAcknowledged(t *testing.T) {
	it := &item.Item{ID: "m1", Data: []byte("{}"), Metadata: map[string]string{"receipt_handle": "r1"}}
	q := &fakeQueue{items: []*item.Item{it}}
	p := &fakePool{
		errs: map[string]error{"{}": &fastcgi.DispatchError{Kind: fastcgi.KindIO, Err: assertError{"boom"}}},
	}

	r := Start(Config{MaxTasks: 2, Pool: p, Queue: q})
	time.Sleep(50 * time.Millisecond)
	r.Stop()

	assert.Empty(t, q.ackedIDs())
}

// Property 1 (concurrency bound) + S6 (backpressure): with max_tasks=2 and
// three items arriving immediately, never more than two dispatches run
// concurrently.
func TestRunnerBackpressureBoundsConcurrency(t *testing.T) {
	items := []*item.Item{
		{ID: "m1", Data: []byte("1"), Metadata: map[string]string{"receipt_handle": "r1"}},
		{ID: "m2", Data: []byte("2"), Metadata: map[string]string{"receipt_handle": "r2"}},
		{ID: "m3", Data: []byte("3"), Metadata: map[string]string{"receipt_handle": "r3"}},
	}
	q := &fakeQueue{items: items}
	release := make(chan struct{})
	p := &fakePool{
		release: release,
		responses: map[string]fastcgi.ScriptOutput{
			"1": {Stdout: []byte("\n\nok")},
			"2": {Stdout: []byte("\n\nok")},
			"3": {Stdout: []byte("\n\nok")},
		},
	}

	r := Start(Config{MaxTasks: 2, Pool: p, Queue: q})

	require.Eventually(t, func() bool {
		p.mu.Lock()
		defer p.mu.Unlock()
		return p.inFlight == 2
	}, time.Second, 5*time.Millisecond)

	close(release)

	require.Eventually(t, func() bool { return len(q.ackedIDs()) == 3 }, time.Second, 5*time.Millisecond)
	r.Stop()

	assert.LessOrEqual(t, p.maxSeen, 2)
}

// S7 (graceful shutdown) + property 5 (drain safety): cancellation during
// in-flight work waits for workers to finish before Stop returns, and both
// in-flight items are still acknowledged.
func TestRunnerGracefulShutdownDrains(t *testing.T) {
	items := []*item.Item{
		{ID: "m1", Data: []byte("1"), Metadata: map[string]string{"receipt_handle": "r1"}},
		{ID: "m2", Data: []byte("2"), Metadata: map[string]string{"receipt_handle": "r2"}},
	}
	q := &fakeQueue{items: items}
	release := make(chan struct{})
	p := &fakePool{
		release: release,
		responses: map[string]fastcgi.ScriptOutput{
			"1": {Stdout: []byte("\n\nok")},
			"2": {Stdout: []byte("\n\nok")},
		},
	}

	r := Start(Config{MaxTasks: 2, Pool: p, Queue: q})

	require.Eventually(t, func() bool {
		p.mu.Lock()
		defer p.mu.Unlock()
		return p.inFlight == 2
	}, time.Second, 5*time.Millisecond)

	stopped := make(chan struct{})
	go func() {
		r.Stop()
		close(stopped)
	}()

	// Stop must not return while workers are still blocked in dispatch.
	select {
	case <-stopped:
		t.Fatal("Stop returned before in-flight workers finished")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	<-stopped

	assert.ElementsMatch(t, []string{"m1", "m2"}, q.ackedIDs())
}

type assertError struct{ msg string }

func (e assertError) Error() string { return e.msg }

package server

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	httpopts "github.com/kart-io/sentinel-assistant/pkg/options/server/http"
)

type recorder struct {
	mu     sync.Mutex
	events []string
}

func (r *recorder) add(e string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) list() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}

type mockRunnable struct {
	name     string
	rec      *recorder
	startErr error
}

func (m *mockRunnable) Name() string { return m.name }

func (m *mockRunnable) Start(context.Context) error {
	if m.startErr != nil {
		return m.startErr
	}
	m.rec.add("start " + m.name)
	return nil
}

func (m *mockRunnable) Stop(context.Context) error {
	m.rec.add("stop " + m.name)
	return nil
}

func testOptions() *httpopts.Options {
	opts := httpopts.NewOptions()
	opts.Addr = "127.0.0.1:0"
	opts.ShutdownTimeout = time.Second
	return opts
}

func TestManager_StartStopOrder(t *testing.T) {
	rec := &recorder{}
	m := NewManager(testOptions(), nil)
	m.AddServer(&mockRunnable{name: "a", rec: rec})
	m.AddServer(&mockRunnable{name: "b", rec: rec})

	require.NoError(t, m.Start(context.Background()))
	assert.Error(t, m.Start(context.Background()))
	require.NoError(t, m.Stop(context.Background()))
	require.NoError(t, m.Stop(context.Background()))

	assert.Equal(t, []string{"start a", "start b", "stop b", "stop a"}, rec.list())
}

func TestManager_StartFailureRollsBack(t *testing.T) {
	rec := &recorder{}
	m := NewManager(testOptions(), nil)
	m.AddServer(&mockRunnable{name: "a", rec: rec})
	m.AddServer(&mockRunnable{name: "b", rec: rec, startErr: errors.New("boom")})

	err := m.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "b")
	assert.Equal(t, []string{"start a", "stop a"}, rec.list())
}

func TestManager_RunStopsOnCancel(t *testing.T) {
	rec := &recorder{}
	m := NewManager(testOptions(), nil)
	m.AddServer(&mockRunnable{name: "watcher", rec: rec})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Run(ctx) }()

	assert.Eventually(t, func() bool { return len(rec.list()) == 1 }, time.Second, 10*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return")
	}
	assert.Equal(t, []string{"start watcher", "stop watcher"}, rec.list())
}

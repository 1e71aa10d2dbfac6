package scheduler

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubRunner 호출 횟수와 반환할 에러를 제어하는 TickRunner 스텁
type stubRunner struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (r *stubRunner) RunTick(_ context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.calls++
	return r.err
}

func (r *stubRunner) callCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.calls
}

// stubSender 진단 메시지를 기록하는 NotificationSender 스텁
type stubSender struct {
	mu          sync.Mutex
	diagnostics []string
}

func (s *stubSender) NotifyDefault(_ context.Context, _ string) error {
	return nil
}

func (s *stubSender) PostDiagnostics(message string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.diagnostics = append(s.diagnostics, message)
	return true
}

func (s *stubSender) diagnosticsMessages() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]string(nil), s.diagnostics...)
}

func TestNewService(t *testing.T) {
	t.Parallel()

	assert.Panics(t, func() {
		NewService("* * * * * *", nil, &stubSender{})
	})

	assert.Panics(t, func() {
		NewService("* * * * * *", &stubRunner{}, nil)
	})

	assert.NotNil(t, NewService("* * * * * *", &stubRunner{}, &stubSender{}))
}

func TestSchedulerRunTick(t *testing.T) {
	t.Parallel()

	t.Run("successful run posts no diagnostics", func(t *testing.T) {
		t.Parallel()

		runner := &stubRunner{}
		sender := &stubSender{}

		s := NewService("* * * * * *", runner, sender)
		s.runTick()

		assert.Equal(t, 1, runner.callCount())
		assert.Empty(t, sender.diagnosticsMessages())
	})

	t.Run("failed run is reported to diagnostics", func(t *testing.T) {
		t.Parallel()

		runner := &stubRunner{err: errors.New("tick failed")}
		sender := &stubSender{}

		s := NewService("* * * * * *", runner, sender)
		s.runTick()

		messages := sender.diagnosticsMessages()
		require.Len(t, messages, 1)
		assert.True(t, strings.Contains(messages[0], "tick failed"))
	})
}

func TestSchedulerStartStop(t *testing.T) {
	t.Parallel()

	t.Run("invalid time spec fails to start", func(t *testing.T) {
		t.Parallel()

		s := NewService("not a cron spec", &stubRunner{}, &stubSender{})

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		wg := &sync.WaitGroup{}
		wg.Add(1)

		require.Error(t, s.Start(ctx, wg))
		wg.Wait()
	})

	t.Run("runs the tick on schedule and stops on context cancel", func(t *testing.T) {
		t.Parallel()

		runner := &stubRunner{}

		// 매초 실행되는 스케줄로 최소 한 번의 실행을 관찰합니다.
		s := NewService("* * * * * *", runner, &stubSender{})

		ctx, cancel := context.WithCancel(context.Background())
		wg := &sync.WaitGroup{}
		wg.Add(1)

		require.NoError(t, s.Start(ctx, wg))

		deadline := time.After(5 * time.Second)
		for runner.callCount() == 0 {
			select {
			case <-deadline:
				t.Fatal("scheduled tick did not run")
			case <-time.After(50 * time.Millisecond):
			}
		}

		cancel()
		wg.Wait()
	})
}

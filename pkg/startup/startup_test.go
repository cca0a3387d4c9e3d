package startup

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDependency struct {
	name      string
	dependsOn []string
	failures  int
	starts    int
	stopErr   error
	log       *[]string
}

func (f *fakeDependency) GetName() string     { return f.name }
func (f *fakeDependency) DependsOn() []string { return f.dependsOn }

func (f *fakeDependency) Start(ctx context.Context) error {
	f.starts++
	if f.failures > 0 {
		f.failures--
		return errors.New("not ready")
	}
	*f.log = append(*f.log, "start:"+f.name)
	return nil
}

func (f *fakeDependency) Stop(ctx context.Context) error {
	*f.log = append(*f.log, "stop:"+f.name)
	return f.stopErr
}

func newTestStartup(maxAttempts int) *Startup {
	s := NewStartup(ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {}), maxAttempts)
	s.backoffUnit = time.Millisecond
	return s
}

func TestStartup_StartsParentsFirst(t *testing.T) {
	var log []string
	s := newTestStartup(1)
	s.AddDependency(&fakeDependency{name: "api", dependsOn: []string{"postgres", "redis"}, log: &log})
	s.AddDependency(&fakeDependency{name: "redis", log: &log})
	s.AddDependency(&fakeDependency{name: "postgres", dependsOn: []string{"tracing"}, log: &log})
	s.AddDependency(&fakeDependency{name: "tracing", log: &log})

	require.NoError(t, s.Start(context.Background()))
	assert.Equal(t, []string{"start:tracing", "start:postgres", "start:redis", "start:api"}, log)
	assert.Equal(t, StartupStatusStarted, s.Status("api"))
}

func TestStartup_RetriesUntilReady(t *testing.T) {
	var log []string
	dep := &fakeDependency{name: "redis", failures: 2, log: &log}
	s := newTestStartup(3)
	s.AddDependency(dep)

	require.NoError(t, s.Start(context.Background()))
	assert.Equal(t, 3, dep.starts)
}

func TestStartup_GivesUpAfterMaxAttempts(t *testing.T) {
	var log []string
	s := newTestStartup(2)
	s.AddDependency(&fakeDependency{name: "redis", failures: 5, log: &log})

	err := s.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "startup failed after 2 attempts")
	assert.Equal(t, StartupStatusFailed, s.Status("redis"))
}

func TestStartup_DetectsCycles(t *testing.T) {
	var log []string
	s := newTestStartup(1)
	s.AddDependency(&fakeDependency{name: "a", dependsOn: []string{"b"}, log: &log})
	s.AddDependency(&fakeDependency{name: "b", dependsOn: []string{"a"}, log: &log})

	err := s.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cycle")
}

func TestStartup_StopReversesStartOrder(t *testing.T) {
	var log []string
	s := newTestStartup(1)
	s.AddDependency(&fakeDependency{name: "postgres", dependsOn: []string{"tracing"}, log: &log})
	s.AddDependency(&fakeDependency{name: "tracing", stopErr: errors.New("flush failed"), log: &log})
	require.NoError(t, s.Start(context.Background()))

	err := s.Stop(context.Background())
	assert.EqualError(t, err, "flush failed")
	assert.Equal(t, []string{"start:tracing", "start:postgres", "stop:postgres", "stop:tracing"}, log)
	assert.Equal(t, StartupStatusStopped, s.Status("postgres"))
}

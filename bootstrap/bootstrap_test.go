package bootstrap

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/skillsenselab/dreamflow/component"
	"github.com/skillsenselab/dreamflow/config"
	"github.com/skillsenselab/dreamflow/logger"
)

type testConfig struct {
	config.ServiceConfig `yaml:",inline" mapstructure:",squash"`
}

func validConfig() *testConfig {
	cfg := &testConfig{}
	cfg.Name = "test-service"
	cfg.Environment = "development"
	return cfg
}

type fakeComponent struct {
	name     string
	startErr error

	mu      sync.Mutex
	started bool
	stopped bool
	order   *[]string
}

func (f *fakeComponent) Name() string { return f.name }

func (f *fakeComponent) Start(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.startErr != nil {
		return f.startErr
	}
	f.started = true
	if f.order != nil {
		*f.order = append(*f.order, "start:"+f.name)
	}
	return nil
}

func (f *fakeComponent) Stop(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopped = true
	if f.order != nil {
		*f.order = append(*f.order, "stop:"+f.name)
	}
	return nil
}

func (f *fakeComponent) Health(ctx context.Context) component.Health {
	f.mu.Lock()
	defer f.mu.Unlock()
	status := component.StatusUnhealthy
	if f.started && !f.stopped {
		status = component.StatusHealthy
	}
	return component.Health{Name: f.name, Status: status}
}

func newTestApp(t *testing.T) *App[*testConfig] {
	t.Helper()
	app, err := NewApp(validConfig(), WithLogger(logger.NewDefault("test")))
	if err != nil {
		t.Fatalf("NewApp: %v", err)
	}
	return app
}

func TestNewAppValidatesConfig(t *testing.T) {
	bad := &testConfig{}
	bad.Environment = "qa"
	if _, err := NewApp(bad); err == nil {
		t.Fatal("invalid config accepted")
	}
}

func TestNewAppAppliesDefaults(t *testing.T) {
	cfg := &testConfig{}
	cfg.Name = "svc"
	app, err := NewApp(cfg, WithLogger(logger.NewDefault("test")))
	if err != nil {
		t.Fatalf("NewApp: %v", err)
	}
	if app.Cfg.Environment != "development" {
		t.Errorf("environment = %q", app.Cfg.Environment)
	}
	if app.Container == nil || app.Components == nil {
		t.Error("container or registry not initialized")
	}
}

func TestRunTaskLifecycleOrder(t *testing.T) {
	app := newTestApp(t)

	var order []string
	a := &fakeComponent{name: "a", order: &order}
	b := &fakeComponent{name: "b", order: &order}
	if err := app.RegisterComponent(a); err != nil {
		t.Fatal(err)
	}
	if err := app.RegisterComponent(b); err != nil {
		t.Fatal(err)
	}

	taskRan := false
	err := app.RunTask(context.Background(), func(ctx context.Context) error {
		taskRan = true
		return nil
	})
	if err != nil {
		t.Fatalf("RunTask: %v", err)
	}
	if !taskRan {
		t.Fatal("task did not run")
	}

	want := []string{"start:a", "start:b", "stop:b", "stop:a"}
	if len(order) != len(want) {
		t.Fatalf("order = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("order = %v, want %v", order, want)
		}
	}
}

func TestRunTaskReturnsTaskError(t *testing.T) {
	app := newTestApp(t)
	c := &fakeComponent{name: "a"}
	if err := app.RegisterComponent(c); err != nil {
		t.Fatal(err)
	}

	taskErr := errors.New("task boom")
	err := app.RunTask(context.Background(), func(ctx context.Context) error {
		return taskErr
	})
	if !errors.Is(err, taskErr) {
		t.Fatalf("err = %v, want %v", err, taskErr)
	}
	if !c.stopped {
		t.Error("component not stopped after task failure")
	}
}

func TestStartFailureAborts(t *testing.T) {
	app := newTestApp(t)
	if err := app.RegisterComponent(&fakeComponent{name: "bad", startErr: errors.New("no")}); err != nil {
		t.Fatal(err)
	}

	err := app.RunTask(context.Background(), func(ctx context.Context) error {
		t.Fatal("task ran despite start failure")
		return nil
	})
	if err == nil {
		t.Fatal("start failure not reported")
	}
}

func TestHooksRunInPhases(t *testing.T) {
	app := newTestApp(t)

	var phases []string
	app.OnStart(func(ctx context.Context) error {
		phases = append(phases, "start")
		return nil
	})
	app.OnReady(func(ctx context.Context) error {
		phases = append(phases, "ready")
		return nil
	})
	app.OnStop(func(ctx context.Context) error {
		phases = append(phases, "stop")
		return nil
	})
	app.OnConfigure(func(ctx context.Context, a *App[*testConfig]) error {
		phases = append(phases, "configure")
		return nil
	})

	err := app.RunTask(context.Background(), func(ctx context.Context) error {
		phases = append(phases, "task")
		return nil
	})
	if err != nil {
		t.Fatalf("RunTask: %v", err)
	}

	want := []string{"start", "configure", "ready", "task", "stop"}
	if len(phases) != len(want) {
		t.Fatalf("phases = %v, want %v", phases, want)
	}
	for i := range want {
		if phases[i] != want[i] {
			t.Fatalf("phases = %v, want %v", phases, want)
		}
	}
}

func TestOnStartHookFailureAborts(t *testing.T) {
	app := newTestApp(t)
	app.OnStart(func(ctx context.Context) error {
		return errors.New("hook boom")
	})

	err := app.RunTask(context.Background(), func(ctx context.Context) error {
		t.Fatal("task ran despite hook failure")
		return nil
	})
	if err == nil {
		t.Fatal("hook failure not reported")
	}
}

func TestReadyCheckReportsUnhealthy(t *testing.T) {
	app := newTestApp(t)
	c := &fakeComponent{name: "never-started"}
	if err := app.RegisterComponent(c); err != nil {
		t.Fatal(err)
	}

	if err := app.ReadyCheck(context.Background()); err == nil {
		t.Error("unhealthy component passed ready check")
	}

	if err := c.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := app.ReadyCheck(context.Background()); err != nil {
		t.Errorf("healthy component failed ready check: %v", err)
	}
}

func TestShutdownStopsComponents(t *testing.T) {
	app := newTestApp(t)
	c := &fakeComponent{name: "a"}
	if err := app.RegisterComponent(c); err != nil {
		t.Fatal(err)
	}
	if err := app.Components.StartAll(context.Background()); err != nil {
		t.Fatal(err)
	}

	if err := app.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	if !c.stopped {
		t.Error("component not stopped")
	}
}

func TestGracefulTimeoutOption(t *testing.T) {
	app, err := NewApp(validConfig(),
		WithLogger(logger.NewDefault("test")),
		WithGracefulTimeout(time.Second))
	if err != nil {
		t.Fatalf("NewApp: %v", err)
	}
	if app.gracefulTimeout != time.Second {
		t.Errorf("gracefulTimeout = %s", app.gracefulTimeout)
	}
}

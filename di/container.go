package di

import (
	"context"
	"fmt"
	"reflect"
	"sync"

	"github.com/skillsenselab/dreamflow/logger"
	"github.com/skillsenselab/dreamflow/resilience"
)

// RegistrationMode determines how a component is constructed.
type RegistrationMode int

const (
	// Lazy constructs on first resolve.
	Lazy RegistrationMode = iota
	// Eager constructs at registration time.
	Eager
	// Singleton stores a pre-built instance.
	Singleton
)

func (m RegistrationMode) String() string {
	switch m {
	case Lazy:
		return "lazy"
	case Eager:
		return "eager"
	case Singleton:
		return "singleton"
	default:
		return "unknown"
	}
}

// Container manages named component registrations.
type Container interface {
	// Register registers a lazily constructed component.
	Register(key string, constructor any, opts ...LazyOption) error
	// RegisterEager constructs the component immediately.
	RegisterEager(key string, constructor any) error
	// RegisterSingleton stores an already-built instance.
	RegisterSingleton(key string, instance any) error
	// Resolve returns the component, constructing it if needed.
	Resolve(key string) (any, error)
	// Registrations describes all registered components.
	Registrations() []RegistrationInfo
	// Close closes all constructed components that implement io.Closer.
	Close() error
}

// RegistrationInfo describes a registered component for introspection.
type RegistrationInfo struct {
	Key         string
	Mode        RegistrationMode
	Initialized bool
}

type registration struct {
	key         string
	constructor any
	mode        RegistrationMode

	mu          sync.Mutex
	instance    any
	initialized bool
	retry       resilience.RetryConfig
	breaker     *resilience.CircuitBreaker
}

// LazyOption tunes how a lazy registration is constructed.
type LazyOption func(*registration)

// WithRetry overrides the retry policy applied to the constructor.
func WithRetry(cfg resilience.RetryConfig) LazyOption {
	return func(r *registration) { r.retry = cfg }
}

// WithBreaker overrides the circuit breaker fencing the constructor.
func WithBreaker(cfg resilience.CircuitBreakerConfig) LazyOption {
	return func(r *registration) { r.breaker = resilience.NewCircuitBreaker(cfg) }
}

type container struct {
	mu         sync.RWMutex
	components map[string]*registration
	singletons map[string]any
}

// NewContainer creates an empty container.
func NewContainer() Container {
	return &container{
		components: make(map[string]*registration),
		singletons: make(map[string]any),
	}
}

func (c *container) Register(key string, constructor any, opts ...LazyOption) error {
	reg := &registration{
		key:         key,
		constructor: constructor,
		mode:        Lazy,
		retry:       resilience.DefaultRetryConfig(),
		breaker:     resilience.NewCircuitBreaker(resilience.DefaultCircuitBreakerConfig("di." + key)),
	}
	for _, opt := range opts {
		opt(reg)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.components[key]; exists {
		return fmt.Errorf("di: component already registered: %s", key)
	}
	c.components[key] = reg
	return nil
}

func (c *container) RegisterEager(key string, constructor any) error {
	instance, err := callConstructor(c, constructor)
	if err != nil {
		return fmt.Errorf("di: eager component %s: %w", key, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.components[key]; exists {
		return fmt.Errorf("di: component already registered: %s", key)
	}
	c.components[key] = &registration{
		key:         key,
		constructor: constructor,
		mode:        Eager,
		instance:    instance,
		initialized: true,
	}
	return nil
}

func (c *container) RegisterSingleton(key string, instance any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.singletons[key]; exists {
		return fmt.Errorf("di: singleton already registered: %s", key)
	}
	c.singletons[key] = instance
	return nil
}

func (c *container) Resolve(key string) (any, error) {
	c.mu.RLock()
	if instance, ok := c.singletons[key]; ok {
		c.mu.RUnlock()
		return instance, nil
	}
	reg, ok := c.components[key]
	c.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("di: component not registered: %s", key)
	}
	return reg.resolve(c)
}

func (r *registration) resolve(c *container) (any, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.initialized {
		return r.instance, nil
	}

	var instance any
	err := r.breaker.Execute(func() error {
		var retryErr error
		instance, retryErr = resilience.Retry(context.Background(), r.retry, func() (any, error) {
			return callConstructor(c, r.constructor)
		})
		return retryErr
	})
	if err != nil {
		logger.Warn("component construction failed", map[string]interface{}{
			"component": r.key,
			"error":     err.Error(),
		})
		return nil, fmt.Errorf("di: constructing %s: %w", r.key, err)
	}

	r.instance = instance
	r.initialized = true
	return instance, nil
}

func (c *container) Registrations() []RegistrationInfo {
	c.mu.RLock()
	defer c.mu.RUnlock()

	infos := make([]RegistrationInfo, 0, len(c.components)+len(c.singletons))
	for key, reg := range c.components {
		reg.mu.Lock()
		infos = append(infos, RegistrationInfo{Key: key, Mode: reg.mode, Initialized: reg.initialized})
		reg.mu.Unlock()
	}
	for key := range c.singletons {
		infos = append(infos, RegistrationInfo{Key: key, Mode: Singleton, Initialized: true})
	}
	return infos
}

func (c *container) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var firstErr error
	for _, reg := range c.components {
		reg.mu.Lock()
		if reg.initialized {
			if closer, ok := reg.instance.(interface{ Close() error }); ok {
				if err := closer.Close(); err != nil && firstErr == nil {
					firstErr = err
				}
			}
		}
		reg.mu.Unlock()
	}
	for _, instance := range c.singletons {
		if closer, ok := instance.(interface{ Close() error }); ok {
			if err := closer.Close(); err != nil && firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// callConstructor invokes a constructor of one of the supported shapes:
// func() T, func() (T, error), func(context.Context) (T, error), or
// func(Container) (T, error).
func callConstructor(c Container, constructor any) (any, error) {
	fn := reflect.ValueOf(constructor)
	if fn.Kind() != reflect.Func {
		return nil, fmt.Errorf("constructor must be a function, got %T", constructor)
	}

	fnType := fn.Type()
	var args []reflect.Value
	switch fnType.NumIn() {
	case 0:
	case 1:
		if fnType.In(0).String() == "context.Context" {
			args = []reflect.Value{reflect.ValueOf(context.Background())}
		} else {
			args = []reflect.Value{reflect.ValueOf(c)}
		}
	default:
		return nil, fmt.Errorf("constructor takes at most one argument")
	}

	results := fn.Call(args)
	switch len(results) {
	case 1:
		return results[0].Interface(), nil
	case 2:
		instance := results[0].Interface()
		if errVal := results[1].Interface(); errVal != nil {
			return nil, errVal.(error)
		}
		return instance, nil
	default:
		return nil, fmt.Errorf("constructor must return (instance) or (instance, error)")
	}
}

package factory

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/lefred/mysql-component-viruscan/internal/scanner"
	"github.com/lefred/mysql-component-viruscan/internal/scanner/builtin"
)

// Config is the subset of configuration needed to create a backend.
type Config struct {
	Backend     string
	Include     string
	ScanTimeout time.Duration
}

type constructor func(cfg Config) scanner.Backend

var (
	mu       sync.Mutex
	registry = map[string]constructor{
		"builtin": func(cfg Config) scanner.Backend { return builtin.New(cfg.Include) },
	}
)

// Register makes a backend available under name.
func Register(name string, fn func(cfg Config) scanner.Backend) {
	mu.Lock()
	defer mu.Unlock()
	registry[name] = fn
}

// Backends returns the registered backend names, sorted.
func Backends() []string {
	mu.Lock()
	defer mu.Unlock()
	out := make([]string, 0, len(registry))
	for name := range registry {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// New creates the backend named in cfg. An empty name selects "builtin".
// The returned backend runs its library initialization at most once per
// process, however many times New is called.
func New(cfg Config) (scanner.Backend, error) {
	name := cfg.Backend
	if name == "" {
		name = "builtin"
	}
	mu.Lock()
	fn, ok := registry[name]
	mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("unknown scan backend %q (available: %v)", name, Backends())
	}
	return &onceInit{Backend: fn(cfg), once: initOnce(name)}, nil
}

type initResult struct {
	once sync.Once
	err  error
}

var inits sync.Map // backend name -> *initResult

func initOnce(name string) *initResult {
	v, _ := inits.LoadOrStore(name, &initResult{})
	return v.(*initResult)
}

type onceInit struct {
	scanner.Backend
	once *initResult
}

func (o *onceInit) Init() error {
	o.once.once.Do(func() { o.once.err = o.Backend.Init() })
	return o.once.err
}

package command

import (
	"slices"
	"sync"

	"golang.org/x/exp/maps"

	"github.com/keboola/lockstep-cluster/internal/pkg/utils/errors"
)

// Factory creates an empty command, the command is then decoded into it.
// The factory must return a pointer.
type Factory func() Command

// Registry maps command kinds and routine names to implementations.
// All ranks must have the same registrations.
type Registry struct {
	lock     sync.RWMutex
	commands map[Kind]Factory
	routines map[string]Routine
}

// validator is implemented by commands which must be checked against the registry after decoding.
type validator interface {
	validate(r *Registry) error
}

// NewRegistry creates a registry with the built-in commands StopWorker and DistributedApply.
func NewRegistry() *Registry {
	r := &Registry{
		commands: make(map[Kind]Factory),
		routines: make(map[string]Routine),
	}
	r.MustRegister(KindStopWorker, func() Command { return &StopWorker{} })
	r.MustRegister(KindDistributedApply, func() Command { return &DistributedApply{} })
	return r
}

func (r *Registry) Register(kind Kind, factory Factory) error {
	if kind == "" {
		return errors.New("command kind cannot be empty")
	}

	r.lock.Lock()
	defer r.lock.Unlock()
	if _, found := r.commands[kind]; found {
		return errors.Errorf(`command kind "%s" is already registered`, kind)
	}
	r.commands[kind] = factory
	return nil
}

func (r *Registry) MustRegister(kind Kind, factory Factory) {
	if err := r.Register(kind, factory); err != nil {
		panic(err)
	}
}

func (r *Registry) RegisterRoutine(routine Routine) error {
	name := routine.RoutineName()
	if name == "" {
		return errors.New("routine name cannot be empty")
	}

	r.lock.Lock()
	defer r.lock.Unlock()
	if _, found := r.routines[name]; found {
		return errors.Errorf(`routine "%s" is already registered`, name)
	}
	r.routines[name] = routine
	return nil
}

func (r *Registry) MustRegisterRoutine(routine Routine) {
	if err := r.RegisterRoutine(routine); err != nil {
		panic(err)
	}
}

func (r *Registry) Routine(name string) (Routine, bool) {
	r.lock.RLock()
	defer r.lock.RUnlock()
	routine, found := r.routines[name]
	return routine, found
}

// Kinds returns sorted registered command kinds.
func (r *Registry) Kinds() []Kind {
	r.lock.RLock()
	defer r.lock.RUnlock()
	kinds := maps.Keys(r.commands)
	slices.Sort(kinds)
	return kinds
}

// Routines returns sorted registered routine names.
func (r *Registry) Routines() []string {
	r.lock.RLock()
	defer r.lock.RUnlock()
	names := maps.Keys(r.routines)
	slices.Sort(names)
	return names
}

func (r *Registry) factory(kind Kind) (Factory, bool) {
	r.lock.RLock()
	defer r.lock.RUnlock()
	factory, found := r.commands[kind]
	return factory, found
}

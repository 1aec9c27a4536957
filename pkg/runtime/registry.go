package runtime

import (
	"sync"

	"github.com/kevredlabs/ro-sham-bo/pkg/types"
)

// Program is implemented by native programs hosted on this node.
type Program interface {
	// Execute runs one instruction within the given context.
	Execute(ctx *ExecutionContext, instruction *types.Instruction) error
}

// ProgramFunc is a function adapter for Program.
type ProgramFunc func(ctx *ExecutionContext, instruction *types.Instruction) error

// Execute implements Program.
func (f ProgramFunc) Execute(ctx *ExecutionContext, instruction *types.Instruction) error {
	return f(ctx, instruction)
}

// ProgramRegistry maps program IDs to their executors.
type ProgramRegistry struct {
	mu       sync.RWMutex
	programs map[types.Pubkey]Program
	names    map[types.Pubkey]string
}

// NewProgramRegistry creates an empty program registry.
func NewProgramRegistry() *ProgramRegistry {
	return &ProgramRegistry{
		programs: make(map[types.Pubkey]Program),
		names:    make(map[types.Pubkey]string),
	}
}

// Register registers a program executor under the given program ID.
func (r *ProgramRegistry) Register(id types.Pubkey, name string, program Program) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.programs[id] = program
	r.names[id] = name
}

// Get returns the executor for the given program ID.
func (r *ProgramRegistry) Get(id types.Pubkey) (Program, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	program, ok := r.programs[id]
	return program, ok
}

// Name returns the registered name for the given program ID.
func (r *ProgramRegistry) Name(id types.Pubkey) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	name, ok := r.names[id]
	return name, ok
}

// Has checks if a program is registered.
func (r *ProgramRegistry) Has(id types.Pubkey) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.programs[id]
	return ok
}

// List returns all registered program IDs.
func (r *ProgramRegistry) List() []types.Pubkey {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]types.Pubkey, 0, len(r.programs))
	for id := range r.programs {
		ids = append(ids, id)
	}
	return ids
}

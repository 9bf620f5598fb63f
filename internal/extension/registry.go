package extension

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
)

// LifecycleOptions describe the module an extension belongs to.
type LifecycleOptions struct {
	ModuleName  string
	FeatureName string
}

// Handle identifies a registration.
type Handle struct {
	Slot         string    `json:"slot"`
	Name         string    `json:"name"`
	Module       string    `json:"module,omitempty"`
	Feature      string    `json:"feature,omitempty"`
	RegisteredAt time.Time `json:"registered_at"`
}

type registration struct {
	desc   Descriptor
	handle Handle
	seq    int
}

// Registry holds the registered extensions for the lifetime of the
// application. It is safe for concurrent use.
type Registry struct {
	mu     sync.RWMutex
	slots  map[string][]*registration
	seq    int
	logger *zap.Logger
	now    func() time.Time
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithLogger sets the registry logger.
func WithLogger(l *zap.Logger) RegistryOption {
	return func(r *Registry) { r.logger = l }
}

// NewRegistry creates an empty registry.
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		slots:  make(map[string][]*registration),
		logger: zap.NewNop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds d to its slot. A duplicate name in the slot is rejected and
// the existing registration is left untouched.
func (r *Registry) Register(d Descriptor, opts LifecycleOptions) (*Handle, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, reg := range r.slots[d.SlotID] {
		if reg.desc.Name == d.Name {
			return nil, &ConfigurationError{
				Slot:   d.SlotID,
				Name:   d.Name,
				Reason: fmt.Sprintf("name already registered by module %q", reg.handle.Module),
			}
		}
	}

	r.seq++
	reg := &registration{
		desc: d.clone(),
		handle: Handle{
			Slot:         d.SlotID,
			Name:         d.Name,
			Module:       opts.ModuleName,
			Feature:      opts.FeatureName,
			RegisteredAt: r.now(),
		},
		seq: r.seq,
	}
	r.slots[d.SlotID] = append(r.slots[d.SlotID], reg)

	r.logger.Debug("extension registered",
		zap.String("slot", d.SlotID),
		zap.String("name", d.Name),
		zap.String("module", opts.ModuleName))

	h := reg.handle
	return &h, nil
}

// Get returns the extension registered under name in slot.
func (r *Registry) Get(slot, name string) (Descriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, reg := range r.slots[slot] {
		if reg.desc.Name == name {
			return reg.desc.clone(), true
		}
	}
	return Descriptor{}, false
}

// Slot returns the extensions of slot ordered by Order, then by
// registration order.
func (r *Registry) Slot(slot string) []Descriptor {
	r.mu.RLock()
	regs := append([]*registration(nil), r.slots[slot]...)
	r.mu.RUnlock()

	sortRegistrations(regs)
	out := make([]Descriptor, len(regs))
	for i, reg := range regs {
		out[i] = reg.desc.clone()
	}
	return out
}

// Slots returns the names of the non-empty slots, sorted.
func (r *Registry) Slots() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.slots))
	for name, regs := range r.slots {
		if len(regs) > 0 {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// Lookup returns every extension named name, across slots.
func (r *Registry) Lookup(name string) []Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var regs []*registration
	for _, slot := range r.slots {
		for _, reg := range slot {
			if reg.desc.Name == name {
				regs = append(regs, reg)
			}
		}
	}
	sortRegistrations(regs)
	out := make([]Descriptor, len(regs))
	for i, reg := range regs {
		out[i] = reg.desc.clone()
	}
	return out
}

// Count returns the number of registered extensions.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := 0
	for _, regs := range r.slots {
		n += len(regs)
	}
	return n
}

// Entry is the diagnostic view of one registration.
type Entry struct {
	Handle
	Title string `json:"title,omitempty"`
	Path  string `json:"path,omitempty"`
	Kind  string `json:"kind,omitempty"`
	Order int    `json:"order"`
	Bound bool   `json:"bound"`
}

// Snapshot lists every registration, grouped by slot in slot order.
func (r *Registry) Snapshot() []Entry {
	var out []Entry
	for _, slot := range r.Slots() {
		r.mu.RLock()
		regs := append([]*registration(nil), r.slots[slot]...)
		r.mu.RUnlock()

		sortRegistrations(regs)
		for _, reg := range regs {
			out = append(out, Entry{
				Handle: reg.handle,
				Title:  reg.desc.Title,
				Path:   reg.desc.Path,
				Kind:   reg.desc.Kind(),
				Order:  reg.desc.Order,
				Bound:  reg.desc.Bind != nil,
			})
		}
	}
	return out
}

// Unload removes every registration. It is only used on full teardown.
func (r *Registry) Unload() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for _, regs := range r.slots {
		n += len(regs)
	}
	r.slots = make(map[string][]*registration)
	r.logger.Debug("registry unloaded", zap.Int("extensions", n))
	return n
}

func sortRegistrations(regs []*registration) {
	sort.SliceStable(regs, func(i, j int) bool {
		if regs[i].desc.Order != regs[j].desc.Order {
			return regs[i].desc.Order < regs[j].desc.Order
		}
		return regs[i].seq < regs[j].seq
	})
}

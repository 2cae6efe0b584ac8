package processor

import (
	"fmt"
	"sync"

	"github.com/abdul-hamid-achik/mediaflow/internal/apperror"
)

// Registry dispatches on the uploadType tag. Registration order is kept for
// listing; at most one strategy may claim an upload type.
type Registry struct {
	strategies map[UploadType]Strategy
	order      []Strategy
	mu         sync.RWMutex
}

func NewRegistry() *Registry {
	return &Registry{
		strategies: make(map[UploadType]Strategy),
	}
}

func (r *Registry) Register(s Strategy) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	t := s.UploadType()
	if !t.Valid() {
		return fmt.Errorf("%w: %q", ErrUnsupportedType, t)
	}
	if _, exists := r.strategies[t]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateUploadType, t)
	}

	r.strategies[t] = s
	r.order = append(r.order, s)
	return nil
}

func (r *Registry) MustRegister(s Strategy) {
	if err := r.Register(s); err != nil {
		panic(err)
	}
}

// Select returns the strategy for metadata, or ErrNoProcessor.
func (r *Registry) Select(metadata map[string]string) (Strategy, error) {
	t := UploadType(metadata[MetaUploadType])

	r.mu.RLock()
	s, ok := r.strategies[t]
	r.mu.RUnlock()

	if !ok || !s.CanProcess(metadata) {
		return nil, apperror.Wrap(fmt.Errorf("uploadType %q", t), ErrNoProcessor)
	}
	return s, nil
}

func (r *Registry) List() []Strategy {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Strategy, len(r.order))
	copy(out, r.order)
	return out
}

// Missing returns the known upload types no strategy has claimed.
func (r *Registry) Missing() []UploadType {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var missing []UploadType
	for _, t := range UploadTypes {
		if _, ok := r.strategies[t]; !ok {
			missing = append(missing, t)
		}
	}
	return missing
}

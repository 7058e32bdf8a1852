package runtime

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"harness/internal/domain/execution"
)

// ErrUnsupportedLanguage is returned when no module is registered for a language.
var ErrUnsupportedLanguage = errors.New("unsupported language")

// Registry wires language modules into a single Engine implementation.
type Registry struct {
	mu      sync.RWMutex
	modules map[execution.Language]Module
}

var _ Engine = (*Registry)(nil)

// NewRegistry constructs a registry from the supplied modules.
func NewRegistry(mods ...Module) (*Registry, error) {
	reg := &Registry{
		modules: make(map[execution.Language]Module, len(mods)),
	}

	for _, module := range mods {
		if module == nil {
			return nil, fmt.Errorf("runtime module cannot be nil")
		}

		lang := module.Language()
		if lang == "" {
			return nil, fmt.Errorf("runtime module missing language identifier")
		}
		if !lang.Valid() {
			return nil, fmt.Errorf("runtime module for unsupported language %q", lang)
		}
		if _, exists := reg.modules[lang]; exists {
			return nil, fmt.Errorf("duplicate runtime module for language %q", lang)
		}

		reg.modules[lang] = module
	}

	if len(reg.modules) == 0 {
		return nil, fmt.Errorf("at least one runtime module must be registered")
	}

	return reg, nil
}

// Module returns the module responsible for lang.
func (r *Registry) Module(lang execution.Language) (Module, error) {
	r.mu.RLock()
	module, ok := r.modules[lang]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedLanguage, lang)
	}
	return module, nil
}

// Languages lists the registered languages in sorted order.
func (r *Registry) Languages() []execution.Language {
	r.mu.RLock()
	defer r.mu.RUnlock()

	langs := make([]execution.Language, 0, len(r.modules))
	for lang := range r.modules {
		langs = append(langs, lang)
	}
	sort.Slice(langs, func(i, j int) bool { return langs[i] < langs[j] })
	return langs
}

// Close releases resources held by each module.
func (r *Registry) Close() error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var errs []error
	for lang, module := range r.modules {
		if err := module.Close(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", lang, err))
		}
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	return nil
}

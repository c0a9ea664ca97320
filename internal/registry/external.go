package registry

import (
	"fmt"
	"sort"
	"sync"

	"github.com/wardle/go-terminology/internal/opcontext"
)

// ExternalPackage is the single entry point an external factory package
// exposes: given the i18n support handle, it returns the factories it
// contributes.
type ExternalPackage func(tr *opcontext.Translator) []Factory

var (
	externalMu sync.RWMutex
	external   = make(map[string]ExternalPackage)
)

// RegisterExternal names an external package's entry point, in the manner
// of database/sql driver registration: packages call this from init, and
// the registry configuration selects them by name.
func RegisterExternal(name string, pkg ExternalPackage) {
	externalMu.Lock()
	defer externalMu.Unlock()
	if _, dup := external[name]; dup {
		panic("registry: RegisterExternal called twice for " + name)
	}
	external[name] = pkg
}

// ExternalPackages lists the registered external package names.
func ExternalPackages() []string {
	externalMu.RLock()
	defer externalMu.RUnlock()
	out := make([]string, 0, len(external))
	for name := range external {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// LoadExternal resolves each named package and registers the factories it
// yields. Loading stops at the first unknown name or failing factory.
func (r *Registry) LoadExternal(names []string, tr *opcontext.Translator) error {
	for _, name := range names {
		externalMu.RLock()
		pkg, ok := external[name]
		externalMu.RUnlock()
		if !ok {
			return fmt.Errorf("registry: unknown external package %q", name)
		}
		for _, f := range pkg(tr) {
			if err := r.Register(f); err != nil {
				return err
			}
		}
	}
	return nil
}

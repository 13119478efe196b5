package meta

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// FormatNamespace is the fixed namespace format handlers live under.
// Fully qualified handler names are "<namespace>.<name>".
const FormatNamespace = "osbuild.formats"

// Format is the capability a manifest format handler provides: a
// version tag, a two-part documentation block (first line is the short
// label, the remainder the description) and validation of a whole
// manifest description. Handlers carry real logic, they are also used
// for parsing and serializing manifests elsewhere.
type Format interface {
	Version() string
	Docs() string
	Validate(ix *Index, manifest map[string]any) *ValidationResult
}

// The registry of format handlers. There is no dynamic loading
// facility, so handlers register themselves explicitly at startup;
// registration from multiple init functions is the one place that
// needs locking.
var (
	formatsMu sync.RWMutex
	formats   = make(map[string]Format)
)

// RegisterFormat registers the handler under the fully qualified name.
// It panics when the name is outside the format namespace or already
// taken; both are startup-time programming errors.
func RegisterFormat(name string, f Format) {
	if f == nil {
		panic("meta: RegisterFormat with nil handler")
	}
	if !strings.HasPrefix(name, FormatNamespace+".") {
		panic(fmt.Sprintf("meta: format %q outside namespace %q", name, FormatNamespace))
	}

	formatsMu.Lock()
	defer formatsMu.Unlock()

	if _, exists := formats[name]; exists {
		panic(fmt.Sprintf("meta: format %q already registered", name))
	}
	formats[name] = f
}

func lookupFormat(name string) (Format, bool) {
	formatsMu.RLock()
	defer formatsMu.RUnlock()
	f, ok := formats[name]
	return f, ok
}

// listFormatNames returns the qualified names of all registered
// handlers. The order is sorted and thus stable within one binary but
// is not a cross-host contract.
func listFormatNames() []string {
	formatsMu.RLock()
	defer formatsMu.RUnlock()

	names := make([]string, 0, len(formats))
	for name := range formats {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// FormatInfo is the meta information about one manifest format: the
// resolved handler, its version tag and its split documentation.
type FormatInfo struct {
	Format      Format
	Version     string
	Info        string
	Description string
}

// LoadFormatInfo resolves the handler registered under name. A name
// that resolves to nothing is a deployment error and fails with a Go
// error, unlike missing modules which are expected.
func LoadFormatInfo(name string) (*FormatInfo, error) {
	f, ok := lookupFormat(name)
	if !ok {
		return nil, fmt.Errorf("could not load format %q", name)
	}

	short, desc, _ := strings.Cut(f.Docs(), "\n")
	return &FormatInfo{
		Format:      f,
		Version:     f.Version(),
		Info:        strings.TrimSpace(short),
		Description: strings.TrimSpace(desc),
	}, nil
}

package backend

import (
	"sort"
	"sync"
	"time"

	"github.com/tidalfs/objstore"
)

// Options carries the provider-independent connection settings a registered constructor needs. Backends map
// these onto their own richer option structs; empty fields mean "use the backend's default or environment".
type Options struct {
	AccessKeyID        string        `json:"accessKeyId,omitempty" yaml:"access_key_id,omitempty"`
	SecretAccessKey    string        `json:"secretAccessKey,omitempty" yaml:"secret_access_key,omitempty"`
	Endpoint           string        `json:"endpoint,omitempty" yaml:"endpoint,omitempty"`
	Region             string        `json:"region,omitempty" yaml:"region,omitempty"`
	InsecureSkipVerify bool          `json:"insecureSkipVerify,omitempty" yaml:"insecure_skip_verify,omitempty"`
	ProxyURL           string        `json:"proxyUrl,omitempty" yaml:"proxy_url,omitempty"`
	Timeout            time.Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`
}

// NewStoreFunc constructs a Store for one bucket (and optional key prefix) on the backend's service.
// Constructors are registered per scheme so multiple credential sets can coexist in one process; nothing
// about a constructed Store is shared with later constructions.
type NewStoreFunc func(bucket, prefix string, opts Options) (objstore.Store, error)

var mmu sync.RWMutex
var m map[string]NewStoreFunc

// Register a new store constructor in the backend map
func Register(scheme string, fn NewStoreFunc) {
	mmu.Lock()
	m[scheme] = fn
	mmu.Unlock()
}

// Unregister unregisters a store constructor from the backend map
func Unregister(scheme string) {
	mmu.Lock()
	delete(m, scheme)
	mmu.Unlock()
}

// UnregisterAll unregisters all store constructors from the backend map
func UnregisterAll() {
	// mainly for tests
	mmu.Lock()
	m = make(map[string]NewStoreFunc)
	mmu.Unlock()
}

// Backend returns the store constructor registered for scheme, or nil when none is
func Backend(scheme string) NewStoreFunc {
	mmu.RLock()
	defer mmu.RUnlock()
	return m[scheme]
}

// RegisteredBackends returns an array of registered scheme names
func RegisteredBackends() []string {
	var f []string
	mmu.RLock()
	for k := range m {
		f = append(f, k)
	}
	mmu.RUnlock()
	sort.Strings(f)
	return f
}

func init() {
	m = make(map[string]NewStoreFunc)
}

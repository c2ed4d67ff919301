// Package cache holds the per-connection caches of paramset descriptions
// and raw device descriptions.
package cache

import (
	"sync"

	"github.com/tonigrzb/hahomematic/types"
)

// ParamsetDescriptions is the nested cache of parameter-set descriptions:
// interface id, then device/channel address, then paramset kind. Entries
// are only mutated by fetch operations; once a description exists it is
// reused unless an update is requested.
type ParamsetDescriptions struct {
	persister *persister

	mu    sync.RWMutex
	cache map[string]map[string]map[string]types.ParamsetDescription
}

// NewParamsetDescriptions creates the paramset cache. When path is
// non-empty the cache persists there after every mutating batch.
func NewParamsetDescriptions(path string) *ParamsetDescriptions {
	return &ParamsetDescriptions{
		persister: newPersister(path),
		cache:     map[string]map[string]map[string]types.ParamsetDescription{},
	}
}

// Get returns the cached description for the given triple.
func (p *ParamsetDescriptions) Get(interfaceID, address, kind string) (types.ParamsetDescription, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	description, ok := p.cache[interfaceID][address][kind]
	return description, ok
}

// Add stores a description for the given triple.
func (p *ParamsetDescriptions) Add(interfaceID, address, kind string, description types.ParamsetDescription) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cache[interfaceID] == nil {
		p.cache[interfaceID] = map[string]map[string]types.ParamsetDescription{}
	}
	if p.cache[interfaceID][address] == nil {
		p.cache[interfaceID][address] = map[string]types.ParamsetDescription{}
	}
	p.cache[interfaceID][address][kind] = description
}

// Reset clears all kinds cached for an address, ahead of a forced refresh.
func (p *ParamsetDescriptions) Reset(interfaceID, address string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cache[interfaceID] == nil {
		p.cache[interfaceID] = map[string]map[string]types.ParamsetDescription{}
	}
	p.cache[interfaceID][address] = map[string]types.ParamsetDescription{}
}

// HasAddress reports whether any paramset is cached for the address.
func (p *ParamsetDescriptions) HasAddress(interfaceID, address string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.cache[interfaceID][address]
	return ok
}

// HasInterface reports whether anything is cached for the interface.
func (p *ParamsetDescriptions) HasInterface(interfaceID string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.cache[interfaceID]) > 0
}

// Save persists the cache. It is called after every mutating fetch batch.
func (p *ParamsetDescriptions) Save() error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.persister.save(p.cache)
}

// Load seeds the cache from its persisted state. A missing file is not an
// error; the cache starts empty.
func (p *ParamsetDescriptions) Load() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	loaded := map[string]map[string]map[string]types.ParamsetDescription{}
	if err := p.persister.load(&loaded); err != nil {
		return err
	}
	p.cache = loaded
	return nil
}

// DeviceDescriptions is the per-interface store of raw device and channel
// descriptions. It is populated by the device-discovery collaborator and
// treated as read-only input when deciding what to fetch.
type DeviceDescriptions struct {
	mu    sync.RWMutex
	cache map[string]map[string]types.DeviceDescription
}

// NewDeviceDescriptions creates an empty device-description store.
func NewDeviceDescriptions() *DeviceDescriptions {
	return &DeviceDescriptions{
		cache: map[string]map[string]types.DeviceDescription{},
	}
}

// Add stores the description of one device or channel.
func (d *DeviceDescriptions) Add(interfaceID string, description types.DeviceDescription) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.cache[interfaceID] == nil {
		d.cache[interfaceID] = map[string]types.DeviceDescription{}
	}
	d.cache[interfaceID][description.Address] = description
}

// Get returns the description for an address.
func (d *DeviceDescriptions) Get(interfaceID, address string) (types.DeviceDescription, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	description, ok := d.cache[interfaceID][address]
	return description, ok
}

// Addresses returns every known device/channel address of the interface,
// in no particular order.
func (d *DeviceDescriptions) Addresses(interfaceID string) []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	addresses := make([]string, 0, len(d.cache[interfaceID]))
	for address := range d.cache[interfaceID] {
		addresses = append(addresses, address)
	}
	return addresses
}

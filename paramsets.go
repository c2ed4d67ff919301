package hahomematic

import (
	"context"

	"github.com/tonigrzb/hahomematic/types"
)

// describeParamset issues the legacy describe call for one (address, kind)
// pair and converts the wire representation.
func (c *clientBase) describeParamset(ctx context.Context, address, kind string) (types.ParamsetDescription, error) {
	res, err := c.call(ctx, "getParamsetDescription", address, kind)
	if err != nil {
		return nil, err
	}
	return convertParamsetDescription(res), nil
}

// FetchParamset fetches a specific paramset description and adds it to the
// known ones. An entry that already exists is reused unless update is set;
// a failed fetch is logged and leaves the prior entry in place.
func (c *clientBase) FetchParamset(ctx context.Context, address, kind string, update bool) error {
	if _, ok := c.paramsets.Get(c.interfaceID, address, kind); !ok || update {
		c.logger.Debug("fetching paramset", "kind", kind, "address", address)
		description, err := c.describeParamset(ctx, address, kind)
		if err != nil {
			c.logger.Error("unable to get paramset", "kind", kind, "address", address, "error", err)
		} else {
			c.paramsets.Add(c.interfaceID, address, kind, description)
		}
	}
	return c.paramsets.Save()
}

// FetchParamsets fetches the relevant paramsets advertised by the given
// device description. One kind failing does not abort the others; the
// failed kind is recorded as an empty set to avoid refetching within a run.
func (c *clientBase) FetchParamsets(ctx context.Context, description types.DeviceDescription, update bool) error {
	c.fetchParamsets(ctx, description, update)
	return c.paramsets.Save()
}

func (c *clientBase) fetchParamsets(ctx context.Context, description types.DeviceDescription, update bool) {
	address := description.Address
	if c.paramsets.HasAddress(c.interfaceID, address) && !update {
		return
	}

	c.logger.Debug("fetching paramsets", "address", address)
	c.paramsets.Reset(c.interfaceID, address)
	for _, kind := range types.RelevantParamsets {
		if !contains(description.Paramsets, kind) {
			continue
		}
		paramset, err := c.describeParamset(ctx, address, kind)
		if err != nil {
			c.logger.Error("unable to get paramset", "kind", kind, "address", address, "error", err)
			paramset = types.ParamsetDescription{}
		}
		c.paramsets.Add(c.interfaceID, address, kind, paramset)
	}
}

// FetchAllParamsets fetches paramsets for every known device and channel
// address of this interface. With skipExisting, addresses seeded from the
// persisted cache are not refetched, which makes reattachment after a
// restart fast.
func (c *clientBase) FetchAllParamsets(ctx context.Context, skipExisting bool) error {
	for _, address := range c.devices.Addresses(c.interfaceID) {
		if skipExisting && c.paramsets.HasAddress(c.interfaceID, address) {
			continue
		}
		if description, ok := c.devices.Get(c.interfaceID, address); ok {
			c.fetchParamsets(ctx, description, false)
		}
	}
	return c.paramsets.Save()
}

// UpdateParamsets forces a refresh for one address. An address unknown to
// the device-description store is logged and ignored; the device may have
// been removed since the update was requested.
func (c *clientBase) UpdateParamsets(ctx context.Context, address string) error {
	description, ok := c.devices.Get(c.interfaceID, address)
	if !ok {
		c.logger.Warn("address missing in device descriptions, not updating paramsets", "address", address)
		return nil
	}
	c.fetchParamsets(ctx, description, true)
	return c.paramsets.Save()
}

// ParamsetDescription returns the cached description for an address and
// paramset kind.
func (c *clientBase) ParamsetDescription(address, kind string) (types.ParamsetDescription, bool) {
	return c.paramsets.Get(c.interfaceID, address, kind)
}

func contains(haystack []string, needle string) bool {
	for _, s := range haystack {
		if s == needle {
			return true
		}
	}
	return false
}

package hahomematic

import (
	"context"

	"github.com/tonigrzb/hahomematic/types"
)

// homegearClient is the client flavor for Homegear-style controllers.
// There is no JSON-RPC backend for it; every operation uses the legacy RPC
// interface.
type homegearClient struct {
	clientBase
}

var _ Client = (*homegearClient)(nil)

func (c *homegearClient) Backend() types.Backend {
	return types.BackendHomegear
}

// IsConnected asks Homegear whether this client's event server is still
// registered, and checks the initialization freshness window.
func (c *homegearClient) IsConnected(ctx context.Context) bool {
	if !c.config.Connect {
		return false
	}
	return c.freshlyInitialized(c.checkConnection(ctx))
}

func (c *homegearClient) checkConnection(ctx context.Context) bool {
	res, err := c.call(ctx, "clientServerInitialized", c.interfaceID)
	if err != nil {
		c.logger.Warn("clientServerInitialized failed", "error", err)
		c.clearInitialized()
		return false
	}
	if toBool(res) {
		c.markInitialized()
		return true
	}
	c.logger.Warn("clearing initialization state, client server not initialized")
	c.clearInitialized()
	return false
}

// FetchNames resolves display names purely from per-device metadata
// queries; Homegear has no JSON-RPC device listing.
func (c *homegearClient) FetchNames(ctx context.Context) error {
	c.logger.Debug("fetching names via metadata")
	for _, address := range c.devices.Addresses(c.interfaceID) {
		res, err := c.telemetry(ctx, "getMetadata", address, "NAME")
		if err != nil {
			return err
		}
		if name := toString(res); name != "" {
			c.setName(address, name)
		}
	}
	return nil
}

func (c *homegearClient) SetSystemVariable(ctx context.Context, name string, value any) error {
	_, err := c.telemetry(ctx, "setSystemVariable", name, value)
	return err
}

func (c *homegearClient) DeleteSystemVariable(ctx context.Context, name string) error {
	_, err := c.telemetry(ctx, "deleteSystemVariable", name)
	return err
}

func (c *homegearClient) GetSystemVariable(ctx context.Context, name string) (any, error) {
	return c.telemetry(ctx, "getSystemVariable", name)
}

func (c *homegearClient) GetAllSystemVariables(ctx context.Context) (map[string]any, error) {
	res, err := c.telemetry(ctx, "getAllSystemVariables")
	if err != nil || res == nil {
		return map[string]any{}, err
	}
	values, _ := res.(map[string]any)
	return values, nil
}

// homegearSerial is the fixed serial Homegear backends report; there is no
// board serial to query.
const homegearSerial = "Homegear_SN0815"

// Programs, groupings and bulk device data live behind the JSON-RPC
// interface, which Homegear does not offer.

func (c *homegearClient) ExecuteProgram(ctx context.Context, id string) error {
	c.logger.Debug("program execution not supported", "id", id)
	return nil
}

func (c *homegearClient) GetAllPrograms(context.Context, bool) ([]types.ProgramData, error) {
	return nil, nil
}

func (c *homegearClient) GetRooms(context.Context) (map[string][]string, error) {
	return map[string][]string{}, nil
}

func (c *homegearClient) GetFunctions(context.Context) (map[string][]string, error) {
	return map[string][]string{}, nil
}

func (c *homegearClient) GetSerial(context.Context) (string, error) {
	return homegearSerial, nil
}

func (c *homegearClient) GetAllDeviceData(context.Context) (map[string]map[string]map[string]any, error) {
	return map[string]map[string]map[string]any{}, nil
}

func (c *homegearClient) GetAuthEnabled(context.Context) (bool, error) {
	return false, nil
}

func (c *homegearClient) GetHTTPSRedirectEnabled(context.Context) (bool, error) {
	return false, nil
}

// GetVirtualRemote always returns none; Homegear has no virtual remote.
func (c *homegearClient) GetVirtualRemote() string {
	return ""
}

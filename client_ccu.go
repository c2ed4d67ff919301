package hahomematic

import (
	"context"

	"github.com/tonigrzb/hahomematic/types"
)

// ccuClient is the client flavor for CCU-style controllers. It prefers the
// JSON-RPC interface when credentials are configured and falls back to the
// legacy RPC interface otherwise.
type ccuClient struct {
	clientBase
}

var _ Client = (*ccuClient)(nil)

func (c *ccuClient) Backend() types.Backend {
	return types.BackendCCU
}

func (c *ccuClient) hasCredentials() bool {
	return c.config.Username != "" && c.config.Password != ""
}

// IsConnected pings the controller, which also produces a PONG event for
// this interface, and checks the initialization freshness window.
func (c *ccuClient) IsConnected(ctx context.Context) bool {
	if !c.config.Connect {
		return false
	}
	return c.freshlyInitialized(c.checkConnection(ctx))
}

func (c *ccuClient) checkConnection(ctx context.Context) bool {
	res, err := c.call(ctx, "ping", c.interfaceID)
	if err != nil {
		c.logger.Warn("ping failed", "error", err)
		c.clearInitialized()
		return false
	}
	if toBool(res) {
		c.markInitialized()
		return true
	}
	c.clearInitialized()
	return false
}

// FetchNames resolves display names via the JSON-RPC device listing. The
// backend reports interfaces under port-derived identities; a port and its
// +30000/+40000 offset variants are the same logical interface.
func (c *ccuClient) FetchNames(ctx context.Context) error {
	if !c.hasCredentials() {
		c.logger.Warn("no credentials set, not fetching names via JSON-RPC")
		return nil
	}

	interfaces, err := c.session.ListInterfaces(ctx)
	if err != nil {
		return err
	}
	var interfaceName string
	for _, entry := range interfaces {
		switch entry.Port {
		case c.config.Port, c.config.Port + 30000, c.config.Port + 40000:
			interfaceName = entry.Name
		}
		if interfaceName != "" {
			break
		}
	}
	if interfaceName == "" {
		c.logger.Debug("no matching backend interface, not resolving names")
		return nil
	}

	details, err := c.session.ListAllDetail(ctx)
	if err != nil {
		return err
	}
	for _, device := range details {
		if device.Interface != interfaceName {
			continue
		}
		c.setName(device.Address, device.Name)
		for _, channel := range device.Channels {
			c.setName(channel.Address, channel.Name)
		}
	}
	return nil
}

// System-variable CRUD dispatches to the JSON-RPC typed calls when
// credentials are present and falls back to the legacy RPC call otherwise.

func (c *ccuClient) SetSystemVariable(ctx context.Context, name string, value any) error {
	if c.hasCredentials() {
		return c.session.SetSystemVariable(ctx, name, value)
	}
	_, err := c.telemetry(ctx, "setSystemVariable", name, value)
	return err
}

func (c *ccuClient) DeleteSystemVariable(ctx context.Context, name string) error {
	if c.hasCredentials() {
		return c.session.DeleteSystemVariable(ctx, name)
	}
	_, err := c.telemetry(ctx, "deleteSystemVariable", name)
	return err
}

func (c *ccuClient) GetSystemVariable(ctx context.Context, name string) (any, error) {
	if c.hasCredentials() {
		return c.session.GetSystemVariable(ctx, name)
	}
	return c.telemetry(ctx, "getSystemVariable", name)
}

func (c *ccuClient) GetAllSystemVariables(ctx context.Context) (map[string]any, error) {
	if c.hasCredentials() {
		variables, err := c.session.GetAllSystemVariables(ctx)
		if err != nil {
			return nil, err
		}
		values := make(map[string]any, len(variables))
		for _, variable := range variables {
			values[variable.Name] = variable.Value
		}
		return values, nil
	}

	res, err := c.telemetry(ctx, "getAllSystemVariables")
	if err != nil || res == nil {
		return map[string]any{}, err
	}
	values, _ := res.(map[string]any)
	return values, nil
}

// Program, grouping and bulk-read operations are only available through
// the JSON-RPC interface and therefore require credentials.

func (c *ccuClient) ExecuteProgram(ctx context.Context, id string) error {
	return c.session.ExecuteProgram(ctx, id)
}

func (c *ccuClient) GetAllPrograms(ctx context.Context, includeInternal bool) ([]types.ProgramData, error) {
	return c.session.GetAllPrograms(ctx, includeInternal)
}

func (c *ccuClient) GetRooms(ctx context.Context) (map[string][]string, error) {
	return c.session.ChannelIDsByRoom(ctx)
}

func (c *ccuClient) GetFunctions(ctx context.Context) (map[string][]string, error) {
	return c.session.ChannelIDsByFunction(ctx)
}

func (c *ccuClient) GetSerial(ctx context.Context) (string, error) {
	return c.session.GetSerial(ctx)
}

func (c *ccuClient) GetAllDeviceData(ctx context.Context) (map[string]map[string]map[string]any, error) {
	return c.session.GetAllDeviceData(ctx)
}

func (c *ccuClient) GetAuthEnabled(ctx context.Context) (bool, error) {
	return c.session.GetAuthEnabled(ctx)
}

func (c *ccuClient) GetHTTPSRedirectEnabled(ctx context.Context) (bool, error) {
	return c.session.GetHTTPSRedirectEnabled(ctx)
}

// GetVirtualRemote scans the known virtual-remote addresses and returns
// the one owned by this connection's interface.
func (c *ccuClient) GetVirtualRemote() string {
	for _, address := range types.VirtualRemoteAddresses {
		if _, ok := c.devices.Get(c.interfaceID, address); ok {
			return address
		}
	}
	return ""
}

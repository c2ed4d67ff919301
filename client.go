package hahomematic

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/go-multierror"

	"github.com/tonigrzb/hahomematic/internal/cache"
	"github.com/tonigrzb/hahomematic/internal/jsonrpc"
	"github.com/tonigrzb/hahomematic/internal/rpcproxy"
	"github.com/tonigrzb/hahomematic/types"
)

// initTimeout is the freshness window of the initialization timestamp. A
// connection whose last successful init or probe is older than this is not
// considered connected.
const initTimeout = 120 * time.Second

// clientBase carries the state and operations shared by both client
// flavors. Flavor-specific behavior lives in ccuClient and homegearClient.
type clientBase struct {
	config      *Config
	logger      hclog.Logger
	interfaceID string
	initURL     string

	proxy     *rpcproxy.Proxy
	transport rpcproxy.Transport
	session   *jsonrpc.Client // nil for the Homegear flavor

	paramsets *cache.ParamsetDescriptions
	devices   *cache.DeviceDescriptions

	namesMu sync.RWMutex
	names   map[string]string

	// timeInitialized is the unix time of the last successful init or
	// liveness probe, 0 when not initialized.
	timeInitialized atomic.Int64

	now func() time.Time
}

func (c *clientBase) InterfaceID() string {
	return c.interfaceID
}

// call funnels a legacy RPC call through this connection's proxy worker.
// A transport-level failure de-initializes the timestamp state.
func (c *clientBase) call(ctx context.Context, method string, params ...any) (any, error) {
	res, err := c.proxy.Call(ctx, method, params...)
	if err != nil && errors.Is(err, types.ErrNoConnection) {
		c.timeInitialized.Store(0)
	}
	return res, err
}

// telemetry wraps call for best-effort operations: a remote fault is
// logged and swallowed, so one device's fault cannot take down the overall
// device list. Transport failures still propagate.
func (c *clientBase) telemetry(ctx context.Context, method string, params ...any) (any, error) {
	res, err := c.call(ctx, method, params...)
	if err != nil {
		if errors.Is(err, types.ErrProxy) {
			c.logger.Warn("call failed", "method", method, "error", err)
			return nil, nil
		}
		return nil, err
	}
	return res, nil
}

func (c *clientBase) markInitialized() {
	c.timeInitialized.Store(c.now().Unix())
}

func (c *clientBase) clearInitialized() {
	c.timeInitialized.Store(0)
}

// freshlyInitialized reports whether the probe succeeded and the
// initialization timestamp is still within the freshness window.
func (c *clientBase) freshlyInitialized(probeOK bool) bool {
	if !probeOK {
		return false
	}
	initialized := c.timeInitialized.Load()
	if initialized == 0 {
		return false
	}
	return c.now().Sub(time.Unix(initialized, 0)) < initTimeout
}

// Init registers the callback URL with the controller so it pushes events
// for this connection.
func (c *clientBase) Init(ctx context.Context) types.InitStatus {
	if !c.config.Connect {
		c.logger.Debug("init skipped, connection is non-connecting")
		return types.InitSkipped
	}
	if _, err := c.call(ctx, "init", c.initURL, c.interfaceID); err != nil {
		c.logger.Error("failed to initialize connection", "error", err)
		c.clearInitialized()
		return types.InitFailed
	}
	c.markInitialized()
	c.logger.Info("connection initialized", "callback", c.initURL)
	return types.InitSuccess
}

// DeInit stops the controller from sending events for this connection. Any
// active JSON-RPC session is logged out first.
func (c *clientBase) DeInit(ctx context.Context) types.InitStatus {
	if c.session != nil && c.session.IsActivated() {
		c.session.Logout(ctx)
	}
	if !c.config.Connect {
		c.logger.Debug("de-init skipped, connection is non-connecting")
		return types.InitSkipped
	}
	if c.timeInitialized.Load() == 0 {
		c.logger.Debug("de-init skipped, never initialized")
		return types.InitSkipped
	}
	if _, err := c.call(ctx, "init", c.initURL); err != nil {
		c.logger.Error("failed to de-initialize connection", "error", err)
		return types.InitFailed
	}
	c.clearInitialized()
	return types.InitSuccess
}

// ReInit performs DeInit followed by Init, unless DeInit failed.
func (c *clientBase) ReInit(ctx context.Context) types.InitStatus {
	if status := c.DeInit(ctx); status == types.InitFailed {
		return status
	}
	return c.Init(ctx)
}

func (c *clientBase) GetName(address string) (string, bool) {
	c.namesMu.RLock()
	defer c.namesMu.RUnlock()
	name, ok := c.names[address]
	return name, ok
}

func (c *clientBase) setName(address, name string) {
	c.namesMu.Lock()
	defer c.namesMu.Unlock()
	c.names[address] = name
}

func (c *clientBase) AddDeviceDescriptions(descriptions []types.DeviceDescription) {
	for _, description := range descriptions {
		c.devices.Add(c.interfaceID, description)
	}
}

// Metadata CRUD, best-effort.

func (c *clientBase) GetMetadata(ctx context.Context, address, key string) (any, error) {
	return c.telemetry(ctx, "getMetadata", address, key)
}

func (c *clientBase) GetAllMetadata(ctx context.Context, address string) (any, error) {
	return c.telemetry(ctx, "getAllMetadata", address)
}

func (c *clientBase) SetMetadata(ctx context.Context, address, key string, value any) error {
	_, err := c.telemetry(ctx, "setMetadata", address, key, value)
	return err
}

func (c *clientBase) DeleteMetadata(ctx context.Context, address, key string) error {
	_, err := c.telemetry(ctx, "deleteMetadata", address, key)
	return err
}

// SetInstallMode activates or deactivates install mode. When activating,
// the duration and either a device address or the mode are sent along.
func (c *clientBase) SetInstallMode(ctx context.Context, on bool, duration int, mode int, address string) error {
	args := []any{on}
	if on && duration > 0 {
		args = append(args, duration)
		if address != "" {
			args = append(args, address)
		} else {
			args = append(args, mode)
		}
	}
	_, err := c.telemetry(ctx, "setInstallMode", args...)
	return err
}

// GetInstallMode returns the remaining seconds install mode is active.
func (c *clientBase) GetInstallMode(ctx context.Context) (int, error) {
	res, err := c.telemetry(ctx, "getInstallMode")
	if err != nil {
		return 0, err
	}
	return toInt(res), nil
}

func (c *clientBase) GetServiceMessages(ctx context.Context) (any, error) {
	return c.telemetry(ctx, "getServiceMessages")
}

func (c *clientBase) RSSIInfo(ctx context.Context) (any, error) {
	return c.telemetry(ctx, "rssiInfo")
}

func (c *clientBase) ListBidcosInterfaces(ctx context.Context) (any, error) {
	return c.telemetry(ctx, "listBidcosInterfaces")
}

// SetValue writes a single parameter of a channel.
func (c *clientBase) SetValue(ctx context.Context, channelAddress, parameter string, value any) error {
	_, err := c.call(ctx, "setValue", channelAddress, parameter, value)
	return err
}

// PutParamset writes multiple parameters of a channel in one call.
func (c *clientBase) PutParamset(ctx context.Context, channelAddress, kind string, values map[string]any) error {
	_, err := c.call(ctx, "putParamset", channelAddress, kind, values)
	return err
}

// Stop releases the proxy worker and any open session. It is safe to call
// after a failed last call; teardown always runs to completion.
func (c *clientBase) Stop(ctx context.Context) error {
	var result *multierror.Error

	if c.session != nil {
		c.session.Logout(ctx)
	}
	c.proxy.Shutdown()

	if err := c.paramsets.Save(); err != nil {
		result = multierror.Append(result, err)
	}
	if err := c.transport.Close(); err != nil {
		result = multierror.Append(result, err)
	}
	return result.ErrorOrNil()
}

package hahomematic

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/tonigrzb/hahomematic/internal/cache"
	"github.com/tonigrzb/hahomematic/internal/jsonrpc"
	"github.com/tonigrzb/hahomematic/internal/rpcproxy"
	"github.com/tonigrzb/hahomematic/types"
)

// homegearMarkers identify a Homegear-or-compatible backend in its version
// string.
var homegearMarkers = []string{"Homegear", "pydevccu"}

// NewClient probes the configured endpoint, classifies the backend flavor
// and returns the matching client. Resolution is a one-shot operation
// performed once per connection setup; a failed version probe returns
// types.ErrConnectivity and the caller decides whether to retry.
func NewClient(ctx context.Context, config *Config) (Client, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}
	config.normalize()

	transport, err := rpcproxy.NewTransport(config.apiURL(), config.VerifyTLS)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", types.ErrConnectivity, err)
	}
	return resolve(ctx, config, transport)
}

// resolve builds the proxy bridge, issues the version query and constructs
// the client variant matching the response.
func resolve(ctx context.Context, config *Config, transport rpcproxy.Transport) (Client, error) {
	interfaceID := config.interfaceID()
	logger := config.Logger.Named("client").With("interface_id", interfaceID)
	proxy := rpcproxy.New(transport, logger)

	res, err := proxy.Call(ctx, "getVersion")
	if err != nil {
		proxy.Shutdown()
		_ = transport.Close()
		return nil, fmt.Errorf("%w: failed to get backend version, not creating client: %s", types.ErrConnectivity, err)
	}
	version := toString(res)

	base := clientBase{
		config:      config,
		logger:      logger,
		interfaceID: interfaceID,
		initURL:     config.callbackURL(),
		proxy:       proxy,
		transport:   transport,
		paramsets:   cache.NewParamsetDescriptions(paramsetCachePath(config)),
		devices:     cache.NewDeviceDescriptions(),
		names:       map[string]string{},
		now:         time.Now,
	}
	if err := base.paramsets.Load(); err != nil {
		logger.Warn("unable to load persisted paramset descriptions", "error", err)
	}

	for _, marker := range homegearMarkers {
		if strings.Contains(version, marker) {
			logger.Debug("resolved backend", "backend", types.BackendHomegear, "version", version)
			return &homegearClient{clientBase: base}, nil
		}
	}

	base.session = jsonrpc.New(jsonrpc.Config{
		DeviceURL: config.jsonURL(),
		Username:  config.Username,
		Password:  config.Password,
		TLS:       config.JSONTLS,
		VerifyTLS: config.VerifyTLS,
		Logger:    logger,
	})
	logger.Debug("resolved backend", "backend", types.BackendCCU, "version", version)
	return &ccuClient{clientBase: base}, nil
}

// paramsetCachePath returns the persistence location of the paramset
// cache, or "" when persistence is disabled.
func paramsetCachePath(config *Config) string {
	if config.CacheDir == "" {
		return ""
	}
	return filepath.Join(config.CacheDir, fmt.Sprintf("%s_paramset_descriptions.json", config.CentralName))
}

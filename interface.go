package hahomematic

import (
	"context"

	"github.com/tonigrzb/hahomematic/types"
)

// Client is the connection to one backend interface. Two flavors exist:
// the CCU flavor, which uses the JSON-RPC interface when credentials are
// configured and the legacy RPC interface otherwise, and the Homegear
// flavor, which only speaks the legacy RPC interface. The flavor is
// decided once, by NewClient.
type Client interface {
	// Backend returns the flavor of the connected controller.
	Backend() types.Backend

	// InterfaceID returns the stable identity of this connection, derived
	// from the central-unit instance name and the interface name.
	InterfaceID() string

	// Init registers this connection's callback URL with the controller so
	// it will push events. A non-connecting client reports skipped.
	Init(ctx context.Context) types.InitStatus

	// DeInit logs out of any active JSON-RPC session and unregisters the
	// callback URL. Reports skipped when never initialized.
	DeInit(ctx context.Context) types.InitStatus

	// ReInit performs DeInit followed by Init, unless DeInit failed.
	ReInit(ctx context.Context) types.InitStatus

	// IsConnected probes the backend and checks that the initialization
	// timestamp is within the freshness window. Both must hold.
	IsConnected(ctx context.Context) bool

	// FetchNames resolves device and channel display names from the
	// backend and stores them in the name cache.
	FetchNames(ctx context.Context) error

	// GetName returns the cached display name for an address.
	GetName(address string) (string, bool)

	// GetVirtualRemote returns the address of the controller-side virtual
	// remote owned by this connection, or "" if there is none.
	GetVirtualRemote() string

	// System-variable CRUD. The CCU flavor dispatches to JSON-RPC typed
	// calls when credentials are present; the Homegear flavor always uses
	// the legacy RPC call.
	GetSystemVariable(ctx context.Context, name string) (any, error)
	SetSystemVariable(ctx context.Context, name string, value any) error
	DeleteSystemVariable(ctx context.Context, name string) error
	GetAllSystemVariables(ctx context.Context) (map[string]any, error)

	// Program, grouping and bulk-read operations served by the JSON-RPC
	// interface. The Homegear flavor has no JSON-RPC backend and reports
	// empty results.
	ExecuteProgram(ctx context.Context, id string) error
	GetAllPrograms(ctx context.Context, includeInternal bool) ([]types.ProgramData, error)
	GetRooms(ctx context.Context) (map[string][]string, error)
	GetFunctions(ctx context.Context) (map[string][]string, error)
	GetSerial(ctx context.Context) (string, error)
	GetAllDeviceData(ctx context.Context) (map[string]map[string]map[string]any, error)

	// Backend security flags, also served by the JSON-RPC interface. The
	// Homegear flavor has neither flag and reports both as off.
	GetAuthEnabled(ctx context.Context) (bool, error)
	GetHTTPSRedirectEnabled(ctx context.Context) (bool, error)

	// Metadata CRUD. Best-effort pass-throughs to the legacy RPC call;
	// remote faults are logged, not propagated.
	GetMetadata(ctx context.Context, address, key string) (any, error)
	GetAllMetadata(ctx context.Context, address string) (any, error)
	SetMetadata(ctx context.Context, address, key string, value any) error
	DeleteMetadata(ctx context.Context, address, key string) error

	// Install-mode and telemetry pass-throughs, same best-effort policy.
	SetInstallMode(ctx context.Context, on bool, duration int, mode int, address string) error
	GetInstallMode(ctx context.Context) (int, error)
	GetServiceMessages(ctx context.Context) (any, error)
	RSSIInfo(ctx context.Context) (any, error)
	ListBidcosInterfaces(ctx context.Context) (any, error)

	// Parameter writes used by the entity layer, usually through a
	// CallParameterCollector.
	SetValue(ctx context.Context, channelAddress, parameter string, value any) error
	PutParamset(ctx context.Context, channelAddress, kind string, values map[string]any) error

	// Paramset-description cache operations.
	FetchParamset(ctx context.Context, address, kind string, update bool) error
	FetchParamsets(ctx context.Context, description types.DeviceDescription, update bool) error
	FetchAllParamsets(ctx context.Context, skipExisting bool) error
	UpdateParamsets(ctx context.Context, address string) error
	ParamsetDescription(address, kind string) (types.ParamsetDescription, bool)

	// AddDeviceDescriptions feeds raw device descriptions from the
	// device-discovery collaborator into this connection's store.
	AddDeviceDescriptions(descriptions []types.DeviceDescription)

	// Stop releases the proxy worker and any open session. It must be
	// called when the owning central unit tears the connection down.
	Stop(ctx context.Context) error
}

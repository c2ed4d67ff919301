package types

// Backend identifies the flavor of the connected controller.
type Backend string

const (
	// BackendCCU is a CCU-style controller. It offers the legacy RPC
	// interface and, with credentials, the JSON-RPC interface.
	BackendCCU = Backend("CCU")

	// BackendHomegear is a Homegear-style controller. It only offers the
	// legacy RPC interface.
	BackendHomegear = Backend("Homegear")
)

// InitStatus is the outcome of an Init or DeInit call. Initialization is
// retried by the central unit's reconnect loop, so the outcome is reported
// as a status instead of an error.
type InitStatus string

const (
	InitSuccess = InitStatus("success")
	InitSkipped = InitStatus("skipped")
	InitFailed  = InitStatus("failed")
)

// Paramset kinds relevant to device operation. Backends expose more kinds
// (LINK, SERVICE), but only these are fetched into the cache.
const (
	ParamsetValues = "VALUES"
	ParamsetMaster = "MASTER"
)

// RelevantParamsets is the allow-list of paramset kinds the cache fetches.
var RelevantParamsets = []string{ParamsetMaster, ParamsetValues}

// VirtualRemoteAddresses are the known addresses of controller-side
// virtual remote devices on a CCU.
var VirtualRemoteAddresses = []string{"BidCoS-RF", "BidCoS-Wir", "HmIP-RCV-1"}

// ParameterDescription describes a single parameter of a paramset, as
// returned by the legacy describe call.
type ParameterDescription struct {
	Type       string   `json:"TYPE"`
	Default    any      `json:"DEFAULT,omitempty"`
	Min        any      `json:"MIN,omitempty"`
	Max        any      `json:"MAX,omitempty"`
	Unit       string   `json:"UNIT,omitempty"`
	Flags      int      `json:"FLAGS"`
	Operations int      `json:"OPERATIONS"`
	ValueList  []string `json:"VALUE_LIST,omitempty"`
}

// ParamsetDescription maps parameter name to its description.
type ParamsetDescription map[string]ParameterDescription

// DeviceDescription is the raw description of a device or channel as
// pushed by the device-discovery collaborator.
type DeviceDescription struct {
	Address   string   `json:"ADDRESS"`
	Type      string   `json:"TYPE"`
	Paramsets []string `json:"PARAMSETS"`
	Children  []string `json:"CHILDREN,omitempty"`
	Parent    string   `json:"PARENT,omitempty"`
	Firmware  string   `json:"FIRMWARE,omitempty"`
	Version   int      `json:"VERSION,omitempty"`
	Interface string   `json:"INTERFACE,omitempty"`
	RxMode    int      `json:"RX_MODE,omitempty"`
}

// SysvarType is the backend's data type of a system variable.
type SysvarType = string

const (
	SysvarTypeLogic  = SysvarType("LOGIC")
	SysvarTypeNumber = SysvarType("NUMBER")
	SysvarTypeList   = SysvarType("LIST")
	SysvarTypeString = SysvarType("STRING")
)

// SystemVariable is one system variable of the backend, with its raw value
// parsed according to the reported type.
type SystemVariable struct {
	Name      string
	Type      SysvarType
	Value     any
	Unit      string
	ValueList []string
	Min       any
	Max       any
	Extended  bool
}

// ProgramData is one program defined on the backend.
type ProgramData struct {
	ID              string
	Name            string
	IsActive        bool
	IsInternal      bool
	LastExecuteTime string
}

// InterfaceEntry is one entry of the backend's interface listing.
type InterfaceEntry struct {
	Name string `json:"name"`
	Port int    `json:"port"`
}

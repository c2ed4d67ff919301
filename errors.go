package hahomematic

import "github.com/tonigrzb/hahomematic/types"

// The error taxonomy lives in the types package so both the internal
// transport layers and consumers can reference it. The aliases below keep
// errors.Is checks available without a second import.
var (
	// ErrConnectivity means the endpoint could not be reached or resolved
	// during connection setup. Resolution is one-shot; the caller decides
	// whether to retry.
	ErrConnectivity = types.ErrConnectivity

	// ErrNoConnection is a transport-level failure on a legacy call. The
	// connection is presumed down and the initialization timestamp is
	// cleared.
	ErrNoConnection = types.ErrNoConnection

	// ErrProxy means a legacy call completed but the backend reported a
	// remote fault.
	ErrProxy = types.ErrProxy

	// ErrAuthFailure means the JSON-RPC backend rejected the credentials.
	// The session is cleared and the error surfaces to the caller.
	ErrAuthFailure = types.ErrAuthFailure

	// ErrClient is any other JSON-RPC failure. The session is cleared and
	// may be re-established by a fresh login on the next call.
	ErrClient = types.ErrClient
)

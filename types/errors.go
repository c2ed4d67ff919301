package types

import "errors"

var (
	// these errors surface during connection setup
	ErrConnectivity = errors.New("cannot reach backend endpoint") // version probe failed, no client was created

	// these errors surface on legacy RPC calls
	ErrNoConnection = errors.New("no connection to backend") // transport level failure, connection presumed down
	ErrProxy        = errors.New("backend reported a fault") // the call completed but the backend returned an error
	ErrProxyStopped = errors.New("proxy has been shut down") // the proxy worker is no longer running

	// these errors surface on JSON-RPC calls
	ErrAuthFailure = errors.New("access denied by backend")      // credentials rejected, session cleared
	ErrClient      = errors.New("JSON-RPC request failed")       // any other JSON-RPC failure, session cleared
	ErrNoSession   = errors.New("could not establish a session") // login failed or no credentials configured
)

// ErrorNames maintains a mapping between the taxonomy errors and their
// variable names, used when rendering errors in logs and status reports.
var ErrorNames = map[error]string{
	ErrConnectivity: "ErrConnectivity",
	ErrNoConnection: "ErrNoConnection",
	ErrProxy:        "ErrProxy",
	ErrProxyStopped: "ErrProxyStopped",
	ErrAuthFailure:  "ErrAuthFailure",
	ErrClient:       "ErrClient",
	ErrNoSession:    "ErrNoSession",
}

// ErrorName returns the taxonomy name for err, or its message when err is
// not part of the taxonomy.
func ErrorName(err error) string {
	for sentinel, name := range ErrorNames {
		if errors.Is(err, sentinel) {
			return name
		}
	}
	if err == nil {
		return ""
	}
	return err.Error()
}

package hahomematic

import (
	"fmt"
	"strings"

	"github.com/hashicorp/go-hclog"
)

const (
	// DefaultPort is the legacy RPC port of the wireless interface.
	DefaultPort = 2001

	// DefaultJSONPort is the plain-http JSON-RPC port of a CCU.
	DefaultJSONPort = 80

	// DefaultJSONTLSPort is the https JSON-RPC port of a CCU.
	DefaultJSONTLSPort = 443
)

// Config parameterizes one backend connection.
type Config struct {
	// CentralName is the name of the owning central-unit instance. It is
	// combined with Name into the interface identity used for init.
	CentralName string

	// Name is the logical interface name, e.g. "rf" or "hmip".
	Name string

	// Host is the hostname or address of the backend.
	Host string

	// Port is the legacy RPC port. Defaults to DefaultPort.
	Port int

	// Path is an optional path prefix of the legacy RPC endpoint.
	Path string

	// Username and Password authenticate both the legacy and the JSON-RPC
	// interface. Without them the CCU flavor falls back to legacy calls
	// only.
	Username string
	Password string

	// TLS selects https for the legacy RPC endpoint; VerifyTLS controls
	// certificate verification.
	TLS       bool
	VerifyTLS bool

	// JSONPort and JSONTLS select the JSON-RPC endpoint. JSONPort defaults
	// to DefaultJSONPort, or DefaultJSONTLSPort when JSONTLS is set.
	JSONPort int
	JSONTLS  bool

	// Connect controls whether this connection registers for events. A
	// non-connecting client reports Init and DeInit as skipped and never
	// becomes connected.
	Connect bool

	// CallbackHost and CallbackPort form the URL the controller pushes
	// events to. Registering the URL happens at Init; receiving events is
	// up to the embedding application.
	CallbackHost string
	CallbackPort int

	// CacheDir is the directory for the persisted paramset-description
	// cache. Empty disables persistence.
	CacheDir string

	// Logger is the Logger to use for logs.
	Logger hclog.Logger
}

// Validate checks the configuration for missing fields.
func (c *Config) Validate() error {
	if c == nil {
		return fmt.Errorf("missing config")
	}
	if c.CentralName == "" {
		return fmt.Errorf("missing CentralName")
	}
	if c.Name == "" {
		return fmt.Errorf("missing Name")
	}
	if c.Host == "" {
		return fmt.Errorf("missing Host")
	}
	if c.Connect {
		if c.CallbackHost == "" {
			return fmt.Errorf("missing CallbackHost")
		}
		if c.CallbackPort == 0 {
			return fmt.Errorf("missing CallbackPort")
		}
	}
	if c.Logger == nil {
		return fmt.Errorf("missing Logger")
	}
	return nil
}

// normalize fills in defaulted fields.
func (c *Config) normalize() {
	if c.Port == 0 {
		c.Port = DefaultPort
	}
	if c.JSONPort == 0 {
		if c.JSONTLS {
			c.JSONPort = DefaultJSONTLSPort
		} else {
			c.JSONPort = DefaultJSONPort
		}
	}
}

// interfaceID derives the stable connection identity.
func (c *Config) interfaceID() string {
	return fmt.Sprintf("%s-%s", c.CentralName, c.Name)
}

// apiURL builds the legacy RPC endpoint URL, including credentials.
func (c *Config) apiURL() string {
	scheme := "http"
	if c.TLS {
		scheme = "https"
	}
	path := c.Path
	if path != "" && !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return fmt.Sprintf("%s://%s%s:%d%s", scheme, httpCredentials(c.Username, c.Password), c.Host, c.Port, path)
}

// jsonURL builds the base URL of the JSON-RPC endpoint.
func (c *Config) jsonURL() string {
	scheme := "http"
	if c.JSONTLS {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s:%d", scheme, c.Host, c.JSONPort)
}

// callbackURL builds the URL the controller pushes events to.
func (c *Config) callbackURL() string {
	return fmt.Sprintf("http://%s:%d", c.CallbackHost, c.CallbackPort)
}

// httpCredentials builds the user-info part of the API URL. A username
// containing a colon cannot be encoded and is dropped.
func httpCredentials(username, password string) string {
	if username == "" || strings.Contains(username, ":") {
		return ""
	}
	if password == "" {
		return username + "@"
	}
	return username + ":" + password + "@"
}

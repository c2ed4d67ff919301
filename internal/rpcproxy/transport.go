package rpcproxy

import (
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/url"
	"time"

	"github.com/hashicorp/go-cleanhttp"
	"github.com/kolo/xmlrpc"

	"github.com/tonigrzb/hahomematic/types"
)

// callTimeout bounds a single legacy RPC round trip.
const callTimeout = 60 * time.Second

// Transport executes a single blocking remote call over the wire.
type Transport interface {
	Call(method string, params []any, reply any) error
	Close() error
}

// xmlrpcTransport speaks the legacy XML-RPC protocol of the backend.
type xmlrpcTransport struct {
	client *xmlrpc.Client
}

// NewTransport creates a transport for the legacy RPC endpoint at apiURL.
// When the endpoint uses TLS, verifyTLS controls certificate verification.
func NewTransport(apiURL string, verifyTLS bool) (Transport, error) {
	rt := cleanhttp.DefaultPooledTransport()
	rt.TLSClientConfig = &tls.Config{InsecureSkipVerify: !verifyTLS}
	rt.ResponseHeaderTimeout = callTimeout

	client, err := xmlrpc.NewClient(apiURL, rt)
	if err != nil {
		return nil, fmt.Errorf("invalid RPC endpoint %q: %w", apiURL, err)
	}
	return &xmlrpcTransport{client: client}, nil
}

func (t *xmlrpcTransport) Call(method string, params []any, reply any) error {
	return t.client.Call(method, params, reply)
}

func (t *xmlrpcTransport) Close() error {
	return t.client.Close()
}

// classify maps a transport error onto the error taxonomy. Socket-level
// failures mean the connection is presumed down; everything else is a
// remote or protocol fault.
func classify(method string, err error) error {
	var fault xmlrpc.FaultError
	if errors.As(err, &fault) {
		return fmt.Errorf("%s: %w: fault %d: %s", method, types.ErrProxy, fault.Code, fault.String)
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return fmt.Errorf("%s: %w: %s", method, types.ErrNoConnection, urlErr.Err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return fmt.Errorf("%s: %w: %s", method, types.ErrNoConnection, netErr)
	}

	return fmt.Errorf("%s: %w: %s", method, types.ErrProxy, err)
}

package jsonrpc

import (
	"context"
	"embed"
	"fmt"
	"strings"

	json "github.com/goccy/go-json"

	"github.com/tonigrzb/hahomematic/types"
)

// Script templates executed on the backend via ReGa.runScript.
const (
	scriptFetchAllDeviceData = "fetch_all_device_data.fn"
	scriptGetSerial          = "get_serial.fn"
	scriptSetSystemVariable  = "set_system_variable.fn"
	scriptSysvarExtMarkers   = "get_system_variables_ext_marker.fn"
)

//go:embed scripts/*.fn
var scriptFS embed.FS

// script returns a template from the script cache, loading it on first use.
func (c *Client) script(name string) (string, error) {
	c.scriptsMu.Lock()
	defer c.scriptsMu.Unlock()

	if text, ok := c.scripts[name]; ok {
		return text, nil
	}
	raw, err := scriptFS.ReadFile("scripts/" + name)
	if err != nil {
		return "", fmt.Errorf("script %s does not exist: %s", name, err)
	}
	text := string(raw)
	c.scripts[name] = text
	return text, nil
}

// PostScript substitutes the named placeholders into a script template and
// executes it on the backend. The result payload is itself JSON and is
// parsed a second time.
func (c *Client) PostScript(ctx context.Context, name string, params map[string]string) (*Response, error) {
	text, err := c.script(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", types.ErrClient, err)
	}
	for variable, value := range params {
		text = strings.ReplaceAll(text, "##"+variable+"##", value)
	}

	resp, err := c.Post(ctx, "ReGa.runScript", map[string]any{"script": text})
	if err != nil {
		return nil, err
	}

	// The script output arrives as a JSON-encoded string.
	var payload string
	if err := json.Unmarshal(resp.Result, &payload); err != nil {
		return nil, fmt.Errorf("%w: %s: script result is not a string: %s", types.ErrClient, name, err)
	}
	resp.Result = json.RawMessage(payload)

	c.logger.Debug("executed script", "script", name)
	return resp, nil
}

package jsonrpc

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	json "github.com/goccy/go-json"

	"github.com/tonigrzb/hahomematic/types"
)

// markupPattern matches markup tags and entity sequences. String system
// variables containing these are rejected, not sent.
var markupPattern = regexp.MustCompile(`<.*?>|&([a-z0-9]+|#[0-9]{1,6}|#x[0-9a-f]{1,6});`)

// ExecuteProgram runs the program with the given id on the backend.
func (c *Client) ExecuteProgram(ctx context.Context, id string) error {
	_, err := c.Post(ctx, "Program.execute", map[string]any{"id": id})
	return err
}

// GetAllPrograms returns the programs defined on the backend.
func (c *Client) GetAllPrograms(ctx context.Context, includeInternal bool) ([]types.ProgramData, error) {
	resp, err := c.Post(ctx, "Program.getAll", nil)
	if err != nil {
		return nil, err
	}

	var raw []struct {
		ID              string `json:"id"`
		Name            string `json:"name"`
		IsActive        bool   `json:"isActive"`
		IsInternal      bool   `json:"isInternal"`
		LastExecuteTime string `json:"lastExecuteTime"`
	}
	if err := json.Unmarshal(resp.Result, &raw); err != nil {
		return nil, fmt.Errorf("%w: Program.getAll: %s", types.ErrClient, err)
	}

	programs := make([]types.ProgramData, 0, len(raw))
	for _, p := range raw {
		if p.IsInternal && !includeInternal {
			continue
		}
		programs = append(programs, types.ProgramData{
			ID:              p.ID,
			Name:            p.Name,
			IsActive:        p.IsActive,
			IsInternal:      p.IsInternal,
			LastExecuteTime: p.LastExecuteTime,
		})
	}
	return programs, nil
}

// SetSystemVariable sets a system variable using the typed setter matching
// the value: booleans via SysVar.setBool (marshalled as 0/1), strings via
// the script setter, numbers via SysVar.setFloat.
func (c *Client) SetSystemVariable(ctx context.Context, name string, value any) error {
	switch v := value.(type) {
	case bool:
		b := 0
		if v {
			b = 1
		}
		_, err := c.Post(ctx, "SysVar.setBool", map[string]any{"name": name, "value": b})
		return err
	case string:
		if markupPattern.MatchString(v) {
			c.logger.Warn("set system variable failed: value contains markup", "name", name)
			return fmt.Errorf("%w: value for %s contains markup", types.ErrClient, name)
		}
		_, err := c.PostScript(ctx, scriptSetSystemVariable, map[string]string{
			"name":  name,
			"value": v,
		})
		return err
	default:
		_, err := c.Post(ctx, "SysVar.setFloat", map[string]any{"name": name, "value": value})
		return err
	}
}

// DeleteSystemVariable removes a system variable by name.
func (c *Client) DeleteSystemVariable(ctx context.Context, name string) error {
	_, err := c.Post(ctx, "SysVar.deleteSysVarByName", map[string]any{"name": name})
	return err
}

// GetSystemVariable returns the value of a single system variable. Values
// arrive untyped and are coerced to float or boolean.
func (c *Client) GetSystemVariable(ctx context.Context, name string) (any, error) {
	resp, err := c.Post(ctx, "SysVar.getValueByName", map[string]any{"name": name})
	if err != nil {
		return nil, err
	}

	var raw any
	if err := json.Unmarshal(resp.Result, &raw); err != nil {
		return nil, fmt.Errorf("%w: SysVar.getValueByName: %s", types.ErrClient, err)
	}
	if s, ok := raw.(string); ok {
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return f, nil
		}
		return s == "true", nil
	}
	return raw, nil
}

type rawSysvar struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Type      string `json:"type"`
	Value     string `json:"value"`
	Unit      string `json:"unit"`
	ValueList string `json:"valueList"`
	MinValue  string `json:"minValue"`
	MaxValue  string `json:"maxValue"`
}

// GetAllSystemVariables returns all system variables with values parsed
// according to their reported type. Extended-marker assignment comes from a
// scripted lookup; a failure there only loses the marker flags.
func (c *Client) GetAllSystemVariables(ctx context.Context) ([]types.SystemVariable, error) {
	resp, err := c.Post(ctx, "SysVar.getAll", nil)
	if err != nil {
		return nil, err
	}

	var raw []rawSysvar
	if err := json.Unmarshal(resp.Result, &raw); err != nil {
		return nil, fmt.Errorf("%w: SysVar.getAll: %s", types.ErrClient, err)
	}

	extMarkers := c.systemVariableExtMarkers(ctx)

	variables := make([]types.SystemVariable, 0, len(raw))
	for _, v := range raw {
		variable := types.SystemVariable{
			Name:     v.Name,
			Type:     v.Type,
			Unit:     v.Unit,
			Extended: extMarkers[v.ID],
		}
		if v.ValueList != "" {
			variable.ValueList = strings.Split(v.ValueList, ";")
		}
		value, err := parseSysvarValue(v.Type, v.Value)
		if err != nil {
			c.logger.Warn("failed to parse system variable", "name", v.Name, "error", err)
			continue
		}
		variable.Value = value
		if v.MinValue != "" {
			variable.Min, _ = parseSysvarValue(v.Type, v.MinValue)
		}
		if v.MaxValue != "" {
			variable.Max, _ = parseSysvarValue(v.Type, v.MaxValue)
		}
		variables = append(variables, variable)
	}
	return variables, nil
}

// parseSysvarValue parses a raw system-variable value according to the
// backend type: LOGIC to bool, NUMBER to float, LIST to int, everything
// else stays a string.
func parseSysvarValue(sysvarType types.SysvarType, raw string) (any, error) {
	switch sysvarType {
	case types.SysvarTypeLogic:
		return raw == "true", nil
	case types.SysvarTypeNumber:
		return strconv.ParseFloat(raw, 64)
	case types.SysvarTypeList:
		return strconv.Atoi(raw)
	default:
		return raw, nil
	}
}

func (c *Client) systemVariableExtMarkers(ctx context.Context) map[string]bool {
	markers := map[string]bool{}

	resp, err := c.PostScript(ctx, scriptSysvarExtMarkers, nil)
	if err != nil {
		c.logger.Debug("failed to fetch system variable ext markers", "error", err)
		return markers
	}

	var raw []struct {
		ID           string `json:"id"`
		HasExtMarker bool   `json:"hasExtMarker"`
	}
	if err := json.Unmarshal(resp.Result, &raw); err != nil {
		c.logger.Error("unable to parse ext markers, extended system variables will be missing", "error", err)
		return markers
	}
	for _, m := range raw {
		markers[m.ID] = m.HasExtMarker
	}
	return markers
}

// ListInterfaces returns the backend's interface listing.
func (c *Client) ListInterfaces(ctx context.Context) ([]types.InterfaceEntry, error) {
	resp, err := c.Post(ctx, "Interface.listInterfaces", nil)
	if err != nil {
		return nil, err
	}

	var interfaces []types.InterfaceEntry
	if err := json.Unmarshal(resp.Result, &interfaces); err != nil {
		return nil, fmt.Errorf("%w: Interface.listInterfaces: %s", types.ErrClient, err)
	}
	return interfaces, nil
}

// DeviceDetail is one entry of the backend's detailed device listing.
type DeviceDetail struct {
	Name      string          `json:"name"`
	Address   string          `json:"address"`
	Interface string          `json:"interface"`
	Channels  []ChannelDetail `json:"channels"`
}

// ChannelDetail is one channel of a detailed device listing entry.
type ChannelDetail struct {
	Name    string `json:"name"`
	Address string `json:"address"`
}

// ListAllDetail returns the detailed device listing of the backend.
func (c *Client) ListAllDetail(ctx context.Context) ([]DeviceDetail, error) {
	resp, err := c.Post(ctx, "Device.listAllDetail", nil)
	if err != nil {
		return nil, err
	}

	var details []DeviceDetail
	if err := json.Unmarshal(resp.Result, &details); err != nil {
		return nil, fmt.Errorf("%w: Device.listAllDetail: %s", types.ErrClient, err)
	}
	return details, nil
}

type channelGrouping struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	ChannelIDs []string `json:"channelIds"`
}

// ChannelIDsByRoom returns the room names assigned to each channel id.
func (c *Client) ChannelIDsByRoom(ctx context.Context) (map[string][]string, error) {
	return c.channelGroups(ctx, "Room.getAll")
}

// ChannelIDsByFunction returns the function names assigned to each channel id.
func (c *Client) ChannelIDsByFunction(ctx context.Context) (map[string][]string, error) {
	return c.channelGroups(ctx, "Subsection.getAll")
}

func (c *Client) channelGroups(ctx context.Context, method string) (map[string][]string, error) {
	resp, err := c.Post(ctx, method, nil)
	if err != nil {
		return nil, err
	}

	var groups []channelGrouping
	if err := json.Unmarshal(resp.Result, &groups); err != nil {
		return nil, fmt.Errorf("%w: %s: %s", types.ErrClient, method, err)
	}

	assigned := map[string][]string{}
	for _, group := range groups {
		for _, channelID := range group.ChannelIDs {
			assigned[channelID] = append(assigned[channelID], group.Name)
		}
	}
	return assigned, nil
}

// GetAuthEnabled reports whether authentication is enforced by the backend.
func (c *Client) GetAuthEnabled(ctx context.Context) (bool, error) {
	return c.boolFlag(ctx, "CCU.getAuthEnabled")
}

// GetHTTPSRedirectEnabled reports whether the backend redirects to https.
func (c *Client) GetHTTPSRedirectEnabled(ctx context.Context) (bool, error) {
	return c.boolFlag(ctx, "CCU.getHttpsRedirectEnabled")
}

func (c *Client) boolFlag(ctx context.Context, method string) (bool, error) {
	resp, err := c.Post(ctx, method, nil)
	if err != nil {
		return false, err
	}
	var flag bool
	if err := json.Unmarshal(resp.Result, &flag); err != nil {
		return false, fmt.Errorf("%w: %s: %s", types.ErrClient, method, err)
	}
	return flag, nil
}

// GetSerial returns the serial of the backend, truncated to its last ten
// characters.
func (c *Client) GetSerial(ctx context.Context) (string, error) {
	resp, err := c.PostScript(ctx, scriptGetSerial, nil)
	if err != nil {
		return "", err
	}

	var payload struct {
		Serial string `json:"serial"`
	}
	if err := json.Unmarshal(resp.Result, &payload); err != nil {
		return "", fmt.Errorf("%w: get serial: %s", types.ErrClient, err)
	}
	serial := payload.Serial
	if len(serial) > 10 {
		serial = serial[len(serial)-10:]
	}
	return serial, nil
}

// GetAllDeviceData fetches every datapoint value and groups them as
// interface, channel address and parameter name.
func (c *Client) GetAllDeviceData(ctx context.Context) (map[string]map[string]map[string]any, error) {
	resp, err := c.PostScript(ctx, scriptFetchAllDeviceData, nil)
	if err != nil {
		return nil, err
	}

	var raw map[string]any
	if err := json.Unmarshal(resp.Result, &raw); err != nil {
		return nil, fmt.Errorf("%w: all device data: %s", types.ErrClient, err)
	}

	values := map[string]map[string]map[string]any{}
	for datapoint, value := range raw {
		parts := strings.SplitN(strings.ReplaceAll(datapoint, "%3A", ":"), ".", 3)
		if len(parts) != 3 {
			continue
		}
		iface, channel, parameter := parts[0], parts[1], parts[2]
		if values[iface] == nil {
			values[iface] = map[string]map[string]any{}
		}
		if values[iface][channel] == nil {
			values[iface][channel] = map[string]any{}
		}
		values[iface][channel][parameter] = value
	}
	return values, nil
}

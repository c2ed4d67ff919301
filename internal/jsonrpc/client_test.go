package jsonrpc

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/require"

	"github.com/tonigrzb/hahomematic/types"
)

type handlerFunc func(params map[string]any) (any, *rpcError)

// fakeBackend is an in-process JSON-RPC endpoint. Session methods are
// handled built-in, everything else dispatches to per-test handlers.
type fakeBackend struct {
	t      *testing.T
	server *httptest.Server

	handlers map[string]handlerFunc
	renewOK  bool

	mu       sync.Mutex
	requests []envelope
	logins   int
}

func newFakeBackend(t *testing.T) *fakeBackend {
	b := &fakeBackend{
		t:        t,
		handlers: map[string]handlerFunc{},
		renewOK:  true,
	}
	b.server = httptest.NewServer(b)
	t.Cleanup(b.server.Close)
	return b
}

func (b *fakeBackend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != rpcPath {
		http.NotFound(w, r)
		return
	}

	var env envelope
	if err := json.NewDecoder(r.Body).Decode(&env); err != nil {
		b.t.Errorf("malformed request body: %s", err)
		return
	}
	b.mu.Lock()
	b.requests = append(b.requests, env)
	b.mu.Unlock()

	var result any
	var rpcErr *rpcError
	switch env.Method {
	case "Session.login":
		b.mu.Lock()
		b.logins++
		result = fmt.Sprintf("sess-%d", b.logins)
		b.mu.Unlock()
	case "Session.renew":
		result = b.renewOK
	case "Session.logout":
		result = true
	default:
		handler, ok := b.handlers[env.Method]
		if !ok {
			rpcErr = &rpcError{Message: "unknown method: " + env.Method}
			break
		}
		result, rpcErr = handler(env.Params)
	}

	payload, err := json.Marshal(map[string]any{"result": result, "error": rpcErr})
	if err != nil {
		b.t.Errorf("marshal response: %s", err)
		return
	}
	_, _ = w.Write(payload)
}

func (b *fakeBackend) methods() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	methods := make([]string, 0, len(b.requests))
	for _, req := range b.requests {
		methods = append(methods, req.Method)
	}
	return methods
}

func (b *fakeBackend) request(method string) (envelope, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, req := range b.requests {
		if req.Method == method {
			return req, true
		}
	}
	return envelope{}, false
}

func (b *fakeBackend) count(method string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, req := range b.requests {
		if req.Method == method {
			n++
		}
	}
	return n
}

func newTestClient(b *fakeBackend) *Client {
	return New(Config{
		DeviceURL: b.server.URL,
		Username:  "Admin",
		Password:  "hunter2",
		Logger:    hclog.NewNullLogger(),
	})
}

func TestClient_LoginPrecedesFirstCall(t *testing.T) {
	r := require.New(t)
	backend := newFakeBackend(t)
	backend.handlers["Program.execute"] = func(params map[string]any) (any, *rpcError) {
		return true, nil
	}
	client := newTestClient(backend)

	r.NoError(client.ExecuteProgram(context.Background(), "1234"))
	r.Equal([]string{"Session.login", "Program.execute"}, backend.methods())

	// the login request itself must not carry a session parameter
	login, ok := backend.request("Session.login")
	r.True(ok)
	r.NotContains(login.Params, sessionParam)

	// the method call embeds the session id returned by login
	call, ok := backend.request("Program.execute")
	r.True(ok)
	r.Equal("sess-1", call.Params[sessionParam])
	r.True(client.IsActivated())
}

func TestClient_SessionReusedWithinFreshnessWindow(t *testing.T) {
	r := require.New(t)
	backend := newFakeBackend(t)
	backend.handlers["Program.execute"] = func(params map[string]any) (any, *rpcError) {
		return true, nil
	}
	client := newTestClient(backend)

	r.NoError(client.ExecuteProgram(context.Background(), "1"))
	r.NoError(client.ExecuteProgram(context.Background(), "2"))

	r.Equal(1, backend.count("Session.login"))
	r.Equal(0, backend.count("Session.renew"))
}

func TestClient_SessionRenewedAfterFreshnessWindow(t *testing.T) {
	r := require.New(t)
	backend := newFakeBackend(t)
	backend.handlers["Program.execute"] = func(params map[string]any) (any, *rpcError) {
		return true, nil
	}
	client := newTestClient(backend)

	current := time.Now()
	client.now = func() time.Time { return current }

	r.NoError(client.ExecuteProgram(context.Background(), "1"))
	current = current.Add(2 * time.Minute)
	r.NoError(client.ExecuteProgram(context.Background(), "2"))

	r.Equal(1, backend.count("Session.login"))
	r.Equal(1, backend.count("Session.renew"))

	renew, ok := backend.request("Session.renew")
	r.True(ok)
	r.Equal("sess-1", renew.Params[sessionParam])
}

func TestClient_RejectedRenewalFallsBackToLogin(t *testing.T) {
	r := require.New(t)
	backend := newFakeBackend(t)
	backend.renewOK = false
	backend.handlers["Program.execute"] = func(params map[string]any) (any, *rpcError) {
		return true, nil
	}
	client := newTestClient(backend)

	current := time.Now()
	client.now = func() time.Time { return current }

	r.NoError(client.ExecuteProgram(context.Background(), "1"))
	current = current.Add(2 * time.Minute)
	r.NoError(client.ExecuteProgram(context.Background(), "2"))

	r.Equal(2, backend.count("Session.login"))
	r.Equal(1, backend.count("Session.renew"))

	// the second call uses the re-established session
	last := backend.methods()[len(backend.methods())-1]
	r.Equal("Program.execute", last)
	backend.mu.Lock()
	r.Equal("sess-2", backend.requests[len(backend.requests)-1].Params[sessionParam])
	backend.mu.Unlock()
}

func TestClient_MissingCredentialsFailLocally(t *testing.T) {
	r := require.New(t)
	backend := newFakeBackend(t)
	client := New(Config{
		DeviceURL: backend.server.URL,
		Logger:    hclog.NewNullLogger(),
	})

	err := client.ExecuteProgram(context.Background(), "1")
	r.ErrorIs(err, types.ErrNoSession)
	r.Empty(backend.methods())
}

func TestClient_AccessDeniedLogsOutAndFailsWithAuthFailure(t *testing.T) {
	r := require.New(t)
	backend := newFakeBackend(t)
	backend.handlers["Program.execute"] = func(params map[string]any) (any, *rpcError) {
		return nil, &rpcError{Message: "access denied"}
	}
	client := newTestClient(backend)

	err := client.ExecuteProgram(context.Background(), "1")
	r.ErrorIs(err, types.ErrAuthFailure)
	r.False(client.IsActivated())
	r.Equal(1, backend.count("Session.logout"))
}

func TestClient_ApplicationErrorClearsSession(t *testing.T) {
	r := require.New(t)
	backend := newFakeBackend(t)
	backend.handlers["Program.execute"] = func(params map[string]any) (any, *rpcError) {
		return nil, &rpcError{Message: "internal error", Code: 501}
	}
	client := newTestClient(backend)

	err := client.ExecuteProgram(context.Background(), "1")
	r.ErrorIs(err, types.ErrClient)
	r.ErrorContains(err, "internal error")
	r.False(client.IsActivated())
	r.Equal(0, backend.count("Session.logout"))
}

func TestClient_LogoutClearsSession(t *testing.T) {
	r := require.New(t)
	backend := newFakeBackend(t)
	backend.handlers["Program.execute"] = func(params map[string]any) (any, *rpcError) {
		return true, nil
	}
	client := newTestClient(backend)

	r.NoError(client.ExecuteProgram(context.Background(), "1"))
	r.True(client.IsActivated())

	client.Logout(context.Background())
	r.False(client.IsActivated())
	r.Equal(1, backend.count("Session.logout"))

	// a second logout is a no-op
	client.Logout(context.Background())
	r.Equal(1, backend.count("Session.logout"))
}

func TestDecodeResponse_RepairsStrayEscapes(t *testing.T) {
	r := require.New(t)

	resp, err := decodeResponse([]byte(`{"result": "a\lpha", "error": null}`))
	r.NoError(err)

	var result string
	r.NoError(json.Unmarshal(resp.Result, &result))
	r.Equal("alpha", result)
}

func TestDecodeResponse_GarbageFails(t *testing.T) {
	r := require.New(t)
	_, err := decodeResponse([]byte(`<html>503</html>`))
	r.Error(err)
}

func TestClient_PostScriptSubstitutesAndReparses(t *testing.T) {
	r := require.New(t)
	backend := newFakeBackend(t)
	backend.handlers["ReGa.runScript"] = func(params map[string]any) (any, *rpcError) {
		script, _ := params["script"].(string)
		if strings.Contains(script, "##") {
			return nil, &rpcError{Message: "placeholder left unsubstituted"}
		}
		if !strings.Contains(script, `Get("Presence")`) || !strings.Contains(script, `State("home")`) {
			return nil, &rpcError{Message: "unexpected script body"}
		}
		return `{"result": true}`, nil
	}
	client := newTestClient(backend)

	resp, err := client.PostScript(context.Background(), scriptSetSystemVariable, map[string]string{
		"name":  "Presence",
		"value": "home",
	})
	r.NoError(err)

	var payload struct {
		Result bool `json:"result"`
	}
	r.NoError(json.Unmarshal(resp.Result, &payload))
	r.True(payload.Result)
}

func TestClient_GetSerialTruncatesToTenCharacters(t *testing.T) {
	r := require.New(t)
	backend := newFakeBackend(t)
	backend.handlers["ReGa.runScript"] = func(params map[string]any) (any, *rpcError) {
		return `{"serial": "3014F711A0001F58A992BDCD"}`, nil
	}
	client := newTestClient(backend)

	serial, err := client.GetSerial(context.Background())
	r.NoError(err)
	r.Equal("58A992BDCD", serial)
}

func TestClient_SetSystemVariableDispatchesByType(t *testing.T) {
	r := require.New(t)
	backend := newFakeBackend(t)
	backend.handlers["SysVar.setBool"] = func(params map[string]any) (any, *rpcError) {
		return true, nil
	}
	backend.handlers["SysVar.setFloat"] = func(params map[string]any) (any, *rpcError) {
		return true, nil
	}
	backend.handlers["ReGa.runScript"] = func(params map[string]any) (any, *rpcError) {
		return `{"result": true}`, nil
	}
	client := newTestClient(backend)
	ctx := context.Background()

	r.NoError(client.SetSystemVariable(ctx, "Alarm", true))
	setBool, ok := backend.request("SysVar.setBool")
	r.True(ok)
	r.Equal(float64(1), setBool.Params["value"])

	r.NoError(client.SetSystemVariable(ctx, "Temperature", 21.5))
	setFloat, ok := backend.request("SysVar.setFloat")
	r.True(ok)
	r.Equal(21.5, setFloat.Params["value"])

	r.NoError(client.SetSystemVariable(ctx, "Presence", "home"))
	r.Equal(1, backend.count("ReGa.runScript"))
}

func TestClient_SetSystemVariableRejectsMarkup(t *testing.T) {
	r := require.New(t)
	backend := newFakeBackend(t)
	client := newTestClient(backend)

	err := client.SetSystemVariable(context.Background(), "Note", "<script>alert(1)</script>")
	r.ErrorIs(err, types.ErrClient)
	// rejected before anything is sent
	r.Empty(backend.methods())
}

func TestClient_GetSystemVariableCoercesStringValues(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		expected any
	}{
		{name: "numeric string", raw: `"21.5"`, expected: 21.5},
		{name: "boolean true", raw: `"true"`, expected: true},
		{name: "boolean false", raw: `"false"`, expected: false},
		{name: "plain number", raw: `4`, expected: float64(4)},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			r := require.New(t)
			backend := newFakeBackend(t)
			backend.handlers["SysVar.getValueByName"] = func(params map[string]any) (any, *rpcError) {
				return json.RawMessage(tc.raw), nil
			}
			client := newTestClient(backend)

			value, err := client.GetSystemVariable(context.Background(), "Var")
			r.NoError(err)
			r.Equal(tc.expected, value)
		})
	}
}

func TestClient_GetAllSystemVariablesParsesTypedValues(t *testing.T) {
	r := require.New(t)
	backend := newFakeBackend(t)
	backend.handlers["SysVar.getAll"] = func(params map[string]any) (any, *rpcError) {
		return []map[string]any{
			{"id": "8500", "name": "Alarm", "type": "LOGIC", "value": "true"},
			{"id": "8501", "name": "Temperature", "type": "NUMBER", "value": "21.5", "unit": "°C", "minValue": "-20", "maxValue": "50"},
			{"id": "8502", "name": "Mode", "type": "LIST", "value": "2", "valueList": "off;eco;comfort"},
			{"id": "8503", "name": "Broken", "type": "NUMBER", "value": "not-a-number"},
		}, nil
	}
	backend.handlers["ReGa.runScript"] = func(params map[string]any) (any, *rpcError) {
		return `[{"id": "8501", "hasExtMarker": true}]`, nil
	}
	client := newTestClient(backend)

	variables, err := client.GetAllSystemVariables(context.Background())
	r.NoError(err)
	// the unparsable variable is dropped
	r.Len(variables, 3)

	byName := map[string]types.SystemVariable{}
	for _, v := range variables {
		byName[v.Name] = v
	}

	r.Equal(true, byName["Alarm"].Value)
	r.False(byName["Alarm"].Extended)

	r.Equal(21.5, byName["Temperature"].Value)
	r.Equal(-20.0, byName["Temperature"].Min)
	r.Equal(50.0, byName["Temperature"].Max)
	r.True(byName["Temperature"].Extended)

	r.Equal(2, byName["Mode"].Value)
	r.Equal([]string{"off", "eco", "comfort"}, byName["Mode"].ValueList)
}

func TestClient_BackendSecurityFlags(t *testing.T) {
	r := require.New(t)
	backend := newFakeBackend(t)
	backend.handlers["CCU.getAuthEnabled"] = func(params map[string]any) (any, *rpcError) {
		return true, nil
	}
	backend.handlers["CCU.getHttpsRedirectEnabled"] = func(params map[string]any) (any, *rpcError) {
		return false, nil
	}
	client := newTestClient(backend)
	ctx := context.Background()

	auth, err := client.GetAuthEnabled(ctx)
	r.NoError(err)
	r.True(auth)

	redirect, err := client.GetHTTPSRedirectEnabled(ctx)
	r.NoError(err)
	r.False(redirect)
}

func TestClient_GetAllDeviceDataGroupsByInterface(t *testing.T) {
	r := require.New(t)
	backend := newFakeBackend(t)
	backend.handlers["ReGa.runScript"] = func(params map[string]any) (any, *rpcError) {
		return `{"HmIP-RF.0001D3C99C3C9C%3A3.LEVEL": 0.75, "BidCos-RF.MEQ0012345%3A1.STATE": true, "garbage": 1}`, nil
	}
	client := newTestClient(backend)

	values, err := client.GetAllDeviceData(context.Background())
	r.NoError(err)
	r.Equal(0.75, values["HmIP-RF"]["0001D3C99C3C9C:3"]["LEVEL"])
	r.Equal(true, values["BidCos-RF"]["MEQ0012345:1"]["STATE"])
	// entries without the three-part shape are skipped
	r.NotContains(values, "garbage")
}

func TestClient_ChannelGroupsInvertAssignment(t *testing.T) {
	r := require.New(t)
	backend := newFakeBackend(t)
	backend.handlers["Room.getAll"] = func(params map[string]any) (any, *rpcError) {
		return []map[string]any{
			{"id": "1000", "name": "Living Room", "channelIds": []string{"2001", "2002"}},
			{"id": "1001", "name": "Kitchen", "channelIds": []string{"2002"}},
		}, nil
	}
	client := newTestClient(backend)

	rooms, err := client.ChannelIDsByRoom(context.Background())
	r.NoError(err)
	r.Equal([]string{"Living Room"}, rooms["2001"])
	r.ElementsMatch([]string{"Living Room", "Kitchen"}, rooms["2002"])
}

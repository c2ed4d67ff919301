package cache

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tonigrzb/hahomematic/types"
)

const testInterfaceID = "ccu-test-hmip"

func levelDescription() types.ParamsetDescription {
	return types.ParamsetDescription{
		"LEVEL": {
			Type:       "FLOAT",
			Min:        0.0,
			Max:        1.0,
			Default:    0.0,
			Unit:       "100%",
			Operations: 7,
		},
	}
}

func TestParamsetDescriptions_AddAndGet(t *testing.T) {
	r := require.New(t)

	paramsets := NewParamsetDescriptions("")
	_, ok := paramsets.Get(testInterfaceID, "VCU0000001:1", types.ParamsetValues)
	r.False(ok)

	paramsets.Add(testInterfaceID, "VCU0000001:1", types.ParamsetValues, levelDescription())

	description, ok := paramsets.Get(testInterfaceID, "VCU0000001:1", types.ParamsetValues)
	r.True(ok)
	r.Contains(description, "LEVEL")
	r.True(paramsets.HasAddress(testInterfaceID, "VCU0000001:1"))
	r.True(paramsets.HasInterface(testInterfaceID))
}

func TestParamsetDescriptions_EmptySetIsCached(t *testing.T) {
	r := require.New(t)

	paramsets := NewParamsetDescriptions("")
	paramsets.Add(testInterfaceID, "VCU0000001:1", types.ParamsetMaster, types.ParamsetDescription{})

	description, ok := paramsets.Get(testInterfaceID, "VCU0000001:1", types.ParamsetMaster)
	r.True(ok)
	r.Empty(description)
}

func TestParamsetDescriptions_Reset(t *testing.T) {
	r := require.New(t)

	paramsets := NewParamsetDescriptions("")
	paramsets.Add(testInterfaceID, "VCU0000001:1", types.ParamsetValues, levelDescription())
	paramsets.Reset(testInterfaceID, "VCU0000001:1")

	_, ok := paramsets.Get(testInterfaceID, "VCU0000001:1", types.ParamsetValues)
	r.False(ok)
	// the address itself stays known
	r.True(paramsets.HasAddress(testInterfaceID, "VCU0000001:1"))
}

func TestParamsetDescriptions_PersistenceRoundTrip(t *testing.T) {
	r := require.New(t)
	path := filepath.Join(t.TempDir(), "test_paramset_descriptions.json")

	paramsets := NewParamsetDescriptions(path)
	paramsets.Add(testInterfaceID, "VCU0000001:1", types.ParamsetValues, levelDescription())
	paramsets.Add(testInterfaceID, "VCU0000001:1", types.ParamsetMaster, types.ParamsetDescription{})
	r.NoError(paramsets.Save())

	reloaded := NewParamsetDescriptions(path)
	r.NoError(reloaded.Load())

	description, ok := reloaded.Get(testInterfaceID, "VCU0000001:1", types.ParamsetValues)
	r.True(ok)
	r.Contains(description, "LEVEL")
	r.Equal("100%", description["LEVEL"].Unit)

	master, ok := reloaded.Get(testInterfaceID, "VCU0000001:1", types.ParamsetMaster)
	r.True(ok)
	r.Empty(master)
}

func TestParamsetDescriptions_LoadMissingFileIsNotAnError(t *testing.T) {
	r := require.New(t)

	paramsets := NewParamsetDescriptions(filepath.Join(t.TempDir(), "nope.json"))
	r.NoError(paramsets.Load())
	r.False(paramsets.HasInterface(testInterfaceID))
}

func TestParamsetDescriptions_LoadCorruptFileFails(t *testing.T) {
	r := require.New(t)
	path := filepath.Join(t.TempDir(), "corrupt.json")
	r.NoError(os.WriteFile(path, []byte("{not json"), 0o644))

	paramsets := NewParamsetDescriptions(path)
	r.Error(paramsets.Load())
}

func TestDeviceDescriptions_AddGetAddresses(t *testing.T) {
	r := require.New(t)

	devices := NewDeviceDescriptions()
	devices.Add(testInterfaceID, types.DeviceDescription{
		Address:   "VCU0000001",
		Type:      "HmIP-BSM",
		Paramsets: []string{types.ParamsetMaster},
	})
	devices.Add(testInterfaceID, types.DeviceDescription{
		Address:   "VCU0000001:1",
		Type:      "SWITCH_VIRTUAL_RECEIVER",
		Paramsets: []string{types.ParamsetMaster, types.ParamsetValues},
	})

	description, ok := devices.Get(testInterfaceID, "VCU0000001:1")
	r.True(ok)
	r.Equal("SWITCH_VIRTUAL_RECEIVER", description.Type)

	_, ok = devices.Get(testInterfaceID, "VCU9999999")
	r.False(ok)

	r.ElementsMatch([]string{"VCU0000001", "VCU0000001:1"}, devices.Addresses(testInterfaceID))
}

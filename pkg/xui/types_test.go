package xui

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeInbounds_NestedSettings(t *testing.T) {
	raw := json.RawMessage(`{"success":true,"obj":[
		{"id":1,"remark":"a","protocol":"vless","port":443,"settings":"{\"clients\":[{\"id\":\"abc\"}]}","streamSettings":{"network":"tcp"}},
		{"id":2,"remark":"b","protocol":"trojan","port":8443,"settings":"","streamSettings":null}
	]}`)

	inbounds, err := DecodeInbounds(raw)
	require.NoError(t, err)
	require.Len(t, inbounds, 2)

	var settings struct {
		Clients []struct {
			ID string `json:"id"`
		} `json:"clients"`
	}
	require.NoError(t, inbounds[0].Settings.Decode(&settings))
	require.Len(t, settings.Clients, 1)
	assert.Equal(t, "abc", settings.Clients[0].ID)

	var stream map[string]any
	require.NoError(t, inbounds[0].StreamSettings.Decode(&stream))
	assert.Equal(t, "tcp", stream["network"])

	assert.Empty(t, inbounds[1].Settings)
	assert.Empty(t, inbounds[1].StreamSettings)
}

func TestDecodeInbounds_PanelError(t *testing.T) {
	_, err := DecodeInbounds(json.RawMessage(`{"success":false,"msg":"nope","obj":null}`))
	assert.Error(t, err)

	inbounds, err := DecodeInbounds(json.RawMessage(`{"success":true,"obj":null}`))
	require.NoError(t, err)
	assert.Empty(t, inbounds)
}

func TestValidateInboundPayload(t *testing.T) {
	valid := []string{
		`{"remark":"r","port":443}`,
		`{"remark":"r","port":"8443","protocol":"vmess"}`,
	}
	for _, p := range valid {
		assert.NoError(t, ValidateInboundPayload([]byte(p)), p)
	}

	invalid := []string{
		``,
		`[]`,
		`null`,
		`{"port":443}`,
		`{"remark":"","port":443}`,
		`{"remark":"r"}`,
		`{"remark":"r","port":0}`,
		`{"remark":"r","port":70000}`,
		`{"remark":"r","port":"abc"}`,
	}
	for _, p := range invalid {
		assert.Error(t, ValidateInboundPayload([]byte(p)), p)
	}
}

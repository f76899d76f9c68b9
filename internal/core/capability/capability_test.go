package capability

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseFeatureTags(t *testing.T) {
	params := map[string]string{
		"+sip.data":          "",
		"+SIP.Text":          "",
		"+parley.sdkversion": `"1.2.0"`,
		"+custom.Colour":     `"blue"`,
		"expires":            "3600",
	}

	got := ParseFeatureTags(params)

	assert.True(t, got.Data)
	assert.True(t, got.Text)
	assert.False(t, got.Audio)
	assert.False(t, got.Video)
	assert.Equal(t, "1.2.0", got.SDKVersion)
	assert.Equal(t, map[string]string{"colour": "blue"}, got.Custom)
}

func TestParseFeatureTags_Empty(t *testing.T) {
	got := ParseFeatureTags(nil)
	assert.Equal(t, Capabilities{}, got)
}

func TestFeatureTags(t *testing.T) {
	c := Capabilities{
		Data:   true,
		Audio:  true,
		Custom: map[string]string{"Mode": "relay", "flag": ""},
	}

	assert.Equal(t, []string{
		`+custom.flag`,
		`+custom.mode="relay"`,
		`+sip.audio`,
		`+sip.data`,
	}, c.FeatureTags())
}

func TestParams_ParsesBack(t *testing.T) {
	c := Capabilities{Text: true, Data: true, Custom: map[string]string{"mode": "relay"}}

	assert.Equal(t, c, ParseFeatureTags(c.Params()))
}

// Package capability converts between a party's capability set and the
// feature tags carried in signalling contact metadata.
package capability

import (
	"sort"
	"strings"
)

const (
	tagAudio   = "+sip.audio"
	tagVideo   = "+sip.video"
	tagText    = "+sip.text"
	tagData    = "+sip.data"
	tagVersion = "+parley.sdkversion"

	customPrefix = "+custom."
)

// Capabilities describes what a party can exchange.
type Capabilities struct {
	Audio      bool              `yaml:"audio" toml:"audio" json:"audio"`
	Video      bool              `yaml:"video" toml:"video" json:"video"`
	Text       bool              `yaml:"text" toml:"text" json:"text"`
	Data       bool              `yaml:"data" toml:"data" json:"data"`
	SDKVersion string            `yaml:"-" toml:"-" json:"sdk_version,omitempty"`
	Custom     map[string]string `yaml:"custom" toml:"custom" json:"custom,omitempty"`
}

// ParseFeatureTags reads capabilities from contact header parameters. Keys
// are matched case-insensitively; quoted values are unquoted.
func ParseFeatureTags(params map[string]string) Capabilities {
	var c Capabilities
	for key, value := range params {
		k := strings.ToLower(strings.TrimSpace(key))
		v := strings.Trim(strings.TrimSpace(value), `"`)

		switch {
		case k == tagAudio:
			c.Audio = true
		case k == tagVideo:
			c.Video = true
		case k == tagText:
			c.Text = true
		case k == tagData:
			c.Data = true
		case k == tagVersion:
			c.SDKVersion = v
		case strings.HasPrefix(k, customPrefix):
			if c.Custom == nil {
				c.Custom = make(map[string]string)
			}
			c.Custom[strings.TrimPrefix(k, customPrefix)] = v
		}
	}
	return c
}

// FeatureTags renders capabilities as contact parameters, sorted by name so
// the output is stable.
func (c Capabilities) FeatureTags() []string {
	var tags []string
	if c.Audio {
		tags = append(tags, tagAudio)
	}
	if c.Video {
		tags = append(tags, tagVideo)
	}
	if c.Text {
		tags = append(tags, tagText)
	}
	if c.Data {
		tags = append(tags, tagData)
	}
	if c.SDKVersion != "" {
		tags = append(tags, tagVersion+`="`+c.SDKVersion+`"`)
	}
	for name, value := range c.Custom {
		tag := customPrefix + strings.ToLower(name)
		if value != "" {
			tag += `="` + value + `"`
		}
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	return tags
}

// Params is the inverse of ParseFeatureTags for transports that carry contact
// parameters as a map.
func (c Capabilities) Params() map[string]string {
	params := make(map[string]string)
	for _, tag := range c.FeatureTags() {
		name, value, _ := strings.Cut(tag, "=")
		params[name] = strings.Trim(value, `"`)
	}
	return params
}

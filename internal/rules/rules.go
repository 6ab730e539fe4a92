// 包 rules 负责加载站点配置档（rules.yaml）。
// 每个站点一份 Profile：配置模板名、默认报告模板、可覆盖标记、编辑摘要、运行日志页。
package rules

import (
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultSite 为未指定站点时使用的配置档名。
const DefaultSite = "enwiki"

// Rules 表示全部站点配置档：键为站点名。
type Rules struct {
	Profiles map[string]Profile `yaml:",inline"`
}

// Profile 为单个站点的机器人约定。
type Profile struct {
	OptInTemplate   string   `yaml:"opt_in_template"`
	DefaultTemplate string   `yaml:"default_template"`
	SafeMarkers     []string `yaml:"safe_markers"`
	Summary         string   `yaml:"summary"`
	LogPage         string   `yaml:"log_page"`
}

// Builtin 为内置的英文维基百科配置档。
func Builtin() Profile {
	return Profile{
		OptInTemplate:   "User:HBC Archive Indexerbot/OptIn",
		DefaultTemplate: "User:HBC Archive Indexerbot/default template",
		SafeMarkers:     []string{"HBC Archive Indexerbot can blank this", "Legobot can blank this"},
		Summary:         "Bot: Updating index",
	}
}

// withDefaults 用内置值补齐未填写的字段。
func (p Profile) withDefaults() Profile {
	b := Builtin()
	if p.OptInTemplate == "" {
		p.OptInTemplate = b.OptInTemplate
	}
	if p.DefaultTemplate == "" {
		p.DefaultTemplate = b.DefaultTemplate
	}
	if len(p.SafeMarkers) == 0 {
		p.SafeMarkers = b.SafeMarkers
	}
	if p.Summary == "" {
		p.Summary = b.Summary
	}
	return p
}

func Load(path string) (*Rules, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open rules %s: %w", path, err)
	}
	defer f.Close()
	b, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("read rules %s: %w", path, err)
	}
	var r Rules
	if err := yaml.Unmarshal(b, &r.Profiles); err != nil {
		return nil, fmt.Errorf("unmarshal rules %s: %w", path, err)
	}
	return &r, nil
}

// GetProfile 按站点名获取配置档（不区分大小写）。
// 找不到时回退到 enwiki 配置档，再回退到内置值；ok 表示是否命中了 name 本身。
func (r *Rules) GetProfile(name string) (Profile, bool) {
	if name == "" {
		name = DefaultSite
	}
	if r != nil {
		if p, ok := r.Profiles[name]; ok {
			return p.withDefaults(), true
		}
		lower := strings.ToLower(name)
		for k, v := range r.Profiles {
			if strings.ToLower(k) == lower {
				return v.withDefaults(), true
			}
		}
		if p, ok := r.Profiles[DefaultSite]; ok {
			return p.withDefaults(), false
		}
	}
	return Builtin(), strings.EqualFold(name, DefaultSite)
}

// 包 config 负责加载与校验应用配置（settings.yaml），
// 对外提供结构体 Config 及默认值填充/合法性校验。
// 机器人账号口令不写入配置文件，而是从环境变量读取。
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// 凭据所在环境变量。
const (
	EnvUsername = "INDEXBOT_USERNAME"
	EnvPassword = "INDEXBOT_PASSWORD"
)

type Config struct {
	Site            string      `yaml:"SITE"`
	SiteURL         string      `yaml:"SITE_URL" validate:"required,url"`
	UserAgent       string      `yaml:"USER_AGENT"`
	DryRun          bool        `yaml:"DRY_RUN"`
	SimpleMode      bool        `yaml:"SIMPLE_MODE"`
	Database        Database    `yaml:"DATABASE"`
	HistoryKeepDays int         `yaml:"HISTORY_KEEP_DAYS" validate:"gte=0"`
	Concurrency     Concurrency `yaml:"CONCURRENCY"`
	Proxy           Proxy       `yaml:"PROXY"`
	Export          string      `yaml:"EXPORT"`       // JSON 报告输出路径，空则不导出
	MetricsFile     string      `yaml:"METRICS_FILE"` // Prometheus textfile 路径，空则不写
	RecentEditHours int         `yaml:"RECENT_EDIT_HOURS" validate:"gte=0"`
	LogLevel        string      `yaml:"LOG_LEVEL" validate:"omitempty,oneof=debug info warn warning error none silent off"`
	LogFormat       string      `yaml:"LOG_FORMAT" validate:"oneof=text json pretty"`
	LogLocale       string      `yaml:"LOG_LOCALE"`
	LogColor        string      `yaml:"LOG_COLOR" validate:"oneof=auto always never"`
}

type Database struct {
	Type string `yaml:"type" validate:"oneof=sqlite"`
	DSN  string `yaml:"dsn" validate:"required"`
}

// Concurrency 控制并发与请求节奏：pages 为同时处理的来源页数，
// masks 为单页内同时展开的掩码数，rate/burst 为每秒请求数限制。
type Concurrency struct {
	Pages int     `yaml:"pages" validate:"gte=1,lte=64"`
	Masks int     `yaml:"masks" validate:"gte=1,lte=16"`
	Retry int     `yaml:"retry" validate:"gte=0,lte=10"`
	Rate  float64 `yaml:"rate" validate:"gte=0"`
	Burst int     `yaml:"burst" validate:"gte=0"`
}

type Proxy struct {
	HTTP  string `yaml:"http" validate:"omitempty,url"`
	HTTPS string `yaml:"https" validate:"omitempty,url"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Load 从文件读取 YAML 并反序列化为 Config，随后填充默认值并校验。
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config %s: %w", path, err)
	}
	defer f.Close()
	b, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("unmarshal config %s: %w", path, err)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &c, nil
}

// Validate 填充默认值后按结构体标签校验。
func (c *Config) Validate() error {
	if c.Site == "" {
		c.Site = "enwiki"
	}
	if c.SiteURL == "" {
		c.SiteURL = "https://en.wikipedia.org/w/"
	}
	if c.Database.Type == "" {
		c.Database.Type = "sqlite"
	}
	if c.Database.DSN == "" {
		c.Database.DSN = "./hbcai.db"
	}
	if c.HistoryKeepDays == 0 {
		c.HistoryKeepDays = 30
	}
	if c.RecentEditHours == 0 {
		c.RecentEditHours = 12
	}
	if c.Concurrency.Pages == 0 {
		c.Concurrency.Pages = 4
	}
	if c.Concurrency.Masks == 0 {
		c.Concurrency.Masks = 2
	}
	if c.Concurrency.Retry == 0 {
		c.Concurrency.Retry = 2
	}
	if c.Concurrency.Rate == 0 {
		c.Concurrency.Rate = 5
	}
	if c.Concurrency.Burst == 0 {
		c.Concurrency.Burst = 2
	}
	if c.LogFormat == "" {
		c.LogFormat = "pretty"
	}
	if c.LogLocale == "" {
		c.LogLocale = "zh-CN"
	}
	if c.LogColor == "" {
		c.LogColor = "auto"
	}
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, fmt.Sprintf("%s (%s)", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("invalid fields: %s", strings.Join(fields, ", "))
		}
		return err
	}
	return nil
}

// Credentials 返回环境变量中的机器人账号；任一为空时 ok=false（以匿名只读方式运行）。
func Credentials() (username, password string, ok bool) {
	username = strings.TrimSpace(os.Getenv(EnvUsername))
	password = os.Getenv(EnvPassword)
	return username, password, username != "" && password != ""
}

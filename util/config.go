package util

import (
	_ "embed"
	"fmt"
	"log"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

const Name = "mammut"
const ConfigFileName = "config.yaml"

//go:embed config_default.yaml
var embeddedConfig []byte

type AppConfig struct {
	Conf struct {
		Host             string `yaml:"host"`
		HttpPort         int    `yaml:"httpPort"`
		SslDomain        string `yaml:"sslDomain"`
		SiteName         string `yaml:"siteName"`
		NodeDescription  string `yaml:"nodeDescription"`
		WithAp           bool   `yaml:"withAp"`
		WithJournald     bool   `yaml:"withJournald"`
		FallbackCategory string `yaml:"fallbackCategory"`
		FetchTimeoutSecs int    `yaml:"fetchTimeoutSecs"`
		FetchRatePerSec  int    `yaml:"fetchRatePerSec"`
		ActorCacheMins   int    `yaml:"actorCacheMins"`
		SentCacheMins    int    `yaml:"sentCacheMins"`
	} `yaml:"conf"`
}

// BaseURL returns the https origin of this server.
func (c *AppConfig) BaseURL() string {
	return fmt.Sprintf("https://%s", c.Conf.SslDomain)
}

func ReadConf() (*AppConfig, error) {

	c := &AppConfig{}

	buf, err := os.ReadFile(ConfigFileName)
	if err != nil {
		log.Printf("Config file not found at %s, using embedded defaults", ConfigFileName)
		buf = embeddedConfig
	}

	err = yaml.Unmarshal(buf, c)
	if err != nil {
		return nil, fmt.Errorf("in config file: %w", err)
	}

	applyEnvOverrides(c)
	applyDefaults(c)

	return c, nil
}

func applyEnvOverrides(c *AppConfig) {
	if v := os.Getenv("MAMMUT_HOST"); v != "" {
		c.Conf.Host = v
	}
	if v := os.Getenv("MAMMUT_HTTPPORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			log.Printf("Error parsing MAMMUT_HTTPPORT: %v", err)
		} else {
			c.Conf.HttpPort = port
		}
	}
	if v := os.Getenv("MAMMUT_SSLDOMAIN"); v != "" {
		c.Conf.SslDomain = v
	}
	if v := os.Getenv("MAMMUT_SITE_NAME"); v != "" {
		c.Conf.SiteName = v
	}
	if v := os.Getenv("MAMMUT_NODE_DESCRIPTION"); v != "" {
		c.Conf.NodeDescription = v
	}
	if v := os.Getenv("MAMMUT_WITH_AP"); v == "true" {
		c.Conf.WithAp = true
	}
	if v := os.Getenv("MAMMUT_WITH_JOURNALD"); v == "true" {
		c.Conf.WithJournald = true
	}
	if v := os.Getenv("MAMMUT_FALLBACK_CATEGORY"); v != "" {
		c.Conf.FallbackCategory = v
	}
}

func applyDefaults(c *AppConfig) {
	if c.Conf.SiteName == "" {
		c.Conf.SiteName = Name
	}
	if c.Conf.FallbackCategory == "" {
		c.Conf.FallbackCategory = "-1"
	}
	if c.Conf.FetchTimeoutSecs <= 0 {
		c.Conf.FetchTimeoutSecs = 10
	}
	if c.Conf.FetchRatePerSec <= 0 {
		c.Conf.FetchRatePerSec = 5
	}
	if c.Conf.ActorCacheMins <= 0 {
		c.Conf.ActorCacheMins = 60
	}
	if c.Conf.SentCacheMins <= 0 {
		c.Conf.SentCacheMins = 10
	}
}

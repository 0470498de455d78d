package config

import (
	"os"
	"path"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v2"
)

type Config struct {
	Public  Public
	private Private
}

type Public struct {
	Store  Store  `yaml:"store"`
	Upload Upload `yaml:"upload"`
	Audio  Audio  `yaml:"audio"`
	Log    Log    `yaml:"log"`
}

type Store struct {
	BaseUrl  string `yaml:"base_url" validate:"required,url"`
	PageSize int    `yaml:"page_size"` // messages per page in list queries
}

type Upload struct {
	MaxFileBytes   int64 `yaml:"max_file_bytes"`
	MaxAttachments int   `yaml:"max_attachments"` // per draft message
}

type Audio struct {
	// PreferredTypes is tried in order against the capture device,
	// first supported encoding wins.
	PreferredTypes []string `yaml:"preferred_types"`
}

type Log struct {
	Level string `yaml:"level"`
	Json  bool   `yaml:"json"`
}

type Private struct {
	AccessToken string `yaml:"access_token"`
}

// AccessToken returns the store session token. Kept out of Public so it
// never ends up in logs or serialized config dumps.
func (c *Config) AccessToken() string {
	return c.private.AccessToken
}

func mustLoadPath(configPath string, output interface{}) {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		panic("config file does not exist: " + configPath)
	}
	configFile, err := os.ReadFile(configPath)
	if err != nil {
		panic("can't read config file")
	}

	if err = yaml.Unmarshal(configFile, output); err != nil {
		panic("can't unmarshal config file")
	}
}

// MustLoad reads public.yaml and private.yaml from the folder, fills
// defaults and panics on malformed or incomplete config.
func MustLoad(configFolder string) *Config {
	var public Public
	mustLoadPath(path.Join(configFolder, "public.yaml"), &public)

	var private Private
	mustLoadPath(path.Join(configFolder, "private.yaml"), &private)

	cfg := &Config{withDefaults(public), private}

	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := validate.Struct(cfg.Public); err != nil {
		panic("invalid config: " + err.Error())
	}
	return cfg
}

func withDefaults(p Public) Public {
	if p.Store.PageSize <= 0 {
		p.Store.PageSize = 50
	}
	if p.Upload.MaxFileBytes <= 0 {
		p.Upload.MaxFileBytes = 25 << 20
	}
	if p.Upload.MaxAttachments <= 0 {
		p.Upload.MaxAttachments = 10
	}
	if len(p.Audio.PreferredTypes) == 0 {
		p.Audio.PreferredTypes = []string{"audio/webm;codecs=opus", "audio/mp4", "audio/webm"}
	}
	if p.Log.Level == "" {
		p.Log.Level = "info"
	}
	return p
}

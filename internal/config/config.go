package config

import (
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
	log "github.com/sirupsen/logrus"
)

const envPrefix = "YEARVIEW_"

type Application struct {
	Host     string   `koanf:"host"`
	Server   Server   `koanf:"server"`
	Google   Google   `koanf:"google"`
	Database Database `koanf:"db"`
	Metrics  Metrics  `koanf:"metrics"`
}

type Server struct {
	Addr string `koanf:"addr"`
}

// Google holds the OAuth client credentials and the endpoints used for token refresh,
// identity lookup and calendar reads. Endpoints are configurable so tests and proxies
// can point them elsewhere.
type Google struct {
	ClientId          string `koanf:"clientid"`
	ClientSecret      string `koanf:"clientsecret"`
	TokenUrl          string `koanf:"tokenurl"`
	OpenIdUserInfoUrl string `koanf:"openiduserinfourl"`
	ApiBaseUrl        string `koanf:"apibaseurl"`
}

type Database struct {
	Host   string `koanf:"host"`
	Port   int    `koanf:"port"`
	User   string `koanf:"user"`
	Pass   string `koanf:"pass"`
	Name   string `koanf:"name"`
	Schema string `koanf:"schema"`
}

type Metrics struct {
	Enabled bool `koanf:"enabled"`
}

func Defaults() Application {
	return Application{
		Host: "http://localhost:3000",
		Server: Server{
			Addr: ":8181",
		},
		Google: Google{
			TokenUrl:          "https://oauth2.googleapis.com/token",
			OpenIdUserInfoUrl: "https://openidconnect.googleapis.com/v1/userinfo",
			ApiBaseUrl:        "https://www.googleapis.com/",
		},
		Database: Database{
			Host:   "localhost",
			Port:   5432,
			User:   "yearview",
			Pass:   "",
			Name:   "yearview",
			Schema: "yearview",
		},
		Metrics: Metrics{
			Enabled: true,
		},
	}
}

func Load(path string) (Application, error) {
	var k = koanf.New(".")

	err := k.Load(structs.Provider(Defaults(), "koanf"), nil)
	if err != nil {
		log.Errorf("error loading config from structs: %v", err)
		return Application{}, err
	}

	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		if os.IsNotExist(err) {
			log.Infof("Config file not found at %s, using defaults and environment variables", path)
		} else {
			log.Errorf("error loading config from YAML: %v", err)
			return Application{}, err
		}
	} else {
		log.Infof("Loaded configuration from file: %s", path)
	}

	err = k.Load(env.Provider(".", env.Opt{
		Prefix: envPrefix,
		TransformFunc: func(k, v string) (string, any) {
			k = strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(k, envPrefix)), "_", ".")
			return k, v
		},
	}), nil)
	if err != nil {
		log.Errorf("error loading config from envs: %v", err)
		return Application{}, err
	}

	var app Application
	if err := k.Unmarshal("", &app); err != nil {
		return Application{}, err
	}

	return app, nil
}

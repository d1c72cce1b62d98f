package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/edgecraft/edgecraft"
)

// appConfig is the edgecraft.yaml deploy configuration.
type appConfig struct {
	App     string `yaml:"app"`
	Stage   string `yaml:"stage"`
	Region  string `yaml:"region"`
	Account string `yaml:"account"`

	Router routerConfig `yaml:"router"`

	// Plan is where the synth writes the routing table plan consumed by
	// `edgecraft publish`.
	Plan string `yaml:"plan"`

	// Distribution is the CloudFront distribution id to invalidate on
	// publish. Unset is fine until a site's content changes.
	Distribution string `yaml:"distribution"`
}

type routerConfig struct {
	ID         string                 `yaml:"id"`
	HandlerDir string                 `yaml:"handlerDir"`
	Routes     map[string]routeConfig `yaml:"routes"`
	Sites      []siteConfig           `yaml:"sites"`
}

type routeConfig struct {
	URL    string `yaml:"url"`
	Bucket string `yaml:"bucket"`

	RewriteRegex string `yaml:"rewriteRegex"`
	RewriteTo    string `yaml:"rewriteTo"`

	ReadTimeout      int `yaml:"readTimeout"`
	KeepAliveTimeout int `yaml:"keepaliveTimeout"`
}

type siteConfig struct {
	ID                string   `yaml:"id"`
	Dir               string   `yaml:"dir"`
	Path              string   `yaml:"path"`
	Base              string   `yaml:"base"`
	Custom404         string   `yaml:"custom404"`
	DeepRoutePrefix   string   `yaml:"deepRoutePrefix"`
	ImmutablePrefixes []string `yaml:"immutablePrefixes"`

	Servers []serverConfig `yaml:"servers"`

	ImageHost  string `yaml:"imageHost"`
	ImageRoute string `yaml:"imageRoute"`
}

type serverConfig struct {
	Host string  `yaml:"host"`
	Lat  float64 `yaml:"lat"`
	Lon  float64 `yaml:"lon"`
}

func loadConfig(path string) (*appConfig, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)

	var cfg appConfig
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	if cfg.App == "" {
		return nil, &edgecraft.ValidationError{Field: "app", Message: "app name is required"}
	}
	if cfg.Region == "" {
		return nil, &edgecraft.ValidationError{Field: "region", Message: "region is required"}
	}
	if cfg.Router.ID == "" {
		cfg.Router.ID = "router"
	}
	if cfg.Plan == "" {
		cfg.Plan = "edgecraft.plan.json"
	}
	for i, site := range cfg.Router.Sites {
		if site.ID == "" || site.Dir == "" {
			return nil, &edgecraft.ValidationError{
				Field:   "sites",
				Message: fmt.Sprintf("site %d needs both an id and a dir", i),
			}
		}
	}
	return &cfg, nil
}

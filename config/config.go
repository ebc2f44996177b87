// Package config defines the engine's run configuration: the options
// recognized by invoke/stream/resume (spec section 6.1), populated via
// functional options or a YAML file, with collaborator credentials read
// from the environment rather than the config struct itself.
package config

import (
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds the per-run options recognized by the public API. New and
// LoadYAML start from Default(); an option or YAML value overrides the
// default even when it is zero. ReasoningModel has no default.
type Config struct {
	InitialSearchQueryCount int    `yaml:"initial_search_query_count"`
	MaxResearchLoops        int    `yaml:"max_research_loops"`
	MaxParallel             int    `yaml:"max_parallel"`
	AttemptLimit            int    `yaml:"attempt_limit"`
	CallTimeoutMs           int    `yaml:"call_timeout_ms"`
	NodeTimeoutMs           int    `yaml:"node_timeout_ms"`
	ReasoningModel          string `yaml:"reasoning_model"`
	TrustProxyHeaders       bool   `yaml:"trust_proxy_headers"`
	// StrictCitations, when true, makes validate_web_results drop all
	// failing summaries instead of the default retain-all-on-total-failure
	// fallback. Reserved per spec.md section 9's open question: a later
	// configuration option, not the default.
	StrictCitations bool `yaml:"strict_citations"`
}

// Option mutates a Config during construction.
type Option func(*Config)

// Default returns the configuration defaults named in spec section 6.1.
func Default() Config {
	return Config{
		InitialSearchQueryCount: 3,
		MaxResearchLoops:        3,
		MaxParallel:             4,
		AttemptLimit:            3,
		CallTimeoutMs:           60_000,
		NodeTimeoutMs:           120_000,
	}
}

// New builds a Config starting from Default() and applying opts in order.
func New(opts ...Option) Config {
	c := Default()
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

func WithInitialSearchQueryCount(n int) Option { return func(c *Config) { c.InitialSearchQueryCount = n } }
func WithMaxResearchLoops(n int) Option        { return func(c *Config) { c.MaxResearchLoops = n } }
func WithMaxParallel(n int) Option             { return func(c *Config) { c.MaxParallel = n } }
func WithAttemptLimit(n int) Option            { return func(c *Config) { c.AttemptLimit = n } }
func WithCallTimeoutMs(ms int) Option          { return func(c *Config) { c.CallTimeoutMs = ms } }
func WithNodeTimeoutMs(ms int) Option          { return func(c *Config) { c.NodeTimeoutMs = ms } }
func WithReasoningModel(m string) Option       { return func(c *Config) { c.ReasoningModel = m } }
func WithTrustProxyHeaders(v bool) Option      { return func(c *Config) { c.TrustProxyHeaders = v } }
func WithStrictCitations(v bool) Option        { return func(c *Config) { c.StrictCitations = v } }

// LoadYAML reads a YAML config file, applying values over Default(); zero
// values left unset by the file keep their default.
func LoadYAML(path string) (Config, error) {
	c := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return c, err
	}
	if err := yaml.Unmarshal(data, &c); err != nil {
		return c, err
	}
	return c, nil
}

// Credentials holds collaborator secrets/endpoints read from the
// environment. None of these are core contracts (spec section 6.5); the
// LLM/SearchProvider implementations consume them directly.
type Credentials struct {
	AnthropicAPIKey string
	OpenAIAPIKey    string
	AWSRegion       string
	SearchAPIKey    string
}

// CredentialsFromEnv reads Credentials from the process environment.
func CredentialsFromEnv() Credentials {
	return Credentials{
		AnthropicAPIKey: os.Getenv("ANTHROPIC_API_KEY"),
		OpenAIAPIKey:    os.Getenv("OPENAI_API_KEY"),
		AWSRegion:       os.Getenv("AWS_REGION"),
		SearchAPIKey:    os.Getenv("SEARCH_API_KEY"),
	}
}

// Package scenario replays scripted page sessions against a live agent.
//
// A scenario is a YAML document describing the tracker configuration, the
// page the agent starts on and an ordered list of steps (clicks, scrolls,
// custom events, waits, visibility changes) that are dispatched through the
// same Window the agent observes.
package scenario

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"gopkg.in/yaml.v3"

	"github.com/visiora/visiora-agent/pkg/dom"
	"github.com/visiora/visiora-agent/pkg/storage"
	"github.com/visiora/visiora-agent/pkg/tracker"
)

// ErrInvalidStep is returned for a step that sets zero or several actions.
var ErrInvalidStep = errors.New("step must set exactly one action")

// Scenario is one scripted page session.
type Scenario struct {
	Tracker tracker.Config `yaml:"tracker"`
	Storage StorageConfig  `yaml:"storage"`
	Page    Page           `yaml:"page"`
	Steps   []Step         `yaml:"steps"`
}

// StorageConfig selects the backend for the long-lived scope. The tab scope
// is always in memory.
type StorageConfig struct {
	Kind      string `yaml:"kind"` // memory (default), sqlite, redis
	Path      string `yaml:"path"`
	RedisAddr string `yaml:"redis_addr"`
	Scope     string `yaml:"scope"`
}

// Page is the initial page state.
type Page struct {
	URL            string  `yaml:"url"`
	Title          string  `yaml:"title"`
	Referrer       string  `yaml:"referrer"`
	UserAgent      string  `yaml:"user_agent"`
	Language       string  `yaml:"language"`
	Timezone       string  `yaml:"timezone"`
	Screen         Size    `yaml:"screen"`
	Viewport       Size    `yaml:"viewport"`
	DocumentHeight int     `yaml:"document_height"`
	Beacon         bool    `yaml:"beacon"`
	Timing         *Timing `yaml:"timing"`
}

// Timing is the navigation timing of the page in milliseconds since
// navigation start.
type Timing struct {
	DomainLookupStart float64 `yaml:"domain_lookup_start"`
	DomainLookupEnd   float64 `yaml:"domain_lookup_end"`
	ConnectStart      float64 `yaml:"connect_start"`
	ConnectEnd        float64 `yaml:"connect_end"`
	RequestStart      float64 `yaml:"request_start"`
	ResponseStart     float64 `yaml:"response_start"`
	ResponseEnd       float64 `yaml:"response_end"`
	DOMContentLoaded  float64 `yaml:"dom_content_loaded"`
	LoadEventEnd      float64 `yaml:"load_event_end"`
}

// Size mirrors dom.Size with YAML tags.
type Size struct {
	Width  int `yaml:"width"`
	Height int `yaml:"height"`
}

// Load reads and validates a scenario file.
func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates a scenario document.
func Parse(data []byte) (*Scenario, error) {
	var s Scenario
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse scenario: %w", err)
	}
	for i, step := range s.Steps {
		if err := step.Validate(); err != nil {
			return nil, fmt.Errorf("step %d: %w", i+1, err)
		}
	}
	return &s, nil
}

// Snapshot returns the initial window state.
func (p Page) Snapshot() dom.Snapshot {
	snap := dom.Snapshot{
		URL:            p.URL,
		Title:          p.Title,
		Referrer:       p.Referrer,
		UserAgent:      p.UserAgent,
		Language:       p.Language,
		Timezone:       p.Timezone,
		Screen:         dom.Size{Width: p.Screen.Width, Height: p.Screen.Height},
		Viewport:       dom.Size{Width: p.Viewport.Width, Height: p.Viewport.Height},
		DocumentHeight: p.DocumentHeight,
	}
	if t := p.Timing; t != nil {
		snap.Timing = &dom.NavigationTiming{
			DomainLookupStart:        t.DomainLookupStart,
			DomainLookupEnd:          t.DomainLookupEnd,
			ConnectStart:             t.ConnectStart,
			ConnectEnd:               t.ConnectEnd,
			RequestStart:             t.RequestStart,
			ResponseStart:            t.ResponseStart,
			ResponseEnd:              t.ResponseEnd,
			DOMContentLoadedEventEnd: t.DOMContentLoaded,
			LoadEventEnd:             t.LoadEventEnd,
		}
	}
	return snap
}

// OpenStorage opens the configured long-lived backend. The returned close
// function releases it.
func (c StorageConfig) OpenStorage(ctx context.Context) (storage.Storage, func() error, error) {
	scope := c.Scope
	if scope == "" {
		scope = "local"
	}

	switch strings.ToLower(c.Kind) {
	case "", "memory":
		return storage.NewMemory(), func() error { return nil }, nil

	case "sqlite":
		path := c.Path
		if path == "" {
			path = ":memory:"
		}
		s, err := storage.NewSQLite(path, scope)
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil

	case "redis":
		addr := c.RedisAddr
		if addr == "" {
			addr = "localhost:6379"
		}
		client := redis.NewClient(&redis.Options{Addr: addr})
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			return nil, nil, fmt.Errorf("connect redis %s: %w", addr, err)
		}
		return storage.NewRedis(client, scope, 0), client.Close, nil
	}
	return nil, nil, fmt.Errorf("unknown storage kind %q", c.Kind)
}

// Window builds the host window the agent will observe.
func (s *Scenario) Window(local storage.Storage) *dom.Window {
	return dom.NewWindow(s.Page.Snapshot(), dom.Capabilities{Beacon: s.Page.Beacon}, local, storage.NewMemory())
}

// Duration is the sum of every wait step.
func (s *Scenario) Duration() time.Duration {
	var total time.Duration
	for _, step := range s.Steps {
		total += step.Wait
	}
	return total
}

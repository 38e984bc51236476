package logging

import (
	"strings"
	"time"
)

// Sink names understood by the application wiring.
const (
	SinkConsole   = "console"
	SinkJSON      = "json"
	SinkMemory    = "memory"
	SinkWebsocket = "websocket"
)

// DefaultMemoryCapacity is how many recent events the memory sink keeps.
const DefaultMemoryCapacity = 1024

const (
	defaultBufferSize       = 512
	defaultDropWarnInterval = 5 * time.Second
)

type Config struct {
	EnabledSinks     []string
	BufferSize       int
	MinimumSeverity  Severity
	Fields           map[string]any
	JSON             JSONConfig
	Console          ConsoleConfig
	Memory           MemoryConfig
	DropWarnInterval time.Duration
}

type JSONConfig struct {
	FilePath      string
	MaxBatch      int
	FlushInterval time.Duration
}

type ConsoleConfig struct {
	Prefix string
}

type MemoryConfig struct {
	Capacity int
}

func DefaultConfig() Config {
	return Config{
		EnabledSinks:     []string{SinkConsole},
		BufferSize:       defaultBufferSize,
		MinimumSeverity:  SeverityInfo,
		DropWarnInterval: defaultDropWarnInterval,
		JSON: JSONConfig{
			FilePath:      "navsim-events.ndjson",
			MaxBatch:      32,
			FlushInterval: 2 * time.Second,
		},
		Memory: MemoryConfig{Capacity: DefaultMemoryCapacity},
	}
}

func (c Config) normalized() Config {
	normalized := c
	if normalized.BufferSize <= 0 {
		normalized.BufferSize = defaultBufferSize
	}
	if normalized.DropWarnInterval <= 0 {
		normalized.DropWarnInterval = defaultDropWarnInterval
	}
	if normalized.Memory.Capacity <= 0 {
		normalized.Memory.Capacity = DefaultMemoryCapacity
	}
	if normalized.MinimumSeverity < SeverityDebug {
		normalized.MinimumSeverity = SeverityDebug
	}
	normalized.EnabledSinks = ParseSinks(strings.Join(c.EnabledSinks, ","))
	return normalized
}

func (c Config) HasSink(name string) bool {
	for _, s := range c.EnabledSinks {
		if s == name {
			return true
		}
	}
	return false
}

func (c Config) CloneFields() map[string]any {
	if len(c.Fields) == 0 {
		return nil
	}
	cloned := make(map[string]any, len(c.Fields))
	for k, v := range c.Fields {
		cloned[k] = v
	}
	return cloned
}

// ParseSinks splits a comma separated sink list, lower-casing names and
// dropping blanks and duplicates.
func ParseSinks(value string) []string {
	parts := strings.Split(value, ",")
	sinks := make([]string, 0, len(parts))
	seen := make(map[string]struct{}, len(parts))
	for _, part := range parts {
		name := strings.ToLower(strings.TrimSpace(part))
		if name == "" {
			continue
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		sinks = append(sinks, name)
	}
	return sinks
}

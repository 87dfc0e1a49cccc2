package config

import (
	"fmt"
	"os"
	"strings"

	kdl "github.com/sblinch/kdl-go"
	"github.com/sblinch/kdl-go/document"
)

// LoadKDL loads configuration from a KDL file. A missing file returns nil, nil.
func LoadKDL(path string) (*Config, error) {
	content, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return parseKDL(string(content))
}

// parseKDL overlays the nodes of content onto the defaults
//
//	store { shards 16; coarse_lock false }
//	diagnostics { enabled true; exempt "**/*.Namespace*" "**/*.Project*" }
//	repository { driver "sqlite"; path "uids.db"; compression "zstd" }
func parseKDL(content string) (*Config, error) {
	cfg := Default()

	doc, err := kdl.Parse(strings.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("failed to parse KDL config: %w", err)
	}

	for _, n := range doc.Nodes {
		switch nodeName(n) {
		case "version":
			if v, ok := firstIntArg(n); ok {
				cfg.Version = v
			}
		case "store":
			for _, cn := range n.Children {
				switch nodeName(cn) {
				case "shards":
					assignInt(cn, &cfg.Store.Shards)
				case "concurrency":
					assignInt(cn, &cfg.Store.Concurrency)
				case "initial_capacity":
					assignInt(cn, &cfg.Store.InitialCapacity)
				case "coarse_lock":
					assignBool(cn, &cfg.Store.CoarseLock)
				}
			}
		case "diagnostics":
			for _, cn := range n.Children {
				switch nodeName(cn) {
				case "enabled":
					assignBool(cn, &cfg.Diagnostics.Enabled)
				case "exempt":
					cfg.Diagnostics.Exempt = collectStringArgs(cn)
				case "log_file":
					assignBool(cn, &cfg.Diagnostics.LogFile)
				}
			}
		case "repository":
			for _, cn := range n.Children {
				switch nodeName(cn) {
				case "driver":
					assignString(cn, &cfg.Repository.Driver)
				case "path":
					assignString(cn, &cfg.Repository.Path)
				case "compression":
					assignString(cn, &cfg.Repository.Compression)
				case "compression_level":
					assignInt(cn, &cfg.Repository.CompressionLevel)
				case "watch_dir":
					assignString(cn, &cfg.Repository.WatchDir)
				case "watch_debounce_ms":
					assignInt(cn, &cfg.Repository.WatchDebounceMs)
				}
			}
		}
	}

	return cfg, nil
}

// Helper functions over the kdl-go document model
func nodeName(n *document.Node) string {
	if n == nil || n.Name == nil {
		return ""
	}
	return n.Name.NodeNameString()
}
func firstIntArg(n *document.Node) (int, bool) {
	if len(n.Arguments) == 0 {
		return 0, false
	}
	switch v := n.Arguments[0].Value.(type) {
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	default:
		return 0, false
	}
}
func firstStringArg(n *document.Node) (string, bool) {
	if len(n.Arguments) == 0 {
		return "", false
	}
	if s, ok := n.Arguments[0].Value.(string); ok {
		return s, true
	}
	return "", false
}
func firstBoolArg(n *document.Node) (bool, bool) {
	if len(n.Arguments) == 0 {
		return false, false
	}
	if b, ok := n.Arguments[0].Value.(bool); ok {
		return b, true
	}
	return false, false
}
func collectStringArgs(n *document.Node) []string {
	if n == nil {
		return nil
	}
	// inline form: exempt "a" "b"
	out := make([]string, 0, len(n.Arguments))
	for _, a := range n.Arguments {
		if s, ok := a.Value.(string); ok {
			out = append(out, s)
		}
	}

	// block form: exempt { "a"; "b" }, where each child's name is the value
	if len(out) == 0 && len(n.Children) > 0 {
		out = make([]string, 0, len(n.Children))
		for _, child := range n.Children {
			if s, ok := firstStringArg(child); ok {
				out = append(out, s)
			} else if child.Name != nil {
				if s, ok := child.Name.Value.(string); ok {
					out = append(out, s)
				}
			}
		}
	}

	return out
}

func assignInt(n *document.Node, dst *int) {
	if v, ok := firstIntArg(n); ok {
		*dst = v
	}
}

func assignBool(n *document.Node, dst *bool) {
	if v, ok := firstBoolArg(n); ok {
		*dst = v
	}
}

func assignString(n *document.Node, dst *string) {
	if v, ok := firstStringArg(n); ok {
		*dst = v
	}
}

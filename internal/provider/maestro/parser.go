package maestro

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/bgricker/flowreport/internal/provider"
	"gopkg.in/yaml.v3"
)

const ProviderName = "maestro"

// Parser loads Maestro flow files from disk.
type Parser struct {
	Root string
}

// NewParser constructs a Parser that resolves flow paths relative to root.
func NewParser(root string) *Parser {
	return &Parser{Root: root}
}

// Parse reads the supplied flow paths and produces a Suite data model.
func (p *Parser) Parse(paths []string) (provider.Suite, error) {
	suite := provider.Suite{Provider: ProviderName}
	for _, relPath := range paths {
		full := relPath
		if !filepath.IsAbs(full) && p.Root != "" {
			full = filepath.Join(p.Root, relPath)
		}
		flow, warnings, err := parseFlow(full, relPath)
		if err != nil {
			return provider.Suite{}, err
		}
		suite.Flows = append(suite.Flows, flow)
		suite.Warnings = append(suite.Warnings, warnings...)
	}
	return suite, nil
}

func parseFlow(fullPath, displayPath string) (provider.Flow, []provider.Warning, error) {
	f, err := os.Open(fullPath)
	if err != nil {
		return provider.Flow{}, nil, fmt.Errorf("open flow %q: %w", displayPath, err)
	}
	defer f.Close()
	return decodeFlow(f, displayPath)
}

func decodeFlow(r io.Reader, displayPath string) (provider.Flow, []provider.Warning, error) {
	decoder := yaml.NewDecoder(r)
	flow := provider.Flow{Path: displayPath}
	warnings := make([]provider.Warning, 0)

	var first yaml.Node
	if err := decoder.Decode(&first); err != nil {
		if errors.Is(err, io.EOF) {
			warnings = append(warnings, provider.Warning{Flow: displayPath, Message: "flow file is empty"})
			return flow, warnings, nil
		}
		return provider.Flow{}, nil, fmt.Errorf("parse flow %q: %w", displayPath, err)
	}

	commands := &first
	if root := documentRoot(&first); root != nil && root.Kind == yaml.MappingNode {
		var header headerDocument
		if err := first.Decode(&header); err != nil {
			return provider.Flow{}, nil, fmt.Errorf("parse flow header %q: %w", displayPath, err)
		}
		flow.Name = header.Name
		flow.AppID = header.AppID
		flow.URL = header.URL
		flow.Tags = append([]string(nil), header.Tags...)
		flow.Env = convertEnv(header.Env)

		var second yaml.Node
		if err := decoder.Decode(&second); err != nil {
			if !errors.Is(err, io.EOF) {
				return provider.Flow{}, nil, fmt.Errorf("parse flow commands %q: %w", displayPath, err)
			}
			commands = nil
		} else {
			commands = &second
		}
	} else {
		warnings = append(warnings, provider.Warning{Flow: displayPath, Message: "flow header is missing"})
	}

	if root := documentRoot(commands); root != nil && root.Kind == yaml.SequenceNode {
		flow.Commands = len(root.Content)
	}

	if flow.AppID == "" && flow.URL == "" {
		warnings = append(warnings, provider.Warning{Flow: displayPath, Message: "flow declares neither appId nor url"})
	}
	if flow.Commands == 0 {
		warnings = append(warnings, provider.Warning{Flow: displayPath, Message: "flow has no commands"})
	}

	return flow, warnings, nil
}

func documentRoot(n *yaml.Node) *yaml.Node {
	if n == nil {
		return nil
	}
	if n.Kind == yaml.DocumentNode {
		if len(n.Content) == 0 {
			return nil
		}
		return n.Content[0]
	}
	return n
}

type headerDocument struct {
	AppID string                 `yaml:"appId"`
	URL   string                 `yaml:"url"`
	Name  string                 `yaml:"name"`
	Tags  []string               `yaml:"tags"`
	Env   map[string]interface{} `yaml:"env"`
}

func convertEnv(input map[string]interface{}) map[string]string {
	if len(input) == 0 {
		return nil
	}
	out := make(map[string]string, len(input))
	for k, v := range input {
		out[k] = fmt.Sprint(v)
	}
	return out
}

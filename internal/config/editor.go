package config

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	sceneryerrors "github.com/alexisbeaulieu97/scenery/pkg/errors"
)

// SetPluginEnabled rewrites plugins.<name>.enabled in the document at path,
// creating the file and any missing sections. The document is edited as a
// node tree so comments and key order survive.
func SetPluginEnabled(path, name string, enabled bool) error {
	if !IsPluginName(name) {
		return sceneryerrors.NewValidationError(fmt.Sprintf("plugins.%s", name), "must be a valid plugin name", nil)
	}

	data, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return sceneryerrors.NewParseError(path, 0, err)
	}

	var doc yaml.Node
	if len(bytes.TrimSpace(data)) > 0 {
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return sceneryerrors.NewParseError(path, extractLine(err), err)
		}
	}
	if doc.Kind == 0 {
		doc = yaml.Node{Kind: yaml.DocumentNode, Content: []*yaml.Node{newMapping()}}
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 {
		return sceneryerrors.NewParseError(path, 0, errors.New("expected a YAML document"))
	}
	if root := doc.Content[0]; isNull(root) {
		doc.Content[0] = newMapping()
	}

	plugins, err := childMapping(doc.Content[0], "plugins")
	if err != nil {
		return sceneryerrors.NewParseError(path, doc.Content[0].Line, err)
	}
	section, err := childMapping(plugins, name)
	if err != nil {
		return sceneryerrors.NewParseError(path, plugins.Line, err)
	}
	setScalar(section, "enabled", strconv.FormatBool(enabled), "!!bool")

	var buf bytes.Buffer
	encoder := yaml.NewEncoder(&buf)
	encoder.SetIndent(2)
	if err := encoder.Encode(&doc); err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	if err := encoder.Close(); err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}

	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// childMapping returns the mapping stored under key, adding it when absent.
// A null value becomes an empty mapping.
func childMapping(parent *yaml.Node, key string) (*yaml.Node, error) {
	if parent.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("%q cannot be added: parent is not a mapping", key)
	}
	for i := 0; i+1 < len(parent.Content); i += 2 {
		if parent.Content[i].Value != key {
			continue
		}
		value := parent.Content[i+1]
		if isNull(value) {
			*value = *newMapping()
		}
		if value.Kind != yaml.MappingNode {
			return nil, fmt.Errorf("%q must be a mapping", key)
		}
		return value, nil
	}

	value := newMapping()
	parent.Content = append(parent.Content, &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: key}, value)
	return value, nil
}

func setScalar(mapping *yaml.Node, key, value, tag string) {
	for i := 0; i+1 < len(mapping.Content); i += 2 {
		if mapping.Content[i].Value == key {
			node := mapping.Content[i+1]
			node.Kind = yaml.ScalarNode
			node.Tag = tag
			node.Value = value
			node.Style = 0
			node.Content = nil
			return
		}
	}
	mapping.Content = append(mapping.Content,
		&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: key},
		&yaml.Node{Kind: yaml.ScalarNode, Tag: tag, Value: value},
	)
}

func newMapping() *yaml.Node {
	return &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
}

func isNull(node *yaml.Node) bool {
	return node.Kind == yaml.ScalarNode && node.Tag == "!!null"
}

package config

import (
	"bytes"
	"fmt"
	"os"
	"strconv"

	"github.com/rileyhilliard/fleetrun/internal/errors"
	"gopkg.in/yaml.v3"
)

// Write saves cfg to path, replacing whatever is there.
func Write(path string, cfg *Config) error {
	data, err := Marshal(cfg)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig,
			"Couldn't write "+path,
			"Check you can write to that directory.")
	}
	return nil
}

// Marshal renders cfg as YAML with two-space indents.
func Marshal(cfg *Config) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrConfig, "Couldn't encode config", "")
	}
	if err := enc.Close(); err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrConfig, "Couldn't encode config", "")
	}
	return buf.Bytes(), nil
}

// AddHost appends h to the hosts list in the file at path, keeping the
// rest of the file (comments included) as it is. Adding a host whose label
// is already listed is an error.
func AddHost(path string, h Host) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}
	if root.Kind != yaml.DocumentNode || len(root.Content) == 0 {
		return fmt.Errorf("invalid YAML document structure")
	}
	doc := root.Content[0]
	if doc.Kind != yaml.MappingNode {
		return fmt.Errorf("expected mapping at document root")
	}

	hostsNode := findMapValue(doc, "hosts")
	if hostsNode == nil {
		hostsNode = &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
		doc.Content = append(doc.Content, scalar("hosts"), hostsNode)
	}
	if hostsNode.Kind == yaml.ScalarNode && hostsNode.ShortTag() == "!!null" {
		// bare "hosts:" with nothing under it
		*hostsNode = yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
	}
	if hostsNode.Kind != yaml.SequenceNode {
		return fmt.Errorf("'hosts' must be a list")
	}
	// "hosts: []" comes back as a flow sequence; entries read better in block style.
	hostsNode.Style = 0

	for _, item := range hostsNode.Content {
		var existing Host
		if err := item.Decode(&existing); err != nil {
			continue
		}
		if existing.Label() == h.Label() {
			return errors.New(errors.ErrConfig,
				fmt.Sprintf("Host %q is already in %s", h.Label(), path),
				"Pick a different name: or edit the existing entry.")
		}
	}

	hostsNode.Content = append(hostsNode.Content, hostNode(h))

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(&root); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	enc.Close()

	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// hostNode builds the mapping for h, leaving out empty fields.
func hostNode(h Host) *yaml.Node {
	n := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	add := func(key, value string) {
		if value != "" {
			n.Content = append(n.Content, scalar(key), scalar(value))
		}
	}
	add("name", h.Name)
	add("address", h.Address)
	if h.Port != 0 {
		n.Content = append(n.Content, scalar("port"),
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!int", Value: strconv.Itoa(h.Port)})
	}
	add("user", h.User)
	add("identity_file", h.IdentityFile)
	if len(h.Tags) > 0 {
		tags := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq", Style: yaml.FlowStyle}
		for _, t := range h.Tags {
			tags.Content = append(tags.Content, scalar(t))
		}
		n.Content = append(n.Content, scalar("tags"), tags)
	}
	return n
}

func scalar(value string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: value}
}

// findMapValue finds a value in a mapping node by key name.
func findMapValue(node *yaml.Node, key string) *yaml.Node {
	if node.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i < len(node.Content)-1; i += 2 {
		if node.Content[i].Kind == yaml.ScalarNode && node.Content[i].Value == key {
			return node.Content[i+1]
		}
	}
	return nil
}

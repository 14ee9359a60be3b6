package road

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// UnmarshalYAML accepts a lane index either as a [from, to, index] sequence
// or as a mapping with from, to and index keys.
func (l *LaneIndex) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.SequenceNode:
		if len(node.Content) != 3 {
			return fmt.Errorf("line %d: lane index needs 3 elements, got %d", node.Line, len(node.Content))
		}
		var idx LaneIndex
		if err := node.Content[0].Decode(&idx.From); err != nil {
			return err
		}
		if err := node.Content[1].Decode(&idx.To); err != nil {
			return err
		}
		if err := node.Content[2].Decode(&idx.Index); err != nil {
			return err
		}
		*l = idx
		return nil
	case yaml.MappingNode:
		var raw struct {
			From  NodeID `yaml:"from"`
			To    NodeID `yaml:"to"`
			Index int    `yaml:"index"`
		}
		if err := node.Decode(&raw); err != nil {
			return err
		}
		*l = LaneIndex{From: raw.From, To: raw.To, Index: raw.Index}
		return nil
	default:
		return fmt.Errorf("line %d: lane index must be a sequence or mapping", node.Line)
	}
}

// MarshalYAML writes a lane index as a flow sequence.
func (l LaneIndex) MarshalYAML() (interface{}, error) {
	node := &yaml.Node{Kind: yaml.SequenceNode, Style: yaml.FlowStyle}
	for _, v := range []string{string(l.From), string(l.To), fmt.Sprint(l.Index)} {
		node.Content = append(node.Content, &yaml.Node{Kind: yaml.ScalarNode, Value: v})
	}
	node.Content[0].Tag = "!!str"
	node.Content[1].Tag = "!!str"
	node.Content[2].Tag = "!!int"
	return node, nil
}

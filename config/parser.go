package config

import (
	"github.com/goccy/go-yaml"
	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/v2"
)

// JSONParser returns the koanf JSON parser.
func JSONParser() koanf.Parser {
	return json.Parser()
}

// YAMLParser returns a koanf parser for YAML.
func YAMLParser() koanf.Parser {
	return yamlParser{}
}

type yamlParser struct{}

func (yamlParser) Unmarshal(b []byte) (map[string]any, error) {
	out := map[string]any{}
	if err := yaml.Unmarshal(b, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (yamlParser) Marshal(m map[string]any) ([]byte, error) {
	return yaml.Marshal(m)
}

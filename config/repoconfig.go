package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// RepoConfigName is looked up in the working directory when repo
// commands run, matching where release scripts keep it.
const RepoConfigName = ".bale-repo.json"

type RepoConfig struct {
	AppName        string              `json:"appName"`
	ExpirationDays int                 `json:"expirationDays,omitempty"`
	KeyMap         map[string][]string `json:"keyMap,omitempty"`
	Thresholds     map[string]int      `json:"thresholds,omitempty"`
}

const DefaultExpirationDays = 365

var repoConfigSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "title": "bale update repository config",
  "type": "object",
  "required": ["appName"],
  "properties": {
    "appName": {"type": "string", "minLength": 1},
    "expirationDays": {"type": "integer", "minimum": 1},
    "keyMap": {
      "type": "object",
      "additionalProperties": {
        "type": "array",
        "items": {"type": "string"}
      }
    },
    "thresholds": {
      "type": "object",
      "additionalProperties": {"type": "integer", "minimum": 1}
    }
  },
  "additionalProperties": false
}`

// LoadRepoConfig reads and schema-checks the repo config found in dir.
func LoadRepoConfig(dir string) (*RepoConfig, error) {
	path := filepath.Join(dir, RepoConfigName)
	source, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read repo config at path %s: \n%v", path, err)
	}

	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("repo-config.schema.json", strings.NewReader(repoConfigSchema)); err != nil {
		return nil, err
	}
	sch, err := compiler.Compile("repo-config.schema.json")
	if err != nil {
		return nil, err
	}

	var doc any
	dec := json.NewDecoder(bytes.NewReader(source))
	dec.UseNumber()
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to parse repo config at path %s: \n%v", path, err)
	}
	if err := sch.Validate(doc); err != nil {
		return nil, fmt.Errorf("repo config %s: %v", path, err)
	}

	conf := &RepoConfig{}
	if err := json.Unmarshal(source, conf); err != nil {
		return nil, err
	}
	if conf.ExpirationDays == 0 {
		conf.ExpirationDays = DefaultExpirationDays
	}
	if len(conf.KeyMap) == 0 {
		conf.KeyMap = map[string][]string{
			"targets":   {"targets"},
			"snapshot":  {"snapshot"},
			"timestamp": {"timestamp"},
		}
	}
	return conf, nil
}

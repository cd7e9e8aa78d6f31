// Package configs embeds the configuration template written by
// `termdex config init`.
package configs

import _ "embed"

// UserConfigTemplate is written to ~/.config/termdex/config.yaml.
//
//go:embed user-config.example.yaml
var UserConfigTemplate string

// Package config provides configuration parsing and management for the
// obaber LDAP front end.
//
// # Overview
//
// Configuration is read from a YAML file. Before parsing, ${VAR} and
// ${VAR:-default} references are replaced with environment values. Keys
// that are absent keep the values from DefaultConfig:
//
//	cfg, err := config.LoadConfig("/etc/obaber/config.yaml")
//	if err != nil {
//	    return err
//	}
//	if errs := config.ValidateConfig(cfg); len(errs) > 0 {
//	    return errs[0]
//	}
//
// # Sections
//
//	server:
//	  address: ":389"
//	  maxConnections: 10000
//	  readTimeout: 30s
//	  writeTimeout: 30s
//	  readBufferSize: 4096
//	directory:
//	  rootDN: "cn=admin,dc=example,dc=com"
//	  rootPassword: "${OBABER_ROOT_PASSWORD}"
//	codec:
//	  maxDepth: 64
//	  maxPDUSize: 16MB
//	  disallowIndefinite: false
//	  strict: true
//	logging:
//	  level: info
//	  format: json
//	  output: stdout
//	metrics:
//	  enabled: true
//	  address: ":9389"
//	  path: /metrics
//
// # Codec
//
// With strict enabled, a message that fails to decode into an LDAP
// operation ends the connection with a protocolError notice. With strict
// disabled the message is dropped, and the client gets neither a response
// nor a disconnect for its message ID. Servers should keep strict on.
//
// # Hot Reload
//
// ConfigWatcher watches the file and invokes a callback with the old and
// new configuration once edits settle. A configuration that fails to parse
// or validate is ignored and the previous one stays current.
package config

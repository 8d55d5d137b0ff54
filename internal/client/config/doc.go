// Package config loads runtime configuration for the messenger client.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON file (see parseJson) selected via flags: -c or -config.
//  3. Environment variables (MESSENGER_* prefix).
//  4. Command-line flags (see parseFlags), which override earlier values.
//
// Supported flags
//
//	-a string   server address
//	-p int      server port
//	-u string   account name; skips the interactive prompt
//	-m int      maximum wire frame length, bytes
//	-r int      reconnect interval (seconds)
//
// # JSON schema
//
// The JSON loader uses timex.Duration for intervals, so values can be either
// strings like "1s" or integer nanoseconds:
//
//	{
//	  "server_addr": "127.0.0.1",
//	  "server_port": 7777,
//	  "username": "alice",
//	  "reconnect_attempts": 5,
//	  "reconnect_interval": "1s"
//	}
package config

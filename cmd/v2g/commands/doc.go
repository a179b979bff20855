// Package commands defines the v2g CLI.
//
// Commands
//
//   - encode   Encode a YAML document to hex
//   - decode   Decode hex to a YAML document
//   - schemas  List the loaded schemas and their fingerprints
//   - station  Run a charging station
//   - ev       Run one vehicle session against a station
//
// # Documents
//
// Each element is a mapping with one key, the element name. A complex
// element maps to a sequence of child elements, a simple one to a scalar.
// Octet strings are hex:
//
//	V2G_Message:
//	  - Header:
//	      - SessionID: "0000000000000000"
//	  - Body:
//	      - SessionStopReq:
//	          - ChargingSession: Terminate
//
// # Configuration
//
// The root command loads --config (TOML) before any subcommand runs.
// Flags given on the command line override the file.
package commands

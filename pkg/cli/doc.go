// Package cli implements provisionctl, the operator command line tool.
//
// # Commands
//
//	provisionctl create-user --email a@b.c --password ... [--role admin]
//	provisionctl migrate [--database-url postgres://...]
//	provisionctl token --sub <user id> [--secret ...] [--expires 1h]
//	provisionctl version
//
// create-user runs the same workflow as the HTTP server but skips caller
// authorization: whoever holds the service key is trusted. Configuration is
// read the same way as the server (--config or PROVISIONER_CONFIG_FILE, then
// environment variables).
package cli

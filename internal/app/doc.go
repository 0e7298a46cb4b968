// Package app wires the service together and owns its lifecycle.
//
// # Initialization Flow
//
//	1. Configuration is loaded and validated by the caller
//	2. Telemetry providers are created
//	3. The resource manager, cache facade and websocket handler are built
//	4. The request pipeline and route table are assembled
//	5. Start verifies the database and the cache, then binds the listeners
//	6. Run serves until the context ends and then shuts everything down
//
// No listener is bound before the resources have been verified, so a process
// that cannot reach its database never accepts a connection.
//
// # Graceful Shutdown
//
// Stop drains in order: the HTTP server stops accepting and waits for
// in-flight requests, websocket peers are told the server is going away, the
// metrics server stops, and finally the resource manager waits for open
// sessions before closing the pool and the cache client.
//
// # Error Handling
//
// Errors are returned to the caller. The package never calls os.Exit, which
// leaves exit codes to the command layer.
package app

// Package server composes one protocol session out of the lifecycle state
// machine, the pending registry, the dispatch router and the client handle.
//
// # Building a Service
//
// The application supplies a Catalog, a function that receives the client
// handle and returns its routes:
//
//	svc, err := server.NewBuilder(func(c *client.Client) []router.Route {
//	    backend := &Backend{client: c}
//	    return []router.Route{
//	        router.Request(protocol.MethodInitialize, lifecycle.LayerInitialize, backend.Initialize),
//	        router.RequestNoParams(protocol.MethodShutdown, lifecycle.LayerShutdown, backend.Shutdown),
//	        router.Request("textDocument/hover", lifecycle.LayerNormal, backend.Hover),
//	    }
//	}, server.WithLogger(logger)).Build()
//
// Three control methods are always present: $/cancelRequest and
// window/workDoneProgress/cancel cancel pending work, and exit ends the
// session. If the catalog has no shutdown route a no-op one is added.
//
// # Running
//
// A Service implements transport.Session:
//
//	err := transport.NewStdio(svc).Serve(ctx)
//	os.Exit(svc.ExitCode())
//
// ExitCode is 0 only when exit followed a successful shutdown.
package server

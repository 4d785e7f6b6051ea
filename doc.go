// Package lsp is a protocol-server engine for the Language Server Protocol
// and other JSON-RPC 2.0 protocols framed with Content-Length headers.
//
// The engine owns everything between the byte stream and the application's
// handlers:
//
//   - framing and decoding (pkg/transport, pkg/protocol)
//   - the initialize/shutdown/exit lifecycle and the gating of every call
//     against it (pkg/lifecycle)
//   - dispatch by method name with typed params and results (pkg/router)
//   - bookkeeping of in-flight requests in both directions, including
//     $/cancelRequest (pkg/pending)
//   - a client handle for calling the peer and reporting work-done
//     progress (pkg/client)
//
// The application provides a catalog of routes:
//
//	svc, err := lsp.NewBuilder(func(c *client.Client) []router.Route {
//	    return []router.Route{
//	        router.Request(protocol.MethodInitialize, lsp.LayerInitialize, initialize),
//	        router.Request("textDocument/hover", lsp.LayerNormal, hover),
//	    }
//	}).Build()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	_ = lsp.NewStdio(svc).Serve(ctx)
//	os.Exit(svc.ExitCode())
//
// Requests that arrive before initialize completes fail with
// ServerNotInitialized (-32002); after shutdown they fail with
// InvalidRequest. A second shutdown succeeds without running the handler
// again. exit ends the session and releases every pending request.
//
// Logging, Prometheus metrics and OpenTelemetry tracing are wired through
// options; see pkg/logging and pkg/observability. examples/echo-server is a
// complete stdio server.
package lsp

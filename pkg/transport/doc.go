// Package transport moves protocol messages over a byte stream.
//
// # Framing
//
// Every message is a header block followed by a JSON payload:
//
//	Content-Length: 52\r\n
//	\r\n
//	{"jsonrpc":"2.0","id":1,"method":"initialize",...}
//
// Content-Length is mandatory; any other header is read and ignored.
// FrameReader splits an input stream into payloads and FrameWriter writes
// one complete frame per call, so frames from concurrent writers never
// interleave.
//
// # Serving a session
//
// Server drives a Session (normally a *server.Service) over an input and
// output stream:
//
//	srv := transport.NewStdio(svc, transport.WithMaxConcurrency(8))
//	if err := srv.Serve(ctx); err != nil {
//	    log.Printf("transport: %v", err)
//	}
//
// Requests run on their own goroutines, at most the configured concurrency
// at a time. Application notifications run in arrival order on a single
// worker; responses, exit and the cancellation notifications are handled
// on the read loop itself, so a handler waiting on the peer never stalls
// reading. Malformed payloads are answered with ParseError or
// InvalidRequest when an id can be recovered. Reading stops right after
// the exit notification; a closed input, a framing error or a failed write
// forces the session to exit.
package transport

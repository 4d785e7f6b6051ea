// Package client lets server-side code talk back to the peer.
//
// New returns a Client and its Socket. The Client side sends notifications
// and requests; requests register an outbound entry in the shared pending
// registry and block until the Socket side receives the matching response,
// the caller's context ends, or the session exits. The Socket side is what
// the transport loop uses: it drains Outbound and feeds responses from the
// peer into HandleResponse.
//
//	c, sock := client.New(registry)
//	go func() {
//	    for msg := range sock.Outbound() {
//	        // write msg to the peer
//	    }
//	}()
//
//	var result json.RawMessage
//	err := c.CallResult(ctx, "workspace/configuration", params, &result)
//
// # Progress
//
// BeginProgress opens a work-done progress stream reported through
// $/progress notifications:
//
//	p, err := c.BeginProgress(ctx, "Indexing", client.Bounded(0), client.Cancellable())
//	for i, file := range files {
//	    if p.IsCancelled() {
//	        break
//	    }
//	    index(file)
//	    _ = p.Report(ctx, file, uint32(100*(i+1)/len(files)))
//	}
//	_ = p.End(ctx, "done")
//
// Bounded streams must report a percentage every time. Streams that are not
// Cancellable never observe cancellation.
package client

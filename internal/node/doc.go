// Package node launches and supervises node runtime processes.
//
// It covers everything that touches a single node: preparing its home
// directory, assembling the runtime's command line, starting the process,
// terminating it, probing it until it is ready to receive messages, and
// locating the runtime binary in the first place (fetched from a published
// release or compiled from a local checkout).
package node

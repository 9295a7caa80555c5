// Package message implements the wire codec used for every interaction with
// a running node: it builds request envelopes, posts them to the node's
// message-injection endpoint and decodes the response envelope.
//
// A request is described by a Request value and turned into an Envelope by
// Build. The envelope is JSON-encoded and POSTed to
// <base>/rpc:distro:sys/message by Client.Transmit. Decode checks the HTTP
// status and extracts the UTF-8 body and the optional lazy-load blob.
//
// Bodies for the virtual filesystem process are provided as typed values
// (ReadDir, Write) so call sites never assemble JSON by hand.
package message

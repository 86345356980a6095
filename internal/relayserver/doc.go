// Package relayserver implements the relay side of the SDP relay contract:
// a WebSocket endpoint at /ws?url=<source>[&debug=1] that reads one
// {"type":"webrtc","sdp":...} request, replies {"sdp":...} or {"error":...}
// and closes.
//
// It exists for local development and interop tests. Production deployments
// dial an external relay.
package relayserver

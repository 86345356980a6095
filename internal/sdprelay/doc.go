// Package sdprelay hands a locally generated SDP offer to an external relay
// process and returns the relay's SDP answer.
//
// Each exchange uses its own WebSocket session: the client dials
// <base>/ws?url=<stream source>, sends a single {"type":"webrtc","sdp":...}
// message, waits for a single {"sdp":...} or {"error":...} reply and closes
// the session. No state is shared between exchanges, so a Client may be used
// from any number of goroutines.
//
// The client never retries. A WebRTC offer must not be replayed against the
// relay, so callers that want retries use Retry, which generates a fresh offer
// for every attempt.
package sdprelay

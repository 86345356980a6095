// Package policy defines which caller-supplied stream sources may be handed
// to the relay.
//
// The relay pulls media from whatever locator it is given, so accepting raw
// URLs from HTTP callers turns the gateway into a fetch-anything primitive.
// SourcePolicy is evaluated before any relay session is opened. Sources that
// come from configured cameras are trusted and do not pass through it.
package policy

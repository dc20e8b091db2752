// Package protocol defines the messages exchanged between a controller and the
// isolated SQL execution service.
//
// Every message is a tagged envelope:
//
//	["initialize", {name, debug}]      -> ["response", {success, data: {name}}]
//	["execute",    {sql, params?}]     -> ["response", {success, data: [row...]}]
//
// On the wire each envelope additionally carries a request ID so responses can
// be matched to the request that caused them even when they arrive out of
// order. Frames are encoded with msgpack; nothing but encoded bytes crosses the
// boundary between the two sides.
package protocol

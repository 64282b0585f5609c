// Package ipc exposes the daemon over JSON-RPC Unix sockets and ships the
// matching client used by the CLI.
//
// It owns socket lifecycle management, request/response DTOs, and the
// conversions between internal models and lightweight wire representations.
// Recording payloads stay out of the protocol: enqueue requests carry a file
// path and the daemon reads the bytes itself.
package ipc

// Package main hosts the canvasbridge CLI entrypoint and command graph.
//
// The Cobra-based command tree talks to the bridge daemon over its HTTP API:
// session status, canvas uploads, producer-style pulls, result publishing,
// trigger management, and configuration scaffolding. It centralizes
// configuration resolution and bridge URL discovery so subcommands can focus
// on user experience instead of wiring.
//
// Keep this package lean: add new functionality by extending the internal
// packages first, then surface it through dedicated commands or flags here.
package main

// Package remote serves a session over a WebSocket. Every text message is
// executed as one batch and answered with a JSON Reply.
package remote

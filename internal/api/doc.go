// Package api exposes the REST surface of the agent: posting user messages
// into conversational tasks, fetching task state and history, and listing
// live tasks for operations tooling.
package api

// Package agent contains the conversational orchestrator that turns task
// message history into executable DeFi intents. It owns the per-turn status
// sequence (working, then exactly one terminal state), routes parsed intents
// to registered action handlers, and folds failures into user-facing replies.
package agent

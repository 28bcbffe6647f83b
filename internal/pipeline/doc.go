// Package pipeline provides the business boundary for Prospect's post
// classification system. It defines the domain model (Post, AlphaObject),
// the Store interface (persistence), the Engine (per-post stage machine:
// prefilter, gatekeeper, analyst, guardrails), and the Service (batch
// driver with per-post failure isolation).
package pipeline

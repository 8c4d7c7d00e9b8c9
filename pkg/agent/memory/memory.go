// Package memory persists an agent's memory across sessions: an append-only
// history log (HISTORY.md) and a long-term memory document (MEMORY.md) that
// each consolidation replaces.
//
// Values handed to the store come from language-model output and are not
// guaranteed to be strings. Every value is normalized to text before it is
// written: strings verbatim, anything else as canonical JSON (see Normalize).
package memory

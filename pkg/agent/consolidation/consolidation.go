// Package consolidation connects the model's save_memory tool call to a
// memory store. It defines the tool the model is offered, extracts the
// history entry and memory update from the call's arguments, and persists
// them. Invoking the model and deciding when to consolidate are left to the
// caller.
package consolidation

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/tidwall/gjson"

	"github.com/entrhq/forge-memory/pkg/agent/memory"
	"github.com/entrhq/forge-memory/pkg/logging"
)

const (
	// ToolName is the name of the tool the model calls to save memory.
	ToolName = "save_memory"

	FieldHistoryEntry = "history_entry"
	FieldMemoryUpdate = "memory_update"
)

var (
	ErrInvalidArguments = errors.New("consolidation: invalid save_memory arguments")
	ErrUnexpectedTool   = errors.New("consolidation: unexpected tool call")
)

var debugLog *logging.Logger

func init() {
	var err error
	debugLog, err = logging.NewLogger("consolidation")
	if err != nil {
		debugLog.Warnf("Failed to initialize consolidation logger, using stderr fallback: %v", err)
	}
}

// Persister is the part of memory.Store consolidation writes through.
type Persister interface {
	AppendHistory(value any) error
	WriteLongTerm(value any) error
	ReadLongTerm() (string, error)
}

// Update holds the values extracted from one save_memory call. A field is
// nil when the model omitted it or left it empty. Strings are text; any
// other shape is kept as json.RawMessage.
type Update struct {
	HistoryEntry any
	MemoryUpdate any
}

// ParseArguments extracts the history entry and memory update from the JSON
// arguments of a save_memory call. Fields that are missing, null, "" or an
// empty object/array are left nil.
func ParseArguments(args string) (*Update, error) {
	if !gjson.Valid(args) {
		return nil, fmt.Errorf("%w: malformed JSON", ErrInvalidArguments)
	}
	root := gjson.Parse(args)
	if !root.IsObject() {
		return nil, fmt.Errorf("%w: expected an object, got %s", ErrInvalidArguments, root.Type)
	}
	return &Update{
		HistoryEntry: fieldValue(root.Get(FieldHistoryEntry)),
		MemoryUpdate: fieldValue(root.Get(FieldMemoryUpdate)),
	}, nil
}

func fieldValue(r gjson.Result) any {
	switch {
	case !r.Exists(), r.Type == gjson.Null:
		return nil
	case r.Type == gjson.String:
		if r.Str == "" {
			return nil
		}
		return r.Str
	case r.IsObject() || r.IsArray():
		empty := true
		r.ForEach(func(_, _ gjson.Result) bool {
			empty = false
			return false
		})
		if empty {
			return nil
		}
	}
	return json.RawMessage(r.Raw)
}

// Apply persists u. The history entry is appended when present. The memory
// update replaces the long-term document when present and different from
// what is already stored.
func Apply(store Persister, u *Update) error {
	if u == nil {
		return nil
	}

	if u.HistoryEntry != nil {
		if err := store.AppendHistory(u.HistoryEntry); err != nil {
			return fmt.Errorf("consolidation: append history: %w", err)
		}
	}

	if u.MemoryUpdate == nil {
		return nil
	}
	update, err := memory.Normalize(u.MemoryUpdate)
	if err != nil {
		return fmt.Errorf("consolidation: memory update: %w", err)
	}
	current, err := store.ReadLongTerm()
	if err != nil {
		return fmt.Errorf("consolidation: read long-term memory: %w", err)
	}
	if update == current {
		debugLog.Debugf("Long-term memory unchanged, skipping write")
		return nil
	}
	if err := store.WriteLongTerm(update); err != nil {
		return fmt.Errorf("consolidation: write long-term memory: %w", err)
	}
	return nil
}

// ApplyToolCall parses a save_memory tool call and applies it to store.
func ApplyToolCall(store Persister, call openai.ChatCompletionMessageToolCall) error {
	if call.Function.Name != ToolName {
		return fmt.Errorf("%w: %q", ErrUnexpectedTool, call.Function.Name)
	}
	u, err := ParseArguments(call.Function.Arguments)
	if err != nil {
		debugLog.Warnf("Rejected save_memory call %s: %v", call.ID, err)
		return err
	}
	debugLog.Debugf("Applying save_memory call %s (history: %T, memory: %T)", call.ID, u.HistoryEntry, u.MemoryUpdate)
	return Apply(store, u)
}

// FindToolCall returns the first save_memory call in calls.
func FindToolCall(calls []openai.ChatCompletionMessageToolCall) (openai.ChatCompletionMessageToolCall, bool) {
	for _, c := range calls {
		if c.Function.Name == ToolName {
			return c, true
		}
	}
	return openai.ChatCompletionMessageToolCall{}, false
}

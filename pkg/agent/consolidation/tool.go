package consolidation

import (
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/shared"
)

const toolDescription = `Save the result of memory consolidation.

Both values MUST be strings, not objects or arrays.
Example:
  {"history_entry": "[2026-02-14 10:30] User asked about Go generics; explained type parameters.",
   "memory_update": "- Location: Beijing\n- Skill: Python"}`

const historyEntryDescription = `A paragraph (2-5 sentences) summarizing the key events, decisions and topics. ` +
	`Start with [YYYY-MM-DD HH:MM]. Include details useful for grep search. ` +
	`MUST be a string, not an object or array.`

const memoryUpdateDescription = `The full updated long-term memory as markdown. ` +
	`Include all existing facts plus new ones. Return the existing memory unchanged if nothing is new. ` +
	`MUST be a string, not an object or array.`

// SaveMemoryTool returns the save_memory tool offered to the model during
// consolidation. The schema asks for strings; Apply still accepts any JSON
// shape because models do not always comply.
func SaveMemoryTool() openai.ChatCompletionToolParam {
	return openai.ChatCompletionToolParam{
		Function: shared.FunctionDefinitionParam{
			Name:        ToolName,
			Description: openai.String(toolDescription),
			Parameters: shared.FunctionParameters{
				"type": "object",
				"properties": map[string]any{
					FieldHistoryEntry: map[string]any{
						"type":        "string",
						"description": historyEntryDescription,
					},
					FieldMemoryUpdate: map[string]any{
						"type":        "string",
						"description": memoryUpdateDescription,
					},
				},
				"required": []string{FieldHistoryEntry, FieldMemoryUpdate},
			},
		},
	}
}

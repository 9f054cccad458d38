package compaction

import (
	"sort"

	"github.com/tidwall/gjson"

	"github.com/agentctx/agentctx/types"
)

// Tool classification for file-operation tracking. Write and edit
// classifications take precedence over read when a path shows up in
// both.
var (
	readTools = map[string]bool{
		"read": true,
		"grep": true,
		"glob": true,
	}
	writeTools = map[string]bool{
		"write":      true,
		"edit":       true,
		"multi_edit": true,
	}
)

// FileOperations is the accumulated set of files touched by the
// discarded history, carried forward across compactions.
type FileOperations struct {
	// ReadFiles are paths that were only read.
	ReadFiles []string

	// ModifiedFiles are paths that were written or edited.
	ModifiedFiles []string
}

// trackFileOperations extracts file operations from the discarded
// entries, seeded with the carry-forward from the previous marker's
// details. Carry-forward is skipped when the previous marker was
// produced by an external override.
func trackFileOperations(discarded []*types.Entry, prev *types.CompactionDetails) FileOperations {
	read := make(map[string]bool)
	modified := make(map[string]bool)

	if prev != nil && !prev.External {
		for _, p := range prev.ReadFiles {
			read[p] = true
		}
		for _, p := range prev.ModifiedFiles {
			modified[p] = true
		}
	}

	for _, entry := range discarded {
		if entry.Kind != types.EntryAssistant {
			continue
		}
		for _, block := range entry.Content {
			if block.Type != types.ContentToolUse {
				continue
			}
			path := gjson.GetBytes(block.ToolInput, "path").String()
			if path == "" {
				continue
			}
			switch {
			case writeTools[block.ToolName]:
				modified[path] = true
			case readTools[block.ToolName]:
				read[path] = true
			}
		}
	}

	// Modified wins: a path both read and modified reports as modified.
	for p := range modified {
		delete(read, p)
	}

	return FileOperations{
		ReadFiles:     sortedKeys(read),
		ModifiedFiles: sortedKeys(modified),
	}
}

func sortedKeys(set map[string]bool) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

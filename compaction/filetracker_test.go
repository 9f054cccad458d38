package compaction

import (
	"encoding/json"
	"reflect"
	"testing"

	"github.com/agentctx/agentctx/types"
)

func toolUse(name, path string) types.ContentBlock {
	input, _ := json.Marshal(map[string]string{"path": path})
	return types.ContentBlock{Type: types.ContentToolUse, ToolName: name, ToolInput: input}
}

func assistantTools(blocks ...types.ContentBlock) *types.Entry {
	return &types.Entry{Kind: types.EntryAssistant, Content: blocks}
}

func TestTrackFileOperations(t *testing.T) {
	tests := []struct {
		name         string
		discarded    []*types.Entry
		prev         *types.CompactionDetails
		wantRead     []string
		wantModified []string
	}{
		{
			name: "reads and writes separate",
			discarded: []*types.Entry{
				assistantTools(toolUse("read", "a.go"), toolUse("write", "b.go")),
			},
			wantRead:     []string{"a.go"},
			wantModified: []string{"b.go"},
		},
		{
			name: "modified wins over read",
			discarded: []*types.Entry{
				assistantTools(toolUse("read", "a.go")),
				assistantTools(toolUse("edit", "a.go")),
			},
			wantRead:     []string{},
			wantModified: []string{"a.go"},
		},
		{
			name: "grep and glob count as reads",
			discarded: []*types.Entry{
				assistantTools(toolUse("grep", "x.go"), toolUse("glob", "y.go")),
			},
			wantRead:     []string{"x.go", "y.go"},
			wantModified: []string{},
		},
		{
			name: "unknown tools and missing paths ignored",
			discarded: []*types.Entry{
				assistantTools(
					toolUse("browse", "z.go"),
					types.ContentBlock{Type: types.ContentToolUse, ToolName: "read", ToolInput: json.RawMessage(`{"pattern":"foo"}`)},
				),
			},
			wantRead:     []string{},
			wantModified: []string{},
		},
		{
			name: "carry forward from previous marker",
			discarded: []*types.Entry{
				assistantTools(toolUse("write", "new.go")),
			},
			prev: &types.CompactionDetails{
				ReadFiles:     []string{"old_read.go"},
				ModifiedFiles: []string{"old_mod.go"},
			},
			wantRead:     []string{"old_read.go"},
			wantModified: []string{"new.go", "old_mod.go"},
		},
		{
			name: "carry forward promotes old read to modified",
			discarded: []*types.Entry{
				assistantTools(toolUse("write", "old_read.go")),
			},
			prev: &types.CompactionDetails{
				ReadFiles: []string{"old_read.go"},
			},
			wantRead:     []string{},
			wantModified: []string{"old_read.go"},
		},
		{
			name: "external marker skips carry forward",
			discarded: []*types.Entry{
				assistantTools(toolUse("read", "fresh.go")),
			},
			prev: &types.CompactionDetails{
				External:      true,
				ReadFiles:     []string{"stale.go"},
				ModifiedFiles: []string{"stale_mod.go"},
			},
			wantRead:     []string{"fresh.go"},
			wantModified: []string{},
		},
		{
			name: "non-assistant entries ignored",
			discarded: []*types.Entry{
				{Kind: types.EntryToolResult, Content: []types.ContentBlock{toolUse("write", "not_counted.go")}},
				{Kind: types.EntryBash, Command: "rm file.go"},
			},
			wantRead:     []string{},
			wantModified: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ops := trackFileOperations(tt.discarded, tt.prev)
			if !reflect.DeepEqual(ops.ReadFiles, tt.wantRead) {
				t.Errorf("ReadFiles = %v, want %v", ops.ReadFiles, tt.wantRead)
			}
			if !reflect.DeepEqual(ops.ModifiedFiles, tt.wantModified) {
				t.Errorf("ModifiedFiles = %v, want %v", ops.ModifiedFiles, tt.wantModified)
			}
		})
	}
}

func TestTrackFileOperationsSorted(t *testing.T) {
	ops := trackFileOperations([]*types.Entry{
		assistantTools(toolUse("read", "c.go"), toolUse("read", "a.go"), toolUse("read", "b.go")),
	}, nil)

	want := []string{"a.go", "b.go", "c.go"}
	if !reflect.DeepEqual(ops.ReadFiles, want) {
		t.Errorf("ReadFiles = %v, want sorted %v", ops.ReadFiles, want)
	}
}

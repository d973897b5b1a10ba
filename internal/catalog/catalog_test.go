package catalog

import "testing"

func TestCatalogueIsStableAndUnique(t *testing.T) {
	all := All()
	if len(all) != 28 {
		t.Fatalf("expected 28 tools, got %d", len(all))
	}

	seen := make(map[string]bool)
	for _, tool := range all {
		if tool.Name == "" {
			t.Fatal("tool with empty name")
		}
		if seen[tool.Name] {
			t.Fatalf("duplicate tool name %q", tool.Name)
		}
		seen[tool.Name] = true
		if tool.Description == "" {
			t.Fatalf("tool %q has no description", tool.Name)
		}
	}
}

func TestLookup(t *testing.T) {
	if _, ok := Lookup(ToolSendMessage); !ok {
		t.Fatal("send message tool should exist")
	}
	if _, ok := Lookup("no_such_tool"); ok {
		t.Fatal("unknown tool should not resolve")
	}
}

func TestValidateArgs(t *testing.T) {
	tool, _ := Lookup(ToolSendMessage)

	err := ValidateArgs(tool, map[string]any{"channel_id": "c1", "content": "hi"})
	if err != nil {
		t.Fatalf("valid args rejected: %v", err)
	}

	if err := ValidateArgs(tool, map[string]any{"channel_id": "c1"}); err == nil {
		t.Fatal("missing content should fail")
	}
	if err := ValidateArgs(tool, map[string]any{"channel_id": "c1", "content": "  "}); err == nil {
		t.Fatal("blank content should fail")
	}
}

func TestValidateArgsIgnoresOptional(t *testing.T) {
	tool, _ := Lookup(ToolReadMessages)
	if err := ValidateArgs(tool, map[string]any{"channel_id": "c1"}); err != nil {
		t.Fatalf("optional limit should not be required: %v", err)
	}
}

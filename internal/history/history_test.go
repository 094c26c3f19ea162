package history

import (
	"fmt"
	"testing"

	"mindcare/internal/llm"
)

func TestAppendEvictsOldestFirst(t *testing.T) {
	var h []Entry
	for i := 0; i < 7; i++ {
		h = Append(h, Entry{Role: llm.RoleUser, Content: fmt.Sprintf("m%d", i), Timestamp: int64(i)}, 3)
		if len(h) > 3 {
			t.Fatalf("cap exceeded after %d appends: %d", i+1, len(h))
		}
	}
	if len(h) != 3 {
		t.Fatalf("want 3, got %d", len(h))
	}
	for i, want := range []string{"m4", "m5", "m6"} {
		if h[i].Content != want {
			t.Fatalf("h[%d] = %q, want %q", i, h[i].Content, want)
		}
	}
}

func TestAppendNoLimit(t *testing.T) {
	var h []Entry
	for i := 0; i < 50; i++ {
		h = Append(h, Entry{Content: "x"}, 0)
	}
	if len(h) != 50 {
		t.Fatalf("want 50, got %d", len(h))
	}
}

func TestToLLMFiltersRolesAndBlank(t *testing.T) {
	h := []Entry{
		{Role: llm.RoleUser, Content: "hello"},
		{Role: llm.RoleAssistant, Content: "hi"},
		{Role: "system", Content: "ignored"},
		{Role: llm.RoleUser, Content: "   "},
	}
	msgs := ToLLM(h)
	if len(msgs) != 2 {
		t.Fatalf("unexpected messages: %+v", msgs)
	}
	if msgs[0].Role != llm.RoleUser || msgs[1].Content != "hi" {
		t.Fatalf("unexpected order: %+v", msgs)
	}
}

func TestTailCopies(t *testing.T) {
	h := []Entry{{Content: "a"}, {Content: "b"}, {Content: "c"}}
	tail := Tail(h, 2)
	if len(tail) != 2 || tail[0].Content != "b" {
		t.Fatalf("unexpected tail: %+v", tail)
	}
	tail[0].Content = "mutated"
	if h[1].Content != "b" {
		t.Fatalf("tail aliases source")
	}
}

package core

import (
	"errors"
	"testing"
)

func TestEvent_ConstructorsAndHelpers(t *testing.T) {
	e := NewEvent("inv-1", "authorA")
	if e.Author != "authorA" || e.InvocationID != "inv-1" || e.ID == "" || e.Timestamp.IsZero() {
		t.Fatalf("NewEvent did not initialize fields: %+v", e)
	}

	msg := NewMessageEvent("inv-1", "agent", "hello world")
	if msg.Text() != "hello world" || msg.Content.Role != RoleAssistant {
		t.Fatalf("NewMessageEvent malformed: %+v", msg)
	}
	if !msg.IsFinalResponse() {
		t.Fatal("plain message should be final")
	}

	call := FunctionCall{ID: "c1", Name: "do_stuff", Arguments: `{"a":1}`}
	ok := NewFunctionResponseEvent("inv-1", "agent", call, "done", nil)
	resps := ok.FunctionResponses()
	if len(resps) != 1 || resps[0].ID != "c1" || resps[0].Text() != "done" {
		t.Fatalf("unexpected responses: %+v", resps)
	}
	if ok.IsFinalResponse() {
		t.Fatal("function response must not be final")
	}

	failed := NewFunctionResponseEvent("inv-1", "agent", call, nil, errors.New("boom"))
	if got := failed.FunctionResponses()[0].Text(); got != "error: boom" {
		t.Fatalf("unexpected error text %q", got)
	}
}

func TestEvent_PartialIsNotFinal(t *testing.T) {
	e := NewMessageEvent("inv", "agent", "frag")
	p := true
	e.Partial = &p

	if !e.IsPartial() || e.IsFinalResponse() {
		t.Fatal("partial event must not be final")
	}
}

package command_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/mbc-net/ai-support-agent/internal/command"
)

func TestValidate_AcceptsWellFormedPayloads(t *testing.T) {
	cases := []struct {
		typ     command.Type
		payload string
	}{
		{command.TypeExecuteCommand, `{"command":"ls","args":["-la"],"timeoutSeconds":30}`},
		{command.TypeFileRead, `{"path":"/srv/app/README.md"}`},
		{command.TypeFileWrite, `{"path":"/srv/app/out.txt","content":"hello"}`},
		{command.TypeFileList, `{"path":"/srv/app","recursive":true}`},
		{command.TypeProcessList, `{}`},
		{command.TypeProcessKill, `{"pid":1234,"signal":"SIGTERM"}`},
		{command.TypeChat, `{"message":"hi there"}`},
		{command.TypeSetup, `{"projectDir":"/srv/app"}`},
		{command.TypeConfigSync, `{"configHash":"abc123"}`},
	}
	for _, tc := range cases {
		t.Run(string(tc.typ), func(t *testing.T) {
			cmd := command.Command{ID: "c1", Type: tc.typ, Payload: json.RawMessage(tc.payload)}
			if err := command.Validate(cmd); err != nil {
				t.Fatalf("expected valid payload, got error: %v", err)
			}
		})
	}
}

func TestValidate_RejectsMissingRequiredFields(t *testing.T) {
	cmd := command.Command{ID: "c1", Type: command.TypeFileRead, Payload: json.RawMessage(`{}`)}
	if err := command.Validate(cmd); err == nil {
		t.Fatal("expected validation error for missing path")
	}
}

func TestValidate_RejectsUnknownCommandType(t *testing.T) {
	cmd := command.Command{ID: "c1", Type: "bogus_type", Payload: json.RawMessage(`{}`)}
	if err := command.Validate(cmd); err == nil {
		t.Fatal("expected error for unknown command type")
	}
}

func TestValidate_RejectsMalformedJSON(t *testing.T) {
	cmd := command.Command{ID: "c1", Type: command.TypeChat, Payload: json.RawMessage(`{not json`)}
	if err := command.Validate(cmd); err == nil {
		t.Fatal("expected error for malformed JSON payload")
	}
}

func TestValidate_RejectsOutOfRangeSignal(t *testing.T) {
	cmd := command.Command{ID: "c1", Type: command.TypeProcessKill, Payload: json.RawMessage(`{"pid":1,"signal":"SIGKILL"}`)}
	if err := command.Validate(cmd); err == nil {
		t.Fatal("expected SIGKILL to be rejected by the process_kill schema")
	}
}

func TestValidate_RejectsNegativePID(t *testing.T) {
	cmd := command.Command{ID: "c1", Type: command.TypeProcessKill, Payload: json.RawMessage(`{"pid":-1}`)}
	if err := command.Validate(cmd); err == nil {
		t.Fatal("expected negative pid to be rejected")
	}
}

func TestResultConstructors(t *testing.T) {
	code := 0
	now := time.Now().UTC()
	res := command.Success("c1", json.RawMessage(`{"ok":true}`), &code, 0, now)
	if res.Status != command.StatusSuccess {
		t.Errorf("expected success status, got %v", res.Status)
	}

	fail := command.Failure("c1", command.StatusTimeout, "deadline exceeded", nil, nil, 0, now)
	if fail.Status != command.StatusTimeout || fail.ErrorMessage == "" {
		t.Errorf("unexpected failure result: %+v", fail)
	}
}

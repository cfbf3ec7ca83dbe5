package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/davidahmann/cardkit/internal/dataid"
	"github.com/davidahmann/cardkit/internal/pack"
	"github.com/davidahmann/cardkit/internal/policy"
	"github.com/davidahmann/cardkit/internal/tracking"
	"github.com/davidahmann/cardkit/pkg/types"
)

const heroBatch = `[{"type":"message","attachments":[{"contentType":"application/vnd.microsoft.card.hero","content":{"title":"Pick","buttons":[{"type":"postBack","title":"Yes","value":{"answer":"yes"}},{"type":"imBack","title":"No","value":"no"}]}}]}]`

func writeTemp(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestRun_UsageAndUnknown(t *testing.T) {
	var out, errOut bytes.Buffer

	if code := run([]string{"cardkit"}, &out, &errOut); code != 2 {
		t.Fatalf("expected 2, got %d", code)
	}

	out.Reset()
	errOut.Reset()
	if code := run([]string{"cardkit", "nope"}, &out, &errOut); code != 2 {
		t.Fatalf("expected 2, got %d", code)
	}
	if !strings.Contains(errOut.String(), "Usage:") {
		t.Fatalf("expected usage output")
	}

	errOut.Reset()
	if code := run([]string{"cardkit", "ids", "extract", "--bogus"}, &out, &errOut); code != 2 {
		t.Fatalf("expected 2 for an unknown flag, got %d", code)
	}
}

func TestIDsAssignAndExtract(t *testing.T) {
	path := writeTemp(t, "batch.json", heroBatch)

	var out, errOut bytes.Buffer
	code := run([]string{"cardkit", "ids", "assign", "--scope", "action", "--value", "card=card-1", path}, &out, &errOut)
	if code != 0 {
		t.Fatalf("expected 0, got %d stderr=%s", code, errOut.String())
	}

	assigned := writeTemp(t, "assigned.json", out.String())
	out.Reset()
	code = run([]string{"cardkit", "ids", "extract", "--json", assigned}, &out, &errOut)
	if code != 0 {
		t.Fatalf("expected 0, got %d stderr=%s", code, errOut.String())
	}
	var ids []dataid.DataID
	if err := json.Unmarshal(out.Bytes(), &ids); err != nil {
		t.Fatalf("decode ids: %v\n%s", err, out.String())
	}

	actions, cards := 0, 0
	for _, id := range ids {
		switch id.Scope {
		case dataid.ScopeAction:
			actions++
		case dataid.ScopeCard:
			cards++
			if id.Value != "card-1" {
				t.Fatalf("expected explicit card id, got %q", id.Value)
			}
		}
	}
	// the imBack button carries a string value and gets no id
	if actions != 1 || cards != 1 {
		t.Fatalf("expected one action and one card id, got %+v", ids)
	}

	out.Reset()
	code = run([]string{"cardkit", "ids", "extract", assigned}, &out, &errOut)
	if code != 0 {
		t.Fatalf("expected 0, got %d", code)
	}
	if !strings.Contains(out.String(), "card=card-1") {
		t.Fatalf("unexpected plain output: %s", out.String())
	}
}

func TestIDsErrors(t *testing.T) {
	path := writeTemp(t, "batch.json", heroBatch)
	var out, errOut bytes.Buffer

	if code := run([]string{"cardkit", "ids", "assign", "--kind", "nope", path}, &out, &errOut); code != 2 {
		t.Fatalf("expected 2 for unknown kind, got %d", code)
	}
	if code := run([]string{"cardkit", "ids", "assign", "--scope", "galaxy", path}, &out, &errOut); code != 2 {
		t.Fatalf("expected 2 for unknown scope, got %d", code)
	}
	if code := run([]string{"cardkit", "ids", "assign", "--value", "card", path}, &out, &errOut); code != 2 {
		t.Fatalf("expected 2 for malformed value, got %d", code)
	}
	if code := run([]string{"cardkit", "ids", "extract", "a", "b"}, &out, &errOut); code != 2 {
		t.Fatalf("expected 2 for extra args, got %d", code)
	}
	if code := run([]string{"cardkit", "ids", "extract", filepath.Join(t.TempDir(), "missing.json")}, &out, &errOut); code != 1 {
		t.Fatalf("expected 1 for missing file, got %d", code)
	}

	bad := writeTemp(t, "bad.json", `{"not":"a batch"}`)
	errOut.Reset()
	if code := run([]string{"cardkit", "ids", "extract", bad}, &out, &errOut); code != 1 {
		t.Fatalf("expected 1 for mismatched JSON, got %d", code)
	}
	if errOut.Len() == 0 {
		t.Fatalf("expected an error message")
	}
}

func TestPolicyLintAndShow(t *testing.T) {
	path := writeTemp(t, "policy.yaml", "version: v7\nupdating_channels: [slack]\n")

	var out, errOut bytes.Buffer
	if code := run([]string{"cardkit", "policy", "lint", path}, &out, &errOut); code != 0 {
		t.Fatalf("expected 0, got %d stderr=%s", code, errOut.String())
	}
	if !strings.Contains(out.String(), "ok version=v7 policy_hash=sha256:") {
		t.Fatalf("unexpected lint output: %s", out.String())
	}

	out.Reset()
	if code := run([]string{"cardkit", "policy", "show"}, &out, &errOut); code != 0 {
		t.Fatalf("expected 0, got %d", code)
	}
	if !strings.Contains(out.String(), `"updating_channels"`) {
		t.Fatalf("unexpected show output: %s", out.String())
	}

	bad := writeTemp(t, "bad.yaml", "updating:\n  tracking: sometimes\n")
	if code := run([]string{"cardkit", "policy", "lint", bad}, &out, &errOut); code != 1 {
		t.Fatalf("expected 1 for invalid policy, got %d", code)
	}
	if code := run([]string{"cardkit", "policy", "lint"}, &out, &errOut); code != 2 {
		t.Fatalf("expected 2 without a path, got %d", code)
	}
}

func TestRecordShow(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer tok" {
			t.Errorf("unexpected auth header: %q", got)
		}
		switch r.URL.Path {
		case "/v1/conversations/slack/C1":
			_, _ = w.Write([]byte(`{"revision":4,"live":{"action":["a1","a2"]}}`))
		case "/v1/conversations/slack/C1/messages":
			_, _ = w.Write([]byte(`{"messages":[{"id":"2.0","digest":"d","ids":[{"scope":"action","value":"a2"}]},{"id":"1.0","digest":"d"}]}`))
		default:
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error":{"message":"Not Found","code":"not_found"}}`))
		}
	}))
	defer srv.Close()

	var out, errOut bytes.Buffer
	code := run([]string{"cardkit", "record", "show", "--addr", srv.URL, "--token", "tok", "slack", "C1"}, &out, &errOut)
	if code != 0 {
		t.Fatalf("expected 0, got %d stderr=%s", code, errOut.String())
	}
	want := "revision=4 messages=0\nlive action=a1\nlive action=a2\n"
	if out.String() != want {
		t.Fatalf("unexpected output:\n%s", out.String())
	}

	out.Reset()
	code = run([]string{"cardkit", "record", "messages", "--addr", srv.URL, "--token", "tok", "slack", "C1"}, &out, &errOut)
	if code != 0 {
		t.Fatalf("expected 0, got %d stderr=%s", code, errOut.String())
	}
	if out.String() != "1.0 ids=\n2.0 ids=action:a2\n" {
		t.Fatalf("unexpected output:\n%s", out.String())
	}

	errOut.Reset()
	code = run([]string{"cardkit", "record", "show", "--addr", srv.URL, "--token", "tok", "slack", "missing"}, &out, &errOut)
	if code != 1 {
		t.Fatalf("expected 1, got %d", code)
	}
	if !strings.Contains(errOut.String(), "404") {
		t.Fatalf("expected status in error, got %s", errOut.String())
	}
}

func TestEnvOrDefault(t *testing.T) {
	t.Setenv("CARDKIT_TEST_ENV", "x")
	if got := envOrDefault("CARDKIT_TEST_ENV", "y"); got != "x" {
		t.Fatalf("expected x, got %s", got)
	}
	if got := envOrDefault("CARDKIT_MISSING_ENV", "y"); got != "y" {
		t.Fatalf("expected y, got %s", got)
	}
}

func TestMainCallsExit(t *testing.T) {
	oldExit := exitFn
	oldArgs := os.Args
	defer func() {
		exitFn = oldExit
		os.Args = oldArgs
	}()

	var got int
	exitFn = func(code int) { got = code }
	os.Args = []string{"cardkit"}
	main()

	if got != 2 {
		t.Fatalf("expected exit code 2, got %d", got)
	}
}

func TestRecordPackThenVerify(t *testing.T) {
	files, err := pack.BuildFiles(pack.Input{
		Conversation: types.ConversationRef{ChannelID: "slack", ConversationID: "C1"},
		Record:       tracking.Record{Revision: 2},
		Policy:       policy.Default(),
	})
	if err != nil {
		t.Fatalf("build pack: %v", err)
	}
	var zipped bytes.Buffer
	if err := pack.WriteZip(&zipped, files); err != nil {
		t.Fatalf("zip: %v", err)
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/conversations/slack/C1/pack" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/zip")
		_, _ = w.Write(zipped.Bytes())
	}))
	defer srv.Close()

	outPath := filepath.Join(t.TempDir(), "out", "pack.zip")
	var out, errOut bytes.Buffer
	code := run([]string{"cardkit", "record", "pack", "--addr", srv.URL, "--out", outPath, "slack", "C1"}, &out, &errOut)
	if code != 0 {
		t.Fatalf("expected 0, got %d stderr=%s", code, errOut.String())
	}

	out.Reset()
	code = run([]string{"cardkit", "pack", "verify", outPath}, &out, &errOut)
	if code != 0 {
		t.Fatalf("expected 0, got %d stderr=%s", code, errOut.String())
	}
	if !strings.Contains(out.String(), "valid=true conversation=slack/C1 revision=2") {
		t.Fatalf("unexpected verify output: %s", out.String())
	}

	corrupt := writeTemp(t, "corrupt.zip", "not a zip")
	if code := run([]string{"cardkit", "pack", "verify", corrupt}, &out, &errOut); code != 1 {
		t.Fatalf("expected 1 for a corrupt pack, got %d", code)
	}
}

package pack

import (
	"archive/zip"
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/davidahmann/cardkit/internal/dataid"
	"github.com/davidahmann/cardkit/internal/policy"
	"github.com/davidahmann/cardkit/internal/tracking"
	"github.com/davidahmann/cardkit/pkg/types"
)

// Schema versions the manifest layout.
const Schema = "cardkit.pack.v1"

const checksumsFile = "sha256sums.txt"

var ErrChecksum = errors.New("pack: checksum mismatch")

// Input is everything exported for one conversation.
type Input struct {
	Conversation types.ConversationRef
	Record       tracking.Record
	Policy       policy.Config
	CreatedAt    time.Time
}

type File struct {
	Name      string `json:"name"`
	SHA256    string `json:"sha256"`
	SizeBytes int64  `json:"size_bytes"`
}

type Manifest struct {
	Schema       string                `json:"schema"`
	CreatedAt    string                `json:"created_at"`
	Conversation types.ConversationRef `json:"conversation"`
	Revision     int64                 `json:"revision"`
	PolicyHash   string                `json:"policy_hash"`
	Files        []File                `json:"files"`
}

// Summary counts what the record holds, per scope.
type Summary struct {
	LiveIDs        map[dataid.Scope]int `json:"live_ids"`
	SavedMessages  int                  `json:"saved_messages"`
	TaggedMessages int                  `json:"tagged_messages"`
}

func BuildZip(in Input) ([]byte, error) {
	files, err := BuildFiles(in)
	if err != nil {
		return nil, err
	}
	buf := bytes.NewBuffer(nil)
	if err := WriteZip(buf, files); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// BuildFiles renders the pack contents. Every file except the checksum list
// is listed in the manifest and the checksum list.
func BuildFiles(in Input) (map[string][]byte, error) {
	policyHash, err := in.Policy.Hash()
	if err != nil {
		return nil, fmt.Errorf("hash policy: %w", err)
	}
	messages := in.Record.Messages
	if messages == nil {
		messages = []tracking.SavedMessage{}
	}

	files := make(map[string][]byte)
	for name, v := range map[string]any{
		"record.json":   in.Record,
		"messages.json": messages,
		"policy.json":   in.Policy,
		"summary.json":  summarize(in.Record),
	} {
		if files[name], err = indentJSON(v); err != nil {
			return nil, fmt.Errorf("encode %s: %w", name, err)
		}
	}

	createdAt := in.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	manifest := Manifest{
		Schema:       Schema,
		CreatedAt:    createdAt.UTC().Format(time.RFC3339),
		Conversation: in.Conversation,
		Revision:     in.Record.Revision,
		PolicyHash:   policyHash,
		Files:        buildFileEntries(files),
	}
	if files["manifest.json"], err = indentJSON(manifest); err != nil {
		return nil, err
	}
	files[checksumsFile] = buildChecksums(files)
	return files, nil
}

func summarize(rec tracking.Record) Summary {
	s := Summary{LiveIDs: make(map[dataid.Scope]int), SavedMessages: len(rec.Messages)}
	live := rec.LiveIDs()
	for _, scope := range dataid.Scopes() {
		if n := len(live.Values(scope)); n > 0 {
			s.LiveIDs[scope] = n
		}
	}
	for _, m := range rec.Messages {
		if len(m.IDs) > 0 {
			s.TaggedMessages++
		}
	}
	return s
}

func indentJSON(v any) ([]byte, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(out, '\n'), nil
}

func digest(data []byte) string {
	sum := sha256.Sum256(data)
	return "sha256:" + hex.EncodeToString(sum[:])
}

func sortedNames(files map[string][]byte) []string {
	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func buildFileEntries(files map[string][]byte) []File {
	names := sortedNames(files)
	entries := make([]File, 0, len(names))
	for _, name := range names {
		entries = append(entries, File{
			Name:      name,
			SHA256:    digest(files[name]),
			SizeBytes: int64(len(files[name])),
		})
	}
	return entries
}

func buildChecksums(files map[string][]byte) []byte {
	var buf bytes.Buffer
	for _, name := range sortedNames(files) {
		if name == checksumsFile {
			continue
		}
		_, _ = fmt.Fprintf(&buf, "%s  %s\n", digest(files[name]), name)
	}
	return buf.Bytes()
}

func WriteZip(w io.Writer, files map[string][]byte) error {
	writer := zip.NewWriter(w)
	for _, name := range sortedNames(files) {
		entry, err := writer.Create(name)
		if err != nil {
			_ = writer.Close()
			return err
		}
		if _, err := entry.Write(files[name]); err != nil {
			_ = writer.Close()
			return err
		}
	}
	return writer.Close()
}

func ReadZip(data []byte) (map[string][]byte, error) {
	reader, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open pack: %w", err)
	}
	files := make(map[string][]byte, len(reader.File))
	for _, f := range reader.File {
		rc, err := f.Open()
		if err != nil {
			return nil, err
		}
		body, err := io.ReadAll(rc)
		_ = rc.Close()
		if err != nil {
			return nil, err
		}
		files[f.Name] = body
	}
	return files, nil
}

// Verify checks every line of the checksum list and that the list covers
// every other file in the pack. It returns the decoded manifest.
func Verify(files map[string][]byte) (Manifest, error) {
	sums, ok := files[checksumsFile]
	if !ok {
		return Manifest{}, fmt.Errorf("pack: %s missing", checksumsFile)
	}
	seen := make(map[string]bool)
	for _, line := range strings.Split(strings.TrimSpace(string(sums)), "\n") {
		want, name, ok := strings.Cut(line, "  ")
		if !ok {
			return Manifest{}, fmt.Errorf("pack: malformed checksum line %q", line)
		}
		body, ok := files[name]
		if !ok {
			return Manifest{}, fmt.Errorf("pack: %s listed but missing", name)
		}
		if digest(body) != want {
			return Manifest{}, fmt.Errorf("%w: %s", ErrChecksum, name)
		}
		seen[name] = true
	}
	for name := range files {
		if name != checksumsFile && !seen[name] {
			return Manifest{}, fmt.Errorf("pack: %s not covered by %s", name, checksumsFile)
		}
	}

	var manifest Manifest
	if err := json.Unmarshal(files["manifest.json"], &manifest); err != nil {
		return Manifest{}, fmt.Errorf("pack: manifest: %w", err)
	}
	if manifest.Schema != Schema {
		return Manifest{}, fmt.Errorf("pack: unsupported schema %q", manifest.Schema)
	}
	return manifest, nil
}

package cmd_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	cmd "github.com/rohmanhakim/pyq-crawler/internal/cli"
)

const physicsID = "615f0c729476412f48314dab"

type fakeBank struct {
	mu       sync.Mutex
	calls    map[string]int
	chapters map[string][]map[string]any
	details  map[string][]string
	texts    map[string]string
	years    map[string]string
	token    string
}

func newFakeBank() *fakeBank {
	return &fakeBank{
		calls:    make(map[string]int),
		chapters: make(map[string][]map[string]any),
		details:  make(map[string][]string),
		texts:    make(map[string]string),
		years:    make(map[string]string),
	}
}

func (b *fakeBank) addChapter(subjectID, chapterID, title string, questions map[string]string, order ...string) {
	b.chapters[subjectID] = append(b.chapters[subjectID], map[string]any{
		"_id":       chapterID,
		"title":     title,
		"questions": order,
	})
	b.details[chapterID] = order
	for id, text := range questions {
		b.texts[id] = text
	}
}

func (b *fakeBank) callsFor(path string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls[path]
}

func (b *fakeBank) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	b.calls[r.URL.Path]++
	b.token = r.Header.Get("Authorization")
	b.mu.Unlock()

	segments := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	var payload any
	switch {
	case r.Method == http.MethodGet && len(segments) == 6 && segments[3] == "subjects" && segments[5] == "chapters":
		payload = map[string]any{"data": b.chapters[segments[4]]}
	case r.Method == http.MethodGet && len(segments) == 6 && segments[3] == "chapters" && segments[5] == "details":
		ids, ok := b.details[segments[4]]
		if !ok {
			http.NotFound(w, r)
			return
		}
		payload = map[string]any{"data": map[string]any{"questions": ids}}
	case r.Method == http.MethodPost && len(segments) == 4 && segments[2] == "questions":
		id := segments[3]
		text, ok := b.texts[id]
		if !ok {
			http.NotFound(w, r)
			return
		}
		data := map[string]any{"_id": id, "question": map[string]string{"text": text}}
		if year, ok := b.years[id]; ok {
			data["previousYearPapers"] = []map[string]string{{"title": year}}
		}
		payload = map[string]any{"data": data}
	default:
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(payload)
}

// physicsBank serves one Physics chapter with two questions, one of them
// mentioning "force".
func physicsBank() *fakeBank {
	bank := newFakeBank()
	bank.addChapter(physicsID, "c1", "Laws of Motion", map[string]string{
		"q1": "<p>Find the net <b>Force</b> on the block</p>",
		"q2": "<p>Speed of light in vacuum</p>",
	}, "q1", "q2")
	bank.years["q1"] = "JEE Main 2021 (26 Feb Shift 1)"
	return bank
}

type cliEnv struct {
	dir        string
	configFile string
	cacheFile  string
	outputDir  string
}

func newCLIEnv(t *testing.T, server *httptest.Server) cliEnv {
	t.Helper()
	cmd.ResetFlags()
	t.Cleanup(cmd.ResetFlags)

	dir := t.TempDir()
	env := cliEnv{
		dir:        dir,
		configFile: filepath.Join(dir, "pyq.yaml"),
		cacheFile:  filepath.Join(dir, "cache", "cache.json"),
		outputDir:  filepath.Join(dir, "outputs"),
	}

	serverURL := "http://127.0.0.1:1"
	if server != nil {
		serverURL = server.URL
	}
	content := fmt.Sprintf(`apiBaseUrl: %s/api/v3/cpyqb
questionsBaseUrl: %s/api/v2
apiToken: test-token
cacheFile: %s
outputDir: %s
logLevel: error
`, serverURL, serverURL, env.cacheFile, env.outputDir)
	if err := os.WriteFile(env.configFile, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return env
}

func run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	err := cmd.ExecuteArgs(context.Background(), args, &out, &errOut)
	return out.String(), errOut.String(), err
}

func writeCache(t *testing.T, path string, entries map[string]any) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	raw, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		t.Fatalf("marshal cache: %v", err)
	}
	if err := os.WriteFile(path, raw, 0644); err != nil {
		t.Fatalf("write cache: %v", err)
	}
}

func readCache(t *testing.T, path string) map[string]json.RawMessage {
	t.Helper()
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read cache: %v", err)
	}
	var entries map[string]json.RawMessage
	if err := json.Unmarshal(raw, &entries); err != nil {
		t.Fatalf("decode cache: %v", err)
	}
	return entries
}

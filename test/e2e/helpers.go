//go:build e2e

package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/cloo-solutions/askme/internal/testutil"
)

const stateBucket = "askme-e2e"

// E2ETestEnv holds all resources needed for E2E tests
type E2ETestEnv struct {
	T          *testing.T
	Ctx        context.Context
	RustFSC    *testutil.RustFSContainer
	OpenAI     *FakeOpenAI
	openAISrv  *httptest.Server
	CorpusDir  string
	BinaryDir  string
	ServerURL  string
	server     *exec.Cmd
	serverLog  *bytes.Buffer
	HTTPClient *http.Client
}

// SetupE2EEnv starts the object store and the fake model provider and builds
// the binaries. The server is started separately so tests can seed the corpus.
func SetupE2EEnv(t *testing.T) *E2ETestEnv {
	ctx := context.Background()

	s3C := testutil.NewRustFSContainer(ctx, t)

	fake := NewFakeOpenAI()
	srv := httptest.NewServer(fake)

	env := &E2ETestEnv{
		T:          t,
		Ctx:        ctx,
		RustFSC:    s3C,
		OpenAI:     fake,
		openAISrv:  srv,
		CorpusDir:  t.TempDir(),
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	}
	env.BuildBinaries()
	return env
}

// Cleanup releases all resources
func (e *E2ETestEnv) Cleanup() {
	e.StopServer()
	if e.openAISrv != nil {
		e.openAISrv.Close()
	}
	if e.RustFSC != nil {
		e.RustFSC.Terminate(e.Ctx)
	}
	if e.BinaryDir != "" {
		os.RemoveAll(e.BinaryDir)
	}
}

// BuildBinaries builds the askme and askmed binaries
func (e *E2ETestEnv) BuildBinaries() {
	tmpDir, err := os.MkdirTemp("", "askme-e2e-*")
	if err != nil {
		e.T.Fatalf("failed to create temp dir: %v", err)
	}
	e.BinaryDir = tmpDir

	for _, name := range []string{"askmed", "askme"} {
		cmd := exec.Command("go", "build", "-o", filepath.Join(tmpDir, name), "./cmd/"+name)
		cmd.Dir = "../.."
		if out, err := cmd.CombinedOutput(); err != nil {
			e.T.Fatalf("failed to build %s: %v\n%s", name, err, out)
		}
	}
}

func (e *E2ETestEnv) env() []string {
	env := append(os.Environ(), e.RustFSC.Env(stateBucket)...)
	return append(env,
		"ASKME_OPENAI_API_KEY=e2e-key",
		"ASKME_OPENAI_BASE_URL="+e.openAISrv.URL+"/v1",
		"ASKME_CORPUS_DIR="+e.CorpusDir,
		"ASKME_TRANSCRIBE_PROVIDER=",
		"ASKME_SENTRY_DSN=",
		"ASKME_MAX_UPLOAD_BYTES=65536",
	)
}

// StartServer runs askmed serve and waits for /health
func (e *E2ETestEnv) StartServer() {
	port, err := getFreePort()
	if err != nil {
		e.T.Fatalf("failed to get free port: %v", err)
	}

	e.serverLog = &bytes.Buffer{}
	cmd := exec.Command(filepath.Join(e.BinaryDir, "askmed"), "serve", "--port", fmt.Sprint(port))
	cmd.Env = e.env()
	cmd.Stdout = e.serverLog
	cmd.Stderr = e.serverLog
	if err := cmd.Start(); err != nil {
		e.T.Fatalf("failed to start askmed: %v", err)
	}
	e.server = cmd
	e.ServerURL = fmt.Sprintf("http://localhost:%d", port)

	waitForServer(e.T, e.ServerURL, 30*time.Second, e.serverLog)
}

// StopServer interrupts askmed and waits for a clean exit
func (e *E2ETestEnv) StopServer() {
	if e.server == nil {
		return
	}
	_ = e.server.Process.Signal(os.Interrupt)
	done := make(chan error, 1)
	go func() { done <- e.server.Wait() }()
	select {
	case <-done:
	case <-time.After(15 * time.Second):
		_ = e.server.Process.Kill()
		<-done
	}
	e.server = nil
}

// WriteSource places a file in the corpus directory
func (e *E2ETestEnv) WriteSource(name, content string) {
	if err := os.WriteFile(filepath.Join(e.CorpusDir, name), []byte(content), 0o644); err != nil {
		e.T.Fatalf("failed to write %s: %v", name, err)
	}
}

// RunAskme runs the askme CLI against the running server
func (e *E2ETestEnv) RunAskme(args ...string) (string, error) {
	cmd := exec.Command(filepath.Join(e.BinaryDir, "askme"), args...)
	cmd.Dir = e.T.TempDir()
	cmd.Env = append(os.Environ(), "ASKME_API_URL="+e.ServerURL)
	out, err := cmd.CombinedOutput()
	return string(out), err
}

// APIResponse represents a standard API response
type APIResponse struct {
	Status int
	Data   json.RawMessage `json:"data"`
	Error  string          `json:"error,omitempty"`
	Code   string          `json:"code,omitempty"`
}

// Get performs a GET request
func (e *E2ETestEnv) Get(path string) (*APIResponse, error) {
	return e.doRequest("GET", path, nil)
}

// Post performs a POST request
func (e *E2ETestEnv) Post(path string, body interface{}) (*APIResponse, error) {
	return e.doRequest("POST", path, body)
}

func (e *E2ETestEnv) doRequest(method, path string, body interface{}) (*APIResponse, error) {
	var reqBody io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal body: %w", err)
		}
		reqBody = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequest(method, e.ServerURL+path, reqBody)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	return e.send(req)
}

// Upload posts content as a multipart file named name
func (e *E2ETestEnv) Upload(name string, content []byte) (*APIResponse, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", name)
	if err != nil {
		return nil, err
	}
	if _, err := part.Write(content); err != nil {
		return nil, err
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequest("POST", e.ServerURL+"/files", &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	return e.send(req)
}

// send returns the decoded envelope for every status so tests can assert on
// error codes. Only transport failures are errors.
func (e *E2ETestEnv) send(req *http.Request) (*APIResponse, error) {
	resp, err := e.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	apiResp := &APIResponse{Status: resp.StatusCode}
	if err := json.Unmarshal(respBody, apiResp); err != nil {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(respBody))
	}
	return apiResp, nil
}

func waitForServer(t *testing.T, url string, timeout time.Duration, serverLog *bytes.Buffer) {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		resp, err := http.Get(url + "/health")
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return
			}
		}
		time.Sleep(100 * time.Millisecond)
	}
	t.Fatalf("server did not start within %v\n%s", timeout, serverLog.String())
}

func getFreePort() (int, error) {
	addr, err := net.ResolveTCPAddr("tcp", "localhost:0")
	if err != nil {
		return 0, err
	}

	l, err := net.ListenTCP("tcp", addr)
	if err != nil {
		return 0, err
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port, nil
}

// FakeOpenAI serves embeddings and chat completions. Vectors place texts
// about sailing, food and everything else on separate axes.
type FakeOpenAI struct {
	mu       sync.Mutex
	embedded []string
	chats    int
}

func NewFakeOpenAI() *FakeOpenAI {
	return &FakeOpenAI{}
}

// Embedded returns every text sent for embedding so far
func (f *FakeOpenAI) Embedded() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.embedded...)
}

func keywordVector(text string) []float32 {
	t := strings.ToLower(text)
	v := []float32{0.05, 0.05, 0.05}
	switch {
	case strings.Contains(t, "sail") || strings.Contains(t, "boat"):
		v[0] = 1
	case strings.Contains(t, "pizza") || strings.Contains(t, "food"):
		v[1] = 1
	default:
		v[2] = 1
	}
	return v
}

func (f *FakeOpenAI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	switch {
	case strings.HasSuffix(r.URL.Path, "/embeddings"):
		var req struct {
			Input []string `json:"input"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		f.mu.Lock()
		f.embedded = append(f.embedded, req.Input...)
		f.mu.Unlock()

		data := make([]map[string]interface{}, len(req.Input))
		for i, text := range req.Input {
			data[i] = map[string]interface{}{"object": "embedding", "index": i, "embedding": keywordVector(text)}
		}
		json.NewEncoder(w).Encode(map[string]interface{}{"object": "list", "data": data, "model": "fake"})

	case strings.HasSuffix(r.URL.Path, "/chat/completions"):
		var req struct {
			Messages []struct {
				Content string `json:"content"`
			} `json:"messages"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		f.mu.Lock()
		f.chats++
		f.mu.Unlock()

		reply := "I spend my weekends sailing."
		if len(req.Messages) > 0 && strings.Contains(req.Messages[0].Content, "JSON list of questions") {
			reply = `["What was your first boat?", "Favorite pizza topping?"]`
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"id":      "chatcmpl-e2e",
			"object":  "chat.completion",
			"choices": []map[string]interface{}{{"index": 0, "message": map[string]string{"role": "assistant", "content": reply}, "finish_reason": "stop"}},
		})

	default:
		http.NotFound(w, r)
	}
}

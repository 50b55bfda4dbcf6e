package debug

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// withState enables debug output into a buffer for one test
func withState(t *testing.T) *bytes.Buffer {
	t.Helper()
	originalDebug, originalMode := EnableDebug, MCPMode
	originalOutput, originalFile := debugOutput, debugFile
	t.Cleanup(func() {
		EnableDebug, MCPMode = originalDebug, originalMode
		debugOutput, debugFile = originalOutput, originalFile
	})
	t.Setenv("RUBYIDX_DEBUG", "")
	t.Setenv("DEBUG", "")

	var buf bytes.Buffer
	EnableDebug = "true"
	MCPMode = false
	SetDebugOutput(&buf)
	return &buf
}

func TestIsDebugEnabled(t *testing.T) {
	withState(t)

	EnableDebug = "false"
	assert.False(t, IsDebugEnabled())

	t.Setenv("RUBYIDX_DEBUG", "1")
	assert.True(t, IsDebugEnabled())

	SetMCPMode(true)
	assert.False(t, IsDebugEnabled(), "MCP mode silences debug output")
}

func TestLog(t *testing.T) {
	buf := withState(t)

	LogIndexing("reindexed %s", "a.rb")
	LogSearch("resolved %d entries\n", 2)
	LogMCP("tool %s", "ancestors")
	LogLSP("uri %s", "file:///a.rb")

	assert.Equal(t,
		"[DEBUG:INDEX] reindexed a.rb\n"+
			"[DEBUG:SEARCH] resolved 2 entries\n"+
			"[DEBUG:MCP] tool ancestors\n"+
			"[DEBUG:LSP] uri file:///a.rb\n",
		buf.String())
}

func TestLog_Disabled(t *testing.T) {
	buf := withState(t)

	EnableDebug = "false"
	LogIndexing("hidden")
	Printf("hidden")
	assert.Empty(t, buf.String())

	EnableDebug = "true"
	SetMCPMode(true)
	LogIndexing("hidden")
	assert.Empty(t, buf.String())
}

func TestLog_NilWriter(t *testing.T) {
	withState(t)
	SetDebugOutput(nil)
	assert.NotPanics(t, func() {
		Log("INDEX", "nothing configured")
		Printf("nothing configured")
	})
}

func TestConcurrentLogging(t *testing.T) {
	buf := withState(t)
	var mu sync.Mutex
	SetDebugOutput(writerFunc(func(p []byte) (int, error) {
		mu.Lock()
		defer mu.Unlock()
		return buf.Write(p)
	}))

	var wg sync.WaitGroup
	for i := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			LogIndexing("worker %d", i)
		}()
	}
	wg.Wait()
	assert.Equal(t, 8, strings.Count(buf.String(), "[DEBUG:INDEX]"))
}

func TestInitDebugLogFile(t *testing.T) {
	withState(t)

	path, err := InitDebugLogFile()
	require.NoError(t, err)
	t.Cleanup(func() { _ = os.Remove(path) })
	assert.Equal(t, LogDir(), filepath.Dir(path))

	LogIndexing("to file")
	require.NoError(t, CloseDebugLog())
	require.NoError(t, CloseDebugLog())

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "[DEBUG:INDEX] to file\n", string(content))
}

type writerFunc func([]byte) (int, error)

func (f writerFunc) Write(p []byte) (int, error) { return f(p) }

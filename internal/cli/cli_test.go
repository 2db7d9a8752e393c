package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	gferrors "github.com/vnykmshr/settle/pkg/common/errors"
)

func execute(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	err := Execute(append([]string{"settle"}, args...), strings.NewReader(stdin), &stdout, &stderr,
		BuildArgs{Version: "1.2.3", Commit: "abc123", Date: "2026-01-01"})
	return stdout.String(), stderr.String(), err
}

func invokedLines(out string) []string {
	var lines []string
	for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		lines = append(lines, fields[len(fields)-1])
	}
	return lines
}

func TestRunDebounce(t *testing.T) {
	out, stderr, err := execute(t, "a\nb\nc\n", "run", "--mode", "debounce", "--wait", "200ms")
	require.NoError(t, err, stderr)

	assert.Equal(t, []string{"c"}, invokedLines(out))
	assert.True(t, strings.HasPrefix(out, "+"), out)
	assert.Contains(t, stderr, "settled")
	assert.Contains(t, stderr, "events=3")
	assert.Contains(t, stderr, "invocations=1")
}

func TestRunDebounceLeading(t *testing.T) {
	out, stderr, err := execute(t, "a\nb\nc\n", "run", "--wait", "200ms", "--leading")
	require.NoError(t, err, stderr)

	assert.Equal(t, []string{"a", "c"}, invokedLines(out))
}

func TestRunDebounceNoTrailing(t *testing.T) {
	out, stderr, err := execute(t, "a\nb\nc\n", "run", "--wait", "200ms", "--leading", "--trailing=false")
	require.NoError(t, err, stderr)

	assert.Equal(t, []string{"a"}, invokedLines(out))
}

func TestRunThrottle(t *testing.T) {
	out, stderr, err := execute(t, "a\nb\nc\n", "run", "--mode", "throttle", "--wait", "200ms")
	require.NoError(t, err, stderr)

	assert.Equal(t, []string{"a", "c"}, invokedLines(out))
}

func TestRunEmptyInput(t *testing.T) {
	out, stderr, err := execute(t, "", "run", "--wait", "50ms")
	require.NoError(t, err, stderr)

	assert.Empty(t, out)
	assert.Contains(t, stderr, "events=0")
}

func TestRunInvalidPolicy(t *testing.T) {
	_, _, err := execute(t, "a\n", "run", "--mode", "bogus")
	require.Error(t, err)
	assert.True(t, gferrors.IsValidationError(err), "got %v", err)

	_, _, err = execute(t, "a\n", "run", "--wait", "200ms", "--max-wait", "100ms")
	require.Error(t, err)
	assert.True(t, gferrors.IsValidationError(err), "got %v", err)
}

func TestRunNamedPolicy(t *testing.T) {
	path := writeConfig(t)

	out, stderr, err := execute(t, "x\ny\n", "run", "--config", path, "--policy", "scroll")
	require.NoError(t, err, stderr)
	assert.Equal(t, []string{"x"}, invokedLines(out), "leading-only throttle drops y")

	_, _, err = execute(t, "x\n", "run", "--config", path, "--policy", "missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expected one of")
}

func TestRunServesMetrics(t *testing.T) {
	_, stderr, err := execute(t, "a\n", "run", "--wait", "20ms", "--metrics-listen", "127.0.0.1:0")
	require.NoError(t, err, stderr)

	assert.Contains(t, stderr, "serving metrics")
	assert.Contains(t, stderr, "path=/metrics")
}

func TestValidate(t *testing.T) {
	path := writeConfig(t)

	out, stderr, err := execute(t, "", "validate", "--config", path)
	require.NoError(t, err, stderr)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 4)
	assert.True(t, strings.HasPrefix(lines[0], "POLICY"), lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "scroll"), lines[1])
	assert.True(t, strings.HasPrefix(lines[2], "search"), lines[2])
	assert.Contains(t, lines[2], "1s")
	assert.Contains(t, lines[3], "ok (2 policies)")
}

func TestValidateErrors(t *testing.T) {
	_, _, err := execute(t, "", "validate")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--config")

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("policies:\n  p:\n    mode: sometimes\n    wait: 1s\n"), 0o600))
	_, _, err = execute(t, "", "validate", "--config", path)
	require.Error(t, err)
	assert.True(t, gferrors.IsValidationError(err), "got %v", err)
}

func TestVersion(t *testing.T) {
	out, _, err := execute(t, "", "version")
	require.NoError(t, err)
	assert.Contains(t, out, "settle 1.2.3")
	assert.Contains(t, out, "abc123")
}

func writeConfig(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "settle.yaml")
	data := `policies:
  search:
    mode: debounce
    wait: 300ms
    max_wait: 1s
  scroll:
    mode: throttle
    wait: 50ms
    trailing: false
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o600))
	return path
}

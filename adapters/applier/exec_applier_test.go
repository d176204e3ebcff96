package applier

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jetfakes/internal"
	"jetfakes/internal/errors"
	"jetfakes/ports"
)

// fakeBinary writes a script that records its arguments and produces the
// applier's output file in the -i directory.
func fakeBinary(t *testing.T, exitCode int) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "create-fakes")
	script := `#!/bin/sh
echo "$@" > "` + filepath.Join(dir, "args") + `"
echo "processing"
touch "$2/jetFakes.db"
exit ` + strconv.Itoa(exitCode) + `
`
	require.NoError(t, os.WriteFile(path, []byte(script), 0o755))
	return path
}

func TestArgs(t *testing.T) {
	req := ports.ApplyRequest{
		InputTableDir:     "tmp/v1",
		FractionStorePath: "Output/fake_fractions/mt2017_v1.db",
		FakeFactorPath:    "/data/ff",
		ChannelPrefix:     "mt",
	}
	assert.Equal(t, "-i tmp/v1 -p Output/fake_fractions/mt2017_v1.db -f /data/ff -c mt", strings.Join(Args(req), " "))

	req.IncludeSystematics = true
	assert.Equal(t, "-s", Args(req)[len(Args(req))-1])
}

func TestApplyAndMove(t *testing.T) {
	bin := fakeBinary(t, 0)
	staging := t.TempDir()
	input := t.TempDir()

	req := ports.ApplyRequest{InputTableDir: staging, FractionStorePath: "f.db", FakeFactorPath: "ff", ChannelPrefix: "et", IncludeSystematics: true}
	require.NoError(t, NewExecApplier(bin, nil).Apply(context.Background(), req))

	args, err := os.ReadFile(filepath.Join(filepath.Dir(bin), "args"))
	require.NoError(t, err)
	assert.Equal(t, strings.Join(Args(req), " ")+"\n", string(args))

	dst, err := MoveOutput(staging, input)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(input, OutputFile), dst)
	assert.FileExists(t, dst)
	assert.NoFileExists(t, filepath.Join(staging, OutputFile))
}

func TestApplyFailure(t *testing.T) {
	bin := fakeBinary(t, 3)
	err := NewExecApplier(bin, nil).Apply(context.Background(), ports.ApplyRequest{InputTableDir: t.TempDir()})
	require.Error(t, err)
	assert.Equal(t, errors.CodeExternalService, errors.GetCode(err))
}

func TestApplyMissingBinary(t *testing.T) {
	err := NewExecApplier(filepath.Join(t.TempDir(), "nope"), nil).Apply(context.Background(), ports.ApplyRequest{})
	assert.Error(t, err)
}

func TestMoveOutputWithoutOutput(t *testing.T) {
	_, err := MoveOutput(t.TempDir(), t.TempDir())
	assert.Error(t, err)
}

// chattyBinary prints one line of lineLen bytes to stdout, then a trailer.
func chattyBinary(t *testing.T, lineLen int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "create-fakes")
	script := `#!/bin/sh
head -c ` + strconv.Itoa(lineLen) + ` /dev/zero | tr '\0' 'x'
echo
echo "trailer"
exit 0
`
	require.NoError(t, os.WriteFile(path, []byte(script), 0o755))
	return path
}

func applyWithin(t *testing.T, a *ExecApplier, d time.Duration) error {
	t.Helper()
	done := make(chan error, 1)
	go func() { done <- a.Apply(context.Background(), ports.ApplyRequest{InputTableDir: t.TempDir()}) }()
	select {
	case err := <-done:
		return err
	case <-time.After(d):
		t.Fatal("Apply did not return: applier output was not drained")
		return nil
	}
}

func TestApplyRelaysLongLines(t *testing.T) {
	var buf bytes.Buffer
	a := NewExecApplier(chattyBinary(t, 200000), internal.NewLoggerTo(internal.LogLevelDebug, &buf))

	require.NoError(t, applyWithin(t, a, 10*time.Second))
	assert.Contains(t, buf.String(), strings.Repeat("x", 200000))
	assert.Contains(t, buf.String(), "trailer")
}

func TestApplyDrainsOversizedOutput(t *testing.T) {
	var buf bytes.Buffer
	a := NewExecApplier(chattyBinary(t, 4*maxLine), internal.NewLoggerTo(internal.LogLevelDebug, &buf))

	require.NoError(t, applyWithin(t, a, 10*time.Second))
	assert.Contains(t, buf.String(), "output relay stopped")
}

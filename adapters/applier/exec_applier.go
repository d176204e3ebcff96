// Package applier runs the external weight-applier binary and moves its
// output into place.
package applier

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"time"

	"jetfakes/internal"
	"jetfakes/internal/errors"
	"jetfakes/ports"
)

// OutputFile is what the applier writes into its input directory
const OutputFile = "jetFakes.db"

// ExecApplier implements ports.WeightApplier with os/exec
type ExecApplier struct {
	binary string
	logger *internal.Logger
}

var _ ports.WeightApplier = (*ExecApplier)(nil)

// NewExecApplier creates an applier for the given binary
func NewExecApplier(binary string, logger *internal.Logger) *ExecApplier {
	if logger == nil {
		logger = internal.NopLogger()
	}
	return &ExecApplier{binary: binary, logger: logger}
}

// Args builds the command line: -i <dir> -p <fractions> -f <fake factors> -c <channel> [-s]
func Args(req ports.ApplyRequest) []string {
	args := []string{
		"-i", req.InputTableDir,
		"-p", req.FractionStorePath,
		"-f", req.FakeFactorPath,
		"-c", req.ChannelPrefix,
	}
	if req.IncludeSystematics {
		args = append(args, "-s")
	}
	return args
}

// Apply runs the binary to completion. The context is only checked before
// the process starts; a running applier is never interrupted.
func (a *ExecApplier) Apply(ctx context.Context, req ports.ApplyRequest) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	args := Args(req)
	cmd := exec.Command(a.binary, args...)
	a.logger.Info("[Applier] %s %v", a.binary, args)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return errors.ExternalServiceError("weight applier", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return errors.ExternalServiceError("weight applier", err)
	}

	start := time.Now()
	if err := cmd.Start(); err != nil {
		return errors.ExternalServiceError("weight applier", err)
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go a.relay(&wg, stdout, a.logger.Debug)
	go a.relay(&wg, stderr, a.logger.Warn)
	wg.Wait()

	if err := cmd.Wait(); err != nil {
		return errors.ExternalServiceError("weight applier", fmt.Errorf("%s: %w", a.binary, err))
	}
	a.logger.Info("[Applier] finished in %v", time.Since(start))
	return nil
}

// maxLine bounds one relayed output line
const maxLine = 1 << 20

// relay logs r line by line and always drains it, so the applier never
// blocks writing to a full pipe.
func (a *ExecApplier) relay(wg *sync.WaitGroup, r io.Reader, logf func(string, ...interface{})) {
	defer wg.Done()
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLine)
	for scanner.Scan() {
		logf("[Applier] %s", scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		a.logger.Warn("[Applier] output relay stopped: %v; discarding the rest", err)
	}
	io.Copy(io.Discard, r)
}

// MoveOutput moves <stagingDir>/jetFakes.db into destDir, copying when a
// rename across file systems is not possible.
func MoveOutput(stagingDir, destDir string) (string, error) {
	src := filepath.Join(stagingDir, OutputFile)
	dst := filepath.Join(destDir, OutputFile)
	if _, err := os.Stat(src); err != nil {
		return "", errors.ExternalServiceError("weight applier", fmt.Errorf("no output at %s: %w", src, err))
	}
	if err := os.Rename(src, dst); err == nil {
		return dst, nil
	}
	if err := copyFile(src, dst); err != nil {
		return "", errors.StorageError(fmt.Sprintf("failed to move %s to %s", src, dst), err)
	}
	if err := os.Remove(src); err != nil {
		return "", errors.StorageError(fmt.Sprintf("failed to remove %s", src), err)
	}
	return dst, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	tmp := dst + ".partial"
	out, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(tmp)
		return err
	}
	if err := out.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, dst)
}

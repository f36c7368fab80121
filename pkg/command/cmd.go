/*
 * Copyright 2026 Hewlett Packard Enterprise Development LP
 * Other additional copyright holders may be indicated within.
 *
 * The entirety of this work is licensed under the Apache License,
 * Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.
 *
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package command

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/go-logr/logr"
)

// TimeoutEnv names the environment variable that sets the default command
// timeout in seconds.
const TimeoutEnv = "NNF_COMMAND_TIMEOUT_SECONDS"

// Runner runs a shell command line and returns its stdout.
type Runner func(ctx context.Context, args string, log logr.Logger) (string, error)

// Error is returned when a command exits unsuccessfully. Stderr is kept so
// callers can classify the failure.
type Error struct {
	Args   string
	Stdout string
	Stderr string
	Err    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("command: %s - stderr: %s - stdout: %s - error: %v", e.Args, strings.TrimSpace(e.Stderr), strings.TrimSpace(e.Stdout), e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Run runs the command with the timeout from NNF_COMMAND_TIMEOUT_SECONDS,
// if set.
func Run(ctx context.Context, args string, log logr.Logger) (string, error) {
	timeout, err := timeoutFromEnv()
	if err != nil {
		return "", err
	}

	return RunWithTimeout(ctx, args, timeout, log)
}

// RunWithTimeout runs the command, giving up after timeout. A zero timeout
// waits for as long as ctx allows.
func RunWithTimeout(ctx context.Context, args string, timeout time.Duration, log logr.Logger) (string, error) {
	if timeout > 0 {
		var cancel context.CancelFunc

		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	var stdout, stderr bytes.Buffer
	shellCmd := exec.CommandContext(ctx, "bash", "-c", args)
	shellCmd.Stdout = &stdout
	shellCmd.Stderr = &stderr
	shellCmd.WaitDelay = time.Second

	log.V(1).Info("Command Run", "command", args)

	if err := shellCmd.Run(); err != nil {
		return stdout.String(), &Error{Args: args, Stdout: stdout.String(), Stderr: stderr.String(), Err: err}
	}

	return stdout.String(), nil
}

// WithTimeout wraps Run with a fixed timeout, overriding the environment.
func WithTimeout(timeout time.Duration) Runner {
	return func(ctx context.Context, args string, log logr.Logger) (string, error) {
		return RunWithTimeout(ctx, args, timeout, log)
	}
}

func timeoutFromEnv() (time.Duration, error) {
	timeoutString, found := os.LookupEnv(TimeoutEnv)
	if !found {
		return 0, nil
	}

	timeout, err := strconv.Atoi(timeoutString)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", TimeoutEnv, err)
	}

	return time.Duration(timeout) * time.Second, nil
}

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

package lvm

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/go-logr/logr"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/NearNodeFlash/nnf-lvm/pkg/command"
	"github.com/NearNodeFlash/nnf-lvm/pkg/var_handler"
)

const tracerName = "github.com/NearNodeFlash/nnf-lvm/pkg/blockdevice/lvm"

var (
	// ErrNotFound is returned when the lvm object is not found.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists is returned when the lvm object already exists.
	ErrAlreadyExists = errors.New("already exists")

	// ErrInUse is returned when the logical volume is busy.
	ErrInUse = errors.New("volume busy")

	// ErrResourceExhausted is returned when the volume group is out of space.
	ErrResourceExhausted = errors.New("insufficient free space")

	// ErrInvalidInput is returned for names lvm would reject, before any
	// command is run.
	ErrInvalidInput = errors.New("invalid input")
)

// LVM object names: letters, digits and "+_.-", not starting with a hyphen.
var nameRegexp = regexp.MustCompile(`^[a-zA-Z0-9+_.][a-zA-Z0-9+_.-]*$`)

// lvm's phrasing for a missing volume group or volume. A shell's
// "command not found" must not match.
var notFoundRegexp = regexp.MustCompile(`(?i)volume group "[^"]*" not found|failed to find (logical volume|volume group|physical volume)`)

// Segment types: lower case letters, digits, "_" and "-", e.g. "thin-pool".
var volumeTypeRegexp = regexp.MustCompile(`^[a-z][a-z0-9_-]*$`)

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithRunner replaces the command runner, e.g. to set a fixed timeout or to
// feed canned output in tests.
func WithRunner(run command.Runner) ClientOption {
	return func(c *Client) {
		c.run = run
	}
}

// WithTracerProvider sets the tracer used for lvm commands.
func WithTracerProvider(tp trace.TracerProvider) ClientOption {
	return func(c *Client) {
		c.tracer = tp.Tracer(tracerName)
	}
}

// Client runs lvm2 commands through a shell.
type Client struct {
	Log logr.Logger

	run    command.Runner
	tracer trace.Tracer
}

// NewClient returns an lvm2 client.
func NewClient(log logr.Logger, opts ...ClientOption) *Client {
	c := &Client{
		Log:    log,
		run:    command.Run,
		tracer: noop.NewTracerProvider().Tracer(tracerName),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// exec expands the command template and runs it, classifying failures.
func (c *Client) exec(ctx context.Context, template string, vars map[string]string) (string, error) {
	args, err := var_handler.NewVarHandler(vars).Expand(template)
	if err != nil {
		return "", err
	}

	ctx, span := c.tracer.Start(ctx, "lvm/"+strings.Fields(args)[0], trace.WithAttributes(
		attribute.String("cmd.args", args),
	))
	defer span.End()

	output, err := c.run(ctx, args, c.Log)
	if err != nil {
		// Let the caller decide whether the failure is fatal.
		span.RecordError(err)
		return output, classify(err)
	}

	span.SetStatus(codes.Ok, "lvm command succeeded")
	return output, nil
}

// classify maps lvm's inconsistent stderr text onto sentinel errors.
//
// Examples:
//  1. Missing VG: `Volume group "vg9" not found`.
//  2. Missing LV: `Failed to find logical volume "vg0/data"`.
//  3. Busy LV: `Logical volume vg0/data contains a filesystem in use.`
//  4. Out of space: `Insufficient free space: 2560 extents needed, but only 10 available`.
func classify(err error) error {
	text := err.Error()

	cmdErr := &command.Error{}
	if errors.As(err, &cmdErr) {
		text = cmdErr.Stderr
	}

	switch {
	case notFoundRegexp.MatchString(text):
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	case containsIgnoreCase(text, "in use"),
		containsIgnoreCase(text, "is open"):
		return fmt.Errorf("%w: %w", ErrInUse, err)
	case containsIgnoreCase(text, "already exists"):
		return fmt.Errorf("%w: %w", ErrAlreadyExists, err)
	case containsIgnoreCase(text, "insufficient free space"),
		containsIgnoreCase(text, "insufficient suitable"):
		return fmt.Errorf("%w: %w", ErrResourceExhausted, err)
	default:
		return err
	}
}

func containsIgnoreCase(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

func validateNames(names ...string) error {
	for _, name := range names {
		if !nameRegexp.MatchString(name) {
			return fmt.Errorf("%w: %q is not a valid lvm name", ErrInvalidInput, name)
		}
	}

	return nil
}

// parseInt reads the numeric strings lvm reports with --units b --nosuffix.
// An empty field reads as zero.
func parseInt(field, value string) (int64, error) {
	if len(value) == 0 {
		return 0, nil
	}

	v, err := strconv.ParseInt(strings.TrimSuffix(value, "B"), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("could not parse %s %q: %w", field, value, err)
	}

	return v, nil
}

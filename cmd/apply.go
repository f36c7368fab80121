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

package main

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/avast/retry-go"
	"github.com/ghodss/yaml"
	ctrl "sigs.k8s.io/controller-runtime"
	zapcr "sigs.k8s.io/controller-runtime/pkg/log/zap"

	nnfv1alpha1 "github.com/NearNodeFlash/nnf-lvm/api/v1alpha1"
	"github.com/NearNodeFlash/nnf-lvm/internal/config"
	"github.com/NearNodeFlash/nnf-lvm/pkg/blockdevice"
	"github.com/NearNodeFlash/nnf-lvm/pkg/engine"
	"github.com/NearNodeFlash/nnf-lvm/pkg/lvspec"
	"github.com/NearNodeFlash/nnf-lvm/pkg/quantity"
)

// fileList collects repeated -f flags.
type fileList []string

func (f *fileList) String() string { return strings.Join(*f, ",") }
func (f *fileList) Set(value string) error {
	*f = append(*f, value)
	return nil
}

type applyOptions struct {
	files      fileList
	configPath string
	mock       bool
	mockVGs    string
	dryRun     bool
	retries    uint
	retryDelay time.Duration
}

var documentSeparator = regexp.MustCompile(`(?m)^---\s*$`)

// loadRecords reads a multi-document manifest. Each document is an
// NnfLogicalVolume, an NnfLogicalVolumeList, or a bare NnfLogicalVolumeSpec.
func loadRecords(data []byte) ([]lvspec.Record, error) {
	records := []lvspec.Record{}

	for i, doc := range documentSeparator.Split(string(data), -1) {
		if len(strings.TrimSpace(doc)) == 0 {
			continue
		}

		typeMeta := struct {
			Kind string `json:"kind"`
		}{}
		if err := yaml.Unmarshal([]byte(doc), &typeMeta); err != nil {
			return nil, fmt.Errorf("document %d: %w", i, err)
		}

		switch typeMeta.Kind {
		case "NnfLogicalVolume":
			lv := nnfv1alpha1.NnfLogicalVolume{}
			if err := yaml.Unmarshal([]byte(doc), &lv); err != nil {
				return nil, fmt.Errorf("document %d: %w", i, err)
			}
			records = append(records, lv.Spec.ToRecord())
		case "NnfLogicalVolumeList":
			list := nnfv1alpha1.NnfLogicalVolumeList{}
			if err := yaml.Unmarshal([]byte(doc), &list); err != nil {
				return nil, fmt.Errorf("document %d: %w", i, err)
			}
			for j := range list.Items {
				records = append(records, list.Items[j].Spec.ToRecord())
			}
		case "":
			spec := nnfv1alpha1.NnfLogicalVolumeSpec{}
			if err := yaml.Unmarshal([]byte(doc), &spec); err != nil {
				return nil, fmt.Errorf("document %d: %w", i, err)
			}
			records = append(records, spec.ToRecord())
		default:
			return nil, fmt.Errorf("document %d: unsupported kind %q", i, typeMeta.Kind)
		}
	}

	return records, nil
}

// parseMockVolumeGroups parses "vg0=100G,vg1=1T" into the mock device.
func parseMockVolumeGroups(mock *blockdevice.MockVolumeManager, value string) error {
	for _, entry := range strings.Split(value, ",") {
		entry = strings.TrimSpace(entry)
		if len(entry) == 0 {
			continue
		}

		name, sizeString, found := strings.Cut(entry, "=")
		if !found {
			return fmt.Errorf("invalid mock volume group %q: expected name=size", entry)
		}

		size, err := quantity.ParseSize(sizeString)
		if err != nil {
			return fmt.Errorf("invalid mock volume group %q: %w", entry, err)
		}

		total, err := size.Bytes()
		if err != nil {
			return fmt.Errorf("invalid mock volume group %q: %w", entry, err)
		}

		mock.AddVolumeGroup(name, total)
	}

	return nil
}

// applyRecords runs the batch, retrying only the records whose pass failed
// because the device layer was unavailable.
func applyRecords(ctx context.Context, batch *engine.Batch, records []lvspec.Record, opts *applyOptions) []engine.Result {
	results := make([]engine.Result, len(records))

	pending := make([]int, len(records))
	for i := range pending {
		pending[i] = i
	}

	_ = retry.Do(
		func() error {
			subset := make([]lvspec.Record, len(pending))
			for i, index := range pending {
				subset[i] = records[index]
			}

			unavailable := []int{}
			for i, result := range batch.Run(ctx, subset) {
				results[pending[i]] = result
				if errors.Is(result.Err(), engine.ErrDeviceLayerUnavailable) {
					unavailable = append(unavailable, pending[i])
				}
			}

			pending = unavailable
			if len(pending) != 0 {
				return engine.ErrDeviceLayerUnavailable
			}
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(opts.retries+1),
		retry.Delay(opts.retryDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			batch.Reconciler.Log.Info("Retrying unavailable volumes", "attempt", n+1, "volumes", len(pending))
		}),
	)

	return results
}

// printResults writes one line per action and reports whether every pass
// succeeded.
func printResults(w io.Writer, results []engine.Result) bool {
	ok := true
	for _, result := range results {
		for _, step := range result.Steps {
			line := fmt.Sprintf("%s %s: %s", result.PassID, step.Action, step.Outcome.Status)
			if len(step.Outcome.Reason) != 0 {
				line += fmt.Sprintf(" (%s)", step.Outcome.Reason)
			}
			fmt.Fprintln(w, line)

			for _, diagnostic := range step.Outcome.Diagnostics {
				fmt.Fprintf(w, "%s   note: %s\n", result.PassID, diagnostic)
			}
		}

		if result.Failed() {
			ok = false
		}
	}

	return ok
}

func newApplyFlagSet(opts *applyOptions) *flag.FlagSet {
	fs := flag.NewFlagSet("apply", flag.ContinueOnError)
	fs.Var(&opts.files, "f", "Manifest of NnfLogicalVolume resources or specs. May be repeated; '-' reads stdin.")
	fs.StringVar(&opts.configPath, "config", "", "Path to the TOML configuration file. Defaults to $"+config.PathEnv+".")
	fs.BoolVar(&opts.mock, "mock", false, "Reconcile against an in-memory device instead of lvm2.")
	fs.StringVar(&opts.mockVGs, "mock-vg", "vg0=100G", "Volume groups for --mock, as name=size[,name=size].")
	fs.BoolVar(&opts.dryRun, "dry-run", false, "Plan without changing any volume.")
	fs.UintVar(&opts.retries, "retries", 0, "Retries for volumes whose device layer was unavailable. Defaults to the configured retry_attempts.")
	return fs
}

// runApply is the apply subcommand. It returns the process exit code.
func runApply(args []string, stdout io.Writer) int {
	opts := &applyOptions{}
	fs := newApplyFlagSet(opts)

	zapopts := zapcr.Options{Development: true, DestWriter: os.Stderr}
	zapopts.BindFlags(fs)

	if err := fs.Parse(args); err != nil {
		return 2
	}

	ctrl.SetLogger(zapcr.New(zapcr.UseFlagOptions(&zapopts)))
	log := ctrl.Log.WithName("apply")

	if len(opts.files) == 0 {
		log.Info("no manifest given; use -f")
		return 2
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		log.Error(err, "unable to load configuration")
		return 1
	}

	retriesSet := false
	fs.Visit(func(f *flag.Flag) {
		if f.Name == "retries" {
			retriesSet = true
		}
	})
	if !retriesSet {
		opts.retries = cfg.RetryAttempts
	}
	opts.retryDelay = cfg.RetryDelay

	records := []lvspec.Record{}
	for _, file := range opts.files {
		var data []byte
		if file == "-" {
			data, err = io.ReadAll(os.Stdin)
		} else {
			data, err = os.ReadFile(file)
		}
		if err != nil {
			log.Error(err, "unable to read manifest", "file", file)
			return 1
		}

		loaded, err := loadRecords(bytes.TrimSpace(data))
		if err != nil {
			log.Error(err, "unable to parse manifest", "file", file)
			return 1
		}
		records = append(records, loaded...)
	}

	var device blockdevice.VolumeManager
	if opts.mock {
		mock := blockdevice.NewMockVolumeManager(log.WithName("mock"))
		if err := parseMockVolumeGroups(mock, opts.mockVGs); err != nil {
			log.Error(err, "unable to set up mock device")
			return 2
		}
		device = mock
	} else {
		device = newLvmDevice(log, cfg)
	}

	reconciler := engine.NewReconciler(log.WithName("engine"), device)
	reconciler.PlanOnly = opts.dryRun

	batch := &engine.Batch{Reconciler: reconciler, Concurrency: cfg.Concurrency}

	ctx, cancel := signalContext()
	defer cancel()

	if !printResults(stdout, applyRecords(ctx, batch, records, opts)) {
		return 1
	}

	return 0
}

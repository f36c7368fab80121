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
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/avast/retry-go"
)

const (
	lvcreateTemplate = "lvcreate --yes --name $LV_NAME $LV_TARGET $LV_STRIPES $LV_TYPE $VG_NAME"
	lvextendTemplate = "lvextend --yes $LV_TARGET $VG_NAME/$LV_NAME"
	lvreduceTemplate = "lvreduce --yes $LV_TARGET $VG_NAME/$LV_NAME"
	lvremoveTemplate = "lvremove --yes $VG_NAME/$LV_NAME"

	// MapperWaitEnv overrides how long WaitForDevice waits, in seconds.
	MapperWaitEnv = "NNF_MAPPER_WAIT_TIMEOUT"
)

// Target is the size of a logical volume as lvm takes it: either a --size
// value ("10G", "1073741824b") or an --extents value ("2560", "50%VG").
type Target struct {
	Size    string
	Extents string
}

func (t Target) arg() (string, error) {
	switch {
	case len(t.Size) != 0 && len(t.Extents) != 0:
		return "", fmt.Errorf("%w: size and extents are mutually exclusive", ErrInvalidInput)
	case len(t.Size) != 0:
		return "--size " + t.Size, nil
	case len(t.Extents) != 0:
		return "--extents " + t.Extents, nil
	}

	return "", nil
}

// CreateOptions are the lvcreate settings fixed at creation.
type CreateOptions struct {
	// An empty Target takes all free extents.
	Target Target

	Stripes int
	// StripeSizeKiB is ignored unless Stripes is set.
	StripeSizeKiB int

	// Type is passed through to --type.
	Type string
}

// CreateLogicalVolume creates vgName/lvName. It fails with ErrAlreadyExists
// when the volume is already there.
func (c *Client) CreateLogicalVolume(ctx context.Context, vgName, lvName string, opts CreateOptions) error {
	if err := validateNames(vgName, lvName); err != nil {
		return err
	}

	target, err := opts.Target.arg()
	if err != nil {
		return err
	}
	if len(target) == 0 {
		target = "--extents 100%FREE"
	}

	stripes := ""
	if opts.Stripes > 0 {
		stripes = "--stripes " + strconv.Itoa(opts.Stripes)
		if opts.StripeSizeKiB > 0 {
			stripes += " --stripesize " + strconv.Itoa(opts.StripeSizeKiB) + "k"
		}
	}

	lvType := ""
	if len(opts.Type) != 0 {
		if !volumeTypeRegexp.MatchString(opts.Type) {
			return fmt.Errorf("%w: %q is not a valid volume type", ErrInvalidInput, opts.Type)
		}
		lvType = "--type " + opts.Type
	}

	if _, err := c.exec(ctx, lvcreateTemplate, map[string]string{
		"$VG_NAME":    vgName,
		"$LV_NAME":    lvName,
		"$LV_TARGET":  target,
		"$LV_STRIPES": stripes,
		"$LV_TYPE":    lvType,
	}); err != nil {
		return fmt.Errorf("could not create logical volume %s/%s: %w", vgName, lvName, err)
	}

	return nil
}

// ExtendLogicalVolume grows vgName/lvName to target.
func (c *Client) ExtendLogicalVolume(ctx context.Context, vgName, lvName string, target Target) error {
	return c.resize(ctx, lvextendTemplate, "extend", vgName, lvName, target)
}

// ReduceLogicalVolume shrinks vgName/lvName to target. Any filesystem on the
// volume is not resized.
func (c *Client) ReduceLogicalVolume(ctx context.Context, vgName, lvName string, target Target) error {
	return c.resize(ctx, lvreduceTemplate, "reduce", vgName, lvName, target)
}

func (c *Client) resize(ctx context.Context, template, verb, vgName, lvName string, target Target) error {
	if err := validateNames(vgName, lvName); err != nil {
		return err
	}

	arg, err := target.arg()
	if err != nil {
		return err
	}
	if len(arg) == 0 {
		return fmt.Errorf("%w: %s requires a size or extents", ErrInvalidInput, verb)
	}

	if _, err := c.exec(ctx, template, map[string]string{
		"$VG_NAME":   vgName,
		"$LV_NAME":   lvName,
		"$LV_TARGET": arg,
	}); err != nil {
		return fmt.Errorf("could not %s logical volume %s/%s: %w", verb, vgName, lvName, err)
	}

	return nil
}

// RemoveLogicalVolume removes vgName/lvName.
func (c *Client) RemoveLogicalVolume(ctx context.Context, vgName, lvName string) error {
	if err := validateNames(vgName, lvName); err != nil {
		return err
	}

	if _, err := c.exec(ctx, lvremoveTemplate, map[string]string{
		"$VG_NAME": vgName,
		"$LV_NAME": lvName,
	}); err != nil {
		return fmt.Errorf("could not remove logical volume %s/%s: %w", vgName, lvName, err)
	}

	return nil
}

// DevicePath is the stable /dev/vg/lv path of a logical volume.
func DevicePath(vgName, lvName string) string {
	return fmt.Sprintf("/dev/%s/%s", vgName, lvName)
}

// MapperPath generates the name used in /dev/mapper for the vg/lv.
//
// LVM2 joins the names with a hyphen, so hyphens embedded in either name are
// doubled: my-vg/my-lv becomes my--vg-my--lv. The encoding may change between
// releases; use DevicePath to open the device.
func MapperPath(vgName, lvName string) string {
	return fmt.Sprintf("/dev/mapper/%s-%s", strings.ReplaceAll(vgName, "-", "--"), strings.ReplaceAll(lvName, "-", "--"))
}

// WaitForDevice polls until the device node for vgName/lvName exists. The
// wait defaults to 10 seconds and can be overridden by NNF_MAPPER_WAIT_TIMEOUT.
func WaitForDevice(ctx context.Context, vgName, lvName string) error {
	retryPeriod := 10 * time.Second

	if timeoutString, found := os.LookupEnv(MapperWaitEnv); found {
		if timeout, err := strconv.Atoi(timeoutString); err == nil && timeout > 0 {
			retryPeriod = time.Duration(timeout) * time.Second
		}
	}

	device := DevicePath(vgName, lvName)
	attempts := uint(retryPeriod / (100 * time.Millisecond))

	return retry.Do(
		func() error {
			_, err := os.Stat(device)
			if err != nil && !errors.Is(err, os.ErrNotExist) {
				return retry.Unrecoverable(fmt.Errorf("could not stat device %s: %w", device, err))
			}
			return err
		},
		retry.Context(ctx),
		retry.Attempts(attempts),
		retry.Delay(100*time.Millisecond),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
	)
}

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

package var_handler

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

var varRegexp = regexp.MustCompile(`\$[A-Z][A-Z0-9_]*`)

// VarHandler substitutes $VARIABLES in LVM command templates.
type VarHandler struct {
	VarMap map[string]string
}

func NewVarHandler(vars map[string]string) *VarHandler {
	v := &VarHandler{VarMap: map[string]string{}}
	for key, value := range vars {
		v.VarMap[key] = value
	}
	return v
}

func (v *VarHandler) AddVar(name string, value string) {
	v.VarMap[name] = value
}

// ReplaceAll substitutes every known variable. Longer names are replaced
// first so $LV_NAME is never clobbered by a $LV variable.
func (v *VarHandler) ReplaceAll(s string) string {
	keys := make([]string, 0, len(v.VarMap))
	for key := range v.VarMap {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		if len(keys[i]) != len(keys[j]) {
			return len(keys[i]) > len(keys[j])
		}
		return keys[i] < keys[j]
	})

	for _, key := range keys {
		s = strings.ReplaceAll(s, key, v.VarMap[key])
	}
	return s
}

// Unresolved lists the variables still present in s.
func Unresolved(s string) []string {
	return varRegexp.FindAllString(s, -1)
}

// Expand substitutes the template, collapses the whitespace left by empty
// variables, and fails if any variable was not provided.
func (v *VarHandler) Expand(template string) (string, error) {
	s := strings.Join(strings.Fields(v.ReplaceAll(template)), " ")
	if missing := Unresolved(s); len(missing) != 0 {
		return "", fmt.Errorf("unresolved variables %v in %q", missing, template)
	}
	return s, nil
}

// Copyright 2025 The ACE Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package playbook

import "fmt"

// OversizedBulletError is returned when an ADD's or UPDATE's content exceeds
// bullet.MaxContentBytes (spec §4.1 failure semantics).
type OversizedBulletError struct {
	Section string
	Size    int
	Max     int
}

func (e *OversizedBulletError) Error() string {
	return fmt.Sprintf("oversized bullet in section %q: %d bytes (max %d)", e.Section, e.Size, e.Max)
}

// UnknownBulletIDError is returned when an UPDATE/DELETE targets an ID
// that does not exist or is already tombstoned.
type UnknownBulletIDError struct {
	ID string
}

func (e *UnknownBulletIDError) Error() string {
	return fmt.Sprintf("unknown or tombstoned bullet id %q", e.ID)
}

// UnknownSectionError is returned when an operation names a section not
// in the Store's configured section list.
type UnknownSectionError struct {
	Section string
}

func (e *UnknownSectionError) Error() string {
	return fmt.Sprintf("unknown section %q", e.Section)
}

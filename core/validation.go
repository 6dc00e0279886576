// Copyright 2025 Poiesic Systems
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

package core

import (
	"fmt"
)

// ValidateChunk validates a SchemaChunk according to domain rules.
//
// Validation rules:
//   - SourceId must not be empty
//   - ObjectName must not be empty
//   - Content must not be empty
//   - ObjectType must be one of the known types
//
// NOT validated (populated by the enrichment pipeline):
//   - Summary (empty until summarization runs)
//   - Embedding (empty until embedding runs)
func ValidateChunk(chunk *SchemaChunk) error {
	if chunk == nil {
		return fmt.Errorf("%w: chunk is nil", ErrInvalidChunk)
	}

	if chunk.SourceId == "" {
		return fmt.Errorf("%w: %w", ErrInvalidChunk, ErrEmptySourceId)
	}

	if chunk.ObjectName == "" {
		return fmt.Errorf("%w: %w", ErrInvalidChunk, ErrEmptyObjectName)
	}

	if chunk.Content == "" {
		return fmt.Errorf("%w: %w", ErrInvalidChunk, ErrEmptyContent)
	}

	if err := ValidateObjectType(chunk.ObjectType); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidChunk, err)
	}

	return nil
}

// ValidateObjectType validates that an ObjectType has a valid value.
func ValidateObjectType(t ObjectType) error {
	switch t {
	case ObjectTypeTable, ObjectTypeView, ObjectTypeStoredProcedure, ObjectTypeFunction:
		return nil
	default:
		return fmt.Errorf("%w: value %d", ErrInvalidObjectType, t)
	}
}

// ValidateRole validates that a chat message Role has a valid value.
func ValidateRole(r Role) error {
	if r != RoleUser && r != RoleAssistant {
		return fmt.Errorf("%w: value %d", ErrInvalidRole, r)
	}
	return nil
}

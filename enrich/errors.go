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

package enrich

import "errors"

var (
	// ErrStoreRequired indicates a nil chunk store was passed to a constructor.
	ErrStoreRequired = errors.New("chunk store is required")

	// ErrAIProviderRequired indicates a nil AI provider was passed to a constructor.
	ErrAIProviderRequired = errors.New("AI provider is required")
)

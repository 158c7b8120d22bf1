// Copyright 2025 The Mealdex Authors
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

package artifact

import (
	"strings"

	"github.com/mealdex/mealdex/core"
)

// Key prefixes for the parallel, identity-keyed artifact layout. Either
// artifact can be located from the identity alone.
const (
	DefaultImagesPrefix  = "images/"
	DefaultRecordsPrefix = "embeddings/"
)

// extByMIME maps content types to file extensions for image keys.
var extByMIME = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
	"image/gif":  ".gif",
	"image/bmp":  ".bmp",
	"image/tiff": ".tiff",
}

// ExtFromMIME returns the file extension for a content type, falling back
// to the uploaded filename's extension, then empty.
func ExtFromMIME(contentType, filename string) string {
	if ext, ok := extByMIME[strings.ToLower(contentType)]; ok {
		return ext
	}
	if i := strings.LastIndex(filename, "."); i >= 0 && i < len(filename)-1 {
		return filename[i:]
	}
	return ""
}

// ImageKey derives the deterministic image object key for an identity.
// Format: <prefix><identity><ext>
func ImageKey(prefix string, id core.ID, ext string) string {
	return prefix + string(id) + ext
}

// RecordKey derives the deterministic metadata record key for an identity.
// Format: <prefix><identity>.json
func RecordKey(prefix string, id core.ID) string {
	return prefix + string(id) + ".json"
}

// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"encoding/json"

	"github.com/jeranaias/termsage/internal/storage"
)

// =============================================================================
// JSON EXPORTER
// =============================================================================

// JSONExporter exports chats to JSON format.
// JSON exports always contain the complete chat, regardless of options.
type JSONExporter struct{}

// NewJSONExporter creates a new JSON exporter. opts is accepted for
// symmetry with the other exporters.
func NewJSONExporter(opts *Options) *JSONExporter {
	return &JSONExporter{}
}

// Export converts a chat to indented JSON.
func (e *JSONExporter) Export(chat *storage.StoredChat) ([]byte, error) {
	if err := validate(chat); err != nil {
		return nil, err
	}
	data, err := json.MarshalIndent(chat, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// FileExtension returns the file extension for JSON.
func (e *JSONExporter) FileExtension() string {
	return ".json"
}

// Package file provides filesystem adapters: a definition catalog loaded from
// YAML or JSON documents, and an execution repository that keeps one JSON file
// per record.
package file

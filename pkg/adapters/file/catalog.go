package file

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/aretw0/chronicle/pkg/adapters/memory"
	"github.com/aretw0/chronicle/pkg/domain"
	"gopkg.in/yaml.v3"
)

// CatalogDocument is the on-disk shape of a definition catalog.
// JSON documents are accepted as well, since they parse as YAML.
type CatalogDocument struct {
	Actions        []domain.Action        `yaml:"actions"`
	Runners        []domain.Runner        `yaml:"runners"`
	Rules          []domain.Rule          `yaml:"rules"`
	Events         []domain.Event         `yaml:"events"`
	EventInstances []domain.EventInstance `yaml:"event_instances"`
	EventTypes     []domain.EventType     `yaml:"event_types"`
}

var catalogExtensions = []string{".yaml", ".yml", ".json"}

// LoadCatalog reads a catalog file, or every catalog file of a directory in
// lexical order, into an in-memory catalog. Later documents override earlier
// definitions with the same id.
func LoadCatalog(path string) (*memory.Catalog, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat catalog: %w", err)
	}

	files := []string{path}
	if info.IsDir() {
		files, err = catalogFiles(path)
		if err != nil {
			return nil, err
		}
	}

	catalog := memory.NewCatalog()
	for _, f := range files {
		doc, err := readDocument(f)
		if err != nil {
			return nil, err
		}
		doc.AddTo(catalog)
	}
	return catalog, nil
}

// DecodeCatalog parses a single catalog document.
func DecodeCatalog(r io.Reader) (*CatalogDocument, error) {
	var doc CatalogDocument
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		if err == io.EOF {
			return &doc, nil
		}
		return nil, fmt.Errorf("failed to decode catalog: %w", err)
	}
	return &doc, nil
}

// AddTo registers every definition of the document.
func (d *CatalogDocument) AddTo(c *memory.Catalog) {
	c.AddActions(d.Actions...).
		AddRunners(d.Runners...).
		AddRules(d.Rules...).
		AddEvents(d.Events...).
		AddEventInstances(d.EventInstances...).
		AddEventTypes(d.EventTypes...)
}

func readDocument(path string) (*CatalogDocument, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog file: %w", err)
	}
	defer f.Close()

	doc, err := DecodeCatalog(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return doc, nil
}

func catalogFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list catalog directory: %w", err)
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if slices.Contains(catalogExtensions, strings.ToLower(filepath.Ext(entry.Name()))) {
			files = append(files, filepath.Join(dir, entry.Name()))
		}
	}
	slices.Sort(files)
	return files, nil
}

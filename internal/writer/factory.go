package writer

import (
	"DelayBench/internal/config"
	"DelayBench/internal/model"
	"fmt"
	"log"
)

// Factory builds a writer from its definition. outputDir is where file based
// writers place their documents.
type Factory func(def config.WriterDef, outputDir string) (model.Writer, error)

// registry holds the mapping of writer types to their factory functions.
var registry = make(map[string]Factory)

// Register registers a new writer type with its factory function.
func Register(name string, factory Factory) {
	if _, exists := registry[name]; exists {
		panic(fmt.Sprintf("writer type '%s' already registered", name))
	}
	registry[name] = factory
}

func init() {
	Register("json", func(_ config.WriterDef, outputDir string) (model.Writer, error) {
		return NewJSONWriter(outputDir), nil
	})
	Register("clickhouse", func(def config.WriterDef, _ string) (model.Writer, error) {
		w, err := NewClickHouseWriter(def.ClickHouse)
		if err != nil {
			return nil, err
		}
		return w, nil
	})
}

// Create builds every enabled writer. The JSON writer is always part of the
// result so a run document lands in outputDir even when the configuration
// enables only database writers. On error, writers created so far are closed.
func Create(defs []config.WriterDef, outputDir string) ([]model.Writer, error) {
	var writers []model.Writer
	hasJSON := false

	for _, def := range defs {
		if !def.Enabled {
			continue
		}
		factory, ok := registry[def.Type]
		if !ok {
			closeAll(writers)
			return nil, fmt.Errorf("unknown writer type: '%s'", def.Type)
		}
		w, err := factory(def, outputDir)
		if err != nil {
			closeAll(writers)
			return nil, fmt.Errorf("error creating writer '%s': %w", def.Type, err)
		}
		log.Printf("Created %s writer", w.Name())
		if def.Type == "json" {
			hasJSON = true
		}
		writers = append(writers, w)
	}

	if !hasJSON {
		writers = append([]model.Writer{NewJSONWriter(outputDir)}, writers...)
	}
	return writers, nil
}

func closeAll(writers []model.Writer) {
	for _, w := range writers {
		if err := w.Close(); err != nil {
			log.Printf("Error closing %s writer: %v", w.Name(), err)
		}
	}
}

package cleanup

import (
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type yamlReport struct {
	Root       string       `yaml:"root"`
	StartedAt  string       `yaml:"started_at"`
	FinishedAt string       `yaml:"finished_at"`
	Summary    yamlSummary  `yaml:"summary"`
	Results    []yamlResult `yaml:"results"`
}

type yamlSummary struct {
	Removed    int   `yaml:"removed"`
	Absent     int   `yaml:"absent"`
	Errors     int   `yaml:"errors"`
	BytesFreed int64 `yaml:"bytes_freed"`
}

type yamlResult struct {
	Kind    string `yaml:"kind"`
	Name    string `yaml:"name"`
	Path    string `yaml:"path"`
	Outcome string `yaml:"outcome"`
	Size    int64  `yaml:"size,omitempty"`
	Error   string `yaml:"error,omitempty"`
}

// WriteYAML encodes the report, results in processing order
func (r *Report) WriteYAML(w io.Writer) error {
	out := yamlReport{
		Root:       r.Root,
		StartedAt:  r.StartedAt.UTC().Format(time.RFC3339Nano),
		FinishedAt: r.FinishedAt.UTC().Format(time.RFC3339Nano),
		Summary: yamlSummary{
			Removed:    r.Removed(),
			Absent:     r.Absent(),
			Errors:     r.Failed(),
			BytesFreed: r.BytesFreed(),
		},
		Results: make([]yamlResult, 0, len(r.Results)),
	}
	for _, res := range r.Results {
		yr := yamlResult{
			Kind:    res.Target.Kind.String(),
			Name:    res.Target.Name,
			Path:    res.Path,
			Outcome: string(res.Outcome),
			Size:    res.Size,
		}
		if res.Err != nil {
			yr.Error = res.Err.Error()
		}
		out.Results = append(out.Results, yr)
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(out); err != nil {
		return fmt.Errorf("encode yaml report: %w", err)
	}
	return enc.Close()
}

// WriteYAMLFile writes the report to path, replacing any previous report
func (r *Report) WriteYAMLFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create report: %w", err)
	}
	if err := r.WriteYAML(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

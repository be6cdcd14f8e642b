package report

import (
	"encoding/json"
	"io"
)

type sarif struct {
	Schema  string     `json:"$schema"`
	Version string     `json:"version"`
	Runs    []sarifRun `json:"runs"`
}

type sarifRun struct {
	Tool    sarifTool     `json:"tool"`
	Results []sarifResult `json:"results"`
}

type sarifTool struct {
	Driver sarifDriver `json:"driver"`
}

type sarifDriver struct {
	Name    string      `json:"name"`
	Version string      `json:"version"`
	Rules   []sarifRule `json:"rules,omitempty"`
}

type sarifRule struct {
	ID string `json:"id"`
}

type sarifResult struct {
	RuleID    string       `json:"ruleId"`
	RuleIndex int          `json:"ruleIndex"`
	Level     string       `json:"level"`
	Message   sarifMessage `json:"message"`
	Locations []sarifLoc   `json:"locations"`
}

type sarifMessage struct {
	Text string `json:"text"`
}

type sarifLoc struct {
	PhysicalLocation sarifPhys `json:"physicalLocation"`
}

type sarifPhys struct {
	ArtifactLocation sarifArt `json:"artifactLocation"`
}

type sarifArt struct {
	URI string `json:"uri"`
}

// WriteSARIF writes one SARIF 2.1.0 result per (file, signature) pair. Each
// signature becomes a rule.
func WriteSARIF(w io.Writer, results []FileResult, engineVersion string) error {
	run := sarifRun{
		Tool:    sarifTool{Driver: sarifDriver{Name: "viruscan", Version: engineVersion}},
		Results: []sarifResult{},
	}
	ruleIdx := map[string]int{}
	for _, r := range results {
		for _, sig := range r.Signatures {
			idx, ok := ruleIdx[sig]
			if !ok {
				idx = len(run.Tool.Driver.Rules)
				ruleIdx[sig] = idx
				run.Tool.Driver.Rules = append(run.Tool.Driver.Rules, sarifRule{ID: sig})
			}
			run.Results = append(run.Results, sarifResult{
				RuleID:    sig,
				RuleIndex: idx,
				Level:     "error",
				Message:   sarifMessage{Text: "Virus found: " + sig},
				Locations: []sarifLoc{{PhysicalLocation: sarifPhys{ArtifactLocation: sarifArt{URI: r.Path}}}},
			})
		}
	}
	doc := sarif{
		Schema:  "https://json.schemastore.org/sarif-2.1.0.json",
		Version: "2.1.0",
		Runs:    []sarifRun{run},
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}

package main

import (
	"encoding/json"
	"fmt"
)

// OutputFormat represents the output format type
type OutputFormat string

const (
	FormatJSON  OutputFormat = "json"
	FormatHuman OutputFormat = "human"
)

// formatJSON renders any result as indented JSON
func formatJSON(resp interface{}) (string, error) {
	data, err := json.MarshalIndent(resp, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal JSON: %w", err)
	}
	return string(data), nil
}

// printJSON writes a JSON-rendered result to stdout
func printJSON(resp interface{}) error {
	out, err := formatJSON(resp)
	if err != nil {
		return err
	}
	fmt.Println(out)
	return nil
}

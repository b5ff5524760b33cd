package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/mids-neo/mnr-form-api/internal/fill"
)

var (
	outputFormat = flag.String("format", "text", "Output format: text, json")
	tableName    = flag.String("table", "ash", "Semantic table to cross-check: ash, mnr, none")
	help         = flag.Bool("help", false, "Show help message")
)

// inventory is the JSON shape for -format json.
type inventory struct {
	Template       string               `json:"template"`
	Fields         []fill.TemplateField `json:"fields"`
	MappedCount    int                  `json:"mapped_count,omitempty"`
	UnmappedFields []string             `json:"unmapped_semantics,omitempty"`
}

func main() {
	flag.Parse()

	if *help {
		printHelp()
		return
	}
	if flag.NArg() == 0 {
		fmt.Fprintf(os.Stderr, "Error: PDF template path required\n\n")
		printUsage()
		os.Exit(1)
	}

	templatePath := flag.Arg(0)
	data, err := os.ReadFile(templatePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: cannot read template: %v\n", err)
		os.Exit(1)
	}

	inv := inventory{Template: templatePath}

	fields, err := fill.ListFields(data)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error listing fields: %v\n", err)
		os.Exit(1)
	}
	inv.Fields = fields

	var table fill.Table
	switch *tableName {
	case "ash":
		table = fill.ASHTable()
	case "mnr":
		table = fill.MNRTable()
	case "none":
	default:
		fmt.Fprintf(os.Stderr, "Error: unknown table %q\n", *tableName)
		os.Exit(1)
	}
	if table != nil {
		quiet := slog.New(slog.NewTextHandler(io.Discard, nil))
		fm, err := fill.BuildFieldMap(data, table, quiet)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error building field map: %v\n", err)
			os.Exit(1)
		}
		inv.MappedCount = fm.MappedCount()
		inv.UnmappedFields = fm.UnmappedFields
	}

	if err := output(inv); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing output: %v\n", err)
		os.Exit(1)
	}
}

func output(inv inventory) error {
	if *outputFormat == "json" {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(inv)
	}

	fmt.Printf("Template: %s\n", inv.Template)
	fmt.Printf("Form fields: %d\n", len(inv.Fields))
	for _, f := range inv.Fields {
		marker := ""
		if f.ReadOnly {
			marker = " (read-only)"
		}
		fmt.Printf("  %-10s %s%s\n", f.Type, f.Name, marker)
	}
	if inv.MappedCount > 0 || len(inv.UnmappedFields) > 0 {
		fmt.Printf("Mapped semantic keys: %d\n", inv.MappedCount)
	}
	if len(inv.UnmappedFields) > 0 {
		fmt.Printf("Semantic keys with no live field:\n")
		for _, s := range inv.UnmappedFields {
			fmt.Printf("  %s\n", s)
		}
	}
	return nil
}

func printHelp() {
	fmt.Println("fieldmap - inspect a PDF template's form fields and mapping coverage")
	fmt.Println()
	fmt.Println("Lists the AcroForm fields a template exposes and cross-checks them against")
	fmt.Println("the static semantic table used by the fill engine, reporting semantic keys")
	fmt.Println("whose target field is absent.")
	fmt.Println()
	printUsage()
	fmt.Println()
	fmt.Println("OPTIONS:")
	fmt.Println("  -format    Output format: text (default), json")
	fmt.Println("  -table     Semantic table to cross-check: ash (default), mnr, none")
	fmt.Println("  -help      Show this help message")
}

func printUsage() {
	fmt.Println("USAGE:")
	fmt.Println("  fieldmap [options] <template.pdf>")
}

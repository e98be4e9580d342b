/*
Copyright © 2025 Your Name

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package cmd

import (
	"context"
	"fmt"
	"os"

	"bib/cmd/handlers"

	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "bib",
	Short: "bib is a citation-aware knowledge base for a folder of research papers.",
	Long: `bib ingests PDFs through an external fulltext parser, extracts each paper's
citation graph and prose, embeds every paragraph, and stores the result in a
local SQLite database. Once a collection is ingested, bib can answer
questions about it by retrieving relevant paragraphs and asking an LLM which
cited papers actually address the question, or by compiling a grounded
literature-review PDF.`,
}

// Execute adds all child commands to the root command and sets flags
// appropriately. This is called by main.main(). It only needs to happen
// once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(addCmd, syncCmd, queryCmd, reportCmd, searchCmd)
}

var addCmd = &cobra.Command{
	Use:   "add <pdf>",
	Short: "Ingest a single PDF into the citation store",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return handlers.Add(context.Background(), args[0])
	},
}

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Reconcile the configured PDF directory against the citation store",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return handlers.Sync(context.Background())
	},
}

var queryTopK int

var queryCmd = &cobra.Command{
	Use:   "query <question>",
	Short: "Find and rank cited papers that answer a question",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return handlers.Query(context.Background(), args[0], queryTopK)
	},
}

var reportCmd = &cobra.Command{
	Use:   "report <question>",
	Short: "Compile a grounded literature-review PDF answering a question",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return handlers.Report(context.Background(), args[0])
	},
}

var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "Open the interactive terminal browser over the citation store",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return handlers.Search()
	},
}

func init() {
	queryCmd.Flags().IntVar(&queryTopK, "top", 10, "maximum number of ranked papers to display")
}

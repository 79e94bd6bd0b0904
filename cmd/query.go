package cmd

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"lexpipe/internal/models"
)

var (
	queryOwner string
	queryTopK  int
	queryDocs  []string
)

var queryCmd = &cobra.Command{
	Use:   "query <question>",
	Short: "Ask a question over indexed documents",
	Long: `Retrieves the most relevant chunks from the owner's indexed documents
and generates an answer grounded in them, with page-level citations.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		appInstance, err := GetAppFromContext(ctx)
		if err != nil {
			return err
		}
		if queryOwner == "" {
			return fmt.Errorf("--owner is required")
		}

		topK := queryTopK
		if topK <= 0 {
			topK = appInstance.Config.Query.TopK
		}

		result, err := appInstance.Query.Answer(ctx, models.Query{
			Text:        args[0],
			OwnerID:     queryOwner,
			DocumentIDs: queryDocs,
			TopK:        topK,
		})
		if err != nil {
			return fmt.Errorf("answer query: %w", err)
		}

		if result.NoEvidence {
			fmt.Println(color.YellowString("No relevant evidence found in the indexed documents."))
			return nil
		}

		fmt.Println(result.Answer)
		fmt.Printf("\nConfidence: %.2f\n", result.Confidence)
		for _, w := range result.Warnings {
			fmt.Printf("%s %s\n", color.YellowString("WARNING:"), w)
		}

		if len(result.Citations) > 0 {
			fmt.Println("\nCitations:")
			table := tablewriter.NewWriter(os.Stdout)
			table.SetHeader([]string{"Document", "Page", "Score", "Excerpt"})
			table.SetBorder(true)
			table.SetRowLine(true)
			for _, c := range result.Citations {
				excerpt := c.Text
				if len(excerpt) > 80 {
					excerpt = excerpt[:77] + "..."
				}
				table.Append([]string{
					c.DocumentID,
					fmt.Sprintf("%d", c.PageNumber),
					fmt.Sprintf("%.2f", c.Score),
					excerpt,
				})
			}
			table.Render()
		}
		return nil
	},
}

func init() {
	queryCmd.Flags().StringVar(&queryOwner, "owner", "", "owner id whose documents to search")
	queryCmd.Flags().IntVar(&queryTopK, "top-k", 0, "number of chunks to retrieve (default from config)")
	queryCmd.Flags().StringSliceVar(&queryDocs, "doc", nil, "restrict to specific document ids (repeatable)")
	rootCmd.AddCommand(queryCmd)
}

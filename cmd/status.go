package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"lexpipe/internal/models"
)

var (
	statusOwner string
	statusLimit int
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show processing status of uploaded documents",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		appInstance, err := GetAppFromContext(ctx)
		if err != nil {
			return err
		}
		if statusOwner == "" {
			return fmt.Errorf("--owner is required")
		}

		recs, err := appInstance.Meta.List(ctx, statusOwner, statusLimit)
		if err != nil {
			return fmt.Errorf("list documents: %w", err)
		}
		if len(recs) == 0 {
			fmt.Println("No documents found.")
			return nil
		}

		table := tablewriter.NewWriter(os.Stdout)
		table.SetHeader([]string{"Document ID", "Filename", "Status", "Pages", "Updated At", "Last Error"})
		table.SetBorder(true)
		table.SetRowLine(true)
		for _, rec := range recs {
			lastError := ""
			if rec.LastError != nil {
				lastError = *rec.LastError
			}
			table.Append([]string{
				rec.DocumentID,
				rec.Filename,
				colorStatus(rec.Status),
				fmt.Sprintf("%d", rec.PageCount),
				rec.UpdatedAt.Format(time.RFC3339),
				lastError,
			})
		}
		table.Render()
		return nil
	},
}

func colorStatus(s models.DocumentStatus) string {
	switch s {
	case models.StatusReady:
		return color.GreenString(string(s))
	case models.StatusFailed:
		return color.RedString(string(s))
	default:
		return color.YellowString(string(s))
	}
}

func init() {
	statusCmd.Flags().StringVar(&statusOwner, "owner", "", "owner id whose documents to list")
	statusCmd.Flags().IntVar(&statusLimit, "limit", 20, "maximum number of documents to show")
	rootCmd.AddCommand(statusCmd)
}

package cmd

import (
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"time"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"lexpipe/internal/models"
	"lexpipe/internal/tasks"
)

var uploadOwner string

var uploadCmd = &cobra.Command{
	Use:   "upload <file>",
	Short: "Upload a document and start the processing pipeline",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		appInstance, err := GetAppFromContext(ctx)
		if err != nil {
			return err
		}
		if uploadOwner == "" {
			return fmt.Errorf("--owner is required")
		}

		path := args[0]
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}

		documentID := uuid.NewString()
		filename := filepath.Base(path)
		rawLocation := fmt.Sprintf("raw/%s/%s", documentID, filename)

		storedAt, err := appInstance.Blob.Put(ctx, rawLocation, data)
		if err != nil {
			return fmt.Errorf("store upload: %w", err)
		}

		now := time.Now().UTC()
		rec := &models.DocumentRecord{
			DocumentID:  documentID,
			OwnerID:     uploadOwner,
			Filename:    filename,
			ContentType: mime.TypeByExtension(filepath.Ext(filename)),
			SizeBytes:   int64(len(data)),
			Status:      models.StatusUploaded,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		rec.AppendLocation("raw", storedAt)

		if err := appInstance.Meta.Create(ctx, rec); err != nil {
			return fmt.Errorf("create document record: %w", err)
		}

		traceID := uuid.NewString()
		msg := models.PipelineMessage{
			DocumentID: documentID,
			OwnerID:    uploadOwner,
			Stage:      tasks.StageExtract,
			TraceID:    traceID,
		}
		if err := appInstance.Bus.Publish(ctx, msg); err != nil {
			return fmt.Errorf("enqueue extraction: %w", err)
		}

		fmt.Printf("%s %s\n", color.GreenString("Accepted"), filename)
		fmt.Printf("Document ID: %s\n", documentID)
		fmt.Printf("Trace ID:    %s\n", traceID)
		fmt.Println("Run 'lexpipe status' to follow processing.")
		return nil
	},
}

func init() {
	uploadCmd.Flags().StringVar(&uploadOwner, "owner", "", "owner id the document belongs to")
	rootCmd.AddCommand(uploadCmd)
}

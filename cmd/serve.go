package cmd

import (
	"net/http"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"lexpipe/internal/apihandlers"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API server",
	Long: `Starts an HTTP server exposing document upload, status and query
endpoints. Processing itself happens in the worker; uploads return 202 and
clients poll document status.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		appInstance, err := GetAppFromContext(cmd.Context())
		if err != nil {
			return err
		}

		router := gin.Default() // logger and recovery middleware
		apiHandler := apihandlers.NewAPIHandler(appInstance)

		v1 := router.Group("/api/v1")
		{
			documents := v1.Group("/documents")
			{
				documents.POST("", apiHandler.UploadDocumentHandler)
				documents.GET("", apiHandler.ListDocumentsHandler)
				documents.GET("/:id", apiHandler.GetDocumentHandler)
			}
			v1.POST("/query", apiHandler.QueryHandler)
		}
		router.GET("/health", apiHandler.HealthHandler)

		addr := serveAddr
		if addr == "" {
			addr = appInstance.Config.Server.Address
		}
		log.WithField("addr", addr).Info("starting API server")
		if err := router.Run(addr); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (overrides server.address)")
	rootCmd.AddCommand(serveCmd)
}

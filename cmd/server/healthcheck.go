package main

import (
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"
)

var healthcheckURL string

// healthcheckCmd backs the Docker HEALTHCHECK; the image has no curl.
var healthcheckCmd = &cobra.Command{
	Use:   "healthcheck",
	Short: "Probe the readiness endpoint of a running server",
	RunE: func(cmd *cobra.Command, args []string) error {
		client := &http.Client{Timeout: 5 * time.Second}

		resp, err := client.Get(healthcheckURL)
		if err != nil {
			return err
		}
		defer func() {
			_ = resp.Body.Close()
		}()

		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("readiness returned %d", resp.StatusCode)
		}
		return nil
	},
}

func init() {
	healthcheckCmd.Flags().StringVar(&healthcheckURL, "url", "http://localhost:8080/health/ready", "readiness URL")
	rootCmd.AddCommand(healthcheckCmd)
}

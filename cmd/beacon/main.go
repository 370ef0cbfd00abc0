package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

const (
	appName    = "beacon"
	appVersion = "0.1.0"
)

func main() {
	rootCmd := &cobra.Command{
		Use:          appName,
		Short:        "Beacon: Power BI chat assistant front end",
		Long:         "Beacon keeps the conversation list and drives the message lifecycle against the assistant backend.",
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().Bool("simulator", false, "answer locally instead of calling the backend")
	rootCmd.PersistentFlags().String("db", "", "sqlite path, \"none\" disables persistence (overrides DB_PATH)")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		RunE:  runServe,
	}
	serveCmd.Flags().StringP("port", "p", "", "listen port (overrides PORT)")
	rootCmd.AddCommand(serveCmd)

	rootCmd.AddCommand(&cobra.Command{
		Use:   "chat",
		Short: "Chat with the assistant in the terminal",
		RunE:  runChat,
	})

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("%s v%s\n", appName, appVersion)
		},
	})

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

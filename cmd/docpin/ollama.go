package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/docpin/docpin/internal/localllm"
)

var ollamaCmd = &cobra.Command{
	Use:   "ollama",
	Short: "Manage the local inference container",
	Long: `Manage the Ollama container used by the local provider.

The container runs the Ollama inference server with model weights
persisted to ~/.docpin/models/.

Examples:
  docpin ollama start   # Start the container
  docpin ollama stop    # Stop the container (weights preserved)
  docpin ollama status  # Check container status
  docpin ollama logs    # View container logs
  docpin ollama pull qwen2.5:7b  # Download a model`,
}

var ollamaStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the inference container",
	Long: `Start the Ollama container.

If the container doesn't exist, it will be created and started.
If it exists but is stopped, it will be started.
If it's already running, this is a no-op.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		mgr, err := getOllamaManager()
		if err != nil {
			return err
		}
		defer mgr.Close()

		fmt.Println("Starting Ollama...")
		if err := mgr.Start(ctx); err != nil {
			return fmt.Errorf("failed to start Ollama: %w", err)
		}

		fmt.Printf("Ollama is running at %s\n", mgr.URL())
		return nil
	},
}

var ollamaStopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the inference container",
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr, err := getOllamaManager()
		if err != nil {
			return err
		}
		defer mgr.Close()

		fmt.Println("Stopping Ollama...")
		if err := mgr.Stop(cmd.Context()); err != nil {
			return fmt.Errorf("failed to stop Ollama: %w", err)
		}

		fmt.Println("Ollama stopped")
		return nil
	},
}

var ollamaStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show inference container status",
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr, err := getOllamaManager()
		if err != nil {
			return err
		}
		defer mgr.Close()

		status, err := mgr.Status(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to get status: %w", err)
		}

		switch status {
		case localllm.StatusRunning:
			fmt.Printf("Status: %s\n", status)
			fmt.Printf("URL: %s\n", mgr.URL())
		case localllm.StatusStopped:
			fmt.Printf("Status: %s (use 'docpin ollama start' to start)\n", status)
		case localllm.StatusNotFound:
			fmt.Printf("Status: %s (use 'docpin ollama start' to create)\n", status)
		default:
			fmt.Printf("Status: %s\n", status)
		}
		return nil
	},
}

var ollamaLogsTail string

var ollamaLogsCmd = &cobra.Command{
	Use:   "logs",
	Short: "Show inference container logs",
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr, err := getOllamaManager()
		if err != nil {
			return err
		}
		defer mgr.Close()

		logs, err := mgr.Logs(cmd.Context(), ollamaLogsTail)
		if err != nil {
			return fmt.Errorf("failed to get logs: %w", err)
		}

		fmt.Print(logs)
		return nil
	},
}

var ollamaRemoveCmd = &cobra.Command{
	Use:   "remove",
	Short: "Remove the inference container",
	Long: `Remove the Ollama container.

This stops and removes the container. Model weights in ~/.docpin/models/
are NOT deleted - only the container is removed.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr, err := getOllamaManager()
		if err != nil {
			return err
		}
		defer mgr.Close()

		fmt.Println("Removing Ollama container...")
		if err := mgr.Remove(cmd.Context()); err != nil {
			return fmt.Errorf("failed to remove container: %w", err)
		}

		fmt.Println("Ollama container removed (model weights preserved)")
		return nil
	},
}

var ollamaPullCmd = &cobra.Command{
	Use:   "pull <model>",
	Short: "Download a model into the running container",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr, err := getOllamaManager()
		if err != nil {
			return err
		}
		defer mgr.Close()

		timeout, _ := cmd.Flags().GetDuration("timeout")
		if err := mgr.WaitReady(cmd.Context(), timeout); err != nil {
			return fmt.Errorf("Ollama not ready: %w", err)
		}

		fmt.Printf("Pulling %s (this can take a while)...\n", args[0])
		if err := mgr.PullModel(cmd.Context(), args[0]); err != nil {
			return err
		}

		fmt.Printf("Model %s is ready\n", args[0])
		return nil
	},
}

func init() {
	ollamaCmd.AddCommand(ollamaStartCmd)
	ollamaCmd.AddCommand(ollamaStopCmd)
	ollamaCmd.AddCommand(ollamaStatusCmd)
	ollamaCmd.AddCommand(ollamaLogsCmd)
	ollamaCmd.AddCommand(ollamaRemoveCmd)
	ollamaCmd.AddCommand(ollamaPullCmd)

	ollamaLogsCmd.Flags().StringVar(&ollamaLogsTail, "tail", "100", "Number of lines to show from the end")
	ollamaPullCmd.Flags().Duration("timeout", 30*time.Second, "Timeout waiting for Ollama")

	rootCmd.AddCommand(ollamaCmd)
}

// getOllamaManager creates a container manager from configuration.
func getOllamaManager() (*localllm.DockerManager, error) {
	configMgr, err := getConfigManager()
	if err != nil {
		return nil, err
	}
	cfg := configMgr.Get().Ollama

	h, err := getHome()
	if err != nil {
		return nil, err
	}
	modelsPath := cfg.ModelsPath
	if modelsPath == "" {
		modelsPath = h.ModelsPath()
	}

	return localllm.NewDockerManager(localllm.DockerConfig{
		ContainerName: cfg.ContainerName,
		Image:         cfg.Image,
		HostPort:      cfg.Port,
		ModelsPath:    modelsPath,
	})
}

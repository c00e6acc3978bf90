// Command advisor runs the insurance-recommendation dialogue in the
// terminal: it asks its questions, collects answers, and prints the final
// recommendation.
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/insurlab/advisor/advisor"
	"github.com/insurlab/advisor/config"
	"github.com/insurlab/advisor/dialogue"
	"github.com/insurlab/advisor/internal/bootstrap"
	"github.com/insurlab/advisor/log"
)

var (
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	questionStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	resultStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("14")).PaddingLeft(2)
	warnStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run() error {
	ctx := context.Background()
	settings := config.Load()
	logger := log.Default()

	app, err := bootstrap.Build(ctx, settings, logger)
	if err != nil {
		return err
	}
	defer app.Close()

	fmt.Println(titleStyle.Render("Welcome to the Insurance Recommendation System!"))
	fmt.Println("Describe your company, answer a few questions, and get a policy recommendation.")
	fmt.Println()

	reader := bufio.NewReader(os.Stdin)
	input := func(ctx context.Context, question string) (string, error) {
		if question == "" {
			question = "Tell me about your company"
		}
		fmt.Println(questionStyle.Render(question))
		fmt.Print("> ")

		line, err := reader.ReadString('\n')
		if errors.Is(err, io.EOF) && strings.TrimSpace(line) == "" {
			return "", io.EOF
		}
		if err != nil && !errors.Is(err, io.EOF) {
			return "", err
		}
		return strings.TrimSpace(line), nil
	}

	workflow, err := advisor.NewWorkflow(app.Machine, app.Pipeline, input)
	if err != nil {
		return err
	}

	final, err := workflow.Invoke(ctx, advisor.WorkflowState{Dialogue: dialogue.NewState("terminal")})
	if errors.Is(err, io.EOF) {
		fmt.Println(warnStyle.Render("\nInput closed, exiting."))
		return nil
	}
	if err != nil {
		return err
	}

	fmt.Println()
	fmt.Println(titleStyle.Render("Based on the information provided, here's our recommendation:"))
	fmt.Println(resultStyle.Render(final.Recommendation.Text))
	if final.Recommendation.EvidenceCount > 0 {
		fmt.Println()
		fmt.Printf("(backed by %d policy excerpts)\n", final.Recommendation.EvidenceCount)
	}
	return nil
}

package main

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var projectCmd = &cobra.Command{
	Use:   "project",
	Short: "Manage projects",
}

var projectAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Register a new project",
	RunE:  runProjectAdd,
}

var projectListCmd = &cobra.Command{
	Use:   "list",
	Short: "List projects",
	RunE:  runProjectList,
}

var projectShowCmd = &cobra.Command{
	Use:   "show [project-id]",
	Short: "Show project details",
	Args:  cobra.ExactArgs(1),
	RunE:  runProjectShow,
}

var projectRunCmd = &cobra.Command{
	Use:   "run [project-id]",
	Short: "Trigger a processing run",
	Args:  cobra.ExactArgs(1),
	RunE:  runProjectRun,
}

var projectReportCmd = &cobra.Command{
	Use:   "report [project-id]",
	Short: "Print the project's Markdown report",
	Args:  cobra.ExactArgs(1),
	RunE:  runProjectReport,
}

var projectEventsCmd = &cobra.Command{
	Use:   "events [project-id]",
	Short: "Show the project's run event trail",
	Args:  cobra.ExactArgs(1),
	RunE:  runProjectEvents,
}

var (
	projectName   string
	projectSource string
	projectTool   string
)

func init() {
	projectCmd.AddCommand(projectAddCmd, projectListCmd, projectShowCmd, projectRunCmd, projectReportCmd, projectEventsCmd)

	projectAddCmd.Flags().StringVar(&projectName, "name", "", "Project name (required)")
	projectAddCmd.Flags().StringVar(&projectSource, "source", "", "Source directory to process (required)")
	projectAddCmd.Flags().StringVar(&projectTool, "tool", "", "AI tool id (required)")
	projectAddCmd.MarkFlagRequired("name")
	projectAddCmd.MarkFlagRequired("source")
	projectAddCmd.MarkFlagRequired("tool")
}

func runProjectAdd(cmd *cobra.Command, args []string) error {
	body := map[string]string{
		"name":   projectName,
		"source": projectSource,
		"tool":   projectTool,
	}

	resp, err := apiPost("/projects", body)
	if err != nil {
		return err
	}

	var result map[string]interface{}
	if err := json.Unmarshal(resp, &result); err != nil {
		return err
	}

	fmt.Printf("Created project: %s\n", result["id"])
	return nil
}

func runProjectList(cmd *cobra.Command, args []string) error {
	resp, err := apiGet("/projects")
	if err != nil {
		return err
	}

	var projects []map[string]interface{}
	if err := json.Unmarshal(resp, &projects); err != nil {
		return err
	}

	if len(projects) == 0 {
		fmt.Println("No projects found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tSTATUS\tTOOL")
	for _, p := range projects {
		id := truncateID(p["id"].(string))
		name := truncate(p["name"].(string), 40)
		status := p["status"].(string)
		tool := truncateID(p["tool"].(string))
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", id, name, status, tool)
	}
	w.Flush()
	return nil
}

func runProjectShow(cmd *cobra.Command, args []string) error {
	resp, err := apiGet("/projects/" + args[0])
	if err != nil {
		return err
	}

	var project map[string]interface{}
	if err := json.Unmarshal(resp, &project); err != nil {
		return err
	}

	fmt.Printf("ID:       %s\n", project["id"])
	fmt.Printf("Name:     %s\n", project["name"])
	fmt.Printf("Source:   %s\n", project["source"])
	fmt.Printf("Tool:     %s\n", project["tool"])
	fmt.Printf("Status:   %s\n", project["status"])
	fmt.Printf("Created:  %s\n", project["created_at"])
	if ea, ok := project["executed_at"].(string); ok && ea != "" {
		fmt.Printf("Executed: %s\n", ea)
	}
	if fa, ok := project["finished_at"].(string); ok && fa != "" {
		fmt.Printf("Finished: %s\n", fa)
	}
	if result, ok := project["result"].(map[string]interface{}); ok {
		if errMsg, ok := result["error"].(string); ok && errMsg != "" {
			fmt.Printf("Error:    %s\n", errMsg)
		}
		if msg, ok := result["message"].(string); ok && msg != "" {
			fmt.Printf("Result:   %s\n", msg)
		}
		if files, ok := result["processed_files"].([]interface{}); ok {
			fmt.Println("Processed files:")
			for _, f := range files {
				fmt.Printf("  - %s\n", f)
			}
		}
	}

	return nil
}

func runProjectRun(cmd *cobra.Command, args []string) error {
	resp, err := apiPost("/projects/"+args[0]+"/run", nil)
	if err != nil {
		return err
	}

	var accepted map[string]string
	if err := json.Unmarshal(resp, &accepted); err != nil {
		return err
	}

	fmt.Printf("Run dispatched for project %s\n", accepted["project_id"])
	fmt.Printf("Worker ID: %s\n", accepted["worker_id"])
	return nil
}

func runProjectReport(cmd *cobra.Command, args []string) error {
	resp, err := apiGet("/projects/" + args[0] + "/report")
	if err != nil {
		return err
	}

	os.Stdout.Write(resp)
	return nil
}

func runProjectEvents(cmd *cobra.Command, args []string) error {
	resp, err := apiGet("/projects/" + args[0] + "/events")
	if err != nil {
		return err
	}

	var events []map[string]interface{}
	if err := json.Unmarshal(resp, &events); err != nil {
		return err
	}

	if len(events) == 0 {
		fmt.Println("No events recorded")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TIME\tACTION\tOUTCOME\tDETAILS")
	for _, e := range events {
		details := ""
		if d, ok := e["details"].(string); ok {
			details = truncate(d, 60)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", e["created_at"], e["action"], e["outcome"], details)
	}
	w.Flush()
	return nil
}

// --- Helpers ---

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}

func truncateID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}

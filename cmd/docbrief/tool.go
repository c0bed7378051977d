package main

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var toolCmd = &cobra.Command{
	Use:   "tool",
	Short: "Manage AI tools",
}

var toolAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Register a new AI tool",
	RunE:  runToolAdd,
}

var toolListCmd = &cobra.Command{
	Use:   "list",
	Short: "List AI tools",
	RunE:  runToolList,
}

var toolEnableCmd = &cobra.Command{
	Use:   "enable [tool-id]",
	Short: "Enable an AI tool",
	Args:  cobra.ExactArgs(1),
	RunE:  runToolEnable,
}

var toolDisableCmd = &cobra.Command{
	Use:   "disable [tool-id]",
	Short: "Disable an AI tool",
	Args:  cobra.ExactArgs(1),
	RunE:  runToolDisable,
}

var toolCheckCmd = &cobra.Command{
	Use:   "check [tool-id]",
	Short: "Probe an AI tool's endpoint",
	Args:  cobra.ExactArgs(1),
	RunE:  runToolCheck,
}

var (
	toolName     string
	toolDesc     string
	toolEndpoint string
	toolListAll  bool
)

func init() {
	toolCmd.AddCommand(toolAddCmd, toolListCmd, toolEnableCmd, toolDisableCmd, toolCheckCmd)

	toolAddCmd.Flags().StringVar(&toolName, "name", "", "Tool name (required)")
	toolAddCmd.Flags().StringVar(&toolDesc, "desc", "", "Tool description")
	toolAddCmd.Flags().StringVar(&toolEndpoint, "endpoint", "", "AI endpoint URL (required)")
	toolAddCmd.MarkFlagRequired("name")
	toolAddCmd.MarkFlagRequired("endpoint")

	toolListCmd.Flags().BoolVar(&toolListAll, "all", false, "Include disabled tools")
}

func runToolAdd(cmd *cobra.Command, args []string) error {
	body := map[string]string{
		"name":         toolName,
		"description":  toolDesc,
		"endpoint_url": toolEndpoint,
	}

	resp, err := apiPost("/tools", body)
	if err != nil {
		return err
	}

	var result map[string]interface{}
	if err := json.Unmarshal(resp, &result); err != nil {
		return err
	}

	fmt.Printf("Created tool: %s\n", result["id"])
	return nil
}

func runToolList(cmd *cobra.Command, args []string) error {
	url := "/tools"
	if toolListAll {
		url += "?all=true"
	}

	resp, err := apiGet(url)
	if err != nil {
		return err
	}

	var tools []map[string]interface{}
	if err := json.Unmarshal(resp, &tools); err != nil {
		return err
	}

	if len(tools) == 0 {
		fmt.Println("No tools found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tENDPOINT\tSTATE")
	for _, t := range tools {
		id := truncateID(t["id"].(string))
		name := truncate(t["name"].(string), 30)
		endpoint := truncate(t["endpoint_url"].(string), 50)
		state := "active"
		if d, ok := t["disabled_at"].(string); ok && d != "" {
			state = "disabled"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", id, name, endpoint, state)
	}
	w.Flush()
	return nil
}

func runToolEnable(cmd *cobra.Command, args []string) error {
	if _, err := apiPost("/tools/"+args[0]+"/enable", nil); err != nil {
		return err
	}
	fmt.Printf("Enabled tool %s\n", args[0])
	return nil
}

func runToolDisable(cmd *cobra.Command, args []string) error {
	if _, err := apiPost("/tools/"+args[0]+"/disable", nil); err != nil {
		return err
	}
	fmt.Printf("Disabled tool %s\n", args[0])
	return nil
}

func runToolCheck(cmd *cobra.Command, args []string) error {
	resp, err := apiGet("/tools/" + args[0] + "/health")
	if err != nil {
		return err
	}

	var probe map[string]interface{}
	if err := json.Unmarshal(resp, &probe); err != nil {
		return err
	}

	if probe["reachable"] == true {
		fmt.Printf("Tool %s endpoint is reachable\n", args[0])
		return nil
	}

	fmt.Printf("Tool %s endpoint is unreachable: %v\n", args[0], probe["error"])
	return nil
}

package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/codecoder/codecoder/pkg/types"
)

var vaultCmd = &cobra.Command{
	Use:   "vault",
	Short: "Manage vault-stored credentials",
}

var (
	vaultAddType     string
	vaultAddName     string
	vaultAddService  string
	vaultAddPatterns string
	vaultAddAPIKey   string
	vaultAddBearer   string
	vaultAddUsername string
	vaultAddPassword string
)

var vaultAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a credential to the vault",
	RunE:  runVaultAdd,
}

var vaultListCmd = &cobra.Command{
	Use:   "list",
	Short: "List redacted credential summaries",
	RunE:  runVaultList,
}

var vaultGetCmd = &cobra.Command{
	Use:   "get <id>",
	Short: "Print a credential's redacted summary",
	Args:  cobra.ExactArgs(1),
	RunE:  runVaultGet,
}

var vaultDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a credential from the vault",
	Args:  cobra.ExactArgs(1),
	RunE:  runVaultDelete,
}

func init() {
	vaultAddCmd.Flags().StringVar(&vaultAddType, "type", "api_key", "Credential type (api_key|bearer_token|login)")
	vaultAddCmd.Flags().StringVar(&vaultAddName, "name", "", "Human-readable name")
	vaultAddCmd.Flags().StringVar(&vaultAddService, "service", "", "Service identifier")
	vaultAddCmd.Flags().StringVar(&vaultAddPatterns, "patterns", "", "Comma-separated host glob patterns")
	vaultAddCmd.Flags().StringVar(&vaultAddAPIKey, "api-key", "", "API key material (type=api_key)")
	vaultAddCmd.Flags().StringVar(&vaultAddBearer, "bearer-token", "", "Bearer token material (type=bearer_token)")
	vaultAddCmd.Flags().StringVar(&vaultAddUsername, "username", "", "Username (type=login)")
	vaultAddCmd.Flags().StringVar(&vaultAddPassword, "password", "", "Password (type=login)")

	vaultCmd.AddCommand(vaultAddCmd, vaultListCmd, vaultGetCmd, vaultDeleteCmd)
}

func runVaultAdd(cmd *cobra.Command, args []string) error {
	rt, err := buildRuntime()
	if err != nil {
		return err
	}
	defer rt.close()

	cred := types.Credential{
		Type:    types.CredentialType(vaultAddType),
		Name:    vaultAddName,
		Service: vaultAddService,
	}
	if vaultAddPatterns != "" {
		cred.Patterns = strings.Split(vaultAddPatterns, ",")
	}

	switch cred.Type {
	case types.CredentialAPIKey:
		cred.APIKey = vaultAddAPIKey
	case types.CredentialBearerToken:
		cred.BearerToken = vaultAddBearer
	case types.CredentialLogin:
		cred.Login = &types.LoginMaterial{Username: vaultAddUsername, Password: vaultAddPassword}
	default:
		return fmt.Errorf("%w: unsupported --type %q for vault add (use api_key, bearer_token, or login; oauth credentials are issued via the OAuth flow, not this CLI)", errConfig, vaultAddType)
	}

	id, err := rt.vault.Add(context.Background(), cred)
	if err != nil {
		return err
	}
	fmt.Println(id)
	return nil
}

func runVaultList(cmd *cobra.Command, args []string) error {
	rt, err := buildRuntime()
	if err != nil {
		return err
	}
	defer rt.close()

	summaries, err := rt.vault.List(context.Background())
	if err != nil {
		return err
	}
	return printJSON(summaries)
}

func runVaultGet(cmd *cobra.Command, args []string) error {
	rt, err := buildRuntime()
	if err != nil {
		return err
	}
	defer rt.close()

	cred, err := rt.vault.Get(context.Background(), args[0])
	if err != nil {
		return err
	}
	return printJSON(cred.Redact())
}

func runVaultDelete(cmd *cobra.Command, args []string) error {
	rt, err := buildRuntime()
	if err != nil {
		return err
	}
	defer rt.close()

	return rt.vault.Delete(context.Background(), args[0])
}

func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

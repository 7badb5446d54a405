package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jmcleod/ironseal/envelope"
)

var encryptCmd = &cobra.Command{
	Use:   "encrypt <text>",
	Short: "Encrypt text and print the envelope as JSON",
	Args:  cobra.ExactArgs(1),
	RunE:  runEncrypt,
}

var decryptCmd = &cobra.Command{
	Use:   "decrypt <envelope-json|->",
	Short: "Decrypt an envelope produced by encrypt",
	Long:  `Decrypt an envelope produced by encrypt. Pass - to read the envelope from stdin.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runDecrypt,
}

func init() {
	rootCmd.AddCommand(encryptCmd, decryptCmd)
}

func runEncrypt(cmd *cobra.Command, args []string) error {
	svc, err := newService()
	if err != nil {
		return err
	}
	defer svc.Close()

	env, err := svc.Encrypt(args[0])
	if err != nil {
		return err
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(env)
}

func runDecrypt(cmd *cobra.Command, args []string) error {
	raw := args[0]
	if raw == "-" {
		data, err := io.ReadAll(input)
		if err != nil {
			return fmt.Errorf("reading envelope: %w", err)
		}
		raw = string(data)
	}

	var env envelope.Envelope
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), &env); err != nil {
		if errors.Is(err, envelope.ErrDecryption) {
			return err
		}
		return fmt.Errorf("%w: envelope is not valid JSON", envelope.ErrDecryption)
	}

	svc, err := newService()
	if err != nil {
		return err
	}
	defer svc.Close()

	plaintext, err := svc.Decrypt(&env)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), plaintext)
	return nil
}

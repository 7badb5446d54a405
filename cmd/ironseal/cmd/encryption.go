package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/jmcleod/ironseal/encryption"
	"github.com/jmcleod/ironseal/key"
	"github.com/jmcleod/ironseal/mnemonic"
)

var (
	assumeYes  bool
	statusJSON bool
)

var errCancelled = errors.New("cancelled")

var encryptionCmd = &cobra.Command{
	Use:   "encryption",
	Short: "Manage end-to-end encryption",
	Long:  `Commands for setting up, inspecting, recovering and rotating the local master key.`,
}

var encryptionSetupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Generate a master key and show its recovery phrase",
	RunE:  runSetup,
}

var encryptionStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show whether encryption is set up",
	RunE:  runStatus,
}

var encryptionShowRecoveryCmd = &cobra.Command{
	Use:   "show-recovery",
	Short: "Display the recovery phrase for the current key",
	Long: `Display the recovery phrase for the current key.
Anyone with the phrase can decrypt your data. Only run this somewhere private.`,
	RunE: runShowRecovery,
}

var encryptionRecoverCmd = &cobra.Command{
	Use:   "recover",
	Short: "Restore the master key from its recovery phrase",
	RunE:  runRecover,
}

var encryptionRotateCmd = &cobra.Command{
	Use:   "rotate",
	Short: "Replace the master key with a new one",
	Long: `Replace the master key with a new, unrelated key.
Data encrypted under the old key is not re-encrypted; keep the old recovery phrase to read it.`,
	RunE: runRotate,
}

var encryptionDeleteCmd = &cobra.Command{
	Use:   "delete",
	Short: "Delete the local master key",
	RunE:  runDelete,
}

func init() {
	for _, c := range []*cobra.Command{encryptionSetupCmd, encryptionShowRecoveryCmd, encryptionRecoverCmd, encryptionRotateCmd, encryptionDeleteCmd} {
		c.Flags().BoolVarP(&assumeYes, "yes", "y", false, "skip confirmation prompts")
	}
	encryptionStatusCmd.Flags().BoolVar(&statusJSON, "json", false, "output status as JSON")

	encryptionCmd.AddCommand(
		encryptionSetupCmd,
		encryptionStatusCmd,
		encryptionShowRecoveryCmd,
		encryptionRecoverCmd,
		encryptionRotateCmd,
		encryptionDeleteCmd,
	)
	rootCmd.AddCommand(encryptionCmd)
}

func runSetup(cmd *cobra.Command, _ []string) error {
	out := cmd.OutOrStdout()
	svc, err := newService()
	if err != nil {
		return err
	}
	defer svc.Close()

	if st := svc.Status(); st.KeyFileExists {
		warning(out, "Encryption is already set up")
		hint(out, "Key file: %s", st.KeyFilePath)
		if err := confirmOrCancel(out, "Replace the current key? Data encrypted with it will become unreadable without its phrase."); err != nil {
			return ignoreCancel(err)
		}
	}

	m, phrase, err := svc.Setup()
	if err != nil {
		return err
	}
	defer m.Destroy()

	if err := commitKey(out, svc, m, phrase); err != nil {
		return ignoreCancel(err)
	}
	success(out, "Encryption setup complete")
	hint(out, "Key stored at: %s", color.CyanString(svc.Status().KeyFilePath))
	return nil
}

func runRotate(cmd *cobra.Command, _ []string) error {
	out := cmd.OutOrStdout()
	svc, err := newService()
	if err != nil {
		return err
	}
	defer svc.Close()

	st := svc.Status()
	if st.State != encryption.Initialized {
		failure(out, "No valid encryption key to rotate")
		hint(out, "Run %s", color.YellowString("ironseal encryption setup"))
		return encryption.ErrNoKey
	}

	warning(out, "Existing encrypted tasks are not re-encrypted")
	hint(out, "Keep your current recovery phrase to read data written with key %s", st.KeyID)
	if err := confirmOrCancel(out, "Rotate the encryption key?"); err != nil {
		return ignoreCancel(err)
	}

	m, phrase, err := svc.RotateKey()
	if err != nil {
		return err
	}
	defer m.Destroy()

	if err := commitKey(out, svc, m, phrase); err != nil {
		return ignoreCancel(err)
	}
	success(out, "Encryption key rotated")
	hint(out, "Previous key: %s", st.KeyID)
	hint(out, "New key:      %s", m.ID())
	return nil
}

// commitKey shows the phrase, has the user confirm they recorded it, then
// saves the key.
func commitKey(out io.Writer, svc *encryption.Service, m *key.Manager, phrase string) error {
	printPhrase(out, fmt.Sprintf("YOUR %d-WORD RECOVERY PHRASE", mnemonic.WordCount), phrase)
	fmt.Fprintln(out, color.New(color.Bold, color.FgRed).Sprint("IMPORTANT:"))
	fmt.Fprintf(out, "  • Write down these %d words on paper\n", mnemonic.WordCount)
	fmt.Fprintln(out, "  • Store them in a safe place")
	fmt.Fprintln(out, "  • They are the only way to recover your data if you lose this device")
	fmt.Fprintln(out, "  • Never share them with anyone")
	fmt.Fprintln(out)

	if !assumeYes {
		ok, err := confirm(out, "Have you written down your recovery phrase?")
		if err != nil {
			return err
		}
		if !ok {
			warning(out, "Setup cancelled; nothing was saved")
			return errCancelled
		}
		typed, err := readLine(out, "Type your recovery phrase to verify: ")
		if err != nil {
			return err
		}
		if !m.VerifyPhrase(typed) {
			failure(out, "Recovery phrase does not match; nothing was saved")
			return fmt.Errorf("recovery phrase does not match")
		}
	}
	return svc.SaveManager(m)
}

// confirmOrCancel returns errCancelled, after telling the user, unless the
// answer is yes or --yes was given.
func confirmOrCancel(out io.Writer, question string) error {
	if assumeYes {
		return nil
	}
	ok, err := confirm(out, question)
	if err != nil {
		return err
	}
	if !ok {
		fmt.Fprintln(out, "Cancelled.")
		return errCancelled
	}
	return nil
}

func ignoreCancel(err error) error {
	if errors.Is(err, errCancelled) {
		return nil
	}
	return err
}

func runStatus(cmd *cobra.Command, _ []string) error {
	out := cmd.OutOrStdout()
	svc, err := newService()
	if err != nil {
		return err
	}
	defer svc.Close()

	st := svc.Status()
	if statusJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(st)
	}

	switch st.State {
	case encryption.Initialized:
		success(out, "Encryption is enabled")
		hint(out, "Key file: %s", color.CyanString(st.KeyFilePath))
		hint(out, "Key ID:   %s", st.KeyID)
	case encryption.Invalid:
		warning(out, "Encryption key exists but is invalid")
		hint(out, "Key file: %s", color.CyanString(st.KeyFilePath))
		hint(out, "Error:    %s", color.RedString(st.Error))
	default:
		failure(out, "Encryption is not set up")
		hint(out, "Run %s", color.YellowString("ironseal encryption setup"))
	}
	return nil
}

func runShowRecovery(cmd *cobra.Command, _ []string) error {
	out := cmd.OutOrStdout()
	svc, err := newService()
	if err != nil {
		return err
	}
	defer svc.Close()

	if !svc.Status().KeyFileExists {
		failure(out, "No encryption key found")
		hint(out, "Run %s", color.YellowString("ironseal encryption setup"))
		return encryption.ErrNoKey
	}

	if !assumeYes {
		warning(out, "This will display your recovery phrase in plain text")
	}
	if err := confirmOrCancel(out, "Are you in a secure, private location?"); err != nil {
		return ignoreCancel(err)
	}

	phrase, err := svc.RecoveryPhrase()
	if err != nil {
		return err
	}
	printPhrase(out, "Your Recovery Phrase", phrase)
	fmt.Fprintln(out, "Keep this phrase secret and safe!")
	return nil
}

func runRecover(cmd *cobra.Command, _ []string) error {
	out := cmd.OutOrStdout()
	svc, err := newService()
	if err != nil {
		return err
	}
	defer svc.Close()

	if st := svc.Status(); st.KeyFileExists {
		warning(out, "An encryption key already exists")
		hint(out, "Location: %s", st.KeyFilePath)
		if err := confirmOrCancel(out, "Replace it with the recovered key?"); err != nil {
			return ignoreCancel(err)
		}
	}

	phrase, err := readSecret(out, cmd.InOrStdin(), fmt.Sprintf("Enter your %d-word recovery phrase: ", mnemonic.WordCount))
	if err != nil {
		return err
	}
	m, err := svc.Recover(phrase)
	if err != nil {
		failure(out, "Recovery failed")
		hint(out, "Check that you entered all %d words in order", mnemonic.WordCount)
		return err
	}
	defer m.Destroy()

	if err := svc.SaveManager(m); err != nil {
		return err
	}
	success(out, "Encryption key recovered")
	hint(out, "Key stored at: %s", color.CyanString(svc.Status().KeyFilePath))
	return nil
}

func runDelete(cmd *cobra.Command, _ []string) error {
	out := cmd.OutOrStdout()
	svc, err := newService()
	if err != nil {
		return err
	}
	defer svc.Close()

	if !svc.Status().KeyFileExists {
		fmt.Fprintln(out, "No encryption key to delete.")
		return nil
	}
	warning(out, "Without the key or its recovery phrase, encrypted tasks cannot be read")
	if err := confirmOrCancel(out, "Delete the encryption key?"); err != nil {
		return ignoreCancel(err)
	}
	if err := svc.DeleteKey(); err != nil {
		return err
	}
	success(out, "Encryption key deleted")
	return nil
}

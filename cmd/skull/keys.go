package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/vitorsaz/skull-agent/internal/crypto"
)

const passwordEnv = "SKULL_WALLET_KEY_PASSWORD"

func newKeysCmd() *cobra.Command {
	keys := &cobra.Command{
		Use:   "keys",
		Short: "Manage the wallet signing key",
	}

	encryptCmd := &cobra.Command{
		Use:   "encrypt",
		Short: "Encrypt a secret key into a keystore file",
		RunE:  runKeysEncrypt,
	}
	encryptCmd.Flags().String("key", "", "secret key (JSON byte array, base58 or base64)")
	encryptCmd.Flags().String("out", "wallet.json", "output keystore path")
	encryptCmd.Flags().String("password", "", "keystore password (default $"+passwordEnv+")")
	_ = encryptCmd.MarkFlagRequired("key")

	keys.AddCommand(encryptCmd)
	keys.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the public key of the configured wallet",
		RunE:  runKeysShow,
	})
	return keys
}

func runKeysEncrypt(cmd *cobra.Command, _ []string) error {
	raw, _ := cmd.Flags().GetString("key")
	out, _ := cmd.Flags().GetString("out")
	password, _ := cmd.Flags().GetString("password")
	if password == "" {
		password = os.Getenv(passwordEnv)
	}
	if password == "" {
		return fmt.Errorf("password is required (--password or %s)", passwordEnv)
	}

	key, err := crypto.ParsePrivateKey(raw)
	if err != nil {
		return err
	}
	blob, err := crypto.EncryptKey(key, password)
	if err != nil {
		return err
	}
	if err := os.WriteFile(out, blob, 0o600); err != nil {
		return fmt.Errorf("write keystore: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "wrote %s for %s\n", out, crypto.Address(key))
	return nil
}

func runKeysShow(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	key, err := crypto.LoadKey(crypto.KeyConfig{
		RawPrivateKey:    cfg.Wallet.PrivateKey,
		EncryptedKeyPath: cfg.Wallet.EncryptedKeyPath,
		KeyPassword:      cfg.Wallet.KeyPassword,
	})
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), crypto.Address(key))
	return nil
}

package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/getkayan/shogun/config"
	"github.com/getkayan/shogun/keys"
	"github.com/getkayan/shogun/sea"
)

var errNoPassword = errors.New("--password is required")

// secretFlags are shared by every command that derives keys.
type secretFlags struct {
	password string
	extra    []string
}

func (f *secretFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.password, "password", "p", "", "secret to derive from")
	cmd.Flags().StringSliceVar(&f.extra, "extra", nil, "extra entropy (defaults to APP_SCOPE)")
}

func (f *secretFlags) derive(cmd *cobra.Command, cfg *config.Config, opts keys.Options) (*keys.Bundle, error) {
	if f.password == "" {
		return nil, errNoPassword
	}
	extra := f.extra
	if !cmd.Flags().Changed("extra") {
		extra = cfg.Extra()
	}
	return keys.Derive(cmd.Context(), keys.Password(f.password), extra, opts)
}

func newDeriveCmd(load func() *config.Config) *cobra.Command {
	var (
		f        secretFlags
		bitcoin  bool
		ethereum bool
	)

	cmd := &cobra.Command{
		Use:   "derive",
		Short: "Derive the key bundle for a secret",
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := f.derive(cmd, load(), keys.Options{P256: true, Bitcoin: bitcoin, Ethereum: ethereum})
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), b)
		},
	}
	f.register(cmd)
	cmd.Flags().BoolVar(&bitcoin, "bitcoin", false, "also derive the secp256k1 Bitcoin key")
	cmd.Flags().BoolVar(&ethereum, "ethereum", false, "also derive the secp256k1 Ethereum key")
	return cmd
}

func newAddressCmd(load func() *config.Config) *cobra.Command {
	var f secretFlags

	cmd := &cobra.Command{
		Use:   "address",
		Short: "Print the Bitcoin and Ethereum addresses for a secret",
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := f.derive(cmd, load(), keys.Options{Bitcoin: true, Ethereum: true})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "bitcoin:  %s\nethereum: %s\n", b.Bitcoin.Address, b.Ethereum.Address)
			return nil
		},
	}
	f.register(cmd)
	return cmd
}

func newSignCmd(load func() *config.Config) *cobra.Command {
	var f secretFlags

	cmd := &cobra.Command{
		Use:   "sign <message>",
		Short: "Sign a message with the derived P-256 pair",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := f.derive(cmd, load(), keys.Options{P256: true})
			if err != nil {
				return err
			}
			signed, err := sea.Sign(args[0], b.Pair())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), map[string]string{"pub": b.Pub, "signed": signed})
		},
	}
	f.register(cmd)
	return cmd
}

func newVerifyCmd() *cobra.Command {
	var pub string

	cmd := &cobra.Command{
		Use:   "verify <signed>",
		Short: "Verify a SEA signature and print the signed message",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if pub == "" {
				return errors.New("--pub is required")
			}
			msg, err := sea.Verify(args[0], pub)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), msg)
			return nil
		},
	}
	cmd.Flags().StringVar(&pub, "pub", "", "public key of the signer")
	return cmd
}

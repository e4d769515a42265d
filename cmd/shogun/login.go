package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/getkayan/shogun"
	"github.com/getkayan/shogun/config"
	"github.com/getkayan/shogun/nostr"
)

func newLoginCmd(load func() *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in against the configured graph store",
	}
	cmd.AddCommand(newNostrLoginCmd(load))
	return cmd
}

func newNostrLoginCmd(load func() *config.Config) *cobra.Command {
	var secret string

	cmd := &cobra.Command{
		Use:   "nostr",
		Short: "Sign up or log in with a local Nostr key",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			var key *nostr.KeySigner
			var err error
			if secret == "" {
				key, err = nostr.GenerateKeySigner()
			} else {
				key, err = nostr.KeySignerFromHex(secret)
			}
			if err != nil {
				return err
			}

			stack, err := shogun.NewDefaultManager(ctx, load())
			if err != nil {
				return err
			}
			defer stack.Close(ctx)

			if err := stack.RegisterDefaultPlugins(ctx, shogun.Environment{Nostr: key}); err != nil {
				return err
			}
			p, ok := stack.Manager.Plugin(nostr.Name)
			if !ok {
				return errors.New("nostr plugin not registered")
			}

			res := p.(*nostr.Plugin).SignUp(ctx, key.PublicKey())
			if !res.Success {
				return fmt.Errorf("%s (%s)", res.Error, res.Code)
			}

			npub, _ := nostr.EncodeNpub(key.PublicKey())
			return printJSON(cmd.OutOrStdout(), map[string]any{
				"npub":      npub,
				"username":  res.Username,
				"userPub":   res.UserPub,
				"isNewUser": res.IsNewUser,
			})
		},
	}
	cmd.Flags().StringVar(&secret, "secret", "", "hex secret key (a fresh key is generated when empty)")
	return cmd
}

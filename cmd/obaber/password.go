package main

import (
	"bufio"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/KilimcininKorOglu/obaber/internal/server"
)

func newHashPasswordCmd() *cobra.Command {
	var scheme string

	cmd := &cobra.Command{
		Use:   "hash-password [password]",
		Short: "Hash a password for directory.rootPassword",
		Long: `Hash a password with one of the supported schemes and print the value to
put in directory.rootPassword. Without an argument the password is read
from the first line of stdin.

Schemes: {SSHA256} (default), {SSHA512}, {SHA256}, {SHA512}, {CLEARTEXT}`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var password string
			if len(args) == 1 {
				password = args[0]
			} else {
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && line == "" {
					return errors.New("no password given")
				}
				password = strings.TrimRight(line, "\r\n")
			}
			if password == "" {
				return errors.New("password cannot be empty")
			}

			name := strings.ToUpper(strings.Trim(scheme, "{}"))
			hashed, err := server.HashPassword(password, "{"+name+"}")
			if err != nil {
				return fmt.Errorf("%w: %s", err, scheme)
			}
			fmt.Fprintln(cmd.OutOrStdout(), hashed)
			return nil
		},
	}

	cmd.Flags().StringVar(&scheme, "scheme", "SSHA256", "Password scheme")
	return cmd
}

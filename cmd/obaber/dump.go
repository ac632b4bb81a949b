package main

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/KilimcininKorOglu/obaber/internal/ber"
	"github.com/KilimcininKorOglu/obaber/internal/codec"
	"github.com/KilimcininKorOglu/obaber/internal/ldap"
)

// ErrEmptyInput is returned when there is nothing to decode.
var ErrEmptyInput = errors.New("no input")

// inputFlags selects where a command reads its BER bytes from.
type inputFlags struct {
	hex   bool
	stdin bool
}

// read returns the input bytes from the file in args, or stdin when no
// file is named or --stdin is set.
func (f *inputFlags) read(cmd *cobra.Command, args []string) ([]byte, error) {
	var (
		data []byte
		err  error
	)
	switch {
	case f.stdin && len(args) > 0:
		return nil, errors.New("a file argument cannot be combined with --stdin")
	case f.stdin || len(args) == 0:
		data, err = io.ReadAll(cmd.InOrStdin())
	default:
		data, err = os.ReadFile(args[0])
	}
	if err != nil {
		return nil, err
	}

	if f.hex {
		data, err = parseHex(string(data))
		if err != nil {
			return nil, err
		}
	}
	if len(data) == 0 {
		return nil, ErrEmptyInput
	}
	return data, nil
}

// parseHex decodes a hex dump. Whitespace, colons and a leading 0x are
// ignored so that output of common dump tools can be pasted directly.
func parseHex(s string) ([]byte, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "0x")
	s = strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\t', '\n', '\r', ':':
			return -1
		}
		return r
	}, s)
	data, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid hex input: %w", err)
	}
	return data, nil
}

func newDumpCmd() *cobra.Command {
	var (
		in       inputFlags
		asLDAP   bool
		maxDepth int
	)

	cmd := &cobra.Command{
		Use:   "dump [file]",
		Short: "Print the TLV tree of a BER blob",
		Long: `Print every tuple of a BER blob, one per line and indented by depth.

Examples:
  # Dump a binary capture
  obaber dump message.ber

  # Dump a hex string
  echo "30 0c 02 01 01 60 07 02 01 03 04 00 80 00" | obaber dump --hex

  # Decode the blob as LDAP messages
  obaber dump --ldap message.ber`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := in.read(cmd, args)
			if err != nil {
				return err
			}

			opts := ber.DefaultDecoderOptions()
			if maxDepth > 0 {
				opts.MaxDepth = maxDepth
			}

			if asLDAP {
				return dumpLDAP(cmd.OutOrStdout(), data, opts)
			}

			tree, err := ber.DecodeTree(data, opts)
			if err != nil {
				return err
			}
			for _, root := range tree.Roots() {
				if err := tree.Format(cmd.OutOrStdout(), root); err != nil {
					return err
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&in.hex, "hex", false, "Input is a hex dump")
	cmd.Flags().BoolVar(&in.stdin, "stdin", false, "Read input from stdin")
	cmd.Flags().BoolVar(&asLDAP, "ldap", false, "Decode the input as LDAP messages")
	cmd.Flags().IntVar(&maxDepth, "max-depth", 0, "Maximum nesting depth (default 64)")
	return cmd
}

// dumpLDAP prints one line per LDAP message in data.
func dumpLDAP(w io.Writer, data []byte, opts ber.DecoderOptions) error {
	const stream = "dump"

	c := codec.New(ldap.NewRegistry(), codec.Options{Decoder: opts, AbortOnRuleFailure: true})
	objs, err := c.Decode(stream, data)
	for _, obj := range objs {
		msg, ok := obj.(*ldap.LDAPMessage)
		if !ok {
			continue
		}
		fmt.Fprintf(w, "message %d: %s", msg.MessageID, msg.OperationType())
		if len(msg.Controls) > 0 {
			fmt.Fprintf(w, " controls=%d", len(msg.Controls))
		}
		fmt.Fprintln(w)
	}
	if err != nil {
		return err
	}
	return c.Close(stream)
}

func newEncodeCmd() *cobra.Command {
	var (
		binaryIn  bool
		binaryOut bool
		stdin     bool
	)

	cmd := &cobra.Command{
		Use:   "encode [file]",
		Short: "Re-encode a BER blob in definite-length form",
		Long: `Decode a BER blob and encode it again with minimal definite lengths.
Indefinite-length values and long-form lengths are rewritten, which turns
valid BER of primitive and constructed tuples into its DER layout.

Input and output are hex unless --binary-in or --binary-out is given.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in := inputFlags{hex: !binaryIn, stdin: stdin}
			data, err := in.read(cmd, args)
			if err != nil {
				return err
			}

			out, err := canonicalize(data)
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			if binaryOut {
				_, err = w.Write(out)
				return err
			}
			_, err = fmt.Fprintln(w, hex.EncodeToString(out))
			return err
		},
	}

	cmd.Flags().BoolVar(&binaryIn, "binary-in", false, "Input is raw bytes instead of hex")
	cmd.Flags().BoolVar(&binaryOut, "binary-out", false, "Write raw bytes instead of hex")
	cmd.Flags().BoolVar(&stdin, "stdin", false, "Read input from stdin")
	return cmd
}

// canonicalize decodes every top-level TLV in data and encodes them again.
func canonicalize(data []byte) ([]byte, error) {
	tree, err := ber.DecodeTree(data, ber.DefaultDecoderOptions())
	if err != nil {
		return nil, err
	}
	var out []byte
	for _, root := range tree.Roots() {
		b, err := ber.Encode(tree, root)
		if err != nil {
			return nil, err
		}
		out = append(out, b...)
	}
	return out, nil
}

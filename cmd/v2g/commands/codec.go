package commands

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/backkem/v2g/pkg/exi"
	"github.com/backkem/v2g/pkg/grammar"
	"github.com/backkem/v2g/pkg/v2gtp"
)

var (
	phaseName string
	framed    bool
)

// elementCodec builds an untyped codec from the loaded configuration.
func elementCodec() (*exi.Codec[*exi.Element], *grammar.Resolver, error) {
	r, err := appCfg.Resolver()
	if err != nil {
		return nil, nil, err
	}
	c, err := exi.NewCodec(exi.CodecConfig[*exi.Element]{
		Resolver:      r,
		Binder:        exi.ElementBinder{},
		Options:       appCfg.Options(),
		LoggerFactory: appCfg.LoggerFactory(),
	})
	if err != nil {
		return nil, nil, err
	}
	return c, r, nil
}

// readInput reads a file, or stdin for "-".
func readInput(cmd *cobra.Command, name string) ([]byte, error) {
	if name == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	return os.ReadFile(name)
}

func addCodecFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&phaseName, "phase", "main", "schema phase (handshake or main)")
	cmd.Flags().BoolVar(&framed, "v2gtp", false, "wrap or unwrap a V2GTP frame")
}

// encode: YAML document to hex.
func encodeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "encode FILE",
		Short: "Encode a YAML document (FILE or - for stdin) to hex",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			phase, err := grammar.ParsePhase(phaseName)
			if err != nil {
				return err
			}
			codec, r, err := elementCodec()
			if err != nil {
				return err
			}
			schema, err := r.Resolve(phase)
			if err != nil {
				return err
			}

			in, err := readInput(cmd, args[0])
			if err != nil {
				return err
			}
			doc, err := readDocument(bytes.NewReader(in), schema)
			if err != nil {
				return err
			}
			data, err := codec.Encode(doc, phase)
			if err != nil {
				return err
			}
			if framed {
				data = v2gtp.Encode(data)
			}
			fmt.Fprintln(cmd.OutOrStdout(), hex.EncodeToString(data))
			return nil
		},
	}
	addCodecFlags(cmd)
	return cmd
}

// decode: hex to YAML document.
func decodeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "decode HEX",
		Short: "Decode hex (or - for stdin) to a YAML document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			phase, err := grammar.ParsePhase(phaseName)
			if err != nil {
				return err
			}
			codec, _, err := elementCodec()
			if err != nil {
				return err
			}

			text := []byte(args[0])
			if args[0] == "-" {
				if text, err = readInput(cmd, "-"); err != nil {
					return err
				}
			}
			data, err := hex.DecodeString(strings.Join(strings.Fields(string(text)), ""))
			if err != nil {
				return fmt.Errorf("decode hex: %w", err)
			}
			if framed {
				f, err := v2gtp.Decode(data)
				if err != nil {
					return err
				}
				if f.Type != v2gtp.PayloadEXI {
					return fmt.Errorf("unexpected payload type %s", f.Type)
				}
				data = f.Payload
			}

			doc, err := codec.Decode(data, phase)
			if err != nil {
				return err
			}
			return writeDocument(cmd.OutOrStdout(), doc)
		},
	}
	addCodecFlags(cmd)
	return cmd
}

// schemas: phase, name, namespace and fingerprint per schema.
func schemasCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schemas",
		Short: "List the loaded schemas",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := appCfg.Resolver()
			if err != nil {
				return err
			}
			for _, p := range []grammar.Phase{grammar.PhaseHandshake, grammar.PhaseMainExchange} {
				s, err := r.Resolve(p)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%-12s %-12s %s %s\n", p, s.Name(), s.Fingerprint(), s.Namespace())
			}
			return nil
		},
	}
}

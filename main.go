// nxcrypt - Decrypt console content archive and game-card headers
//
// Usage:
//
//	nxcrypt header  --header-key HEX <nca>
//	nxcrypt keyarea --header-key HEX --key-area-key HEX <nca>
//	nxcrypt section --header-key HEX --key-area-key HEX [--index N] <nca>
//	nxcrypt xci     --xci-header-key HEX <xci>
//	nxcrypt ctr     --key HEX --nonce HEX [--offset N] [--size N] <file>
//	nxcrypt detect  [--header-key HEX] <file>
//
// Keys may also come from a YAML file given with --keys; flags win.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/lvdlvd/nxcrypt/block"
	"github.com/lvdlvd/nxcrypt/cmd"
	"github.com/lvdlvd/nxcrypt/ctr"
	"github.com/lvdlvd/nxcrypt/detect"
	"github.com/lvdlvd/nxcrypt/nca"
	"github.com/lvdlvd/nxcrypt/xci"
)

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "nxcrypt: %v\n", err)
		os.Exit(1)
	}
}

// app carries the global flags and the logger shared by all commands.
type app struct {
	stdout, stderr io.Writer
	log            *logrus.Logger

	keysFile string
	logLevel string
	jsonOut  bool
	flagKeys cmd.Keys
}

func run(args []string, stdout, stderr io.Writer) error {
	a := &app{stdout: stdout, stderr: stderr, log: logrus.New()}
	a.log.SetOutput(stderr)

	root := a.rootCmd()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	return root.Execute()
}

func (a *app) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "nxcrypt",
		Short:         "Decrypt console content archive and game-card headers",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			level, err := logrus.ParseLevel(a.logLevel)
			if err != nil {
				return err
			}
			a.log.SetLevel(level)
			return nil
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.keysFile, "keys", "", "YAML file with hex keys (header_key, key_area_key, xci_header_key)")
	pf.StringVar(&a.logLevel, "log-level", "warning", "log level (debug, info, warning, error)")
	pf.BoolVar(&a.jsonOut, "json", false, "output in JSON format")

	root.AddCommand(
		a.headerCmd(),
		a.keyAreaCmd(),
		a.sectionCmd(),
		a.xciCmd(),
		a.ctrCmd(),
		a.detectCmd(),
	)
	return root
}

func (a *app) keys() (cmd.Keys, error) {
	var k cmd.Keys
	if a.keysFile != "" {
		loaded, err := cmd.LoadKeys(a.keysFile)
		if err != nil {
			return k, err
		}
		a.log.WithField("file", a.keysFile).Debug("loaded keys file")
		k = *loaded
	}
	return k.Merge(a.flagKeys), nil
}

func (a *app) printOpts() cmd.PrintOptions {
	return cmd.PrintOptions{JSON: a.jsonOut}
}

func (a *app) headerKeyFlag(c *cobra.Command) {
	c.Flags().StringVar(&a.flagKeys.HeaderKey, "header-key", "", "32-byte XTS header key (hex)")
}

func (a *app) keyAreaKeyFlag(c *cobra.Command) {
	c.Flags().StringVar(&a.flagKeys.KeyAreaKey, "key-area-key", "", "16-byte key-area key (hex)")
}

func (a *app) readHeader(path string) (*os.File, *nca.Header, cmd.Keys, error) {
	keys, err := a.keys()
	if err != nil {
		return nil, nil, keys, err
	}
	headerKey, err := cmd.DecodeKey("header key", keys.HeaderKey, nca.HeaderKeySize)
	if err != nil {
		return nil, nil, keys, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, nil, keys, fmt.Errorf("opening archive: %w", err)
	}
	h, err := nca.ReadHeader(f, headerKey)
	if err != nil {
		f.Close()
		return nil, nil, keys, fmt.Errorf("%s: %w", path, err)
	}
	a.log.WithFields(logrus.Fields{
		"file":    path,
		"program": fmt.Sprintf("%016x", h.ProgramID),
		"type":    h.ContentType.String(),
	}).Info("decrypted header")
	return f, h, keys, nil
}

func (a *app) headerCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "header <nca>",
		Short: "Decrypt a content archive header and print its fields",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			f, h, _, err := a.readHeader(args[0])
			if err != nil {
				return err
			}
			defer f.Close()
			return cmd.Header(h, a.stdout, a.printOpts())
		},
	}
	a.headerKeyFlag(c)
	return c
}

func (a *app) decryptKeyArea(h *nca.Header, keys cmd.Keys) ([][]byte, error) {
	if h.HasRightsID() {
		return nil, fmt.Errorf("archive uses a rights ID; its key area is unused")
	}
	kak, err := cmd.DecodeKey("key area key", keys.KeyAreaKey, block.KeySize)
	if err != nil {
		return nil, err
	}
	return h.DecryptKeyArea(kak)
}

func (a *app) keyAreaCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "keyarea <nca>",
		Short: "Decrypt the key area of a content archive",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			f, h, keys, err := a.readHeader(args[0])
			if err != nil {
				return err
			}
			defer f.Close()
			area, err := a.decryptKeyArea(h, keys)
			if err != nil {
				return err
			}
			return cmd.KeyArea(area, a.stdout, a.printOpts())
		},
	}
	a.headerKeyFlag(c)
	a.keyAreaKeyFlag(c)
	return c
}

// ctrKeyIndex is the key-area slot holding the AES-CTR section key.
const ctrKeyIndex = 2

func (a *app) sectionCmd() *cobra.Command {
	var index int
	c := &cobra.Command{
		Use:   "section <nca>",
		Short: "Decrypt one section of a content archive to stdout",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			f, h, keys, err := a.readHeader(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			if index < 0 || index >= nca.SectionCount {
				return fmt.Errorf("%w: %d", nca.ErrNoSection, index)
			}
			var key []byte
			if h.SectionHeaders[index].EncryptionType != nca.EncryptionNone {
				area, err := a.decryptKeyArea(h, keys)
				if err != nil {
					return err
				}
				key = area[ctrKeyIndex]
			}
			sr, err := h.OpenSection(f, index, key)
			if err != nil {
				return err
			}
			a.log.WithFields(logrus.Fields{"section": index, "size": sr.Size()}).Debug("streaming section")
			return cmd.Stream(sr, 0, sr.Size(), a.stdout)
		},
	}
	a.headerKeyFlag(c)
	a.keyAreaKeyFlag(c)
	c.Flags().IntVar(&index, "index", 0, "section index (0-3)")
	return c
}

func (a *app) xciCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "xci <xci>",
		Short: "Decrypt the encrypted region of a game-card header",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			keys, err := a.keys()
			if err != nil {
				return err
			}
			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("opening image: %w", err)
			}
			defer f.Close()

			buf := make([]byte, xci.HeaderSize)
			if _, err := io.ReadFull(f, buf); err != nil {
				return fmt.Errorf("reading card header: %w", err)
			}
			h, err := xci.ParseCardHeader(buf)
			if err != nil {
				return err
			}

			var enc *xci.EncryptedHeader
			if keys.XCIHeaderKey != "" {
				key, err := cmd.DecodeKey("xci header key", keys.XCIHeaderKey, block.KeySize)
				if err != nil {
					return err
				}
				if enc, err = h.DecryptEncrypted(key); err != nil {
					return err
				}
			} else {
				a.log.Warn("no xci header key; encrypted region left undecrypted")
			}
			return cmd.Card(h, enc, a.stdout, a.printOpts())
		},
	}
	c.Flags().StringVar(&a.flagKeys.XCIHeaderKey, "xci-header-key", "", "16-byte card header key (hex)")
	return c
}

func (a *app) ctrCmd() *cobra.Command {
	var keyHex, nonceHex string
	var offset, size int64
	c := &cobra.Command{
		Use:   "ctr <file>",
		Short: "Decrypt an AES-CTR region of a file to stdout",
		Long: `The ctr command decrypts size bytes at offset. Offsets are absolute
within the file and select the counter block, so any region can be
decrypted without the bytes before it.`,
		Args: cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			key, err := cmd.DecodeKey("key", keyHex, block.KeySize)
			if err != nil {
				return err
			}
			nonce, err := cmd.DecodeKey("nonce", nonceHex, ctr.NonceSize)
			if err != nil {
				return err
			}

			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("opening file: %w", err)
			}
			defer f.Close()

			if size < 0 {
				info, err := f.Stat()
				if err != nil {
					return fmt.Errorf("stat file: %w", err)
				}
				size = info.Size() - offset
			}

			cur, err := ctr.New(key, nonce, offset)
			if err != nil {
				return err
			}
			a.log.WithFields(logrus.Fields{"file": args[0], "offset": offset, "size": size}).Debug("decrypting ctr region")
			return cmd.Stream(ctr.NewReaderAt(f, cur), offset, size, a.stdout)
		},
	}
	c.Flags().StringVar(&keyHex, "key", "", "16-byte AES key (hex)")
	c.Flags().StringVar(&nonceHex, "nonce", "", "8-byte counter nonce (hex)")
	c.Flags().Int64Var(&offset, "offset", 0, "absolute start offset")
	c.Flags().Int64Var(&size, "size", -1, "bytes to decrypt (default: to end of file)")
	return c
}

func (a *app) detectCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "detect <file>",
		Short: "Identify the container type of a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			keys, err := a.keys()
			if err != nil {
				return err
			}
			var headerKey []byte
			if keys.HeaderKey != "" {
				if headerKey, err = cmd.DecodeKey("header key", keys.HeaderKey, nca.HeaderKeySize); err != nil {
					return err
				}
			}

			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("opening file: %w", err)
			}
			defer f.Close()

			t, err := detect.Detect(f, headerKey)
			if err != nil {
				return fmt.Errorf("detecting container: %w", err)
			}
			fmt.Fprintf(a.stdout, "%s\n", t)
			return nil
		},
	}
	a.headerKeyFlag(c)
	return c
}

package main

import (
	"errors"
	"fmt"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/Lazizjon-web-dev/medchain/cmd/flags"
	"github.com/Lazizjon-web-dev/medchain/cryptoutils"
	"github.com/Lazizjon-web-dev/medchain/interfaces"
	"github.com/Lazizjon-web-dev/medchain/keymgmt"
	"github.com/Lazizjon-web-dev/medchain/ledger"
	"github.com/Lazizjon-web-dev/medchain/storage"
)

var ledgerFileFlag = &cli.StringFlag{
	Name:  "ledger-file",
	Value: "medchain.ledger.json",
	Usage: "path to the JSON ledger snapshot",
}

var recordRefFlag = &cli.StringFlag{
	Name:  "record-ref",
	Usage: "record reference as a 64-char hex string (alternative to --record-owner/--record-id)",
}

var recordOwnerFlag = &cli.StringFlag{
	Name:  "record-owner",
	Usage: "owning principal id, combined with --record-id to derive the record reference",
}

var recordIDFlag = &cli.Uint64Flag{
	Name:  "record-id",
	Usage: "record sequence number for the owner",
}

func main() {
	app := &cli.App{
		Name:  "medchain-cli",
		Usage: "Operator tool for encrypted medical records",
		Flags: []cli.Flag{
			flags.StorageFlag,
			ledgerFileFlag,
			flags.LogJsonFlag,
			flags.LogDebugFlag,
			flags.LogUidFlag,
			flags.LogServiceFlag,
		},
		Commands: []*cli.Command{
			keygenCommand(),
			sealCommand(),
			openCommand(),
			grantCommand(),
			rotateCommand(),
			revokeCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

// setupService wires a key management service from the global flags.
func setupService(cCtx *cli.Context) (*keymgmt.Service, *slog.Logger, error) {
	logger := flags.SetupLogger(cCtx)

	storageURIs := cCtx.StringSlice(flags.StorageFlag.Name)
	locations := make([]interfaces.StorageBackendLocation, 0, len(storageURIs))
	for _, uri := range storageURIs {
		locations = append(locations, interfaces.StorageBackendLocation(uri))
	}

	blobs, err := storage.NewFactory(logger).CreateMultiBackend(locations)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create storage backends: %w", err)
	}

	authLedger, err := ledger.NewFileLedger(cCtx.String(ledgerFileFlag.Name), logger)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open ledger file: %w", err)
	}

	return keymgmt.New(authLedger, blobs, logger), logger, nil
}

func resolveRecordRef(cCtx *cli.Context) (interfaces.RecordRef, error) {
	if hexRef := cCtx.String(recordRefFlag.Name); hexRef != "" {
		return interfaces.NewRecordRefFromHex(hexRef)
	}

	owner := cCtx.String(recordOwnerFlag.Name)
	if owner == "" {
		return interfaces.RecordRef{}, errors.New("either --record-ref or --record-owner/--record-id is required")
	}
	return interfaces.ComputeRecordRef(interfaces.PrincipalID(owner), cCtx.Uint64(recordIDFlag.Name)), nil
}

// parsePrincipalKeys parses repeated "principal=pubkey-file" arguments.
func parsePrincipalKeys(pairs []string) (map[interfaces.PrincipalID]interfaces.PublicKey, error) {
	keys := make(map[interfaces.PrincipalID]interfaces.PublicKey, len(pairs))
	for _, pair := range pairs {
		principal, keyFile, ok := strings.Cut(pair, "=")
		if !ok {
			return nil, fmt.Errorf("invalid principal=keyfile pair: %q", pair)
		}

		pub, err := os.ReadFile(keyFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read public key for %s: %w", principal, err)
		}
		keys[interfaces.PrincipalID(principal)] = interfaces.PublicKey(pub)
	}
	return keys, nil
}

func keygenCommand() *cli.Command {
	return &cli.Command{
		Name:  "keygen",
		Usage: "Generate a principal key pair as PEM files",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "name", Value: "medchain", Usage: "base name for the key files"},
			&cli.StringFlag{Name: "out", Value: ".", Usage: "output directory"},
		},
		Action: func(cCtx *cli.Context) error {
			kp, err := cryptoutils.GenerateKeyPair()
			if err != nil {
				return err
			}

			name := cCtx.String("name")
			outDir := cCtx.String("out")
			pubPath := filepath.Join(outDir, name+".pub.pem")
			privPath := filepath.Join(outDir, name+".key.pem")

			if err := os.WriteFile(pubPath, kp.Public, 0644); err != nil {
				return fmt.Errorf("failed to write public key: %w", err)
			}
			if err := os.WriteFile(privPath, kp.Private, 0600); err != nil {
				return fmt.Errorf("failed to write private key: %w", err)
			}

			keyID, err := interfaces.NewKeyID(kp.Public)
			if err != nil {
				return err
			}
			fmt.Printf("public key:  %s\nprivate key: %s\nkey id:      %s\n", pubPath, privPath, keyID)
			return nil
		},
	}
}

func sealCommand() *cli.Command {
	return &cli.Command{
		Name:  "seal",
		Usage: "Encrypt and register a new record",
		Flags: []cli.Flag{
			recordOwnerFlag, recordIDFlag,
			&cli.StringFlag{Name: "content", Required: true, Usage: "plaintext file to seal"},
			&cli.StringFlag{Name: "owner-pub", Required: true, Usage: "owner public key PEM file"},
			&cli.StringSliceFlag{Name: "recipient", Usage: "initial recipient as principal=pubkey-file; repeatable"},
		},
		Action: func(cCtx *cli.Context) error {
			svc, _, err := setupService(cCtx)
			if err != nil {
				return err
			}

			ref, err := resolveRecordRef(cCtx)
			if err != nil {
				return err
			}

			content, err := os.ReadFile(cCtx.String("content"))
			if err != nil {
				return fmt.Errorf("failed to read content: %w", err)
			}
			ownerPub, err := os.ReadFile(cCtx.String("owner-pub"))
			if err != nil {
				return fmt.Errorf("failed to read owner public key: %w", err)
			}
			recipients, err := parsePrincipalKeys(cCtx.StringSlice("recipient"))
			if err != nil {
				return err
			}

			doc, grants, err := svc.SealNew(cCtx.Context, ref, content, interfaces.PublicKey(ownerPub), recipients)
			if err != nil {
				return err
			}

			fmt.Printf("record ref:  %s\ncontent ref: %s\nkey version: %d\ngrants:      %d\n",
				doc.RecordRef, doc.ContentRef, doc.KeyVersion, len(grants))
			return nil
		},
	}
}

func openCommand() *cli.Command {
	return &cli.Command{
		Name:  "open",
		Usage: "Decrypt a record",
		Flags: []cli.Flag{
			recordRefFlag, recordOwnerFlag, recordIDFlag,
			&cli.StringFlag{Name: "key", Required: true, Usage: "private key PEM file"},
			&cli.StringFlag{Name: "out", Usage: "write plaintext to this file instead of stdout"},
		},
		Action: func(cCtx *cli.Context) error {
			svc, _, err := setupService(cCtx)
			if err != nil {
				return err
			}

			ref, err := resolveRecordRef(cCtx)
			if err != nil {
				return err
			}
			priv, err := os.ReadFile(cCtx.String("key"))
			if err != nil {
				return fmt.Errorf("failed to read private key: %w", err)
			}

			content, err := svc.Open(cCtx.Context, ref, interfaces.PrivateKey(priv))
			if err != nil {
				return err
			}

			if out := cCtx.String("out"); out != "" {
				return os.WriteFile(out, content, 0600)
			}
			_, err = os.Stdout.Write(content)
			return err
		},
	}
}

func grantCommand() *cli.Command {
	return &cli.Command{
		Name:  "grant",
		Usage: "Authorize a recipient for a record without rotating it",
		Flags: []cli.Flag{
			recordRefFlag, recordOwnerFlag, recordIDFlag,
			&cli.StringFlag{Name: "recipient", Required: true, Usage: "recipient principal id"},
			&cli.StringFlag{Name: "recipient-pub", Required: true, Usage: "recipient public key PEM file"},
			&cli.StringFlag{Name: "owner-key", Required: true, Usage: "owner private key PEM file"},
			&cli.DurationFlag{Name: "ttl", Usage: "grant lifetime; zero means the grant never expires"},
		},
		Action: func(cCtx *cli.Context) error {
			svc, _, err := setupService(cCtx)
			if err != nil {
				return err
			}

			ref, err := resolveRecordRef(cCtx)
			if err != nil {
				return err
			}
			recipientPub, err := os.ReadFile(cCtx.String("recipient-pub"))
			if err != nil {
				return fmt.Errorf("failed to read recipient public key: %w", err)
			}
			ownerPriv, err := os.ReadFile(cCtx.String("owner-key"))
			if err != nil {
				return fmt.Errorf("failed to read owner private key: %w", err)
			}

			grant, err := svc.Grant(cCtx.Context, ref,
				interfaces.PrincipalID(cCtx.String("recipient")),
				interfaces.PublicKey(recipientPub),
				interfaces.PrivateKey(ownerPriv),
				cCtx.Duration("ttl"))
			if err != nil {
				return err
			}

			fmt.Printf("granted %s at key version %d\n", grant.RecipientID, grant.KeyVersion)
			if !grant.ExpiresAt.IsZero() {
				fmt.Printf("expires: %s\n", grant.ExpiresAt.Format(time.RFC3339))
			}
			return nil
		},
	}
}

func rotateCommand() *cli.Command {
	return &cli.Command{
		Name:  "rotate",
		Usage: "Advance a record to a fresh key generation",
		Flags: []cli.Flag{
			recordRefFlag, recordOwnerFlag, recordIDFlag,
			&cli.StringFlag{Name: "owner-pub", Required: true, Usage: "owner public key PEM file"},
			&cli.StringFlag{Name: "owner-key", Required: true, Usage: "owner private key PEM file"},
			&cli.StringFlag{Name: "content", Usage: "replacement plaintext file; omit to keep the current content"},
			&cli.StringSliceFlag{Name: "retain", Usage: "recipient keeping access as principal=pubkey-file; repeatable"},
		},
		Action: func(cCtx *cli.Context) error {
			svc, logger, err := setupService(cCtx)
			if err != nil {
				return err
			}

			ref, err := resolveRecordRef(cCtx)
			if err != nil {
				return err
			}
			ownerPub, err := os.ReadFile(cCtx.String("owner-pub"))
			if err != nil {
				return fmt.Errorf("failed to read owner public key: %w", err)
			}
			ownerPriv, err := os.ReadFile(cCtx.String("owner-key"))
			if err != nil {
				return fmt.Errorf("failed to read owner private key: %w", err)
			}
			retained, err := parsePrincipalKeys(cCtx.StringSlice("retain"))
			if err != nil {
				return err
			}

			var newContent []byte
			if contentFile := cCtx.String("content"); contentFile != "" {
				newContent, err = os.ReadFile(contentFile)
				if err != nil {
					return fmt.Errorf("failed to read replacement content: %w", err)
				}
			}

			result, err := svc.Rotate(cCtx.Context, keymgmt.RotationRequest{
				RecordRef:  ref,
				NewContent: newContent,
				Retained:   retained,
				Owner: interfaces.KeyPair{
					Public:  interfaces.PublicKey(ownerPub),
					Private: interfaces.PrivateKey(ownerPriv),
				},
			})

			var partial *keymgmt.PartialRotationError
			if errors.As(err, &partial) {
				// The record is already on the new generation; finish the
				// failed recipients instead of rerunning the rotation.
				logger.Warn("Rotation incomplete, retrying failed recipients",
					"succeeded", len(partial.Succeeded), "failed", len(partial.Failed))
				if _, retryErr := svc.PropagatePending(cCtx.Context, partial); retryErr != nil {
					return fmt.Errorf("rotation still incomplete, rerun rotate to converge: %w", retryErr)
				}
				err = nil
			}
			if err != nil {
				return err
			}

			fmt.Printf("record ref:  %s\ncontent ref: %s\nkey version: %d\n",
				result.Envelope.RecordRef, result.Envelope.ContentRef, result.Envelope.KeyVersion)
			return nil
		},
	}
}

func revokeCommand() *cli.Command {
	return &cli.Command{
		Name:  "revoke",
		Usage: "Remove a recipient's access grant",
		Flags: []cli.Flag{
			recordRefFlag, recordOwnerFlag, recordIDFlag,
			&cli.StringFlag{Name: "recipient", Required: true, Usage: "recipient principal id"},
		},
		Action: func(cCtx *cli.Context) error {
			svc, _, err := setupService(cCtx)
			if err != nil {
				return err
			}

			ref, err := resolveRecordRef(cCtx)
			if err != nil {
				return err
			}

			recipient := interfaces.PrincipalID(cCtx.String("recipient"))
			if err := svc.Revoke(cCtx.Context, ref, recipient); err != nil {
				return err
			}

			// Revocation removes the ledger entry only; the recipient may
			// still hold previously fetched ciphertext and key material.
			// Rotate without them in the retained set to re-key the record.
			fmt.Printf("revoked %s from %s\n", recipient, ref)
			return nil
		},
	}
}

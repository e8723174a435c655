package cli

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
)

func cmdGenKey() *cli.Command {
	return &cli.Command{
		Name:  "genkey",
		Usage: "Generate a random encryption key for --encryption-key",
		Action: func(ctx context.Context, c *cli.Command) error {
			key := make([]byte, 32)
			if _, err := rand.Read(key); err != nil {
				return goerr.Wrap(err, "failed to generate random key")
			}

			fmt.Fprintln(c.Writer, hex.EncodeToString(key))
			return nil
		},
	}
}

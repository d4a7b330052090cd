package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jamesainslie/sift/pkg/sift/digest"
)

var hashCmd = &cobra.Command{
	Use:   "hash <file>...",
	Short: "Print the SHA-256 digest of files",
	Long: `Print the SHA-256 digest of each file in the same form as sha256sum, ready
to pass to --hash.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runHash,
}

func init() {
	rootCmd.AddCommand(hashCmd)
}

func runHash(cmd *cobra.Command, args []string) error {
	chunk, err := cfg.ChunkSizeBytes()
	if err != nil {
		return err
	}
	d := digest.NewSHA256(chunk)

	failed := 0
	for _, path := range args {
		sum, err := d.Digest(path)
		if err != nil {
			printError("%v", err)
			failed++
			continue
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s  %s\n", sum, path)
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d files could not be hashed", failed, len(args))
	}
	return nil
}

package main

import (
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra/doc"

	"github.com/lu-zhengda/avscan/internal/cli"
)

func main() {
	dir := "./docs/man"
	if err := os.MkdirAll(dir, 0o755); err != nil {
		log.Fatal().Err(err).Str("dir", dir).Msg("failed to create man page directory")
	}
	header := &doc.GenManHeader{
		Title:   "AVSCAN",
		Section: "1",
	}
	if err := doc.GenManTree(cli.RootCmd(), header, dir); err != nil {
		log.Fatal().Err(err).Msg("failed to generate man pages")
	}
}

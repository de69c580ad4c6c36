// Command catalogctl administers a product catalog over its REST API.
package main

import (
	"os"
	"time"

	"github.com/erauner12/catalog-admin/internal/cli"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	zerolog.TimeFieldFormat = time.RFC3339Nano
	log.Logger = log.With().Str("service", "catalogctl").Logger()

	os.Exit(cli.Execute())
}

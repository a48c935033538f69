// Command liftmaild runs the liftmail daemon. It is equivalent to
// `liftmail serve` and reads its configuration from LIFTMAIL_CONFIG or the
// default search path.
package main

import (
	"context"
	"errors"
	"io/fs"
	"log"
	"os"

	"github.com/joho/godotenv"

	"liftmail/internal/config"
	"liftmail/internal/daemonrun"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Fatalf("load .env: %v", err)
	}

	cfg, _, _, err := config.Load(os.Getenv("LIFTMAIL_CONFIG"))
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	if err := daemonrun.Run(context.Background(), cfg, daemonrun.Options{}); err != nil {
		log.Fatalf("liftmaild: %v", err)
	}
}

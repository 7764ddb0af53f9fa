package storage

import (
	"context"
	"fmt"

	"github.com/levenlabs/go-lflag"
)

// provider is a backend that is configured from flags before use.
type provider interface {
	Database
	Validate() error
	Init(ctx context.Context) error
}

// Configured sets up the Storage provider based on flags.
func Configured() Database {
	name := lflag.String("storage-provider", "firestore", "Storage provider to use (available: firestore, postgres, mqtt, memory)")

	var p struct{ Database }

	providers := map[string]provider{
		"firestore": configuredFirestore(),
		"postgres":  configuredPostgres(),
		"mqtt":      configuredMQTT(),
	}

	lflag.Do(func() {
		if *name == "memory" {
			p.Database = NewMemory()
			return
		}
		pr, ok := providers[*name]
		if !ok {
			panic(fmt.Sprintf("unknown storage provider: %s", *name))
		}
		if err := pr.Validate(); err != nil {
			panic(fmt.Sprintf("%s validation failed: %v", *name, err))
		}
		p.Database = pr
		if err := pr.Init(context.Background()); err != nil {
			panic(fmt.Sprintf("%s init failed: %v", *name, err))
		}
	})

	return &p
}

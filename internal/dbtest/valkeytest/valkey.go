package valkeytest

import (
	"context"
	"net"

	"github.com/docker/go-connections/nat"
	"github.com/openkcm/common-sdk/pkg/commoncfg"
	"github.com/valkey-io/valkey-go"

	valkeycontainer "github.com/testcontainers/testcontainers-go/modules/valkey"
	slogctx "github.com/veqryn/slog-context"

	"github.com/openkcm/session-client/internal/config"
)

const image = "valkey/valkey:8-alpine"

// Start initialises a ValKey instance and returns a client, the mapped port, and termination function.
func Start(ctx context.Context) (valkey.Client, nat.Port, func(ctx context.Context)) {
	valkeyContainer, err := valkeycontainer.Run(ctx, image)
	if err != nil {
		slogctx.Error(ctx, "Failed to start ValKey container", "error", err)
		panic(err)
	}

	port, err := valkeyContainer.MappedPort(ctx, nat.Port("6379"))
	if err != nil {
		slogctx.Error(ctx, "Failed to map a port for the ValKey container", "error", err)
		panic(err)
	}

	client, err := valkey.NewClient(valkey.ClientOption{
		InitAddress: []string{address(port)},
	})
	if err != nil {
		slogctx.Error(ctx, "Failed to initialise a ValKey client", "error", err)
		panic(err)
	}

	terminate := func(ctx context.Context) {
		client.Close()

		err := valkeyContainer.Terminate(ctx)
		if err != nil {
			slogctx.Error(ctx, "Failed to terminate ValKey container", "error", err)
			panic(err)
		}
	}

	return client, port, terminate
}

// Config returns a keystore configuration pointing at the container on port.
func Config(port nat.Port, prefix string) config.ValKey {
	return config.ValKey{
		Host:     commoncfg.SourceRef{Source: "embedded", Value: address(port)},
		User:     commoncfg.SourceRef{Source: "embedded", Value: ""},
		Password: commoncfg.SourceRef{Source: "embedded", Value: ""},
		Prefix:   prefix,
	}
}

func address(port nat.Port) string {
	return net.JoinHostPort("localhost", port.Port())
}

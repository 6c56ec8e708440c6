package cmdutils

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/openkcm/common-sdk/pkg/health"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openkcm/session-client/internal/config"
)

func passThrough(ctx context.Context, fn BusinessFunc, cfg *config.Config, inv Invocation) error {
	return fn(ctx, cfg, inv)
}

func staticConfig(cfg *config.Config, err error) ConfigLoader {
	return func(string) (*config.Config, error) { return cfg, err }
}

func TestCobraCommand(t *testing.T) {
	t.Run("creates command with correct properties", func(t *testing.T) {
		businessFunc := func(context.Context, *config.Config, Invocation) error {
			return nil
		}

		cmd := CobraCommand("test-cmd", "short desc", "long description", "v1.0.0", passThrough, businessFunc)

		assert.Equal(t, "test-cmd", cmd.Use)
		assert.Equal(t, "short desc", cmd.Short)
		assert.Equal(t, "long description", cmd.Long)
		assert.NotNil(t, cmd.RunE)
	})

	t.Run("RunE returns error when config loading fails", func(t *testing.T) {
		called := false
		businessFunc := func(context.Context, *config.Config, Invocation) error {
			called = true
			return nil
		}

		cmd := cobraCommand("test", "short", "long", "v1.0.0",
			staticConfig(nil, errors.New("no config file")), passThrough, businessFunc)
		cmd.SetArgs([]string{})

		err := cmd.Execute()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "loading config")
		assert.False(t, called)
	})

	t.Run("RunE passes arguments and output", func(t *testing.T) {
		cfg := &config.Config{API: config.API{BaseURL: "https://api.school.example.com"}}

		var got Invocation
		var gotCfg *config.Config
		businessFunc := func(_ context.Context, c *config.Config, inv Invocation) error {
			gotCfg = c
			got = inv
			_, err := fmt.Fprint(inv.Out, "done")
			return err
		}

		var out bytes.Buffer
		cmd := cobraCommand("test", "short", "long", "v1.0.0", staticConfig(cfg, nil), passThrough, businessFunc)
		cmd.SetOut(&out)
		cmd.SetArgs([]string{"GET", "/students"})

		require.NoError(t, cmd.Execute())
		assert.Same(t, cfg, gotCfg)
		assert.Equal(t, []string{"GET", "/students"}, got.Args)
		assert.Equal(t, "done", out.String())
	})

	t.Run("RunE returns error when wrapper function fails", func(t *testing.T) {
		businessFunc := func(context.Context, *config.Config, Invocation) error {
			return nil
		}

		wrapperErr := errors.New("wrapper error")
		wrapperFunc := func(context.Context, BusinessFunc, *config.Config, Invocation) error {
			return wrapperErr
		}

		cmd := cobraCommand("test", "short", "long", "v1.0.0", staticConfig(&config.Config{}, nil), wrapperFunc, businessFunc)
		cmd.SetArgs([]string{})

		err := cmd.Execute()
		assert.ErrorIs(t, err, wrapperErr)
		assert.Contains(t, err.Error(), "running test")
	})
}

func TestStatusListener(t *testing.T) {
	t.Run("handles empty state", func(t *testing.T) {
		ctx := context.Background()
		state := health.State{
			Status:     "up",
			CheckState: map[string]health.CheckState{},
		}

		assert.NotPanics(t, func() {
			statusListener(ctx, state)
		})
	})

	t.Run("handles state with multiple check states", func(t *testing.T) {
		ctx := context.Background()
		state := health.State{
			Status: "degraded",
			CheckState: map[string]health.CheckState{
				"keystore": {
					Status: "up",
					Result: nil,
				},
				"api": {
					Status: "down",
					Result: errors.New("connection refused"),
				},
			},
		}

		assert.NotPanics(t, func() {
			statusListener(ctx, state)
		})
	})
}

func TestHealthStatusTimeout(t *testing.T) {
	t.Run("has correct value", func(t *testing.T) {
		assert.Equal(t, 5*time.Second, healthStatusTimeout)
	})
}

func ExampleCobraCommand() {
	businessFunc := func(ctx context.Context, cfg *config.Config, inv Invocation) error {
		fmt.Println("Running business logic")
		return nil
	}

	wrapperFunc := func(ctx context.Context, fn BusinessFunc, cfg *config.Config, inv Invocation) error {
		fmt.Println("Wrapper function called")
		return fn(ctx, cfg, inv)
	}

	cmd := CobraCommand(
		"example",
		"Example command",
		"This is an example of how to use CobraCommand",
		"v1.0.0",
		wrapperFunc,
		businessFunc,
	)

	fmt.Printf("Command use: %s\n", cmd.Use)
	// Output: Command use: example
}

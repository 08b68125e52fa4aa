package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/nextlevelbuilder/botgate/internal/config"
	"github.com/nextlevelbuilder/botgate/pkg/client"
)

const callTimeout = 30 * time.Second

// dialGateway connects to the running gateway using the configured
// host/port/token.
func dialGateway(ctx context.Context) (*client.Client, *config.Config, error) {
	cfg, err := config.Load(resolveConfigPath())
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}

	addr := fmt.Sprintf("%s:%d", cfg.Gateway.Host, cfg.Gateway.Port)
	c, err := client.Dial(ctx, addr, client.Options{
		Token:      cfg.Gateway.Token,
		ClientName: "botgate-cli",
	})
	if err != nil {
		return nil, nil, fmt.Errorf("connect to gateway at %s: %w (is it running?)", addr, err)
	}
	return c, cfg, nil
}

// callAndPrint runs one RPC and pretty-prints the result.
func callAndPrint(method string, params interface{}) {
	ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
	defer cancel()

	c, _, err := dialGateway(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer c.Close()

	result, err := c.Call(ctx, method, params)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	var pretty interface{}
	if err := json.Unmarshal(result, &pretty); err == nil {
		printJSON(pretty)
		return
	}
	fmt.Println(string(result))
}

func printJSON(v interface{}) {
	out, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(out))
}

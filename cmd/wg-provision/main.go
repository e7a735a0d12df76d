package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/urfave/cli/v2"

	"eduvpn.org/wg-provision/internal/config"
	"eduvpn.org/wg-provision/internal/log"
	"eduvpn.org/wg-provision/internal/provision"
	"eduvpn.org/wg-provision/internal/registry"
	"eduvpn.org/wg-provision/pkg/wgmanager"
)

// Exit code used when the registry mutation committed but the service
// reload failed. Scripts must be able to tell this apart from a clean
// failure: the peer exists and only the reload needs retrying.
const exitReloadFailed = 2

var (
	flagConfig = &cli.StringFlag{
		Name:  "config",
		Value: "/etc/wg-provision/config.toml",
		Usage: "Path to the tool configuration file",
	}
	flagRegistry = &cli.StringFlag{
		Name:  "registry",
		Usage: "Override the registry file path",
	}
	flagVerbose = &cli.BoolFlag{
		Name:  "verbose",
		Usage: "Enable debug logging",
	}
	flagOverwrite = &cli.BoolFlag{
		Name:  "overwrite",
		Usage: "Replace an existing peer with the same name without asking",
	}
	flagQR = &cli.BoolFlag{
		Name:  "qr",
		Usage: "Also print the configuration as a QR code",
	}
	flagPort = &cli.IntFlag{
		Name:  "port",
		Usage: "Listen port for the tunnel service",
	}
)

func main() {
	app := &cli.App{
		Name:  "wg-provision",
		Usage: "Provision peers for a WireGuard overlay network",
		Flags: []cli.Flag{flagConfig, flagRegistry, flagVerbose},
		Commands: []*cli.Command{
			{
				Name:   "init",
				Usage:  "Create the server registry and bring the interface up",
				Flags:  []cli.Flag{flagPort},
				Action: runInit,
			},
			{
				Name:      "add",
				Usage:     "Provision a new peer and print its configuration",
				ArgsUsage: "[name]",
				Flags:     []cli.Flag{flagOverwrite, flagQR},
				Action:    runAdd,
			},
			{
				Name:      "ingest",
				Usage:     "Register a pasted client configuration (file or - for stdin)",
				ArgsUsage: "[file]",
				Flags:     []cli.Flag{flagOverwrite},
				Action:    runIngest,
			},
			{
				Name:   "list",
				Usage:  "List registered peers",
				Action: runList,
			},
			{
				Name:      "show",
				Usage:     "Print the stored configuration of a peer",
				ArgsUsage: "name",
				Flags:     []cli.Flag{flagQR},
				Action:    runShow,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		var warning *provision.ReloadWarning
		if errors.As(err, &warning) {
			fmt.Fprintf(os.Stderr, "WARNING: %s\n%s\n", warning, warning.Remediation())
			os.Exit(exitReloadFailed)
		}
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func buildWorkflow(c *cli.Context) (*provision.Workflow, config.Config, error) {
	cfg, err := config.Load(c.String(flagConfig.Name))
	if err != nil {
		return nil, cfg, err
	}
	if path := c.String(flagRegistry.Name); path != "" {
		cfg.RegistryPath = path
	}

	pool, err := provision.NewPool(cfg.Pool.Base, cfg.Pool.Start, cfg.Pool.End)
	if err != nil {
		return nil, cfg, err
	}
	manager, err := wgmanager.New(cfg.Interface, cfg.ListenPort)
	if err != nil {
		return nil, cfg, err
	}

	workflow := &provision.Workflow{
		Registry:         registry.New(cfg.RegistryPath),
		Keys:             manager,
		Reloader:         manager,
		Input:            provision.PromptInput{},
		Pool:             pool,
		Interface:        cfg.Interface,
		Endpoint:         cfg.Endpoint,
		DNS:              cfg.DNS,
		AllowedIPs:       cfg.AllowedIPs,
		KeepaliveSeconds: cfg.KeepaliveSeconds,
		ReloadTimeout:    time.Duration(cfg.ReloadTimeoutSec) * time.Second,
		ClientDir:        cfg.ClientDir,
		Log:              log.New("provision", c.Bool(flagVerbose.Name)),
	}
	return workflow, cfg, nil
}

func runAdd(c *cli.Context) error {
	workflow, _, err := buildWorkflow(c)
	if err != nil {
		return err
	}

	name := c.Args().First()
	if name == "" {
		name, err = workflow.Input.PeerName()
		if err != nil {
			return err
		}
	}

	result, err := workflow.AddPeer(c.Context, name, c.Bool(flagOverwrite.Name))
	if result != nil {
		fmt.Println(result.ClientConfig)
		if c.Bool(flagQR.Name) {
			if qr, qrErr := provision.RenderQR(result.ClientConfig); qrErr == nil {
				fmt.Println(qr)
			}
		}
	}
	return err
}

func runIngest(c *cli.Context) error {
	workflow, _, err := buildWorkflow(c)
	if err != nil {
		return err
	}

	raw, err := readInput(c.Args().First())
	if err != nil {
		return err
	}

	result, err := workflow.IngestConfig(c.Context, raw, c.Bool(flagOverwrite.Name))
	if result != nil {
		fmt.Printf("Registered %q with address %s\n", result.Record.Name, result.Record.IP)
	}
	return err
}

func runList(c *cli.Context) error {
	workflow, _, err := buildWorkflow(c)
	if err != nil {
		return err
	}

	snap, err := workflow.Registry.Load()
	if err != nil {
		return err
	}
	for _, record := range snap.Records() {
		created := ""
		if !record.CreatedAt.IsZero() {
			created = record.CreatedAt.Format(time.RFC3339)
		}
		fmt.Printf("%-20s %-15s %-44s %s\n", record.Name, record.IP, record.PublicKey, created)
	}
	return nil
}

func runShow(c *cli.Context) error {
	_, cfg, err := buildWorkflow(c)
	if err != nil {
		return err
	}

	name := provision.SanitizeName(c.Args().First())
	if name == "" {
		return fmt.Errorf("a peer name is required")
	}
	data, err := os.ReadFile(fmt.Sprintf("%s/%s.conf", cfg.ClientDir, name))
	if err != nil {
		return fmt.Errorf("no stored configuration for %q: %w", name, err)
	}
	fmt.Println(string(data))
	if c.Bool(flagQR.Name) {
		qr, err := provision.RenderQR(string(data))
		if err != nil {
			return err
		}
		fmt.Println(qr)
	}
	return nil
}

func contextWithTimeout(c *cli.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(c.Context)
	}
	return context.WithTimeout(c.Context, d)
}

func readInput(path string) (string, error) {
	if path == "" || path == "-" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", fmt.Errorf("error reading standard input: %w", err)
		}
		return string(data), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("error reading %s: %w", path, err)
	}
	return string(data), nil
}

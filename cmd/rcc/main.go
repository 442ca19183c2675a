package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"runtime/debug"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	pflag "github.com/spf13/pflag"

	"github.com/rcc-labs/rcc/internal/adapters/deviceapi"
	logadapter "github.com/rcc-labs/rcc/internal/adapters/log"
	"github.com/rcc-labs/rcc/internal/adapters/mqtt"
	sessionrepo "github.com/rcc-labs/rcc/internal/adapters/session"
	"github.com/rcc-labs/rcc/internal/adapters/wifi"
	"github.com/rcc-labs/rcc/internal/cliconfig"
	"github.com/rcc-labs/rcc/internal/discovery"
	"github.com/rcc-labs/rcc/internal/domain"
	"github.com/rcc-labs/rcc/internal/ports"
	"github.com/rcc-labs/rcc/internal/provisioner"
)

const helpDescription = `
Provision factory-default smart relays onto your WiFi network and MQTT broker.

rcc scans for unconfigured device access points, joins each one in turn,
pushes broker and network settings, assigns sequential names and verifies
the devices come up on the broker afterwards. Progress is checkpointed per
device, so an interrupted batch can be audited and resumed.
`

var exampleUsage = strings.TrimSpace(`
  rcc scan
  rcc discover --broker-host raspberrypi
  rcc provision --broker-host 192.168.1.50 --wifi-ssid HomeNet
  rcc verify --broker-host 192.168.1.50 --verify-window 30s
`)

func getVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return "dev"
}

func main() {
	cfg := cliconfig.DefaultConfig()
	var cfgPath string
	var verbose bool

	zl := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		With().Timestamp().Logger()

	root := &cobra.Command{
		Use:           "rcc",
		Short:         "Provision smart relays onto WiFi and MQTT",
		Long:          strings.TrimSpace(helpDescription),
		Example:       exampleUsage,
		Version:       fmt.Sprintf("%s %s/%s", getVersion(), runtime.GOOS, runtime.GOARCH),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if !verbose {
				zl = zl.Level(zerolog.InfoLevel)
			}
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&cfgPath, "config", "", "config file (default $HOME/.rcc/config.toml)")
	pf.BoolVarP(&verbose, "verbose", "v", false, "debug logging")
	pf.StringVar(&cfg.BrokerHost, "broker-host", cfg.BrokerHost, "broker address or hostname hint")
	pf.IntVar(&cfg.BrokerPort, "broker-port", cfg.BrokerPort, "broker port")
	pf.StringVar(&cfg.BrokerUsername, "broker-user", cfg.BrokerUsername, "broker username")
	pf.StringVar(&cfg.BrokerPassword, "broker-pass", cfg.BrokerPassword, "broker password (prefer RCC_BROKER_PASSWORD)")
	pf.StringVar(&cfg.WiFiSSID, "wifi-ssid", cfg.WiFiSSID, "target network SSID")
	pf.StringVar(&cfg.WiFiPassword, "wifi-pass", cfg.WiFiPassword, "target network password (prefer RCC_WIFI_PASSWORD)")
	pf.StringVar(&cfg.NamePrefix, "name-prefix", cfg.NamePrefix, "assigned name prefix")
	pf.IntVar(&cfg.NameStart, "name-start", cfg.NameStart, "first number in the name sequence")
	pf.IntVar(&cfg.MaxRetries, "max-retries", cfg.MaxRetries, "attempts per device operation")
	pf.DurationVar(&cfg.RetryDelay, "retry-delay", cfg.RetryDelay, "base delay between retries")
	pf.DurationVar(&cfg.AssociateTimeout, "associate-timeout", cfg.AssociateTimeout, "wifi association timeout")
	pf.DurationVar(&cfg.HTTPTimeout, "timeout", cfg.HTTPTimeout, "device rpc timeout")
	pf.BoolVar(&cfg.DisableCloud, "disable-cloud", cfg.DisableCloud, "disable the vendor cloud on each device")
	pf.BoolVar(&cfg.RenameDevices, "rename-devices", cfg.RenameDevices, "set the assigned name on each device")
	pf.BoolVar(&cfg.KeepDeviceAP, "keep-device-ap", cfg.KeepDeviceAP, "leave device APs up and disable them after reboot")
	pf.StringVar(&cfg.CheckpointDir, "checkpoint-dir", cfg.CheckpointDir, "session checkpoint directory")
	pf.IntVar(&cfg.SweepWorkers, "sweep-workers", cfg.SweepWorkers, "concurrent probes during subnet sweep")
	pf.DurationVar(&cfg.VerifyWindow, "verify-window", cfg.VerifyWindow, "how long to listen for broker announcements")

	// resolve finalizes the configuration: file, then env, with flags
	// winning. Returns the changed-flag map for the live reloader.
	resolve := func(cmd *cobra.Command) (map[string]bool, error) {
		cfgFile := cfgPath
		if cfgFile == "" {
			cfgFile = cliconfig.DefaultConfigPath()
		}

		changed := map[string]bool{}
		cmd.Flags().Visit(func(f *pflag.Flag) { changed[f.Name] = true })

		if cfgFile != "" && cliconfig.FileExists(cfgFile) {
			fc, err := cliconfig.LoadFileConfig(cfgFile)
			if err != nil {
				return nil, fmt.Errorf("load config: %w", err)
			}
			if err := cliconfig.ApplyFileConfig(&cfg, fc, changed); err != nil {
				return nil, err
			}
		}
		if err := cliconfig.ApplyEnvConfig(&cfg, changed); err != nil {
			return nil, err
		}
		return changed, nil
	}

	newLogger := func() *logadapter.ZerologAdapter {
		return logadapter.NewZerologAdapterWithLogger(zl)
	}

	root.AddCommand(newScanCmd(&cfg, resolve, newLogger))
	root.AddCommand(newDiscoverCmd(&cfg, resolve, newLogger))
	root.AddCommand(newProvisionCmd(&cfg, &cfgPath, resolve, newLogger, &zl))
	root.AddCommand(newVerifyCmd(&cfg, resolve, newLogger))

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

type resolveFunc func(cmd *cobra.Command) (map[string]bool, error)

func newScanCmd(cfg *cliconfig.Config, resolve resolveFunc, newLogger func() *logadapter.ZerologAdapter) *cobra.Command {
	return &cobra.Command{
		Use:   "scan",
		Short: "List factory-default device access points in range",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := resolve(cmd); err != nil {
				return err
			}
			ctl, err := wifi.New(newLogger())
			if err != nil {
				return err
			}
			nets, err := ctl.ListCandidateNetworks()
			if err != nil {
				return fmt.Errorf("scan: %w", err)
			}
			if len(nets) == 0 {
				fmt.Println("No unconfigured devices in range.")
				return nil
			}
			fmt.Printf("%-32s %-12s %s\n", "SSID", "MODEL", "SIGNAL")
			for _, n := range nets {
				fmt.Printf("%-32s %-12s %d dBm\n", n.SSID, n.Model(), n.Signal)
			}
			return nil
		},
	}
}

func newDiscoverCmd(cfg *cliconfig.Config, resolve resolveFunc, newLogger func() *logadapter.ZerologAdapter) *cobra.Command {
	return &cobra.Command{
		Use:   "discover",
		Short: "Locate the MQTT broker on the local network",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := resolve(cmd); err != nil {
				return err
			}
			if err := cfg.ValidateDiscovery(); err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			engine := discovery.New(discoveryConfig(*cfg), newLogger())
			ep, found, err := engine.Locate(ctx, cfg.BrokerHost)
			if err != nil {
				return err
			}
			if !found {
				return fmt.Errorf("broker %q not found on this network", cfg.BrokerHost)
			}
			fmt.Printf("Broker found at %s (via %s)\n", ep.Addr(), ep.Method)
			return nil
		},
	}
}

func newVerifyCmd(cfg *cliconfig.Config, resolve resolveFunc, newLogger func() *logadapter.ZerologAdapter) *cobra.Command {
	return &cobra.Command{
		Use:   "verify",
		Short: "Listen on the broker for device announcements",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := resolve(cmd); err != nil {
				return err
			}
			if cfg.BrokerHost == "" {
				return fmt.Errorf("broker host is required")
			}
			if err := cfg.ValidateDiscovery(); err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			engine := discovery.New(discoveryConfig(*cfg), newLogger())
			if !engine.VerifyReachable(cfg.BrokerHost, cfg.BrokerPort) {
				return fmt.Errorf("broker %s:%d not reachable", cfg.BrokerHost, cfg.BrokerPort)
			}

			verifier := mqtt.NewVerifier(cfg.BrokerHost, cfg.BrokerPort, cfg.BrokerUsername, cfg.BrokerPassword, newLogger())
			fmt.Printf("Listening on %s:%d for %s...\n", cfg.BrokerHost, cfg.BrokerPort, cfg.VerifyWindow)
			devices, err := verifier.Listen(ctx, cfg.VerifyWindow)
			if err != nil {
				return err
			}
			if len(devices) == 0 {
				fmt.Println("No devices announced themselves.")
				return nil
			}
			fmt.Printf("%-24s %-14s %-16s %s\n", "ID", "MAC", "IP", "MODEL")
			for _, d := range devices {
				fmt.Printf("%-24s %-14s %-16s %s\n", d.ID, d.MAC, d.IP, d.Model)
			}
			return nil
		},
	}
}

func newProvisionCmd(cfg *cliconfig.Config, cfgPath *string, resolve resolveFunc, newLogger func() *logadapter.ZerologAdapter, zl *zerolog.Logger) *cobra.Command {
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "provision [ssid...]",
		Short: "Provision every device in range (or only the named SSIDs)",
		RunE: func(cmd *cobra.Command, args []string) error {
			changed, err := resolve(cmd)
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			log := newLogger()

			logCfg := *cfg
			if logCfg.BrokerPassword != "" {
				logCfg.BrokerPassword = "*****"
			}
			if logCfg.WiFiPassword != "" {
				logCfg.WiFiPassword = "*****"
			}
			zl.Info().Interface("config", logCfg).Msg("configuration")

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			ctl, err := wifi.New(log)
			if err != nil {
				return err
			}

			// The broker hint may be a hostname; pin it to an address
			// while we are still on a network that can see it.
			engine := discovery.New(discoveryConfig(*cfg), log)
			ep, found, err := engine.Locate(ctx, cfg.BrokerHost)
			if err != nil {
				return err
			}
			if found {
				cfg.BrokerHost = ep.Address
				log.Info("broker pinned", ports.String("address", ep.Addr()), ports.String("method", ep.Method.String()))
			} else {
				log.Warn("broker not confirmed reachable, continuing with configured host",
					ports.String("host", cfg.BrokerHost))
			}

			nets, err := ctl.ListCandidateNetworks()
			if err != nil {
				return fmt.Errorf("scan: %w", err)
			}
			nets = selectCandidates(nets, args)
			if len(nets) == 0 {
				fmt.Println("No unconfigured devices in range.")
				return nil
			}
			for _, n := range nets {
				fmt.Printf("  found %s (%s, %d dBm)\n", n.SSID, n.Model(), n.Signal)
			}
			if dryRun {
				return nil
			}

			orch := provisioner.New(
				ctl,
				deviceapi.NewFactory(cfg.HTTPTimeout),
				sessionrepo.NewFileRepository(cfg.CheckpointDir),
				engine,
				&consoleObserver{},
				log,
				optionsFromConfig(*cfg),
			)

			// Tunables edited mid-batch apply from the next device on.
			watcher := cliconfig.NewWatcher(configWatchPath(*cfgPath), *cfg, changed, func(c cliconfig.Config) {
				orch.SetOptions(optionsFromConfig(c))
			}, log)
			go watcher.Run(ctx)

			session, err := orch.ProvisionBatch(ctx, nets)
			printSummary(session)
			return err
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "scan and report, configure nothing")
	return cmd
}

func configWatchPath(cfgPath string) string {
	if cfgPath != "" {
		return cfgPath
	}
	return cliconfig.DefaultConfigPath()
}

// selectCandidates filters the scan to the SSIDs named on the command
// line; an empty selection keeps everything.
func selectCandidates(nets []domain.CandidateNetwork, ssids []string) []domain.CandidateNetwork {
	if len(ssids) == 0 {
		return nets
	}
	want := make(map[string]bool, len(ssids))
	for _, s := range ssids {
		want[s] = true
	}
	out := nets[:0]
	for _, n := range nets {
		if want[n.SSID] {
			out = append(out, n)
		}
	}
	return out
}

func printSummary(s *domain.Session) {
	if s == nil {
		return
	}
	var ok, failed int
	fmt.Printf("\nSession %s\n", s.SessionID)
	for _, d := range s.Devices {
		status := d.State.String()
		ip := d.FinalIP
		if ip == "" {
			ip = "-"
		}
		fmt.Printf("  %-16s %-12s %-10s %s\n", d.AssignedName, d.MAC, status, ip)
		if d.State == domain.StateCompleted {
			ok++
		} else {
			failed++
		}
	}
	fmt.Printf("%d provisioned, %d failed\n", ok, failed)
}

func optionsFromConfig(c cliconfig.Config) provisioner.Options {
	return provisioner.Options{
		TargetSSID:       c.WiFiSSID,
		TargetPassword:   c.WiFiPassword,
		BrokerHost:       c.BrokerHost,
		BrokerPort:       c.BrokerPort,
		BrokerUsername:   c.BrokerUsername,
		BrokerPassword:   c.BrokerPassword,
		NamePrefix:       c.NamePrefix,
		NameStart:        c.NameStart,
		MaxRetries:       c.MaxRetries,
		RetryDelay:       c.RetryDelay,
		AssociateTimeout: c.AssociateTimeout,
		AssociateRetries: c.AssociateRetries,
		AssociateDelay:   c.AssociateDelay,
		SettleDelay:      c.SettleDelay,
		InterDeviceDelay: c.InterDeviceDelay,
		RebootWait:       c.RebootWait,
		DeviceAddress:    deviceapi.DefaultAPAddress,
		DisableCloud:     c.DisableCloud,
		RenameDevice:     c.RenameDevices,
		KeepDeviceAP:     c.KeepDeviceAP,
	}
}

func discoveryConfig(c cliconfig.Config) discovery.Config {
	return discovery.Config{
		ServicePort:  c.BrokerPort,
		ListenWindow: c.ListenWindow,
		ProbeTimeout: c.ProbeTimeout,
		SweepWorkers: c.SweepWorkers,
	}
}

// consoleObserver renders batch progress for the operator. Logging
// stays on stderr; this is the product surface on stdout.
type consoleObserver struct{}

func (consoleObserver) OnBatchProgress(index, total int, candidate domain.CandidateNetwork) {
	fmt.Printf("\n[%d/%d] %s\n", index, total, candidate.SSID)
}

func (consoleObserver) OnStepUpdate(stepName string, status ports.StepStatus) {
	switch status {
	case ports.StepProgress:
		fmt.Printf("  %-16s ...\n", stepName)
	case ports.StepRetry:
		fmt.Printf("  %-16s retrying\n", stepName)
	case ports.StepSuccess:
		fmt.Printf("  %-16s ok\n", stepName)
	case ports.StepError:
		fmt.Printf("  %-16s FAILED\n", stepName)
	}
}

func (consoleObserver) OnDeviceComplete(record *domain.ProvisioningRecord) {
	fmt.Printf("  => %s: %s\n", record.AssignedName, record.State)
}

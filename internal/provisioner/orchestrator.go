// Package provisioner drives the per-device provisioning state machine
// and sequences batches over the operator machine's single WiFi radio.
package provisioner

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rcc-labs/rcc/internal/domain"
	"github.com/rcc-labs/rcc/internal/ports"
	"github.com/rcc-labs/rcc/internal/retry"
)

// Resolver locates a provisioned device on the target network by its
// assigned name or hardware address. Satisfied by discovery.Engine.
type Resolver interface {
	ResolveByIdentity(ctx context.Context, name, mac string) (string, bool)
}

// Options are the tunables for one batch. The orchestrator snapshots
// them at the start of every device, so SetOptions between devices (the
// config watcher does this) takes effect at the next device boundary.
type Options struct {
	// Target network the devices join.
	TargetSSID     string
	TargetPassword string

	// Broker the devices report to.
	BrokerHost     string
	BrokerPort     int
	BrokerUsername string
	BrokerPassword string

	// Naming sequence.
	NamePrefix string
	NameStart  int

	// Retry shape for device RPCs.
	MaxRetries int
	RetryDelay time.Duration

	// Association behaviour.
	AssociateTimeout time.Duration
	AssociateRetries int
	AssociateDelay   time.Duration
	SettleDelay      time.Duration

	// Optional steps.
	DisableCloud bool
	RenameDevice bool

	// KeepDeviceAP leaves each device's AP up through the network step
	// and runs the post-reboot cleanup pass (rejoin, disable AP).
	KeepDeviceAP bool
	RebootWait   time.Duration

	// Batch pacing.
	InterDeviceDelay time.Duration

	// Address the device answers on while we are joined to its AP.
	DeviceAddress string

	// Post-batch reconciliation.
	ReconcileAttempts int
	ReconcileDelay    time.Duration
}

func (o *Options) applyDefaults() {
	if o.NamePrefix == "" {
		o.NamePrefix = "RCC-Device"
	}
	if o.NameStart < 1 {
		o.NameStart = 1
	}
	if o.MaxRetries < 1 {
		o.MaxRetries = 3
	}
	if o.RetryDelay <= 0 {
		o.RetryDelay = 2 * time.Second
	}
	if o.AssociateTimeout <= 0 {
		o.AssociateTimeout = 30 * time.Second
	}
	if o.AssociateRetries < 1 {
		o.AssociateRetries = 3
	}
	if o.AssociateDelay <= 0 {
		o.AssociateDelay = 5 * time.Second
	}
	if o.SettleDelay <= 0 {
		o.SettleDelay = 3 * time.Second
	}
	if o.RebootWait <= 0 {
		o.RebootWait = 5 * time.Second
	}
	if o.InterDeviceDelay <= 0 {
		o.InterDeviceDelay = 2 * time.Second
	}
	if o.DeviceAddress == "" {
		o.DeviceAddress = "192.168.33.1"
	}
	if o.ReconcileAttempts < 1 {
		o.ReconcileAttempts = 5
	}
	if o.ReconcileDelay <= 0 {
		o.ReconcileDelay = 2 * time.Second
	}
}

// sleepFn is swapped out in tests.
var sleepFn = func(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Orchestrator provisions devices one at a time. It owns the radio for
// the duration of a batch and the name sequence across the batch.
type Orchestrator struct {
	wifi     ports.WiFiController
	clients  ports.DeviceClientFactory
	repo     ports.SessionRepository
	resolver Resolver
	observer ports.Observer
	log      ports.Logger

	mu    sync.Mutex
	opts  Options
	namer *Namer
}

// New creates an orchestrator. resolver may be nil to skip the
// post-batch reconciliation pass.
func New(wifi ports.WiFiController, clients ports.DeviceClientFactory, repo ports.SessionRepository, resolver Resolver, observer ports.Observer, log ports.Logger, opts Options) *Orchestrator {
	opts.applyDefaults()
	if observer == nil {
		observer = ports.NoopObserver{}
	}
	return &Orchestrator{
		wifi:     wifi,
		clients:  clients,
		repo:     repo,
		resolver: resolver,
		observer: observer,
		log:      log,
		opts:     opts,
		namer:    NewNamer(opts.NamePrefix, opts.NameStart),
	}
}

// SetOptions replaces the tunables. Safe to call concurrently; the
// change applies from the next device onward. The name sequence is
// never reset mid-batch.
func (o *Orchestrator) SetOptions(opts Options) {
	opts.applyDefaults()
	o.mu.Lock()
	opts.NamePrefix = o.opts.NamePrefix
	opts.NameStart = o.opts.NameStart
	o.opts = opts
	o.mu.Unlock()
}

func (o *Orchestrator) snapshot() Options {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.opts
}

// NewSessionID returns a fresh session identifier: a wall-clock stamp
// for the operator, a random suffix against collisions.
func NewSessionID() string {
	return time.Now().Format("20060102_150405") + "_" + uuid.NewString()[:8]
}

// ProvisionBatch provisions the candidates strictly sequentially and
// returns the session with one record per attempted device. A device
// failure never aborts the batch; only context cancellation does, after
// the current device's record is finalized. The checkpoint is saved
// after every device.
func (o *Orchestrator) ProvisionBatch(ctx context.Context, candidates []domain.CandidateNetwork) (*domain.Session, error) {
	opts := o.snapshot()
	session := domain.NewSession(NewSessionID(), opts.BrokerHost, opts.BrokerPort)

	original := o.wifi.CurrentAssociation()
	o.log.Info("batch started",
		ports.String("session", session.SessionID),
		ports.Int("candidates", len(candidates)),
		ports.String("original_network", original))

	// The original association is restored on every exit path. The OS
	// keeps a saved profile for it, so no password is needed here.
	defer func() {
		if original != "" && o.wifi.CurrentAssociation() != original {
			if !o.wifi.Associate(original, "", opts.AssociateTimeout) {
				o.log.Warn("could not restore original network", ports.String("ssid", original))
			}
		}
	}()

	for i, cand := range candidates {
		if ctx.Err() != nil {
			o.log.Warn("batch interrupted", ports.Int("remaining", len(candidates)-i))
			break
		}
		o.observer.OnBatchProgress(i+1, len(candidates), cand)

		rec := o.ProvisionDevice(ctx, cand)
		session.Append(rec)
		o.checkpoint(ctx, session)

		if i < len(candidates)-1 {
			if err := sleepFn(ctx, o.snapshot().InterDeviceDelay); err != nil {
				break
			}
		}
	}

	session.Complete()
	o.checkpoint(ctx, session)

	// Reconciliation needs the original network back first.
	if original != "" && o.wifi.CurrentAssociation() != original {
		if !o.wifi.Associate(original, "", opts.AssociateTimeout) {
			o.log.Warn("could not restore original network", ports.String("ssid", original))
		}
	}
	o.reconcile(ctx, session)
	o.checkpoint(ctx, session)

	o.log.Info("batch finished",
		ports.String("session", session.SessionID),
		ports.Int("devices", len(session.Devices)))
	return session, ctx.Err()
}

func (o *Orchestrator) checkpoint(ctx context.Context, s *domain.Session) {
	if o.repo == nil {
		return
	}
	// Checkpointing runs even after cancellation; the record of what
	// happened matters most on the abort path.
	if err := o.repo.Save(context.WithoutCancel(ctx), s); err != nil {
		o.log.Error("checkpoint save failed", ports.String("session", s.SessionID), ports.Err(err))
	}
}

// ProvisionDevice runs the full state machine for one candidate and
// returns its terminal record. Never returns nil.
func (o *Orchestrator) ProvisionDevice(ctx context.Context, cand domain.CandidateNetwork) *domain.ProvisioningRecord {
	opts := o.snapshot()
	name := o.namer.NextName()
	rec := domain.NewRecord(cand, name)

	o.log.Info("provisioning device",
		ports.String("ssid", cand.SSID),
		ports.String("name", name))

	var client ports.DeviceClient
	err := o.runSteps(ctx, rec, opts, &client)
	if err == nil {
		rec.State = domain.StateCompleted
		o.log.Info("device provisioned", ports.String("name", name), ports.String("mac", rec.MAC))
	} else {
		rec.ErrorMessage = err.Error()
		rec.State = domain.StateFailed
		o.log.Error("device failed",
			ports.String("name", name),
			ports.String("state", rec.State.String()),
			ports.Err(err))
		// A step that gave up after its retries gets rolled back; an
		// operator interrupt stays Failed so the abort is visible.
		if retry.Exhausted(err) {
			o.rollback(ctx, rec, client)
		}
	}

	o.wifi.Disassociate()
	o.observer.OnDeviceComplete(rec)
	return rec
}

// runSteps walks the state machine. It returns the first mandatory
// failure; optional steps degrade to a warning and are not recorded.
func (o *Orchestrator) runSteps(ctx context.Context, rec *domain.ProvisioningRecord, opts Options, clientOut *ports.DeviceClient) error {
	rpcPolicy := retry.Policy{MaxAttempts: opts.MaxRetries, BaseDelay: opts.RetryDelay, Backoff: retry.Exponential}
	assocPolicy := retry.Policy{MaxAttempts: opts.AssociateRetries, BaseDelay: opts.AssociateDelay, Backoff: retry.Linear}

	// Join the device AP. Open network, so no password.
	err := o.step(ctx, rec, domain.StateConnecting, domain.StepConnectAP, false, assocPolicy, func() error {
		if !o.wifi.Associate(rec.SourceSSID, "", opts.AssociateTimeout) {
			return fmt.Errorf("%w: %s", domain.ErrAssociationFailed, rec.SourceSSID)
		}
		return nil
	})
	if err != nil {
		return err
	}
	// Give DHCP on the device AP a moment.
	if err := sleepFn(ctx, opts.SettleDelay); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInterrupted, err)
	}

	client := o.clients(opts.DeviceAddress)
	*clientOut = client

	err = o.step(ctx, rec, domain.StateGettingInfo, domain.StepGetInfo, false, rpcPolicy, func() error {
		info, err := client.GetDeviceInfo(ctx)
		if err != nil {
			return err
		}
		if info.MAC != "" {
			rec.MAC = info.MAC
		}
		if fn := info.FriendlyName(); fn != "" {
			rec.Model = fn
		}
		return nil
	})
	if err != nil {
		return err
	}

	err = o.step(ctx, rec, domain.StateConfiguringBroker, domain.StepConfigMQTT, false, rpcPolicy, func() error {
		return client.ConfigureBroker(ctx, ports.BrokerSettings{
			Host:        opts.BrokerHost,
			Port:        opts.BrokerPort,
			Username:    opts.BrokerUsername,
			Password:    opts.BrokerPassword,
			TopicPrefix: rec.AssignedName,
			Enable:      true,
		})
	})
	if err != nil {
		return err
	}

	err = o.step(ctx, rec, domain.StateConfiguringNetwork, domain.StepConfigWiFi, false, rpcPolicy, func() error {
		return client.ConfigureNetwork(ctx, ports.NetworkCredentials{
			SSID:        opts.TargetSSID,
			Password:    opts.TargetPassword,
			KeepLocalAP: opts.KeepDeviceAP,
		})
	})
	if err != nil {
		return err
	}

	if opts.DisableCloud {
		if err := o.step(ctx, rec, domain.StateDisablingCloud, domain.StepDisableCloud, true, rpcPolicy, func() error {
			return client.DisableCloud(ctx)
		}); err != nil {
			return err
		}
	}

	if opts.RenameDevice {
		if err := o.step(ctx, rec, domain.StateRenaming, domain.StepRename, true, rpcPolicy, func() error {
			if err := client.SetName(ctx, rec.AssignedName); err != nil {
				return err
			}
			// Best effort; the name is what matters.
			if err := client.SetDiscoverable(ctx, false); err != nil {
				o.log.Warn("could not hide device", ports.String("name", rec.AssignedName), ports.Err(err))
			}
			return nil
		}); err != nil {
			return err
		}
	}

	err = o.step(ctx, rec, domain.StateRebooting, domain.StepReboot, false, rpcPolicy, func() error {
		return client.Reboot(ctx)
	})
	if err != nil {
		return err
	}

	if opts.KeepDeviceAP {
		if err := o.cleanupDeviceAP(ctx, rec, opts, client, assocPolicy); err != nil {
			return err
		}
	}
	return nil
}

// cleanupDeviceAP rejoins the rebooted device's still-enabled AP and
// turns it off. Failures here leave the device provisioned but with its
// AP up, so the whole pass is optional.
func (o *Orchestrator) cleanupDeviceAP(ctx context.Context, rec *domain.ProvisioningRecord, opts Options, client ports.DeviceClient, assocPolicy retry.Policy) error {
	if err := sleepFn(ctx, opts.RebootWait); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInterrupted, err)
	}
	err := o.step(ctx, rec, domain.StateReassociating, "", true, assocPolicy, func() error {
		if !o.wifi.Associate(rec.SourceSSID, "", opts.AssociateTimeout) {
			return fmt.Errorf("%w: %s", domain.ErrAssociationFailed, rec.SourceSSID)
		}
		return nil
	})
	if err != nil {
		return err
	}
	// If the rejoin was skipped the device is unreachable anyway; the
	// disable call degrades the same way.
	return o.step(ctx, rec, domain.StateDisablingAP, domain.StepDisableAP, true, assocPolicy, func() error {
		return client.DisableLocalAP(ctx)
	})
}

// step transitions the record, runs op under the policy and records the
// outcome. Optional steps swallow exhaustion: the device is still fine
// without them, so the step is logged, not recorded, and nil returned.
// Cancellation is never swallowed.
func (o *Orchestrator) step(ctx context.Context, rec *domain.ProvisioningRecord, state domain.ProvisionState, stepName string, optional bool, pol retry.Policy, op func() error) error {
	label := state.String()
	if err := rec.Transition(state); err != nil {
		return err
	}
	o.observer.OnStepUpdate(label, ports.StepProgress)

	err := retry.Do(ctx, pol, op, func(attempt int, err error) {
		o.log.Warn("step retry",
			ports.String("step", label),
			ports.Int("attempt", attempt),
			ports.Err(err))
		o.observer.OnStepUpdate(label, ports.StepRetry)
	})
	if err == nil {
		if stepName != "" {
			rec.CompleteStep(stepName)
		}
		o.observer.OnStepUpdate(label, ports.StepSuccess)
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		o.observer.OnStepUpdate(label, ports.StepError)
		return fmt.Errorf("%w: %s: %v", domain.ErrInterrupted, label, err)
	}
	if optional {
		o.log.Warn("optional step skipped", ports.String("step", label), ports.Err(err))
		o.observer.OnStepUpdate(label, ports.StepSuccess)
		return nil
	}
	o.observer.OnStepUpdate(label, ports.StepError)
	return fmt.Errorf("%s: %w", label, err)
}

// rollback moves a failed device to RolledBack. The broker-disable
// call only goes out when the broker configuration actually landed;
// its failure is logged and swallowed, the terminal state stays
// RolledBack either way.
func (o *Orchestrator) rollback(ctx context.Context, rec *domain.ProvisioningRecord, client ports.DeviceClient) {
	if client != nil && rec.StepCompleted(domain.StepConfigMQTT) {
		o.log.Info("rolling back broker config", ports.String("name", rec.AssignedName))
		err := client.ConfigureBroker(context.WithoutCancel(ctx), ports.BrokerSettings{Enable: false})
		if err != nil {
			o.log.Warn("rollback call failed", ports.String("name", rec.AssignedName), ports.Err(err))
		}
	}
	if terr := rec.Transition(domain.StateRolledBack); terr != nil {
		o.log.Warn("rollback transition rejected", ports.Err(terr))
	}
}

// reconcile resolves the final IP of every completed device on the
// target network. Devices that never show up keep an empty FinalIP;
// reconciliation is informational and cannot fail the batch.
func (o *Orchestrator) reconcile(ctx context.Context, s *domain.Session) {
	if o.resolver == nil {
		return
	}
	opts := o.snapshot()
	for _, rec := range s.Devices {
		if rec.State != domain.StateCompleted || rec.FinalIP != "" {
			continue
		}
		for attempt := 0; attempt < opts.ReconcileAttempts; attempt++ {
			if ctx.Err() != nil {
				return
			}
			if addr, ok := o.resolver.ResolveByIdentity(ctx, rec.AssignedName, rec.MAC); ok {
				rec.FinalIP = addr
				o.log.Info("device resolved",
					ports.String("name", rec.AssignedName),
					ports.String("ip", addr))
				break
			}
			if attempt < opts.ReconcileAttempts-1 {
				if err := sleepFn(ctx, opts.ReconcileDelay); err != nil {
					return
				}
			}
		}
		if rec.FinalIP == "" {
			o.log.Warn("device not yet visible on target network", ports.String("name", rec.AssignedName))
		}
	}
}

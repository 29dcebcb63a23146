package rules

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"fraud-risk-engine/internal/domain/fraud"
)

// DeviceAnalyzer flags shared, unseen and changed devices, then records the
// sighting
type DeviceAnalyzer struct {
	devices fraud.DeviceRepository
}

// NewDeviceAnalyzer creates a device analyzer
func NewDeviceAnalyzer(devices fraud.DeviceRepository) *DeviceAnalyzer {
	return &DeviceAnalyzer{devices: devices}
}

func (a *DeviceAnalyzer) Name() string { return "device" }

// Applies requires a fingerprint
func (a *DeviceAnalyzer) Applies(ev *Evaluation) bool {
	return ev.Input.Device != nil && ev.Input.Device.Fingerprint != ""
}

// Analyze reads device history before recording the current sighting. The
// account count always includes the checking user, whether or not they were
// seen on the device before. The sighting is recorded even when no device
// rule is active.
func (a *DeviceAnalyzer) Analyze(ctx context.Context, ev *Evaluation) ([]fraud.FraudFlag, error) {
	device := ev.Input.Device
	userID := ev.Input.UserID
	rules := rulesOf[*fraud.DeviceConditions](ev.Rules, fraud.RuleTypeDevice)

	var flags []fraud.FraudFlag
	if len(rules) > 0 {
		users, err := a.devices.CountUsersForFingerprint(ctx, device.Fingerprint)
		if err != nil {
			return nil, fmt.Errorf("failed to count device users: %w", err)
		}
		seen, err := a.devices.HasFingerprint(ctx, userID, device.Fingerprint)
		if err != nil {
			return nil, fmt.Errorf("failed to look up device: %w", err)
		}
		accounts := users
		if !seen {
			accounts++
		}
		latest, err := a.devices.LatestForUser(ctx, userID)
		if err != nil {
			return nil, fmt.Errorf("failed to load latest device: %w", err)
		}

		for _, rc := range rules {
			c := rc.cond
			if c.MaxAccountsPerDevice != nil && accounts >= int64(*c.MaxAccountsPerDevice) {
				desc := fmt.Sprintf("device used by %d accounts (limit %d)", accounts, *c.MaxAccountsPerDevice)
				flags = append(flags, fraud.NewRuleFlag(rc.rule, fraud.FlagMultipleAccountsOnDevice, fraud.CategoryDevice, desc))
			}
			if users == 0 && c.TrustNewDevices != nil && !*c.TrustNewDevices {
				flags = append(flags, fraud.NewRuleFlag(rc.rule, fraud.FlagNewDevice, fraud.CategoryDevice,
					"device has never been seen before"))
			}
			if c.FlagDeviceChanges && latest != nil && latest.FingerprintHash != device.Fingerprint {
				flags = append(flags, fraud.NewRuleFlag(rc.rule, fraud.FlagDeviceChange, fraud.CategoryDevice,
					"device differs from the user's most recent device"))
			}
		}
	}

	err := a.devices.Upsert(ctx, &fraud.DeviceFingerprint{
		ID:              uuid.New(),
		UserID:          userID,
		FingerprintHash: device.Fingerprint,
		DeviceInfo:      device.Attributes,
		IPAddress:       device.IPAddress,
		UserAgent:       device.UserAgent,
		FirstSeen:       ev.Now,
		LastSeen:        ev.Now,
		SessionCount:    1,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to record device: %w", err)
	}
	return flags, nil
}

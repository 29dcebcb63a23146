package rules_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fraud-risk-engine/internal/domain/fraud"
	"fraud-risk-engine/internal/infrastructure/rules"
)

func deviceInput(userID uuid.UUID, fingerprint string) *fraud.FraudCheckInput {
	return &fraud.FraudCheckInput{
		UserID:    userID,
		CheckType: fraud.CheckLogin,
		Device:    &fraud.DeviceInfo{Fingerprint: fingerprint, IPAddress: "192.0.2.10", UserAgent: "test-agent"},
	}
}

func deviceRule(c *fraud.DeviceConditions) *fraud.FraudRule {
	return fraud.NewRule("device", fraud.RuleTypeDevice, c, fraud.SeverityMedium, 15)
}

func flagNames(flags []fraud.FraudFlag) []string {
	names := make([]string, 0, len(flags))
	for _, f := range flags {
		names = append(names, f.Name)
	}
	return names
}

func TestDeviceAnalyzer_RecordsSightingWithoutRules(t *testing.T) {
	devices := &fakeDevices{}
	a := rules.NewDeviceAnalyzer(devices)
	userID := uuid.New()

	for i := 0; i < 2; i++ {
		flags, err := a.Analyze(context.Background(), evaluation(deviceInput(userID, "fp-1")))
		require.NoError(t, err)
		assert.Empty(t, flags)
	}

	require.Len(t, devices.sightings, 1)
	assert.Equal(t, 2, devices.sightings[0].SessionCount)
	assert.Equal(t, "192.0.2.10", devices.sightings[0].IPAddress)
}

func TestDeviceAnalyzer_MultipleAccounts(t *testing.T) {
	devices := &fakeDevices{}
	a := rules.NewDeviceAnalyzer(devices)
	rule := deviceRule(&fraud.DeviceConditions{MaxAccountsPerDevice: intPtr(2)})

	flags, err := a.Analyze(context.Background(), evaluation(deviceInput(uuid.New(), "shared"), rule))
	require.NoError(t, err)
	assert.Empty(t, flags, "a single account is under the limit")

	for i := 0; i < 2; i++ {
		flags, err = a.Analyze(context.Background(), evaluation(deviceInput(uuid.New(), "shared"), rule))
		require.NoError(t, err)
		assert.Equal(t, []string{fraud.FlagMultipleAccountsOnDevice}, flagNames(flags))
	}
}

func TestDeviceAnalyzer_MultipleAccountsCountsCheckingUserOnce(t *testing.T) {
	devices := &fakeDevices{}
	a := rules.NewDeviceAnalyzer(devices)
	rule := deviceRule(&fraud.DeviceConditions{MaxAccountsPerDevice: intPtr(2)})
	owner, other := uuid.New(), uuid.New()

	flags, err := a.Analyze(context.Background(), evaluation(deviceInput(owner, "shared"), rule))
	require.NoError(t, err)
	assert.Empty(t, flags, "owner first")

	flags, err = a.Analyze(context.Background(), evaluation(deviceInput(owner, "shared"), rule))
	require.NoError(t, err)
	assert.Empty(t, flags, "owner returning alone")

	flags, err = a.Analyze(context.Background(), evaluation(deviceInput(other, "shared"), rule))
	require.NoError(t, err)
	assert.Equal(t, []string{fraud.FlagMultipleAccountsOnDevice}, flagNames(flags), "second account")
	assert.Contains(t, flags[0].Description, "2 accounts")

	flags, err = a.Analyze(context.Background(), evaluation(deviceInput(owner, "shared"), rule))
	require.NoError(t, err)
	assert.Equal(t, []string{fraud.FlagMultipleAccountsOnDevice}, flagNames(flags), "owner after sharing")
	assert.Contains(t, flags[0].Description, "2 accounts")
}

func TestDeviceAnalyzer_NewDeviceIsGlobal(t *testing.T) {
	devices := &fakeDevices{}
	a := rules.NewDeviceAnalyzer(devices)
	distrust := deviceRule(&fraud.DeviceConditions{TrustNewDevices: boolPtr(false)})

	flags, err := a.Analyze(context.Background(), evaluation(deviceInput(uuid.New(), "fresh"), distrust))
	require.NoError(t, err)
	assert.Equal(t, []string{fraud.FlagNewDevice}, flagNames(flags))

	// another user on the same hash: seen before, so not new
	flags, err = a.Analyze(context.Background(), evaluation(deviceInput(uuid.New(), "fresh"), distrust))
	require.NoError(t, err)
	assert.Empty(t, flags)

	// unset trust_new_devices never flags
	flags, err = a.Analyze(context.Background(), evaluation(deviceInput(uuid.New(), "other"), deviceRule(&fraud.DeviceConditions{})))
	require.NoError(t, err)
	assert.Empty(t, flags)
}

func TestDeviceAnalyzer_DeviceChange(t *testing.T) {
	devices := &fakeDevices{}
	a := rules.NewDeviceAnalyzer(devices)
	rule := deviceRule(&fraud.DeviceConditions{FlagDeviceChanges: true})
	userID := uuid.New()

	flags, err := a.Analyze(context.Background(), evaluation(deviceInput(userID, "laptop"), rule))
	require.NoError(t, err)
	assert.Empty(t, flags, "first device is not a change")

	flags, err = a.Analyze(context.Background(), evaluation(deviceInput(userID, "phone"), rule))
	require.NoError(t, err)
	assert.Equal(t, []string{fraud.FlagDeviceChange}, flagNames(flags))
}

func TestDeviceAnalyzer_Applies(t *testing.T) {
	a := rules.NewDeviceAnalyzer(&fakeDevices{})
	assert.False(t, a.Applies(evaluation(orderInput())))
	assert.False(t, a.Applies(evaluation(deviceInput(uuid.New(), ""))))
	assert.True(t, a.Applies(evaluation(deviceInput(uuid.New(), "fp"))))
}

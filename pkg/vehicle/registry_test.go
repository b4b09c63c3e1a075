package vehicle

import (
	"testing"
	"time"

	"github.com/cuemby/agvkernel/pkg/kerneltypes"
	"github.com/stretchr/testify/require"
)

func TestRegistrySendCommandRoutesToRegisteredAdapter(t *testing.T) {
	r := NewRegistry(10)
	r.RegisterSimulated(1)

	_, ok := r.Get(1)
	require.True(t, ok)

	err := r.SendCommand(1, kerneltypes.Step{DestinationPoint: kerneltypes.NewRef(kerneltypes.ClassPoint, 2, "p2")}, "")
	require.NoError(t, err)

	select {
	case report := <-r.Reports():
		require.Equal(t, int64(1), report.VehicleID)
		require.Equal(t, ReportPosition, report.Kind)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for position report")
	}
}

func TestRegistrySendCommandToUnknownVehicleFails(t *testing.T) {
	r := NewRegistry(10)
	err := r.SendCommand(99, kerneltypes.Step{}, "")
	require.Error(t, err)
}

func TestRegistryUnregisterRemovesAdapter(t *testing.T) {
	r := NewRegistry(10)
	r.RegisterSimulated(1)
	r.Unregister(1)

	_, ok := r.Get(1)
	require.False(t, ok)
}

func TestRegistryAbortOnUnknownVehicleIsNoop(t *testing.T) {
	r := NewRegistry(10)
	require.NoError(t, r.Abort(42))
}

func TestSimulatedAdapterEmitsOperationCompleteAfterOperation(t *testing.T) {
	reports := make(chan Report, 10)
	adapter := NewSimulatedAdapter(1, reports)

	err := adapter.SendCommand(kerneltypes.Step{DestinationPoint: kerneltypes.NewRef(kerneltypes.ClassPoint, 5, "p5")}, "LOAD")
	require.NoError(t, err)

	var kinds []ReportKind
	for i := 0; i < 2; i++ {
		select {
		case r := <-reports:
			kinds = append(kinds, r.Kind)
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for reports")
		}
	}
	require.Equal(t, []ReportKind{ReportPosition, ReportOperationComplete}, kinds)
}

func TestSimulatedAdapterAbortSuppressesReports(t *testing.T) {
	reports := make(chan Report, 10)
	adapter := NewSimulatedAdapter(1, reports)

	require.NoError(t, adapter.SendCommand(kerneltypes.Step{}, "LOAD"))
	require.NoError(t, adapter.Abort())

	select {
	case r := <-reports:
		t.Fatalf("expected no report after abort, got %+v", r)
	case <-time.After(100 * time.Millisecond):
	}
}

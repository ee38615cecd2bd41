// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 johncarey70

package controller

import (
	"context"
	"errors"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/johncarey70/seymour/pkg/seymour"
	"github.com/johncarey70/seymour/pkg/seymour/transport"
)

func connected(t *testing.T, onUpdate UpdateFunc) *testRig {
	t.Helper()
	rig := newRig(t, onUpdate)
	require.NoError(t, rig.ctrl.Connect(context.Background(), true))
	return rig
}

func loaded(t *testing.T) *testRig {
	t.Helper()
	rig := connected(t, nil)
	_, err := rig.ctrl.GetSettingsInfo(context.Background())
	require.NoError(t, err)
	return rig
}

// ============================================================
// Connect / lifecycle
// ============================================================

func TestConnect_ReadsSystemInfo(t *testing.T) {
	rig := connected(t, nil)

	info := rig.ctrl.SystemInfo()
	assert.Equal(t, "SN1", info.SerialNumber)
	assert.Equal(t, "TBLR", info.MaskIDs)
	assert.True(t, rig.ctrl.Connected())
	assert.Equal(t, "Top", rig.ctrl.Settings().Motors["T"])
}

func TestConnect_SilentControllerFails(t *testing.T) {
	rig := newRig(t, nil)
	rig.sim.setSilent(seymour.CmdSystemInfo, true)

	err := rig.ctrl.Connect(context.Background(), true)
	require.Error(t, err)
	assert.ErrorIs(t, err, seymour.ErrConnection)
	assert.ErrorIs(t, err, seymour.ErrTimeout)
	assert.False(t, rig.ctrl.Connected())
}

func TestConnect_DialFailure(t *testing.T) {
	cfg := DefaultConfig("nowhere")
	cfg.Logger = quietLogger()
	cfg.Dial = func(ctx context.Context) (transport.Connection, error) {
		return nil, errors.New("no such device")
	}
	ctrl := NewWithConfig(cfg, nil)
	defer ctrl.Close()

	err := ctrl.Connect(context.Background(), true)
	assert.ErrorIs(t, err, seymour.ErrConnection)
}

func TestConnect_Idempotent(t *testing.T) {
	rig := connected(t, nil)
	writes := rig.host.writes.Load()

	require.NoError(t, rig.ctrl.Connect(context.Background(), true))
	assert.Equal(t, writes, rig.host.writes.Load())
}

func TestRequest_NotConnected(t *testing.T) {
	rig := newRig(t, nil)

	_, err := rig.ctrl.GetStatus(context.Background())
	assert.ErrorIs(t, err, seymour.ErrConnection)
}

func TestClose_Idempotent(t *testing.T) {
	rig := connected(t, nil)

	require.NoError(t, rig.ctrl.Close())
	require.NoError(t, rig.ctrl.Close())
	assert.False(t, rig.ctrl.Connected())

	err := rig.ctrl.Connect(context.Background(), false)
	assert.ErrorIs(t, err, seymour.ErrConnection)
}

func TestDisconnect_Reconnects(t *testing.T) {
	rig := connected(t, nil)

	require.NoError(t, rig.ctrl.Disconnect())
	assert.False(t, rig.ctrl.Connected())
	assert.Equal(t, "SN1", rig.ctrl.SystemInfo().SerialNumber, "cached state survives disconnect")

	_, err := rig.ctrl.GetStatus(context.Background())
	assert.ErrorIs(t, err, seymour.ErrConnection)
}

func TestSetup_InitializesModel(t *testing.T) {
	rig := newRig(t, nil)

	require.NoError(t, rig.ctrl.Setup(context.Background()))
	assert.True(t, rig.ctrl.IsInitialized())

	snap := rig.ctrl.Snapshot()
	assert.Equal(t, 2, snap.Settings.NumRatios)
	assert.Equal(t, 1, snap.Status.RatioID)
	assert.Equal(t, 1, snap.Settings.CurrentRatio)
	assert.Equal(t, 4, snap.Positions.NumMotors)
}

func TestWaitReady_TimesOut(t *testing.T) {
	rig := connected(t, nil)
	rig.ctrl.cfg.ConnectTimeout = 50 * time.Millisecond

	err := rig.ctrl.WaitReady(context.Background())
	assert.ErrorIs(t, err, seymour.ErrTimeout)
}

// ============================================================
// Queries
// ============================================================

func TestGetPositions_MapsMaskOrder(t *testing.T) {
	rig := connected(t, nil)

	positions, err := rig.ctrl.GetPositions(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, positions.NumMotors)
	assert.Equal(t, map[string]int{"T": 10, "B": 20, "L": 30, "R": 40}, positions.Motors)
}

func TestGetSettingsInfo(t *testing.T) {
	rig := connected(t, nil)

	settings, err := rig.ctrl.GetSettingsInfo(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, settings.NumRatios)
	assert.Equal(t, []int{1, 2}, settings.RatioIDs())
	assert.Equal(t, "2.35:1", settings.Ratios[2].Label)
	assert.Equal(t, -2, settings.Ratios[2].Motors[2].Adjustment)
}

func TestRequest_TimeoutLeavesLinkUsable(t *testing.T) {
	rig := connected(t, nil)
	rig.sim.setSilent(seymour.CmdPositions, true)

	_, err := rig.ctrl.GetPositions(context.Background())
	require.ErrorIs(t, err, seymour.ErrTimeout)
	assert.True(t, rig.ctrl.Connected())

	status, err := rig.ctrl.GetStatus(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, status.RatioID)

	rig.sim.setSilent(seymour.CmdPositions, false)
	_, err = rig.ctrl.GetPositions(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(1), rig.ctrl.Statistics().Timeouts)
}

func TestRequest_DuplicateIsBusy(t *testing.T) {
	rig := connected(t, nil)
	rig.ctrl.cfg.RequestTimeout = time.Second
	rig.sim.setSilent(seymour.CmdPositions, true)

	first := make(chan error, 1)
	go func() {
		_, err := rig.ctrl.GetPositions(context.Background())
		first <- err
	}()
	require.Eventually(t, func() bool { return rig.sim.lastReceived() == "[01P]" },
		time.Second, 5*time.Millisecond)

	writes := rig.host.writes.Load()
	_, err := rig.ctrl.GetPositions(context.Background())
	assert.ErrorIs(t, err, seymour.ErrBusy)
	assert.Equal(t, writes, rig.host.writes.Load(), "busy request must not reach the wire")

	// A different command is not blocked by the pending one
	_, err = rig.ctrl.GetStatus(context.Background())
	assert.NoError(t, err)

	assert.ErrorIs(t, <-first, seymour.ErrTimeout)
	assert.Equal(t, uint64(1), rig.ctrl.Statistics().BusyRejections)
}

func TestRequest_DisconnectFailsPending(t *testing.T) {
	updates := make(chan struct{}, 16)
	rig := connected(t, func() {
		select {
		case updates <- struct{}{}:
		default:
		}
	})
	rig.ctrl.cfg.RequestTimeout = 5 * time.Second
	rig.sim.setSilent(seymour.CmdPositions, true)

	result := make(chan error, 1)
	go func() {
		_, err := rig.ctrl.GetPositions(context.Background())
		result <- err
	}()
	require.Eventually(t, func() bool { return rig.sim.lastReceived() == "[01P]" },
		time.Second, 5*time.Millisecond)

	require.NoError(t, rig.dev.Close())

	select {
	case err := <-result:
		assert.ErrorIs(t, err, seymour.ErrConnection)
	case <-time.After(2 * time.Second):
		t.Fatal("pending request was not failed by disconnect")
	}
	assert.Eventually(t, func() bool { return !rig.ctrl.Connected() }, time.Second, 5*time.Millisecond)
}

// slowCloseConn delays Close, leaving a window between the link going
// down and its disconnect handling finishing.
type slowCloseConn struct {
	net.Conn
	delay time.Duration
}

func (c *slowCloseConn) Close() error {
	time.Sleep(c.delay)
	return c.Conn.Close()
}

func TestConnect_ReconnectDuringShutdown(t *testing.T) {
	host1, dev1 := net.Pipe()
	host2, dev2 := net.Pipe()
	newSim().serve(dev1)
	newSim().serve(dev2)
	defer dev2.Close()

	links := []transport.Connection{&slowCloseConn{Conn: host1, delay: 200 * time.Millisecond}, host2}
	var dials atomic.Int32

	cfg := DefaultConfig("sim")
	cfg.RequestTimeout = time.Second
	cfg.Logger = quietLogger()
	cfg.Dial = func(ctx context.Context) (transport.Connection, error) {
		return links[dials.Add(1)-1], nil
	}
	ctrl := NewWithConfig(cfg, nil)
	defer ctrl.Close()

	ctx := context.Background()
	require.NoError(t, ctrl.Connect(ctx, true))

	done := ctrl.Done()
	require.NoError(t, dev1.Close())
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("link drop not reported")
	}

	// Reconnect as soon as the drop is seen
	require.NoError(t, ctrl.Connect(ctx, false))
	time.Sleep(400 * time.Millisecond)

	info, err := ctrl.GetSystemInfo(ctx)
	require.NoError(t, err)
	assert.Equal(t, "SN1", info.SerialNumber)
	assert.True(t, ctrl.Connected())
	assert.Equal(t, int32(2), dials.Load())
}

func TestConnect_DialDoesNotBlockAccessors(t *testing.T) {
	release := make(chan struct{})
	cfg := DefaultConfig("sim")
	cfg.Logger = quietLogger()
	cfg.Dial = func(ctx context.Context) (transport.Connection, error) {
		<-release
		return nil, errors.New("gave up")
	}
	ctrl := NewWithConfig(cfg, nil)
	defer ctrl.Close()

	result := make(chan error, 1)
	go func() { result <- ctrl.Connect(context.Background(), false) }()

	checked := make(chan bool, 1)
	go func() {
		time.Sleep(20 * time.Millisecond)
		checked <- ctrl.Connected()
	}()

	select {
	case up := <-checked:
		assert.False(t, up)
	case <-time.After(time.Second):
		t.Fatal("Connected blocked behind a dial")
	}
	assert.Nil(t, ctrl.Done())

	close(release)
	assert.ErrorIs(t, <-result, seymour.ErrConnection)
}

// ============================================================
// Commands
// ============================================================

func TestMoveMotors_InvalidMotorSendsNothing(t *testing.T) {
	rig := connected(t, nil)
	writes := rig.host.writes.Load()

	err := rig.ctrl.MoveMotors(context.Background(), seymour.DirectionIn, "Z")
	assert.ErrorIs(t, err, seymour.ErrValidation)

	err = rig.ctrl.MoveMotors(context.Background(), seymour.Direction("up"), "T")
	assert.ErrorIs(t, err, seymour.ErrValidation)

	assert.Equal(t, writes, rig.host.writes.Load())
}

func TestMoveMotors_SendsMovementCode(t *testing.T) {
	rig := connected(t, nil)
	require.NoError(t, rig.ctrl.SelectMovementMode(seymour.MovementPercent))

	require.NoError(t, rig.ctrl.MoveMotors(context.Background(), seymour.DirectionIn, "t"))
	assert.Equal(t, "[01ITP]", rig.sim.lastReceived())

	require.NoError(t, rig.ctrl.SelectMovementMode(seymour.MovementNone))
	require.NoError(t, rig.ctrl.MoveMotors(context.Background(), seymour.DirectionOut, ""))
	assert.Equal(t, "[01OA]", rig.sim.lastReceived())
}

func TestHomeHaltCalibrate(t *testing.T) {
	rig := connected(t, nil)
	ctx := context.Background()

	require.NoError(t, rig.ctrl.Home(ctx, "B"))
	assert.Equal(t, "[01HB]", rig.sim.lastReceived())

	require.NoError(t, rig.ctrl.Halt(ctx, ""))
	assert.Equal(t, "[01XA]", rig.sim.lastReceived())

	require.NoError(t, rig.ctrl.Calibrate(ctx, "R"))
	assert.Equal(t, "[01CR]", rig.sim.lastReceived())

	assert.ErrorIs(t, rig.ctrl.Home(ctx, "Q"), seymour.ErrValidation)
}

func TestSelectRatio(t *testing.T) {
	rig := loaded(t)
	ctx := context.Background()

	require.NoError(t, rig.ctrl.SelectRatio(ctx, 2))
	assert.Equal(t, "[01A002]", rig.sim.lastReceived())
	assert.Equal(t, 2, rig.ctrl.Settings().CurrentRatio)
	assert.Equal(t, seymour.StatusMoving, rig.ctrl.Status().StatusCode)

	require.NoError(t, rig.ctrl.SelectRatio(ctx, 994), "presets are always selectable")
	assert.Equal(t, 994, rig.ctrl.Settings().CurrentRatio)
}

func TestSelectRatio_OutOfRangeSendsNothing(t *testing.T) {
	rig := loaded(t)
	writes := rig.host.writes.Load()

	for _, id := range []int{0, 3, 989, 1000} {
		err := rig.ctrl.SelectRatio(context.Background(), id)
		assert.ErrorIs(t, err, seymour.ErrValidation, "ratio %d", id)
	}
	assert.Equal(t, writes, rig.host.writes.Load())
}

func TestToggleJog_RoundTrip(t *testing.T) {
	for _, reported := range []bool{false, true} {
		rig := connected(t, nil)
		rig.sim.mu.Lock()
		rig.sim.reportJog = reported
		rig.sim.mu.Unlock()

		code, err := rig.ctrl.ToggleJog(context.Background())
		require.NoError(t, err)
		assert.Equal(t, seymour.MovementJog, code, "reported=%v", reported)

		code, err = rig.ctrl.ToggleJog(context.Background())
		require.NoError(t, err)
		assert.Equal(t, seymour.MovementNone, code, "reported=%v", reported)
	}
}

func TestUpdate(t *testing.T) {
	rig := loaded(t)
	ctx := context.Background()
	writes := rig.host.writes.Load()

	assert.ErrorIs(t, rig.ctrl.Update(ctx, 0), seymour.ErrValidation)
	assert.Equal(t, writes, rig.host.writes.Load())

	require.NoError(t, rig.ctrl.SelectRatio(ctx, 1))
	require.NoError(t, rig.ctrl.Update(ctx, 0))
	assert.Equal(t, "[01U001]", rig.sim.lastReceived())

	require.NoError(t, rig.ctrl.Update(ctx, 2))
	assert.Equal(t, "[01U002]", rig.sim.lastReceived())
}

func TestExclusive_SerializesRequests(t *testing.T) {
	rig := newRig(t, nil)
	rig.ctrl.cfg.Exclusive = true
	require.NoError(t, rig.ctrl.Connect(context.Background(), true))

	errs := make(chan error, 3)
	go func() { _, err := rig.ctrl.GetPositions(context.Background()); errs <- err }()
	go func() { _, err := rig.ctrl.GetStatus(context.Background()); errs <- err }()
	go func() { _, err := rig.ctrl.GetSettingsInfo(context.Background()); errs <- err }()

	for i := 0; i < 3; i++ {
		assert.NoError(t, <-errs)
	}
	assert.True(t, rig.ctrl.IsInitialized())
}

// ============================================================
// Unsolicited frames and notifications
// ============================================================

func TestUnsolicited_UpdatesStateAndNotifies(t *testing.T) {
	updates := make(chan struct{}, 16)
	rig := connected(t, func() {
		select {
		case updates <- struct{}{}:
		default:
		}
	})

	// Drain the notification from the initial system info
	drain := time.After(100 * time.Millisecond)
	for done := false; !done; {
		select {
		case <-updates:
		case <-drain:
			done = true
		}
	}

	rig.sim.push(t, "[01P4,1,2,3,4]")
	select {
	case <-updates:
	case <-time.After(time.Second):
		t.Fatal("no update after position push")
	}
	assert.Equal(t, map[string]int{"T": 1, "B": 2, "L": 3, "R": 4}, rig.ctrl.Positions().Motors)

	rig.sim.push(t, "[01S00205]")
	assert.Eventually(t, func() bool {
		return rig.ctrl.Status() == seymour.RatioStatus{RatioID: 2, StatusCode: seymour.StatusJogging}
	}, time.Second, 5*time.Millisecond)

	// Frames nobody handles are counted and dropped
	rig.sim.push(t, "[01U001]")
	assert.Eventually(t, func() bool {
		return rig.ctrl.Statistics().DroppedFrames == 1
	}, time.Second, 5*time.Millisecond)
}

func TestUnsolicited_UnchangedStateDoesNotNotify(t *testing.T) {
	updates := make(chan struct{}, 16)
	rig := connected(t, func() {
		select {
		case updates <- struct{}{}:
		default:
		}
	})
	_, err := rig.ctrl.GetPositions(context.Background())
	require.NoError(t, err)

	time.Sleep(50 * time.Millisecond)
	for len(updates) > 0 {
		<-updates
	}

	rig.sim.push(t, "[01P4,10,20,30,40]")
	assert.Eventually(t, func() bool {
		return rig.ctrl.Statistics().UnsolicitedFrames == 1
	}, time.Second, 5*time.Millisecond)

	select {
	case <-updates:
		t.Fatal("notified without a state change")
	case <-time.After(50 * time.Millisecond):
	}
}

// ============================================================
// Local selections, buttons and remote commands
// ============================================================

func TestSelectMotor(t *testing.T) {
	rig := connected(t, nil)

	require.NoError(t, rig.ctrl.SelectMotor("l"))
	assert.Equal(t, "L", rig.ctrl.Settings().CurrentMotorID)

	assert.ErrorIs(t, rig.ctrl.SelectMotor("Z"), seymour.ErrValidation)
	assert.Equal(t, "L", rig.ctrl.Settings().CurrentMotorID)

	require.NoError(t, rig.ctrl.SelectMotor(""))
	assert.Empty(t, rig.ctrl.Settings().CurrentMotorID)

	assert.ErrorIs(t, rig.ctrl.SelectMovementMode("Q"), seymour.ErrValidation)
}

func TestPressButton_UsesSelectedMotor(t *testing.T) {
	rig := connected(t, nil)
	ctx := context.Background()

	require.NoError(t, rig.ctrl.PressButton(ctx, "home"))
	assert.Equal(t, "[01HA]", rig.sim.lastReceived())

	require.NoError(t, rig.ctrl.SelectMotor("L"))
	require.NoError(t, rig.ctrl.PressButton(ctx, "home"))
	assert.Equal(t, "[01HL]", rig.sim.lastReceived())

	require.NoError(t, rig.ctrl.PressButton(ctx, "move_motors_out"))
	assert.Equal(t, "[01OL]", rig.sim.lastReceived())

	assert.ErrorIs(t, rig.ctrl.PressButton(ctx, "eject"), seymour.ErrValidation)
}

func TestRemote(t *testing.T) {
	rig := connected(t, nil)
	ctx := context.Background()

	require.NoError(t, rig.ctrl.SelectMotor("T"))
	require.NoError(t, rig.ctrl.SelectMovementMode(seymour.MovementJog))
	require.NoError(t, rig.ctrl.Remote(ctx, RemoteClear))
	settings := rig.ctrl.Settings()
	assert.Empty(t, settings.CurrentMotorID)
	assert.Equal(t, seymour.MovementNone, settings.CurrentMovementCode)

	require.NoError(t, rig.ctrl.Remote(ctx, RemoteHalt))
	assert.Equal(t, "[01XA]", rig.sim.lastReceived())

	require.NoError(t, rig.ctrl.Remote(ctx, RemoteDiagnostics))
	assert.True(t, rig.ctrl.IsInitialized())

	assert.ErrorIs(t, rig.ctrl.Remote(ctx, RemoteCommand("reboot")), seymour.ErrValidation)
}

func TestParseRemoteCommand(t *testing.T) {
	cmd, err := ParseRemoteCommand("home")
	require.NoError(t, err)
	assert.Equal(t, RemoteHome, cmd)

	_, err = ParseRemoteCommand("HOME")
	assert.ErrorIs(t, err, seymour.ErrValidation)
}

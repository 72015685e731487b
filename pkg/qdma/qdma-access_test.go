// Copyright (c) 2023 Seagate Technology LLC and/or its Affiliates

package qdma

import (
	"io"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestDev returns a device over a fresh simulator. Polls sample 10 times
// before they time out and never sleep.
func newTestDev(t *testing.T) (*QdmaDev, *SimRegs) {
	t.Helper()
	sim := NewSimRegs()
	d := NewQdmaDev(sim, &Config{PollInterval: 10 * time.Microsecond, PollTimeout: 100 * time.Microsecond})
	d.delay = func(time.Duration) {}
	return d, sim
}

// plainRegs hides the burst capability of the simulator
type plainRegs struct {
	s *SimRegs
}

func (p plainRegs) ReadReg(offset uint32) uint32       { return p.s.ReadReg(offset) }
func (p plainRegs) WriteReg(offset uint32, val uint32) { p.s.WriteReg(offset, val) }

func TestNewQdmaDevDefaults(t *testing.T) {
	d := NewQdmaDev(NewSimRegs(), nil)
	assert.Equal(t, DefaultPollInterval, d.Config().PollInterval)
	assert.Equal(t, DefaultPollTimeout, d.Config().PollTimeout)
	assert.Equal(t, -1, d.ConfigBar)

	d = NewQdmaDev(NewSimRegs(), &Config{ConfigBar: 2})
	assert.Equal(t, 10*time.Microsecond, d.Config().PollInterval)
	assert.Equal(t, 500*time.Millisecond, d.Config().PollTimeout)
	assert.Equal(t, 2, d.ConfigBar)
}

func TestHwMonitorReg(t *testing.T) {
	t.Run("match on first sample", func(t *testing.T) {
		d, sim := newTestDev(t)
		sim.SetReg(0x100, 0xF0)
		assert.NoError(t, d.hwMonitorReg(0x100, 0xF0, 0xF0, 0, 0))
		assert.Len(t, sim.Log(), 1)
	})

	t.Run("sample count rounds up", func(t *testing.T) {
		d, sim := newTestDev(t)
		sim.SetReg(0x100, 1)
		var delays []time.Duration
		d.delay = func(i time.Duration) { delays = append(delays, i) }

		err := d.hwMonitorReg(0x100, 1, 0, 30*time.Microsecond, 100*time.Microsecond)
		assert.ErrorIs(t, err, ErrBusyTimeout)
		assert.Len(t, sim.Log(), 4)
		assert.Equal(t, []time.Duration{30 * time.Microsecond, 30 * time.Microsecond, 30 * time.Microsecond, 30 * time.Microsecond}, delays)
	})

	t.Run("timeout below interval samples once", func(t *testing.T) {
		d, sim := newTestDev(t)
		sim.SetReg(0x100, 1)
		err := d.hwMonitorReg(0x100, 1, 0, time.Millisecond, time.Microsecond)
		assert.ErrorIs(t, err, ErrBusyTimeout)
		assert.Len(t, sim.Log(), 1)
	})

	t.Run("default budget", func(t *testing.T) {
		sim := NewSimRegs()
		d := NewQdmaDev(sim, nil)
		sleeps := 0
		d.delay = func(time.Duration) { sleeps++ }
		sim.SetStuckBusy(true)

		err := d.hwMonitorReg(QDMA_CPM_OFFSET_IND_CTXT_CMD, QDMA_IND_CTXT_CMD_BUSY.mask(), 0, 0, 0)
		assert.ErrorIs(t, err, ErrBusyTimeout)
		assert.Equal(t, 50000, sim.CmdReads())
		assert.Equal(t, 50000, sleeps)
	})
}

func TestIndirectCmdBusyThenDone(t *testing.T) {
	d, sim := newTestDev(t)
	sleeps := 0
	d.delay = func(time.Duration) { sleeps++ }
	sim.SetBusyReads(3)

	assert.NoError(t, d.indirectRegClear(QDMA_CTXT_SEL_HW_C2H, 7))
	assert.Equal(t, 4, sim.CmdReads())
	assert.Equal(t, 3, sleeps)
}

func TestIndirectWriteBurst(t *testing.T) {
	d, sim := newTestDev(t)
	data := []uint32{0x11111111, 0x22222222, 0x33333333, 0x44444444}

	require.NoError(t, d.indirectRegWrite(QDMA_CTXT_SEL_SW_C2H, 3, data))

	writes := sim.Writes()
	require.Len(t, writes, 2*QDMA_CPM_IND_CTXT_DATA_NUM_REGS+1)
	for i, w := range writes {
		assert.Equal(t, uint32(QDMA_OFFSET_IND_CTXT_DATA+4*i), w.Offset, "write %d", i)
		switch {
		case i < len(data):
			assert.Equal(t, data[i], w.Val)
		case i < QDMA_CPM_IND_CTXT_DATA_NUM_REGS:
			assert.Zero(t, w.Val)
		case i < 2*QDMA_CPM_IND_CTXT_DATA_NUM_REGS:
			assert.Equal(t, uint32(0xFFFFFFFF), w.Val)
		}
	}
	last := writes[len(writes)-1]
	assert.Equal(t, uint32(QDMA_CPM_OFFSET_IND_CTXT_CMD), last.Offset)
	assert.Equal(t, uint32(0x1A0), last.Val)
	assert.Equal(t, 1, sim.Bursts())
	assert.Equal(t, data, sim.Ctxt(QDMA_CTXT_SEL_SW_C2H, 3, len(data)))
}

func TestIndirectWriteWithoutBurstWriter(t *testing.T) {
	sim := NewSimRegs()
	d := NewQdmaDev(plainRegs{s: sim}, nil)
	d.delay = func(time.Duration) {}

	require.NoError(t, d.indirectRegWrite(QDMA_CTXT_SEL_CMPT, 9, []uint32{1, 2, 3, 4}))
	assert.Len(t, sim.Writes(), 2*QDMA_CPM_IND_CTXT_DATA_NUM_REGS+1)
	assert.Zero(t, sim.Bursts())
	assert.Equal(t, []uint32{1, 2, 3, 4}, sim.Ctxt(QDMA_CTXT_SEL_CMPT, 9, 4))
}

func TestIndirectReadOrder(t *testing.T) {
	d, sim := newTestDev(t)
	sim.SetCtxt(QDMA_CTXT_SEL_HW_H2C, 12, []uint32{0xAAAA, 0xBBBB})

	rd := make([]uint32, 2)
	require.NoError(t, d.indirectRegRead(QDMA_CTXT_SEL_HW_H2C, 12, rd))
	assert.Equal(t, []uint32{0xAAAA, 0xBBBB}, rd)

	log := sim.Log()
	require.Len(t, log, 4)
	assert.True(t, log[0].Write)
	assert.Equal(t, uint32(QDMA_CPM_OFFSET_IND_CTXT_CMD), log[0].Offset)
	assert.Equal(t, indCtxtCmd{sel: QDMA_CTXT_SEL_HW_H2C, op: QDMA_CTXT_CMD_RD, qid: 12}.word(), log[0].Val)
	assert.Equal(t, uint32(QDMA_CPM_OFFSET_IND_CTXT_CMD), log[1].Offset)
	assert.Equal(t, uint32(QDMA_OFFSET_IND_CTXT_DATA), log[2].Offset)
	assert.Equal(t, uint32(QDMA_OFFSET_IND_CTXT_DATA+4), log[3].Offset)
}

func TestIndirectClearAndInvalidateOnlyWriteCommand(t *testing.T) {
	d, sim := newTestDev(t)
	sim.SetCtxt(QDMA_CTXT_SEL_PFTCH, 1, []uint32{5, 6})

	require.NoError(t, d.indirectRegClear(QDMA_CTXT_SEL_PFTCH, 1))
	require.NoError(t, d.indirectRegInvalidate(QDMA_CTXT_SEL_CR_C2H, 2))

	writes := sim.Writes()
	require.Len(t, writes, 2)
	assert.Equal(t, uint32(QDMA_CPM_OFFSET_IND_CTXT_CMD), writes[0].Offset)
	assert.Equal(t, uint32(QDMA_CPM_OFFSET_IND_CTXT_CMD), writes[1].Offset)
	assert.Equal(t, []SimCmd{
		{Op: QDMA_CTXT_CMD_CLR, Sel: QDMA_CTXT_SEL_PFTCH, Qid: 1},
		{Op: QDMA_CTXT_CMD_INV, Sel: QDMA_CTXT_SEL_CR_C2H, Qid: 2},
	}, sim.Commands())
	assert.Equal(t, []uint32{0, 0}, sim.Ctxt(QDMA_CTXT_SEL_PFTCH, 1, 2))
	assert.Zero(t, sim.Bursts())
}

func TestIndirectTimeoutReleasesLock(t *testing.T) {
	d, sim := newTestDev(t)
	sim.SetStuckBusy(true)

	rd := make([]uint32, 1)
	err := d.indirectRegRead(QDMA_CTXT_SEL_CR_H2C, 0, rd)
	assert.ErrorIs(t, err, ErrBusyTimeout)
	assert.Equal(t, -QDMA_ERR_HWACC_BUSY_TIMEOUT, ErrorCode(err))
	assert.Equal(t, 10, sim.CmdReads())
	assert.Zero(t, rd[0])

	sim.SetStuckBusy(false)
	sim.SetCtxt(QDMA_CTXT_SEL_CR_H2C, 0, []uint32{42})
	done := make(chan error, 1)
	go func() { done <- d.indirectRegRead(QDMA_CTXT_SEL_CR_H2C, 0, rd) }()
	select {
	case err := <-done:
		assert.NoError(t, err)
		assert.Equal(t, uint32(42), rd[0])
	case <-time.After(5 * time.Second):
		t.Fatal("lock still held after a timed out command")
	}
}

func TestIndirectCmdCounters(t *testing.T) {
	d, sim := newTestDev(t)

	require.NoError(t, d.indirectRegWrite(QDMA_CTXT_SEL_SW_H2C, 0, []uint32{1}))
	require.NoError(t, d.indirectRegRead(QDMA_CTXT_SEL_SW_H2C, 0, make([]uint32, 1)))
	require.NoError(t, d.indirectRegRead(QDMA_CTXT_SEL_SW_H2C, 0, make([]uint32, 1)))
	sim.SetStuckBusy(true)
	require.Error(t, d.indirectRegClear(QDMA_CTXT_SEL_SW_H2C, 0))

	assert.Equal(t, int64(1), d.counter("ind_ctxt.cmd.write").Count())
	assert.Equal(t, int64(2), d.counter("ind_ctxt.cmd.read").Count())
	assert.Equal(t, int64(1), d.counter("ind_ctxt.cmd.clear").Count())
	assert.Equal(t, int64(1), d.counter("ind_ctxt.busy_timeout").Count())
	assert.Zero(t, d.counter("ind_ctxt.cmd.invalidate").Count())
}

func TestSimFlagsWriteWhileBusy(t *testing.T) {
	sim := NewSimRegs()
	sim.SetBusyReads(2)
	sim.WriteReg(QDMA_CPM_OFFSET_IND_CTXT_CMD, indCtxtCmd{sel: QDMA_CTXT_SEL_SW_C2H, op: QDMA_CTXT_CMD_RD}.word())
	sim.WriteReg(QDMA_OFFSET_IND_CTXT_DATA, 1)
	sim.WriteReg(QDMA_CPM_OFFSET_IND_CTXT_CMD, indCtxtCmd{sel: QDMA_CTXT_SEL_SW_C2H, op: QDMA_CTXT_CMD_RD}.word())
	assert.Equal(t, 2, sim.Overlaps())

	sim.ResetLog()
	sim.ReadReg(QDMA_CPM_OFFSET_IND_CTXT_CMD)
	sim.ReadReg(QDMA_CPM_OFFSET_IND_CTXT_CMD)
	sim.WriteReg(QDMA_OFFSET_GLBL_DSC_CFG, 1)
	sim.WriteReg(QDMA_CPM_OFFSET_IND_CTXT_CMD, indCtxtCmd{sel: QDMA_CTXT_SEL_SW_C2H, op: QDMA_CTXT_CMD_CLR}.word())
	assert.Zero(t, sim.Overlaps())
}

func TestConcurrentCommandsDoNotOverlap(t *testing.T) {
	const qid = 3
	const rounds = 50

	d, sim := newTestDev(t)
	d.delay = func(time.Duration) { runtime.Gosched() }
	sim.SetBusyReads(2)

	errs := make(chan error, 4*rounds)
	var wg sync.WaitGroup
	for i := 0; i < rounds; i++ {
		wg.Add(4)
		go func(i int) {
			defer wg.Done()
			errs <- d.Qid2VecConf(true, qid, &Qid2VecCtxt{C2hVector: uint8(i), C2hEnCoal: true}, QDMA_HW_ACCESS_WRITE)
		}(i)
		go func(i int) {
			defer wg.Done()
			errs <- d.Qid2VecConf(false, qid, &Qid2VecCtxt{H2cVector: uint8(i), H2cEnCoal: true}, QDMA_HW_ACCESS_WRITE)
		}(i)
		go func(i int) {
			defer wg.Done()
			errs <- d.SwCtxConf(true, qid, &SwCtxt{Pidx: uint16(i), Qen: true}, QDMA_HW_ACCESS_WRITE)
		}(i)
		go func() {
			defer wg.Done()
			errs <- d.SwCtxConf(true, qid, &SwCtxt{}, QDMA_HW_ACCESS_READ)
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	assert.Zero(t, sim.Overlaps())
	assert.Len(t, sim.Commands(), 7*rounds)

	v := Qid2VecCtxt{}
	require.NoError(t, d.Qid2VecConf(true, qid, &v, QDMA_HW_ACCESS_READ))
	require.NoError(t, d.Qid2VecConf(false, qid, &v, QDMA_HW_ACCESS_READ))
	assert.True(t, v.C2hEnCoal)
	assert.True(t, v.H2cEnCoal)
}

func TestCloseWaitsForCommandInFlight(t *testing.T) {
	d, sim := newTestDev(t)
	d.closer = io.NopCloser(nil)
	sim.SetBusyReads(1)

	polling := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	d.delay = func(time.Duration) {
		once.Do(func() { close(polling) })
		<-release
	}

	done := make(chan error, 1)
	go func() { done <- d.indirectRegRead(QDMA_CTXT_SEL_SW_H2C, 2, make([]uint32, 4)) }()
	<-polling

	closed := make(chan error, 1)
	go func() { closed <- d.Close() }()
	select {
	case <-closed:
		t.Fatal("Close returned while a command was polling")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	require.NoError(t, <-done)
	require.NoError(t, <-closed)

	assert.ErrorIs(t, d.indirectRegRead(QDMA_CTXT_SEL_SW_H2C, 2, make([]uint32, 4)), ErrInvalidParam)
	assert.ErrorIs(t, d.SwCtxConf(false, 2, &SwCtxt{}, QDMA_HW_ACCESS_READ), ErrInvalidParam)
	assert.NoError(t, d.Close())
}

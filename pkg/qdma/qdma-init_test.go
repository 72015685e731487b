// Copyright (c) 2023 Seagate Technology LLC and/or its Affiliates

package qdma

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetDeviceAttributes(t *testing.T) {
	d, sim := newTestDev(t)
	attr := DevAttributes{NumPfs: 3, NumQs: 512, StEn: true, MailboxEn: true, FlrPresent: true}
	sim.SetDeviceAttributes(attr)

	got, err := d.GetDeviceAttributes()
	require.NoError(t, err)
	attr.MmChannelMax = 2
	attr.Qid2VecCtx = true
	assert.Equal(t, &attr, got)

	// both directions are required for a mode to be reported
	sim.SetReg(QDMA_OFFSET_GLBL2_CHANNEL_MDMA, QDMA_GLBL2_ST_C2H.mask()|QDMA_GLBL2_MM_H2C.mask())
	got, err = d.GetDeviceAttributes()
	require.NoError(t, err)
	assert.False(t, got.StEn)
	assert.False(t, got.MmEn)

	_, err = NewQdmaDev(nil, nil).GetDeviceAttributes()
	assert.ErrorIs(t, err, ErrInvalidParam)
}

func TestInitCtxtMemoryMmOnly(t *testing.T) {
	d, sim := newTestDev(t)
	sim.SetDeviceAttributes(DevAttributes{NumPfs: 2, NumQs: 4, MmEn: true})
	sim.SetCtxt(QDMA_CTXT_SEL_SW_C2H, 2, []uint32{1, 2, 3, 4})
	sim.SetReg(fmapReg(0), 0xFFFF)
	sim.SetReg(fmapReg(1), 0xFFFF)
	sim.SetReg(fmapReg(2), 0xFFFF)

	require.NoError(t, d.InitCtxtMemory())

	var want []SimCmd
	for qid := uint16(0); qid < 4; qid++ {
		for _, sel := range []IndCtxtCmdSel{
			QDMA_CTXT_SEL_SW_C2H, QDMA_CTXT_SEL_SW_H2C,
			QDMA_CTXT_SEL_HW_C2H, QDMA_CTXT_SEL_HW_H2C,
			QDMA_CTXT_SEL_CR_C2H, QDMA_CTXT_SEL_CR_H2C,
		} {
			want = append(want, SimCmd{Op: QDMA_CTXT_CMD_CLR, Sel: sel, Qid: qid})
		}
	}
	assert.Equal(t, want, sim.Commands())
	assert.Equal(t, []uint32{0, 0, 0, 0}, sim.Ctxt(QDMA_CTXT_SEL_SW_C2H, 2, 4))

	writes := sim.Writes()
	require.Len(t, writes, len(want)+2)
	assert.Equal(t, SimAccess{Write: true, Offset: 0x400, Val: 0}, writes[len(want)])
	assert.Equal(t, SimAccess{Write: true, Offset: 0x404, Val: 0}, writes[len(want)+1])
	assert.Equal(t, uint32(0xFFFF), sim.Reg(fmapReg(2)), "only the reported functions are cleared")
}

func TestInitCtxtMemoryStreaming(t *testing.T) {
	d, sim := newTestDev(t)
	sim.SetDeviceAttributes(DevAttributes{NumPfs: 1, NumQs: 2, StEn: true})

	require.NoError(t, d.InitCtxtMemory())

	cmds := sim.Commands()
	require.Len(t, cmds, 16)
	for i, c := range cmds {
		assert.Equal(t, QDMA_CTXT_CMD_CLR, c.Op)
		assert.Equal(t, IndCtxtCmdSel(i%8), c.Sel)
		assert.Equal(t, uint16(i/8), c.Qid)
	}
}

func TestInitCtxtMemoryCapsQueueCount(t *testing.T) {
	d, sim := newTestDev(t)
	sim.SetDeviceAttributes(DevAttributes{NumQs: 4095})

	require.NoError(t, d.InitCtxtMemory())
	cmds := sim.Commands()
	require.Len(t, cmds, 6*(QDMA_CPM_MAX_QID+1))
	assert.Equal(t, uint16(QDMA_CPM_MAX_QID), cmds[len(cmds)-1].Qid)
}

func TestInitCtxtMemoryStopsOnFirstError(t *testing.T) {
	d, sim := newTestDev(t)
	sim.SetDeviceAttributes(DevAttributes{NumPfs: 1, NumQs: 8, StEn: true})
	sim.SetReg(fmapReg(0), 0x55)
	sim.SetStuckBusy(true)

	err := d.InitCtxtMemory()
	assert.ErrorIs(t, err, ErrBusyTimeout)
	assert.Len(t, sim.Commands(), 1)
	assert.Equal(t, uint32(0x55), sim.Reg(fmapReg(0)))
}

func TestSetDefaultGlobalCsr(t *testing.T) {
	t.Run("streaming", func(t *testing.T) {
		d, sim := newTestDev(t)
		sim.SetDeviceAttributes(DevAttributes{NumPfs: 1, NumQs: 16, StEn: true})
		require.NoError(t, d.SetDefaultGlobalCsr())

		csr, err := d.GetGlobalCsr()
		require.NoError(t, err)
		assert.Equal(t, defaultRingSizes[:], csr.RingSizes)
		assert.Equal(t, defaultCounterThresholds[:], csr.CounterThresholds)
		assert.Equal(t, defaultTimerCounts[:], csr.TimerCounts)
		assert.Equal(t, defaultBufSizes[:], csr.BufSizes)
		assert.Equal(t, uint32(DEFAULT_WRB_INT), csr.WritebackInterval)
		assert.Equal(t, uint32(DEFAULT_MAX_DSC_FETCH), csr.MaxDescFetch)

		pfch := sim.Reg(QDMA_OFFSET_C2H_PFETCH_CFG)
		assert.Equal(t, uint32(DEFAULT_PFCH_STOP_THRESH), QDMA_C2H_PFCH_FL_TH.get(pfch))
		assert.Equal(t, uint32(DEFAULT_PFCH_NUM_ENTRIES_PER_Q), QDMA_C2H_NUM_PFCH.get(pfch))
		assert.Equal(t, uint32(DEFAULT_PFCH_MAX_Q_CNT), QDMA_C2H_PFCH_QCNT.get(pfch))
		assert.Equal(t, uint32(DEFAULT_C2H_INTR_TIMER_TICK), sim.Reg(QDMA_OFFSET_C2H_INT_TIMER_TICK))

		coal := sim.Reg(QDMA_OFFSET_C2H_WRB_COAL_CFG)
		assert.Equal(t, uint32(DEFAULT_CMPT_COAL_TIMER_CNT), QDMA_C2H_TICK_CNT.get(coal))
		assert.Equal(t, uint32(DEFAULT_CMPT_COAL_TIMER_TICK), QDMA_C2H_TICK_VAL.get(coal))
		assert.Equal(t, uint32(DEFAULT_CMPT_COAL_MAX_BUF_SZ), QDMA_C2H_MAX_BUF_SZ.get(coal))
	})

	t.Run("memory mapped only", func(t *testing.T) {
		d, sim := newTestDev(t)
		sim.SetDeviceAttributes(DevAttributes{NumPfs: 1, NumQs: 16, MmEn: true})
		require.NoError(t, d.SetDefaultGlobalCsr())

		writes := sim.Writes()
		require.Len(t, writes, QDMA_NUM_RING_SIZES)
		for i, w := range writes {
			assert.Equal(t, uint32(QDMA_OFFSET_GLBL_RNG_SZ+4*i), w.Offset)
			assert.Equal(t, defaultRingSizes[i], w.Val)
		}
		assert.Zero(t, sim.Reg(QDMA_OFFSET_GLBL_DSC_CFG))
	})

	_, err := NewQdmaDev(nil, nil).GetGlobalCsr()
	assert.ErrorIs(t, err, ErrInvalidParam)
}

func TestQueuePidxUpdate(t *testing.T) {
	tests := []struct {
		name string
		isVf bool
		c2h  bool
		qid  uint16
		reg  uint32
	}{
		{"pf h2c", false, false, 2, 0x6424},
		{"pf c2h", false, true, 0, 0x6408},
		{"vf h2c", true, false, 3, 0x3034},
		{"vf c2h", true, true, 1, 0x3018},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, sim := newTestDev(t)
			require.NoError(t, d.QueuePidxUpdate(tt.isVf, tt.qid, tt.c2h, &QPidxRegInfo{Pidx: 0x10, IrqEn: true}))
			assert.Equal(t, []SimAccess{{Write: true, Offset: tt.reg, Val: 0x10010}}, sim.Writes())
		})
	}
}

func TestQueueCmptCidxUpdate(t *testing.T) {
	d, sim := newTestDev(t)
	info := &QCmptCidxRegInfo{WrbCidx: 0x20, CounterIdx: 3, TimerIdx: 4, TrigMode: 1, WrbEn: true, IrqEn: true}
	require.NoError(t, d.QueueCmptCidxUpdate(false, 0, info))
	require.NoError(t, d.QueueCmptCidxUpdate(true, 2, info))
	assert.Equal(t, []SimAccess{
		{Write: true, Offset: 0x640C, Val: 0x19430020},
		{Write: true, Offset: 0x302C, Val: 0x19430020},
	}, sim.Writes())
}

func TestQueueIntrCidxUpdate(t *testing.T) {
	d, sim := newTestDev(t)
	require.NoError(t, d.QueueIntrCidxUpdate(true, 3, &IntrCidxRegInfo{SwCidx: 7, RngIdx: 2}))
	require.NoError(t, d.QueueIntrCidxUpdate(false, 0, &IntrCidxRegInfo{SwCidx: 0xFFFF}))
	assert.Equal(t, []SimAccess{
		{Write: true, Offset: 0x3030, Val: 0x20007},
		{Write: true, Offset: 0x6400, Val: 0xFFFF},
	}, sim.Writes())
}

func TestDoorbellRejects(t *testing.T) {
	d, sim := newTestDev(t)
	assert.ErrorIs(t, d.QueuePidxUpdate(false, 0, false, nil), ErrInvalidParam)
	assert.ErrorIs(t, d.QueueCmptCidxUpdate(false, QDMA_CPM_MAX_QID+1, &QCmptCidxRegInfo{}), ErrInvalidParam)
	assert.ErrorIs(t, d.QueueIntrCidxUpdate(false, 0, nil), ErrInvalidParam)
	assert.ErrorIs(t, NewQdmaDev(nil, nil).QueuePidxUpdate(false, 0, false, &QPidxRegInfo{}), ErrInvalidParam)
	assert.Empty(t, sim.Writes())
}

func TestGetUserBar(t *testing.T) {
	d, sim := newTestDev(t)

	bar, err := d.GetUserBar(true)
	require.NoError(t, err)
	assert.Equal(t, uint8(QDMA_CPM_VF_USER_BAR_ID), bar)

	sim.SetReg(QDMA_OFFSET_GLBL2_CHANNEL_FUNC_RET, 1)
	sim.SetReg(QDMA_OFFSET_GLBL2_PF_BARLITE_EXT, 0x3F|0x14<<6)
	bar, err = d.GetUserBar(false)
	require.NoError(t, err)
	assert.Equal(t, uint8(2), bar)

	sim.SetReg(QDMA_OFFSET_GLBL2_PF_BARLITE_EXT, 0x3F)
	_, err = d.GetUserBar(false)
	assert.ErrorIs(t, err, ErrBarNotFound)
	assert.Equal(t, -QDMA_ERR_HWACC_BAR_NOT_FOUND, ErrorCode(err))
}

func TestReadQueueContext(t *testing.T) {
	d, sim := newTestDev(t)
	sim.SetDeviceAttributes(DevAttributes{NumPfs: 1, NumQs: 16, StEn: true, MmEn: true})

	hw := HwCtxt{Cidx: 9, CrdUse: 3, IdlStpB: true}
	sim.SetCtxt(QDMA_CTXT_SEL_HW_C2H, 3, encodeHwCtxt(&hw))
	sim.SetCtxt(QDMA_CTXT_SEL_CR_C2H, 3, encodeCreditCtxt(&CreditCtxt{Credit: 12}))
	sw := SwCtxt{Pidx: 4, Qen: true, RingBsAddr: 0x10000}
	require.NoError(t, d.SwCtxConf(true, 3, &sw, QDMA_HW_ACCESS_WRITE))
	pf := PrefetchCtxt{PfchEn: true, SwCrdt: 100, Valid: true}
	require.NoError(t, d.PfetchCtxConf(3, &pf, QDMA_HW_ACCESS_WRITE))
	cmpt := CmptCtxt{Valid: true, BsAddr: 0x20000, Pidx: 1}
	require.NoError(t, d.CmptCtxConf(3, &cmpt, QDMA_HW_ACCESS_WRITE))

	q, err := d.ReadQueueContext(3, true, true)
	require.NoError(t, err)
	assert.Equal(t, sw, q.Sw)
	assert.Equal(t, hw, q.Hw)
	assert.Equal(t, uint16(12), q.Credit.Credit)
	require.NotNil(t, q.Pfetch)
	assert.Equal(t, pf, *q.Pfetch)
	require.NotNil(t, q.Cmpt)
	assert.Equal(t, cmpt, *q.Cmpt)

	q, err = d.ReadQueueContext(3, false, false)
	require.NoError(t, err)
	assert.Nil(t, q.Pfetch)
	assert.Nil(t, q.Cmpt)

	q, err = d.ReadQueueContext(3, true, false)
	require.NoError(t, err)
	assert.Nil(t, q.Pfetch)
	assert.Nil(t, q.Cmpt)
}

func TestReadQueueContextNeedsAMode(t *testing.T) {
	d, sim := newTestDev(t)
	sim.SetDeviceAttributes(DevAttributes{NumPfs: 1, NumQs: 16})

	_, err := d.ReadQueueContext(0, true, true)
	assert.ErrorIs(t, err, ErrFeatureNotSupported)
	assert.Equal(t, -QDMA_ERR_HWACC_FEATURE_NOT_SUPPORTED, ErrorCode(err))
	assert.Empty(t, sim.Commands())
}

func TestReadQueueContextTimeout(t *testing.T) {
	d, sim := newTestDev(t)
	sim.SetDeviceAttributes(DevAttributes{NumPfs: 1, NumQs: 16, StEn: true})
	sim.SetStuckBusy(true)

	_, err := d.ReadQueueContext(0, true, true)
	assert.ErrorIs(t, err, ErrBusyTimeout)
}

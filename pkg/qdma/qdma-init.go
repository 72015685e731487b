// Copyright (c) 2023 Seagate Technology LLC and/or its Affiliates

// This file implements device level operations: capability discovery, context
// memory initialization, default global CSR programming and queue doorbells.
package qdma

import (
	"fmt"

	"k8s.io/klog/v2"
)

// Default CSR values
const (
	DEFAULT_MAX_DSC_FETCH          = 6
	DEFAULT_WRB_INT                = 4 // QDMA_WRB_INTERVAL_128
	DEFAULT_PFCH_STOP_THRESH       = 256
	DEFAULT_PFCH_NUM_ENTRIES_PER_Q = 8
	DEFAULT_PFCH_MAX_Q_CNT         = 16
	DEFAULT_C2H_INTR_TIMER_TICK    = 25
	DEFAULT_CMPT_COAL_TIMER_CNT    = 5
	DEFAULT_CMPT_COAL_TIMER_TICK   = 25
	DEFAULT_CMPT_COAL_MAX_BUF_SZ   = 32
)

var (
	defaultRingSizes = [QDMA_NUM_RING_SIZES]uint32{2049, 65, 129, 193, 257, 385, 513, 769,
		1025, 1537, 3073, 4097, 6145, 8193, 12289, 16385}
	defaultTimerCounts = [QDMA_NUM_C2H_TIMERS]uint32{1, 2, 4, 5, 8, 10, 15, 20,
		25, 30, 50, 75, 100, 125, 150, 200}
	defaultCounterThresholds = [QDMA_NUM_C2H_COUNTERS]uint32{64, 2, 4, 8, 16, 24, 32, 48,
		80, 96, 112, 128, 144, 160, 176, 192}
	defaultBufSizes = [QDMA_NUM_C2H_BUFFER_SIZES]uint32{4096, 256, 512, 1024, 2048, 3968, 4096, 4096,
		4096, 4096, 4096, 4096, 4096, 8192, 9018, 16384}
)

// DevAttributes describes what the QDMA instance was built with
type DevAttributes struct {
	NumPfs             uint8  `json:"num_pfs"`
	NumQs              uint16 `json:"num_qs"`
	FlrPresent         bool   `json:"flr_present"`
	StEn               bool   `json:"st_en"`
	MmEn               bool   `json:"mm_en"`
	MmCmptEn           bool   `json:"mm_cmpt_en"`
	MailboxEn          bool   `json:"mailbox_en"`
	MmChannelMax       uint8  `json:"mm_channel_max"`
	Qid2VecCtx         bool   `json:"qid2vec_ctx"`
	CmptOvfChkDis      bool   `json:"cmpt_ovf_chk_dis"`
	MailboxIntr        bool   `json:"mailbox_intr"`
	SwDesc64b          bool   `json:"sw_desc_64b"`
	CmptDesc64b        bool   `json:"cmpt_desc_64b"`
	DynamicBar         bool   `json:"dynamic_bar"`
	LegacyIntr         bool   `json:"legacy_intr"`
	CmptTrigCountTimer bool   `json:"cmpt_trig_count_timer"`
}

// GetDeviceAttributes reads the global capability registers
func (d *QdmaDev) GetDeviceAttributes() (*DevAttributes, error) {
	if !d.valid() {
		klog.ErrorS(ErrInvalidParam, "qdma-init.GetDeviceAttributes: no device handle")
		return nil, ErrInvalidParam
	}
	attr := &DevAttributes{
		MmChannelMax: 2,
		Qid2VecCtx:   true,
	}

	reg := d.regs.ReadReg(QDMA_OFFSET_GLBL2_PF_BARLITE_INT)
	for _, f := range []u32field{QDMA_GLBL2_PF0_BAR_MAP, QDMA_GLBL2_PF1_BAR_MAP, QDMA_GLBL2_PF2_BAR_MAP, QDMA_GLBL2_PF3_BAR_MAP} {
		if f.get(reg) != 0 {
			attr.NumPfs++
		}
	}

	reg = d.regs.ReadReg(QDMA_OFFSET_GLBL2_CHANNEL_QDMA_CAP)
	attr.NumQs = uint16(QDMA_GLBL2_MULTQ_MAX.get(reg))

	reg = d.regs.ReadReg(QDMA_OFFSET_GLBL2_MISC_CAP)
	attr.MailboxEn = u32ToBool(QDMA_GLBL2_MAILBOX_EN.get(reg))
	attr.FlrPresent = u32ToBool(QDMA_GLBL2_FLR_PRESENT.get(reg))

	reg = d.regs.ReadReg(QDMA_OFFSET_GLBL2_CHANNEL_MDMA)
	attr.MmEn = u32ToBool(QDMA_GLBL2_MM_C2H.get(reg)) && u32ToBool(QDMA_GLBL2_MM_H2C.get(reg))
	attr.StEn = u32ToBool(QDMA_GLBL2_ST_C2H.get(reg)) && u32ToBool(QDMA_GLBL2_ST_H2C.get(reg))

	klog.V(DBG_LVL_INFO).InfoS("qdma-init.GetDeviceAttributes", "attr", attr)
	return attr, nil
}

// InitCtxtMemory clears every queue context the device reports, then the
// function map of every physical function. The first failure stops the walk.
func (d *QdmaDev) InitCtxtMemory() error {
	attr, err := d.GetDeviceAttributes()
	if err != nil {
		return err
	}

	numQs := attr.NumQs
	if numQs > QDMA_CPM_MAX_QID+1 {
		klog.V(DBG_LVL_BASIC).InfoS("qdma-init.InitCtxtMemory queue count capped", "num_qs", numQs, "max", QDMA_CPM_MAX_QID+1)
		numQs = QDMA_CPM_MAX_QID + 1
	}
	klog.V(DBG_LVL_BASIC).InfoS("qdma-init.InitCtxtMemory clearing the context for all qs", "num_qs", numQs, "st_en", attr.StEn)

	for qid := uint16(0); qid < numQs; qid++ {
		for sel := QDMA_CTXT_SEL_SW_C2H; sel <= QDMA_CTXT_SEL_PFTCH; sel++ {
			if !attr.StEn && (sel == QDMA_CTXT_SEL_PFTCH || sel == QDMA_CTXT_SEL_CMPT) {
				klog.V(DBG_LVL_DEEP_DETAIL).InfoS("qdma-init.InitCtxtMemory ST context is skipped", "sel", sel, "qid", qid)
				continue
			}
			if err := d.indirectRegClear(sel, qid); err != nil {
				klog.ErrorS(err, "qdma-init.InitCtxtMemory", "sel", sel, "qid", qid)
				return err
			}
		}
	}

	for fid := uint16(0); fid < uint16(attr.NumPfs); fid++ {
		if err := d.FmapConf(fid, nil, QDMA_HW_ACCESS_CLEAR); err != nil {
			return err
		}
	}
	return nil
}

func (d *QdmaDev) writeCsrValues(base uint32, vals []uint32) {
	for i, v := range vals {
		d.regs.WriteReg(base+uint32(4*i), v)
	}
}

func (d *QdmaDev) readCsrValues(base uint32, n int) []uint32 {
	vals := make([]uint32, n)
	for i := range vals {
		vals[i] = d.regs.ReadReg(base + uint32(4*i))
	}
	return vals
}

// SetDefaultGlobalCsr programs the global CSR tables with the default values.
// Completion related tables are only touched when the design has a completion path.
func (d *QdmaDev) SetDefaultGlobalCsr() error {
	attr, err := d.GetDeviceAttributes()
	if err != nil {
		return err
	}

	d.writeCsrValues(QDMA_OFFSET_GLBL_RNG_SZ, defaultRingSizes[:])

	if attr.StEn || attr.MmCmptEn {
		d.writeCsrValues(QDMA_OFFSET_C2H_CNT_TH, defaultCounterThresholds[:])
		d.writeCsrValues(QDMA_OFFSET_C2H_TIMER_CNT, defaultTimerCounts[:])

		reg := QDMA_GLBL_DSC_CFG_MAX_DSC_FETCH.set(DEFAULT_MAX_DSC_FETCH) |
			QDMA_GLBL_DSC_CFG_WB_ACC_INT.set(DEFAULT_WRB_INT)
		d.regs.WriteReg(QDMA_OFFSET_GLBL_DSC_CFG, reg)
	}

	if attr.StEn {
		d.writeCsrValues(QDMA_OFFSET_C2H_BUF_SZ, defaultBufSizes[:])

		reg := QDMA_C2H_PFCH_FL_TH.set(DEFAULT_PFCH_STOP_THRESH) |
			QDMA_C2H_NUM_PFCH.set(DEFAULT_PFCH_NUM_ENTRIES_PER_Q) |
			QDMA_C2H_PFCH_QCNT.set(DEFAULT_PFCH_MAX_Q_CNT) |
			QDMA_C2H_EVT_QCNT_TH.set(DEFAULT_C2H_INTR_TIMER_TICK)
		d.regs.WriteReg(QDMA_OFFSET_C2H_PFETCH_CFG, reg)

		d.regs.WriteReg(QDMA_OFFSET_C2H_INT_TIMER_TICK, DEFAULT_C2H_INTR_TIMER_TICK)

		reg = QDMA_C2H_TICK_CNT.set(DEFAULT_CMPT_COAL_TIMER_CNT) |
			QDMA_C2H_TICK_VAL.set(DEFAULT_CMPT_COAL_TIMER_TICK) |
			QDMA_C2H_MAX_BUF_SZ.set(DEFAULT_CMPT_COAL_MAX_BUF_SZ)
		d.regs.WriteReg(QDMA_OFFSET_C2H_WRB_COAL_CFG, reg)
	}
	klog.V(DBG_LVL_INFO).InfoS("qdma-init.SetDefaultGlobalCsr done", "st_en", attr.StEn, "mm_cmpt_en", attr.MmCmptEn)
	return nil
}

// GlobalCsr is a snapshot of the global CSR tables
type GlobalCsr struct {
	RingSizes         []uint32 `json:"ring_sizes"`
	CounterThresholds []uint32 `json:"counter_thresholds"`
	TimerCounts       []uint32 `json:"timer_counts"`
	BufSizes          []uint32 `json:"buf_sizes"`
	WritebackInterval uint32   `json:"writeback_interval"`
	MaxDescFetch      uint32   `json:"max_desc_fetch"`
}

func (d *QdmaDev) GetGlobalCsr() (*GlobalCsr, error) {
	if !d.valid() {
		return nil, ErrInvalidParam
	}
	dscCfg := d.regs.ReadReg(QDMA_OFFSET_GLBL_DSC_CFG)
	return &GlobalCsr{
		RingSizes:         d.readCsrValues(QDMA_OFFSET_GLBL_RNG_SZ, QDMA_NUM_RING_SIZES),
		CounterThresholds: d.readCsrValues(QDMA_OFFSET_C2H_CNT_TH, QDMA_NUM_C2H_COUNTERS),
		TimerCounts:       d.readCsrValues(QDMA_OFFSET_C2H_TIMER_CNT, QDMA_NUM_C2H_TIMERS),
		BufSizes:          d.readCsrValues(QDMA_OFFSET_C2H_BUF_SZ, QDMA_NUM_C2H_BUFFER_SIZES),
		WritebackInterval: QDMA_GLBL_DSC_CFG_WB_ACC_INT.get(dscCfg),
		MaxDescFetch:      QDMA_GLBL_DSC_CFG_MAX_DSC_FETCH.get(dscCfg),
	}, nil
}

// QPidxRegInfo is the payload of a descriptor PIDX doorbell
type QPidxRegInfo struct {
	Pidx  uint16 `json:"pidx"`
	IrqEn bool   `json:"irq_en"`
}

// QCmptCidxRegInfo is the payload of a completion CIDX doorbell
type QCmptCidxRegInfo struct {
	WrbCidx    uint16 `json:"wrb_cidx"`
	CounterIdx uint8  `json:"counter_idx"`
	TimerIdx   uint8  `json:"timer_idx"`
	TrigMode   uint8  `json:"trig_mode"`
	WrbEn      bool   `json:"wrb_en"`
	IrqEn      bool   `json:"irq_en"`
}

// IntrCidxRegInfo is the payload of an interrupt ring CIDX doorbell
type IntrCidxRegInfo struct {
	SwCidx uint16 `json:"sw_cidx"`
	RngIdx uint8  `json:"rng_idx"`
}

func (d *QdmaDev) doorbellCheck(fn string, qid uint16, noInfo bool) error {
	var err error
	switch {
	case !d.valid():
		err = fmt.Errorf("%s: no device handle: %w", fn, ErrInvalidParam)
	case noInfo:
		err = fmt.Errorf("%s: no register info: %w", fn, ErrInvalidParam)
	default:
		err = checkQid(qid)
	}
	if err != nil {
		klog.ErrorS(err, "qdma-init doorbell rejected", "fn", fn, "qid", qid)
	}
	return err
}

// QueuePidxUpdate rings the descriptor PIDX doorbell of a queue. qid is relative
// to the calling function.
func (d *QdmaDev) QueuePidxUpdate(isVf bool, qid uint16, isC2h bool, info *QPidxRegInfo) error {
	if err := d.doorbellCheck("QueuePidxUpdate", qid, info == nil); err != nil {
		return err
	}
	var reg uint32
	switch {
	case !isVf && isC2h:
		reg = QDMA_CPM_OFFSET_DMAP_SEL_C2H_DSC_PIDX
	case !isVf:
		reg = QDMA_CPM_OFFSET_DMAP_SEL_H2C_DSC_PIDX
	case isC2h:
		reg = QDMA_OFFSET_VF_DMAP_SEL_C2H_DSC_PIDX
	default:
		reg = QDMA_OFFSET_VF_DMAP_SEL_H2C_DSC_PIDX
	}
	reg += uint32(qid) * QDMA_PIDX_STEP

	val := QDMA_DMA_SEL_DESC_PIDX.set(uint32(info.Pidx)) | QDMA_DMA_SEL_IRQ_EN.set(boolToU32(info.IrqEn))
	d.regs.WriteReg(reg, val)
	klog.V(DBG_LVL_DEEP_DETAIL).InfoS("qdma-init.QueuePidxUpdate", "reg", hex(reg), "val", hex(val))
	return nil
}

func (d *QdmaDev) QueueCmptCidxUpdate(isVf bool, qid uint16, info *QCmptCidxRegInfo) error {
	if err := d.doorbellCheck("QueueCmptCidxUpdate", qid, info == nil); err != nil {
		return err
	}
	reg := uint32(QDMA_CPM_OFFSET_DMAP_SEL_CMPT_CIDX)
	if isVf {
		reg = QDMA_OFFSET_VF_DMAP_SEL_CMPT_CIDX
	}
	reg += uint32(qid) * QDMA_CMPT_CIDX_STEP

	val := QDMA_DMAP_SEL_CMPT_WRB_CIDX.set(uint32(info.WrbCidx)) |
		QDMA_DMAP_SEL_CMPT_CNT_THRESH.set(uint32(info.CounterIdx)) |
		QDMA_DMAP_SEL_CMPT_TMR_CNT.set(uint32(info.TimerIdx)) |
		QDMA_DMAP_SEL_CMPT_TRG_MODE.set(uint32(info.TrigMode)) |
		QDMA_DMAP_SEL_CMPT_STS_DESC_EN.set(boolToU32(info.WrbEn)) |
		QDMA_DMAP_SEL_CMPT_IRQ_EN.set(boolToU32(info.IrqEn))
	d.regs.WriteReg(reg, val)
	klog.V(DBG_LVL_DEEP_DETAIL).InfoS("qdma-init.QueueCmptCidxUpdate", "reg", hex(reg), "val", hex(val))
	return nil
}

func (d *QdmaDev) QueueIntrCidxUpdate(isVf bool, qid uint16, info *IntrCidxRegInfo) error {
	if err := d.doorbellCheck("QueueIntrCidxUpdate", qid, info == nil); err != nil {
		return err
	}
	reg := uint32(QDMA_CPM_OFFSET_DMAP_SEL_INT_CIDX)
	if isVf {
		reg = QDMA_OFFSET_VF_DMAP_SEL_INT_CIDX
	}
	reg += uint32(qid) * QDMA_INT_CIDX_STEP

	val := QDMA_DMA_SEL_INT_SW_CIDX.set(uint32(info.SwCidx)) | QDMA_DMA_SEL_INT_RING_IDX.set(uint32(info.RngIdx))
	d.regs.WriteReg(reg, val)
	klog.V(DBG_LVL_DEEP_DETAIL).InfoS("qdma-init.QueueIntrCidxUpdate", "reg", hex(reg), "val", hex(val))
	return nil
}

// GetUserBar returns the BAR holding the user logic of the calling function.
// VFs always expose it on a fixed BAR.
func (d *QdmaDev) GetUserBar(isVf bool) (uint8, error) {
	if !d.valid() {
		klog.ErrorS(ErrInvalidParam, "qdma-init.GetUserBar: no device handle")
		return 0, ErrInvalidParam
	}
	if isVf {
		return QDMA_CPM_VF_USER_BAR_ID, nil
	}

	barMap := d.regs.ReadReg(QDMA_OFFSET_GLBL2_PF_BARLITE_EXT)
	funcId := d.regs.ReadReg(QDMA_OFFSET_GLBL2_CHANNEL_FUNC_RET)
	userBars := (barMap >> (6 * funcId)) & 0x3F
	for bar := uint8(0); bar < QDMA_BAR_NUM; bar++ {
		if userBars&(1<<bar) != 0 {
			return bar, nil
		}
	}
	klog.ErrorS(ErrBarNotFound, "qdma-init.GetUserBar", "func", funcId, "bar_map", hex(barMap))
	return 0, ErrBarNotFound
}

// QueueContext gathers every context describing one queue direction
type QueueContext struct {
	Qid    uint16        `json:"qid"`
	C2h    bool          `json:"c2h"`
	St     bool          `json:"st"`
	Sw     SwCtxt        `json:"sw"`
	Hw     HwCtxt        `json:"hw"`
	Credit CreditCtxt    `json:"credit"`
	Pfetch *PrefetchCtxt `json:"pfetch,omitempty"`
	Cmpt   *CmptCtxt     `json:"cmpt,omitempty"`
}

// ReadQueueContext reads the contexts of queue hwQid. The prefetch context is only
// included for streaming C2H queues, the completion context for streaming C2H queues
// and for MM queues on designs with an MM completion path.
func (d *QdmaDev) ReadQueueContext(hwQid uint16, st bool, c2h bool) (*QueueContext, error) {
	attr, err := d.GetDeviceAttributes()
	if err != nil {
		return nil, err
	}
	if !attr.StEn && !attr.MmEn {
		err = fmt.Errorf("ST or MM mode must be enabled: %w", ErrFeatureNotSupported)
		klog.ErrorS(err, "qdma-init.ReadQueueContext", "qid", hwQid)
		return nil, err
	}

	q := &QueueContext{Qid: hwQid, C2h: c2h, St: st}
	if err := d.SwCtxConf(c2h, hwQid, &q.Sw, QDMA_HW_ACCESS_READ); err != nil {
		return nil, fmt.Errorf("sw context: %w", err)
	}
	if err := d.HwCtxConf(c2h, hwQid, &q.Hw, QDMA_HW_ACCESS_READ); err != nil {
		return nil, fmt.Errorf("hw context: %w", err)
	}
	if err := d.CreditCtxConf(c2h, hwQid, &q.Credit, QDMA_HW_ACCESS_READ); err != nil {
		return nil, fmt.Errorf("credit context: %w", err)
	}
	if st && c2h {
		q.Pfetch = &PrefetchCtxt{}
		if err := d.PfetchCtxConf(hwQid, q.Pfetch, QDMA_HW_ACCESS_READ); err != nil {
			return nil, fmt.Errorf("prefetch context: %w", err)
		}
	}
	if (st && c2h) || (!st && attr.MmCmptEn) {
		q.Cmpt = &CmptCtxt{}
		if err := d.CmptCtxConf(hwQid, q.Cmpt, QDMA_HW_ACCESS_READ); err != nil {
			return nil, fmt.Errorf("completion context: %w", err)
		}
	}
	return q, nil
}

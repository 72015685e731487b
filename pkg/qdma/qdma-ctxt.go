// Copyright (c) 2023 Seagate Technology LLC and/or its Affiliates

// This file defines the queue context records and their register word codecs.
// encode never touches hardware, decode is its exact inverse.
package qdma

import "fmt"

// SwCtxt is the software descriptor context of one queue direction
type SwCtxt struct {
	Pidx       uint16 `json:"pidx"`
	IrqArm     bool   `json:"irq_arm"`
	Qen        bool   `json:"qen"`
	FrcdEn     bool   `json:"frcd_en"`
	WbiChk     bool   `json:"wbi_chk"`
	WbiIntvlEn bool   `json:"wbi_intvl_en"`
	FncId      uint8  `json:"fnc_id"`
	RngSzIdx   uint8  `json:"rngsz_idx"`
	DescSz     uint8  `json:"desc_sz"`
	Bypass     bool   `json:"bypass"`
	MmChn      uint8  `json:"mm_chn"`
	WbkEn      bool   `json:"wbk_en"`
	IrqEn      bool   `json:"irq_en"`
	PortId     uint8  `json:"port_id"`
	IrqNoLast  bool   `json:"irq_no_last"`
	Err        uint8  `json:"err"`
	ErrWbSent  bool   `json:"err_wb_sent"`
	IrqReq     bool   `json:"irq_req"`
	MrkrDis    bool   `json:"mrkr_dis"`
	IsMm       bool   `json:"is_mm"`
	RingBsAddr uint64 `json:"ring_bs_addr"`

	// Read back from the QID2VEC table, not part of the SW context words
	Vec      uint8 `json:"vec"`
	IntrAggr bool  `json:"intr_aggr"`
}

func (c *SwCtxt) validate() error {
	if c.DescSz > QDMA_DESC_SIZE_64B || c.RngSzIdx >= QDMA_NUM_RING_SIZES {
		return fmt.Errorf("sw ctxt desc_sz(%d)/rngsz_idx(%d): %w", c.DescSz, c.RngSzIdx, ErrInvalidParam)
	}
	if uint32(c.MmChn) > QDMA_SW_CTXT_W1_MM_CHN.max() || uint32(c.PortId) > QDMA_SW_CTXT_W1_PORT_ID.max() {
		return fmt.Errorf("sw ctxt mm_chn(%d)/port_id(%d) out of range: %w", c.MmChn, c.PortId, ErrInvalidParam)
	}
	return nil
}

func (c *SwCtxt) encode() []uint32 {
	w := make([]uint32, QDMA_CPM_SW_CONTEXT_NUM_WORDS)
	w[0] = QDMA_SW_CTXT_W0_PIDX.set(uint32(c.Pidx)) |
		QDMA_SW_CTXT_W0_IRQ_ARM.set(boolToU32(c.IrqArm))
	w[1] = QDMA_SW_CTXT_W1_QEN.set(boolToU32(c.Qen)) |
		QDMA_SW_CTXT_W1_FCRD_EN.set(boolToU32(c.FrcdEn)) |
		QDMA_SW_CTXT_W1_WBI_CHK.set(boolToU32(c.WbiChk)) |
		QDMA_SW_CTXT_W1_WB_INT_EN.set(boolToU32(c.WbiIntvlEn)) |
		QDMA_SW_CTXT_W1_FUNC_ID.set(uint32(c.FncId)) |
		QDMA_SW_CTXT_W1_RNG_SZ.set(uint32(c.RngSzIdx)) |
		QDMA_SW_CTXT_W1_DSC_SZ.set(uint32(c.DescSz)) |
		QDMA_SW_CTXT_W1_BYP.set(boolToU32(c.Bypass)) |
		QDMA_SW_CTXT_W1_MM_CHN.set(uint32(c.MmChn)) |
		QDMA_SW_CTXT_W1_WBK_EN.set(boolToU32(c.WbkEn)) |
		QDMA_SW_CTXT_W1_IRQ_EN.set(boolToU32(c.IrqEn)) |
		QDMA_SW_CTXT_W1_PORT_ID.set(uint32(c.PortId)) |
		QDMA_SW_CTXT_W1_IRQ_NO_LAST.set(boolToU32(c.IrqNoLast)) |
		QDMA_SW_CTXT_W1_ERR.set(uint32(c.Err)) |
		QDMA_SW_CTXT_W1_ERR_WB_SENT.set(boolToU32(c.ErrWbSent)) |
		QDMA_SW_CTXT_W1_IRQ_REQ.set(boolToU32(c.IrqReq)) |
		QDMA_SW_CTXT_W1_MRKR_DIS.set(boolToU32(c.MrkrDis)) |
		QDMA_SW_CTXT_W1_IS_MM.set(boolToU32(c.IsMm))
	w[2] = QDMA_SW_CTXT_W2_RING_BADDR_L.set(QDMA_SW_CTXT_BADDR_GET_L.get(c.RingBsAddr))
	w[3] = QDMA_SW_CTXT_W3_RING_BADDR_H.set(QDMA_SW_CTXT_BADDR_GET_H.get(c.RingBsAddr))
	return w
}

// decode fills the context words of c; Vec and IntrAggr are left untouched
func (c *SwCtxt) decode(w []uint32) {
	c.Pidx = uint16(QDMA_SW_CTXT_W0_PIDX.get(w[0]))
	c.IrqArm = u32ToBool(QDMA_SW_CTXT_W0_IRQ_ARM.get(w[0]))

	c.Qen = u32ToBool(QDMA_SW_CTXT_W1_QEN.get(w[1]))
	c.FrcdEn = u32ToBool(QDMA_SW_CTXT_W1_FCRD_EN.get(w[1]))
	c.WbiChk = u32ToBool(QDMA_SW_CTXT_W1_WBI_CHK.get(w[1]))
	c.WbiIntvlEn = u32ToBool(QDMA_SW_CTXT_W1_WB_INT_EN.get(w[1]))
	c.FncId = uint8(QDMA_SW_CTXT_W1_FUNC_ID.get(w[1]))
	c.RngSzIdx = uint8(QDMA_SW_CTXT_W1_RNG_SZ.get(w[1]))
	c.DescSz = uint8(QDMA_SW_CTXT_W1_DSC_SZ.get(w[1]))
	c.Bypass = u32ToBool(QDMA_SW_CTXT_W1_BYP.get(w[1]))
	c.MmChn = uint8(QDMA_SW_CTXT_W1_MM_CHN.get(w[1]))
	c.WbkEn = u32ToBool(QDMA_SW_CTXT_W1_WBK_EN.get(w[1]))
	c.IrqEn = u32ToBool(QDMA_SW_CTXT_W1_IRQ_EN.get(w[1]))
	c.PortId = uint8(QDMA_SW_CTXT_W1_PORT_ID.get(w[1]))
	c.IrqNoLast = u32ToBool(QDMA_SW_CTXT_W1_IRQ_NO_LAST.get(w[1]))
	c.Err = uint8(QDMA_SW_CTXT_W1_ERR.get(w[1]))
	c.ErrWbSent = u32ToBool(QDMA_SW_CTXT_W1_ERR_WB_SENT.get(w[1]))
	c.IrqReq = u32ToBool(QDMA_SW_CTXT_W1_IRQ_REQ.get(w[1]))
	c.MrkrDis = u32ToBool(QDMA_SW_CTXT_W1_MRKR_DIS.get(w[1]))
	c.IsMm = u32ToBool(QDMA_SW_CTXT_W1_IS_MM.get(w[1]))

	c.RingBsAddr = QDMA_SW_CTXT_BADDR_GET_L.set(QDMA_SW_CTXT_W2_RING_BADDR_L.get(w[2])) |
		QDMA_SW_CTXT_BADDR_GET_H.set(QDMA_SW_CTXT_W3_RING_BADDR_H.get(w[3]))
}

// HwCtxt is owned by hardware: read, clear and invalidate only
type HwCtxt struct {
	Cidx     uint16 `json:"cidx"`
	CrdUse   uint16 `json:"crd_use"`
	DscPend  bool   `json:"dsc_pend"`
	IdlStpB  bool   `json:"idl_stp_b"`
	FetchPnd bool   `json:"fetch_pnd"`
}

func (c *HwCtxt) decode(w []uint32) {
	c.Cidx = uint16(QDMA_HW_CTXT_W0_CIDX.get(w[0]))
	c.CrdUse = uint16(QDMA_HW_CTXT_W0_CRD_USE.get(w[0]))
	c.DscPend = u32ToBool(QDMA_HW_CTXT_W1_DSC_PND.get(w[1]))
	c.IdlStpB = u32ToBool(QDMA_HW_CTXT_W1_IDL_STP_B.get(w[1]))
	c.FetchPnd = u32ToBool(QDMA_HW_CTXT_W1_FETCH_PEND.get(w[1]))
}

// encodeHwCtxt produces the words hardware would hold for c. It only serves the
// simulator; there is no write path for this table.
func encodeHwCtxt(c *HwCtxt) []uint32 {
	return []uint32{
		QDMA_HW_CTXT_W0_CIDX.set(uint32(c.Cidx)) | QDMA_HW_CTXT_W0_CRD_USE.set(uint32(c.CrdUse)),
		QDMA_HW_CTXT_W1_DSC_PND.set(boolToU32(c.DscPend)) |
			QDMA_HW_CTXT_W1_IDL_STP_B.set(boolToU32(c.IdlStpB)) |
			QDMA_HW_CTXT_W1_FETCH_PEND.set(boolToU32(c.FetchPnd)),
	}
}

type CreditCtxt struct {
	Credit uint16 `json:"credit"`
}

func (c *CreditCtxt) decode(w []uint32) {
	c.Credit = uint16(QDMA_CR_CTXT_W0_CREDT.get(w[0]))
}

func encodeCreditCtxt(c *CreditCtxt) []uint32 {
	return []uint32{QDMA_CR_CTXT_W0_CREDT.set(uint32(c.Credit))}
}

// PrefetchCtxt is the C2H streaming prefetch engine state
type PrefetchCtxt struct {
	Bypass   bool   `json:"bypass"`
	BufSzIdx uint8  `json:"bufsz_idx"`
	PortId   uint8  `json:"port_id"`
	Err      bool   `json:"err"`
	PfchEn   bool   `json:"pfch_en"`
	Pfch     bool   `json:"pfch"`
	SwCrdt   uint16 `json:"sw_crdt"`
	Valid    bool   `json:"valid"`
}

func (c *PrefetchCtxt) validate() error {
	if c.BufSzIdx >= QDMA_NUM_C2H_BUFFER_SIZES {
		return fmt.Errorf("prefetch ctxt bufsz_idx(%d): %w", c.BufSzIdx, ErrInvalidParam)
	}
	return nil
}

func (c *PrefetchCtxt) encode() []uint32 {
	swCrdtL := QDMA_PFTCH_CTXT_SW_CRDT_GET_L.get(uint64(c.SwCrdt))
	swCrdtH := QDMA_PFTCH_CTXT_SW_CRDT_GET_H.get(uint64(c.SwCrdt))

	w := make([]uint32, QDMA_CPM_PFETCH_CONTEXT_NUM_WORDS)
	w[0] = QDMA_PFTCH_CTXT_W0_BYPASS.set(boolToU32(c.Bypass)) |
		QDMA_PFTCH_CTXT_W0_BUF_SIZE_IDX.set(uint32(c.BufSzIdx)) |
		QDMA_PFTCH_CTXT_W0_PORT_ID.set(uint32(c.PortId)) |
		QDMA_PFTCH_CTXT_W0_ERR.set(boolToU32(c.Err)) |
		QDMA_PFTCH_CTXT_W0_PFETCH_EN.set(boolToU32(c.PfchEn)) |
		QDMA_PFTCH_CTXT_W0_Q_IN_PFETCH.set(boolToU32(c.Pfch)) |
		QDMA_PFTCH_CTXT_W0_SW_CRDT_L.set(swCrdtL)
	w[1] = QDMA_PFTCH_CTXT_W1_SW_CRDT_H.set(swCrdtH) |
		QDMA_PFTCH_CTXT_W1_VALID.set(boolToU32(c.Valid))
	return w
}

func (c *PrefetchCtxt) decode(w []uint32) {
	c.Bypass = u32ToBool(QDMA_PFTCH_CTXT_W0_BYPASS.get(w[0]))
	c.BufSzIdx = uint8(QDMA_PFTCH_CTXT_W0_BUF_SIZE_IDX.get(w[0]))
	c.PortId = uint8(QDMA_PFTCH_CTXT_W0_PORT_ID.get(w[0]))
	c.Err = u32ToBool(QDMA_PFTCH_CTXT_W0_ERR.get(w[0]))
	c.PfchEn = u32ToBool(QDMA_PFTCH_CTXT_W0_PFETCH_EN.get(w[0]))
	c.Pfch = u32ToBool(QDMA_PFTCH_CTXT_W0_Q_IN_PFETCH.get(w[0]))
	c.Valid = u32ToBool(QDMA_PFTCH_CTXT_W1_VALID.get(w[1]))

	swCrdtL := QDMA_PFTCH_CTXT_W0_SW_CRDT_L.get(w[0])
	swCrdtH := QDMA_PFTCH_CTXT_W1_SW_CRDT_H.get(w[1])
	c.SwCrdt = uint16(QDMA_PFTCH_CTXT_SW_CRDT_GET_L.set(swCrdtL) |
		QDMA_PFTCH_CTXT_SW_CRDT_GET_H.set(swCrdtH))
}

// CmptCtxt is the completion ring context
type CmptCtxt struct {
	EnStatDesc   bool   `json:"en_stat_desc"`
	EnInt        bool   `json:"en_int"`
	TrigMode     uint8  `json:"trig_mode"`
	FncId        uint8  `json:"fnc_id"`
	CounterIdx   uint8  `json:"counter_idx"`
	TimerIdx     uint8  `json:"timer_idx"`
	InSt         uint8  `json:"in_st"`
	Color        bool   `json:"color"`
	RingszIdx    uint8  `json:"ringsz_idx"`
	BsAddr       uint64 `json:"bs_addr"`
	DescSz       uint8  `json:"desc_sz"`
	Pidx         uint16 `json:"pidx"`
	Cidx         uint16 `json:"cidx"`
	Valid        bool   `json:"valid"`
	Err          uint8  `json:"err"`
	UserTrigPend bool   `json:"user_trig_pend"`
	TimerRunning bool   `json:"timer_running"`
	FullUpd      bool   `json:"full_upd"`
}

func (c *CmptCtxt) validate() error {
	if c.DescSz > QDMA_DESC_SIZE_32B ||
		c.RingszIdx >= QDMA_NUM_RING_SIZES ||
		c.CounterIdx >= QDMA_NUM_C2H_COUNTERS ||
		c.TimerIdx >= QDMA_NUM_C2H_TIMERS ||
		c.TrigMode > QDMA_CMPT_UPDATE_TRIG_MODE_TMR_CNTR {
		return fmt.Errorf("cmpt ctxt dsz(%d)/ridx(%d)/cntr(%d)/tmr(%d)/tm(%d): %w",
			c.DescSz, c.RingszIdx, c.CounterIdx, c.TimerIdx, c.TrigMode, ErrInvalidParam)
	}
	if c.BsAddr%QDMA_COMPL_CTXT_BADDR_ALIGN != 0 {
		return fmt.Errorf("cmpt ctxt bs_addr 0x%X not %d byte aligned: %w", c.BsAddr, QDMA_COMPL_CTXT_BADDR_ALIGN, ErrInvalidParam)
	}
	return nil
}

func (c *CmptCtxt) encode() []uint32 {
	baddrL := QDMA_COMPL_CTXT_BADDR_GET_L.get(c.BsAddr)
	baddrM := QDMA_COMPL_CTXT_BADDR_GET_M.get(c.BsAddr)
	baddrH := QDMA_COMPL_CTXT_BADDR_GET_H.get(c.BsAddr)
	pidxL := QDMA_COMPL_CTXT_PIDX_GET_L.get(uint64(c.Pidx))
	pidxH := QDMA_COMPL_CTXT_PIDX_GET_H.get(uint64(c.Pidx))

	w := make([]uint32, QDMA_CPM_CMPT_CONTEXT_NUM_WORDS)
	w[0] = QDMA_COMPL_CTXT_W0_EN_STAT_DESC.set(boolToU32(c.EnStatDesc)) |
		QDMA_COMPL_CTXT_W0_EN_INT.set(boolToU32(c.EnInt)) |
		QDMA_COMPL_CTXT_W0_TRIG_MODE.set(uint32(c.TrigMode)) |
		QDMA_COMPL_CTXT_W0_FNC_ID.set(uint32(c.FncId)) |
		QDMA_COMPL_CTXT_W0_COUNTER_IDX.set(uint32(c.CounterIdx)) |
		QDMA_COMPL_CTXT_W0_TIMER_IDX.set(uint32(c.TimerIdx)) |
		QDMA_COMPL_CTXT_W0_INT_ST.set(uint32(c.InSt)) |
		QDMA_COMPL_CTXT_W0_COLOR.set(boolToU32(c.Color)) |
		QDMA_COMPL_CTXT_W0_RING_SZ.set(uint32(c.RingszIdx)) |
		QDMA_COMPL_CTXT_W0_BADDR_64_L.set(baddrL)
	w[1] = QDMA_COMPL_CTXT_W1_BADDR_64_M.set(baddrM)
	w[2] = QDMA_COMPL_CTXT_W2_BADDR_64_H.set(baddrH) |
		QDMA_COMPL_CTXT_W2_DESC_SIZE.set(uint32(c.DescSz)) |
		QDMA_COMPL_CTXT_W2_PIDX_L.set(pidxL)
	w[3] = QDMA_COMPL_CTXT_W3_PIDX_H.set(pidxH) |
		QDMA_COMPL_CTXT_W3_CIDX.set(uint32(c.Cidx)) |
		QDMA_COMPL_CTXT_W3_VALID.set(boolToU32(c.Valid)) |
		QDMA_COMPL_CTXT_W3_ERR.set(uint32(c.Err)) |
		QDMA_COMPL_CTXT_W3_USR_TRG_PND.set(boolToU32(c.UserTrigPend)) |
		QDMA_COMPL_CTXT_W3_TMR_RUN.set(boolToU32(c.TimerRunning)) |
		QDMA_COMPL_CTXT_W3_FULL_UPDT.set(boolToU32(c.FullUpd))
	return w
}

func (c *CmptCtxt) decode(w []uint32) {
	c.EnStatDesc = u32ToBool(QDMA_COMPL_CTXT_W0_EN_STAT_DESC.get(w[0]))
	c.EnInt = u32ToBool(QDMA_COMPL_CTXT_W0_EN_INT.get(w[0]))
	c.TrigMode = uint8(QDMA_COMPL_CTXT_W0_TRIG_MODE.get(w[0]))
	c.FncId = uint8(QDMA_COMPL_CTXT_W0_FNC_ID.get(w[0]))
	c.CounterIdx = uint8(QDMA_COMPL_CTXT_W0_COUNTER_IDX.get(w[0]))
	c.TimerIdx = uint8(QDMA_COMPL_CTXT_W0_TIMER_IDX.get(w[0]))
	c.InSt = uint8(QDMA_COMPL_CTXT_W0_INT_ST.get(w[0]))
	c.Color = u32ToBool(QDMA_COMPL_CTXT_W0_COLOR.get(w[0]))
	c.RingszIdx = uint8(QDMA_COMPL_CTXT_W0_RING_SZ.get(w[0]))
	c.DescSz = uint8(QDMA_COMPL_CTXT_W2_DESC_SIZE.get(w[2]))
	c.Cidx = uint16(QDMA_COMPL_CTXT_W3_CIDX.get(w[3]))
	c.Valid = u32ToBool(QDMA_COMPL_CTXT_W3_VALID.get(w[3]))
	c.Err = uint8(QDMA_COMPL_CTXT_W3_ERR.get(w[3]))
	c.UserTrigPend = u32ToBool(QDMA_COMPL_CTXT_W3_USR_TRG_PND.get(w[3]))
	c.TimerRunning = u32ToBool(QDMA_COMPL_CTXT_W3_TMR_RUN.get(w[3]))
	c.FullUpd = u32ToBool(QDMA_COMPL_CTXT_W3_FULL_UPDT.get(w[3]))

	baddrL := QDMA_COMPL_CTXT_W0_BADDR_64_L.get(w[0])
	baddrM := QDMA_COMPL_CTXT_W1_BADDR_64_M.get(w[1])
	baddrH := QDMA_COMPL_CTXT_W2_BADDR_64_H.get(w[2])
	c.BsAddr = QDMA_COMPL_CTXT_BADDR_GET_L.set(baddrL) |
		QDMA_COMPL_CTXT_BADDR_GET_M.set(baddrM) |
		QDMA_COMPL_CTXT_BADDR_GET_H.set(baddrH)

	pidxL := QDMA_COMPL_CTXT_W2_PIDX_L.get(w[2])
	pidxH := QDMA_COMPL_CTXT_W3_PIDX_H.get(w[3])
	c.Pidx = uint16(QDMA_COMPL_CTXT_PIDX_GET_L.set(pidxL) | QDMA_COMPL_CTXT_PIDX_GET_H.set(pidxH))
}

// IntrCtxt is the indirect interrupt (coalescing) ring context
type IntrCtxt struct {
	Valid    bool   `json:"valid"`
	Vec      uint16 `json:"vec"`
	IntSt    bool   `json:"int_st"`
	Color    bool   `json:"color"`
	Baddr4k  uint64 `json:"baddr_4k"`
	PageSize uint8  `json:"page_size"`
	Pidx     uint16 `json:"pidx"`
}

func (c *IntrCtxt) validate() error {
	if c.PageSize > QDMA_INDIRECT_INTR_RING_SIZE_32KB {
		return fmt.Errorf("intr ctxt page_size(%d) is too big: %w", c.PageSize, ErrInvalidParam)
	}
	if uint32(c.Vec) > QDMA_INTR_CTXT_W0_VEC_ID.max() {
		return fmt.Errorf("intr ctxt vec %d exceeds %d: %w", c.Vec, QDMA_INTR_CTXT_W0_VEC_ID.max(), ErrInvalidParam)
	}
	if c.Baddr4k%QDMA_INTR_CTXT_BADDR_ALIGN != 0 || c.Baddr4k>>QDMA_INTR_CTXT_BADDR_BITS != 0 {
		return fmt.Errorf("intr ctxt baddr_4k 0x%X not a 4K aligned %d bit address: %w", c.Baddr4k, QDMA_INTR_CTXT_BADDR_BITS, ErrInvalidParam)
	}
	return nil
}

func (c *IntrCtxt) encode() []uint32 {
	baddrL := QDMA_INTR_CTXT_BADDR_GET_L.get(c.Baddr4k)
	baddrH := QDMA_INTR_CTXT_BADDR_GET_H.get(c.Baddr4k)

	w := make([]uint32, QDMA_CPM_IND_INTR_CONTEXT_NUM_WORDS)
	w[0] = QDMA_INTR_CTXT_W0_VALID.set(boolToU32(c.Valid)) |
		QDMA_INTR_CTXT_W0_VEC_ID.set(uint32(c.Vec)) |
		QDMA_INTR_CTXT_W0_INT_ST.set(boolToU32(c.IntSt)) |
		QDMA_INTR_CTXT_W0_COLOR.set(boolToU32(c.Color)) |
		QDMA_INTR_CTXT_W0_BADDR_64.set(baddrL)
	w[1] = QDMA_INTR_CTXT_W1_BADDR_64.set(baddrH) |
		QDMA_INTR_CTXT_W1_PAGE_SIZE.set(uint32(c.PageSize))
	w[2] = QDMA_INTR_CTXT_W2_PIDX.set(uint32(c.Pidx))
	return w
}

func (c *IntrCtxt) decode(w []uint32) {
	c.Valid = u32ToBool(QDMA_INTR_CTXT_W0_VALID.get(w[0]))
	c.Vec = uint16(QDMA_INTR_CTXT_W0_VEC_ID.get(w[0]))
	c.IntSt = u32ToBool(QDMA_INTR_CTXT_W0_INT_ST.get(w[0]))
	c.Color = u32ToBool(QDMA_INTR_CTXT_W0_COLOR.get(w[0]))
	c.PageSize = uint8(QDMA_INTR_CTXT_W1_PAGE_SIZE.get(w[1]))
	c.Pidx = uint16(QDMA_INTR_CTXT_W2_PIDX.get(w[2]))

	baddrL := QDMA_INTR_CTXT_W0_BADDR_64.get(w[0])
	baddrH := QDMA_INTR_CTXT_W1_BADDR_64.get(w[1])
	c.Baddr4k = QDMA_INTR_CTXT_BADDR_GET_L.set(baddrL) | QDMA_INTR_CTXT_BADDR_GET_H.set(baddrH)
}

// Qid2VecCtxt maps a queue to its interrupt vector, per direction
type Qid2VecCtxt struct {
	C2hVector uint8 `json:"c2h_vector"`
	C2hEnCoal bool  `json:"c2h_en_coal"`
	H2cVector uint8 `json:"h2c_vector"`
	H2cEnCoal bool  `json:"h2c_en_coal"`
}

// merge replaces the sub-fields of one direction in word, keeping the other direction
func (c *Qid2VecCtxt) merge(c2h bool, word uint32) uint32 {
	if c2h {
		word &= QDMA_CPM_QID2VEC_H2C_VECTOR.mask() | QDMA_CPM_QID2VEC_H2C_COAL_EN.mask()
		word |= QDMA_CPM_QID2VEC_C2H_VECTOR.set(uint32(c.C2hVector)) |
			QDMA_CPM_QID2VEC_C2H_COAL_EN.set(boolToU32(c.C2hEnCoal))
	} else {
		word &= QDMA_CPM_QID2VEC_C2H_VECTOR.mask() | QDMA_CPM_QID2VEC_C2H_COAL_EN.mask()
		word |= QDMA_CPM_QID2VEC_H2C_VECTOR.set(uint32(c.H2cVector)) |
			QDMA_CPM_QID2VEC_H2C_COAL_EN.set(boolToU32(c.H2cEnCoal))
	}
	return word
}

// decode fills only the sub-fields of the requested direction
func (c *Qid2VecCtxt) decode(c2h bool, word uint32) {
	if c2h {
		c.C2hVector = uint8(QDMA_CPM_QID2VEC_C2H_VECTOR.get(word))
		c.C2hEnCoal = u32ToBool(QDMA_CPM_QID2VEC_C2H_COAL_EN.get(word))
	} else {
		c.H2cVector = uint8(QDMA_CPM_QID2VEC_H2C_VECTOR.get(word))
		c.H2cEnCoal = u32ToBool(QDMA_CPM_QID2VEC_H2C_COAL_EN.get(word))
	}
}

// FmapCfg is the queue range owned by a function
type FmapCfg struct {
	Qbase uint16 `json:"qbase"`
	Qmax  uint16 `json:"qmax"`
}

func (c *FmapCfg) validate() error {
	if uint32(c.Qbase) > QDMA_FMAP_CTXT_W0_QID.max() || uint32(c.Qmax) > QDMA_CPM_FMAP_CTXT_W0_QID_MAX.max() {
		return fmt.Errorf("fmap qbase(%d)/qmax(%d) out of range: %w", c.Qbase, c.Qmax, ErrInvalidParam)
	}
	return nil
}

func (c *FmapCfg) encode() uint32 {
	return QDMA_FMAP_CTXT_W0_QID.set(uint32(c.Qbase)) |
		QDMA_CPM_FMAP_CTXT_W0_QID_MAX.set(uint32(c.Qmax))
}

func (c *FmapCfg) decode(word uint32) {
	c.Qbase = uint16(QDMA_FMAP_CTXT_W0_QID.get(word))
	c.Qmax = uint16(QDMA_CPM_FMAP_CTXT_W0_QID_MAX.get(word))
}

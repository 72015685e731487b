// Copyright (c) 2023 Seagate Technology LLC and/or its Affiliates

// This file holds the QDMA CPM register map and the bit layout of every queue context.
// All layouts are expressed as offset/bitwidth field tables so that encode and decode
// share a single definition.
package qdma

import "time"

// Default register poll parameters
const (
	QDMA_REG_POLL_DFLT_INTERVAL_US = 10         // Microsecond
	QDMA_REG_POLL_DFLT_TIMEOUT_US  = 500 * 1000 // Microsecond
)

const (
	DefaultPollInterval = QDMA_REG_POLL_DFLT_INTERVAL_US * time.Microsecond
	DefaultPollTimeout  = QDMA_REG_POLL_DFLT_TIMEOUT_US * time.Microsecond
)

// Register offsets in the QDMA config BAR
const (
	QDMA_OFFSET_CONFIG_BLOCK_ID = 0x0

	QDMA_OFFSET_GLBL2_PF_BARLITE_INT    = 0x104
	QDMA_OFFSET_GLBL2_PF_BARLITE_EXT    = 0x10C
	QDMA_OFFSET_GLBL2_PF_VF_BARLITE_EXT = 0x1018
	QDMA_OFFSET_GLBL2_CHANNEL_MDMA      = 0x118
	QDMA_OFFSET_GLBL2_CHANNEL_QDMA_CAP  = 0x120
	QDMA_OFFSET_GLBL2_CHANNEL_FUNC_RET  = 0x12C
	QDMA_OFFSET_GLBL2_MISC_CAP          = 0x134

	QDMA_OFFSET_GLBL_RNG_SZ  = 0x204
	QDMA_OFFSET_GLBL_DSC_CFG = 0x250

	QDMA_CPM_REG_TRQ_SEL_FMAP_BASE = 0x400
	QDMA_CPM_REG_TRQ_SEL_FMAP_STEP = 4

	QDMA_OFFSET_IND_CTXT_DATA    = 0x804
	QDMA_CPM_OFFSET_IND_CTXT_CMD = 0x844

	QDMA_OFFSET_C2H_TIMER_CNT      = 0xA00
	QDMA_OFFSET_C2H_CNT_TH         = 0xA40
	QDMA_OFFSET_C2H_BUF_SZ         = 0xAB0
	QDMA_OFFSET_C2H_PFETCH_CFG     = 0xB08
	QDMA_OFFSET_C2H_INT_TIMER_TICK = 0xB0C
	QDMA_OFFSET_C2H_WRB_COAL_CFG   = 0xB50

	QDMA_CPM_OFFSET_DMAP_SEL_INT_CIDX     = 0x6400
	QDMA_CPM_OFFSET_DMAP_SEL_H2C_DSC_PIDX = 0x6404
	QDMA_CPM_OFFSET_DMAP_SEL_C2H_DSC_PIDX = 0x6408
	QDMA_CPM_OFFSET_DMAP_SEL_CMPT_CIDX    = 0x640C

	QDMA_OFFSET_VF_DMAP_SEL_INT_CIDX     = 0x3000
	QDMA_OFFSET_VF_DMAP_SEL_H2C_DSC_PIDX = 0x3004
	QDMA_OFFSET_VF_DMAP_SEL_C2H_DSC_PIDX = 0x3008
	QDMA_OFFSET_VF_DMAP_SEL_CMPT_CIDX    = 0x300C

	QDMA_PIDX_STEP      = 0x10
	QDMA_CMPT_CIDX_STEP = 0x10
	QDMA_INT_CIDX_STEP  = 0x10
)

const QDMA_CONFIG_BLOCK_ID = 0x1FD3

// Number of data (and mask) registers in the indirect context window
const QDMA_CPM_IND_CTXT_DATA_NUM_REGS = 8

// Context sizes in 32 bit words
const (
	QDMA_CPM_SW_CONTEXT_NUM_WORDS       = 4
	QDMA_CPM_CMPT_CONTEXT_NUM_WORDS     = 4
	QDMA_CPM_QID2VEC_CONTEXT_NUM_WORDS  = 1
	QDMA_CPM_HW_CONTEXT_NUM_WORDS       = 2
	QDMA_CPM_CR_CONTEXT_NUM_WORDS       = 1
	QDMA_CPM_IND_INTR_CONTEXT_NUM_WORDS = 3
	QDMA_CPM_PFETCH_CONTEXT_NUM_WORDS   = 2
)

const (
	QDMA_CPM_MAX_QID        = 2047
	QDMA_CPM_MAX_FUNC_ID    = 255
	QDMA_CPM_VF_USER_BAR_ID = 2
	QDMA_BAR_NUM            = 6
)

// Hardware enumerations used for range checks
const (
	QDMA_DESC_SIZE_8B  = 0
	QDMA_DESC_SIZE_16B = 1
	QDMA_DESC_SIZE_32B = 2
	QDMA_DESC_SIZE_64B = 3

	QDMA_NUM_RING_SIZES       = 16
	QDMA_NUM_C2H_TIMERS       = 16
	QDMA_NUM_C2H_COUNTERS     = 16
	QDMA_NUM_C2H_BUFFER_SIZES = 16

	QDMA_CMPT_UPDATE_TRIG_MODE_DIS      = 0
	QDMA_CMPT_UPDATE_TRIG_MODE_EVERY    = 1
	QDMA_CMPT_UPDATE_TRIG_MODE_USR_CNT  = 2
	QDMA_CMPT_UPDATE_TRIG_MODE_USR      = 3
	QDMA_CMPT_UPDATE_TRIG_MODE_USR_TMR  = 4
	QDMA_CMPT_UPDATE_TRIG_MODE_TMR_CNTR = 5

	QDMA_INDIRECT_INTR_RING_SIZE_4KB  = 0
	QDMA_INDIRECT_INTR_RING_SIZE_32KB = 7
)

// IndCtxtCmdSel selects the context table targeted by an indirect command
type IndCtxtCmdSel uint8

const (
	QDMA_CTXT_SEL_SW_C2H   IndCtxtCmdSel = 0x0
	QDMA_CTXT_SEL_SW_H2C   IndCtxtCmdSel = 0x1
	QDMA_CTXT_SEL_HW_C2H   IndCtxtCmdSel = 0x2
	QDMA_CTXT_SEL_HW_H2C   IndCtxtCmdSel = 0x3
	QDMA_CTXT_SEL_CR_C2H   IndCtxtCmdSel = 0x4
	QDMA_CTXT_SEL_CR_H2C   IndCtxtCmdSel = 0x5
	QDMA_CTXT_SEL_CMPT     IndCtxtCmdSel = 0x6
	QDMA_CTXT_SEL_PFTCH    IndCtxtCmdSel = 0x7
	QDMA_CTXT_SEL_INT_COAL IndCtxtCmdSel = 0x8
	QDMA_CTXT_SEL_FMAP     IndCtxtCmdSel = 0xC
)

var ctxtSelName = map[IndCtxtCmdSel]string{
	QDMA_CTXT_SEL_SW_C2H:   "SW_C2H",
	QDMA_CTXT_SEL_SW_H2C:   "SW_H2C",
	QDMA_CTXT_SEL_HW_C2H:   "HW_C2H",
	QDMA_CTXT_SEL_HW_H2C:   "HW_H2C",
	QDMA_CTXT_SEL_CR_C2H:   "CR_C2H",
	QDMA_CTXT_SEL_CR_H2C:   "CR_H2C",
	QDMA_CTXT_SEL_CMPT:     "CMPT",
	QDMA_CTXT_SEL_PFTCH:    "PFTCH",
	QDMA_CTXT_SEL_INT_COAL: "INT_COAL",
	QDMA_CTXT_SEL_FMAP:     "FMAP",
}

func (s IndCtxtCmdSel) String() string {
	if n, ok := ctxtSelName[s]; ok {
		return n
	}
	return "SEL_" + hex(uint8(s))
}

// IndCtxtCmdOp is the operation carried by an indirect command
type IndCtxtCmdOp uint8

const (
	QDMA_CTXT_CMD_CLR IndCtxtCmdOp = 0
	QDMA_CTXT_CMD_WR  IndCtxtCmdOp = 1
	QDMA_CTXT_CMD_RD  IndCtxtCmdOp = 2
	QDMA_CTXT_CMD_INV IndCtxtCmdOp = 3
)

func (o IndCtxtCmdOp) String() string {
	switch o {
	case QDMA_CTXT_CMD_CLR:
		return "clear"
	case QDMA_CTXT_CMD_WR:
		return "write"
	case QDMA_CTXT_CMD_RD:
		return "read"
	case QDMA_CTXT_CMD_INV:
		return "invalidate"
	}
	return "op_" + hex(uint8(o))
}

type u32field struct {
	offset   int
	bitwidth int
}

func (u *u32field) mask() uint32 {
	return uint32((uint64(1)<<u.bitwidth - 1) << u.offset)
}

// get extracts the field from a register word
func (u *u32field) get(reg uint32) uint32 {
	return (reg & u.mask()) >> u.offset
}

// set positions val in the field; bits beyond the field width are dropped
func (u *u32field) set(val uint32) uint32 {
	return (val << u.offset) & u.mask()
}

func (u *u32field) write(reg *uint32, val uint32) {
	*reg = (*reg &^ u.mask()) | u.set(val)
}

// max returns the largest value the field can hold
func (u *u32field) max() uint32 {
	return uint32(uint64(1)<<u.bitwidth - 1)
}

// u64field describes the slice of a wide value that lands in one register field.
type u64field struct {
	offset   int
	bitwidth int
}

func (u *u64field) mask() uint64 {
	if u.bitwidth == 64 {
		return ^uint64(0)
	}
	return (uint64(1)<<u.bitwidth - 1) << u.offset
}

func (u *u64field) get(val uint64) uint32 {
	return uint32((val & u.mask()) >> u.offset)
}

func (u *u64field) set(part uint32) uint64 {
	return (uint64(part) << u.offset) & u.mask()
}

// Indirect context command register
var (
	QDMA_IND_CTXT_CMD_BUSY = u32field{offset: 0, bitwidth: 1}
	QDMA_IND_CTXT_CMD_SEL  = u32field{offset: 1, bitwidth: 4}
	QDMA_IND_CTXT_CMD_OP   = u32field{offset: 5, bitwidth: 2}
	QDMA_IND_CTXT_CMD_QID  = u32field{offset: 7, bitwidth: 11}
)

// Software descriptor context
var (
	QDMA_SW_CTXT_W0_PIDX    = u32field{offset: 0, bitwidth: 16}
	QDMA_SW_CTXT_W0_IRQ_ARM = u32field{offset: 16, bitwidth: 1}

	QDMA_SW_CTXT_W1_QEN         = u32field{offset: 0, bitwidth: 1}
	QDMA_SW_CTXT_W1_FCRD_EN     = u32field{offset: 1, bitwidth: 1}
	QDMA_SW_CTXT_W1_WBI_CHK     = u32field{offset: 2, bitwidth: 1}
	QDMA_SW_CTXT_W1_WB_INT_EN   = u32field{offset: 3, bitwidth: 1}
	QDMA_SW_CTXT_W1_FUNC_ID     = u32field{offset: 4, bitwidth: 8}
	QDMA_SW_CTXT_W1_RNG_SZ      = u32field{offset: 12, bitwidth: 4}
	QDMA_SW_CTXT_W1_DSC_SZ      = u32field{offset: 16, bitwidth: 2}
	QDMA_SW_CTXT_W1_BYP         = u32field{offset: 18, bitwidth: 1}
	QDMA_SW_CTXT_W1_MM_CHN      = u32field{offset: 19, bitwidth: 1}
	QDMA_SW_CTXT_W1_WBK_EN      = u32field{offset: 20, bitwidth: 1}
	QDMA_SW_CTXT_W1_IRQ_EN      = u32field{offset: 21, bitwidth: 1}
	QDMA_SW_CTXT_W1_PORT_ID     = u32field{offset: 22, bitwidth: 3}
	QDMA_SW_CTXT_W1_IRQ_NO_LAST = u32field{offset: 25, bitwidth: 1}
	QDMA_SW_CTXT_W1_ERR         = u32field{offset: 26, bitwidth: 2}
	QDMA_SW_CTXT_W1_ERR_WB_SENT = u32field{offset: 28, bitwidth: 1}
	QDMA_SW_CTXT_W1_IRQ_REQ     = u32field{offset: 29, bitwidth: 1}
	QDMA_SW_CTXT_W1_MRKR_DIS    = u32field{offset: 30, bitwidth: 1}
	QDMA_SW_CTXT_W1_IS_MM       = u32field{offset: 31, bitwidth: 1}

	QDMA_SW_CTXT_W2_RING_BADDR_L = u32field{offset: 0, bitwidth: 32}
	QDMA_SW_CTXT_W3_RING_BADDR_H = u32field{offset: 0, bitwidth: 32}

	QDMA_SW_CTXT_BADDR_GET_L = u64field{offset: 0, bitwidth: 32}
	QDMA_SW_CTXT_BADDR_GET_H = u64field{offset: 32, bitwidth: 32}
)

// Hardware descriptor context
var (
	QDMA_HW_CTXT_W0_CIDX    = u32field{offset: 0, bitwidth: 16}
	QDMA_HW_CTXT_W0_CRD_USE = u32field{offset: 16, bitwidth: 16}

	QDMA_HW_CTXT_W1_DSC_PND    = u32field{offset: 0, bitwidth: 1}
	QDMA_HW_CTXT_W1_IDL_STP_B  = u32field{offset: 1, bitwidth: 1}
	QDMA_HW_CTXT_W1_FETCH_PEND = u32field{offset: 2, bitwidth: 1}
)

// Credit context
var QDMA_CR_CTXT_W0_CREDT = u32field{offset: 0, bitwidth: 16}

// Prefetch context
var (
	QDMA_PFTCH_CTXT_W0_BYPASS       = u32field{offset: 0, bitwidth: 1}
	QDMA_PFTCH_CTXT_W0_BUF_SIZE_IDX = u32field{offset: 1, bitwidth: 4}
	QDMA_PFTCH_CTXT_W0_PORT_ID      = u32field{offset: 5, bitwidth: 3}
	QDMA_PFTCH_CTXT_W0_ERR          = u32field{offset: 26, bitwidth: 1}
	QDMA_PFTCH_CTXT_W0_PFETCH_EN    = u32field{offset: 27, bitwidth: 1}
	QDMA_PFTCH_CTXT_W0_Q_IN_PFETCH  = u32field{offset: 28, bitwidth: 1}
	QDMA_PFTCH_CTXT_W0_SW_CRDT_L    = u32field{offset: 29, bitwidth: 3}

	QDMA_PFTCH_CTXT_W1_SW_CRDT_H = u32field{offset: 0, bitwidth: 13}
	QDMA_PFTCH_CTXT_W1_VALID     = u32field{offset: 13, bitwidth: 1}

	QDMA_PFTCH_CTXT_SW_CRDT_GET_L = u64field{offset: 0, bitwidth: 3}
	QDMA_PFTCH_CTXT_SW_CRDT_GET_H = u64field{offset: 3, bitwidth: 13}
)

// Completion context
var (
	QDMA_COMPL_CTXT_W0_EN_STAT_DESC = u32field{offset: 0, bitwidth: 1}
	QDMA_COMPL_CTXT_W0_EN_INT       = u32field{offset: 1, bitwidth: 1}
	QDMA_COMPL_CTXT_W0_TRIG_MODE    = u32field{offset: 2, bitwidth: 3}
	QDMA_COMPL_CTXT_W0_FNC_ID       = u32field{offset: 5, bitwidth: 8}
	QDMA_COMPL_CTXT_W0_COUNTER_IDX  = u32field{offset: 13, bitwidth: 4}
	QDMA_COMPL_CTXT_W0_TIMER_IDX    = u32field{offset: 17, bitwidth: 4}
	QDMA_COMPL_CTXT_W0_INT_ST       = u32field{offset: 21, bitwidth: 2}
	QDMA_COMPL_CTXT_W0_COLOR        = u32field{offset: 23, bitwidth: 1}
	QDMA_COMPL_CTXT_W0_RING_SZ      = u32field{offset: 24, bitwidth: 4}
	QDMA_COMPL_CTXT_W0_BADDR_64_L   = u32field{offset: 28, bitwidth: 4}

	QDMA_COMPL_CTXT_W1_BADDR_64_M = u32field{offset: 0, bitwidth: 32}

	QDMA_COMPL_CTXT_W2_BADDR_64_H = u32field{offset: 0, bitwidth: 22}
	QDMA_COMPL_CTXT_W2_DESC_SIZE  = u32field{offset: 22, bitwidth: 2}
	QDMA_COMPL_CTXT_W2_PIDX_L     = u32field{offset: 24, bitwidth: 8}

	QDMA_COMPL_CTXT_W3_PIDX_H      = u32field{offset: 0, bitwidth: 8}
	QDMA_COMPL_CTXT_W3_CIDX        = u32field{offset: 8, bitwidth: 16}
	QDMA_COMPL_CTXT_W3_VALID       = u32field{offset: 24, bitwidth: 1}
	QDMA_COMPL_CTXT_W3_ERR         = u32field{offset: 25, bitwidth: 2}
	QDMA_COMPL_CTXT_W3_USR_TRG_PND = u32field{offset: 27, bitwidth: 1}
	QDMA_COMPL_CTXT_W3_TMR_RUN     = u32field{offset: 28, bitwidth: 1}
	QDMA_COMPL_CTXT_W3_FULL_UPDT   = u32field{offset: 29, bitwidth: 1}

	// ring base is 64 byte aligned, bits 5:0 are not stored
	QDMA_COMPL_CTXT_BADDR_GET_L = u64field{offset: 6, bitwidth: 4}
	QDMA_COMPL_CTXT_BADDR_GET_M = u64field{offset: 10, bitwidth: 32}
	QDMA_COMPL_CTXT_BADDR_GET_H = u64field{offset: 42, bitwidth: 22}

	QDMA_COMPL_CTXT_PIDX_GET_L = u64field{offset: 0, bitwidth: 8}
	QDMA_COMPL_CTXT_PIDX_GET_H = u64field{offset: 8, bitwidth: 8}
)

const QDMA_COMPL_CTXT_BADDR_ALIGN = 64

// Interrupt coalescing context
var (
	QDMA_INTR_CTXT_W0_VALID    = u32field{offset: 0, bitwidth: 1}
	QDMA_INTR_CTXT_W0_VEC_ID   = u32field{offset: 1, bitwidth: 11}
	QDMA_INTR_CTXT_W0_INT_ST   = u32field{offset: 12, bitwidth: 1}
	QDMA_INTR_CTXT_W0_COLOR    = u32field{offset: 13, bitwidth: 1}
	QDMA_INTR_CTXT_W0_BADDR_64 = u32field{offset: 14, bitwidth: 18}

	QDMA_INTR_CTXT_W1_BADDR_64  = u32field{offset: 0, bitwidth: 29}
	QDMA_INTR_CTXT_W1_PAGE_SIZE = u32field{offset: 29, bitwidth: 3}

	QDMA_INTR_CTXT_W2_PIDX = u32field{offset: 0, bitwidth: 16}

	QDMA_INTR_CTXT_BADDR_GET_L = u64field{offset: 12, bitwidth: 18}
	QDMA_INTR_CTXT_BADDR_GET_H = u64field{offset: 30, bitwidth: 29}
)

const (
	QDMA_INTR_CTXT_BADDR_ALIGN = 4096
	QDMA_INTR_CTXT_BADDR_BITS  = 59
)

// QID to vector map, one word per queue holding both directions
var (
	QDMA_CPM_QID2VEC_C2H_VECTOR  = u32field{offset: 0, bitwidth: 8}
	QDMA_CPM_QID2VEC_C2H_COAL_EN = u32field{offset: 8, bitwidth: 1}
	QDMA_CPM_QID2VEC_H2C_VECTOR  = u32field{offset: 9, bitwidth: 8}
	QDMA_CPM_QID2VEC_H2C_COAL_EN = u32field{offset: 17, bitwidth: 1}
)

// Function map, a directly addressed register per function
var (
	QDMA_FMAP_CTXT_W0_QID         = u32field{offset: 0, bitwidth: 11}
	QDMA_CPM_FMAP_CTXT_W0_QID_MAX = u32field{offset: 11, bitwidth: 12}
)

// Global capability registers
var (
	QDMA_GLBL2_PF0_BAR_MAP = u32field{offset: 0, bitwidth: 6}
	QDMA_GLBL2_PF1_BAR_MAP = u32field{offset: 6, bitwidth: 6}
	QDMA_GLBL2_PF2_BAR_MAP = u32field{offset: 12, bitwidth: 6}
	QDMA_GLBL2_PF3_BAR_MAP = u32field{offset: 18, bitwidth: 6}

	QDMA_GLBL2_MULTQ_MAX = u32field{offset: 0, bitwidth: 12}

	QDMA_GLBL2_MAILBOX_EN  = u32field{offset: 0, bitwidth: 1}
	QDMA_GLBL2_FLR_PRESENT = u32field{offset: 1, bitwidth: 1}

	QDMA_GLBL2_MM_H2C = u32field{offset: 0, bitwidth: 1}
	QDMA_GLBL2_MM_C2H = u32field{offset: 8, bitwidth: 1}
	QDMA_GLBL2_ST_C2H = u32field{offset: 16, bitwidth: 1}
	QDMA_GLBL2_ST_H2C = u32field{offset: 17, bitwidth: 1}

	QDMA_CONFIG_BLOCK_IDENTIFIER = u32field{offset: 16, bitwidth: 16}
)

// Global CSR fields
var (
	QDMA_GLBL_DSC_CFG_WB_ACC_INT    = u32field{offset: 0, bitwidth: 3}
	QDMA_GLBL_DSC_CFG_MAX_DSC_FETCH = u32field{offset: 3, bitwidth: 3}

	QDMA_C2H_PFCH_FL_TH  = u32field{offset: 0, bitwidth: 9}
	QDMA_C2H_NUM_PFCH    = u32field{offset: 9, bitwidth: 9}
	QDMA_C2H_PFCH_QCNT   = u32field{offset: 18, bitwidth: 7}
	QDMA_C2H_EVT_QCNT_TH = u32field{offset: 25, bitwidth: 7}

	QDMA_C2H_TICK_CNT   = u32field{offset: 2, bitwidth: 12}
	QDMA_C2H_TICK_VAL   = u32field{offset: 14, bitwidth: 12}
	QDMA_C2H_MAX_BUF_SZ = u32field{offset: 26, bitwidth: 6}
)

// Queue doorbell registers
var (
	QDMA_DMA_SEL_DESC_PIDX = u32field{offset: 0, bitwidth: 16}
	QDMA_DMA_SEL_IRQ_EN    = u32field{offset: 16, bitwidth: 1}

	QDMA_DMAP_SEL_CMPT_WRB_CIDX    = u32field{offset: 0, bitwidth: 16}
	QDMA_DMAP_SEL_CMPT_CNT_THRESH  = u32field{offset: 16, bitwidth: 4}
	QDMA_DMAP_SEL_CMPT_TMR_CNT     = u32field{offset: 20, bitwidth: 4}
	QDMA_DMAP_SEL_CMPT_TRG_MODE    = u32field{offset: 24, bitwidth: 3}
	QDMA_DMAP_SEL_CMPT_STS_DESC_EN = u32field{offset: 27, bitwidth: 1}
	QDMA_DMAP_SEL_CMPT_IRQ_EN      = u32field{offset: 28, bitwidth: 1}

	QDMA_DMA_SEL_INT_SW_CIDX  = u32field{offset: 0, bitwidth: 16}
	QDMA_DMA_SEL_INT_RING_IDX = u32field{offset: 16, bitwidth: 8}
)

// boolToU32 and u32ToBool convert single bit flags
func boolToU32(b bool) uint32 {
	if b {
		return 1
	}
	return 0
}

func u32ToBool(v uint32) bool {
	return v != 0
}

// Copyright (c) 2023 Seagate Technology LLC and/or its Affiliates

// This file implements the indirect context command flow of the QDMA CPM engine:
// a single command register, an 8 word data window and an 8 word mask window
// shared by every context table of the device.
package qdma

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/rcrowley/go-metrics"
	"k8s.io/klog/v2"
)

const (
	DBG_LVL_DEFAUILT    = iota //0
	DBG_LVL_BASIC              //1
	DBG_LVL_INFO               //2
	DBG_LVL_DETAIL             //3
	DBG_LVL_DEEP_DETAIL        //4
)

// RegisterAccessor is the raw 32 bit register interface of a QDMA config BAR.
// Offsets are byte offsets from the start of the BAR.
type RegisterAccessor interface {
	ReadReg(offset uint32) uint32
	WriteReg(offset uint32, val uint32)
}

// BurstWriter is implemented by accessors able to write adjacent registers in one go.
type BurstWriter interface {
	WriteRegs(offset uint32, vals []uint32)
}

type QdmaDev struct {
	Bdf       *BDF             `json:"BDF"`
	ConfigBar int              `json:"ConfigBar"`
	Pcie      *PCIE_CONFIG_HDR `json:"-"`
	Metrics   metrics.Registry `json:"-"`

	closer io.Closer
	regs   RegisterAccessor
	cfg    Config
	lock   sync.Mutex // serializes the indirect context register bank
	delay  func(time.Duration)
}

// NewQdmaDev builds a device handle over regs. A nil cfg selects DefaultConfig.
func NewQdmaDev(regs RegisterAccessor, cfg *Config) *QdmaDev {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	d := &QdmaDev{
		regs:      regs,
		cfg:       *cfg,
		delay:     time.Sleep,
		ConfigBar: cfg.ConfigBar,
		Metrics:   metrics.NewRegistry(),
	}
	if d.cfg.PollInterval <= 0 {
		d.cfg.PollInterval = DefaultPollInterval
	}
	if d.cfg.PollTimeout <= 0 {
		d.cfg.PollTimeout = DefaultPollTimeout
	}
	return d
}

func (d *QdmaDev) Config() Config {
	return d.cfg
}

func (d *QdmaDev) counter(name string) metrics.Counter {
	return metrics.GetOrRegisterCounter(name, d.Metrics)
}

func (d *QdmaDev) valid() bool {
	return d != nil && d.regs != nil
}

// hwMonitorReg polls reg until (value & mask) == val. Zero interval or timeout
// selects the configured defaults. The number of samples is timeout/interval
// rounded up, and at least one.
func (d *QdmaDev) hwMonitorReg(reg uint32, mask uint32, val uint32, interval time.Duration, timeout time.Duration) error {
	if interval <= 0 {
		interval = d.cfg.PollInterval
	}
	if timeout <= 0 {
		timeout = d.cfg.PollTimeout
	}
	count := int((timeout + interval - 1) / interval)
	if count < 1 {
		count = 1
	}

	var v uint32
	for i := 0; i < count; i++ {
		v = d.regs.ReadReg(reg)
		if v&mask == val {
			return nil
		}
		d.delay(interval)
	}

	klog.ErrorS(ErrBusyTimeout, "qdma-access.hwMonitorReg", "reg", hex(reg), "read", hex(v), "expected", hex(val), "samples", count)
	return ErrBusyTimeout
}

// indCtxtCmd is the indirect context command word
type indCtxtCmd struct {
	busy bool
	sel  IndCtxtCmdSel
	op   IndCtxtCmdOp
	qid  uint16
}

func (c indCtxtCmd) word() uint32 {
	return QDMA_IND_CTXT_CMD_BUSY.set(boolToU32(c.busy)) |
		QDMA_IND_CTXT_CMD_SEL.set(uint32(c.sel)) |
		QDMA_IND_CTXT_CMD_OP.set(uint32(c.op)) |
		QDMA_IND_CTXT_CMD_QID.set(uint32(c.qid))
}

func parseIndCtxtCmd(w uint32) indCtxtCmd {
	return indCtxtCmd{
		busy: u32ToBool(QDMA_IND_CTXT_CMD_BUSY.get(w)),
		sel:  IndCtxtCmdSel(QDMA_IND_CTXT_CMD_SEL.get(w)),
		op:   IndCtxtCmdOp(QDMA_IND_CTXT_CMD_OP.get(w)),
		qid:  uint16(QDMA_IND_CTXT_CMD_QID.get(w)),
	}
}

// checkQid rejects ids that do not fit the command qid field
func checkQid(qid uint16) error {
	if uint32(qid) > QDMA_IND_CTXT_CMD_QID.max() {
		return fmt.Errorf("qid %d exceeds %d: %w", qid, QDMA_IND_CTXT_CMD_QID.max(), ErrInvalidParam)
	}
	return nil
}

// indirectCmd issues one indirect command while the caller holds d.lock.
// For a write, wr is copied into the data window, the remaining data words are zeroed and
// every mask word is set, and the window plus command register go out as one burst.
// For a read, len(rd) words are copied out of the data window after completion.
func (d *QdmaDev) indirectCmd(op IndCtxtCmdOp, sel IndCtxtCmdSel, qid uint16, wr []uint32, rd []uint32) error {
	if d.regs == nil {
		return fmt.Errorf("%s %s qid %d: device closed: %w", op, sel, qid, ErrInvalidParam)
	}
	cmd := indCtxtCmd{sel: sel, op: op, qid: qid}
	klog.V(DBG_LVL_DETAIL).InfoS("qdma-access.indirectCmd issued", "op", op, "sel", sel, "qid", qid, "cmd", hex(cmd.word()))
	d.counter("ind_ctxt.cmd." + op.String()).Inc(1)

	if op == QDMA_CTXT_CMD_WR {
		var burst [2*QDMA_CPM_IND_CTXT_DATA_NUM_REGS + 1]uint32
		for i := 0; i < QDMA_CPM_IND_CTXT_DATA_NUM_REGS; i++ {
			if i < len(wr) {
				burst[i] = wr[i]
			}
			burst[QDMA_CPM_IND_CTXT_DATA_NUM_REGS+i] = 0xFFFFFFFF
		}
		burst[2*QDMA_CPM_IND_CTXT_DATA_NUM_REGS] = cmd.word()
		d.writeBurst(QDMA_OFFSET_IND_CTXT_DATA, burst[:])
	} else {
		d.regs.WriteReg(QDMA_CPM_OFFSET_IND_CTXT_CMD, cmd.word())
	}

	if err := d.hwMonitorReg(QDMA_CPM_OFFSET_IND_CTXT_CMD, QDMA_IND_CTXT_CMD_BUSY.mask(), 0, 0, 0); err != nil {
		d.counter("ind_ctxt.busy_timeout").Inc(1)
		klog.ErrorS(err, "qdma-access.indirectCmd timed out", "op", op, "sel", sel, "qid", qid)
		return fmt.Errorf("%s %s qid %d: %w", op, sel, qid, err)
	}

	if op != QDMA_CTXT_CMD_RD {
		klog.V(DBG_LVL_DEEP_DETAIL).InfoS("qdma-access.indirectCmd done", "op", op, "sel", sel, "qid", qid)
		return nil
	}
	regAddr := uint32(QDMA_OFFSET_IND_CTXT_DATA)
	for i := range rd {
		rd[i] = d.regs.ReadReg(regAddr)
		regAddr += 4
	}
	klog.V(DBG_LVL_DEEP_DETAIL).InfoS("qdma-access.indirectCmd done", "op", op, "sel", sel, "qid", qid, "data", rd)
	return nil
}

func (d *QdmaDev) writeBurst(offset uint32, vals []uint32) {
	if bw, ok := d.regs.(BurstWriter); ok {
		bw.WriteRegs(offset, vals)
		return
	}
	for i, v := range vals {
		d.regs.WriteReg(offset+uint32(4*i), v)
	}
}

func (d *QdmaDev) indirectRegInvalidate(sel IndCtxtCmdSel, qid uint16) error {
	d.lock.Lock()
	defer d.lock.Unlock()
	return d.indirectCmd(QDMA_CTXT_CMD_INV, sel, qid, nil, nil)
}

func (d *QdmaDev) indirectRegClear(sel IndCtxtCmdSel, qid uint16) error {
	d.lock.Lock()
	defer d.lock.Unlock()
	return d.indirectCmd(QDMA_CTXT_CMD_CLR, sel, qid, nil, nil)
}

func (d *QdmaDev) indirectRegRead(sel IndCtxtCmdSel, qid uint16, data []uint32) error {
	d.lock.Lock()
	defer d.lock.Unlock()
	return d.indirectCmd(QDMA_CTXT_CMD_RD, sel, qid, nil, data)
}

func (d *QdmaDev) indirectRegWrite(sel IndCtxtCmdSel, qid uint16, data []uint32) error {
	d.lock.Lock()
	defer d.lock.Unlock()
	return d.indirectCmd(QDMA_CTXT_CMD_WR, sel, qid, data, nil)
}

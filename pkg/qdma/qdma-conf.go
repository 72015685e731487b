// Copyright (c) 2023 Seagate Technology LLC and/or its Affiliates

// This file implements the per context kind configuration entry points.
// Each entry point dispatches one access type to the indirect command flow,
// after the access type is checked against what the context table supports.
package qdma

import (
	"fmt"

	"k8s.io/klog/v2"
)

// HwAccessType selects the operation applied to a context
type HwAccessType int

const (
	QDMA_HW_ACCESS_READ HwAccessType = iota
	QDMA_HW_ACCESS_WRITE
	QDMA_HW_ACCESS_CLEAR
	QDMA_HW_ACCESS_INVALIDATE
	QDMA_HW_ACCESS_MAX
)

func (a HwAccessType) String() string {
	switch a {
	case QDMA_HW_ACCESS_READ:
		return "read"
	case QDMA_HW_ACCESS_WRITE:
		return "write"
	case QDMA_HW_ACCESS_CLEAR:
		return "clear"
	case QDMA_HW_ACCESS_INVALIDATE:
		return "invalidate"
	}
	return fmt.Sprintf("access(%d)", int(a))
}

// ParseHwAccessType maps the names returned by String back to an access type
func ParseHwAccessType(s string) (HwAccessType, error) {
	for a := QDMA_HW_ACCESS_READ; a < QDMA_HW_ACCESS_MAX; a++ {
		if a.String() == s {
			return a, nil
		}
	}
	return QDMA_HW_ACCESS_MAX, fmt.Errorf("access type %q: %w", s, ErrInvalidParam)
}

// CtxtKind identifies a context table
type CtxtKind string

const (
	QDMA_CTXT_SW      CtxtKind = "sw"
	QDMA_CTXT_HW      CtxtKind = "hw"
	QDMA_CTXT_CREDIT  CtxtKind = "credit"
	QDMA_CTXT_PFETCH  CtxtKind = "pfetch"
	QDMA_CTXT_CMPT    CtxtKind = "cmpt"
	QDMA_CTXT_INTR    CtxtKind = "intr"
	QDMA_CTXT_QID2VEC CtxtKind = "qid2vec"
	QDMA_CTXT_FMAP    CtxtKind = "fmap"
)

// ctxtAccessCaps lists the access types each context table implements in hardware
var ctxtAccessCaps = map[CtxtKind][QDMA_HW_ACCESS_MAX]bool{
	//                  read  write  clear  invalidate
	QDMA_CTXT_SW:      {true, true, true, true},
	QDMA_CTXT_HW:      {true, false, true, true},
	QDMA_CTXT_CREDIT:  {true, false, true, true},
	QDMA_CTXT_PFETCH:  {true, true, true, true},
	QDMA_CTXT_CMPT:    {true, true, true, true},
	QDMA_CTXT_INTR:    {true, true, true, true},
	QDMA_CTXT_QID2VEC: {true, true, true, true},
	QDMA_CTXT_FMAP:    {true, true, true, false},
}

// CtxtAccessSupported reports whether hardware implements access on the kind table
func CtxtAccessSupported(kind CtxtKind, access HwAccessType) bool {
	caps, ok := ctxtAccessCaps[kind]
	if !ok || access < 0 || access >= QDMA_HW_ACCESS_MAX {
		return false
	}
	return caps[access]
}

// reject logs and counts a request refused before any register access
func (d *QdmaDev) reject(err error, kind CtxtKind, access HwAccessType, id uint16) error {
	if d != nil && d.Metrics != nil {
		d.counter("ind_ctxt.rejected").Inc(1)
	}
	klog.ErrorS(err, "qdma-conf request rejected", "ctxt", kind, "access", access, "id", id)
	return err
}

// precheck validates the handle, the access type and the id before dispatch.
// noRecord is set when the caller passed no record to read into or write from.
func (d *QdmaDev) precheck(kind CtxtKind, access HwAccessType, id uint16, noRecord bool) error {
	if !d.valid() {
		return d.reject(fmt.Errorf("%s ctxt: no device handle: %w", kind, ErrInvalidParam), kind, access, id)
	}
	if access < 0 || access >= QDMA_HW_ACCESS_MAX {
		return d.reject(fmt.Errorf("%s ctxt: invalid access type %d: %w", kind, access, ErrInvalidParam), kind, access, id)
	}
	if !CtxtAccessSupported(kind, access) {
		return d.reject(fmt.Errorf("%s ctxt %s: %w", kind, access, ErrUnsupportedAccess), kind, access, id)
	}
	if noRecord && (access == QDMA_HW_ACCESS_READ || access == QDMA_HW_ACCESS_WRITE) {
		return d.reject(fmt.Errorf("%s ctxt %s: no context record: %w", kind, access, ErrInvalidParam), kind, access, id)
	}
	if kind == QDMA_CTXT_FMAP {
		if id > QDMA_CPM_MAX_FUNC_ID {
			return d.reject(fmt.Errorf("func id %d exceeds %d: %w", id, QDMA_CPM_MAX_FUNC_ID, ErrInvalidParam), kind, access, id)
		}
		return nil
	}
	if err := checkQid(id); err != nil {
		return d.reject(err, kind, access, id)
	}
	return nil
}

// dispatch runs the clear and invalidate accesses shared by all indirect tables
func (d *QdmaDev) dispatch(sel IndCtxtCmdSel, id uint16, access HwAccessType) error {
	switch access {
	case QDMA_HW_ACCESS_CLEAR:
		return d.indirectRegClear(sel, id)
	case QDMA_HW_ACCESS_INVALIDATE:
		return d.indirectRegInvalidate(sel, id)
	}
	return fmt.Errorf("%s %s: %w", sel, access, ErrInvalidParam)
}

func swCtxtSel(c2h bool) IndCtxtCmdSel {
	if c2h {
		return QDMA_CTXT_SEL_SW_C2H
	}
	return QDMA_CTXT_SEL_SW_H2C
}

// SwCtxConf applies access to the software context of queue hwQid in the given direction.
// A read also reports the queue's vector and aggregation flag from the QID2VEC table.
func (d *QdmaDev) SwCtxConf(c2h bool, hwQid uint16, ctxt *SwCtxt, access HwAccessType) error {
	if err := d.precheck(QDMA_CTXT_SW, access, hwQid, ctxt == nil); err != nil {
		return err
	}
	sel := swCtxtSel(c2h)

	switch access {
	case QDMA_HW_ACCESS_READ:
		return d.swContextRead(sel, c2h, hwQid, ctxt)
	case QDMA_HW_ACCESS_WRITE:
		if err := ctxt.validate(); err != nil {
			return d.reject(err, QDMA_CTXT_SW, access, hwQid)
		}
		return d.indirectRegWrite(sel, hwQid, ctxt.encode())
	}
	return d.dispatch(sel, hwQid, access)
}

func (d *QdmaDev) swContextRead(sel IndCtxtCmdSel, c2h bool, hwQid uint16, ctxt *SwCtxt) error {
	var words [QDMA_CPM_SW_CONTEXT_NUM_WORDS]uint32
	var qid2vec [QDMA_CPM_QID2VEC_CONTEXT_NUM_WORDS]uint32

	d.lock.Lock()
	defer d.lock.Unlock()
	if err := d.indirectCmd(QDMA_CTXT_CMD_RD, sel, hwQid, nil, words[:]); err != nil {
		return err
	}
	if err := d.indirectCmd(QDMA_CTXT_CMD_RD, QDMA_CTXT_SEL_FMAP, hwQid, nil, qid2vec[:]); err != nil {
		return err
	}

	ctxt.decode(words[:])
	v := Qid2VecCtxt{}
	v.decode(c2h, qid2vec[0])
	if c2h {
		ctxt.Vec, ctxt.IntrAggr = v.C2hVector, v.C2hEnCoal
	} else {
		ctxt.Vec, ctxt.IntrAggr = v.H2cVector, v.H2cEnCoal
	}
	return nil
}

// HwCtxConf reads, clears or invalidates the hardware descriptor context of a queue
func (d *QdmaDev) HwCtxConf(c2h bool, hwQid uint16, ctxt *HwCtxt, access HwAccessType) error {
	if err := d.precheck(QDMA_CTXT_HW, access, hwQid, ctxt == nil); err != nil {
		return err
	}
	sel := QDMA_CTXT_SEL_HW_H2C
	if c2h {
		sel = QDMA_CTXT_SEL_HW_C2H
	}

	if access == QDMA_HW_ACCESS_READ {
		var words [QDMA_CPM_HW_CONTEXT_NUM_WORDS]uint32
		if err := d.indirectRegRead(sel, hwQid, words[:]); err != nil {
			return err
		}
		ctxt.decode(words[:])
		return nil
	}
	return d.dispatch(sel, hwQid, access)
}

// CreditCtxConf reads, clears or invalidates the descriptor credit context of a queue
func (d *QdmaDev) CreditCtxConf(c2h bool, hwQid uint16, ctxt *CreditCtxt, access HwAccessType) error {
	if err := d.precheck(QDMA_CTXT_CREDIT, access, hwQid, ctxt == nil); err != nil {
		return err
	}
	sel := QDMA_CTXT_SEL_CR_H2C
	if c2h {
		sel = QDMA_CTXT_SEL_CR_C2H
	}

	if access == QDMA_HW_ACCESS_READ {
		var words [QDMA_CPM_CR_CONTEXT_NUM_WORDS]uint32
		if err := d.indirectRegRead(sel, hwQid, words[:]); err != nil {
			return err
		}
		ctxt.decode(words[:])
		return nil
	}
	return d.dispatch(sel, hwQid, access)
}

func (d *QdmaDev) PfetchCtxConf(hwQid uint16, ctxt *PrefetchCtxt, access HwAccessType) error {
	if err := d.precheck(QDMA_CTXT_PFETCH, access, hwQid, ctxt == nil); err != nil {
		return err
	}
	sel := QDMA_CTXT_SEL_PFTCH

	switch access {
	case QDMA_HW_ACCESS_READ:
		var words [QDMA_CPM_PFETCH_CONTEXT_NUM_WORDS]uint32
		if err := d.indirectRegRead(sel, hwQid, words[:]); err != nil {
			return err
		}
		ctxt.decode(words[:])
		return nil
	case QDMA_HW_ACCESS_WRITE:
		if err := ctxt.validate(); err != nil {
			return d.reject(err, QDMA_CTXT_PFETCH, access, hwQid)
		}
		return d.indirectRegWrite(sel, hwQid, ctxt.encode())
	}
	return d.dispatch(sel, hwQid, access)
}

func (d *QdmaDev) CmptCtxConf(hwQid uint16, ctxt *CmptCtxt, access HwAccessType) error {
	if err := d.precheck(QDMA_CTXT_CMPT, access, hwQid, ctxt == nil); err != nil {
		return err
	}
	sel := QDMA_CTXT_SEL_CMPT

	switch access {
	case QDMA_HW_ACCESS_READ:
		var words [QDMA_CPM_CMPT_CONTEXT_NUM_WORDS]uint32
		if err := d.indirectRegRead(sel, hwQid, words[:]); err != nil {
			return err
		}
		ctxt.decode(words[:])
		return nil
	case QDMA_HW_ACCESS_WRITE:
		if err := ctxt.validate(); err != nil {
			return d.reject(err, QDMA_CTXT_CMPT, access, hwQid)
		}
		return d.indirectRegWrite(sel, hwQid, ctxt.encode())
	}
	return d.dispatch(sel, hwQid, access)
}

// IndirectIntrCtxConf applies access to the interrupt coalescing ring ringIndex
func (d *QdmaDev) IndirectIntrCtxConf(ringIndex uint16, ctxt *IntrCtxt, access HwAccessType) error {
	if err := d.precheck(QDMA_CTXT_INTR, access, ringIndex, ctxt == nil); err != nil {
		return err
	}
	sel := QDMA_CTXT_SEL_INT_COAL

	switch access {
	case QDMA_HW_ACCESS_READ:
		var words [QDMA_CPM_IND_INTR_CONTEXT_NUM_WORDS]uint32
		if err := d.indirectRegRead(sel, ringIndex, words[:]); err != nil {
			return err
		}
		ctxt.decode(words[:])
		return nil
	case QDMA_HW_ACCESS_WRITE:
		if err := ctxt.validate(); err != nil {
			return d.reject(err, QDMA_CTXT_INTR, access, ringIndex)
		}
		return d.indirectRegWrite(sel, ringIndex, ctxt.encode())
	}
	return d.dispatch(sel, ringIndex, access)
}

// Qid2VecConf applies access to the vector map of queue hwQid. Read and write only
// concern the c2h (or h2c) half of the entry; clear and invalidate cover both halves.
func (d *QdmaDev) Qid2VecConf(c2h bool, hwQid uint16, ctxt *Qid2VecCtxt, access HwAccessType) error {
	if err := d.precheck(QDMA_CTXT_QID2VEC, access, hwQid, ctxt == nil); err != nil {
		return err
	}
	sel := QDMA_CTXT_SEL_FMAP

	switch access {
	case QDMA_HW_ACCESS_READ:
		var words [QDMA_CPM_QID2VEC_CONTEXT_NUM_WORDS]uint32
		if err := d.indirectRegRead(sel, hwQid, words[:]); err != nil {
			return err
		}
		ctxt.decode(c2h, words[0])
		return nil
	case QDMA_HW_ACCESS_WRITE:
		return d.qid2vecWrite(c2h, hwQid, ctxt)
	}
	return d.dispatch(sel, hwQid, access)
}

// qid2vecWrite is a read-modify-write of the shared entry, done without
// releasing the lock so no other command can land in between.
func (d *QdmaDev) qid2vecWrite(c2h bool, hwQid uint16, ctxt *Qid2VecCtxt) error {
	var words [QDMA_CPM_QID2VEC_CONTEXT_NUM_WORDS]uint32

	d.lock.Lock()
	defer d.lock.Unlock()
	if err := d.indirectCmd(QDMA_CTXT_CMD_RD, QDMA_CTXT_SEL_FMAP, hwQid, nil, words[:]); err != nil {
		return err
	}
	words[0] = ctxt.merge(c2h, words[0])
	klog.V(DBG_LVL_DETAIL).InfoS("qdma-conf.qid2vecWrite", "qid", hwQid, "c2h", c2h, "word", hex(words[0]))
	return d.indirectCmd(QDMA_CTXT_CMD_WR, QDMA_CTXT_SEL_FMAP, hwQid, words[:], nil)
}

func fmapReg(funcId uint16) uint32 {
	return QDMA_CPM_REG_TRQ_SEL_FMAP_BASE + uint32(funcId)*QDMA_CPM_REG_TRQ_SEL_FMAP_STEP
}

// FmapConf reads, writes or clears the queue range of function funcId.
// The function map is a plain register per function; no indirect command is used.
func (d *QdmaDev) FmapConf(funcId uint16, cfg *FmapCfg, access HwAccessType) error {
	if err := d.precheck(QDMA_CTXT_FMAP, access, funcId, cfg == nil); err != nil {
		return err
	}
	if access == QDMA_HW_ACCESS_WRITE {
		if err := cfg.validate(); err != nil {
			return d.reject(err, QDMA_CTXT_FMAP, access, funcId)
		}
	}
	reg := fmapReg(funcId)

	d.lock.Lock()
	defer d.lock.Unlock()
	if d.regs == nil {
		return fmt.Errorf("fmap func %d: device closed: %w", funcId, ErrInvalidParam)
	}
	switch access {
	case QDMA_HW_ACCESS_READ:
		cfg.decode(d.regs.ReadReg(reg))
	case QDMA_HW_ACCESS_WRITE:
		d.regs.WriteReg(reg, cfg.encode())
	case QDMA_HW_ACCESS_CLEAR:
		d.regs.WriteReg(reg, 0)
	}
	klog.V(DBG_LVL_DETAIL).InfoS("qdma-conf.FmapConf", "func", funcId, "access", access, "reg", hex(reg))
	return nil
}

// Copyright (c) 2023 Seagate Technology LLC and/or its Affiliates

// This file implements SimRegs, an in-memory QDMA CPM config BAR.
// It emulates the indirect context engine behind the command register
// and keeps plain storage for every other register.
package qdma

import (
	"sync"

	"k8s.io/klog/v2"
)

// SimAccess is one logged register access
type SimAccess struct {
	Write  bool
	Offset uint32
	Val    uint32
}

// SimCmd is one indirect command seen by the simulator
type SimCmd struct {
	Op  IndCtxtCmdOp
	Sel IndCtxtCmdSel
	Qid uint16
}

type simCtxtKey struct {
	sel IndCtxtCmdSel
	qid uint16
}

type simCtxtWords [QDMA_CPM_IND_CTXT_DATA_NUM_REGS]uint32

const (
	simMaskOffset = QDMA_OFFSET_IND_CTXT_DATA + 4*QDMA_CPM_IND_CTXT_DATA_NUM_REGS
)

type SimRegs struct {
	mu sync.Mutex

	regs map[uint32]uint32
	ctxt map[simCtxtKey]simCtxtWords

	stuckBusy   bool
	busyReads   int // command register reads reporting busy after each command
	pendingBusy int
	overlaps    int // command bank writes seen while a command was still busy

	log      []SimAccess
	cmds     []SimCmd
	cmdReads int
	bursts   int
}

func NewSimRegs() *SimRegs {
	return &SimRegs{
		regs: make(map[uint32]uint32),
		ctxt: make(map[simCtxtKey]simCtxtWords),
	}
}

func (s *SimRegs) ReadReg(offset uint32) uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()

	val := s.regs[offset]
	if offset == QDMA_CPM_OFFSET_IND_CTXT_CMD {
		s.cmdReads++
		if s.stuckBusy {
			val |= QDMA_IND_CTXT_CMD_BUSY.mask()
		} else if s.pendingBusy > 0 {
			s.pendingBusy--
			val |= QDMA_IND_CTXT_CMD_BUSY.mask()
		}
	}
	s.log = append(s.log, SimAccess{Offset: offset, Val: val})
	return val
}

func (s *SimRegs) WriteReg(offset uint32, val uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writeReg(offset, val)
}

// WriteRegs writes vals to adjacent registers as a single burst
func (s *SimRegs) WriteRegs(offset uint32, vals []uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.bursts++
	for i, v := range vals {
		s.writeReg(offset+uint32(4*i), v)
	}
}

func (s *SimRegs) writeReg(offset uint32, val uint32) {
	s.log = append(s.log, SimAccess{Write: true, Offset: offset, Val: val})
	if s.pendingBusy > 0 && isIndCtxtBankReg(offset) {
		s.overlaps++
		klog.ErrorS(ErrBusyTimeout, "qdma-sim.writeReg while busy", "reg", hex(offset), "busyReads", s.pendingBusy)
	}
	if offset != QDMA_CPM_OFFSET_IND_CTXT_CMD {
		s.regs[offset] = val
		return
	}

	cmd := parseIndCtxtCmd(val)
	s.cmds = append(s.cmds, SimCmd{Op: cmd.op, Sel: cmd.sel, Qid: cmd.qid})
	s.regs[offset] = val &^ QDMA_IND_CTXT_CMD_BUSY.mask()
	if s.stuckBusy {
		// command never completes
		return
	}
	s.pendingBusy = s.busyReads
	s.execute(cmd)
}

// isIndCtxtBankReg reports whether offset is the command register or lies in
// the data and mask window in front of it
func isIndCtxtBankReg(offset uint32) bool {
	return offset == QDMA_CPM_OFFSET_IND_CTXT_CMD ||
		(offset >= QDMA_OFFSET_IND_CTXT_DATA && offset < simMaskOffset+4*QDMA_CPM_IND_CTXT_DATA_NUM_REGS)
}

func (s *SimRegs) execute(cmd indCtxtCmd) {
	key := simCtxtKey{sel: cmd.sel, qid: cmd.qid}
	klog.V(DBG_LVL_DEEP_DETAIL).InfoS("qdma-sim.execute", "op", cmd.op, "sel", cmd.sel, "qid", cmd.qid)

	switch cmd.op {
	case QDMA_CTXT_CMD_CLR, QDMA_CTXT_CMD_INV:
		delete(s.ctxt, key)
	case QDMA_CTXT_CMD_WR:
		words := s.ctxt[key]
		for i := range words {
			data := s.regs[QDMA_OFFSET_IND_CTXT_DATA+uint32(4*i)]
			mask := s.regs[simMaskOffset+uint32(4*i)]
			words[i] = (words[i] &^ mask) | (data & mask)
		}
		s.ctxt[key] = words
	case QDMA_CTXT_CMD_RD:
		words := s.ctxt[key]
		for i, w := range words {
			s.regs[QDMA_OFFSET_IND_CTXT_DATA+uint32(4*i)] = w
		}
	}
}

// SetStuckBusy makes every following command hang with the busy bit set
func (s *SimRegs) SetStuckBusy(stuck bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stuckBusy = stuck
}

// SetBusyReads sets how many command register reads report busy after each command
func (s *SimRegs) SetBusyReads(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.busyReads = n
}

// Reg returns a register value without logging the access
func (s *SimRegs) Reg(offset uint32) uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.regs[offset]
}

// SetReg stores a register value without logging the access
func (s *SimRegs) SetReg(offset uint32, val uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.regs[offset] = val
}

// Ctxt returns the n first words of a context table entry
func (s *SimRegs) Ctxt(sel IndCtxtCmdSel, qid uint16, n int) []uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	words := s.ctxt[simCtxtKey{sel: sel, qid: qid}]
	return append([]uint32(nil), words[:n]...)
}

// SetCtxt preloads a context table entry, as hardware would fill it
func (s *SimRegs) SetCtxt(sel IndCtxtCmdSel, qid uint16, words []uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var w simCtxtWords
	copy(w[:], words)
	s.ctxt[simCtxtKey{sel: sel, qid: qid}] = w
}

func (s *SimRegs) Log() []SimAccess {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]SimAccess(nil), s.log...)
}

// Writes returns the logged register writes
func (s *SimRegs) Writes() []SimAccess {
	s.mu.Lock()
	defer s.mu.Unlock()
	var w []SimAccess
	for _, a := range s.log {
		if a.Write {
			w = append(w, a)
		}
	}
	return w
}

func (s *SimRegs) Commands() []SimCmd {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]SimCmd(nil), s.cmds...)
}

// CmdReads returns the number of command register reads
func (s *SimRegs) CmdReads() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cmdReads
}

// Overlaps returns the number of command bank writes that landed while the
// previous command still reported busy
func (s *SimRegs) Overlaps() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.overlaps
}

// Bursts returns the number of WriteRegs calls
func (s *SimRegs) Bursts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bursts
}

// ResetLog drops the access log, the command history and the counters
func (s *SimRegs) ResetLog() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.log = nil
	s.cmds = nil
	s.cmdReads = 0
	s.bursts = 0
	s.overlaps = 0
}

// SetDeviceAttributes programs the global capability registers so that
// GetDeviceAttributes reports attr
func (s *SimRegs) SetDeviceAttributes(attr DevAttributes) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var barLite uint32
	pfMaps := []u32field{QDMA_GLBL2_PF0_BAR_MAP, QDMA_GLBL2_PF1_BAR_MAP, QDMA_GLBL2_PF2_BAR_MAP, QDMA_GLBL2_PF3_BAR_MAP}
	for i := 0; i < int(attr.NumPfs) && i < len(pfMaps); i++ {
		pfMaps[i].write(&barLite, 1)
	}
	s.regs[QDMA_OFFSET_GLBL2_PF_BARLITE_INT] = barLite
	s.regs[QDMA_OFFSET_GLBL2_CHANNEL_QDMA_CAP] = QDMA_GLBL2_MULTQ_MAX.set(uint32(attr.NumQs))
	s.regs[QDMA_OFFSET_GLBL2_MISC_CAP] = QDMA_GLBL2_MAILBOX_EN.set(boolToU32(attr.MailboxEn)) |
		QDMA_GLBL2_FLR_PRESENT.set(boolToU32(attr.FlrPresent))

	var mdma uint32
	if attr.MmEn {
		mdma |= QDMA_GLBL2_MM_H2C.mask() | QDMA_GLBL2_MM_C2H.mask()
	}
	if attr.StEn {
		mdma |= QDMA_GLBL2_ST_H2C.mask() | QDMA_GLBL2_ST_C2H.mask()
	}
	s.regs[QDMA_OFFSET_GLBL2_CHANNEL_MDMA] = mdma
}
